package departs

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/Romulad/orgs-task-api/pkg/orgtask/access"
	"github.com/Romulad/orgs-task-api/pkg/orgtask/auth"
	"github.com/Romulad/orgs-task-api/pkg/orgtask/mailer"
	"github.com/Romulad/orgs-task-api/pkg/orgtask/models"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}
	models.AutoMigrate(db)
	return db
}

func createTestUser(t *testing.T, db *gorm.DB, email string) models.User {
	user := models.User{Email: email, FirstName: "Test", IsActive: true}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("Failed to create test user: %v", err)
	}
	return user
}

func createTestOrg(t *testing.T, db *gorm.DB, name string, creator models.User) models.Organization {
	org := models.Organization{Name: name, CreatedByID: &creator.ID, OwnerID: &creator.ID}
	if err := db.Create(&org).Error; err != nil {
		t.Fatalf("Failed to create test org: %v", err)
	}
	return org
}

func setupTestRouter(db *gorm.DB) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handler := NewHandler(db, mailer.LogMailer{})
	group := r.Group("/orgs")
	group.Use(auth.AuthMiddleware(db))
	handler.RegisterRoutes(group)
	return r
}

func getAuthHeader(user models.User) string {
	token, _ := auth.GenerateToken(user.ID, user.Email)
	return "Bearer " + token
}

func doJSON(router *gin.Engine, method, path string, body interface{}, user models.User) *httptest.ResponseRecorder {
	var buf *bytes.Buffer
	if body != nil {
		jsonBody, _ := json.Marshal(body)
		buf = bytes.NewBuffer(jsonBody)
	} else {
		buf = bytes.NewBuffer(nil)
	}
	req, _ := http.NewRequest(method, path, buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", getAuthHeader(user))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	return resp
}

func TestCreateDepart(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)
	creator := createTestUser(t, db, "creator@example.com")
	worker := createTestUser(t, db, "worker@example.com")
	db.Model(&worker).Association("CanBeAccessedBy").Append(&creator)
	org := createTestOrg(t, db, "Acme", creator)

	resp := doJSON(router, "POST", "/orgs/"+org.ID.String()+"/departs", CreateDepartRequest{
		Name:    "Engineering",
		Members: []string{worker.ID.String()},
	}, creator)
	if resp.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", resp.Code, resp.Body.String())
	}

	var depart DepartResponse
	json.Unmarshal(resp.Body.Bytes(), &depart)
	if len(depart.Members) != 1 || depart.Members[0].Email != worker.Email {
		t.Errorf("Expected the worker as member, got %v", depart.Members)
	}

	// Department members join the organization implicitly.
	if n := db.Model(&org).Association("Members").Count(); n != 1 {
		t.Errorf("Expected the worker to join the org, got %d members", n)
	}

	// The name is unique inside the organization.
	resp = doJSON(router, "POST", "/orgs/"+org.ID.String()+"/departs", CreateDepartRequest{
		Name: "Engineering",
	}, creator)
	if resp.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 for a duplicate name, got %d", resp.Code)
	}
}

func TestCreateDepartNeedsAccessOrPermission(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)
	creator := createTestUser(t, db, "creator@example.com")
	member := createTestUser(t, db, "member@example.com")
	outsider := createTestUser(t, db, "outsider@example.com")
	org := createTestOrg(t, db, "Acme", creator)
	db.Model(&org).Association("Members").Append(&member)

	// An outsider never learns the organization exists.
	resp := doJSON(router, "POST", "/orgs/"+org.ID.String()+"/departs", CreateDepartRequest{
		Name: "Eng",
	}, outsider)
	if resp.Code != http.StatusNotFound {
		t.Errorf("Expected status 404 for an outsider, got %d", resp.Code)
	}

	// A plain member sees the organization but may not create.
	resp = doJSON(router, "POST", "/orgs/"+org.ID.String()+"/departs", CreateDepartRequest{
		Name: "Eng",
	}, member)
	if resp.Code != http.StatusForbidden {
		t.Errorf("Expected status 403 for a plain member, got %d", resp.Code)
	}

	// A direct grant unlocks creation for the member.
	checker := access.NewChecker(db)
	if _, _, err := checker.AddPermissionsToUsers([]models.User{member}, &org, []string{access.CanCreateDepart}); err != nil {
		t.Fatalf("Failed to grant permission: %v", err)
	}
	resp = doJSON(router, "POST", "/orgs/"+org.ID.String()+"/departs", CreateDepartRequest{
		Name: "Eng",
	}, member)
	if resp.Code != http.StatusCreated {
		t.Errorf("Expected the granted member to create, got %d: %s", resp.Code, resp.Body.String())
	}
}

func TestListDepartsFiltersByVisibility(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)
	creator := createTestUser(t, db, "creator@example.com")
	member := createTestUser(t, db, "member@example.com")
	outsider := createTestUser(t, db, "outsider@example.com")
	org := createTestOrg(t, db, "Acme", creator)

	eng := models.Department{Name: "Eng", OrgID: org.ID, CreatedByID: &creator.ID}
	db.Create(&eng)
	db.Model(&eng).Association("Members").Append(&member)
	ops := models.Department{Name: "Ops", OrgID: org.ID, CreatedByID: &creator.ID}
	db.Create(&ops)

	base := "/orgs/" + org.ID.String() + "/departs"

	resp := doJSON(router, "GET", base, nil, creator)
	var list []DepartResponse
	json.Unmarshal(resp.Body.Bytes(), &list)
	if resp.Code != http.StatusOK || len(list) != 2 {
		t.Errorf("Expected the creator to see both departments, got %d entries (status %d)", len(list), resp.Code)
	}

	// A department member who is not an org member only sees their own.
	resp = doJSON(router, "GET", base, nil, member)
	list = nil
	json.Unmarshal(resp.Body.Bytes(), &list)
	if resp.Code != http.StatusOK || len(list) != 1 || list[0].Name != "Eng" {
		t.Errorf("Expected the member to see only Eng, got %v (status %d)", list, resp.Code)
	}

	// An outsider sees nothing at all.
	resp = doJSON(router, "GET", base, nil, outsider)
	if resp.Code != http.StatusNotFound {
		t.Errorf("Expected status 404 for an outsider, got %d", resp.Code)
	}
}

func TestUpdateDepartMembershipReadsButNeverWrites(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)
	creator := createTestUser(t, db, "creator@example.com")
	member := createTestUser(t, db, "member@example.com")
	org := createTestOrg(t, db, "Acme", creator)
	depart := models.Department{Name: "Eng", OrgID: org.ID, CreatedByID: &creator.ID}
	db.Create(&depart)
	db.Model(&depart).Association("Members").Append(&member)

	path := "/orgs/" + org.ID.String() + "/departs/" + depart.ID.String()

	resp := doJSON(router, "GET", path, nil, member)
	if resp.Code != http.StatusOK {
		t.Errorf("Expected the member to read the department, got %d", resp.Code)
	}

	newName := "Renamed"
	resp = doJSON(router, "PATCH", path, UpdateDepartRequest{Name: &newName}, member)
	if resp.Code != http.StatusForbidden {
		t.Errorf("Expected status 403 for a member update, got %d", resp.Code)
	}

	resp = doJSON(router, "PATCH", path, UpdateDepartRequest{Name: &newName}, creator)
	if resp.Code != http.StatusOK {
		t.Fatalf("Expected status 200 for the creator, got %d: %s", resp.Code, resp.Body.String())
	}
	var updated DepartResponse
	json.Unmarshal(resp.Body.Bytes(), &updated)
	if updated.Name != "Renamed" {
		t.Errorf("Expected the new name, got %s", updated.Name)
	}
}

func TestDeleteDepartDetachesTasks(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)
	creator := createTestUser(t, db, "creator@example.com")
	org := createTestOrg(t, db, "Acme", creator)
	depart := models.Department{Name: "Eng", OrgID: org.ID, CreatedByID: &creator.ID}
	db.Create(&depart)
	task := models.Task{Name: "ship", OrgID: org.ID, DepartID: &depart.ID, CreatedByID: &creator.ID}
	db.Create(&task)

	resp := doJSON(router, "DELETE", "/orgs/"+org.ID.String()+"/departs/"+depart.ID.String(), nil, creator)
	if resp.Code != http.StatusNoContent {
		t.Fatalf("Expected status 204, got %d: %s", resp.Code, resp.Body.String())
	}

	var survived models.Task
	if err := db.First(&survived, "id = ?", task.ID).Error; err != nil {
		t.Fatalf("Task must survive its department: %v", err)
	}
	if survived.DepartID != nil {
		t.Error("Expected the task to be detached from the deleted department")
	}
}

func TestChangeDepartOwnersNeedsCreatorLineage(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)
	creator := createTestUser(t, db, "creator@example.com")
	coOwner := createTestUser(t, db, "co@example.com")
	delegate := createTestUser(t, db, "delegate@example.com")
	org := createTestOrg(t, db, "Acme", creator)
	db.Model(&org).Association("CanBeAccessedBy").Append(&coOwner)
	depart := models.Department{Name: "Eng", OrgID: org.ID, CreatedByID: &creator.ID}
	db.Create(&depart)

	path := "/orgs/" + org.ID.String() + "/departs/" + depart.ID.String() + "/owners"

	// Org access alone does not reach the delegation surface.
	resp := doJSON(router, "PATCH", path, map[string][]string{
		"user_ids": {delegate.ID.String()},
	}, coOwner)
	if resp.Code != http.StatusForbidden {
		t.Errorf("Expected status 403 for a non-creator, got %d", resp.Code)
	}

	resp = doJSON(router, "PATCH", path, map[string][]string{
		"user_ids": {delegate.ID.String()},
	}, creator)
	if resp.Code != http.StatusNoContent {
		t.Fatalf("Expected status 204 for the creator, got %d: %s", resp.Code, resp.Body.String())
	}

	// The delegate can now mutate the department directly.
	newName := "Platform"
	resp = doJSON(router, "PATCH", "/orgs/"+org.ID.String()+"/departs/"+depart.ID.String(),
		UpdateDepartRequest{Name: &newName}, delegate)
	if resp.Code != http.StatusOK {
		t.Errorf("Expected the delegate to update, got %d: %s", resp.Code, resp.Body.String())
	}
}
