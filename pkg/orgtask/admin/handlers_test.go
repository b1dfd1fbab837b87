package admin

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/Romulad/orgs-task-api/pkg/orgtask/auth"
	"github.com/Romulad/orgs-task-api/pkg/orgtask/models"
	"github.com/Romulad/orgs-task-api/pkg/orgtask/softdelete"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}
	models.AutoMigrate(db)
	return db
}

func setupTestRouter(db *gorm.DB) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handler := NewHandler(db)
	group := r.Group("/admin")
	group.Use(auth.AuthMiddleware(db), auth.RequireStaff())
	handler.RegisterRoutes(group)
	return r
}

func do(router *gin.Engine, method, path string, user models.User) *httptest.ResponseRecorder {
	req, _ := http.NewRequest(method, path, nil)
	token, _ := auth.GenerateToken(user.ID, user.Email)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	return resp
}

func TestAdminNeedsStaff(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)
	user := models.User{Email: "user@example.com", FirstName: "U", IsActive: true}
	db.Create(&user)

	resp := do(router, "GET", "/admin/orgs/deleted", user)
	if resp.Code != http.StatusForbidden {
		t.Errorf("Expected status 403 for a non-staff user, got %d", resp.Code)
	}
}

func TestListDeletedShowsOnlySoftDeleted(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)
	staff := models.User{Email: "staff@example.com", FirstName: "S", IsActive: true, IsStaff: true}
	db.Create(&staff)

	live := models.Organization{Name: "Live", CreatedByID: &staff.ID}
	db.Create(&live)
	gone := models.Organization{Name: "Gone", CreatedByID: &staff.ID}
	db.Create(&gone)
	engine := softdelete.NewEngine(db)
	if err := engine.DeleteOrgs([]uuid.UUID{gone.ID}); err != nil {
		t.Fatalf("DeleteOrgs failed: %v", err)
	}

	resp := do(router, "GET", "/admin/orgs/deleted", staff)
	if resp.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", resp.Code, resp.Body.String())
	}
	var rows []models.Organization
	json.Unmarshal(resp.Body.Bytes(), &rows)
	if len(rows) != 1 || rows[0].Name != "Gone" {
		t.Errorf("Expected only the deleted org, got %v", rows)
	}

	resp = do(router, "GET", "/admin/widgets/deleted", staff)
	if resp.Code != http.StatusNotFound {
		t.Errorf("Expected status 404 for an unknown resource, got %d", resp.Code)
	}
}

func TestRestoreBringsRowBack(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)
	staff := models.User{Email: "staff@example.com", FirstName: "S", IsActive: true, IsStaff: true}
	db.Create(&staff)

	org := models.Organization{Name: "Gone", CreatedByID: &staff.ID}
	db.Create(&org)
	engine := softdelete.NewEngine(db)
	engine.DeleteOrgs([]uuid.UUID{org.ID})

	resp := do(router, "POST", "/admin/orgs/"+org.ID.String()+"/restore", staff)
	if resp.Code != http.StatusNoContent {
		t.Fatalf("Expected status 204, got %d: %s", resp.Code, resp.Body.String())
	}

	var restored models.Organization
	if err := db.First(&restored, "id = ?", org.ID).Error; err != nil {
		t.Fatalf("Expected the org back on the live surface: %v", err)
	}

	// Restoring a live row is a miss.
	resp = do(router, "POST", "/admin/orgs/"+org.ID.String()+"/restore", staff)
	if resp.Code != http.StatusNotFound {
		t.Errorf("Expected status 404 for a live row, got %d", resp.Code)
	}
}

func TestPurgeRemovesPhysically(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)
	staff := models.User{Email: "staff@example.com", FirstName: "S", IsActive: true, IsStaff: true}
	db.Create(&staff)

	org := models.Organization{Name: "Gone", CreatedByID: &staff.ID}
	db.Create(&org)
	engine := softdelete.NewEngine(db)
	engine.DeleteOrgs([]uuid.UUID{org.ID})

	resp := do(router, "DELETE", "/admin/orgs/"+org.ID.String(), staff)
	if resp.Code != http.StatusNoContent {
		t.Fatalf("Expected status 204, got %d: %s", resp.Code, resp.Body.String())
	}

	var count int64
	db.Unscoped().Model(&models.Organization{}).Where("id = ?", org.ID).Count(&count)
	if count != 0 {
		t.Error("Expected the row to be gone physically")
	}

	resp = do(router, "DELETE", "/admin/orgs/"+uuid.New().String(), staff)
	if resp.Code != http.StatusNotFound {
		t.Errorf("Expected status 404 for an unknown id, got %d", resp.Code)
	}
}
