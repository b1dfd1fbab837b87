package softdelete

import (
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

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

func liveCount(db *gorm.DB, model interface{}) int64 {
	var count int64
	db.Model(model).Count(&count)
	return count
}

func unscopedCount(db *gorm.DB, model interface{}) int64 {
	var count int64
	db.Unscoped().Model(model).Count(&count)
	return count
}

func joinRows(t *testing.T, db *gorm.DB, table string) int64 {
	var count int64
	if err := db.Table(table).Count(&count).Error; err != nil {
		t.Fatalf("Failed to count %s: %v", table, err)
	}
	return count
}

// buildOrgTree creates an org owned and created by the user, with a
// department, a task (tagged, assigned), a tag, a role and a grant.
func buildOrgTree(t *testing.T, db *gorm.DB, creator, member models.User) models.Organization {
	org := models.Organization{Name: "Acme", CreatedByID: &creator.ID, OwnerID: &creator.ID}
	if err := db.Create(&org).Error; err != nil {
		t.Fatalf("Failed to create org: %v", err)
	}
	db.Model(&org).Association("Members").Append(&member)

	depart := models.Department{Name: "Eng", OrgID: org.ID, CreatedByID: &creator.ID}
	db.Create(&depart)
	db.Model(&depart).Association("Members").Append(&member)

	tag := models.Tag{Name: "urgent", OrgID: org.ID, CreatedByID: &creator.ID}
	db.Create(&tag)

	task := models.Task{Name: "ship", OrgID: org.ID, DepartID: &depart.ID, CreatedByID: &creator.ID}
	db.Create(&task)
	db.Model(&task).Association("AssignedTo").Append(&member)
	db.Model(&task).Association("Tags").Append(&tag)

	role := models.Role{Name: "builders", OrgID: org.ID, CreatedByID: &creator.ID}
	db.Create(&role)
	db.Model(&role).Association("Users").Append(&member)

	grant := models.UserPermission{UserID: member.ID, OrgID: org.ID}
	db.Create(&grant)

	return org
}

func TestDeleteOrgCascadesWholeTree(t *testing.T) {
	db := setupTestDB(t)
	creator := createTestUser(t, db, "creator@example.com")
	member := createTestUser(t, db, "member@example.com")
	org := buildOrgTree(t, db, creator, member)

	engine := NewEngine(db)
	if err := engine.DeleteOrgs([]uuid.UUID{org.ID}); err != nil {
		t.Fatalf("DeleteOrgs failed: %v", err)
	}

	for _, m := range []interface{}{
		&models.Organization{}, &models.Department{}, &models.Tag{},
		&models.Task{}, &models.Role{}, &models.UserPermission{},
	} {
		if n := liveCount(db, m); n != 0 {
			t.Errorf("Expected no live %T rows, got %d", m, n)
		}
		if n := unscopedCount(db, m); n == 0 {
			t.Errorf("Expected %T rows to survive physically", m)
		}
	}

	// Users are never cascaded from an org deletion.
	if n := liveCount(db, &models.User{}); n != 2 {
		t.Errorf("Expected both users to survive, got %d", n)
	}

	// Cascaded rows keep their membership rows; the live filter hides them.
	if n := joinRows(t, db, "organization_members"); n != 1 {
		t.Errorf("Expected cascaded org to keep its member rows, got %d", n)
	}
	if n := joinRows(t, db, "task_tags"); n != 1 {
		t.Errorf("Expected cascaded task to keep its tag rows, got %d", n)
	}
}

func TestDeleteUserCascadesCreatedOrgs(t *testing.T) {
	db := setupTestDB(t)
	creator := createTestUser(t, db, "creator@example.com")
	member := createTestUser(t, db, "member@example.com")
	buildOrgTree(t, db, creator, member)

	// A second org created by someone else, where the victim only appears in
	// delegation positions.
	otherOrg := models.Organization{Name: "Other", CreatedByID: &member.ID, OwnerID: &creator.ID}
	db.Create(&otherOrg)
	otherTag := models.Tag{Name: "keep", OrgID: otherOrg.ID, CreatedByID: &creator.ID}
	db.Create(&otherTag)

	engine := NewEngine(db)
	if err := engine.DeleteUsers([]uuid.UUID{creator.ID}); err != nil {
		t.Fatalf("DeleteUsers failed: %v", err)
	}

	if n := liveCount(db, &models.User{}); n != 1 {
		t.Errorf("Expected one live user, got %d", n)
	}
	// Created org cascades with its whole tree.
	if n := liveCount(db, &models.Organization{}); n != 1 {
		t.Errorf("Expected only the foreign org to survive, got %d", n)
	}
	if n := liveCount(db, &models.Department{}); n != 0 {
		t.Errorf("Expected departments of the cascaded org to go, got %d", n)
	}

	// Delegation links on surviving rows are nulled, not cascaded.
	var survivedOrg models.Organization
	if err := db.First(&survivedOrg, "id = ?", otherOrg.ID).Error; err != nil {
		t.Fatalf("Foreign org should survive: %v", err)
	}
	if survivedOrg.OwnerID != nil {
		t.Error("Expected owner reference to the deleted user to be nulled")
	}
	var survivedTag models.Tag
	db.First(&survivedTag, "id = ?", otherTag.ID)
	if survivedTag.CreatedByID != nil {
		t.Error("Expected created_by reference to the deleted user to be nulled")
	}
}

func TestDeleteUserPurgesMemberships(t *testing.T) {
	db := setupTestDB(t)
	creator := createTestUser(t, db, "creator@example.com")
	member := createTestUser(t, db, "member@example.com")
	buildOrgTree(t, db, creator, member)

	// The member also delegates access to their own account.
	db.Model(&member).Association("CanBeAccessedBy").Append(&creator)

	engine := NewEngine(db)
	if err := engine.DeleteUsers([]uuid.UUID{member.ID}); err != nil {
		t.Fatalf("DeleteUsers failed: %v", err)
	}

	// The deleted principal disappears physically from every join table.
	for _, table := range []string{
		"organization_members", "department_members", "task_assignees",
		"role_users", "user_access",
	} {
		if n := joinRows(t, db, table); n != 0 {
			t.Errorf("Expected %s to be purged, got %d rows", table, n)
		}
	}

	// The member's grant row cascades with them.
	if n := liveCount(db, &models.UserPermission{}); n != 0 {
		t.Errorf("Expected the grant row to cascade, got %d", n)
	}

	// The org tree created by the other user survives untouched.
	if n := liveCount(db, &models.Organization{}); n != 1 {
		t.Errorf("Expected the org to survive, got %d", n)
	}
	if n := liveCount(db, &models.Task{}); n != 1 {
		t.Errorf("Expected the task to survive, got %d", n)
	}
}

func TestDeleteTaskCascadesSubtasks(t *testing.T) {
	db := setupTestDB(t)
	creator := createTestUser(t, db, "creator@example.com")
	org := models.Organization{Name: "Acme", CreatedByID: &creator.ID}
	db.Create(&org)

	parent := models.Task{Name: "parent", OrgID: org.ID}
	db.Create(&parent)
	child := models.Task{Name: "child", OrgID: org.ID, ParentTaskID: &parent.ID}
	db.Create(&child)
	grandchild := models.Task{Name: "grandchild", OrgID: org.ID, ParentTaskID: &child.ID}
	db.Create(&grandchild)
	unrelated := models.Task{Name: "unrelated", OrgID: org.ID}
	db.Create(&unrelated)

	engine := NewEngine(db)
	if err := engine.DeleteTasks([]uuid.UUID{parent.ID}); err != nil {
		t.Fatalf("DeleteTasks failed: %v", err)
	}

	var remaining []models.Task
	db.Find(&remaining)
	if len(remaining) != 1 || remaining[0].Name != "unrelated" {
		t.Errorf("Expected only the unrelated task to survive, got %v", remaining)
	}
}

func TestDeleteDepartmentDetachesTasks(t *testing.T) {
	db := setupTestDB(t)
	creator := createTestUser(t, db, "creator@example.com")
	org := models.Organization{Name: "Acme", CreatedByID: &creator.ID}
	db.Create(&org)
	depart := models.Department{Name: "Eng", OrgID: org.ID}
	db.Create(&depart)
	task := models.Task{Name: "ship", OrgID: org.ID, DepartID: &depart.ID}
	db.Create(&task)

	engine := NewEngine(db)
	if err := engine.DeleteDepartments([]uuid.UUID{depart.ID}); err != nil {
		t.Fatalf("DeleteDepartments failed: %v", err)
	}

	var survived models.Task
	if err := db.First(&survived, "id = ?", task.ID).Error; err != nil {
		t.Fatalf("Task must survive its department: %v", err)
	}
	if survived.DepartID != nil {
		t.Error("Expected the department reference to be nulled")
	}
	if n := liveCount(db, &models.Department{}); n != 0 {
		t.Errorf("Expected the department to be gone, got %d", n)
	}
}

func TestDeleteIsIdempotent(t *testing.T) {
	db := setupTestDB(t)
	creator := createTestUser(t, db, "creator@example.com")
	org := models.Organization{Name: "Acme", CreatedByID: &creator.ID}
	db.Create(&org)

	engine := NewEngine(db)
	if err := engine.DeleteOrgs([]uuid.UUID{org.ID}); err != nil {
		t.Fatalf("First delete failed: %v", err)
	}
	// Deleting again, and deleting unknown ids, are successful no-ops.
	if err := engine.DeleteOrgs([]uuid.UUID{org.ID, uuid.New()}); err != nil {
		t.Fatalf("Second delete must be a no-op: %v", err)
	}
	if err := engine.DeleteOrgs(nil); err != nil {
		t.Fatalf("Empty delete must be a no-op: %v", err)
	}
}

func TestNameReuseAfterSoftDelete(t *testing.T) {
	db := setupTestDB(t)
	creator := createTestUser(t, db, "creator@example.com")
	org := models.Organization{Name: "Acme", CreatedByID: &creator.ID}
	db.Create(&org)
	tag := models.Tag{Name: "urgent", OrgID: org.ID}
	db.Create(&tag)

	engine := NewEngine(db)
	if err := engine.DeleteTags([]uuid.UUID{tag.ID}); err != nil {
		t.Fatalf("DeleteTags failed: %v", err)
	}

	// The name is free again on the live surface.
	again := models.Tag{Name: "urgent", OrgID: org.ID}
	if err := db.Create(&again).Error; err != nil {
		t.Fatalf("Expected the name to be reusable after soft delete: %v", err)
	}
	if n := liveCount(db, &models.Tag{}); n != 1 {
		t.Errorf("Expected one live tag, got %d", n)
	}
	if n := unscopedCount(db, &models.Tag{}); n != 2 {
		t.Errorf("Expected two physical tags, got %d", n)
	}
}
