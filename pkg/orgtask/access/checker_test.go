package access

import (
	"testing"

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

func createTestOrg(t *testing.T, db *gorm.DB, creator models.User) models.Organization {
	org := models.Organization{Name: "Acme", CreatedByID: &creator.ID, OwnerID: &creator.ID}
	if err := db.Create(&org).Error; err != nil {
		t.Fatalf("Failed to create test org: %v", err)
	}
	return org
}

func reloadOrg(t *testing.T, db *gorm.DB, id interface{}) models.Organization {
	var org models.Organization
	if err := db.Preload("CanBeAccessedBy").First(&org, "id = ?", id).Error; err != nil {
		t.Fatalf("Failed to reload org: %v", err)
	}
	return org
}

func TestHasPermissionUnknownLabel(t *testing.T) {
	db := setupTestDB(t)
	creator := createTestUser(t, db, "creator@example.com")
	org := createTestOrg(t, db, creator)
	checker := NewChecker(db)

	if checker.HasPermission(&creator, &org, "can_fly") {
		t.Error("Unknown labels must never grant, even to the creator")
	}
}

func TestHasPermissionCreatorShortCircuit(t *testing.T) {
	db := setupTestDB(t)
	creator := createTestUser(t, db, "creator@example.com")
	org := createTestOrg(t, db, creator)
	checker := NewChecker(db)

	if !checker.HasPermission(&creator, &org, CanCreateTag) {
		t.Error("Creator must hold every default-tier label")
	}
	if !checker.HasPermission(&creator, &org, CanChangeRessourcesOwners) {
		t.Error("Creator must hold creator-only labels")
	}
}

func TestHasPermissionOwnerDefaultTierOnly(t *testing.T) {
	db := setupTestDB(t)
	creator := createTestUser(t, db, "creator@example.com")
	owner := createTestUser(t, db, "owner@example.com")
	org := models.Organization{Name: "Acme", CreatedByID: &creator.ID, OwnerID: &owner.ID}
	db.Create(&org)
	checker := NewChecker(db)

	if !checker.HasPermission(&owner, &org, CanCreateDepart) {
		t.Error("Owner must hold default-tier labels")
	}
	if checker.HasPermission(&owner, &org, CanChangeRessourcesOwners) {
		t.Error("Owner must not hold creator-only labels through ownership")
	}
}

func TestHasPermissionAccessListDefaultTierOnly(t *testing.T) {
	db := setupTestDB(t)
	creator := createTestUser(t, db, "creator@example.com")
	coOwner := createTestUser(t, db, "co@example.com")
	org := createTestOrg(t, db, creator)
	db.Model(&org).Association("CanBeAccessedBy").Append(&coOwner)
	org = reloadOrg(t, db, org.ID)
	checker := NewChecker(db)

	if !checker.HasPermission(&coOwner, &org, CanCreateTask) {
		t.Error("Access-list member must hold default-tier labels")
	}
	if checker.HasPermission(&coOwner, &org, CanChangeRessourcesOwners) {
		t.Error("Access-list member must not hold creator-only labels")
	}
}

func TestHasPermissionDirectGrant(t *testing.T) {
	db := setupTestDB(t)
	creator := createTestUser(t, db, "creator@example.com")
	member := createTestUser(t, db, "member@example.com")
	org := createTestOrg(t, db, creator)
	checker := NewChecker(db)

	if checker.HasPermission(&member, &org, CanCreateTag) {
		t.Error("Member without a grant must not hold the label")
	}

	grant := models.UserPermission{UserID: member.ID, OrgID: org.ID}
	grant.AddPerms([]string{CanCreateTag})
	db.Create(&grant)

	if !checker.HasPermission(&member, &org, CanCreateTag) {
		t.Error("Direct grant must hold the label")
	}
	if checker.HasPermission(&member, &org, CanCreateTask) {
		t.Error("Grant must not leak other labels")
	}
}

func TestHasPermissionThroughRole(t *testing.T) {
	db := setupTestDB(t)
	creator := createTestUser(t, db, "creator@example.com")
	member := createTestUser(t, db, "member@example.com")
	org := createTestOrg(t, db, creator)
	checker := NewChecker(db)

	role := models.Role{Name: "builders", OrgID: org.ID, CreatedByID: &creator.ID}
	role.SetPerms([]string{CanCreateDepart})
	db.Create(&role)
	db.Model(&role).Association("Users").Append(&member)

	if !checker.HasPermission(&member, &org, CanCreateDepart) {
		t.Error("Role binding must hold the label")
	}

	// A soft-deleted role stops granting.
	db.Delete(&role)
	if checker.HasPermission(&member, &org, CanCreateDepart) {
		t.Error("Deleted role must stop granting")
	}
}

func TestHasPermissionGrantScopedToOrg(t *testing.T) {
	db := setupTestDB(t)
	creator := createTestUser(t, db, "creator@example.com")
	member := createTestUser(t, db, "member@example.com")
	org := createTestOrg(t, db, creator)
	other := models.Organization{Name: "Other", CreatedByID: &creator.ID}
	db.Create(&other)
	checker := NewChecker(db)

	grant := models.UserPermission{UserID: member.ID, OrgID: org.ID}
	grant.AddPerms([]string{CanCreateTag})
	db.Create(&grant)

	if checker.HasPermission(&member, &other, CanCreateTag) {
		t.Error("A grant in one org must not grant in another")
	}
}

func TestCanAddCreatorLevelPerms(t *testing.T) {
	db := setupTestDB(t)
	creator := createTestUser(t, db, "creator@example.com")
	other := createTestUser(t, db, "other@example.com")
	org := createTestOrg(t, db, creator)
	checker := NewChecker(db)

	if !checker.CanAddCreatorLevelPerms([]string{CanChangeRessourcesOwners}, &org, &creator) {
		t.Error("Creator may store creator-only labels")
	}
	if checker.CanAddCreatorLevelPerms([]string{CanChangeRessourcesOwners}, &org, &other) {
		t.Error("Non-creator must not store creator-only labels")
	}
	if !checker.CanAddCreatorLevelPerms([]string{CanCreateTag}, &org, &other) {
		t.Error("Default-tier labels are open to everyone")
	}
}

func TestAddPermissionsToUsers(t *testing.T) {
	db := setupTestDB(t)
	creator := createTestUser(t, db, "creator@example.com")
	a := createTestUser(t, db, "a@example.com")
	b := createTestUser(t, db, "b@example.com")
	org := createTestOrg(t, db, creator)
	checker := NewChecker(db)

	added, notFound, err := checker.AddPermissionsToUsers(
		[]models.User{a, b}, &org, []string{CanCreateTag, "can_fly"})
	if err != nil {
		t.Fatalf("AddPermissionsToUsers failed: %v", err)
	}
	if len(added) != 1 || added[0] != CanCreateTag {
		t.Errorf("Expected added [%s], got %v", CanCreateTag, added)
	}
	if len(notFound) != 1 || notFound[0] != "can_fly" {
		t.Errorf("Expected not_found [can_fly], got %v", notFound)
	}

	for _, u := range []models.User{a, b} {
		if !checker.HasPermission(&u, &org, CanCreateTag) {
			t.Errorf("Expected %s to hold the label after the bulk grant", u.Email)
		}
	}

	// Granting again is idempotent.
	checker.AddPermissionsToUsers([]models.User{a}, &org, []string{CanCreateTag})
	var grant models.UserPermission
	db.Where("user_id = ? AND org_id = ?", a.ID, org.ID).First(&grant)
	if got := grant.GetPerms(); len(got) != 1 {
		t.Errorf("Expected one stored label, got %v", got)
	}
}

func TestRemovePermissionsFromUsers(t *testing.T) {
	db := setupTestDB(t)
	creator := createTestUser(t, db, "creator@example.com")
	a := createTestUser(t, db, "a@example.com")
	b := createTestUser(t, db, "b@example.com")
	org := createTestOrg(t, db, creator)
	checker := NewChecker(db)

	checker.AddPermissionsToUsers([]models.User{a}, &org, []string{CanCreateTag, CanCreateTask})

	removed, _, err := checker.RemovePermissionsFromUsers(
		[]models.User{a, b}, &org, []string{CanCreateTag})
	if err != nil {
		t.Fatalf("RemovePermissionsFromUsers failed: %v", err)
	}
	if len(removed) != 1 || removed[0] != CanCreateTag {
		t.Errorf("Expected removed [%s], got %v", CanCreateTag, removed)
	}

	if checker.HasPermission(&a, &org, CanCreateTag) {
		t.Error("Removed label must stop granting")
	}
	if !checker.HasPermission(&a, &org, CanCreateTask) {
		t.Error("Other labels must survive the removal")
	}

	// Removing from a user without a grant row must not create one.
	var count int64
	db.Model(&models.UserPermission{}).Where("user_id = ?", b.ID).Count(&count)
	if count != 0 {
		t.Errorf("Expected no grant row for %s, got %d", b.Email, count)
	}
}

func TestPermissionsExistCaseInsensitive(t *testing.T) {
	found, notFound := PermissionsExist([]string{"CAN_CREATE_TAG", "nope"})
	if len(found) != 1 || found[0] != CanCreateTag {
		t.Errorf("Expected lowercase match, got %v", found)
	}
	if len(notFound) != 1 || notFound[0] != "nope" {
		t.Errorf("Expected not_found [nope], got %v", notFound)
	}
}
