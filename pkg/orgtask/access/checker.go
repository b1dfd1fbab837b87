package access

import (
	"strings"

	"gorm.io/gorm"

	"github.com/Romulad/orgs-task-api/pkg/orgtask/models"
)

// Checker evaluates the effective permission set of a principal within an
// organization, combining creator status, ownership, access-list membership,
// role bindings and direct grants.
type Checker struct {
	db *gorm.DB
}

// NewChecker creates a checker bound to the given database handle.
func NewChecker(db *gorm.DB) *Checker {
	return &Checker{db: db}
}

// HasPermission reports whether the user holds the label in the organization.
// Resolution order, short-circuiting on the first hit:
//  1. unknown label: never
//  2. org creator: always
//  3. org owner or org access list: default-tier labels
//  4. a live UserPermission row carrying the label
//  5. a live Role in the org binding the user and carrying the label
//
// The org must be loaded with its CanBeAccessedBy set.
func (c *Checker) HasPermission(user *models.User, org *models.Organization, label string) bool {
	found, _ := PermissionsExist([]string{label})
	if len(found) == 0 {
		return false
	}
	target := found[0]

	if org.CreatedByID != nil && *org.CreatedByID == user.ID {
		return true
	}

	if !IsCreatorOnly(target) {
		if org.OwnerID != nil && *org.OwnerID == user.ID {
			return true
		}
		for _, u := range org.CanBeAccessedBy {
			if u.ID == user.ID {
				return true
			}
		}
	}

	var grant models.UserPermission
	err := c.db.Where("user_id = ? AND org_id = ?", user.ID, org.ID).First(&grant).Error
	if err == nil && grant.HasPerm(target) {
		return true
	}

	var roles []models.Role
	c.db.Joins("JOIN role_users ON role_users.role_id = roles.id").
		Where("role_users.user_id = ? AND roles.org_id = ?", user.ID, org.ID).
		Find(&roles)
	for i := range roles {
		if roles[i].HasPerm(target) {
			return true
		}
	}

	return false
}

// CanAddCreatorLevelPerms reports whether the user may store the given labels
// on someone in the org: the org creator may store anything; everyone else
// may store only labels outside the creator-only tier.
func (c *Checker) CanAddCreatorLevelPerms(perms []string, org *models.Organization, user *models.User) bool {
	if org.CreatedByID != nil && *org.CreatedByID == user.ID {
		return true
	}
	found, _ := PermissionsExist(perms)
	for _, label := range found {
		if IsCreatorOnly(label) {
			return false
		}
	}
	return true
}

// AddPermissionsToUsers grants the found labels to every user in the org,
// creating the per-(user, org) grant row when missing. The whole bulk is
// atomic: the labels reach everyone or no one. Returns the found and
// not-found partitions of the requested labels.
func (c *Checker) AddPermissionsToUsers(users []models.User, org *models.Organization, perms []string) (added, notFound []string, err error) {
	found, notFound := PermissionsExist(perms)
	if len(found) == 0 {
		return found, notFound, nil
	}

	err = c.db.Transaction(func(tx *gorm.DB) error {
		ids := make([]string, len(users))
		for i, u := range users {
			ids[i] = u.ID.String()
		}
		var existing []models.UserPermission
		if err := tx.Where("org_id = ? AND user_id IN ?", org.ID, ids).Find(&existing).Error; err != nil {
			return err
		}
		byUser := make(map[string]*models.UserPermission, len(existing))
		for i := range existing {
			byUser[existing[i].UserID.String()] = &existing[i]
		}

		for i := range users {
			grant := byUser[users[i].ID.String()]
			if grant == nil {
				grant = &models.UserPermission{UserID: users[i].ID, OrgID: org.ID}
				if err := tx.Create(grant).Error; err != nil {
					return err
				}
			}
			if grant.AddPerms(found) > 0 {
				if err := tx.Model(grant).Update("perms", grant.Perms).Error; err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return found, notFound, nil
}

// RemovePermissionsFromUsers removes the found labels from the users' grant
// rows in the org. Missing grant rows are never created; removing labels a
// user does not hold is a no-op.
func (c *Checker) RemovePermissionsFromUsers(users []models.User, org *models.Organization, perms []string) (removed, notFound []string, err error) {
	found, notFound := PermissionsExist(perms)
	if len(found) == 0 {
		return found, notFound, nil
	}

	ids := make([]string, len(users))
	for i, u := range users {
		ids[i] = u.ID.String()
	}
	var grants []models.UserPermission
	if err := c.db.Where("org_id = ? AND user_id IN ?", org.ID, ids).Find(&grants).Error; err != nil {
		return nil, nil, err
	}
	for i := range grants {
		before := grants[i].Perms
		grants[i].RemovePerms(found)
		if grants[i].Perms == before {
			continue
		}
		if err := c.db.Model(&grants[i]).Update("perms", grants[i].Perms).Error; err != nil {
			return nil, nil, err
		}
	}
	return found, notFound, nil
}

// NormalizeLabels lowercases labels for boundary validation messages.
func NormalizeLabels(perms []string) []string {
	out := make([]string, len(perms))
	for i, p := range perms {
		out[i] = strings.ToLower(p)
	}
	return out
}
