// Package access implements the authorization core: the elementary ownership
// predicates, the closed permission registry, and the evaluator that combines
// creator status, ownership, access lists, role bindings and direct grants.
package access

import (
	"github.com/google/uuid"

	"github.com/Romulad/orgs-task-api/pkg/orgtask/models"
)

// Subject is the ownership-delegation view of a scope row: the row identity
// plus the three delegation relations that may or may not exist on the
// underlying model. A nil field means the attribute does not exist on that
// scope and contributes false to every predicate.
type Subject struct {
	ID         uuid.UUID
	Owner      *uuid.UUID
	CreatedBy  *uuid.UUID
	AccessList []uuid.UUID
}

// HasAccess reports whether the user may act on the subject: the subject is
// the user itself, the user owns it, the user created it, or the user is on
// its access list.
func HasAccess(s Subject, userID uuid.UUID) bool {
	if s.ID == userID {
		return true
	}
	if s.Owner != nil && *s.Owner == userID {
		return true
	}
	if s.CreatedBy != nil && *s.CreatedBy == userID {
		return true
	}
	for _, id := range s.AccessList {
		if id == userID {
			return true
		}
	}
	return false
}

// HasCreatorAccess is the stricter predicate reserved to the lineage of
// creation: only the row itself or its creator passes.
func HasCreatorAccess(s Subject, userID uuid.UUID) bool {
	if s.ID == userID {
		return true
	}
	return s.CreatedBy != nil && *s.CreatedBy == userID
}

// HasAccessAll is the conjunction of HasAccess over the list.
func HasAccessAll(subjects []Subject, userID uuid.UUID) bool {
	for _, s := range subjects {
		if !HasAccess(s, userID) {
			return false
		}
	}
	return true
}

// HasCreatorAccessAll is the conjunction of HasCreatorAccess over the list.
func HasCreatorAccessAll(subjects []Subject, userID uuid.UUID) bool {
	for _, s := range subjects {
		if !HasCreatorAccess(s, userID) {
			return false
		}
	}
	return true
}

func accessIDs(users []models.User) []uuid.UUID {
	if len(users) == 0 {
		return nil
	}
	ids := make([]uuid.UUID, len(users))
	for i, u := range users {
		ids[i] = u.ID
	}
	return ids
}

// ForUser builds the subject of a principal. Users have no owner attribute.
func ForUser(u *models.User) Subject {
	return Subject{
		ID:         u.ID,
		CreatedBy:  u.CreatedByID,
		AccessList: accessIDs(u.CanBeAccessedBy),
	}
}

// ForUsers lifts ForUser over a list.
func ForUsers(users []models.User) []Subject {
	subjects := make([]Subject, len(users))
	for i := range users {
		subjects[i] = ForUser(&users[i])
	}
	return subjects
}

// ForOrg builds the subject of an organization. The org's CanBeAccessedBy
// set must be loaded for access-list checks to see it.
func ForOrg(o *models.Organization) Subject {
	return Subject{
		ID:         o.ID,
		Owner:      o.OwnerID,
		CreatedBy:  o.CreatedByID,
		AccessList: accessIDs(o.CanBeAccessedBy),
	}
}

// ForDepartment builds the subject of a department.
func ForDepartment(d *models.Department) Subject {
	return Subject{
		ID:         d.ID,
		CreatedBy:  d.CreatedByID,
		AccessList: accessIDs(d.CanBeAccessedBy),
	}
}

// ForTag builds the subject of a tag.
func ForTag(t *models.Tag) Subject {
	return Subject{
		ID:         t.ID,
		CreatedBy:  t.CreatedByID,
		AccessList: accessIDs(t.CanBeAccessedBy),
	}
}

// ForTask builds the subject of a task.
func ForTask(t *models.Task) Subject {
	return Subject{
		ID:         t.ID,
		CreatedBy:  t.CreatedByID,
		AccessList: accessIDs(t.CanBeAccessedBy),
	}
}

// ForRole builds the subject of a role.
func ForRole(r *models.Role) Subject {
	return Subject{
		ID:         r.ID,
		CreatedBy:  r.CreatedByID,
		AccessList: accessIDs(r.CanBeAccessedBy),
	}
}
