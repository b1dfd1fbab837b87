package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Organization is the root scope every other resource hangs off.
// (name, owner) is unique among live organizations; a soft-deleted
// organization never blocks name reuse, so the pair is rechecked against the
// live surface on create and update instead of being a DB constraint.
type Organization struct {
	ID          uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt   time.Time  `gorm:"index" json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	IsDeleted   Flag       `gorm:"softDelete:flag,DeletedAtField:DeletedAt;index" json:"-"`
	DeletedAt   *time.Time `json:"-"`
	Name        string     `gorm:"index;not null" json:"name"`
	Description string     `json:"description"`

	OwnerID *uuid.UUID `gorm:"type:uuid" json:"owner,omitempty"`
	Owner   *User      `gorm:"foreignKey:OwnerID" json:"-"`

	CreatedByID *uuid.UUID `gorm:"type:uuid" json:"created_by,omitempty"`
	CreatedBy   *User      `gorm:"foreignKey:CreatedByID" json:"-"`

	Members         []User `gorm:"many2many:organization_members;" json:"members,omitempty"`
	CanBeAccessedBy []User `gorm:"many2many:organization_access;" json:"can_be_accessed_by,omitempty"`
}

func (o *Organization) BeforeCreate(tx *gorm.DB) error {
	o.ID = newID(o.ID)
	return nil
}

// MissingMembers returns the users from the given list that are not yet in
// the organization's loaded member set. The caller persists the additions;
// the diff is also what gets an invitation notification.
func (o *Organization) MissingMembers(users []User) []User {
	existing := make(map[uuid.UUID]bool, len(o.Members))
	for _, m := range o.Members {
		existing[m.ID] = true
	}
	var missing []User
	for _, u := range users {
		if !existing[u.ID] {
			missing = append(missing, u)
		}
	}
	return missing
}
