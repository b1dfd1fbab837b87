package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Role binds a set of permission labels to a set of users within an
// organization. (name, org) is unique among live roles. The labels are stored
// comma-separated; use the PermSet helpers, never the raw column.
type Role struct {
	ID          uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt   time.Time  `gorm:"index" json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	IsDeleted   Flag       `gorm:"softDelete:flag,DeletedAtField:DeletedAt;index" json:"-"`
	DeletedAt   *time.Time `json:"-"`
	Name        string     `gorm:"index;not null" json:"name"`
	Description string     `json:"description"`

	OrgID uuid.UUID     `gorm:"type:uuid;not null;index" json:"org"`
	Org   *Organization `gorm:"foreignKey:OrgID" json:"-"`

	Perms string `json:"-"`

	CreatedByID *uuid.UUID `gorm:"type:uuid" json:"created_by,omitempty"`
	CreatedBy   *User      `gorm:"foreignKey:CreatedByID" json:"-"`

	Users           []User `gorm:"many2many:role_users;" json:"users,omitempty"`
	CanBeAccessedBy []User `gorm:"many2many:role_access;" json:"can_be_accessed_by,omitempty"`
}

func (r *Role) BeforeCreate(tx *gorm.DB) error {
	r.ID = newID(r.ID)
	return nil
}

// GetPerms returns the role's permission labels as a set-like slice.
func (r *Role) GetPerms() []string {
	return splitPerms(r.Perms)
}

// SetPerms replaces the stored labels.
func (r *Role) SetPerms(perms []string) {
	r.Perms = joinPerms(perms)
}

// AddPerms adds the given labels, skipping ones already present.
// Returns the number of labels actually added.
func (r *Role) AddPerms(perms []string) int {
	merged, added := addPerms(r.GetPerms(), perms)
	if added > 0 {
		r.SetPerms(merged)
	}
	return added
}

// RemovePerms removes the given labels if present.
func (r *Role) RemovePerms(perms []string) {
	r.SetPerms(removePerms(r.GetPerms(), perms))
}

// HasPerm reports whether the role carries the label.
func (r *Role) HasPerm(label string) bool {
	return containsPerm(r.GetPerms(), label)
}
