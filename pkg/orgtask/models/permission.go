package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// UserPermission holds the direct permission grants of one user in one
// organization. (user, org) is unique among live rows: at most one record per
// principal per organization.
type UserPermission struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	IsDeleted Flag       `gorm:"softDelete:flag,DeletedAtField:DeletedAt;index" json:"-"`
	DeletedAt *time.Time `json:"-"`

	UserID uuid.UUID `gorm:"type:uuid;not null;index" json:"user"`
	User   *User     `gorm:"foreignKey:UserID" json:"-"`

	OrgID uuid.UUID     `gorm:"type:uuid;not null;index" json:"org"`
	Org   *Organization `gorm:"foreignKey:OrgID" json:"-"`

	Perms string `json:"-"`

	CreatedByID *uuid.UUID `gorm:"type:uuid" json:"created_by,omitempty"`
	CreatedBy   *User      `gorm:"foreignKey:CreatedByID" json:"-"`

	CanBeAccessedBy []User `gorm:"many2many:user_permission_access;" json:"can_be_accessed_by,omitempty"`
}

func (p *UserPermission) BeforeCreate(tx *gorm.DB) error {
	p.ID = newID(p.ID)
	return nil
}

// GetPerms returns the stored permission labels as a set-like slice.
func (p *UserPermission) GetPerms() []string {
	return splitPerms(p.Perms)
}

// SetPerms replaces the stored labels.
func (p *UserPermission) SetPerms(perms []string) {
	p.Perms = joinPerms(perms)
}

// AddPerms adds the given labels, skipping ones already present.
// Returns the number of labels actually added.
func (p *UserPermission) AddPerms(perms []string) int {
	merged, added := addPerms(p.GetPerms(), perms)
	if added > 0 {
		p.SetPerms(merged)
	}
	return added
}

// RemovePerms removes the given labels if present.
func (p *UserPermission) RemovePerms(perms []string) {
	p.SetPerms(removePerms(p.GetPerms(), perms))
}

// HasPerm reports whether the grant carries the label.
func (p *UserPermission) HasPerm(label string) bool {
	return containsPerm(p.GetPerms(), label)
}

// The serialized comma-separated representation is a storage detail; the
// public contract is "set of labels, no duplicates, order insignificant".

func splitPerms(s string) []string {
	if s == "" {
		return nil
	}
	var perms []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			perms = append(perms, p)
		}
	}
	return perms
}

func joinPerms(perms []string) string {
	return strings.Join(perms, ",")
}

func containsPerm(perms []string, label string) bool {
	for _, p := range perms {
		if p == label {
			return true
		}
	}
	return false
}

func addPerms(existing, toAdd []string) ([]string, int) {
	added := 0
	for _, p := range toAdd {
		if !containsPerm(existing, p) {
			existing = append(existing, p)
			added++
		}
	}
	return existing, added
}

func removePerms(existing, toRemove []string) []string {
	var kept []string
	for _, p := range existing {
		if !containsPerm(toRemove, p) {
			kept = append(kept, p)
		}
	}
	return kept
}
