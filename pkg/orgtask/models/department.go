package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Department groups members and tasks under an organization.
// (name, org) is unique among live departments.
type Department struct {
	ID          uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt   time.Time  `gorm:"index" json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	IsDeleted   Flag       `gorm:"softDelete:flag,DeletedAtField:DeletedAt;index" json:"-"`
	DeletedAt   *time.Time `json:"-"`
	Name        string     `gorm:"index;not null" json:"name"`
	Description string     `json:"description"`

	OrgID uuid.UUID     `gorm:"type:uuid;not null;index" json:"org"`
	Org   *Organization `gorm:"foreignKey:OrgID" json:"-"`

	CreatedByID *uuid.UUID `gorm:"type:uuid" json:"created_by,omitempty"`
	CreatedBy   *User      `gorm:"foreignKey:CreatedByID" json:"-"`

	Members         []User `gorm:"many2many:department_members;" json:"members,omitempty"`
	CanBeAccessedBy []User `gorm:"many2many:department_access;" json:"can_be_accessed_by,omitempty"`
}

func (d *Department) BeforeCreate(tx *gorm.DB) error {
	d.ID = newID(d.ID)
	return nil
}
