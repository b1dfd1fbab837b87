package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User represents a principal in the system. The access list on a user
// expresses "who may act on this user's behalf"; the created_by reference
// records the actor who provisioned the account. Neither relation is
// ownership: deleting a referenced user nulls or unbinds it.
type User struct {
	ID           uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	IsDeleted    Flag       `gorm:"softDelete:flag,DeletedAtField:DeletedAt;index" json:"-"`
	DeletedAt    *time.Time `json:"-"`
	Email        string     `gorm:"index;not null" json:"email"`
	FirstName    string     `gorm:"not null" json:"first_name"`
	LastName     string     `json:"last_name"`
	PasswordHash string     `json:"-"`
	IsActive     bool       `gorm:"default:true" json:"is_active"`
	IsStaff      bool       `gorm:"default:false" json:"-"`
	LastLogin    *time.Time `json:"last_login,omitempty"`

	CreatedByID *uuid.UUID `gorm:"type:uuid" json:"created_by,omitempty"`
	CreatedBy   *User      `gorm:"foreignKey:CreatedByID" json:"-"`

	// Users allowed to act on this account, short of creator status.
	CanBeAccessedBy []User `gorm:"many2many:user_access;joinForeignKey:UserID;joinReferences:AccessorID" json:"can_be_accessed_by,omitempty"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	u.ID = newID(u.ID)
	return nil
}

// FullName joins the user's display names for mail templates.
func (u *User) FullName() string {
	if u.LastName == "" {
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}
