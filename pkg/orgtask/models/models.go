package models

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/plugin/soft_delete"
)

// Flag is the soft-delete marker shared by every scope model. Rows are never
// removed by the regular delete path; the flag is flipped and DeletedAt is
// stamped. The default read surface filters flagged rows out; use
// db.Unscoped() for the all-rows surface.
type Flag = soft_delete.DeletedAt

// AllModels returns all models for migration
// Note: Organization must be migrated before the models that reference it
func AllModels() []interface{} {
	return []interface{}{
		&User{},
		&Organization{},
		&Department{},
		&Tag{},
		&Task{},
		&Role{},
		&UserPermission{},
	}
}

// AutoMigrate runs GORM auto-migration for all models
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(AllModels()...)
}

// newID assigns a fresh UUID primary key when the caller did not set one.
func newID(id uuid.UUID) uuid.UUID {
	if id == uuid.Nil {
		return uuid.New()
	}
	return id
}
