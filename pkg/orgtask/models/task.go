package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TaskPriority is the priority level of a task
type TaskPriority string

const (
	PriorityLow      TaskPriority = "low"
	PriorityMedium   TaskPriority = "medium"
	PriorityHigh     TaskPriority = "high"
	PriorityCritical TaskPriority = "critical"
)

// TaskStatus is the lifecycle state of a task
type TaskStatus string

const (
	StatusPending    TaskStatus = "pending"
	StatusInProgress TaskStatus = "in_progress"
	StatusCompleted  TaskStatus = "completed"
	StatusCancelled  TaskStatus = "cancelled"
)

// Task is a unit of work inside an organization, optionally attached to a
// department and a parent task. Tags and the department must belong to the
// task's organization; (name, org) is unique among live tasks.
type Task struct {
	ID          uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt   time.Time  `gorm:"index" json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	IsDeleted   Flag       `gorm:"softDelete:flag,DeletedAtField:DeletedAt;index" json:"-"`
	DeletedAt   *time.Time `json:"-"`
	Name        string     `gorm:"index;not null" json:"name"`
	Description string     `json:"description"`

	OrgID uuid.UUID     `gorm:"type:uuid;not null;index" json:"org"`
	Org   *Organization `gorm:"foreignKey:OrgID" json:"-"`

	DepartID *uuid.UUID  `gorm:"type:uuid;index" json:"depart,omitempty"`
	Depart   *Department `gorm:"foreignKey:DepartID" json:"-"`

	ParentTaskID *uuid.UUID `gorm:"type:uuid;index" json:"parent_task,omitempty"`
	ParentTask   *Task      `gorm:"foreignKey:ParentTaskID" json:"-"`

	DueDate  *time.Time   `json:"due_date,omitempty"`
	Priority TaskPriority `gorm:"type:varchar(50);default:'medium'" json:"priority"`
	Status   TaskStatus   `gorm:"type:varchar(50);default:'pending'" json:"status"`

	// Durations in seconds
	EstimatedDuration *int64 `json:"estimated_duration,omitempty"`
	ActualDuration    *int64 `json:"actual_duration,omitempty"`

	AllowAutoStatusUpdate bool `gorm:"default:false" json:"allow_auto_status_update"`

	CreatedByID *uuid.UUID `gorm:"type:uuid" json:"created_by,omitempty"`
	CreatedBy   *User      `gorm:"foreignKey:CreatedByID" json:"-"`

	AssignedTo      []User `gorm:"many2many:task_assignees;" json:"assigned_to,omitempty"`
	Tags            []Tag  `gorm:"many2many:task_tags;" json:"tags,omitempty"`
	CanBeAccessedBy []User `gorm:"many2many:task_access;" json:"can_be_accessed_by,omitempty"`
}

func (t *Task) BeforeCreate(tx *gorm.DB) error {
	t.ID = newID(t.ID)
	return nil
}

// ValidPriority reports whether p is one of the supported priority levels.
func ValidPriority(p TaskPriority) bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return true
	}
	return false
}

// ValidStatus reports whether s is one of the supported task states.
func ValidStatus(s TaskStatus) bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}
