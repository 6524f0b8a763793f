package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	ActionRequestCreated   = "REQUEST_CREATED"
	ActionRequestUpdated   = "REQUEST_UPDATED"
	ActionRequestSubmitted = "REQUEST_SUBMITTED"
	ActionRequestDeleted   = "REQUEST_DELETED"
	ActionApprovalAction   = "APPROVAL_ACTION"
	ActionHierarchyUpdated = "HIERARCHY_UPDATED"

	ActionDepartmentCreated = "DEPARTMENT_CREATED"
	ActionDepartmentUpdated = "DEPARTMENT_UPDATED"
	ActionDepartmentDeleted = "DEPARTMENT_DELETED"
	ActionAccountLocked     = "ACCOUNT_LOCKED"
	ActionAccountUnlocked   = "ACCOUNT_UNLOCKED"
)

// AuditLog tracks Who, What, and When for critical system changes
type AuditLog struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	UserID    *uuid.UUID `gorm:"type:uuid;index" json:"user_id"` // Nullable gracefully if automated
	User      *User      `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Action    string     `gorm:"type:varchar(50);not null;index" json:"action"`
	EntityID  string     `gorm:"type:varchar(50);index" json:"entity_id"` // Reference string (uuid/config key)
	Metadata  string     `gorm:"type:jsonb" json:"metadata"`              // Serialized JSON payload of the action
	CreatedAt time.Time  `gorm:"index" json:"created_at"`
}

func (a *AuditLog) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
