package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Decision enum constants
const (
	DecisionApproved = "APPROVED"
	DecisionRejected = "REJECTED"
	DecisionRework   = "REWORK"
)

// ApprovalRecord is one decision in a request's approval history. Records are
// append-only and immutable; the latest record (by created_at) determines where
// in the hierarchy the request currently sits. Role is captured at decision time
// rather than resolved from the approver, preserving historical accuracy if the
// approver's role changes later.
type ApprovalRecord struct {
	ID         uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	RequestID  uuid.UUID      `gorm:"type:uuid;not null;index" json:"request_id"`
	Request    *BudgetRequest `gorm:"foreignKey:RequestID" json:"-"`
	ApproverID uuid.UUID      `gorm:"type:uuid;not null;index" json:"approver_id"`
	Approver   *User          `gorm:"foreignKey:ApproverID" json:"approver,omitempty"`
	Role       string         `gorm:"type:varchar(50);not null" json:"role"`
	Decision   string         `gorm:"type:varchar(20);not null" json:"decision"` // APPROVED, REJECTED, REWORK
	Comments   string         `gorm:"type:text" json:"comments"`
	CreatedAt  time.Time      `gorm:"index" json:"created_at"`
}

func (r *ApprovalRecord) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}
