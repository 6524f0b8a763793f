package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// RequestType enum constants
const (
	RequestTypeCapex = "CAPEX"
	RequestTypeOpex  = "OPEX"
)

// BudgetRequest status enum constants.
// DRAFT and REWORK are the only editable states; FINAL_APPROVED and REJECTED are terminal.
const (
	StatusDraft         = "DRAFT"
	StatusPending       = "PENDING"
	StatusFinalApproved = "FINAL_APPROVED"
	StatusRejected      = "REJECTED"
	StatusRework        = "REWORK"
)

// BudgetRequest represents a CAPEX/OPEX budget request moving through the approval chain.
// The requester owns it until submission; after that only the approval engine mutates
// the status field until a terminal state is reached.
type BudgetRequest struct {
	ID            uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	Type          string          `gorm:"type:varchar(10);not null;index" json:"type"` // CAPEX, OPEX
	Amount        decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"amount"`
	Category      string          `gorm:"type:varchar(100);not null" json:"category"`
	Justification string          `gorm:"type:text" json:"justification"`
	DepartmentID  uuid.UUID       `gorm:"type:uuid;not null;index" json:"department_id"`
	Department    *Department     `gorm:"foreignKey:DepartmentID" json:"department,omitempty"`
	RequesterID   uuid.UUID       `gorm:"type:uuid;not null;index" json:"requester_id"`
	Requester     *User           `gorm:"foreignKey:RequesterID" json:"requester,omitempty"`
	Status        string          `gorm:"type:varchar(20);not null;default:'DRAFT';index" json:"status"`
	CreatedAt     time.Time       `gorm:"index" json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

func (r *BudgetRequest) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// Editable reports whether the request may still be modified by its requester.
func (r *BudgetRequest) Editable() bool {
	return r.Status == StatusDraft || r.Status == StatusRework
}
