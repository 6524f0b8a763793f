package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Role identifiers. REQUESTOR submits requests, SUPER_ADMIN administers the
// system, the rest form the approval chain (in configurable order, see SystemConfig).
const (
	RoleRequestor        = "REQUESTOR"
	RoleTechLead         = "TECH_LEAD"
	RoleDeptHead         = "DEPT_HEAD"
	RoleFinanceAdmin     = "FINANCE_ADMIN"
	RoleFPNA             = "FPNA"
	RolePrincipalFinance = "PRINCIPAL_FINANCE"
	RoleCFO              = "CFO"
	RoleSuperAdmin       = "SUPER_ADMIN"
)

// KnownRoles lists every recognized role identifier.
var KnownRoles = []string{
	RoleRequestor,
	RoleTechLead,
	RoleDeptHead,
	RoleFinanceAdmin,
	RoleFPNA,
	RolePrincipalFinance,
	RoleCFO,
	RoleSuperAdmin,
}

// ApproverRoles lists roles allowed to act on pending approvals.
var ApproverRoles = []string{
	RoleTechLead,
	RoleDeptHead,
	RoleFinanceAdmin,
	RoleFPNA,
	RolePrincipalFinance,
	RoleCFO,
	RoleSuperAdmin,
}

// IsKnownRole reports whether role is a recognized role identifier.
func IsKnownRole(role string) bool {
	for _, r := range KnownRoles {
		if r == role {
			return true
		}
	}
	return false
}

// User represents the central user entity for logic and database structure
type User struct {
	ID             uuid.UUID   `gorm:"type:uuid;primaryKey" json:"id"`
	Name           string      `gorm:"type:varchar(255);not null" json:"name"`
	Email          string      `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	Password       string      `gorm:"type:varchar(255);not null" json:"-"` // Omit password hash from JSON responses
	Role           string      `gorm:"type:varchar(50);not null" json:"role"`
	DepartmentID   *uuid.UUID  `gorm:"type:uuid;index" json:"department_id"`
	Department     *Department `gorm:"foreignKey:DepartmentID" json:"department,omitempty"`
	IsLocked       bool        `gorm:"default:false" json:"is_locked"`
	FailedAttempts int         `gorm:"default:0" json:"-"`
	CreatedAt      time.Time   `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time   `gorm:"autoUpdateTime" json:"updated_at"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}
