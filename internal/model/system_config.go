package model

import "time"

// SystemConfig keys
const (
	ConfigKeyApprovalHierarchy = "approval_hierarchy"
)

// DefaultApprovalHierarchy is the approval chain seeded on first startup.
// Position i must approve before position i+1 acts.
var DefaultApprovalHierarchy = []string{
	RoleTechLead,
	RoleDeptHead,
	RoleFinanceAdmin,
	RoleFPNA,
	RolePrincipalFinance,
	RoleCFO,
}

// SystemConfig is a versioned global configuration row. Version increments on
// every write and acts as the compare-and-swap guard against concurrent admin
// edits.
type SystemConfig struct {
	Key       string    `gorm:"type:varchar(100);primaryKey" json:"key"`
	Value     string    `gorm:"type:jsonb;not null" json:"value"`
	Version   int       `gorm:"not null;default:1" json:"version"`
	UpdatedAt time.Time `json:"updated_at"`
}
