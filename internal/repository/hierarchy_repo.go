package repository

import (
	"context"
	"encoding/json"

	"budgetflow/internal/model"

	"gorm.io/gorm"
)

// HierarchyRepository persists the approval hierarchy as a versioned
// system_config row. Updates are compare-and-swap on the version column so
// concurrent admin edits cannot silently overwrite each other.
type HierarchyRepository interface {
	Get(ctx context.Context) (*model.SystemConfig, error)
	Roles(ctx context.Context) ([]string, error)
	// Update writes the new role list if the stored version still equals
	// expectedVersion. Returns false on a version conflict.
	Update(ctx context.Context, roles []string, expectedVersion int) (bool, error)
}

type hierarchyRepository struct {
	db *gorm.DB
}

func NewHierarchyRepository(db *gorm.DB) HierarchyRepository {
	return &hierarchyRepository{db: db}
}

func (r *hierarchyRepository) Get(ctx context.Context) (*model.SystemConfig, error) {
	var cfg model.SystemConfig
	if err := GetDB(ctx, r.db).First(&cfg, "key = ?", model.ConfigKeyApprovalHierarchy).Error; err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (r *hierarchyRepository) Roles(ctx context.Context) ([]string, error) {
	cfg, err := r.Get(ctx)
	if err != nil {
		return nil, err
	}

	var roles []string
	if err := json.Unmarshal([]byte(cfg.Value), &roles); err != nil {
		return nil, err
	}
	return roles, nil
}

func (r *hierarchyRepository) Update(ctx context.Context, roles []string, expectedVersion int) (bool, error) {
	value, err := json.Marshal(roles)
	if err != nil {
		return false, err
	}

	result := GetDB(ctx, r.db).Model(&model.SystemConfig{}).
		Where("key = ? AND version = ?", model.ConfigKeyApprovalHierarchy, expectedVersion).
		Updates(map[string]interface{}{
			"value":   string(value),
			"version": expectedVersion + 1,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
