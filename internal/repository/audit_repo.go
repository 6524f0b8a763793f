package repository

import (
	"context"

	"budgetflow/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type AuditRepository interface {
	Log(ctx context.Context, entry *model.AuditLog) error
	List(ctx context.Context, limit int) ([]model.AuditLog, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]model.AuditLog, error)
	ListByAction(ctx context.Context, action string, limit int) ([]model.AuditLog, error)
}

type auditRepository struct {
	db *gorm.DB
}

func NewAuditRepository(db *gorm.DB) AuditRepository {
	return &auditRepository{db: db}
}

func (r *auditRepository) Log(ctx context.Context, entry *model.AuditLog) error {
	return GetDB(ctx, r.db).Create(entry).Error
}

func (r *auditRepository) List(ctx context.Context, limit int) ([]model.AuditLog, error) {
	var logs []model.AuditLog
	err := GetDB(ctx, r.db).Preload("User").Order("created_at DESC").Limit(limit).Find(&logs).Error
	return logs, err
}

func (r *auditRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]model.AuditLog, error) {
	var logs []model.AuditLog
	err := GetDB(ctx, r.db).Preload("User").
		Where("user_id = ?", userID).
		Order("created_at DESC").Limit(limit).Find(&logs).Error
	return logs, err
}

func (r *auditRepository) ListByAction(ctx context.Context, action string, limit int) ([]model.AuditLog, error) {
	var logs []model.AuditLog
	err := GetDB(ctx, r.db).Preload("User").
		Where("action = ?", action).
		Order("created_at DESC").Limit(limit).Find(&logs).Error
	return logs, err
}
