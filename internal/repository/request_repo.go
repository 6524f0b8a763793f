package repository

import (
	"context"

	"budgetflow/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// RequestRepository defines the interface for data access of BudgetRequest entities
type RequestRepository interface {
	Create(ctx context.Context, req *model.BudgetRequest) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.BudgetRequest, error)
	FindByIDWithRelations(ctx context.Context, id uuid.UUID) (*model.BudgetRequest, error)
	ListByRequester(ctx context.Context, requesterID uuid.UUID) ([]model.BudgetRequest, error)
	List(ctx context.Context, status string, page, limit int) ([]model.BudgetRequest, int64, error)
	ListPending(ctx context.Context) ([]model.BudgetRequest, error)
	Update(ctx context.Context, req *model.BudgetRequest) error
	// UpdateStatus conditionally moves a request from one of fromStatuses to
	// toStatus. Returns false when no row matched — the optimistic-lock signal
	// that another decision won the race.
	UpdateStatus(ctx context.Context, id uuid.UUID, fromStatuses []string, toStatus string) (bool, error)
	// DeleteDraft removes a request only while it is still in DRAFT.
	DeleteDraft(ctx context.Context, id uuid.UUID) (bool, error)
	CountByStatus(ctx context.Context, status string) (int64, error)
	Count(ctx context.Context) (int64, error)
}

type requestRepository struct {
	db *gorm.DB
}

func NewRequestRepository(db *gorm.DB) RequestRepository {
	return &requestRepository{db: db}
}

func (r *requestRepository) Create(ctx context.Context, req *model.BudgetRequest) error {
	return GetDB(ctx, r.db).Create(req).Error
}

func (r *requestRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.BudgetRequest, error) {
	var req model.BudgetRequest
	if err := GetDB(ctx, r.db).First(&req, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *requestRepository) FindByIDWithRelations(ctx context.Context, id uuid.UUID) (*model.BudgetRequest, error) {
	var req model.BudgetRequest
	if err := GetDB(ctx, r.db).Preload("Requester").Preload("Department").First(&req, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *requestRepository) ListByRequester(ctx context.Context, requesterID uuid.UUID) ([]model.BudgetRequest, error) {
	var requests []model.BudgetRequest
	err := GetDB(ctx, r.db).
		Preload("Department").
		Where("requester_id = ?", requesterID).
		Order("created_at DESC").
		Find(&requests).Error
	return requests, err
}

func (r *requestRepository) List(ctx context.Context, status string, page, limit int) ([]model.BudgetRequest, int64, error) {
	var requests []model.BudgetRequest
	var total int64

	db := GetDB(ctx, r.db)
	query := db.Model(&model.BudgetRequest{})
	if status != "" {
		query = query.Where("status = ?", status)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	fetchQuery := db.Preload("Requester").Preload("Department")
	if status != "" {
		fetchQuery = fetchQuery.Where("status = ?", status)
	}
	if err := fetchQuery.Order("created_at DESC").Offset(offset).Limit(limit).Find(&requests).Error; err != nil {
		return nil, 0, err
	}

	return requests, total, nil
}

// ListPending returns all PENDING requests oldest first, so reviewer queues
// are FIFO-fair.
func (r *requestRepository) ListPending(ctx context.Context) ([]model.BudgetRequest, error) {
	var requests []model.BudgetRequest
	err := GetDB(ctx, r.db).
		Preload("Requester").
		Preload("Department").
		Where("status = ?", model.StatusPending).
		Order("created_at ASC").
		Find(&requests).Error
	return requests, err
}

func (r *requestRepository) Update(ctx context.Context, req *model.BudgetRequest) error {
	return GetDB(ctx, r.db).Save(req).Error
}

func (r *requestRepository) UpdateStatus(ctx context.Context, id uuid.UUID, fromStatuses []string, toStatus string) (bool, error) {
	result := GetDB(ctx, r.db).Model(&model.BudgetRequest{}).
		Where("id = ? AND status IN ?", id, fromStatuses).
		Update("status", toStatus)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *requestRepository) DeleteDraft(ctx context.Context, id uuid.UUID) (bool, error) {
	result := GetDB(ctx, r.db).
		Where("id = ? AND status = ?", id, model.StatusDraft).
		Delete(&model.BudgetRequest{})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *requestRepository) CountByStatus(ctx context.Context, status string) (int64, error) {
	var count int64
	err := GetDB(ctx, r.db).Model(&model.BudgetRequest{}).Where("status = ?", status).Count(&count).Error
	return count, err
}

func (r *requestRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := GetDB(ctx, r.db).Model(&model.BudgetRequest{}).Count(&count).Error
	return count, err
}
