package repository

import (
	"context"

	"budgetflow/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ApprovalRecordRepository is the append-only store of decisions. Records are
// never updated or deleted.
type ApprovalRecordRepository interface {
	Create(ctx context.Context, record *model.ApprovalRecord) error
	ListByRequest(ctx context.Context, requestID uuid.UUID) ([]model.ApprovalRecord, error)
	// LatestByRequests returns the most recent record for each of the given
	// requests. Requests without any record are absent from the map.
	LatestByRequests(ctx context.Context, requestIDs []uuid.UUID) (map[uuid.UUID]model.ApprovalRecord, error)
}

type approvalRecordRepository struct {
	db *gorm.DB
}

func NewApprovalRecordRepository(db *gorm.DB) ApprovalRecordRepository {
	return &approvalRecordRepository{db: db}
}

func (r *approvalRecordRepository) Create(ctx context.Context, record *model.ApprovalRecord) error {
	return GetDB(ctx, r.db).Create(record).Error
}

func (r *approvalRecordRepository) ListByRequest(ctx context.Context, requestID uuid.UUID) ([]model.ApprovalRecord, error) {
	var records []model.ApprovalRecord
	err := GetDB(ctx, r.db).
		Preload("Approver").
		Where("request_id = ?", requestID).
		Order("created_at ASC").
		Find(&records).Error
	return records, err
}

func (r *approvalRecordRepository) LatestByRequests(ctx context.Context, requestIDs []uuid.UUID) (map[uuid.UUID]model.ApprovalRecord, error) {
	latest := make(map[uuid.UUID]model.ApprovalRecord, len(requestIDs))
	if len(requestIDs) == 0 {
		return latest, nil
	}

	var records []model.ApprovalRecord
	err := GetDB(ctx, r.db).
		Where("request_id IN ?", requestIDs).
		Order("created_at DESC").
		Find(&records).Error
	if err != nil {
		return nil, err
	}

	// Records arrive newest first, so the first one seen per request wins.
	for _, record := range records {
		if _, ok := latest[record.RequestID]; !ok {
			latest[record.RequestID] = record
		}
	}

	return latest, nil
}
