package service

import (
	"context"

	"budgetflow/internal/model"
	"budgetflow/internal/repository"
	"budgetflow/pkg/apperr"

	"github.com/google/uuid"
)

type AuditLogResponse struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id,omitempty"`
	UserName  string `json:"user_name,omitempty"`
	UserEmail string `json:"user_email,omitempty"`
	Action    string `json:"action"`
	EntityID  string `json:"entity_id"`
	Metadata  string `json:"metadata"`
	CreatedAt string `json:"created_at"`
}

type AuditService interface {
	List(ctx context.Context, limit int) ([]AuditLogResponse, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]AuditLogResponse, error)
	ListByAction(ctx context.Context, action string, limit int) ([]AuditLogResponse, error)
}

type auditService struct {
	audits repository.AuditRepository
}

func NewAuditService(audits repository.AuditRepository) AuditService {
	return &auditService{audits: audits}
}

func (s *auditService) List(ctx context.Context, limit int) ([]AuditLogResponse, error) {
	logs, err := s.audits.List(ctx, limit)
	if err != nil {
		return nil, apperr.Persistence(err, "failed to list audit logs")
	}
	return toAuditResponses(logs), nil
}

func (s *auditService) ListByUser(ctx context.Context, userID string, limit int) ([]AuditLogResponse, error) {
	id, err := uuid.Parse(userID)
	if err != nil {
		return nil, apperr.Validation("invalid user id: %v", err)
	}

	logs, err := s.audits.ListByUser(ctx, id, limit)
	if err != nil {
		return nil, apperr.Persistence(err, "failed to list audit logs")
	}
	return toAuditResponses(logs), nil
}

func (s *auditService) ListByAction(ctx context.Context, action string, limit int) ([]AuditLogResponse, error) {
	logs, err := s.audits.ListByAction(ctx, action, limit)
	if err != nil {
		return nil, apperr.Persistence(err, "failed to list audit logs")
	}
	return toAuditResponses(logs), nil
}

func toAuditResponses(logs []model.AuditLog) []AuditLogResponse {
	result := make([]AuditLogResponse, 0, len(logs))
	for _, l := range logs {
		entry := AuditLogResponse{
			ID:        l.ID.String(),
			Action:    l.Action,
			EntityID:  l.EntityID,
			Metadata:  l.Metadata,
			CreatedAt: l.CreatedAt.Format("2006-01-02 15:04:05"),
		}
		if l.UserID != nil {
			entry.UserID = l.UserID.String()
		}
		if l.User != nil {
			entry.UserName = l.User.Name
			entry.UserEmail = l.User.Email
		}
		result = append(result, entry)
	}
	return result
}
