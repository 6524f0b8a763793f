package service

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"budgetflow/internal/model"
	"budgetflow/internal/repository"
	ws "budgetflow/internal/websocket"
	"budgetflow/pkg/apperr"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// --- DTOs ---

type DecisionDTO struct {
	Comments string `json:"comments"`
}

type DecisionResult struct {
	Message  string `json:"message"`
	Status   string `json:"status"`
	NextRole string `json:"next_role,omitempty"`
}

type TimelineEntry struct {
	ID            string `json:"id"`
	ApproverID    string `json:"approver_id"`
	ApproverName  string `json:"approver_name,omitempty"`
	ApproverEmail string `json:"approver_email,omitempty"`
	Role          string `json:"role"`
	Decision      string `json:"decision"`
	Comments      string `json:"comments"`
	Timestamp     string `json:"timestamp"`
}

// --- Interface ---

// ApprovalService is the approval engine: it validates decisions against the
// request state and the hierarchy, appends the decision record, updates the
// request status and answers queue/timeline queries.
type ApprovalService interface {
	Approve(ctx context.Context, requestID, actorID, actorRole, comments string) (DecisionResult, error)
	Reject(ctx context.Context, requestID, actorID, actorRole, comments string) (DecisionResult, error)
	Rework(ctx context.Context, requestID, actorID, actorRole, comments string) (DecisionResult, error)
	PendingForRole(ctx context.Context, role string) ([]RequestResponse, error)
	Timeline(ctx context.Context, requestID string) ([]TimelineEntry, error)
}

type approvalService struct {
	tx        repository.TransactionManager
	requests  repository.RequestRepository
	records   repository.ApprovalRecordRepository
	hierarchy repository.HierarchyRepository
	audits    repository.AuditRepository
	cfg       ApprovalConfig
	hub       *ws.Hub
}

func NewApprovalService(
	tx repository.TransactionManager,
	requests repository.RequestRepository,
	records repository.ApprovalRecordRepository,
	hierarchy repository.HierarchyRepository,
	audits repository.AuditRepository,
	cfg ApprovalConfig,
	hub *ws.Hub,
) ApprovalService {
	return &approvalService{
		tx:        tx,
		requests:  requests,
		records:   records,
		hierarchy: hierarchy,
		audits:    audits,
		cfg:       cfg,
		hub:       hub,
	}
}

// --- Implementation ---

func (s *approvalService) Approve(ctx context.Context, requestID, actorID, actorRole, comments string) (DecisionResult, error) {
	return s.decide(ctx, requestID, actorID, actorRole, model.DecisionApproved, comments)
}

func (s *approvalService) Reject(ctx context.Context, requestID, actorID, actorRole, comments string) (DecisionResult, error) {
	return s.decide(ctx, requestID, actorID, actorRole, model.DecisionRejected, comments)
}

func (s *approvalService) Rework(ctx context.Context, requestID, actorID, actorRole, comments string) (DecisionResult, error) {
	return s.decide(ctx, requestID, actorID, actorRole, model.DecisionRework, comments)
}

// decide runs one approval transition. Record insert, status update and audit
// entry commit atomically; any failure leaves the request untouched.
func (s *approvalService) decide(ctx context.Context, requestID, actorID, actorRole, decision, comments string) (DecisionResult, error) {
	id, err := uuid.Parse(requestID)
	if err != nil {
		return DecisionResult{}, apperr.Validation("invalid request id: %v", err)
	}
	approverID, err := uuid.Parse(actorID)
	if err != nil {
		return DecisionResult{}, apperr.Validation("invalid approver id: %v", err)
	}

	if decision != model.DecisionApproved && comments == "" {
		return DecisionResult{}, apperr.Validation("comments are required for %s", decision)
	}

	var result DecisionResult
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		request, err := s.requests.FindByID(txCtx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("request not found")
			}
			return apperr.Persistence(err, "failed to load request")
		}

		if request.Status != model.StatusPending {
			return apperr.InvalidState("request is not in pending status")
		}

		newStatus := model.StatusRejected
		nextRole := ""
		switch decision {
		case model.DecisionApproved:
			roles, err := s.hierarchy.Roles(txCtx)
			if err != nil {
				return apperr.Persistence(err, "failed to load approval hierarchy")
			}
			nextRole, err = NextRole(roles, actorRole, s.cfg.StrictRoles)
			if err != nil {
				return err
			}
			if nextRole != "" {
				newStatus = model.StatusPending
			} else {
				newStatus = model.StatusFinalApproved
			}
		case model.DecisionRework:
			newStatus = model.StatusRework
		}

		record := &model.ApprovalRecord{
			RequestID:  id,
			ApproverID: approverID,
			Role:       actorRole,
			Decision:   decision,
			Comments:   comments,
		}
		if err := s.records.Create(txCtx, record); err != nil {
			return apperr.Persistence(err, "failed to create approval record")
		}

		// Conditional update doubles as the optimistic lock: a concurrent
		// decision that committed first leaves zero matching rows here.
		moved, err := s.requests.UpdateStatus(txCtx, id, []string{model.StatusPending}, newStatus)
		if err != nil {
			return apperr.Persistence(err, "failed to update request status")
		}
		if !moved {
			return apperr.InvalidState("request was decided concurrently")
		}

		metadata, _ := json.Marshal(map[string]interface{}{
			"request_id": requestID,
			"decision":   decision,
			"role":       actorRole,
		})
		entry := &model.AuditLog{
			UserID:   &approverID,
			Action:   model.ActionApprovalAction,
			EntityID: requestID,
			Metadata: string(metadata),
		}
		if err := s.audits.Log(txCtx, entry); err != nil {
			return apperr.Persistence(err, "failed to write audit log")
		}

		result = DecisionResult{Status: newStatus, NextRole: nextRole}
		return nil
	})
	if err != nil {
		return DecisionResult{}, err
	}

	switch {
	case result.Status == model.StatusFinalApproved:
		result.Message = "Request has been fully approved"
	case decision == model.DecisionApproved:
		result.Message = "Request approved and forwarded to next approver"
	case decision == model.DecisionRejected:
		result.Message = "Request has been rejected"
	default:
		result.Message = "Request sent back for rework"
	}

	s.hub.Publish(ws.Event{
		Type:      "APPROVAL_DECISION",
		RequestID: requestID,
		Status:    result.Status,
		NextRole:  result.NextRole,
	})

	return result, nil
}

// PendingForRole computes the work queue of a role by replaying each PENDING
// request's latest approval record against the hierarchy. Requests whose
// owner cannot be determined end up in no queue; they are logged so the stuck
// state stays detectable.
func (s *approvalService) PendingForRole(ctx context.Context, role string) ([]RequestResponse, error) {
	roles, err := s.hierarchy.Roles(ctx)
	if err != nil {
		return nil, apperr.Persistence(err, "failed to load approval hierarchy")
	}

	pending, err := s.requests.ListPending(ctx)
	if err != nil {
		return nil, apperr.Persistence(err, "failed to list pending requests")
	}

	ids := make([]uuid.UUID, 0, len(pending))
	for _, request := range pending {
		ids = append(ids, request.ID)
	}

	latest, err := s.records.LatestByRequests(ctx, ids)
	if err != nil {
		return nil, apperr.Persistence(err, "failed to load approval records")
	}

	queue := make([]RequestResponse, 0)
	for _, request := range pending {
		var latestRecord *model.ApprovalRecord
		if record, ok := latest[request.ID]; ok {
			latestRecord = &record
		}

		owner, err := OwnerRole(roles, latestRecord, s.cfg)
		if err != nil || owner == "" {
			log.Printf("pending request %s has no resolvable owner role: %v", request.ID, err)
			continue
		}
		if owner == role {
			queue = append(queue, toRequestResponse(request))
		}
	}

	return queue, nil
}

// Timeline returns the full decision history of a request, oldest first.
func (s *approvalService) Timeline(ctx context.Context, requestID string) ([]TimelineEntry, error) {
	id, err := uuid.Parse(requestID)
	if err != nil {
		return nil, apperr.Validation("invalid request id: %v", err)
	}

	if _, err := s.requests.FindByID(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("request not found")
		}
		return nil, apperr.Persistence(err, "failed to load request")
	}

	records, err := s.records.ListByRequest(ctx, id)
	if err != nil {
		return nil, apperr.Persistence(err, "failed to load approval records")
	}

	timeline := make([]TimelineEntry, 0, len(records))
	for _, record := range records {
		entry := TimelineEntry{
			ID:         record.ID.String(),
			ApproverID: record.ApproverID.String(),
			Role:       record.Role,
			Decision:   record.Decision,
			Comments:   record.Comments,
			Timestamp:  record.CreatedAt.Format(time.RFC3339),
		}
		if record.Approver != nil {
			entry.ApproverName = record.Approver.Name
			entry.ApproverEmail = record.Approver.Email
		}
		timeline = append(timeline, entry)
	}

	return timeline, nil
}
