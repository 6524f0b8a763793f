package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"budgetflow/internal/model"
	"budgetflow/internal/repository"
	ws "budgetflow/internal/websocket"
	"budgetflow/pkg/apperr"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// --- DTOs ---

type CreateRequestDTO struct {
	Type          string `json:"type" binding:"required,oneof=CAPEX OPEX"`
	Amount        string `json:"amount" binding:"required"`
	Category      string `json:"category" binding:"required"`
	Justification string `json:"justification" binding:"required"`
	DepartmentID  string `json:"department_id" binding:"required"`
}

type UpdateRequestDTO struct {
	Type          *string `json:"type"`
	Amount        *string `json:"amount"`
	Category      *string `json:"category"`
	Justification *string `json:"justification"`
}

type RequestResponse struct {
	ID             string `json:"id"`
	Type           string `json:"type"`
	Amount         string `json:"amount"`
	Category       string `json:"category"`
	Justification  string `json:"justification"`
	Status         string `json:"status"`
	DepartmentID   string `json:"department_id"`
	DepartmentName string `json:"department_name,omitempty"`
	RequesterID    string `json:"requester_id"`
	RequesterName  string `json:"requester_name,omitempty"`
	RequesterEmail string `json:"requester_email,omitempty"`
	CreatedAt      string `json:"created_at"`
	UpdatedAt      string `json:"updated_at"`
}

// --- Interface ---

type RequestService interface {
	CreateRequest(ctx context.Context, actorID string, req CreateRequestDTO) (RequestResponse, error)
	GetRequest(ctx context.Context, id string) (RequestResponse, error)
	ListByRequester(ctx context.Context, requesterID string) ([]RequestResponse, error)
	ListAll(ctx context.Context, status string, page, limit int) ([]RequestResponse, int64, error)
	UpdateRequest(ctx context.Context, id, actorID, actorRole string, req UpdateRequestDTO) (RequestResponse, error)
	SubmitRequest(ctx context.Context, id, actorID, actorRole string) (RequestResponse, error)
	DeleteRequest(ctx context.Context, id, actorID, actorRole string) error
}

type requestService struct {
	tx          repository.TransactionManager
	requests    repository.RequestRepository
	departments repository.DepartmentRepository
	audits      repository.AuditRepository
	hub         *ws.Hub
}

func NewRequestService(
	tx repository.TransactionManager,
	requests repository.RequestRepository,
	departments repository.DepartmentRepository,
	audits repository.AuditRepository,
	hub *ws.Hub,
) RequestService {
	return &requestService{
		tx:          tx,
		requests:    requests,
		departments: departments,
		audits:      audits,
		hub:         hub,
	}
}

// --- Implementation ---

func (s *requestService) CreateRequest(ctx context.Context, actorID string, req CreateRequestDTO) (RequestResponse, error) {
	requesterID, err := uuid.Parse(actorID)
	if err != nil {
		return RequestResponse{}, apperr.Validation("invalid requester id: %v", err)
	}

	departmentID, err := uuid.Parse(req.DepartmentID)
	if err != nil {
		return RequestResponse{}, apperr.Validation("invalid department id: %v", err)
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		return RequestResponse{}, apperr.Validation("invalid amount: %v", err)
	}
	if amount.IsNegative() {
		return RequestResponse{}, apperr.Validation("amount must not be negative")
	}

	if _, err := s.departments.FindByID(ctx, departmentID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return RequestResponse{}, apperr.NotFound("department not found")
		}
		return RequestResponse{}, apperr.Persistence(err, "failed to load department")
	}

	request := &model.BudgetRequest{
		Type:          req.Type,
		Amount:        amount,
		Category:      req.Category,
		Justification: req.Justification,
		DepartmentID:  departmentID,
		RequesterID:   requesterID,
		Status:        model.StatusDraft,
	}

	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.requests.Create(txCtx, request); err != nil {
			return apperr.Persistence(err, "failed to create budget request")
		}

		metadata, _ := json.Marshal(map[string]interface{}{
			"request_id": request.ID.String(),
			"type":       request.Type,
			"amount":     amount.String(),
		})
		entry := &model.AuditLog{
			UserID:   &requesterID,
			Action:   model.ActionRequestCreated,
			EntityID: request.ID.String(),
			Metadata: string(metadata),
		}
		if err := s.audits.Log(txCtx, entry); err != nil {
			return apperr.Persistence(err, "failed to write audit log")
		}

		return nil
	})
	if err != nil {
		return RequestResponse{}, err
	}

	return s.GetRequest(ctx, request.ID.String())
}

func (s *requestService) GetRequest(ctx context.Context, id string) (RequestResponse, error) {
	requestID, err := uuid.Parse(id)
	if err != nil {
		return RequestResponse{}, apperr.Validation("invalid request id: %v", err)
	}

	request, err := s.requests.FindByIDWithRelations(ctx, requestID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return RequestResponse{}, apperr.NotFound("request not found")
		}
		return RequestResponse{}, apperr.Persistence(err, "failed to load request")
	}

	return toRequestResponse(*request), nil
}

func (s *requestService) ListByRequester(ctx context.Context, requesterID string) ([]RequestResponse, error) {
	id, err := uuid.Parse(requesterID)
	if err != nil {
		return nil, apperr.Validation("invalid requester id: %v", err)
	}

	requests, err := s.requests.ListByRequester(ctx, id)
	if err != nil {
		return nil, apperr.Persistence(err, "failed to list requests")
	}

	result := make([]RequestResponse, 0, len(requests))
	for _, r := range requests {
		result = append(result, toRequestResponse(r))
	}
	return result, nil
}

func (s *requestService) ListAll(ctx context.Context, status string, page, limit int) ([]RequestResponse, int64, error) {
	requests, total, err := s.requests.List(ctx, status, page, limit)
	if err != nil {
		return nil, 0, apperr.Persistence(err, "failed to list requests")
	}

	result := make([]RequestResponse, 0, len(requests))
	for _, r := range requests {
		result = append(result, toRequestResponse(r))
	}
	return result, total, nil
}

func (s *requestService) UpdateRequest(ctx context.Context, id, actorID, actorRole string, req UpdateRequestDTO) (RequestResponse, error) {
	requestID, err := uuid.Parse(id)
	if err != nil {
		return RequestResponse{}, apperr.Validation("invalid request id: %v", err)
	}

	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		request, err := s.requests.FindByID(txCtx, requestID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("request not found")
			}
			return apperr.Persistence(err, "failed to load request")
		}

		if err := requireOwnership(request, actorID, actorRole); err != nil {
			return err
		}

		if !request.Editable() {
			return apperr.InvalidState("can only edit requests in DRAFT or REWORK status")
		}

		changes := map[string]interface{}{}
		if req.Type != nil {
			if *req.Type != model.RequestTypeCapex && *req.Type != model.RequestTypeOpex {
				return apperr.Validation("type must be CAPEX or OPEX")
			}
			request.Type = *req.Type
			changes["type"] = *req.Type
		}
		if req.Amount != nil {
			amount, err := decimal.NewFromString(*req.Amount)
			if err != nil {
				return apperr.Validation("invalid amount: %v", err)
			}
			if amount.IsNegative() {
				return apperr.Validation("amount must not be negative")
			}
			request.Amount = amount
			changes["amount"] = amount.String()
		}
		if req.Category != nil {
			request.Category = *req.Category
			changes["category"] = *req.Category
		}
		if req.Justification != nil {
			request.Justification = *req.Justification
			changes["justification"] = *req.Justification
		}

		if len(changes) == 0 {
			return apperr.Validation("no fields to update")
		}

		if err := s.requests.Update(txCtx, request); err != nil {
			return apperr.Persistence(err, "failed to update request")
		}

		actor, _ := uuid.Parse(actorID)
		metadata, _ := json.Marshal(map[string]interface{}{
			"request_id": request.ID.String(),
			"changes":    changes,
		})
		entry := &model.AuditLog{
			UserID:   &actor,
			Action:   model.ActionRequestUpdated,
			EntityID: request.ID.String(),
			Metadata: string(metadata),
		}
		if err := s.audits.Log(txCtx, entry); err != nil {
			return apperr.Persistence(err, "failed to write audit log")
		}

		return nil
	})
	if err != nil {
		return RequestResponse{}, err
	}

	return s.GetRequest(ctx, id)
}

// SubmitRequest moves a DRAFT or REWORK request into the approval chain.
// Resubmission after rework keeps the full approval history.
func (s *requestService) SubmitRequest(ctx context.Context, id, actorID, actorRole string) (RequestResponse, error) {
	requestID, err := uuid.Parse(id)
	if err != nil {
		return RequestResponse{}, apperr.Validation("invalid request id: %v", err)
	}

	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		request, err := s.requests.FindByID(txCtx, requestID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("request not found")
			}
			return apperr.Persistence(err, "failed to load request")
		}

		if err := requireOwnership(request, actorID, actorRole); err != nil {
			return err
		}

		moved, err := s.requests.UpdateStatus(txCtx, requestID,
			[]string{model.StatusDraft, model.StatusRework}, model.StatusPending)
		if err != nil {
			return apperr.Persistence(err, "failed to submit request")
		}
		if !moved {
			return apperr.InvalidState("request is not in a submittable status")
		}

		actor, _ := uuid.Parse(actorID)
		metadata, _ := json.Marshal(map[string]interface{}{"request_id": request.ID.String()})
		entry := &model.AuditLog{
			UserID:   &actor,
			Action:   model.ActionRequestSubmitted,
			EntityID: request.ID.String(),
			Metadata: string(metadata),
		}
		if err := s.audits.Log(txCtx, entry); err != nil {
			return apperr.Persistence(err, "failed to write audit log")
		}

		return nil
	})
	if err != nil {
		return RequestResponse{}, err
	}

	s.hub.Publish(ws.Event{
		Type:      "REQUEST_SUBMITTED",
		RequestID: id,
		Status:    model.StatusPending,
	})

	return s.GetRequest(ctx, id)
}

func (s *requestService) DeleteRequest(ctx context.Context, id, actorID, actorRole string) error {
	requestID, err := uuid.Parse(id)
	if err != nil {
		return apperr.Validation("invalid request id: %v", err)
	}

	return s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		request, err := s.requests.FindByID(txCtx, requestID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("request not found")
			}
			return apperr.Persistence(err, "failed to load request")
		}

		if err := requireOwnership(request, actorID, actorRole); err != nil {
			return err
		}

		deleted, err := s.requests.DeleteDraft(txCtx, requestID)
		if err != nil {
			return apperr.Persistence(err, "failed to delete request")
		}
		if !deleted {
			return apperr.InvalidState("only DRAFT requests can be deleted")
		}

		actor, _ := uuid.Parse(actorID)
		metadata, _ := json.Marshal(map[string]interface{}{"request_id": request.ID.String()})
		entry := &model.AuditLog{
			UserID:   &actor,
			Action:   model.ActionRequestDeleted,
			EntityID: request.ID.String(),
			Metadata: string(metadata),
		}
		if err := s.audits.Log(txCtx, entry); err != nil {
			return apperr.Persistence(err, "failed to write audit log")
		}

		return nil
	})
}

// --- Helpers ---

func requireOwnership(request *model.BudgetRequest, actorID, actorRole string) error {
	if actorRole == model.RoleSuperAdmin {
		return nil
	}
	if request.RequesterID.String() != actorID {
		return apperr.Forbidden("request belongs to another user")
	}
	return nil
}

func toRequestResponse(r model.BudgetRequest) RequestResponse {
	resp := RequestResponse{
		ID:            r.ID.String(),
		Type:          r.Type,
		Amount:        r.Amount.String(),
		Category:      r.Category,
		Justification: r.Justification,
		Status:        r.Status,
		DepartmentID:  r.DepartmentID.String(),
		RequesterID:   r.RequesterID.String(),
		CreatedAt:     r.CreatedAt.Format(time.RFC3339),
		UpdatedAt:     r.UpdatedAt.Format(time.RFC3339),
	}
	if r.Department != nil {
		resp.DepartmentName = r.Department.Name
	}
	if r.Requester != nil {
		resp.RequesterName = r.Requester.Name
		resp.RequesterEmail = r.Requester.Email
	}
	return resp
}
