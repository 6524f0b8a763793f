package service

import (
	"context"
	"encoding/json"
	"errors"

	"budgetflow/internal/model"
	"budgetflow/internal/repository"
	"budgetflow/pkg/apperr"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ApprovalConfig holds the behavior toggles of the approval chain.
type ApprovalConfig struct {
	// StrictRoles makes NextRole fail on a role that is not in the hierarchy.
	// When false, an unknown role falls back to the first role in the chain —
	// the historical behavior, kept as a legal configuration.
	StrictRoles bool
	// ReworkRestartsChain routes a resubmitted request back to the first
	// approver instead of the role after the reworking approver.
	ReworkRestartsChain bool
}

// NextRole returns the role after current in the hierarchy. An empty result
// means current is the last position and the chain is complete. An unknown
// current role falls back to the first role, or errors in strict mode.
func NextRole(hierarchy []string, current string, strict bool) (string, error) {
	if len(hierarchy) == 0 {
		return "", apperr.Validation("approval hierarchy is empty")
	}

	for i, role := range hierarchy {
		if role == current {
			if i == len(hierarchy)-1 {
				return "", nil
			}
			return hierarchy[i+1], nil
		}
	}

	if strict {
		return "", apperr.Validation("role %q is not part of the approval hierarchy", current)
	}
	return hierarchy[0], nil
}

// OwnerRole computes which role currently owns a PENDING request given its
// latest approval record. No record means the request just entered the chain
// and belongs to the first role. A REWORK record either restarts the chain or
// falls through to the literal latest-record-wins rule, per config.
func OwnerRole(hierarchy []string, latest *model.ApprovalRecord, cfg ApprovalConfig) (string, error) {
	if len(hierarchy) == 0 {
		return "", apperr.Validation("approval hierarchy is empty")
	}

	if latest == nil {
		return hierarchy[0], nil
	}

	if latest.Decision == model.DecisionRework && cfg.ReworkRestartsChain {
		return hierarchy[0], nil
	}

	return NextRole(hierarchy, latest.Role, cfg.StrictRoles)
}

// ValidateHierarchy checks a proposed hierarchy: non-empty, recognized role
// identifiers, no duplicates.
func ValidateHierarchy(roles []string) error {
	if len(roles) == 0 {
		return apperr.Validation("hierarchy must contain at least one role")
	}

	seen := make(map[string]bool, len(roles))
	for _, role := range roles {
		if !model.IsKnownRole(role) {
			return apperr.Validation("unrecognized role %q in hierarchy", role)
		}
		if seen[role] {
			return apperr.Validation("duplicate role %q in hierarchy", role)
		}
		seen[role] = true
	}
	return nil
}

// HierarchyResponse reports the configured chain and its config version.
type HierarchyResponse struct {
	Hierarchy []string `json:"hierarchy"`
	Version   int      `json:"version"`
}

type HierarchyService interface {
	Get(ctx context.Context) (HierarchyResponse, error)
	// Update replaces the hierarchy after validation, using compare-and-swap
	// against the stored config version.
	Update(ctx context.Context, roles []string, actorID string) (HierarchyResponse, error)
}

type hierarchyService struct {
	tx        repository.TransactionManager
	hierarchy repository.HierarchyRepository
	audits    repository.AuditRepository
}

func NewHierarchyService(tx repository.TransactionManager, hierarchy repository.HierarchyRepository, audits repository.AuditRepository) HierarchyService {
	return &hierarchyService{tx: tx, hierarchy: hierarchy, audits: audits}
}

func (s *hierarchyService) Get(ctx context.Context) (HierarchyResponse, error) {
	cfg, err := s.hierarchy.Get(ctx)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return HierarchyResponse{}, apperr.NotFound("approval hierarchy is not configured")
		}
		return HierarchyResponse{}, apperr.Persistence(err, "failed to load approval hierarchy")
	}

	var roles []string
	if err := json.Unmarshal([]byte(cfg.Value), &roles); err != nil {
		return HierarchyResponse{}, apperr.Persistence(err, "stored hierarchy is malformed")
	}

	return HierarchyResponse{Hierarchy: roles, Version: cfg.Version}, nil
}

func (s *hierarchyService) Update(ctx context.Context, roles []string, actorID string) (HierarchyResponse, error) {
	if err := ValidateHierarchy(roles); err != nil {
		return HierarchyResponse{}, err
	}

	adminID, err := uuid.Parse(actorID)
	if err != nil {
		return HierarchyResponse{}, apperr.Validation("invalid actor id: %v", err)
	}

	var version int
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		cfg, err := s.hierarchy.Get(txCtx)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("approval hierarchy is not configured")
			}
			return apperr.Persistence(err, "failed to load approval hierarchy")
		}

		swapped, err := s.hierarchy.Update(txCtx, roles, cfg.Version)
		if err != nil {
			return apperr.Persistence(err, "failed to update approval hierarchy")
		}
		if !swapped {
			return apperr.InvalidState("hierarchy was modified concurrently, retry the update")
		}
		version = cfg.Version + 1

		metadata, _ := json.Marshal(map[string]interface{}{"hierarchy": roles})
		entry := &model.AuditLog{
			UserID:   &adminID,
			Action:   model.ActionHierarchyUpdated,
			EntityID: model.ConfigKeyApprovalHierarchy,
			Metadata: string(metadata),
		}
		if err := s.audits.Log(txCtx, entry); err != nil {
			return apperr.Persistence(err, "failed to write audit log")
		}

		return nil
	})
	if err != nil {
		return HierarchyResponse{}, err
	}

	return HierarchyResponse{Hierarchy: roles, Version: version}, nil
}
