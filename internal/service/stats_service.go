package service

import (
	"context"

	"budgetflow/internal/model"
	"budgetflow/internal/repository"
	"budgetflow/pkg/apperr"

	"github.com/google/uuid"
)

// SystemStats aggregates system-wide counters for the admin dashboard.
// StuckRequests counts PENDING requests no role currently owns — the signal
// that a hierarchy reconfiguration stranded in-flight requests.
type SystemStats struct {
	TotalUsers       int64 `json:"total_users"`
	TotalDepartments int64 `json:"total_departments"`
	TotalRequests    int64 `json:"total_requests"`
	PendingRequests  int64 `json:"pending_requests"`
	ApprovedRequests int64 `json:"approved_requests"`
	RejectedRequests int64 `json:"rejected_requests"`
	ReworkRequests   int64 `json:"rework_requests"`
	StuckRequests    int64 `json:"stuck_requests"`
}

type StatsService interface {
	GetSystemStats(ctx context.Context) (SystemStats, error)
}

type statsService struct {
	users       repository.UserRepository
	departments repository.DepartmentRepository
	requests    repository.RequestRepository
	records     repository.ApprovalRecordRepository
	hierarchy   repository.HierarchyRepository
	cfg         ApprovalConfig
}

func NewStatsService(
	users repository.UserRepository,
	departments repository.DepartmentRepository,
	requests repository.RequestRepository,
	records repository.ApprovalRecordRepository,
	hierarchy repository.HierarchyRepository,
	cfg ApprovalConfig,
) StatsService {
	return &statsService{
		users:       users,
		departments: departments,
		requests:    requests,
		records:     records,
		hierarchy:   hierarchy,
		cfg:         cfg,
	}
}

func (s *statsService) GetSystemStats(ctx context.Context) (SystemStats, error) {
	var stats SystemStats
	var err error

	if stats.TotalUsers, err = s.users.Count(ctx); err != nil {
		return stats, apperr.Persistence(err, "failed to count users")
	}
	if stats.TotalDepartments, err = s.departments.Count(ctx); err != nil {
		return stats, apperr.Persistence(err, "failed to count departments")
	}
	if stats.TotalRequests, err = s.requests.Count(ctx); err != nil {
		return stats, apperr.Persistence(err, "failed to count requests")
	}
	if stats.PendingRequests, err = s.requests.CountByStatus(ctx, model.StatusPending); err != nil {
		return stats, apperr.Persistence(err, "failed to count pending requests")
	}
	if stats.ApprovedRequests, err = s.requests.CountByStatus(ctx, model.StatusFinalApproved); err != nil {
		return stats, apperr.Persistence(err, "failed to count approved requests")
	}
	if stats.RejectedRequests, err = s.requests.CountByStatus(ctx, model.StatusRejected); err != nil {
		return stats, apperr.Persistence(err, "failed to count rejected requests")
	}
	if stats.ReworkRequests, err = s.requests.CountByStatus(ctx, model.StatusRework); err != nil {
		return stats, apperr.Persistence(err, "failed to count rework requests")
	}

	stuck, err := s.countStuck(ctx)
	if err != nil {
		return stats, err
	}
	stats.StuckRequests = stuck

	return stats, nil
}

// countStuck replays every PENDING request against the hierarchy and counts
// those whose owner role cannot be resolved.
func (s *statsService) countStuck(ctx context.Context) (int64, error) {
	roles, err := s.hierarchy.Roles(ctx)
	if err != nil {
		return 0, apperr.Persistence(err, "failed to load approval hierarchy")
	}

	pending, err := s.requests.ListPending(ctx)
	if err != nil {
		return 0, apperr.Persistence(err, "failed to list pending requests")
	}

	ids := make([]uuid.UUID, 0, len(pending))
	for _, request := range pending {
		ids = append(ids, request.ID)
	}

	latest, err := s.records.LatestByRequests(ctx, ids)
	if err != nil {
		return 0, apperr.Persistence(err, "failed to load approval records")
	}

	var stuck int64
	for _, request := range pending {
		var latestRecord *model.ApprovalRecord
		if record, ok := latest[request.ID]; ok {
			latestRecord = &record
		}
		owner, err := OwnerRole(roles, latestRecord, s.cfg)
		if err != nil || owner == "" {
			stuck++
		}
	}

	return stuck, nil
}
