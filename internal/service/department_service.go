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

type DepartmentDTO struct {
	Name string `json:"name" binding:"required"`
}

type DepartmentService interface {
	Create(ctx context.Context, name, actorID string) (*model.Department, error)
	List(ctx context.Context) ([]model.Department, error)
	Update(ctx context.Context, id, name, actorID string) (*model.Department, error)
	Delete(ctx context.Context, id, actorID string) error
}

type departmentService struct {
	departments repository.DepartmentRepository
	audits      repository.AuditRepository
}

func NewDepartmentService(departments repository.DepartmentRepository, audits repository.AuditRepository) DepartmentService {
	return &departmentService{departments: departments, audits: audits}
}

func (s *departmentService) Create(ctx context.Context, name, actorID string) (*model.Department, error) {
	if name == "" {
		return nil, apperr.Validation("department name is required")
	}

	dept := &model.Department{Name: name}
	if err := s.departments.Create(ctx, dept); err != nil {
		return nil, apperr.Persistence(err, "failed to create department")
	}

	s.audit(ctx, actorID, model.ActionDepartmentCreated, dept.ID.String(), map[string]interface{}{"name": name})
	return dept, nil
}

func (s *departmentService) List(ctx context.Context) ([]model.Department, error) {
	departments, err := s.departments.ListAll(ctx)
	if err != nil {
		return nil, apperr.Persistence(err, "failed to list departments")
	}
	return departments, nil
}

func (s *departmentService) Update(ctx context.Context, id, name, actorID string) (*model.Department, error) {
	if name == "" {
		return nil, apperr.Validation("department name is required")
	}

	deptID, err := uuid.Parse(id)
	if err != nil {
		return nil, apperr.Validation("invalid department id: %v", err)
	}

	dept, err := s.departments.FindByID(ctx, deptID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("department not found")
		}
		return nil, apperr.Persistence(err, "failed to load department")
	}

	dept.Name = name
	if err := s.departments.Update(ctx, dept); err != nil {
		return nil, apperr.Persistence(err, "failed to update department")
	}

	s.audit(ctx, actorID, model.ActionDepartmentUpdated, id, map[string]interface{}{"name": name})
	return dept, nil
}

func (s *departmentService) Delete(ctx context.Context, id, actorID string) error {
	deptID, err := uuid.Parse(id)
	if err != nil {
		return apperr.Validation("invalid department id: %v", err)
	}

	if err := s.departments.Delete(ctx, deptID); err != nil {
		return apperr.Persistence(err, "failed to delete department")
	}

	s.audit(ctx, actorID, model.ActionDepartmentDeleted, id, nil)
	return nil
}

func (s *departmentService) audit(ctx context.Context, actorID, action, entityID string, details map[string]interface{}) {
	actor, err := uuid.Parse(actorID)
	if err != nil {
		return
	}
	metadata, _ := json.Marshal(details)
	_ = s.audits.Log(ctx, &model.AuditLog{
		UserID:   &actor,
		Action:   action,
		EntityID: entityID,
		Metadata: string(metadata),
	})
}
