package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"budgetflow/internal/middleware"
	"budgetflow/internal/model"
	"budgetflow/internal/repository"
	"budgetflow/pkg/apperr"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// MaxLoginAttempts is the failed-login threshold after which an account locks.
const MaxLoginAttempts = 5

// --- DTOs ---

type CreateUserRequest struct {
	Name         string `json:"name" binding:"required"`
	Email        string `json:"email" binding:"required,email"`
	Password     string `json:"password" binding:"required,min=6"`
	Role         string `json:"role" binding:"required"`
	DepartmentID string `json:"department_id"`
}

type UpdateUserRequest struct {
	Name         *string `json:"name"`
	Email        *string `json:"email" binding:"omitempty,email"`
	Role         *string `json:"role"`
	DepartmentID *string `json:"department_id"`
	Password     *string `json:"password" binding:"omitempty,min=6"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type TokenResponse struct {
	Token string       `json:"token"`
	User  UserResponse `json:"user"`
}

// UserResponse returns User data without exposing sensitive fields
type UserResponse struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Email        string `json:"email"`
	Role         string `json:"role"`
	DepartmentID string `json:"department_id,omitempty"`
	IsLocked     bool   `json:"is_locked"`
	CreatedAt    string `json:"created_at"`
}

// --- Interface ---

type UserService interface {
	CreateUser(ctx context.Context, req CreateUserRequest) (UserResponse, error)
	Login(ctx context.Context, req LoginRequest) (TokenResponse, error)
	GetUserByID(ctx context.Context, id string) (UserResponse, error)
	ListUsers(ctx context.Context, page, limit int) ([]UserResponse, int64, error)
	UpdateUser(ctx context.Context, id string, req UpdateUserRequest) (UserResponse, error)
	DeleteUser(ctx context.Context, id string) error
	UnlockUser(ctx context.Context, id, adminID string) error
}

type userService struct {
	users  repository.UserRepository
	audits repository.AuditRepository
}

// NewUserService returns a new instance of UserService
func NewUserService(users repository.UserRepository, audits repository.AuditRepository) UserService {
	return &userService{users: users, audits: audits}
}

// --- Implementation ---

func (s *userService) CreateUser(ctx context.Context, req CreateUserRequest) (UserResponse, error) {
	if !model.IsKnownRole(req.Role) {
		return UserResponse{}, apperr.Validation("unrecognized role %q", req.Role)
	}

	if _, err := s.users.GetByEmail(ctx, req.Email); err == nil {
		return UserResponse{}, apperr.Validation("email already exists")
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return UserResponse{}, apperr.Persistence(err, "failed to hash password")
	}

	user := &model.User{
		Name:     req.Name,
		Email:    req.Email,
		Password: string(hashed),
		Role:     req.Role,
	}
	if req.DepartmentID != "" {
		deptID, err := uuid.Parse(req.DepartmentID)
		if err != nil {
			return UserResponse{}, apperr.Validation("invalid department id: %v", err)
		}
		user.DepartmentID = &deptID
	}

	if err := s.users.Create(ctx, user); err != nil {
		return UserResponse{}, apperr.Persistence(err, "failed to create user")
	}

	return toUserResponse(user), nil
}

func (s *userService) Login(ctx context.Context, req LoginRequest) (TokenResponse, error) {
	user, err := s.users.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return TokenResponse{}, apperr.Validation("invalid credentials")
		}
		return TokenResponse{}, apperr.Persistence(err, "failed to load user")
	}

	if user.IsLocked {
		return TokenResponse{}, apperr.Forbidden("account is locked, please contact an administrator")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		user.FailedAttempts++
		if user.FailedAttempts >= MaxLoginAttempts {
			user.IsLocked = true
		}
		_ = s.users.Update(ctx, user)

		if user.IsLocked {
			metadata, _ := json.Marshal(map[string]interface{}{"email": user.Email})
			_ = s.audits.Log(ctx, &model.AuditLog{
				UserID:   &user.ID,
				Action:   model.ActionAccountLocked,
				EntityID: user.ID.String(),
				Metadata: string(metadata),
			})
			return TokenResponse{}, apperr.Forbidden("account locked after %d failed attempts", MaxLoginAttempts)
		}
		return TokenResponse{}, apperr.Validation("invalid credentials, %d attempts remaining", MaxLoginAttempts-user.FailedAttempts)
	}

	if user.FailedAttempts > 0 {
		user.FailedAttempts = 0
		_ = s.users.Update(ctx, user)
	}

	claims := jwt.MapClaims{
		"sub":  user.ID.String(),
		"role": user.Role,
		"exp":  time.Now().Add(24 * time.Hour).Unix(),
		"iat":  time.Now().Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(middleware.GetJWTSecret())
	if err != nil {
		return TokenResponse{}, apperr.Persistence(err, "failed to sign token")
	}

	return TokenResponse{Token: signed, User: toUserResponse(user)}, nil
}

func (s *userService) GetUserByID(ctx context.Context, id string) (UserResponse, error) {
	userID, err := uuid.Parse(id)
	if err != nil {
		return UserResponse{}, apperr.Validation("invalid user id: %v", err)
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return UserResponse{}, apperr.NotFound("user not found")
		}
		return UserResponse{}, apperr.Persistence(err, "failed to load user")
	}

	return toUserResponse(user), nil
}

func (s *userService) ListUsers(ctx context.Context, page, limit int) ([]UserResponse, int64, error) {
	users, total, err := s.users.List(ctx, page, limit)
	if err != nil {
		return nil, 0, apperr.Persistence(err, "failed to list users")
	}

	result := make([]UserResponse, 0, len(users))
	for i := range users {
		result = append(result, toUserResponse(&users[i]))
	}
	return result, total, nil
}

func (s *userService) UpdateUser(ctx context.Context, id string, req UpdateUserRequest) (UserResponse, error) {
	userID, err := uuid.Parse(id)
	if err != nil {
		return UserResponse{}, apperr.Validation("invalid user id: %v", err)
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return UserResponse{}, apperr.NotFound("user not found")
		}
		return UserResponse{}, apperr.Persistence(err, "failed to load user")
	}

	if req.Name != nil {
		user.Name = *req.Name
	}
	if req.Email != nil {
		user.Email = *req.Email
	}
	if req.Role != nil {
		if !model.IsKnownRole(*req.Role) {
			return UserResponse{}, apperr.Validation("unrecognized role %q", *req.Role)
		}
		user.Role = *req.Role
	}
	if req.DepartmentID != nil {
		deptID, err := uuid.Parse(*req.DepartmentID)
		if err != nil {
			return UserResponse{}, apperr.Validation("invalid department id: %v", err)
		}
		user.DepartmentID = &deptID
	}
	if req.Password != nil {
		hashed, err := bcrypt.GenerateFromPassword([]byte(*req.Password), bcrypt.DefaultCost)
		if err != nil {
			return UserResponse{}, apperr.Persistence(err, "failed to hash password")
		}
		user.Password = string(hashed)
	}

	if err := s.users.Update(ctx, user); err != nil {
		return UserResponse{}, apperr.Persistence(err, "failed to update user")
	}

	return toUserResponse(user), nil
}

func (s *userService) DeleteUser(ctx context.Context, id string) error {
	userID, err := uuid.Parse(id)
	if err != nil {
		return apperr.Validation("invalid user id: %v", err)
	}
	if err := s.users.Delete(ctx, userID); err != nil {
		return apperr.Persistence(err, "failed to delete user")
	}
	return nil
}

func (s *userService) UnlockUser(ctx context.Context, id, adminID string) error {
	userID, err := uuid.Parse(id)
	if err != nil {
		return apperr.Validation("invalid user id: %v", err)
	}
	admin, err := uuid.Parse(adminID)
	if err != nil {
		return apperr.Validation("invalid admin id: %v", err)
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.NotFound("user not found")
		}
		return apperr.Persistence(err, "failed to load user")
	}

	user.IsLocked = false
	user.FailedAttempts = 0
	if err := s.users.Update(ctx, user); err != nil {
		return apperr.Persistence(err, "failed to unlock user")
	}

	metadata, _ := json.Marshal(map[string]interface{}{"target_user_id": id})
	return s.audits.Log(ctx, &model.AuditLog{
		UserID:   &admin,
		Action:   model.ActionAccountUnlocked,
		EntityID: id,
		Metadata: string(metadata),
	})
}

// --- Helpers ---

func toUserResponse(user *model.User) UserResponse {
	resp := UserResponse{
		ID:        user.ID.String(),
		Name:      user.Name,
		Email:     user.Email,
		Role:      user.Role,
		IsLocked:  user.IsLocked,
		CreatedAt: user.CreatedAt.Format(time.RFC3339),
	}
	if user.DepartmentID != nil {
		resp.DepartmentID = user.DepartmentID.String()
	}
	return resp
}
