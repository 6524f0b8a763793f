package service

import (
	"context"
	"testing"

	"budgetflow/internal/model"
	"budgetflow/internal/repository"
	"budgetflow/pkg/apperr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newUserTestEnv(t *testing.T) (*testEnv, UserService) {
	t.Helper()
	env := newTestEnv(t, ApprovalConfig{})
	users := repository.NewUserRepository(env.db)
	audits := repository.NewAuditRepository(env.db)
	return env, NewUserService(users, audits)
}

func TestCreateUserRejectsUnknownRole(t *testing.T) {
	_, svc := newUserTestEnv(t)

	_, err := svc.CreateUser(context.Background(), CreateUserRequest{
		Name:     "Eve",
		Email:    "eve@example.com",
		Password: "secret123",
		Role:     "WIZARD",
	})
	require.Error(t, err)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestCreateUserRejectsDuplicateEmail(t *testing.T) {
	_, svc := newUserTestEnv(t)

	req := CreateUserRequest{
		Name:     "Alice",
		Email:    "alice@example.com",
		Password: "secret123",
		Role:     model.RoleRequestor,
	}
	_, err := svc.CreateUser(context.Background(), req)
	require.NoError(t, err)

	_, err = svc.CreateUser(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestLoginLockoutAfterRepeatedFailures(t *testing.T) {
	env, svc := newUserTestEnv(t)

	created, err := svc.CreateUser(context.Background(), CreateUserRequest{
		Name:     "Bob",
		Email:    "bob@example.com",
		Password: "correct-horse",
		Role:     model.RoleTechLead,
	})
	require.NoError(t, err)

	for i := 0; i < MaxLoginAttempts; i++ {
		_, err := svc.Login(context.Background(), LoginRequest{
			Email:    "bob@example.com",
			Password: "wrong-password",
		})
		require.Error(t, err)
	}

	var user model.User
	require.NoError(t, env.db.First(&user, "email = ?", "bob@example.com").Error)
	assert.True(t, user.IsLocked)
	assert.Equal(t, MaxLoginAttempts, user.FailedAttempts)

	// Correct password no longer helps on a locked account
	_, err = svc.Login(context.Background(), LoginRequest{
		Email:    "bob@example.com",
		Password: "correct-horse",
	})
	require.Error(t, err)
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))

	// Lock event lands in the audit trail
	var lockEvents int64
	require.NoError(t, env.db.Model(&model.AuditLog{}).
		Where("action = ?", model.ActionAccountLocked).Count(&lockEvents).Error)
	assert.EqualValues(t, 1, lockEvents)

	// Admin unlock restores access
	admin := createTestUser(t, env.db, model.RoleSuperAdmin)
	require.NoError(t, svc.UnlockUser(context.Background(), created.ID, admin.ID.String()))

	result, err := svc.Login(context.Background(), LoginRequest{
		Email:    "bob@example.com",
		Password: "correct-horse",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, result.Token)
	assert.Equal(t, model.RoleTechLead, result.User.Role)
}

func TestLoginResetsFailedAttempts(t *testing.T) {
	env, svc := newUserTestEnv(t)

	_, err := svc.CreateUser(context.Background(), CreateUserRequest{
		Name:     "Carol",
		Email:    "carol@example.com",
		Password: "secret123",
		Role:     model.RoleFPNA,
	})
	require.NoError(t, err)

	_, err = svc.Login(context.Background(), LoginRequest{
		Email:    "carol@example.com",
		Password: "nope",
	})
	require.Error(t, err)

	_, err = svc.Login(context.Background(), LoginRequest{
		Email:    "carol@example.com",
		Password: "secret123",
	})
	require.NoError(t, err)

	var user model.User
	require.NoError(t, env.db.First(&user, "email = ?", "carol@example.com").Error)
	assert.Zero(t, user.FailedAttempts)
	assert.False(t, user.IsLocked)
}
