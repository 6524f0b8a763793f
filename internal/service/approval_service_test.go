package service

import (
	"context"
	"testing"
	"time"

	"budgetflow/internal/database"
	"budgetflow/internal/model"
	"budgetflow/internal/repository"
	"budgetflow/pkg/apperr"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// setupTestDB creates an in-memory SQLite database with the full schema and
// the default hierarchy seeded
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	return db
}

type testEnv struct {
	db          *gorm.DB
	requests    repository.RequestRepository
	records     repository.ApprovalRecordRepository
	hierarchy   repository.HierarchyRepository
	approvals   ApprovalService
	requestsSvc RequestService
}

func newTestEnv(t *testing.T, cfg ApprovalConfig) *testEnv {
	t.Helper()
	db := setupTestDB(t)

	tx := repository.NewTransactionManager(db)
	requests := repository.NewRequestRepository(db)
	records := repository.NewApprovalRecordRepository(db)
	hierarchy := repository.NewHierarchyRepository(db)
	departments := repository.NewDepartmentRepository(db)
	audits := repository.NewAuditRepository(db)

	return &testEnv{
		db:          db,
		requests:    requests,
		records:     records,
		hierarchy:   hierarchy,
		approvals:   NewApprovalService(tx, requests, records, hierarchy, audits, cfg, nil),
		requestsSvc: NewRequestService(tx, requests, departments, audits, nil),
	}
}

func createTestUser(t *testing.T, db *gorm.DB, role string) *model.User {
	t.Helper()
	user := &model.User{
		Name:     role + " user",
		Email:    uuid.NewString() + "@example.com",
		Password: "hashed",
		Role:     role,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

func createTestDepartment(t *testing.T, db *gorm.DB) *model.Department {
	t.Helper()
	dept := &model.Department{Name: "Dept " + uuid.NewString()}
	require.NoError(t, db.Create(dept).Error)
	return dept
}

func createTestRequest(t *testing.T, db *gorm.DB, requester *model.User, dept *model.Department, status string) *model.BudgetRequest {
	t.Helper()
	request := &model.BudgetRequest{
		Type:          model.RequestTypeCapex,
		Amount:        decimal.NewFromInt(12000),
		Category:      "Hardware",
		Justification: "Replace aging build servers",
		DepartmentID:  dept.ID,
		RequesterID:   requester.ID,
		Status:        status,
	}
	require.NoError(t, db.Create(request).Error)
	return request
}

func pendingIDs(t *testing.T, env *testEnv, role string) []string {
	t.Helper()
	queue, err := env.approvals.PendingForRole(context.Background(), role)
	require.NoError(t, err)
	ids := make([]string, 0, len(queue))
	for _, r := range queue {
		ids = append(ids, r.ID)
	}
	return ids
}

// --- Pure hierarchy logic ---

func TestNextRole(t *testing.T) {
	hierarchy := []string{model.RoleTechLead, model.RoleDeptHead, model.RoleCFO}

	tests := []struct {
		name    string
		current string
		strict  bool
		want    string
		wantErr bool
	}{
		{name: "first role forwards to second", current: model.RoleTechLead, want: model.RoleDeptHead},
		{name: "middle role forwards to last", current: model.RoleDeptHead, want: model.RoleCFO},
		{name: "last role is terminal", current: model.RoleCFO, want: ""},
		{name: "unknown role falls back to first", current: "INTERN", want: model.RoleTechLead},
		{name: "unknown role errors in strict mode", current: "INTERN", strict: true, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NextRole(hierarchy, tt.current, tt.strict)
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNextRoleEmptyHierarchy(t *testing.T) {
	_, err := NextRole(nil, model.RoleTechLead, false)
	require.Error(t, err)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestNextRoleCoversEveryPosition(t *testing.T) {
	hierarchy := model.DefaultApprovalHierarchy
	for i, role := range hierarchy {
		next, err := NextRole(hierarchy, role, true)
		require.NoError(t, err)
		if i == len(hierarchy)-1 {
			assert.Empty(t, next)
		} else {
			assert.Equal(t, hierarchy[i+1], next)
		}
	}
}

func TestOwnerRole(t *testing.T) {
	hierarchy := []string{model.RoleTechLead, model.RoleDeptHead, model.RoleCFO}

	t.Run("no record belongs to first role", func(t *testing.T) {
		owner, err := OwnerRole(hierarchy, nil, ApprovalConfig{})
		require.NoError(t, err)
		assert.Equal(t, model.RoleTechLead, owner)
	})

	t.Run("approved record forwards ownership", func(t *testing.T) {
		record := &model.ApprovalRecord{Role: model.RoleTechLead, Decision: model.DecisionApproved}
		owner, err := OwnerRole(hierarchy, record, ApprovalConfig{})
		require.NoError(t, err)
		assert.Equal(t, model.RoleDeptHead, owner)
	})

	t.Run("rework record routes after reworking approver by default", func(t *testing.T) {
		record := &model.ApprovalRecord{Role: model.RoleDeptHead, Decision: model.DecisionRework}
		owner, err := OwnerRole(hierarchy, record, ApprovalConfig{})
		require.NoError(t, err)
		assert.Equal(t, model.RoleCFO, owner)
	})

	t.Run("rework record restarts chain when configured", func(t *testing.T) {
		record := &model.ApprovalRecord{Role: model.RoleDeptHead, Decision: model.DecisionRework}
		owner, err := OwnerRole(hierarchy, record, ApprovalConfig{ReworkRestartsChain: true})
		require.NoError(t, err)
		assert.Equal(t, model.RoleTechLead, owner)
	})
}

func TestValidateHierarchy(t *testing.T) {
	assert.Error(t, ValidateHierarchy(nil))
	assert.Error(t, ValidateHierarchy([]string{"NOT_A_ROLE"}))
	assert.Error(t, ValidateHierarchy([]string{model.RoleCFO, model.RoleCFO}))
	assert.NoError(t, ValidateHierarchy([]string{model.RoleTechLead, model.RoleCFO}))
}

// --- Approval engine ---

func TestApproveChainReachesFinalApproval(t *testing.T) {
	env := newTestEnv(t, ApprovalConfig{})
	requester := createTestUser(t, env.db, model.RoleRequestor)
	dept := createTestDepartment(t, env.db)
	request := createTestRequest(t, env.db, requester, dept, model.StatusPending)

	hierarchy := model.DefaultApprovalHierarchy
	for i, role := range hierarchy {
		approver := createTestUser(t, env.db, role)
		result, err := env.approvals.Approve(context.Background(), request.ID.String(), approver.ID.String(), role, "")
		require.NoError(t, err)

		if i < len(hierarchy)-1 {
			assert.Equal(t, model.StatusPending, result.Status)
			assert.Equal(t, hierarchy[i+1], result.NextRole)
		} else {
			assert.Equal(t, model.StatusFinalApproved, result.Status)
			assert.Empty(t, result.NextRole)
		}
	}

	var reloaded model.BudgetRequest
	require.NoError(t, env.db.First(&reloaded, "id = ?", request.ID).Error)
	assert.Equal(t, model.StatusFinalApproved, reloaded.Status)

	timeline, err := env.approvals.Timeline(context.Background(), request.ID.String())
	require.NoError(t, err)
	require.Len(t, timeline, len(hierarchy))
	for i, entry := range timeline {
		assert.Equal(t, hierarchy[i], entry.Role)
		assert.Equal(t, model.DecisionApproved, entry.Decision)
	}
}

func TestRejectIsTerminal(t *testing.T) {
	env := newTestEnv(t, ApprovalConfig{})
	requester := createTestUser(t, env.db, model.RoleRequestor)
	dept := createTestDepartment(t, env.db)
	request := createTestRequest(t, env.db, requester, dept, model.StatusPending)

	techLead := createTestUser(t, env.db, model.RoleTechLead)
	deptHead := createTestUser(t, env.db, model.RoleDeptHead)

	_, err := env.approvals.Approve(context.Background(), request.ID.String(), techLead.ID.String(), model.RoleTechLead, "")
	require.NoError(t, err)

	result, err := env.approvals.Reject(context.Background(), request.ID.String(), deptHead.ID.String(), model.RoleDeptHead, "insufficient justification")
	require.NoError(t, err)
	assert.Equal(t, model.StatusRejected, result.Status)

	// Any further decision must observe the terminal status and fail
	cfo := createTestUser(t, env.db, model.RoleCFO)
	_, err = env.approvals.Approve(context.Background(), request.ID.String(), cfo.ID.String(), model.RoleCFO, "")
	require.Error(t, err)
	assert.Equal(t, apperr.KindInvalidState, apperr.KindOf(err))

	timeline, err := env.approvals.Timeline(context.Background(), request.ID.String())
	require.NoError(t, err)
	require.Len(t, timeline, 2)
	assert.Equal(t, model.DecisionApproved, timeline[0].Decision)
	assert.Equal(t, model.DecisionRejected, timeline[1].Decision)

	for _, role := range model.DefaultApprovalHierarchy {
		assert.Empty(t, pendingIDs(t, env, role))
	}
}

func TestRejectAndReworkRequireComments(t *testing.T) {
	env := newTestEnv(t, ApprovalConfig{})
	requester := createTestUser(t, env.db, model.RoleRequestor)
	dept := createTestDepartment(t, env.db)
	request := createTestRequest(t, env.db, requester, dept, model.StatusPending)
	techLead := createTestUser(t, env.db, model.RoleTechLead)

	_, err := env.approvals.Reject(context.Background(), request.ID.String(), techLead.ID.String(), model.RoleTechLead, "")
	require.Error(t, err)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	_, err = env.approvals.Rework(context.Background(), request.ID.String(), techLead.ID.String(), model.RoleTechLead, "")
	require.Error(t, err)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	// No record created, status untouched
	var count int64
	require.NoError(t, env.db.Model(&model.ApprovalRecord{}).Where("request_id = ?", request.ID).Count(&count).Error)
	assert.Zero(t, count)

	var reloaded model.BudgetRequest
	require.NoError(t, env.db.First(&reloaded, "id = ?", request.ID).Error)
	assert.Equal(t, model.StatusPending, reloaded.Status)
}

func TestDecisionOnMissingRequest(t *testing.T) {
	env := newTestEnv(t, ApprovalConfig{})
	techLead := createTestUser(t, env.db, model.RoleTechLead)

	_, err := env.approvals.Approve(context.Background(), uuid.NewString(), techLead.ID.String(), model.RoleTechLead, "")
	require.Error(t, err)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestOptimisticLockRejectsStaleDecision(t *testing.T) {
	env := newTestEnv(t, ApprovalConfig{})
	requester := createTestUser(t, env.db, model.RoleRequestor)
	dept := createTestDepartment(t, env.db)
	request := createTestRequest(t, env.db, requester, dept, model.StatusPending)

	// Simulate the losing side of a race: the status moved away from PENDING
	// after the request was read
	moved, err := env.requests.UpdateStatus(context.Background(), request.ID,
		[]string{model.StatusPending}, model.StatusRejected)
	require.NoError(t, err)
	assert.True(t, moved)

	moved, err = env.requests.UpdateStatus(context.Background(), request.ID,
		[]string{model.StatusPending}, model.StatusFinalApproved)
	require.NoError(t, err)
	assert.False(t, moved, "second conditional update must observe the changed status")

	techLead := createTestUser(t, env.db, model.RoleTechLead)
	_, err = env.approvals.Approve(context.Background(), request.ID.String(), techLead.ID.String(), model.RoleTechLead, "")
	require.Error(t, err)
	assert.Equal(t, apperr.KindInvalidState, apperr.KindOf(err))
}

// --- Pending queue ---

func TestPendingQueueOwnership(t *testing.T) {
	env := newTestEnv(t, ApprovalConfig{})
	requester := createTestUser(t, env.db, model.RoleRequestor)
	dept := createTestDepartment(t, env.db)
	request := createTestRequest(t, env.db, requester, dept, model.StatusPending)

	hierarchy := model.DefaultApprovalHierarchy

	// Fresh request with no records belongs to the first role only
	assert.Contains(t, pendingIDs(t, env, hierarchy[0]), request.ID.String())
	for _, role := range hierarchy[1:] {
		assert.Empty(t, pendingIDs(t, env, role))
	}

	techLead := createTestUser(t, env.db, hierarchy[0])
	_, err := env.approvals.Approve(context.Background(), request.ID.String(), techLead.ID.String(), hierarchy[0], "")
	require.NoError(t, err)

	assert.NotContains(t, pendingIDs(t, env, hierarchy[0]), request.ID.String())
	assert.Contains(t, pendingIDs(t, env, hierarchy[1]), request.ID.String())
}

func TestPendingQueueIsFIFO(t *testing.T) {
	env := newTestEnv(t, ApprovalConfig{})
	requester := createTestUser(t, env.db, model.RoleRequestor)
	dept := createTestDepartment(t, env.db)

	older := createTestRequest(t, env.db, requester, dept, model.StatusPending)
	newer := createTestRequest(t, env.db, requester, dept, model.StatusPending)
	require.NoError(t, env.db.Model(older).Update("created_at", time.Now().Add(-time.Hour)).Error)

	ids := pendingIDs(t, env, model.DefaultApprovalHierarchy[0])
	require.Len(t, ids, 2)
	assert.Equal(t, older.ID.String(), ids[0])
	assert.Equal(t, newer.ID.String(), ids[1])
}

func TestReworkResubmissionLiteralRouting(t *testing.T) {
	env := newTestEnv(t, ApprovalConfig{})
	requester := createTestUser(t, env.db, model.RoleRequestor)
	dept := createTestDepartment(t, env.db)
	request := createTestRequest(t, env.db, requester, dept, model.StatusPending)

	techLead := createTestUser(t, env.db, model.RoleTechLead)
	deptHead := createTestUser(t, env.db, model.RoleDeptHead)

	_, err := env.approvals.Approve(context.Background(), request.ID.String(), techLead.ID.String(), model.RoleTechLead, "")
	require.NoError(t, err)
	_, err = env.approvals.Rework(context.Background(), request.ID.String(), deptHead.ID.String(), model.RoleDeptHead, "needs a cost breakdown")
	require.NoError(t, err)

	// Requester resubmits; history is preserved
	_, err = env.requestsSvc.SubmitRequest(context.Background(), request.ID.String(), requester.ID.String(), model.RoleRequestor)
	require.NoError(t, err)

	timeline, err := env.approvals.Timeline(context.Background(), request.ID.String())
	require.NoError(t, err)
	assert.Len(t, timeline, 2)

	// Latest-record-wins: the queue of the role after the reworking approver
	assert.Contains(t, pendingIDs(t, env, model.RoleFinanceAdmin), request.ID.String())
	assert.Empty(t, pendingIDs(t, env, model.RoleTechLead))
}

func TestReworkResubmissionRestartsChainWhenConfigured(t *testing.T) {
	env := newTestEnv(t, ApprovalConfig{ReworkRestartsChain: true})
	requester := createTestUser(t, env.db, model.RoleRequestor)
	dept := createTestDepartment(t, env.db)
	request := createTestRequest(t, env.db, requester, dept, model.StatusPending)

	techLead := createTestUser(t, env.db, model.RoleTechLead)
	deptHead := createTestUser(t, env.db, model.RoleDeptHead)

	_, err := env.approvals.Approve(context.Background(), request.ID.String(), techLead.ID.String(), model.RoleTechLead, "")
	require.NoError(t, err)
	_, err = env.approvals.Rework(context.Background(), request.ID.String(), deptHead.ID.String(), model.RoleDeptHead, "needs a cost breakdown")
	require.NoError(t, err)

	_, err = env.requestsSvc.SubmitRequest(context.Background(), request.ID.String(), requester.ID.String(), model.RoleRequestor)
	require.NoError(t, err)

	assert.Contains(t, pendingIDs(t, env, model.RoleTechLead), request.ID.String())
	assert.Empty(t, pendingIDs(t, env, model.RoleFinanceAdmin))
}

func TestStrictRolesBlocksUnknownApprover(t *testing.T) {
	env := newTestEnv(t, ApprovalConfig{StrictRoles: true})
	requester := createTestUser(t, env.db, model.RoleRequestor)
	dept := createTestDepartment(t, env.db)
	request := createTestRequest(t, env.db, requester, dept, model.StatusPending)
	actor := createTestUser(t, env.db, model.RoleSuperAdmin)

	_, err := env.approvals.Approve(context.Background(), request.ID.String(), actor.ID.String(), "TYPO_ROLE", "")
	require.Error(t, err)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	// Transition aborted: no record, status unchanged
	var count int64
	require.NoError(t, env.db.Model(&model.ApprovalRecord{}).Where("request_id = ?", request.ID).Count(&count).Error)
	assert.Zero(t, count)

	var reloaded model.BudgetRequest
	require.NoError(t, env.db.First(&reloaded, "id = ?", request.ID).Error)
	assert.Equal(t, model.StatusPending, reloaded.Status)
}

func TestUnknownRoleFallsBackToChainStart(t *testing.T) {
	env := newTestEnv(t, ApprovalConfig{})
	requester := createTestUser(t, env.db, model.RoleRequestor)
	dept := createTestDepartment(t, env.db)
	request := createTestRequest(t, env.db, requester, dept, model.StatusPending)
	actor := createTestUser(t, env.db, model.RoleSuperAdmin)

	result, err := env.approvals.Approve(context.Background(), request.ID.String(), actor.ID.String(), "TYPO_ROLE", "")
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, result.Status)
	assert.Equal(t, model.DefaultApprovalHierarchy[0], result.NextRole)
}

func TestTimelineOfMissingRequest(t *testing.T) {
	env := newTestEnv(t, ApprovalConfig{})
	_, err := env.approvals.Timeline(context.Background(), uuid.NewString())
	require.Error(t, err)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}
