package handler

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"budgetflow/internal/database"
	"budgetflow/internal/middleware"
	"budgetflow/internal/model"
	"budgetflow/internal/repository"
	"budgetflow/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupApprovalRouter(t *testing.T) (*gin.Engine, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	tx := repository.NewTransactionManager(db)
	requests := repository.NewRequestRepository(db)
	records := repository.NewApprovalRecordRepository(db)
	hierarchy := repository.NewHierarchyRepository(db)
	audits := repository.NewAuditRepository(db)

	approvalService := service.NewApprovalService(tx, requests, records, hierarchy, audits, service.ApprovalConfig{}, nil)

	router := gin.New()
	NewApprovalHandler(approvalService).RegisterRoutes(router.Group(""))
	return router, db
}

func seedUser(t *testing.T, db *gorm.DB, role string) *model.User {
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

func seedPendingRequest(t *testing.T, db *gorm.DB) *model.BudgetRequest {
	t.Helper()
	dept := &model.Department{Name: "Engineering " + uuid.NewString()}
	require.NoError(t, db.Create(dept).Error)
	requester := seedUser(t, db, model.RoleRequestor)

	request := &model.BudgetRequest{
		Type:          model.RequestTypeCapex,
		Amount:        decimal.NewFromInt(50000),
		Category:      "Hardware",
		Justification: "Lab equipment refresh",
		DepartmentID:  dept.ID,
		RequesterID:   requester.ID,
		Status:        model.StatusPending,
	}
	require.NoError(t, db.Create(request).Error)
	return request
}

func signToken(t *testing.T, user *model.User) string {
	t.Helper()
	claims := jwt.MapClaims{
		"sub":  user.ID.String(),
		"role": user.Role,
		"exp":  time.Now().Add(time.Hour).Unix(),
		"iat":  time.Now().Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(middleware.GetJWTSecret())
	require.NoError(t, err)
	return signed
}

func doJSON(router *gin.Engine, method, path, token, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestApproveEndpoint(t *testing.T) {
	router, db := setupApprovalRouter(t)
	request := seedPendingRequest(t, db)
	techLead := seedUser(t, db, model.RoleTechLead)
	token := signToken(t, techLead)

	w := doJSON(router, http.MethodPost, "/api/requests/"+request.ID.String()+"/approve", token, `{}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), model.StatusPending)
	assert.Contains(t, w.Body.String(), model.RoleDeptHead)
}

func TestApproveEndpointRequiresAuth(t *testing.T) {
	router, db := setupApprovalRouter(t)
	request := seedPendingRequest(t, db)

	w := doJSON(router, http.MethodPost, "/api/requests/"+request.ID.String()+"/approve", "", `{}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestApproveEndpointRejectsNonApproverRole(t *testing.T) {
	router, db := setupApprovalRouter(t)
	request := seedPendingRequest(t, db)
	requester := seedUser(t, db, model.RoleRequestor)
	token := signToken(t, requester)

	w := doJSON(router, http.MethodPost, "/api/requests/"+request.ID.String()+"/approve", token, `{}`)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRejectEndpointWithoutComments(t *testing.T) {
	router, db := setupApprovalRouter(t)
	request := seedPendingRequest(t, db)
	techLead := seedUser(t, db, model.RoleTechLead)
	token := signToken(t, techLead)

	w := doJSON(router, http.MethodPost, "/api/requests/"+request.ID.String()+"/reject", token, `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDecisionOnSettledRequestConflicts(t *testing.T) {
	router, db := setupApprovalRouter(t)
	request := seedPendingRequest(t, db)
	techLead := seedUser(t, db, model.RoleTechLead)
	token := signToken(t, techLead)

	w := doJSON(router, http.MethodPost, "/api/requests/"+request.ID.String()+"/reject", token,
		`{"comments":"out of budget"}`)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(router, http.MethodPost, "/api/requests/"+request.ID.String()+"/approve", token, `{}`)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestDecisionOnUnknownRequest(t *testing.T) {
	router, db := setupApprovalRouter(t)
	techLead := seedUser(t, db, model.RoleTechLead)
	token := signToken(t, techLead)

	w := doJSON(router, http.MethodPost, "/api/requests/"+uuid.NewString()+"/approve", token, `{}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPendingApprovalsEndpoint(t *testing.T) {
	router, db := setupApprovalRouter(t)
	request := seedPendingRequest(t, db)
	techLead := seedUser(t, db, model.RoleTechLead)
	cfo := seedUser(t, db, model.RoleCFO)

	w := doJSON(router, http.MethodGet, "/api/approvals/pending", signToken(t, techLead), "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), request.ID.String())

	// The same request is absent from a later role's queue
	w = doJSON(router, http.MethodGet, "/api/approvals/pending", signToken(t, cfo), "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), request.ID.String())
}

func TestTimelineEndpoint(t *testing.T) {
	router, db := setupApprovalRouter(t)
	request := seedPendingRequest(t, db)
	techLead := seedUser(t, db, model.RoleTechLead)
	token := signToken(t, techLead)

	w := doJSON(router, http.MethodPost, "/api/requests/"+request.ID.String()+"/approve", token, `{"comments":"looks good"}`)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(router, http.MethodGet, "/api/timeline/"+request.ID.String(), token, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), model.DecisionApproved)
	assert.Contains(t, w.Body.String(), "looks good")
}
