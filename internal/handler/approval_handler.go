package handler

import (
	"context"
	"net/http"

	"budgetflow/internal/middleware"
	"budgetflow/internal/model"
	"budgetflow/internal/service"
	"budgetflow/pkg/response"

	"github.com/gin-gonic/gin"
)

type ApprovalHandler struct {
	approvalService service.ApprovalService
}

func NewApprovalHandler(approvalService service.ApprovalService) *ApprovalHandler {
	return &ApprovalHandler{approvalService: approvalService}
}

func (h *ApprovalHandler) RegisterRoutes(router *gin.RouterGroup) {
	approverOnly := middleware.RequireRole(model.ApproverRoles...)
	anyRole := middleware.RequireRole(model.KnownRoles...)

	router.GET("/api/approvals/pending", approverOnly, h.GetPendingApprovals)
	router.GET("/api/timeline/:id", anyRole, h.GetTimeline)

	requests := router.Group("/api/requests")
	{
		requests.POST("/:id/approve", approverOnly, h.ApproveRequest)
		requests.POST("/:id/reject", approverOnly, h.RejectRequest)
		requests.POST("/:id/rework", approverOnly, h.ReworkRequest)
	}
}

// GetPendingApprovals returns the requests awaiting the caller's role
// @Summary      Pending approvals for the authenticated role
// @Tags         approvals
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  response.Response{data=[]service.RequestResponse}
// @Router       /api/approvals/pending [get]
func (h *ApprovalHandler) GetPendingApprovals(c *gin.Context) {
	_, role := middleware.Actor(c)

	pending, err := h.approvalService.PendingForRole(c.Request.Context(), role)
	if err != nil {
		status, body := response.FromError(err)
		c.JSON(status, body)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, pending))
}

// GetTimeline returns the full decision history of a request
// @Summary      Approval timeline of a request
// @Tags         approvals
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Request ID"
// @Success      200  {object}  response.Response{data=[]service.TimelineEntry}
// @Failure      404  {object}  response.Response
// @Router       /api/timeline/{id} [get]
func (h *ApprovalHandler) GetTimeline(c *gin.Context) {
	timeline, err := h.approvalService.Timeline(c.Request.Context(), c.Param("id"))
	if err != nil {
		status, body := response.FromError(err)
		c.JSON(status, body)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, timeline))
}

// ApproveRequest records an APPROVED decision and forwards the request
// @Summary      Approve a pending request
// @Tags         approvals
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string               true   "Request ID"
// @Param        payload  body      service.DecisionDTO  false  "Optional comments"
// @Success      200      {object}  response.Response{data=service.DecisionResult}
// @Failure      404      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /api/requests/{id}/approve [post]
func (h *ApprovalHandler) ApproveRequest(c *gin.Context) {
	h.decide(c, h.approvalService.Approve)
}

// RejectRequest records a REJECTED decision; comments are mandatory
// @Summary      Reject a pending request
// @Tags         approvals
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string               true  "Request ID"
// @Param        payload  body      service.DecisionDTO  true  "Comments (required)"
// @Success      200      {object}  response.Response{data=service.DecisionResult}
// @Failure      400      {object}  response.Response
// @Failure      404      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /api/requests/{id}/reject [post]
func (h *ApprovalHandler) RejectRequest(c *gin.Context) {
	h.decide(c, h.approvalService.Reject)
}

// ReworkRequest sends a pending request back to its requester; comments are mandatory
// @Summary      Send a pending request back for rework
// @Tags         approvals
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string               true  "Request ID"
// @Param        payload  body      service.DecisionDTO  true  "Comments (required)"
// @Success      200      {object}  response.Response{data=service.DecisionResult}
// @Failure      400      {object}  response.Response
// @Failure      404      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /api/requests/{id}/rework [post]
func (h *ApprovalHandler) ReworkRequest(c *gin.Context) {
	h.decide(c, h.approvalService.Rework)
}

type decisionFunc func(ctx context.Context, requestID, actorID, actorRole, comments string) (service.DecisionResult, error)

func (h *ApprovalHandler) decide(c *gin.Context, fn decisionFunc) {
	actorID, actorRole := middleware.Actor(c)

	var req service.DecisionDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		// Empty body is fine for approve — comment checks live in the engine
		req.Comments = ""
	}

	result, err := fn(c.Request.Context(), c.Param("id"), actorID, actorRole, req.Comments)
	if err != nil {
		status, body := response.FromError(err)
		c.JSON(status, body)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, result))
}
