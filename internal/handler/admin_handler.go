package handler

import (
	"net/http"
	"strconv"

	"budgetflow/internal/middleware"
	"budgetflow/internal/model"
	"budgetflow/internal/service"
	"budgetflow/pkg/response"

	"github.com/gin-gonic/gin"
)

type AdminHandler struct {
	hierarchyService  service.HierarchyService
	departmentService service.DepartmentService
	auditService      service.AuditService
	statsService      service.StatsService
}

func NewAdminHandler(
	hierarchyService service.HierarchyService,
	departmentService service.DepartmentService,
	auditService service.AuditService,
	statsService service.StatsService,
) *AdminHandler {
	return &AdminHandler{
		hierarchyService:  hierarchyService,
		departmentService: departmentService,
		auditService:      auditService,
		statsService:      statsService,
	}
}

func (h *AdminHandler) RegisterRoutes(router *gin.RouterGroup) {
	adminOnly := middleware.RequireRole(model.RoleSuperAdmin)
	anyRole := middleware.RequireRole(model.KnownRoles...)

	admin := router.Group("/api/admin")
	{
		admin.GET("/departments", anyRole, h.ListDepartments)
		admin.POST("/departments", adminOnly, h.CreateDepartment)
		admin.PATCH("/departments/:id", adminOnly, h.UpdateDepartment)
		admin.DELETE("/departments/:id", adminOnly, h.DeleteDepartment)

		admin.GET("/hierarchy", adminOnly, h.GetHierarchy)
		admin.PATCH("/hierarchy", adminOnly, h.UpdateHierarchy)

		admin.GET("/audit-logs", adminOnly, h.ListAuditLogs)
		admin.GET("/audit-logs/:user_id", adminOnly, h.ListUserAuditLogs)

		admin.GET("/stats", adminOnly, h.GetStats)
	}
}

// ListDepartments returns all departments ordered by name
// @Summary      List departments
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  response.Response{data=[]model.Department}
// @Router       /api/admin/departments [get]
func (h *AdminHandler) ListDepartments(c *gin.Context) {
	departments, err := h.departmentService.List(c.Request.Context())
	if err != nil {
		status, body := response.FromError(err)
		c.JSON(status, body)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, departments))
}

// CreateDepartment creates a department
// @Summary      Create department
// @Tags         admin
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        payload  body      service.DepartmentDTO  true  "Department"
// @Success      201      {object}  response.Response{data=model.Department}
// @Failure      400      {object}  response.Response
// @Router       /api/admin/departments [post]
func (h *AdminHandler) CreateDepartment(c *gin.Context) {
	actorID, _ := middleware.Actor(c)

	var req service.DepartmentDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Department name is required"))
		return
	}

	dept, err := h.departmentService.Create(c.Request.Context(), req.Name, actorID)
	if err != nil {
		status, body := response.FromError(err)
		c.JSON(status, body)
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, dept))
}

// UpdateDepartment renames a department
// @Summary      Update department
// @Tags         admin
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string                 true  "Department ID"
// @Param        payload  body      service.DepartmentDTO  true  "Department"
// @Success      200      {object}  response.Response{data=model.Department}
// @Failure      404      {object}  response.Response
// @Router       /api/admin/departments/{id} [patch]
func (h *AdminHandler) UpdateDepartment(c *gin.Context) {
	actorID, _ := middleware.Actor(c)

	var req service.DepartmentDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Department name is required"))
		return
	}

	dept, err := h.departmentService.Update(c.Request.Context(), c.Param("id"), req.Name, actorID)
	if err != nil {
		status, body := response.FromError(err)
		c.JSON(status, body)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, dept))
}

// DeleteDepartment removes a department
// @Summary      Delete department
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Department ID"
// @Success      200  {object}  response.Response
// @Router       /api/admin/departments/{id} [delete]
func (h *AdminHandler) DeleteDepartment(c *gin.Context) {
	actorID, _ := middleware.Actor(c)

	if err := h.departmentService.Delete(c.Request.Context(), c.Param("id"), actorID); err != nil {
		status, body := response.FromError(err)
		c.JSON(status, body)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{"message": "Department deleted successfully"}))
}

// GetHierarchy returns the configured approval chain
// @Summary      Get approval hierarchy
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  response.Response{data=service.HierarchyResponse}
// @Failure      404  {object}  response.Response
// @Router       /api/admin/hierarchy [get]
func (h *AdminHandler) GetHierarchy(c *gin.Context) {
	hierarchy, err := h.hierarchyService.Get(c.Request.Context())
	if err != nil {
		status, body := response.FromError(err)
		c.JSON(status, body)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, hierarchy))
}

type updateHierarchyDTO struct {
	Hierarchy []string `json:"hierarchy" binding:"required"`
}

// UpdateHierarchy replaces the approval chain
// @Summary      Update approval hierarchy
// @Tags         admin
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        payload  body      updateHierarchyDTO  true  "Ordered role list"
// @Success      200      {object}  response.Response{data=service.HierarchyResponse}
// @Failure      400      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /api/admin/hierarchy [patch]
func (h *AdminHandler) UpdateHierarchy(c *gin.Context) {
	actorID, _ := middleware.Actor(c)

	var req updateHierarchyDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Valid hierarchy array is required"))
		return
	}

	hierarchy, err := h.hierarchyService.Update(c.Request.Context(), req.Hierarchy, actorID)
	if err != nil {
		status, body := response.FromError(err)
		c.JSON(status, body)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, hierarchy))
}

// ListAuditLogs returns recent audit entries, optionally filtered by action
// @Summary      List audit logs
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Param        limit   query     int     false  "Limit (default 100)"
// @Param        action  query     string  false  "Filter by action"
// @Success      200     {object}  response.Response{data=[]service.AuditLogResponse}
// @Router       /api/admin/audit-logs [get]
func (h *AdminHandler) ListAuditLogs(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))

	var logs []service.AuditLogResponse
	var err error
	if action := c.Query("action"); action != "" {
		logs, err = h.auditService.ListByAction(c.Request.Context(), action, limit)
	} else {
		logs, err = h.auditService.List(c.Request.Context(), limit)
	}
	if err != nil {
		status, body := response.FromError(err)
		c.JSON(status, body)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, logs))
}

// ListUserAuditLogs returns recent audit entries of one user
// @Summary      List audit logs for a user
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Param        user_id  path      string  true   "User ID"
// @Param        limit    query     int     false  "Limit (default 100)"
// @Success      200      {object}  response.Response{data=[]service.AuditLogResponse}
// @Router       /api/admin/audit-logs/{user_id} [get]
func (h *AdminHandler) ListUserAuditLogs(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))

	logs, err := h.auditService.ListByUser(c.Request.Context(), c.Param("user_id"), limit)
	if err != nil {
		status, body := response.FromError(err)
		c.JSON(status, body)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, logs))
}

// GetStats returns aggregate system counters
// @Summary      System statistics
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  response.Response{data=service.SystemStats}
// @Router       /api/admin/stats [get]
func (h *AdminHandler) GetStats(c *gin.Context) {
	stats, err := h.statsService.GetSystemStats(c.Request.Context())
	if err != nil {
		status, body := response.FromError(err)
		c.JSON(status, body)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, stats))
}
