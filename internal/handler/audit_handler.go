package handler

import (
	"net/http"
	"time"

	"lims/internal/middleware"
	"lims/internal/repository"
	"lims/internal/service"
	"lims/pkg/pagination"
	"lims/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type AuditHandler struct {
	auditService service.AuditService
}

func NewAuditHandler(auditService service.AuditService) *AuditHandler {
	return &AuditHandler{auditService: auditService}
}

func (h *AuditHandler) RegisterRoutes(router *gin.RouterGroup) {
	audit := router.Group("/audit-logs", middleware.RequireAuth(), middleware.RequireAdmin())
	{
		audit.GET("", h.ListAuditLogs)
		audit.PATCH("/:id/annotate", h.Annotate)
	}
}

// ListAuditLogs handles GET /audit-logs with optional actor/action/time filters
// @Summary      List audit logs
// @Description  Range scan over the timestamp-ordered trail; admin only
// @Tags         audit
// @Produce      json
// @Security     BearerAuth
// @Param        page    query  int     false  "Page number"
// @Param        limit   query  int     false  "Items per page"
// @Param        user_id query  string  false  "Filter by actor"
// @Param        action  query  string  false  "Filter by action name"
// @Param        from    query  string  false  "RFC3339 lower bound"
// @Param        to      query  string  false  "RFC3339 upper bound"
// @Success      200     {object}  response.Response{data=[]service.AuditLogResponse}
// @Router       /audit-logs [get]
func (h *AuditHandler) ListAuditLogs(c *gin.Context) {
	params := pagination.Parse(c)

	var filter repository.AuditFilter
	if v := c.Query("user_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid user_id filter"))
			return
		}
		filter.UserID = &id
	}
	filter.Action = c.Query("action")
	if v := c.Query("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid from filter"))
			return
		}
		filter.From = &t
	}
	if v := c.Query("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid to filter"))
			return
		}
		filter.To = &t
	}

	logs, total, err := h.auditService.List(c.Request.Context(), filter, params.Page, params.Limit)
	if err != nil {
		status := statusForError(err)
		c.JSON(status, response.Error(status, messageForError(err)))
		return
	}

	c.JSON(http.StatusOK, response.Paginated(http.StatusOK, logs, params.Page, params.Limit, total))
}

// Annotate handles PATCH /audit-logs/:id/annotate. Only the details payload
// and update timestamp change; the recorded fact is immutable.
func (h *AuditHandler) Annotate(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid audit log id"))
		return
	}

	var req struct {
		Details map[string]any `json:"details" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload"))
		return
	}

	if err := h.auditService.Annotate(c.Request.Context(), id, req.Details); err != nil {
		status := statusForError(err)
		c.JSON(status, response.Error(status, messageForError(err)))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, "Annotated"))
}
