package handler

import (
	"net/http"

	"lims/internal/middleware"
	"lims/internal/service"
	"lims/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type RoleHandler struct {
	roleService service.RoleService
}

func NewRoleHandler(roleService service.RoleService) *RoleHandler {
	return &RoleHandler{roleService: roleService}
}

func (h *RoleHandler) RegisterRoutes(router *gin.RouterGroup) {
	roles := router.Group("/roles", middleware.RequireAuth(), middleware.RequireAdmin())
	{
		roles.GET("", h.ListRoles)
		roles.GET("/:id", h.GetRole)
		roles.POST("", h.CreateRole)
		roles.PUT("/:id", h.UpdateRole)
		roles.POST("/:id/members/:userId", h.AssignToUser)
		roles.PATCH("/:id/members/:userId", h.SetAssignmentActive)
	}
}

func (h *RoleHandler) ListRoles(c *gin.Context) {
	roles, err := h.roleService.List(c.Request.Context())
	if err != nil {
		status := statusForError(err)
		c.JSON(status, response.Error(status, messageForError(err)))
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, roles))
}

func (h *RoleHandler) GetRole(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid role id"))
		return
	}

	role, err := h.roleService.Get(c.Request.Context(), id)
	if err != nil {
		status := statusForError(err)
		c.JSON(status, response.Error(status, messageForError(err)))
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, role))
}

// CreateRole handles POST /roles
// @Summary      Create a role
// @Tags         roles
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        payload  body      service.CreateRoleRequest  true  "Create Role Payload"
// @Success      201      {object}  response.Response{data=service.RoleResponse}
// @Failure      409      {object}  response.Response
// @Router       /roles [post]
func (h *RoleHandler) CreateRole(c *gin.Context) {
	var req service.CreateRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	role, err := h.roleService.Create(c.Request.Context(), req)
	if err != nil {
		status := statusForError(err)
		c.JSON(status, response.Error(status, messageForError(err)))
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, role))
}

func (h *RoleHandler) UpdateRole(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid role id"))
		return
	}

	var req service.UpdateRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	role, err := h.roleService.Update(c.Request.Context(), id, req)
	if err != nil {
		status := statusForError(err)
		c.JSON(status, response.Error(status, messageForError(err)))
		return
	}

	// Role activity feeds the admin gate; drop any stale cached probes.
	middleware.ClearAdminCache(uuid.Nil)
	c.JSON(http.StatusOK, response.Success(http.StatusOK, role))
}

func (h *RoleHandler) AssignToUser(c *gin.Context) {
	roleID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid role id"))
		return
	}
	userID, err := uuid.Parse(c.Param("userId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid user id"))
		return
	}

	actorID, _ := middleware.UserID(c)

	if err := h.roleService.AssignToUser(c.Request.Context(), actorID, userID, roleID); err != nil {
		status := statusForError(err)
		c.JSON(status, response.Error(status, messageForError(err)))
		return
	}

	middleware.ClearAdminCache(userID)
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, "Role assigned"))
}

func (h *RoleHandler) SetAssignmentActive(c *gin.Context) {
	roleID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid role id"))
		return
	}
	userID, err := uuid.Parse(c.Param("userId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid user id"))
		return
	}

	var req struct {
		IsActive *bool `json:"is_active" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload"))
		return
	}

	if err := h.roleService.SetAssignmentActive(c.Request.Context(), userID, roleID, *req.IsActive); err != nil {
		status := statusForError(err)
		c.JSON(status, response.Error(status, messageForError(err)))
		return
	}

	middleware.ClearAdminCache(userID)
	c.JSON(http.StatusOK, response.Success(http.StatusOK, "Assignment updated"))
}
