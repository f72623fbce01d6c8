package handler

import (
	"net/http"

	"lims/internal/middleware"
	"lims/internal/service"
	"lims/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type GroupHandler struct {
	groupService service.GroupService
}

func NewGroupHandler(groupService service.GroupService) *GroupHandler {
	return &GroupHandler{groupService: groupService}
}

func (h *GroupHandler) RegisterRoutes(router *gin.RouterGroup) {
	groups := router.Group("/groups", middleware.RequireAuth(), middleware.RequireAdmin())
	{
		groups.GET("", h.ListGroups)
		groups.GET("/:id", h.GetGroup)
		groups.POST("", h.CreateGroup)
		groups.PUT("/:id", h.UpdateGroup)
		groups.POST("/:id/members/:userId", h.AssignUser)
		groups.PATCH("/:id/members/:userId", h.SetMembershipActive)
	}
}

// CreateGroup handles POST /groups
// @Summary      Create a group
// @Description  Creates a group, optionally parented under an existing one
// @Tags         groups
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        payload  body      service.CreateGroupRequest  true  "Create Group Payload"
// @Success      201      {object}  response.Response{data=service.GroupResponse}
// @Failure      400      {object}  response.Response
// @Router       /groups [post]
func (h *GroupHandler) CreateGroup(c *gin.Context) {
	var req service.CreateGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	actorID, _ := middleware.UserID(c)

	group, err := h.groupService.Create(c.Request.Context(), actorID, req)
	if err != nil {
		status := statusForError(err)
		c.JSON(status, response.Error(status, messageForError(err)))
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, group))
}

func (h *GroupHandler) ListGroups(c *gin.Context) {
	groups, err := h.groupService.List(c.Request.Context())
	if err != nil {
		status := statusForError(err)
		c.JSON(status, response.Error(status, messageForError(err)))
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, groups))
}

func (h *GroupHandler) GetGroup(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid group id"))
		return
	}

	group, err := h.groupService.Get(c.Request.Context(), id)
	if err != nil {
		status := statusForError(err)
		c.JSON(status, response.Error(status, messageForError(err)))
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, group))
}

// UpdateGroup handles PUT /groups/:id. A parent change that would close a
// loop in the hierarchy is rejected with 409.
func (h *GroupHandler) UpdateGroup(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid group id"))
		return
	}

	var req service.UpdateGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	group, err := h.groupService.Update(c.Request.Context(), id, req)
	if err != nil {
		status := statusForError(err)
		c.JSON(status, response.Error(status, messageForError(err)))
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, group))
}

func (h *GroupHandler) AssignUser(c *gin.Context) {
	groupID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid group id"))
		return
	}
	userID, err := uuid.Parse(c.Param("userId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid user id"))
		return
	}

	actorID, _ := middleware.UserID(c)

	if err := h.groupService.AssignUser(c.Request.Context(), actorID, userID, groupID); err != nil {
		status := statusForError(err)
		c.JSON(status, response.Error(status, messageForError(err)))
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, "Member assigned"))
}

func (h *GroupHandler) SetMembershipActive(c *gin.Context) {
	groupID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid group id"))
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

	if err := h.groupService.SetMembershipActive(c.Request.Context(), userID, groupID, *req.IsActive); err != nil {
		status := statusForError(err)
		c.JSON(status, response.Error(status, messageForError(err)))
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, "Membership updated"))
}
