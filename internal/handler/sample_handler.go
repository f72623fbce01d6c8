package handler

import (
	"net/http"

	"lims/internal/middleware"
	"lims/internal/service"
	"lims/pkg/pagination"
	"lims/pkg/response"

	"github.com/gin-gonic/gin"
)

type SampleHandler struct {
	sampleService service.SampleService
}

func NewSampleHandler(sampleService service.SampleService) *SampleHandler {
	return &SampleHandler{sampleService: sampleService}
}

func (h *SampleHandler) RegisterRoutes(router *gin.RouterGroup) {
	samples := router.Group("/samples", middleware.RequireAuth())
	{
		samples.GET("", h.ListSamples)
		samples.GET("/:sampleId", h.GetSample)
		samples.POST("", h.CreateSample)
		samples.PUT("/:sampleId", h.UpdateSample)
		samples.DELETE("/:sampleId", h.DisposeSample)
	}
}

// CreateSample handles POST /samples
// @Summary      Register a sample
// @Description  Registers a new sample under a group; the caller must have access to that group
// @Tags         samples
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        payload  body      service.CreateSampleRequest  true  "Create Sample Payload"
// @Success      201      {object}  response.Response{data=model.Sample}
// @Failure      403      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /samples [post]
func (h *SampleHandler) CreateSample(c *gin.Context) {
	var req service.CreateSampleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	actorID, _ := middleware.UserID(c)

	sample, err := h.sampleService.Create(c.Request.Context(), actorID, req)
	if err != nil {
		status := statusForError(err)
		c.JSON(status, response.Error(status, messageForError(err)))
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, sample))
}

// ListSamples handles GET /samples, scoped to the caller's accessible groups
// @Summary      List samples
// @Description  Lists samples visible to the caller: owned by an accessible group, or everything for admins
// @Tags         samples
// @Produce      json
// @Security     BearerAuth
// @Param        page   query     int  false  "Page number"
// @Param        limit  query     int  false  "Items per page"
// @Success      200    {object}  response.Response{data=[]model.Sample}
// @Router       /samples [get]
func (h *SampleHandler) ListSamples(c *gin.Context) {
	params := pagination.Parse(c)
	actorID, _ := middleware.UserID(c)

	samples, total, err := h.sampleService.List(c.Request.Context(), actorID, params.Page, params.Limit)
	if err != nil {
		status := statusForError(err)
		c.JSON(status, response.Error(status, messageForError(err)))
		return
	}

	c.JSON(http.StatusOK, response.Paginated(http.StatusOK, samples, params.Page, params.Limit, total))
}

// GetSample handles GET /samples/:sampleId
func (h *SampleHandler) GetSample(c *gin.Context) {
	actorID, _ := middleware.UserID(c)

	sample, err := h.sampleService.Get(c.Request.Context(), actorID, c.Param("sampleId"))
	if err != nil {
		status := statusForError(err)
		c.JSON(status, response.Error(status, messageForError(err)))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, sample))
}

// UpdateSample handles PUT /samples/:sampleId
func (h *SampleHandler) UpdateSample(c *gin.Context) {
	var req service.UpdateSampleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	actorID, _ := middleware.UserID(c)

	sample, err := h.sampleService.Update(c.Request.Context(), actorID, c.Param("sampleId"), req)
	if err != nil {
		status := statusForError(err)
		c.JSON(status, response.Error(status, messageForError(err)))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, sample))
}

// DisposeSample handles DELETE /samples/:sampleId. Disposal is a status
// transition, not a row delete; the sample stays queryable.
func (h *SampleHandler) DisposeSample(c *gin.Context) {
	actorID, _ := middleware.UserID(c)

	sample, err := h.sampleService.Dispose(c.Request.Context(), actorID, c.Param("sampleId"))
	if err != nil {
		status := statusForError(err)
		c.JSON(status, response.Error(status, messageForError(err)))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, sample))
}
