package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/hayat-interiors/appraisal-api/internal/service"
	appErrors "github.com/hayat-interiors/appraisal-api/pkg/errors"
	"github.com/hayat-interiors/appraisal-api/pkg/response"
)

// CycleHandler exposes the appraisal cycle endpoints.
type CycleHandler struct {
	cycles *service.CycleService
}

// NewCycleHandler constructs the handler.
func NewCycleHandler(cycles *service.CycleService) *CycleHandler {
	return &CycleHandler{cycles: cycles}
}

// List godoc
// @Summary List appraisal cycles
// @Tags Cycles
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /cycles [get]
func (h *CycleHandler) List(c *gin.Context) {
	cycles, err := h.cycles.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, cycles, nil)
}

// Get godoc
// @Summary Get one appraisal cycle
// @Tags Cycles
// @Produce json
// @Param id path int true "Cycle ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /cycles/{id} [get]
func (h *CycleHandler) Get(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	cycle, err := h.cycles.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, cycle, nil)
}

// Create godoc
// @Summary Create an appraisal cycle
// @Tags Cycles
// @Accept json
// @Produce json
// @Param payload body service.CreateCycleRequest true "Cycle payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /cycles [post]
func (h *CycleHandler) Create(c *gin.Context) {
	var req service.CreateCycleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid cycle payload"))
		return
	}
	cycle, err := h.cycles.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, cycle)
}

// GenerateForms godoc
// @Summary Generate forms for every eligible employee in a cycle
// @Tags Cycles
// @Produce json
// @Param id path int true "Cycle ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /cycles/{id}/generate [post]
func (h *CycleHandler) GenerateForms(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	result, err := h.cycles.GenerateForms(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Delete godoc
// @Summary Delete a cycle and everything generated under it
// @Tags Cycles
// @Produce json
// @Param id path int true "Cycle ID"
// @Success 204 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /cycles/{id} [delete]
func (h *CycleHandler) Delete(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	if err := h.cycles.Delete(c.Request.Context(), id); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Progress godoc
// @Summary Per-cycle form status counts
// @Tags Cycles
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /cycles/progress [get]
func (h *CycleHandler) Progress(c *gin.Context) {
	progress, err := h.cycles.Progress(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, progress, nil)
}
