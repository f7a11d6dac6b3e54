package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/hayat-interiors/appraisal-api/internal/service"
	appErrors "github.com/hayat-interiors/appraisal-api/pkg/errors"
	"github.com/hayat-interiors/appraisal-api/pkg/response"
)

// FormHandler exposes the appraisal form workflow endpoints.
type FormHandler struct {
	workflow  *service.WorkflowService
	dashboard *service.DashboardService
	logger    *zap.Logger
}

// NewFormHandler constructs the handler. The dashboard service may be nil
// in tests that do not exercise cache invalidation.
func NewFormHandler(workflow *service.WorkflowService, dashboard *service.DashboardService, logger *zap.Logger) *FormHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FormHandler{workflow: workflow, dashboard: dashboard, logger: logger}
}

// invalidateDashboards drops the cached dashboard aggregates after a
// status transition. Failures are logged, never surfaced to the caller.
func (h *FormHandler) invalidateDashboards(c *gin.Context) {
	if h.dashboard == nil {
		return
	}
	h.dashboard.Invalidate(c.Request.Context())
}

// Get godoc
// @Summary Get a form with its resolved row sets
// @Tags Forms
// @Produce json
// @Param id path int true "Form ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /forms/{id} [get]
func (h *FormHandler) Get(c *gin.Context) {
	authority, ok := authorityFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	id, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	view, err := h.workflow.GetForm(c.Request.Context(), authority, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}

// ListMine godoc
// @Summary List the caller's own forms across cycles
// @Tags Forms
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /forms/mine [get]
func (h *FormHandler) ListMine(c *gin.Context) {
	authority, ok := authorityFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	forms, err := h.workflow.ListMyForms(c.Request.Context(), authority)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, forms, nil)
}

// ReviewInbox godoc
// @Summary Submitted forms awaiting the caller's manager review
// @Tags Forms
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /forms/review-inbox [get]
func (h *FormHandler) ReviewInbox(c *gin.Context) {
	authority, ok := authorityFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	forms, err := h.workflow.ListReviewInbox(c.Request.Context(), authority)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, forms, nil)
}

// HRQueue godoc
// @Summary Manager-reviewed forms awaiting the HR decision
// @Tags Forms
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /forms/hr-queue [get]
func (h *FormHandler) HRQueue(c *gin.Context) {
	authority, ok := authorityFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	forms, err := h.workflow.ListHRQueue(c.Request.Context(), authority)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, forms, nil)
}

// SaveSelf godoc
// @Summary Save the employee's self evaluation draft
// @Tags Forms
// @Accept json
// @Produce json
// @Param id path int true "Form ID"
// @Param payload body service.SaveSelfEvaluationRequest true "Self evaluation"
// @Success 204 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /forms/{id}/self [put]
func (h *FormHandler) SaveSelf(c *gin.Context) {
	authority, ok := authorityFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	id, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	var req service.SaveSelfEvaluationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid self evaluation payload"))
		return
	}
	if err := h.workflow.SaveSelfEvaluation(c.Request.Context(), authority, id, req); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// SaveSelfResponses godoc
// @Summary Save free-form question responses on a draft form
// @Tags Forms
// @Accept json
// @Produce json
// @Param id path int true "Form ID"
// @Param payload body service.SaveSelfResponsesRequest true "Responses"
// @Success 204 {object} response.Envelope
// @Router /forms/{id}/responses [put]
func (h *FormHandler) SaveSelfResponses(c *gin.Context) {
	authority, ok := authorityFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	id, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	var req service.SaveSelfResponsesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid responses payload"))
		return
	}
	if err := h.workflow.SaveSelfResponses(c.Request.Context(), authority, id, req); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

type submitFormRequest struct {
	RowVersion int64 `json:"row_version" binding:"required,min=1"`
}

// Submit godoc
// @Summary Submit the self evaluation for manager review
// @Tags Forms
// @Accept json
// @Produce json
// @Param id path int true "Form ID"
// @Param payload body submitFormRequest true "Row version"
// @Success 204 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /forms/{id}/submit [post]
func (h *FormHandler) Submit(c *gin.Context) {
	authority, ok := authorityFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	id, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	var req submitFormRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid submit payload"))
		return
	}
	if err := h.workflow.SubmitSelfEvaluation(c.Request.Context(), authority, id, req.RowVersion); err != nil {
		response.Error(c, err)
		return
	}
	h.invalidateDashboards(c)
	response.NoContent(c)
}

// OpenReview godoc
// @Summary Open a submitted form for manager review
// @Tags Forms
// @Produce json
// @Param id path int true "Form ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /forms/{id}/review [get]
func (h *FormHandler) OpenReview(c *gin.Context) {
	authority, ok := authorityFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	id, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	view, err := h.workflow.OpenManagerReview(c.Request.Context(), authority, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}

// SaveReview godoc
// @Summary Save the manager review, optionally submitting it
// @Tags Forms
// @Accept json
// @Produce json
// @Param id path int true "Form ID"
// @Param payload body service.SaveManagerReviewRequest true "Manager review"
// @Success 204 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /forms/{id}/review [put]
func (h *FormHandler) SaveReview(c *gin.Context) {
	authority, ok := authorityFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	id, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	var req service.SaveManagerReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid review payload"))
		return
	}
	if err := h.workflow.SaveManagerReview(c.Request.Context(), authority, id, req); err != nil {
		response.Error(c, err)
		return
	}
	if req.Submit {
		h.invalidateDashboards(c)
	}
	response.NoContent(c)
}

// HRReview godoc
// @Summary Record the HR decision on a manager-reviewed form
// @Tags Forms
// @Accept json
// @Produce json
// @Param id path int true "Form ID"
// @Param payload body service.HRReviewRequest true "HR review"
// @Success 204 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /forms/{id}/hr-review [post]
func (h *FormHandler) HRReview(c *gin.Context) {
	authority, ok := authorityFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	id, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	var req service.HRReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid HR review payload"))
		return
	}
	if err := h.workflow.HRReview(c.Request.Context(), authority, id, req); err != nil {
		response.Error(c, err)
		return
	}
	h.invalidateDashboards(c)
	response.NoContent(c)
}

// CEOComment godoc
// @Summary Append an executive comment to a reviewed form
// @Tags Forms
// @Accept json
// @Produce json
// @Param id path int true "Form ID"
// @Param payload body service.CEOCommentRequest true "Comment"
// @Success 204 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /forms/{id}/ceo-comment [post]
func (h *FormHandler) CEOComment(c *gin.Context) {
	authority, ok := authorityFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	id, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	var req service.CEOCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid comment payload"))
		return
	}
	if err := h.workflow.CEOComment(c.Request.Context(), authority, id, req); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Finalize godoc
// @Summary Approve or finalize a form (administrators only)
// @Tags Forms
// @Accept json
// @Produce json
// @Param id path int true "Form ID"
// @Param payload body service.FinalizeFormRequest true "Target status"
// @Success 204 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /forms/{id}/finalize [post]
func (h *FormHandler) Finalize(c *gin.Context) {
	authority, ok := authorityFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	id, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	var req service.FinalizeFormRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid finalize payload"))
		return
	}
	if err := h.workflow.Finalize(c.Request.Context(), authority, id, req); err != nil {
		response.Error(c, err)
		return
	}
	h.invalidateDashboards(c)
	response.NoContent(c)
}
