package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/hayat-interiors/appraisal-api/internal/models"
	"github.com/hayat-interiors/appraisal-api/internal/repository"
	appErrors "github.com/hayat-interiors/appraisal-api/pkg/errors"
)

type workflowFormRepo interface {
	FindDetail(ctx context.Context, id int64) (*models.FormDetail, error)
	ListByEmployee(ctx context.Context, employeeID int64) ([]models.FormDetail, error)
	ListAllDetails(ctx context.Context) ([]models.FormDetail, error)
	ListDetailsByStatus(ctx context.Context, statuses ...models.FormStatus) ([]models.FormDetail, error)
	UpdateStatus(ctx context.Context, id int64, status models.FormStatus, rowVersion int64) error
	UpdateScores(ctx context.Context, id int64, employeeScore, managerScore, finalScore *decimal.Decimal) error
	ReplaceSelfEvaluation(ctx context.Context, formID int64, rows []models.Responsibility, comments *string, rowVersion int64) error
	ReplaceManagerReview(ctx context.Context, formID int64, kpis []models.KPIItem, softScores map[string]int, comments *string, rowVersion int64) error
	UpdateHRReview(ctx context.Context, formID int64, status models.FormStatus, comments *string, rowVersion int64) error
	AppendCEOComment(ctx context.Context, formID int64, comment string, rowVersion int64) error
	ListResponsibilities(ctx context.Context, formID int64) ([]models.Responsibility, error)
	ListKPIs(ctx context.Context, formID int64) ([]models.KPIItem, error)
	ListSoftSkills(ctx context.Context, formID int64) ([]models.SoftSkillRating, error)
	MaterializeSoftSkills(ctx context.Context, formID int64, attrs []models.SoftSkillAttribute, defaultScore int) (bool, error)
	ListResponses(ctx context.Context, formID int64) ([]models.ResponseDetail, error)
	UpdateSelfResponses(ctx context.Context, formID int64, responses []models.Response) error
}

type formVisibility interface {
	VisibleForms(ctx context.Context, target models.Employee, forms []models.FormDetail) ([]models.FormDetail, error)
}

type workflowAuditor interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// ResponsibilityInput is one self-evaluation row in a save payload.
type ResponsibilityInput struct {
	Title              string  `json:"title"`
	Description        *string `json:"description"`
	AchievementPercent int     `json:"achievement_percent"`
}

// SaveSelfEvaluationRequest replaces the form's responsibility rows.
type SaveSelfEvaluationRequest struct {
	Responsibilities []ResponsibilityInput `json:"responsibilities" validate:"required"`
	Comments         *string               `json:"comments"`
	RowVersion       int64                 `json:"row_version" validate:"required,min=1"`
}

// KPIInput is one manager-entered KPI row in a save payload.
type KPIInput struct {
	Description       string  `json:"description"`
	ActualPerformance *string `json:"actual_performance"`
	Score             int     `json:"score"`
}

// SaveManagerReviewRequest rewrites the KPI rows and rescores soft skills.
type SaveManagerReviewRequest struct {
	KPIs       []KPIInput     `json:"kpis"`
	SoftSkills map[string]int `json:"soft_skills"`
	Comments   *string        `json:"comments"`
	RowVersion int64          `json:"row_version" validate:"required,min=1"`
	Submit     bool           `json:"submit"`
}

// HRReviewRequest records the HR decision on a manager-reviewed form.
type HRReviewRequest struct {
	Comments   *string `json:"comments"`
	RowVersion int64   `json:"row_version" validate:"required,min=1"`
}

// CEOCommentRequest appends an executive note to a reviewed form.
type CEOCommentRequest struct {
	Comment    string `json:"comment" validate:"required"`
	RowVersion int64  `json:"row_version" validate:"required,min=1"`
}

// FinalizeFormRequest is the administrator-only closure of a form.
type FinalizeFormRequest struct {
	Status     models.FormStatus `json:"status" validate:"required,oneof=Approved Finalized"`
	RowVersion int64             `json:"row_version" validate:"required,min=1"`
}

// SelfResponseInput carries one legacy self answer keyed by response row id.
type SelfResponseInput struct {
	ID         int64   `json:"id" validate:"required"`
	SelfRating *int    `json:"self_rating"`
	Comment    *string `json:"comment"`
}

// SaveSelfResponsesRequest writes the self side of the legacy Q&A rows.
type SaveSelfResponsesRequest struct {
	Responses []SelfResponseInput `json:"responses" validate:"required,dive"`
}

// FormView is a form with all of its child row sets resolved.
type FormView struct {
	models.FormDetail
	Responsibilities []models.Responsibility  `json:"responsibilities"`
	KPIs             []models.KPIItem         `json:"kpis"`
	SoftSkills       []models.SoftSkillRating `json:"soft_skills"`
	Responses        []models.ResponseDetail  `json:"responses"`
}

// WorkflowService drives the appraisal form state machine. Every mutation is
// gated on the acting principal's AuthorityContext, and manager capability is
// recomputed against the live hierarchy on each call rather than trusted from
// the session.
type WorkflowService struct {
	forms     workflowFormRepo
	hierarchy formVisibility
	auditor   workflowAuditor
	validator *validator.Validate
	logger    *zap.Logger
}

// NewWorkflowService constructs WorkflowService.
func NewWorkflowService(forms workflowFormRepo, hierarchy formVisibility, auditor workflowAuditor, validate *validator.Validate, logger *zap.Logger) *WorkflowService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WorkflowService{forms: forms, hierarchy: hierarchy, auditor: auditor, validator: validate, logger: logger}
}

func translateFormErr(err error, action string) error {
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return appErrors.Clone(appErrors.ErrNotFound, "form not found")
	case errors.Is(err, repository.ErrVersionConflict):
		return appErrors.Clone(appErrors.ErrConflict, "form was modified by another request, reload and retry")
	default:
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to "+action)
	}
}

func (s *WorkflowService) loadForm(ctx context.Context, formID int64) (*models.FormDetail, error) {
	form, err := s.forms.FindDetail(ctx, formID)
	if err != nil {
		return nil, translateFormErr(err, "load form")
	}
	return form, nil
}

// canManage reports whether the acting principal may operate in the manager
// lane on this particular form. Administrators always may; everyone else must
// find the form in their visible set.
func (s *WorkflowService) canManage(ctx context.Context, authority models.AuthorityContext, form *models.FormDetail) (bool, error) {
	if authority.Admin() {
		return true, nil
	}
	visible, err := s.hierarchy.VisibleForms(ctx, authority.Employee, []models.FormDetail{*form})
	if err != nil {
		return false, err
	}
	return len(visible) > 0, nil
}

func (s *WorkflowService) audit(ctx context.Context, authority models.AuthorityContext, formID int64, from, to models.FormStatus) {
	if s.auditor == nil {
		return
	}
	resourceID := fmt.Sprintf("%d", formID)
	oldVals, _ := json.Marshal(map[string]string{"status": string(from)})
	newVals, _ := json.Marshal(map[string]string{"status": string(to)})
	entry := &models.AuditLog{
		UserID:     authority.Employee.UserID,
		Action:     models.AuditActionFormTransition,
		Resource:   "form",
		ResourceID: &resourceID,
		OldValues:  oldVals,
		NewValues:  newVals,
	}
	if err := s.auditor.CreateAuditLog(ctx, entry); err != nil {
		s.logger.Warn("audit log write failed", zap.Int64("form_id", formID), zap.Error(err))
	}
}

// GetForm loads the full form view for an authorized principal. Owners, HR,
// the CEO and administrators always see it; managers only through visibility.
func (s *WorkflowService) GetForm(ctx context.Context, authority models.AuthorityContext, formID int64) (*FormView, error) {
	form, err := s.loadForm(ctx, formID)
	if err != nil {
		return nil, err
	}

	allowed := form.EmployeeID == authority.Employee.ID || authority.Admin() || authority.HR || authority.CEO
	if !allowed {
		allowed, err = s.canManage(ctx, authority, form)
		if err != nil {
			return nil, err
		}
	}
	if !allowed {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "no access to this form")
	}

	return s.buildView(ctx, form, false)
}

func (s *WorkflowService) buildView(ctx context.Context, form *models.FormDetail, padKPIs bool) (*FormView, error) {
	view := &FormView{FormDetail: *form}
	var err error
	if view.Responsibilities, err = s.forms.ListResponsibilities(ctx, form.ID); err != nil {
		return nil, translateFormErr(err, "load responsibilities")
	}
	if view.KPIs, err = s.forms.ListKPIs(ctx, form.ID); err != nil {
		return nil, translateFormErr(err, "load kpi rows")
	}
	if view.SoftSkills, err = s.forms.ListSoftSkills(ctx, form.ID); err != nil {
		return nil, translateFormErr(err, "load soft skills")
	}
	if view.Responses, err = s.forms.ListResponses(ctx, form.ID); err != nil {
		return nil, translateFormErr(err, "load responses")
	}
	if padKPIs {
		view.KPIs = padKPIRows(view.KPIs)
	}
	return view, nil
}

// padKPIRows normalizes to the fixed display row count: truncate extras,
// append blanks. The padding never persists.
func padKPIRows(rows []models.KPIItem) []models.KPIItem {
	if len(rows) > models.KPIRowCount {
		return rows[:models.KPIRowCount]
	}
	for len(rows) < models.KPIRowCount {
		rows = append(rows, models.KPIItem{})
	}
	return rows
}

// ListMyForms returns the principal's own forms.
func (s *WorkflowService) ListMyForms(ctx context.Context, authority models.AuthorityContext) ([]models.FormDetail, error) {
	forms, err := s.forms.ListByEmployee(ctx, authority.Employee.ID)
	if err != nil {
		return nil, translateFormErr(err, "list forms")
	}
	return forms, nil
}

// ListReviewInbox returns the forms the principal may review. Administrators
// and HR see everything; managers see their visible set.
func (s *WorkflowService) ListReviewInbox(ctx context.Context, authority models.AuthorityContext) ([]models.FormDetail, error) {
	all, err := s.forms.ListAllDetails(ctx)
	if err != nil {
		return nil, translateFormErr(err, "list forms")
	}
	if authority.Admin() || authority.HR {
		return all, nil
	}
	if !authority.Manager {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "manager capability required")
	}
	visible, err := s.hierarchy.VisibleForms(ctx, authority.Employee, all)
	if err != nil {
		return nil, translateFormErr(err, "resolve visible forms")
	}
	return visible, nil
}

// ListHRQueue returns the forms awaiting or past HR review.
func (s *WorkflowService) ListHRQueue(ctx context.Context, authority models.AuthorityContext) ([]models.FormDetail, error) {
	if !authority.HR && !authority.Admin() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "hr capability required")
	}
	forms, err := s.forms.ListDetailsByStatus(ctx, models.StatusMgrReviewed, models.StatusHRReviewed, models.StatusApproved)
	if err != nil {
		return nil, translateFormErr(err, "list hr queue")
	}
	return forms, nil
}

// SaveSelfEvaluation replaces the responsibility rows while the form is still
// a draft. Rows with a blank title are dropped and achievement is clamped to
// 0..100, both silently.
func (s *WorkflowService) SaveSelfEvaluation(ctx context.Context, authority models.AuthorityContext, formID int64, req SaveSelfEvaluationRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid self evaluation payload")
	}

	form, err := s.loadForm(ctx, formID)
	if err != nil {
		return err
	}
	if form.EmployeeID != authority.Employee.ID {
		return appErrors.Clone(appErrors.ErrForbidden, "only the form owner may save the self evaluation")
	}
	if form.Status != models.StatusDraft {
		return appErrors.Clone(appErrors.ErrInvalidTransition, "self evaluation is editable only in draft")
	}

	rows := make([]models.Responsibility, 0, len(req.Responsibilities))
	for _, in := range req.Responsibilities {
		title := strings.TrimSpace(in.Title)
		if title == "" {
			continue
		}
		rows = append(rows, models.Responsibility{
			FormID:             formID,
			Title:              title,
			Description:        in.Description,
			AchievementPercent: clampInt(in.AchievementPercent, 0, 100),
		})
	}

	if err := s.forms.ReplaceSelfEvaluation(ctx, formID, rows, req.Comments, req.RowVersion); err != nil {
		return translateFormErr(err, "save self evaluation")
	}
	return nil
}

// SubmitSelfEvaluation moves the form into the review lane. Submitting an
// already submitted form is a no-op transition kept for retried requests.
func (s *WorkflowService) SubmitSelfEvaluation(ctx context.Context, authority models.AuthorityContext, formID, rowVersion int64) error {
	form, err := s.loadForm(ctx, formID)
	if err != nil {
		return err
	}
	if form.EmployeeID != authority.Employee.ID {
		return appErrors.Clone(appErrors.ErrForbidden, "only the form owner may submit")
	}
	if form.Status != models.StatusDraft && form.Status != models.StatusSubmitted {
		return appErrors.Clone(appErrors.ErrInvalidTransition, "form is already under review")
	}

	if err := s.forms.UpdateStatus(ctx, formID, models.StatusSubmitted, rowVersion); err != nil {
		return translateFormErr(err, "submit form")
	}
	s.audit(ctx, authority, formID, form.Status, models.StatusSubmitted)
	return nil
}

// OpenManagerReview prepares the review surface: it materializes the default
// soft-skill rows on first open and pads the KPI rows for display. The
// authorization check runs before any lookup result is revealed.
func (s *WorkflowService) OpenManagerReview(ctx context.Context, authority models.AuthorityContext, formID int64) (*FormView, error) {
	form, err := s.loadForm(ctx, formID)
	if err != nil {
		return nil, err
	}
	allowed, err := s.canManage(ctx, authority, form)
	if err != nil {
		return nil, translateFormErr(err, "resolve review authority")
	}
	if !allowed {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "form is not in your review scope")
	}

	created, err := s.forms.MaterializeSoftSkills(ctx, formID, models.SoftSkillCatalog, models.DefaultSoftSkillScore)
	if err != nil {
		return nil, translateFormErr(err, "materialize soft skills")
	}
	if created {
		s.logger.Info("soft skill rows materialized", zap.Int64("form_id", formID))
	}

	return s.buildView(ctx, form, true)
}

// SaveManagerReview rewrites the KPI rows and rescores the soft-skill rows.
// Blank KPI rows are dropped before persisting, at most five survive, and
// scores clamp silently. Responsibility rows are never touched here. With
// Submit set the form transitions to MgrReviewed and is scored in the same
// call, strictly after the row replacement.
func (s *WorkflowService) SaveManagerReview(ctx context.Context, authority models.AuthorityContext, formID int64, req SaveManagerReviewRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid manager review payload")
	}

	form, err := s.loadForm(ctx, formID)
	if err != nil {
		return err
	}
	allowed, err := s.canManage(ctx, authority, form)
	if err != nil {
		return translateFormErr(err, "resolve review authority")
	}
	if !allowed {
		return appErrors.Clone(appErrors.ErrForbidden, "form is not in your review scope")
	}
	if form.Status != models.StatusSubmitted && form.Status != models.StatusMgrReviewed {
		return appErrors.Clone(appErrors.ErrInvalidTransition, "form is not open for manager review")
	}

	kpis := normalizeKPIRows(req.KPIs, formID)

	softScores := make(map[string]int, len(req.SoftSkills))
	for key, score := range req.SoftSkills {
		softScores[key] = clampInt(score, 1, 10)
	}

	if err := s.forms.ReplaceManagerReview(ctx, formID, kpis, softScores, req.Comments, req.RowVersion); err != nil {
		return translateFormErr(err, "save manager review")
	}
	version := req.RowVersion + 1

	if !req.Submit {
		return nil
	}

	if err := s.Compute(ctx, formID); err != nil {
		return err
	}
	if err := s.forms.UpdateStatus(ctx, formID, models.StatusMgrReviewed, version); err != nil {
		return translateFormErr(err, "submit manager review")
	}
	s.audit(ctx, authority, formID, form.Status, models.StatusMgrReviewed)
	return nil
}

// normalizeKPIRows drops rows whose description or actual-performance text is
// blank after trimming and caps the set at the fixed row count. The result is
// never padded; padding applies to display only.
func normalizeKPIRows(inputs []KPIInput, formID int64) []models.KPIItem {
	rows := make([]models.KPIItem, 0, models.KPIRowCount)
	for _, in := range inputs {
		desc := strings.TrimSpace(in.Description)
		actual := ""
		if in.ActualPerformance != nil {
			actual = strings.TrimSpace(*in.ActualPerformance)
		}
		if desc == "" || actual == "" {
			continue
		}
		if len(rows) == models.KPIRowCount {
			break
		}
		rows = append(rows, models.KPIItem{
			FormID:            formID,
			Description:       desc,
			ActualPerformance: &actual,
			Score:             clampInt(in.Score, 0, 100),
		})
	}
	return rows
}

// Compute scores the form from its current rows and persists the result.
// With KPI or soft-skill rows present the 70/30 weighted model applies and
// both manager and final score are set; otherwise the legacy weighted Q&A
// model runs and fills all three scores. A form with no rows at all scores
// exactly zero.
func (s *WorkflowService) Compute(ctx context.Context, formID int64) error {
	kpis, err := s.forms.ListKPIs(ctx, formID)
	if err != nil {
		return translateFormErr(err, "load kpi rows")
	}
	softSkills, err := s.forms.ListSoftSkills(ctx, formID)
	if err != nil {
		return translateFormErr(err, "load soft skills")
	}

	if len(kpis) > 0 || len(softSkills) > 0 {
		breakdown := ComputeWeightedScore(kpis, softSkills)
		final := breakdown.Final
		if err := s.forms.UpdateScores(ctx, formID, nil, &final, &final); err != nil {
			return translateFormErr(err, "store scores")
		}
		return nil
	}

	responses, err := s.forms.ListResponses(ctx, formID)
	if err != nil {
		return translateFormErr(err, "load responses")
	}
	legacy := ComputeLegacyScores(responses)
	if err := s.forms.UpdateScores(ctx, formID, &legacy.EmployeeScore, &legacy.ManagerScore, &legacy.FinalScore); err != nil {
		return translateFormErr(err, "store scores")
	}
	return nil
}

// HRReview approves a manager-reviewed form. The final score backfill from
// the manager score happens in the same guarded write as the transition.
func (s *WorkflowService) HRReview(ctx context.Context, authority models.AuthorityContext, formID int64, req HRReviewRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid hr review payload")
	}
	if !authority.HR && !authority.Admin() {
		return appErrors.Clone(appErrors.ErrForbidden, "hr capability required")
	}

	form, err := s.loadForm(ctx, formID)
	if err != nil {
		return err
	}
	if form.Status != models.StatusMgrReviewed {
		return appErrors.Clone(appErrors.ErrInvalidTransition, "form is not awaiting hr review")
	}

	if err := s.forms.UpdateHRReview(ctx, formID, models.StatusHRReviewed, req.Comments, req.RowVersion); err != nil {
		return translateFormErr(err, "record hr review")
	}
	s.audit(ctx, authority, formID, form.Status, models.StatusHRReviewed)
	return nil
}

// CEOComment appends an executive note to a reviewed form without touching
// its status.
func (s *WorkflowService) CEOComment(ctx context.Context, authority models.AuthorityContext, formID int64, req CEOCommentRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid ceo comment payload")
	}
	if !authority.CEO && !authority.Admin() {
		return appErrors.Clone(appErrors.ErrForbidden, "ceo capability required")
	}

	form, err := s.loadForm(ctx, formID)
	if err != nil {
		return err
	}
	switch form.Status {
	case models.StatusHRReviewed, models.StatusApproved, models.StatusFinalized:
	default:
		return appErrors.Clone(appErrors.ErrInvalidTransition, "form has not completed hr review")
	}

	if err := s.forms.AppendCEOComment(ctx, formID, req.Comment, req.RowVersion); err != nil {
		return translateFormErr(err, "append ceo comment")
	}
	return nil
}

// Finalize is the administrator-only closure override. Approved requires the
// form to have passed HR review; Finalized may close a form from any state.
func (s *WorkflowService) Finalize(ctx context.Context, authority models.AuthorityContext, formID int64, req FinalizeFormRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid finalize payload")
	}
	if !authority.Admin() {
		return appErrors.Clone(appErrors.ErrForbidden, "administrator role required")
	}

	form, err := s.loadForm(ctx, formID)
	if err != nil {
		return err
	}
	if req.Status == models.StatusApproved && form.Status != models.StatusHRReviewed {
		return appErrors.Clone(appErrors.ErrInvalidTransition, "form has not completed hr review")
	}

	if err := s.forms.UpdateStatus(ctx, formID, req.Status, req.RowVersion); err != nil {
		return translateFormErr(err, "finalize form")
	}
	s.audit(ctx, authority, formID, form.Status, req.Status)
	return nil
}

// SaveSelfResponses writes the self side of the legacy Q&A rows while the
// form is a draft. Ratings clamp silently to the 1..5 scale.
func (s *WorkflowService) SaveSelfResponses(ctx context.Context, authority models.AuthorityContext, formID int64, req SaveSelfResponsesRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid responses payload")
	}

	form, err := s.loadForm(ctx, formID)
	if err != nil {
		return err
	}
	if form.EmployeeID != authority.Employee.ID {
		return appErrors.Clone(appErrors.ErrForbidden, "only the form owner may answer")
	}
	if form.Status != models.StatusDraft {
		return appErrors.Clone(appErrors.ErrInvalidTransition, "responses are editable only in draft")
	}

	rows := make([]models.Response, 0, len(req.Responses))
	for _, in := range req.Responses {
		rating := in.SelfRating
		if rating != nil {
			clamped := clampInt(*rating, 1, 5)
			rating = &clamped
		}
		rows = append(rows, models.Response{ID: in.ID, FormID: formID, SelfRating: rating, SelfComment: in.Comment})
	}

	if err := s.forms.UpdateSelfResponses(ctx, formID, rows); err != nil {
		return translateFormErr(err, "save responses")
	}
	return nil
}
