package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/hayat-interiors/appraisal-api/internal/models"
	appErrors "github.com/hayat-interiors/appraisal-api/pkg/errors"
)

type cycleRepo interface {
	List(ctx context.Context) ([]models.AppraisalCycle, error)
	FindByID(ctx context.Context, id int64) (*models.AppraisalCycle, error)
	Create(ctx context.Context, cycle *models.AppraisalCycle) error
	Delete(ctx context.Context, id int64) error
	Progress(ctx context.Context) ([]models.CycleProgress, error)
}

type cycleQuestionRepo interface {
	ListAll(ctx context.Context) ([]models.Question, error)
	Count(ctx context.Context) (int, error)
	CreateBatch(ctx context.Context, questions []models.Question) error
}

type cycleFormRepo interface {
	ListByCycle(ctx context.Context, cycleID int64) ([]models.Form, error)
	ExistsForEmployeeCycle(ctx context.Context, employeeID, cycleID int64) (bool, error)
	CreateWithResponses(ctx context.Context, form *models.Form, questionIDs []int64) error
	DeleteCascade(ctx context.Context, formID int64) error
}

type cycleEmployeeReader interface {
	ListAll(ctx context.Context) ([]models.Employee, error)
}

// CreateCycleRequest opens a new appraisal period.
type CreateCycleRequest struct {
	Name  string    `json:"name" validate:"required,min=3,max=120"`
	Start time.Time `json:"start_date" validate:"required"`
	End   time.Time `json:"end_date" validate:"required,gtfield=Start"`
}

// GenerateFormsResult summarises a form-generation run.
type GenerateFormsResult struct {
	Created int `json:"created"`
	Skipped int `json:"skipped"`
}

// defaultQuestions seeds the legacy weighted Q&A set once, on first cycle
// creation. Weights deliberately sum to 6 with the heavier pair first.
var defaultQuestions = []models.Question{
	{Section: "Performance", Text: "Quality of work delivered", MaxRating: 5, Weight: decimal.NewFromInt(2)},
	{Section: "Performance", Text: "Timeliness and adherence to deadlines", MaxRating: 5, Weight: decimal.NewFromInt(2)},
	{Section: "Behaviour", Text: "Teamwork and cooperation", MaxRating: 5, Weight: decimal.NewFromInt(1)},
	{Section: "Behaviour", Text: "Communication with stakeholders", MaxRating: 5, Weight: decimal.NewFromInt(1)},
}

// CycleService manages appraisal periods and bulk form generation.
type CycleService struct {
	cycles    cycleRepo
	questions cycleQuestionRepo
	forms     cycleFormRepo
	employees cycleEmployeeReader
	validator *validator.Validate
	logger    *zap.Logger
}

// NewCycleService constructs CycleService.
func NewCycleService(cycles cycleRepo, questions cycleQuestionRepo, forms cycleFormRepo, employees cycleEmployeeReader, validate *validator.Validate, logger *zap.Logger) *CycleService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CycleService{cycles: cycles, questions: questions, forms: forms, employees: employees, validator: validate, logger: logger}
}

// List returns all cycles, newest first.
func (s *CycleService) List(ctx context.Context) ([]models.AppraisalCycle, error) {
	cycles, err := s.cycles.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list cycles")
	}
	return cycles, nil
}

// Get fetches one cycle.
func (s *CycleService) Get(ctx context.Context, id int64) (*models.AppraisalCycle, error) {
	cycle, err := s.cycles.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "cycle not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load cycle")
	}
	return cycle, nil
}

// Create opens a cycle and, when the question bank is still empty, seeds the
// default legacy question set so generated forms always have response stubs.
func (s *CycleService) Create(ctx context.Context, req CreateCycleRequest) (*models.AppraisalCycle, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid cycle payload")
	}

	count, err := s.questions.Count(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to inspect question bank")
	}
	if count == 0 {
		seed := make([]models.Question, len(defaultQuestions))
		copy(seed, defaultQuestions)
		if err := s.questions.CreateBatch(ctx, seed); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to seed questions")
		}
		s.logger.Info("default question bank seeded", zap.Int("count", len(seed)))
	}

	cycle := &models.AppraisalCycle{Name: req.Name, Start: req.Start, End: req.End, Status: models.CycleOpen}
	if err := s.cycles.Create(ctx, cycle); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create cycle")
	}
	return cycle, nil
}

// GenerateForms creates one draft form per employee for the cycle, with one
// legacy response stub per question. Generation is idempotent on the
// (employee, cycle) pair and a rerun only fills the gaps.
func (s *CycleService) GenerateForms(ctx context.Context, cycleID int64) (*GenerateFormsResult, error) {
	cycle, err := s.Get(ctx, cycleID)
	if err != nil {
		return nil, err
	}
	if cycle.Status != models.CycleOpen {
		return nil, appErrors.Clone(appErrors.ErrConflict, "cycle is closed")
	}

	employees, err := s.employees.ListAll(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list employees")
	}
	questions, err := s.questions.ListAll(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list questions")
	}
	questionIDs := make([]int64, len(questions))
	for i, q := range questions {
		questionIDs[i] = q.ID
	}

	result := &GenerateFormsResult{}
	for _, employee := range employees {
		exists, err := s.forms.ExistsForEmployeeCycle(ctx, employee.ID, cycleID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing form")
		}
		if exists {
			result.Skipped++
			continue
		}
		form := &models.Form{EmployeeID: employee.ID, CycleID: cycleID, Status: models.StatusDraft}
		if err := s.forms.CreateWithResponses(ctx, form, questionIDs); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create form")
		}
		result.Created++
	}

	s.logger.Info("forms generated",
		zap.Int64("cycle_id", cycleID),
		zap.Int("created", result.Created),
		zap.Int("skipped", result.Skipped))
	return result, nil
}

// Delete removes a cycle together with its forms. A form that disappears
// mid-run is skipped so one miss never aborts the rest of the deletion.
func (s *CycleService) Delete(ctx context.Context, cycleID int64) error {
	forms, err := s.forms.ListByCycle(ctx, cycleID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list cycle forms")
	}
	for _, form := range forms {
		if err := s.forms.DeleteCascade(ctx, form.ID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				s.logger.Warn("form already gone during cycle delete", zap.Int64("form_id", form.ID))
				continue
			}
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete form")
		}
	}

	if err := s.cycles.Delete(ctx, cycleID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "cycle not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete cycle")
	}
	return nil
}

// Progress returns per-cycle workflow counts.
func (s *CycleService) Progress(ctx context.Context) ([]models.CycleProgress, error) {
	progress, err := s.cycles.Progress(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load cycle progress")
	}
	return progress, nil
}
