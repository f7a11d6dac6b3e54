package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/hayat-interiors/appraisal-api/internal/models"
	appErrors "github.com/hayat-interiors/appraisal-api/pkg/errors"
)

type scopeRepo interface {
	ListAll(ctx context.Context) ([]models.ManagerScope, error)
	FindByManagerEmployee(ctx context.Context, managerEmployeeID int64) (*models.ManagerScope, error)
	Upsert(ctx context.Context, scope *models.ManagerScope, departments []string) error
	Delete(ctx context.Context, id int64) error
}

type scopeEmployeeReader interface {
	FindByID(ctx context.Context, id int64) (*models.Employee, error)
	FindByCode(ctx context.Context, empCode string) (*models.Employee, error)
}

type scopeAuditor interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// UpsertScopeRequest grants or updates one manager's authority scope.
type UpsertScopeRequest struct {
	ManagerEmployeeID int64            `json:"manager_employee_id" validate:"required"`
	ScopeType         models.ScopeType `json:"scope_type" validate:"required,oneof=ReportingManager GeneralManager"`
	Departments       []string         `json:"departments"`
	Notes             *string          `json:"notes"`
}

// ScopeService manages administrator-declared authority grants.
type ScopeService struct {
	scopes    scopeRepo
	employees scopeEmployeeReader
	auditor   scopeAuditor
	validator *validator.Validate
	logger    *zap.Logger
}

// NewScopeService constructs ScopeService.
func NewScopeService(scopes scopeRepo, employees scopeEmployeeReader, auditor scopeAuditor, validate *validator.Validate, logger *zap.Logger) *ScopeService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScopeService{scopes: scopes, employees: employees, auditor: auditor, validator: validate, logger: logger}
}

// List returns every scope with its departments.
func (s *ScopeService) List(ctx context.Context) ([]models.ManagerScope, error) {
	scopes, err := s.scopes.ListAll(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list scopes")
	}
	return scopes, nil
}

// GetForManager returns one manager's scope.
func (s *ScopeService) GetForManager(ctx context.Context, managerEmployeeID int64) (*models.ManagerScope, error) {
	scope, err := s.scopes.FindByManagerEmployee(ctx, managerEmployeeID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "scope not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load scope")
	}
	return scope, nil
}

// Upsert writes one scope per manager. A GeneralManager grant needs at least
// one department; ReportingManager grants ignore departments entirely.
func (s *ScopeService) Upsert(ctx context.Context, actor models.AuthorityContext, req UpsertScopeRequest) (*models.ManagerScope, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid scope payload")
	}

	if _, err := s.employees.FindByID(ctx, req.ManagerEmployeeID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "manager employee not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load employee")
	}

	departments := make([]string, 0, len(req.Departments))
	seen := map[string]struct{}{}
	for _, d := range req.Departments {
		d = strings.TrimSpace(d)
		if d == "" {
			continue
		}
		key := strings.ToLower(d)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		departments = append(departments, d)
	}

	if req.ScopeType == models.ScopeGeneralManager && len(departments) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "general manager scope needs at least one department")
	}
	if req.ScopeType == models.ScopeReportingManager {
		departments = nil
	}

	scope := &models.ManagerScope{
		ManagerEmployeeID: req.ManagerEmployeeID,
		ScopeType:         req.ScopeType,
		Notes:             req.Notes,
	}
	if err := s.scopes.Upsert(ctx, scope, departments); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save scope")
	}
	for _, d := range departments {
		scope.Departments = append(scope.Departments, models.ManagerScopeDepartment{ManagerScopeID: scope.ID, Department: d})
	}

	s.auditScopeChange(ctx, actor, scope)
	return scope, nil
}

// BulkGrantRequest marks a list of emp codes as ReportingManager in one pass.
type BulkGrantRequest struct {
	Codes []string `json:"codes" validate:"required,min=1"`
}

// BulkGrantResult summarises a bulk grant run.
type BulkGrantResult struct {
	Created  int      `json:"created"`
	Existing int      `json:"existing"`
	Unknown  []string `json:"unknown_codes,omitempty"`
}

// BulkGrant creates a ReportingManager scope for every resolvable emp code.
// Unknown codes are reported back rather than failing the batch, and a manager
// who already holds a scope of either type keeps it untouched.
func (s *ScopeService) BulkGrant(ctx context.Context, actor models.AuthorityContext, req BulkGrantRequest) (*BulkGrantResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid bulk grant payload")
	}

	result := &BulkGrantResult{}
	seen := map[string]struct{}{}
	for _, code := range req.Codes {
		code = strings.TrimSpace(code)
		if code == "" {
			continue
		}
		if _, dup := seen[code]; dup {
			continue
		}
		seen[code] = struct{}{}

		employee, err := s.employees.FindByCode(ctx, code)
		if errors.Is(err, sql.ErrNoRows) {
			result.Unknown = append(result.Unknown, code)
			continue
		}
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to look up employee")
		}

		if _, err := s.scopes.FindByManagerEmployee(ctx, employee.ID); err == nil {
			result.Existing++
			continue
		} else if !errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load scope")
		}

		scope := &models.ManagerScope{ManagerEmployeeID: employee.ID, ScopeType: models.ScopeReportingManager}
		if err := s.scopes.Upsert(ctx, scope, nil); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save scope")
		}
		result.Created++
		s.auditScopeChange(ctx, actor, scope)
	}

	s.logger.Info("bulk reporting manager grant",
		zap.Int("created", result.Created),
		zap.Int("existing", result.Existing),
		zap.Int("unknown", len(result.Unknown)))
	return result, nil
}

// Delete removes one scope by id.
func (s *ScopeService) Delete(ctx context.Context, id int64) error {
	if err := s.scopes.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "scope not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete scope")
	}
	return nil
}

func (s *ScopeService) auditScopeChange(ctx context.Context, actor models.AuthorityContext, scope *models.ManagerScope) {
	if s.auditor == nil {
		return
	}
	entry := &models.AuditLog{
		UserID:   actor.Employee.UserID,
		Action:   models.AuditActionScopeChange,
		Resource: "manager_scope",
	}
	if err := s.auditor.CreateAuditLog(ctx, entry); err != nil {
		s.logger.Warn("audit log write failed", zap.Int64("scope_id", scope.ID), zap.Error(err))
	}
}
