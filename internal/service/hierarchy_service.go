package service

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/hayat-interiors/appraisal-api/internal/models"
	appErrors "github.com/hayat-interiors/appraisal-api/pkg/errors"
)

type hierarchyEmployeeReader interface {
	ListAll(ctx context.Context) ([]models.Employee, error)
	FindByCode(ctx context.Context, empCode string) (*models.Employee, error)
	FindByID(ctx context.Context, id int64) (*models.Employee, error)
}

type hierarchyScopeReader interface {
	ListAll(ctx context.Context) ([]models.ManagerScope, error)
	ExistsForManager(ctx context.Context, managerEmployeeID int64) (bool, error)
}

// HierarchyService resolves manager relationships from the employee set and
// the administrator-declared scopes. All queries are read-only.
type HierarchyService struct {
	employees hierarchyEmployeeReader
	scopes    hierarchyScopeReader
	logger    *zap.Logger
}

// NewHierarchyService constructs a HierarchyService.
func NewHierarchyService(employees hierarchyEmployeeReader, scopes hierarchyScopeReader, logger *zap.Logger) *HierarchyService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HierarchyService{employees: employees, scopes: scopes, logger: logger}
}

// ResolveDirectReports merges strong FK links with weak trimmed code/name
// matches over the full employee set. The target is never its own report, a
// weak match never repeats a strong one, and weak matches are deduped by
// employee id with the richer provenance kept when both signals agree.
func ResolveDirectReports(target models.Employee, all []models.Employee) []models.DirectReport {
	myCode := strings.TrimSpace(target.EmpCode)
	myName := strings.TrimSpace(target.Name)

	var reports []models.DirectReport
	strong := make(map[int64]struct{})
	for _, e := range all {
		if e.ID == target.ID {
			continue
		}
		if e.ManagerID != nil && *e.ManagerID == target.ID {
			strong[e.ID] = struct{}{}
			reports = append(reports, models.DirectReport{Employee: e, Provenance: models.LinkStrong})
		}
	}

	weak := make(map[int64]models.DirectReport)
	var weakOrder []int64
	for _, e := range all {
		if e.ID == target.ID {
			continue
		}
		if _, ok := strong[e.ID]; ok {
			continue
		}
		byCode := e.ManagerEmpCode != nil && strings.TrimSpace(*e.ManagerEmpCode) == myCode && myCode != ""
		byName := e.ManagerNameCached != nil && strings.TrimSpace(*e.ManagerNameCached) == myName && myName != ""
		if !byCode && !byName {
			continue
		}
		provenance := models.LinkWeakByCode
		switch {
		case byCode && byName:
			provenance = models.LinkWeakByBoth
		case byName:
			provenance = models.LinkWeakByName
		}
		if existing, ok := weak[e.ID]; ok {
			if existing.Provenance != models.LinkWeakByBoth && provenance != existing.Provenance {
				existing.Provenance = models.LinkWeakByBoth
				weak[e.ID] = existing
			}
			continue
		}
		weak[e.ID] = models.DirectReport{Employee: e, Provenance: provenance}
		weakOrder = append(weakOrder, e.ID)
	}

	for _, id := range weakOrder {
		reports = append(reports, weak[id])
	}

	sort.SliceStable(reports, func(i, j int) bool {
		return reports[i].Employee.Name < reports[j].Employee.Name
	})
	return reports
}

// GeneralManagerDepartments extracts the department set granted to the target
// through GeneralManager scopes.
func GeneralManagerDepartments(targetID int64, scopes []models.ManagerScope) []string {
	seen := make(map[string]struct{})
	var departments []string
	for _, scope := range scopes {
		if scope.ManagerEmployeeID != targetID || scope.ScopeType != models.ScopeGeneralManager {
			continue
		}
		for _, d := range scope.Departments {
			if _, ok := seen[d.Department]; ok {
				continue
			}
			seen[d.Department] = struct{}{}
			departments = append(departments, d.Department)
		}
	}
	return departments
}

// hasReportingScope reports whether any scope grants target manager authority
// outright.
func hasReportingScope(targetID int64, scopes []models.ManagerScope) bool {
	for _, scope := range scopes {
		if scope.ManagerEmployeeID == targetID && scope.ScopeType == models.ScopeReportingManager {
			return true
		}
	}
	return false
}

// IsManagerLike returns true when at least one of the three managerial
// signals holds: direct reports, a ReportingManager scope, or a GeneralManager
// department set.
func IsManagerLike(target models.Employee, all []models.Employee, scopes []models.ManagerScope) bool {
	if len(ResolveDirectReports(target, all)) > 0 {
		return true
	}
	if hasReportingScope(target.ID, scopes) {
		return true
	}
	return len(GeneralManagerDepartments(target.ID, scopes)) > 0
}

// VisibleForms selects the forms the target may review: reports' forms via
// strong or weak links, plus every form in a granted GM department. The
// target's own form is never included and results are deduped by form id.
func VisibleForms(target models.Employee, all []models.Employee, scopes []models.ManagerScope, forms []models.FormDetail) []models.FormDetail {
	reports := ResolveDirectReports(target, all)
	reportIDs := make(map[int64]struct{}, len(reports))
	for _, r := range reports {
		reportIDs[r.Employee.ID] = struct{}{}
	}

	gmDepts := make(map[string]struct{})
	for _, d := range GeneralManagerDepartments(target.ID, scopes) {
		gmDepts[d] = struct{}{}
	}

	seen := make(map[int64]struct{})
	var visible []models.FormDetail
	for _, form := range forms {
		if form.EmployeeID == target.ID {
			continue
		}
		_, isReport := reportIDs[form.EmployeeID]
		inDept := false
		if form.Department != nil {
			_, inDept = gmDepts[*form.Department]
		}
		if !isReport && !inDept {
			continue
		}
		if _, ok := seen[form.ID]; ok {
			continue
		}
		seen[form.ID] = struct{}{}
		visible = append(visible, form)
	}
	return visible
}

// Check runs the full manager diagnostic for one emp code. A missing code is
// a typed not-found, never a panic or an opaque failure.
func (s *HierarchyService) Check(ctx context.Context, empCode string) (*models.ManagerCheck, error) {
	target, err := s.employees.FindByCode(ctx, empCode)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "employee not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load employee")
	}

	all, err := s.employees.ListAll(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load employees")
	}
	scopes, err := s.scopes.ListAll(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load scopes")
	}

	reports := ResolveDirectReports(*target, all)
	check := &models.ManagerCheck{
		Employee:      *target,
		GMDepartments: GeneralManagerDepartments(target.ID, scopes),
		ByScope:       hasReportingScope(target.ID, scopes),
	}
	for _, r := range reports {
		if r.Provenance == models.LinkStrong {
			check.DirectsStrong = append(check.DirectsStrong, r)
		} else {
			check.DirectsWeak = append(check.DirectsWeak, r)
		}
	}
	check.ByTeam = len(reports) > 0
	check.ByDepartment = len(check.GMDepartments) > 0
	check.IsReportingManager = check.ByTeam || check.ByScope || check.ByDepartment
	return check, nil
}

// DirectReports resolves the report set for one employee id.
func (s *HierarchyService) DirectReports(ctx context.Context, employeeID int64) ([]models.DirectReport, error) {
	target, err := s.employees.FindByID(ctx, employeeID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "employee not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load employee")
	}
	all, err := s.employees.ListAll(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load employees")
	}
	return ResolveDirectReports(*target, all), nil
}

// ManagerLike evaluates the derived manager capability for one employee.
func (s *HierarchyService) ManagerLike(ctx context.Context, target models.Employee) (bool, error) {
	all, err := s.employees.ListAll(ctx)
	if err != nil {
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load employees")
	}
	scopes, err := s.scopes.ListAll(ctx)
	if err != nil {
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load scopes")
	}
	return IsManagerLike(target, all, scopes), nil
}

// VisibleForms computes the review inbox for the acting manager over the
// provided form set.
func (s *HierarchyService) VisibleForms(ctx context.Context, target models.Employee, forms []models.FormDetail) ([]models.FormDetail, error) {
	all, err := s.employees.ListAll(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load employees")
	}
	scopes, err := s.scopes.ListAll(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load scopes")
	}
	return VisibleForms(target, all, scopes, forms), nil
}
