package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hayat-interiors/appraisal-api/internal/models"
	appErrors "github.com/hayat-interiors/appraisal-api/pkg/errors"
)

type mockHierarchyEmployeeRepo struct {
	employees []models.Employee
	byCode    map[string]*models.Employee
	err       error
}

func (m *mockHierarchyEmployeeRepo) ListAll(ctx context.Context) ([]models.Employee, error) {
	return m.employees, m.err
}

func (m *mockHierarchyEmployeeRepo) FindByCode(ctx context.Context, empCode string) (*models.Employee, error) {
	if e, ok := m.byCode[empCode]; ok {
		return e, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockHierarchyEmployeeRepo) FindByID(ctx context.Context, id int64) (*models.Employee, error) {
	for i := range m.employees {
		if m.employees[i].ID == id {
			return &m.employees[i], nil
		}
	}
	return nil, sql.ErrNoRows
}

type mockHierarchyScopeRepo struct {
	scopes []models.ManagerScope
	err    error
}

func (m *mockHierarchyScopeRepo) ListAll(ctx context.Context) ([]models.ManagerScope, error) {
	return m.scopes, m.err
}

func (m *mockHierarchyScopeRepo) ExistsForManager(ctx context.Context, managerEmployeeID int64) (bool, error) {
	for _, s := range m.scopes {
		if s.ManagerEmployeeID == managerEmployeeID {
			return true, nil
		}
	}
	return false, nil
}

func strPtr(s string) *string { return &s }
func i64Ptr(v int64) *int64   { return &v }

func employeeFixture(id int64, code, name string) models.Employee {
	return models.Employee{ID: id, EmpCode: code, Name: name}
}

func TestResolveDirectReports_StrongLinks(t *testing.T) {
	mgr := employeeFixture(1, "100", "Asha Verma")
	all := []models.Employee{
		mgr,
		{ID: 2, EmpCode: "101", Name: "Binoy Thomas", ManagerID: i64Ptr(1)},
		{ID: 3, EmpCode: "102", Name: "Chitra Rao", ManagerID: i64Ptr(9)},
	}

	reports := ResolveDirectReports(mgr, all)
	require.Len(t, reports, 1)
	assert.Equal(t, int64(2), reports[0].Employee.ID)
	assert.Equal(t, models.LinkStrong, reports[0].Provenance)
}

func TestResolveDirectReports_WeakMatching(t *testing.T) {
	mgr := employeeFixture(1, "100", "Asha Verma")
	all := []models.Employee{
		mgr,
		// Trimmed code match.
		{ID: 2, EmpCode: "101", Name: "Binoy Thomas", ManagerEmpCode: strPtr(" 100 ")},
		// Name match.
		{ID: 3, EmpCode: "102", Name: "Chitra Rao", ManagerNameCached: strPtr("Asha Verma")},
		// Both signals.
		{ID: 4, EmpCode: "103", Name: "Deep Singh", ManagerEmpCode: strPtr("100"), ManagerNameCached: strPtr("Asha Verma ")},
		// Case mismatch is not a match.
		{ID: 5, EmpCode: "104", Name: "Esha Nair", ManagerNameCached: strPtr("asha verma")},
	}

	reports := ResolveDirectReports(mgr, all)
	require.Len(t, reports, 3)

	byID := make(map[int64]models.LinkProvenance)
	for _, r := range reports {
		byID[r.Employee.ID] = r.Provenance
	}
	assert.Equal(t, models.LinkWeakByCode, byID[2])
	assert.Equal(t, models.LinkWeakByName, byID[3])
	assert.Equal(t, models.LinkWeakByBoth, byID[4])
}

func TestResolveDirectReports_NeverIncludesSelf(t *testing.T) {
	self := models.Employee{ID: 1, EmpCode: "100", Name: "Asha Verma", ManagerEmpCode: strPtr("100"), ManagerNameCached: strPtr("Asha Verma")}
	reports := ResolveDirectReports(self, []models.Employee{self})
	assert.Empty(t, reports)

	// A row whose ManagerID points at itself must not surface as its own
	// strong report either.
	self.ManagerID = i64Ptr(1)
	reports = ResolveDirectReports(self, []models.Employee{self})
	assert.Empty(t, reports)
}

func TestResolveDirectReports_StrongWinsOverWeak(t *testing.T) {
	mgr := employeeFixture(1, "100", "Asha Verma")
	all := []models.Employee{
		mgr,
		{ID: 2, EmpCode: "101", Name: "Binoy Thomas", ManagerID: i64Ptr(1), ManagerEmpCode: strPtr("100"), ManagerNameCached: strPtr("Asha Verma")},
	}

	reports := ResolveDirectReports(mgr, all)
	require.Len(t, reports, 1)
	assert.Equal(t, models.LinkStrong, reports[0].Provenance)
}

func TestResolveDirectReports_EmptyFieldsNeverMatchBlankManager(t *testing.T) {
	// A manager with a blank code must not weakly claim employees whose
	// fallback fields are also blank.
	mgr := models.Employee{ID: 1, EmpCode: "", Name: ""}
	all := []models.Employee{
		mgr,
		{ID: 2, EmpCode: "101", Name: "Binoy Thomas", ManagerEmpCode: strPtr("  ")},
	}
	assert.Empty(t, ResolveDirectReports(mgr, all))
}

func TestGeneralManagerDepartments(t *testing.T) {
	scopes := []models.ManagerScope{
		{ID: 1, ManagerEmployeeID: 1, ScopeType: models.ScopeGeneralManager, Departments: []models.ManagerScopeDepartment{
			{Department: "Design"}, {Department: "Production"}, {Department: "Design"},
		}},
		{ID: 2, ManagerEmployeeID: 1, ScopeType: models.ScopeReportingManager},
		{ID: 3, ManagerEmployeeID: 2, ScopeType: models.ScopeGeneralManager, Departments: []models.ManagerScopeDepartment{
			{Department: "Finance"},
		}},
	}

	depts := GeneralManagerDepartments(1, scopes)
	assert.ElementsMatch(t, []string{"Design", "Production"}, depts)
	assert.Empty(t, GeneralManagerDepartments(3, scopes))
}

func TestIsManagerLike_AllSignalCombinations(t *testing.T) {
	target := employeeFixture(1, "100", "Asha Verma")
	report := models.Employee{ID: 2, EmpCode: "101", Name: "Binoy Thomas", ManagerID: i64Ptr(1)}
	rmScope := models.ManagerScope{ManagerEmployeeID: 1, ScopeType: models.ScopeReportingManager}
	gmScope := models.ManagerScope{ManagerEmployeeID: 1, ScopeType: models.ScopeGeneralManager, Departments: []models.ManagerScopeDepartment{{Department: "Design"}}}

	tests := []struct {
		name    string
		directs bool
		rm      bool
		gm      bool
		want    bool
	}{
		{"none", false, false, false, false},
		{"directs only", true, false, false, true},
		{"rm scope only", false, true, false, true},
		{"gm scope only", false, false, true, true},
		{"directs and rm", true, true, false, true},
		{"directs and gm", true, false, true, true},
		{"rm and gm", false, true, true, true},
		{"all", true, true, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			all := []models.Employee{target}
			if tt.directs {
				all = append(all, report)
			}
			var scopes []models.ManagerScope
			if tt.rm {
				scopes = append(scopes, rmScope)
			}
			if tt.gm {
				scopes = append(scopes, gmScope)
			}
			assert.Equal(t, tt.want, IsManagerLike(target, all, scopes))
		})
	}
}

func TestVisibleForms(t *testing.T) {
	mgr := employeeFixture(1, "100", "Asha Verma")
	all := []models.Employee{
		mgr,
		{ID: 2, EmpCode: "101", Name: "Binoy Thomas", ManagerID: i64Ptr(1)},
		{ID: 3, EmpCode: "102", Name: "Chitra Rao"},
		{ID: 4, EmpCode: "103", Name: "Deep Singh"},
	}
	scopes := []models.ManagerScope{
		{ManagerEmployeeID: 1, ScopeType: models.ScopeGeneralManager, Departments: []models.ManagerScopeDepartment{{Department: "Design"}}},
	}
	forms := []models.FormDetail{
		{Form: models.Form{ID: 10, EmployeeID: 1}, Department: strPtr("Design")},   // own form, excluded
		{Form: models.Form{ID: 11, EmployeeID: 2}},                                 // direct report
		{Form: models.Form{ID: 12, EmployeeID: 3}, Department: strPtr("Design")},   // GM department
		{Form: models.Form{ID: 13, EmployeeID: 4}, Department: strPtr("Finance")},  // out of scope
		{Form: models.Form{ID: 11, EmployeeID: 2}},                                 // duplicate id, deduped
	}

	visible := VisibleForms(mgr, all, scopes, forms)
	require.Len(t, visible, 2)
	ids := []int64{visible[0].ID, visible[1].ID}
	assert.ElementsMatch(t, []int64{11, 12}, ids)
}

func TestVisibleForms_ReportInGMDepartmentCountedOnce(t *testing.T) {
	mgr := employeeFixture(1, "100", "Asha Verma")
	all := []models.Employee{
		mgr,
		{ID: 2, EmpCode: "101", Name: "Binoy Thomas", ManagerID: i64Ptr(1)},
	}
	scopes := []models.ManagerScope{
		{ManagerEmployeeID: 1, ScopeType: models.ScopeGeneralManager, Departments: []models.ManagerScopeDepartment{{Department: "Design"}}},
	}
	forms := []models.FormDetail{
		{Form: models.Form{ID: 11, EmployeeID: 2}, Department: strPtr("Design")},
	}

	visible := VisibleForms(mgr, all, scopes, forms)
	assert.Len(t, visible, 1)
}

func TestHierarchyService_Check(t *testing.T) {
	mgr := employeeFixture(1, "100", "Asha Verma")
	employees := &mockHierarchyEmployeeRepo{
		employees: []models.Employee{
			mgr,
			{ID: 2, EmpCode: "101", Name: "Binoy Thomas", ManagerID: i64Ptr(1)},
			{ID: 3, EmpCode: "102", Name: "Chitra Rao", ManagerEmpCode: strPtr("100")},
		},
		byCode: map[string]*models.Employee{"100": &mgr},
	}
	scopes := &mockHierarchyScopeRepo{scopes: []models.ManagerScope{
		{ManagerEmployeeID: 1, ScopeType: models.ScopeGeneralManager, Departments: []models.ManagerScopeDepartment{{Department: "Design"}}},
	}}

	svc := NewHierarchyService(employees, scopes, zap.NewNop())
	check, err := svc.Check(context.Background(), "100")
	require.NoError(t, err)
	assert.Len(t, check.DirectsStrong, 1)
	assert.Len(t, check.DirectsWeak, 1)
	assert.Equal(t, []string{"Design"}, check.GMDepartments)
	assert.True(t, check.ByTeam)
	assert.False(t, check.ByScope)
	assert.True(t, check.ByDepartment)
	assert.True(t, check.IsReportingManager)
}

func TestHierarchyService_CheckUnknownCode(t *testing.T) {
	svc := NewHierarchyService(&mockHierarchyEmployeeRepo{byCode: map[string]*models.Employee{}}, &mockHierarchyScopeRepo{}, zap.NewNop())
	_, err := svc.Check(context.Background(), "999")
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}
