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

type mockScopeRepo struct {
	scopes      map[int64]*models.ManagerScope
	departments map[int64][]string
	nextID      int64
}

func newMockScopeRepo() *mockScopeRepo {
	return &mockScopeRepo{scopes: map[int64]*models.ManagerScope{}, departments: map[int64][]string{}}
}

func (m *mockScopeRepo) ListAll(ctx context.Context) ([]models.ManagerScope, error) {
	var out []models.ManagerScope
	for _, s := range m.scopes {
		out = append(out, *s)
	}
	return out, nil
}

func (m *mockScopeRepo) FindByManagerEmployee(ctx context.Context, managerEmployeeID int64) (*models.ManagerScope, error) {
	for _, s := range m.scopes {
		if s.ManagerEmployeeID == managerEmployeeID {
			return s, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockScopeRepo) Upsert(ctx context.Context, scope *models.ManagerScope, departments []string) error {
	for _, existing := range m.scopes {
		if existing.ManagerEmployeeID == scope.ManagerEmployeeID {
			scope.ID = existing.ID
			m.scopes[scope.ID] = scope
			m.departments[scope.ID] = departments
			return nil
		}
	}
	m.nextID++
	scope.ID = m.nextID
	m.scopes[scope.ID] = scope
	m.departments[scope.ID] = departments
	return nil
}

func (m *mockScopeRepo) Delete(ctx context.Context, id int64) error {
	if _, ok := m.scopes[id]; !ok {
		return sql.ErrNoRows
	}
	delete(m.scopes, id)
	delete(m.departments, id)
	return nil
}

func newScopeFixture() (*ScopeService, *mockScopeRepo, *mockAuditor) {
	repo := newMockScopeRepo()
	employees := newMockEmployeeRepo(chainedEmployees()...)
	auditor := &mockAuditor{}
	return NewScopeService(repo, employees, auditor, nil, zap.NewNop()), repo, auditor
}

func adminActor() models.AuthorityContext {
	return models.AuthorityContext{Employee: models.Employee{ID: 99}, Role: models.RoleAdmin}
}

func TestUpsertScope_GeneralManagerNeedsDepartments(t *testing.T) {
	svc, _, _ := newScopeFixture()

	_, err := svc.Upsert(context.Background(), adminActor(), UpsertScopeRequest{
		ManagerEmployeeID: 1,
		ScopeType:         models.ScopeGeneralManager,
		Departments:       []string{"  ", ""},
	})
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestUpsertScope_TrimsAndDedupesDepartments(t *testing.T) {
	svc, repo, auditor := newScopeFixture()

	scope, err := svc.Upsert(context.Background(), adminActor(), UpsertScopeRequest{
		ManagerEmployeeID: 1,
		ScopeType:         models.ScopeGeneralManager,
		Departments:       []string{" Design ", "Design", "DESIGN", "Production"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Design", "Production"}, repo.departments[scope.ID])
	require.Len(t, auditor.entries, 1)
	assert.Equal(t, models.AuditActionScopeChange, auditor.entries[0].Action)
}

func TestUpsertScope_ReportingManagerDropsDepartments(t *testing.T) {
	svc, repo, _ := newScopeFixture()

	scope, err := svc.Upsert(context.Background(), adminActor(), UpsertScopeRequest{
		ManagerEmployeeID: 1,
		ScopeType:         models.ScopeReportingManager,
		Departments:       []string{"Design"},
	})
	require.NoError(t, err)
	assert.Empty(t, repo.departments[scope.ID])
}

func TestUpsertScope_UnknownManager(t *testing.T) {
	svc, _, _ := newScopeFixture()

	_, err := svc.Upsert(context.Background(), adminActor(), UpsertScopeRequest{
		ManagerEmployeeID: 404,
		ScopeType:         models.ScopeReportingManager,
	})
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestUpsertScope_OneScopePerManager(t *testing.T) {
	svc, repo, _ := newScopeFixture()

	first, err := svc.Upsert(context.Background(), adminActor(), UpsertScopeRequest{
		ManagerEmployeeID: 1, ScopeType: models.ScopeReportingManager,
	})
	require.NoError(t, err)

	second, err := svc.Upsert(context.Background(), adminActor(), UpsertScopeRequest{
		ManagerEmployeeID: 1, ScopeType: models.ScopeGeneralManager, Departments: []string{"Design"},
	})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, repo.scopes, 1)
	assert.Equal(t, models.ScopeGeneralManager, repo.scopes[first.ID].ScopeType)
}

func TestBulkGrant_SkipsUnknownCodesAndDedupes(t *testing.T) {
	svc, repo, auditor := newScopeFixture()

	result, err := svc.BulkGrant(context.Background(), adminActor(), BulkGrantRequest{
		Codes: []string{" 100 ", "100", "101", "999"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Created)
	assert.Equal(t, 0, result.Existing)
	assert.Equal(t, []string{"999"}, result.Unknown)
	assert.Len(t, repo.scopes, 2)
	for _, scope := range repo.scopes {
		assert.Equal(t, models.ScopeReportingManager, scope.ScopeType)
	}
	assert.Len(t, auditor.entries, 2)
}

func TestBulkGrant_LeavesExistingScopeUntouched(t *testing.T) {
	svc, repo, _ := newScopeFixture()

	existing, err := svc.Upsert(context.Background(), adminActor(), UpsertScopeRequest{
		ManagerEmployeeID: 1, ScopeType: models.ScopeGeneralManager, Departments: []string{"Design"},
	})
	require.NoError(t, err)

	result, err := svc.BulkGrant(context.Background(), adminActor(), BulkGrantRequest{Codes: []string{"100"}})
	require.NoError(t, err)
	assert.Equal(t, 0, result.Created)
	assert.Equal(t, 1, result.Existing)
	assert.Equal(t, models.ScopeGeneralManager, repo.scopes[existing.ID].ScopeType)
}

func TestBulkGrant_EmptyPayloadRejected(t *testing.T) {
	svc, _, _ := newScopeFixture()

	_, err := svc.BulkGrant(context.Background(), adminActor(), BulkGrantRequest{})
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestDeleteScope(t *testing.T) {
	svc, _, _ := newScopeFixture()
	scope, err := svc.Upsert(context.Background(), adminActor(), UpsertScopeRequest{
		ManagerEmployeeID: 1, ScopeType: models.ScopeReportingManager,
	})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(context.Background(), scope.ID))
	err = svc.Delete(context.Background(), scope.ID)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
