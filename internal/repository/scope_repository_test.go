package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hayat-interiors/appraisal-api/internal/models"
)

func TestScopeRepositoryListAllAttachesDepartments(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewScopeRepository(db)

	now := time.Now()
	scopeRows := sqlmock.NewRows([]string{"id", "manager_employee_id", "scope_type", "notes", "created_at"}).
		AddRow(1, 20, "GeneralManager", nil, now).
		AddRow(2, 30, "ReportingManager", nil, now)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, manager_employee_id, scope_type, notes, created_at FROM manager_scopes ORDER BY manager_employee_id")).
		WillReturnRows(scopeRows)

	deptRows := sqlmock.NewRows([]string{"id", "manager_scope_id", "department"}).
		AddRow(1, 1, "Design").
		AddRow(2, 1, "Projects")
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, manager_scope_id, department FROM manager_scope_departments ORDER BY id")).
		WillReturnRows(deptRows)

	scopes, err := repo.ListAll(context.Background())
	require.NoError(t, err)
	require.Len(t, scopes, 2)
	assert.Len(t, scopes[0].Departments, 2)
	assert.Empty(t, scopes[1].Departments)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScopeRepositoryUpsertInsertsWhenMissing(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewScopeRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM manager_scopes WHERE manager_employee_id = $1")).
		WithArgs(int64(20)).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO manager_scopes (manager_employee_id, scope_type, notes, created_at)")).
		WithArgs(int64(20), "GeneralManager", nil, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(5))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO manager_scope_departments (manager_scope_id, department) VALUES ($1, $2)")).
		WithArgs(int64(5), "Design").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	scope := &models.ManagerScope{ManagerEmployeeID: 20, ScopeType: models.ScopeGeneralManager}
	require.NoError(t, repo.Upsert(context.Background(), scope, []string{"Design"}))
	assert.Equal(t, int64(5), scope.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScopeRepositoryUpsertReplacesDepartments(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewScopeRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM manager_scopes WHERE manager_employee_id = $1")).
		WithArgs(int64(20)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(5))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE manager_scopes SET scope_type = $1, notes = $2 WHERE id = $3")).
		WithArgs("ReportingManager", nil, int64(5)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM manager_scope_departments WHERE manager_scope_id = $1")).
		WithArgs(int64(5)).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO manager_scope_departments (manager_scope_id, department) VALUES ($1, $2)")).
		WithArgs(int64(5), "Projects").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	scope := &models.ManagerScope{ManagerEmployeeID: 20, ScopeType: models.ScopeReportingManager}
	require.NoError(t, repo.Upsert(context.Background(), scope, []string{"Projects"}))
	assert.NoError(t, mock.ExpectationsWereMet())
}
