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

func formDetailRows(now time.Time) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "employee_id", "cycle_id", "status", "employee_score", "manager_score", "final_score",
		"self_comments", "manager_comments", "hr_comments", "ceo_comments", "row_version", "created_at", "updated_at",
		"emp_code", "emp_name", "department", "cycle_name",
	}).AddRow(1, 10, 1, "Submitted", nil, nil, nil, "did the work", nil, nil, nil, 2, now, now, "101", "Aisha Rahman", "Design", "FY26 Mid-Year")
}

func TestFormRepositoryFindDetail(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewFormRepository(db)

	mock.ExpectQuery("SELECT f.id, f.employee_id").
		WithArgs(int64(1)).
		WillReturnRows(formDetailRows(time.Now()))

	detail, err := repo.FindDetail(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "101", detail.EmpCode)
	assert.Equal(t, models.StatusSubmitted, detail.Status)
	assert.Equal(t, int64(2), detail.RowVersion)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFormRepositoryListDetailsByCycle(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewFormRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE f.cycle_id = $1 ORDER BY e.name, f.id")).
		WithArgs(int64(1)).
		WillReturnRows(formDetailRows(time.Now()))

	details, err := repo.ListDetailsByCycle(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, details, 1)
	assert.Equal(t, "Design", *details[0].Department)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFormRepositoryUpdateStatusGuard(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewFormRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE forms SET status = $1, row_version = row_version + 1")).
		WithArgs(models.StatusMgrReviewed, sqlmock.AnyArg(), int64(1), int64(2)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.UpdateStatus(context.Background(), 1, models.StatusMgrReviewed, 2))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFormRepositoryUpdateStatusVersionConflict(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewFormRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE forms SET status = $1, row_version = row_version + 1")).
		WithArgs(models.StatusMgrReviewed, sqlmock.AnyArg(), int64(1), int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS (SELECT 1 FROM forms WHERE id = $1)")).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	err := repo.UpdateStatus(context.Background(), 1, models.StatusMgrReviewed, 1)
	assert.ErrorIs(t, err, ErrVersionConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFormRepositoryUpdateStatusMissingForm(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewFormRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE forms SET status = $1, row_version = row_version + 1")).
		WithArgs(models.StatusMgrReviewed, sqlmock.AnyArg(), int64(99), int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS (SELECT 1 FROM forms WHERE id = $1)")).
		WithArgs(int64(99)).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	err := repo.UpdateStatus(context.Background(), 99, models.StatusMgrReviewed, 1)
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFormRepositoryReplaceSelfEvaluation(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewFormRepository(db)

	comments := "handled vendor escalations"
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE forms SET self_comments = $1, row_version = row_version + 1")).
		WithArgs(comments, sqlmock.AnyArg(), int64(1), int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM responsibilities WHERE form_id = $1")).
		WithArgs(int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO responsibilities (form_id, title, description, achievement_percent) VALUES ($1, $2, $3, $4)")).
		WithArgs(int64(1), "Client handover packs", nil, 90).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	rows := []models.Responsibility{{Title: "Client handover packs", AchievementPercent: 90}}
	require.NoError(t, repo.ReplaceSelfEvaluation(context.Background(), 1, rows, &comments, 1))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFormRepositoryMaterializeSoftSkillsIdempotent(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewFormRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM soft_skill_ratings WHERE form_id = $1")).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(5))
	mock.ExpectRollback()

	created, err := repo.MaterializeSoftSkills(context.Background(), 1, models.SoftSkillCatalog, 5)
	require.NoError(t, err)
	assert.False(t, created)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFormRepositoryDeleteCascade(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewFormRepository(db)

	mock.ExpectBegin()
	for _, table := range []string{"responsibilities", "kpi_items", "soft_skill_ratings", "responses"} {
		mock.ExpectExec(regexp.QuoteMeta("DELETE FROM "+table+" WHERE form_id = $1")).
			WithArgs(int64(1)).
			WillReturnResult(sqlmock.NewResult(0, 1))
	}
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM forms WHERE id = $1")).
		WithArgs(int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.DeleteCascade(context.Background(), 1))
	assert.NoError(t, mock.ExpectationsWereMet())
}
