package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hayat-interiors/appraisal-api/internal/models"
)

func newMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	sqlxdb := sqlx.NewDb(db, "sqlmock")
	return sqlxdb, mock, func() {
		db.Close()
	}
}

func userRows(now time.Time) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "emp_code", "email", "password_hash", "display_name", "role", "must_change_password", "active", "last_login", "created_at", "updated_at"}).
		AddRow("u1", "101", nil, "hash", "Aisha Rahman", string(models.RoleEmployee), false, true, now, now, now)
}

func TestUserRepositoryFindByEmpCode(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, emp_code, email, password_hash, display_name, role, must_change_password, active, last_login, created_at, updated_at FROM users WHERE emp_code = $1 LIMIT 1")).
		WithArgs("101").
		WillReturnRows(userRows(time.Now()))

	user, err := repo.FindByEmpCode(context.Background(), " 101 ")
	require.NoError(t, err)
	assert.Equal(t, "101", user.EmpCode)
	assert.Equal(t, "Aisha Rahman", user.DisplayName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositoryResetPasswordFlagsMustChange(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	now := time.Now()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET password_hash = $2, must_change_password = TRUE, updated_at = $3 WHERE id = $1")).
		WithArgs("u1", "newhash", now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.ResetPassword(context.Background(), "u1", "newhash", now))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositoryCreateRefreshToken(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectExec("INSERT INTO refresh_tokens").WillReturnResult(sqlmock.NewResult(1, 1))

	err := repo.CreateRefreshToken(context.Background(), &models.RefreshToken{ID: "1", UserID: "u1", Token: "token", ExpiresAt: time.Now(), CreatedAt: time.Now()})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositoryCreateAuditLog(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectExec("INSERT INTO audit_logs").WillReturnResult(sqlmock.NewResult(1, 1))

	actor := "u1"
	err := repo.CreateAuditLog(context.Background(), &models.AuditLog{
		UserID:   &actor,
		Action:   "SUBMIT",
		Resource: "form",
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
