package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/hayat-interiors/appraisal-api/internal/models"
)

// ScopeRepository manages persistence for manager scopes and their departments.
type ScopeRepository struct {
	db *sqlx.DB
}

// NewScopeRepository constructs a ScopeRepository.
func NewScopeRepository(db *sqlx.DB) *ScopeRepository {
	return &ScopeRepository{db: db}
}

// ListAll returns every scope with its departments attached.
func (r *ScopeRepository) ListAll(ctx context.Context) ([]models.ManagerScope, error) {
	var scopes []models.ManagerScope
	query := "SELECT id, manager_employee_id, scope_type, notes, created_at FROM manager_scopes ORDER BY manager_employee_id"
	if err := r.db.SelectContext(ctx, &scopes, query); err != nil {
		return nil, fmt.Errorf("list scopes: %w", err)
	}
	if len(scopes) == 0 {
		return scopes, nil
	}

	var departments []models.ManagerScopeDepartment
	deptQuery := "SELECT id, manager_scope_id, department FROM manager_scope_departments ORDER BY id"
	if err := r.db.SelectContext(ctx, &departments, deptQuery); err != nil {
		return nil, fmt.Errorf("list scope departments: %w", err)
	}

	byScope := make(map[int64][]models.ManagerScopeDepartment, len(scopes))
	for _, d := range departments {
		byScope[d.ManagerScopeID] = append(byScope[d.ManagerScopeID], d)
	}
	for i := range scopes {
		scopes[i].Departments = byScope[scopes[i].ID]
	}
	return scopes, nil
}

// FindByManagerEmployee returns the single scope for one manager, if any.
func (r *ScopeRepository) FindByManagerEmployee(ctx context.Context, managerEmployeeID int64) (*models.ManagerScope, error) {
	var scope models.ManagerScope
	query := "SELECT id, manager_employee_id, scope_type, notes, created_at FROM manager_scopes WHERE manager_employee_id = $1"
	if err := r.db.GetContext(ctx, &scope, query, managerEmployeeID); err != nil {
		return nil, err
	}

	deptQuery := "SELECT id, manager_scope_id, department FROM manager_scope_departments WHERE manager_scope_id = $1 ORDER BY id"
	if err := r.db.SelectContext(ctx, &scope.Departments, deptQuery, scope.ID); err != nil {
		return nil, fmt.Errorf("load scope departments: %w", err)
	}
	return &scope, nil
}

// Upsert writes one scope per manager employee, replacing its departments.
func (r *ScopeRepository) Upsert(ctx context.Context, scope *models.ManagerScope, departments []string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin scope upsert: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var existingID int64
	err = tx.GetContext(ctx, &existingID, "SELECT id FROM manager_scopes WHERE manager_employee_id = $1", scope.ManagerEmployeeID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		insert := `INSERT INTO manager_scopes (manager_employee_id, scope_type, notes, created_at)
			VALUES ($1, $2, $3, $4) RETURNING id`
		if err := tx.QueryRowxContext(ctx, insert, scope.ManagerEmployeeID, scope.ScopeType, scope.Notes, time.Now().UTC()).Scan(&scope.ID); err != nil {
			return fmt.Errorf("insert scope: %w", err)
		}
	case err != nil:
		return fmt.Errorf("find scope: %w", err)
	default:
		scope.ID = existingID
		if _, err := tx.ExecContext(ctx, "UPDATE manager_scopes SET scope_type = $1, notes = $2 WHERE id = $3", scope.ScopeType, scope.Notes, scope.ID); err != nil {
			return fmt.Errorf("update scope: %w", err)
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM manager_scope_departments WHERE manager_scope_id = $1", scope.ID); err != nil {
			return fmt.Errorf("clear scope departments: %w", err)
		}
	}

	for _, dept := range departments {
		if _, err := tx.ExecContext(ctx, "INSERT INTO manager_scope_departments (manager_scope_id, department) VALUES ($1, $2)", scope.ID, dept); err != nil {
			return fmt.Errorf("insert scope department: %w", err)
		}
	}

	return tx.Commit()
}

// Create inserts a scope without departments. Used by bulk grants.
func (r *ScopeRepository) Create(ctx context.Context, scope *models.ManagerScope) error {
	insert := `INSERT INTO manager_scopes (manager_employee_id, scope_type, notes, created_at)
		VALUES ($1, $2, $3, $4) RETURNING id`
	if err := r.db.QueryRowxContext(ctx, insert, scope.ManagerEmployeeID, scope.ScopeType, scope.Notes, time.Now().UTC()).Scan(&scope.ID); err != nil {
		return fmt.Errorf("create scope: %w", err)
	}
	return nil
}

// ExistsForManager reports whether any scope is recorded for the employee.
func (r *ScopeRepository) ExistsForManager(ctx context.Context, managerEmployeeID int64) (bool, error) {
	var exists bool
	query := "SELECT EXISTS (SELECT 1 FROM manager_scopes WHERE manager_employee_id = $1)"
	if err := r.db.GetContext(ctx, &exists, query, managerEmployeeID); err != nil {
		return false, fmt.Errorf("scope exists: %w", err)
	}
	return exists, nil
}

// Delete removes a scope and its departments.
func (r *ScopeRepository) Delete(ctx context.Context, id int64) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin scope delete: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, "DELETE FROM manager_scope_departments WHERE manager_scope_id = $1", id); err != nil {
		return fmt.Errorf("delete scope departments: %w", err)
	}
	res, err := tx.ExecContext(ctx, "DELETE FROM manager_scopes WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete scope: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return tx.Commit()
}
