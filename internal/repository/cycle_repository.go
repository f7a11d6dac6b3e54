package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/hayat-interiors/appraisal-api/internal/models"
)

// CycleRepository manages persistence for appraisal cycles.
type CycleRepository struct {
	db *sqlx.DB
}

// NewCycleRepository constructs a CycleRepository.
func NewCycleRepository(db *sqlx.DB) *CycleRepository {
	return &CycleRepository{db: db}
}

// List returns cycles, newest first.
func (r *CycleRepository) List(ctx context.Context) ([]models.AppraisalCycle, error) {
	var cycles []models.AppraisalCycle
	query := "SELECT id, name, start_date, end_date, status, created_at FROM appraisal_cycles ORDER BY id DESC"
	if err := r.db.SelectContext(ctx, &cycles, query); err != nil {
		return nil, fmt.Errorf("list cycles: %w", err)
	}
	return cycles, nil
}

// FindByID fetches one cycle.
func (r *CycleRepository) FindByID(ctx context.Context, id int64) (*models.AppraisalCycle, error) {
	var cycle models.AppraisalCycle
	query := "SELECT id, name, start_date, end_date, status, created_at FROM appraisal_cycles WHERE id = $1"
	if err := r.db.GetContext(ctx, &cycle, query, id); err != nil {
		return nil, err
	}
	return &cycle, nil
}

// Create inserts a cycle and populates its id.
func (r *CycleRepository) Create(ctx context.Context, cycle *models.AppraisalCycle) error {
	query := `INSERT INTO appraisal_cycles (name, start_date, end_date, status, created_at)
		VALUES ($1, $2, $3, $4, $5) RETURNING id`
	now := time.Now().UTC()
	if err := r.db.QueryRowxContext(ctx, query, cycle.Name, cycle.Start, cycle.End, cycle.Status, now).Scan(&cycle.ID); err != nil {
		return fmt.Errorf("create cycle: %w", err)
	}
	cycle.CreatedAt = now
	return nil
}

// Delete removes the cycle row itself. Child forms are removed by the caller
// beforehand so one missing form cannot abort the whole deletion.
func (r *CycleRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM appraisal_cycles WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete cycle: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Progress returns per-cycle form counts grouped by workflow state.
func (r *CycleRepository) Progress(ctx context.Context) ([]models.CycleProgress, error) {
	query := `SELECT c.id AS cycle_id, c.name AS cycle_name,
		COUNT(f.id) AS total,
		COUNT(f.id) FILTER (WHERE f.status = 'Submitted') AS submitted,
		COUNT(f.id) FILTER (WHERE f.status = 'MgrReviewed') AS mgr_reviewed,
		COUNT(f.id) FILTER (WHERE f.status = 'HRReviewed') AS hr_reviewed,
		COUNT(f.id) FILTER (WHERE f.status IN ('Approved', 'Finalized')) AS completed
		FROM appraisal_cycles c
		LEFT JOIN forms f ON f.cycle_id = c.id
		GROUP BY c.id, c.name
		ORDER BY c.id DESC`
	var progress []models.CycleProgress
	if err := r.db.SelectContext(ctx, &progress, query); err != nil {
		return nil, fmt.Errorf("cycle progress: %w", err)
	}
	return progress, nil
}
