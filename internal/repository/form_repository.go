package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/hayat-interiors/appraisal-api/internal/models"
)

// ErrVersionConflict is returned when a guarded form update loses the race
// against a concurrent writer.
var ErrVersionConflict = errors.New("form row version conflict")

const formColumns = "id, employee_id, cycle_id, status, employee_score, manager_score, final_score, self_comments, manager_comments, hr_comments, ceo_comments, row_version, created_at, updated_at"

const formDetailColumns = `f.id, f.employee_id, f.cycle_id, f.status, f.employee_score, f.manager_score, f.final_score,
	f.self_comments, f.manager_comments, f.hr_comments, f.ceo_comments, f.row_version, f.created_at, f.updated_at,
	e.emp_code AS emp_code, e.name AS emp_name, e.department AS department, c.name AS cycle_name`

const formDetailJoin = " FROM forms f JOIN employees e ON e.id = f.employee_id JOIN appraisal_cycles c ON c.id = f.cycle_id"

// FormRepository manages persistence for forms and their child row sets.
type FormRepository struct {
	db *sqlx.DB
}

// NewFormRepository constructs a FormRepository.
func NewFormRepository(db *sqlx.DB) *FormRepository {
	return &FormRepository{db: db}
}

// FindByID fetches one form.
func (r *FormRepository) FindByID(ctx context.Context, id int64) (*models.Form, error) {
	var form models.Form
	query := fmt.Sprintf("SELECT %s FROM forms WHERE id = $1", formColumns)
	if err := r.db.GetContext(ctx, &form, query, id); err != nil {
		return nil, err
	}
	return &form, nil
}

// FindDetail fetches one form joined with employee and cycle.
func (r *FormRepository) FindDetail(ctx context.Context, id int64) (*models.FormDetail, error) {
	var detail models.FormDetail
	query := "SELECT " + formDetailColumns + formDetailJoin + " WHERE f.id = $1"
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// ListByEmployee returns an employee's forms, newest first.
func (r *FormRepository) ListByEmployee(ctx context.Context, employeeID int64) ([]models.FormDetail, error) {
	var details []models.FormDetail
	query := "SELECT " + formDetailColumns + formDetailJoin + " WHERE f.employee_id = $1 ORDER BY f.id DESC"
	if err := r.db.SelectContext(ctx, &details, query, employeeID); err != nil {
		return nil, fmt.Errorf("list forms by employee: %w", err)
	}
	return details, nil
}

// ListByCycle returns every form of a cycle.
func (r *FormRepository) ListByCycle(ctx context.Context, cycleID int64) ([]models.Form, error) {
	var forms []models.Form
	query := fmt.Sprintf("SELECT %s FROM forms WHERE cycle_id = $1 ORDER BY id", formColumns)
	if err := r.db.SelectContext(ctx, &forms, query, cycleID); err != nil {
		return nil, fmt.Errorf("list forms by cycle: %w", err)
	}
	return forms, nil
}

// ListDetailsByCycle returns a cycle's forms joined with employee and cycle,
// ordered by employee name for report output.
func (r *FormRepository) ListDetailsByCycle(ctx context.Context, cycleID int64) ([]models.FormDetail, error) {
	var details []models.FormDetail
	query := "SELECT " + formDetailColumns + formDetailJoin + " WHERE f.cycle_id = $1 ORDER BY e.name, f.id"
	if err := r.db.SelectContext(ctx, &details, query, cycleID); err != nil {
		return nil, fmt.Errorf("list form details by cycle: %w", err)
	}
	return details, nil
}

// ListAllDetails returns every form joined with employee and cycle, newest first.
func (r *FormRepository) ListAllDetails(ctx context.Context) ([]models.FormDetail, error) {
	var details []models.FormDetail
	query := "SELECT " + formDetailColumns + formDetailJoin + " ORDER BY f.id DESC"
	if err := r.db.SelectContext(ctx, &details, query); err != nil {
		return nil, fmt.Errorf("list form details: %w", err)
	}
	return details, nil
}

// ListDetailsByStatus returns forms in any of the given states, newest first.
func (r *FormRepository) ListDetailsByStatus(ctx context.Context, statuses ...models.FormStatus) ([]models.FormDetail, error) {
	query, args, err := sqlx.In("SELECT "+formDetailColumns+formDetailJoin+" WHERE f.status IN (?) ORDER BY f.id DESC", statuses)
	if err != nil {
		return nil, fmt.Errorf("build status filter: %w", err)
	}
	query = r.db.Rebind(query)
	var details []models.FormDetail
	if err := r.db.SelectContext(ctx, &details, query, args...); err != nil {
		return nil, fmt.Errorf("list forms by status: %w", err)
	}
	return details, nil
}

// ExistsForEmployeeCycle reports whether a form was already generated for the pair.
func (r *FormRepository) ExistsForEmployeeCycle(ctx context.Context, employeeID, cycleID int64) (bool, error) {
	var exists bool
	query := "SELECT EXISTS (SELECT 1 FROM forms WHERE employee_id = $1 AND cycle_id = $2)"
	if err := r.db.GetContext(ctx, &exists, query, employeeID, cycleID); err != nil {
		return false, fmt.Errorf("form exists: %w", err)
	}
	return exists, nil
}

// CreateWithResponses inserts a form plus one legacy response stub per question.
func (r *FormRepository) CreateWithResponses(ctx context.Context, form *models.Form, questionIDs []int64) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin form create: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	now := time.Now().UTC()
	insert := `INSERT INTO forms (employee_id, cycle_id, status, row_version, created_at, updated_at)
		VALUES ($1, $2, $3, 1, $4, $4) RETURNING id`
	if err := tx.QueryRowxContext(ctx, insert, form.EmployeeID, form.CycleID, form.Status, now).Scan(&form.ID); err != nil {
		return fmt.Errorf("insert form: %w", err)
	}
	form.RowVersion = 1

	for _, questionID := range questionIDs {
		if _, err := tx.ExecContext(ctx, "INSERT INTO responses (form_id, question_id) VALUES ($1, $2)", form.ID, questionID); err != nil {
			return fmt.Errorf("insert response stub: %w", err)
		}
	}

	return tx.Commit()
}

// UpdateStatus transitions the form, guarded by its row version.
func (r *FormRepository) UpdateStatus(ctx context.Context, id int64, status models.FormStatus, rowVersion int64) error {
	query := `UPDATE forms SET status = $1, row_version = row_version + 1, updated_at = $2
		WHERE id = $3 AND row_version = $4`
	res, err := r.db.ExecContext(ctx, query, status, time.Now().UTC(), id, rowVersion)
	if err != nil {
		return fmt.Errorf("update form status: %w", err)
	}
	return r.checkGuarded(ctx, res, id)
}

// UpdateScores writes the computed rollup scores.
func (r *FormRepository) UpdateScores(ctx context.Context, id int64, employeeScore, managerScore, finalScore *decimal.Decimal) error {
	query := `UPDATE forms SET employee_score = COALESCE($1, employee_score), manager_score = $2, final_score = $3, updated_at = $4 WHERE id = $5`
	res, err := r.db.ExecContext(ctx, query, employeeScore, managerScore, finalScore, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update form scores: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ReplaceSelfEvaluation rewrites the responsibility row set and the self
// comments in one transaction. Manager and HR data is never touched.
func (r *FormRepository) ReplaceSelfEvaluation(ctx context.Context, formID int64, rows []models.Responsibility, comments *string, rowVersion int64) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin self save: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	guard := `UPDATE forms SET self_comments = $1, row_version = row_version + 1, updated_at = $2
		WHERE id = $3 AND row_version = $4`
	res, err := tx.ExecContext(ctx, guard, comments, time.Now().UTC(), formID, rowVersion)
	if err != nil {
		return fmt.Errorf("update self comments: %w", err)
	}
	if err := r.checkGuardedTx(ctx, tx, res, formID); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM responsibilities WHERE form_id = $1", formID); err != nil {
		return fmt.Errorf("clear responsibilities: %w", err)
	}
	for _, row := range rows {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO responsibilities (form_id, title, description, achievement_percent) VALUES ($1, $2, $3, $4)",
			formID, row.Title, row.Description, row.AchievementPercent,
		); err != nil {
			return fmt.Errorf("insert responsibility: %w", err)
		}
	}

	return tx.Commit()
}

// ReplaceManagerReview rewrites the KPI row set, rescoring existing soft-skill
// rows in place by attribute key, and updates manager comments. Responsibility
// rows are deliberately left alone.
func (r *FormRepository) ReplaceManagerReview(ctx context.Context, formID int64, kpis []models.KPIItem, softScores map[string]int, comments *string, rowVersion int64) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin manager save: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	guard := `UPDATE forms SET manager_comments = $1, row_version = row_version + 1, updated_at = $2
		WHERE id = $3 AND row_version = $4`
	res, err := tx.ExecContext(ctx, guard, comments, time.Now().UTC(), formID, rowVersion)
	if err != nil {
		return fmt.Errorf("update manager comments: %w", err)
	}
	if err := r.checkGuardedTx(ctx, tx, res, formID); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM kpi_items WHERE form_id = $1", formID); err != nil {
		return fmt.Errorf("clear kpi items: %w", err)
	}
	for _, kpi := range kpis {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO kpi_items (form_id, description, actual_performance, score) VALUES ($1, $2, $3, $4)",
			formID, kpi.Description, kpi.ActualPerformance, kpi.Score,
		); err != nil {
			return fmt.Errorf("insert kpi item: %w", err)
		}
	}

	for key, score := range softScores {
		if _, err := tx.ExecContext(ctx,
			"UPDATE soft_skill_ratings SET score = $1 WHERE form_id = $2 AND attribute_key = $3",
			score, formID, key,
		); err != nil {
			return fmt.Errorf("update soft skill %s: %w", key, err)
		}
	}

	return tx.Commit()
}

// UpdateHRReview records the HR comment, backfills the final score from the
// manager score when unset, and transitions the form in one guarded write.
func (r *FormRepository) UpdateHRReview(ctx context.Context, formID int64, status models.FormStatus, comments *string, rowVersion int64) error {
	query := `UPDATE forms SET status = $1,
		hr_comments = COALESCE($2, hr_comments),
		final_score = COALESCE(final_score, manager_score),
		row_version = row_version + 1, updated_at = $3
		WHERE id = $4 AND row_version = $5`
	res, err := r.db.ExecContext(ctx, query, status, comments, time.Now().UTC(), formID, rowVersion)
	if err != nil {
		return fmt.Errorf("update hr review: %w", err)
	}
	return r.checkGuarded(ctx, res, formID)
}

// AppendCEOComment records the CEO note without touching the status.
func (r *FormRepository) AppendCEOComment(ctx context.Context, formID int64, comment string, rowVersion int64) error {
	query := `UPDATE forms SET
		ceo_comments = CASE WHEN ceo_comments IS NULL OR ceo_comments = '' THEN $1 ELSE ceo_comments || E'\n' || $1 END,
		row_version = row_version + 1, updated_at = $2
		WHERE id = $3 AND row_version = $4`
	res, err := r.db.ExecContext(ctx, query, comment, time.Now().UTC(), formID, rowVersion)
	if err != nil {
		return fmt.Errorf("append ceo comment: %w", err)
	}
	return r.checkGuarded(ctx, res, formID)
}

// ListResponsibilities returns the self-evaluation rows in insertion order.
func (r *FormRepository) ListResponsibilities(ctx context.Context, formID int64) ([]models.Responsibility, error) {
	var rows []models.Responsibility
	query := "SELECT id, form_id, title, description, achievement_percent FROM responsibilities WHERE form_id = $1 ORDER BY id"
	if err := r.db.SelectContext(ctx, &rows, query, formID); err != nil {
		return nil, fmt.Errorf("list responsibilities: %w", err)
	}
	return rows, nil
}

// ListKPIs returns the KPI rows in insertion order.
func (r *FormRepository) ListKPIs(ctx context.Context, formID int64) ([]models.KPIItem, error) {
	var rows []models.KPIItem
	query := "SELECT id, form_id, description, actual_performance, score FROM kpi_items WHERE form_id = $1 ORDER BY id"
	if err := r.db.SelectContext(ctx, &rows, query, formID); err != nil {
		return nil, fmt.Errorf("list kpi items: %w", err)
	}
	return rows, nil
}

// ListSoftSkills returns the attribute rows in catalog order.
func (r *FormRepository) ListSoftSkills(ctx context.Context, formID int64) ([]models.SoftSkillRating, error) {
	var rows []models.SoftSkillRating
	query := "SELECT id, form_id, attribute_key, attribute, score FROM soft_skill_ratings WHERE form_id = $1 ORDER BY id"
	if err := r.db.SelectContext(ctx, &rows, query, formID); err != nil {
		return nil, fmt.Errorf("list soft skills: %w", err)
	}
	return rows, nil
}

// MaterializeSoftSkills inserts the default attribute rows once. The guard
// inside the transaction keeps concurrent first-opens idempotent.
func (r *FormRepository) MaterializeSoftSkills(ctx context.Context, formID int64, attrs []models.SoftSkillAttribute, defaultScore int) (bool, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin soft materialize: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var count int
	if err := tx.GetContext(ctx, &count, "SELECT COUNT(*) FROM soft_skill_ratings WHERE form_id = $1", formID); err != nil {
		return false, fmt.Errorf("count soft skills: %w", err)
	}
	if count > 0 {
		return false, nil
	}

	for _, attr := range attrs {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO soft_skill_ratings (form_id, attribute_key, attribute, score) VALUES ($1, $2, $3, $4)",
			formID, attr.Key, attr.Name, defaultScore,
		); err != nil {
			return false, fmt.Errorf("insert soft skill: %w", err)
		}
	}

	return true, tx.Commit()
}

// ListResponses returns the legacy responses joined with their questions.
func (r *FormRepository) ListResponses(ctx context.Context, formID int64) ([]models.ResponseDetail, error) {
	var rows []models.ResponseDetail
	query := `SELECT r.id, r.form_id, r.question_id, r.self_rating, r.self_comment, r.manager_rating, r.manager_comment,
		q.section, q.text, q.weight
		FROM responses r JOIN questions q ON q.id = r.question_id
		WHERE r.form_id = $1 ORDER BY r.id`
	if err := r.db.SelectContext(ctx, &rows, query, formID); err != nil {
		return nil, fmt.Errorf("list responses: %w", err)
	}
	return rows, nil
}

// UpdateSelfResponses writes the self side of legacy responses by row id.
func (r *FormRepository) UpdateSelfResponses(ctx context.Context, formID int64, responses []models.Response) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin response save: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	for _, resp := range responses {
		if _, err := tx.ExecContext(ctx,
			"UPDATE responses SET self_rating = $1, self_comment = $2 WHERE id = $3 AND form_id = $4",
			resp.SelfRating, resp.SelfComment, resp.ID, formID,
		); err != nil {
			return fmt.Errorf("update response %d: %w", resp.ID, err)
		}
	}

	return tx.Commit()
}

// DeleteCascade removes one form together with all of its child rows.
func (r *FormRepository) DeleteCascade(ctx context.Context, formID int64) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin form delete: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	for _, table := range []string{"responsibilities", "kpi_items", "soft_skill_ratings", "responses"} {
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE form_id = $1", table), formID); err != nil {
			return fmt.Errorf("delete %s: %w", table, err)
		}
	}

	res, err := tx.ExecContext(ctx, "DELETE FROM forms WHERE id = $1", formID)
	if err != nil {
		return fmt.Errorf("delete form: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}

	return tx.Commit()
}

func (r *FormRepository) checkGuarded(ctx context.Context, res sql.Result, formID int64) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected > 0 {
		return nil
	}
	var exists bool
	if err := r.db.GetContext(ctx, &exists, "SELECT EXISTS (SELECT 1 FROM forms WHERE id = $1)", formID); err != nil {
		return fmt.Errorf("check form: %w", err)
	}
	if exists {
		return ErrVersionConflict
	}
	return sql.ErrNoRows
}

func (r *FormRepository) checkGuardedTx(ctx context.Context, tx *sqlx.Tx, res sql.Result, formID int64) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected > 0 {
		return nil
	}
	var exists bool
	if err := tx.GetContext(ctx, &exists, "SELECT EXISTS (SELECT 1 FROM forms WHERE id = $1)", formID); err != nil {
		return fmt.Errorf("check form: %w", err)
	}
	if exists {
		return ErrVersionConflict
	}
	return sql.ErrNoRows
}
