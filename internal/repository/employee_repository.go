package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/hayat-interiors/appraisal-api/internal/models"
)

const employeeColumns = "id, emp_code, name, email, department, designation, location, date_of_joining, date_of_birth, manager_id, manager_emp_code, manager_name_cached, user_id, created_at, updated_at"

// EmployeeRepository manages persistence for employees.
type EmployeeRepository struct {
	db *sqlx.DB
}

// NewEmployeeRepository constructs an EmployeeRepository.
func NewEmployeeRepository(db *sqlx.DB) *EmployeeRepository {
	return &EmployeeRepository{db: db}
}

// List returns employees matching filters along with total count.
func (r *EmployeeRepository) List(ctx context.Context, filter models.EmployeeFilter) ([]models.Employee, int, error) {
	base := "FROM employees WHERE 1=1"
	var conditions []string
	var args []interface{}

	if filter.Search != "" {
		search := "%" + strings.ToLower(filter.Search) + "%"
		conditions = append(conditions, fmt.Sprintf("(LOWER(name) LIKE $%d OR LOWER(emp_code) LIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, search)
	}
	if filter.Department != "" {
		conditions = append(conditions, fmt.Sprintf("department = $%d", len(args)+1))
		args = append(args, filter.Department)
	}

	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	sortBy := filter.SortBy
	allowedSorts := map[string]string{
		"name":       "name",
		"emp_code":   "emp_code",
		"department": "department",
		"created_at": "created_at",
	}
	column, ok := allowedSorts[sortBy]
	if !ok {
		column = "name"
	}

	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "ASC"
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 200 {
		size = 50
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s %s ORDER BY %s %s LIMIT %d OFFSET %d", employeeColumns, base, column, order, size, offset)
	var employees []models.Employee
	if err := r.db.SelectContext(ctx, &employees, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list employees: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count employees: %w", err)
	}

	return employees, total, nil
}

// ListAll returns the full employee set, ordered by name. The hierarchy
// resolver consumes this snapshot in one read.
func (r *EmployeeRepository) ListAll(ctx context.Context) ([]models.Employee, error) {
	query := fmt.Sprintf("SELECT %s FROM employees ORDER BY name", employeeColumns)
	var employees []models.Employee
	if err := r.db.SelectContext(ctx, &employees, query); err != nil {
		return nil, fmt.Errorf("list all employees: %w", err)
	}
	return employees, nil
}

// FindByID fetches one employee by primary key.
func (r *EmployeeRepository) FindByID(ctx context.Context, id int64) (*models.Employee, error) {
	query := fmt.Sprintf("SELECT %s FROM employees WHERE id = $1", employeeColumns)
	var employee models.Employee
	if err := r.db.GetContext(ctx, &employee, query, id); err != nil {
		return nil, err
	}
	return &employee, nil
}

// FindByCode fetches one employee by its trimmed emp code.
func (r *EmployeeRepository) FindByCode(ctx context.Context, empCode string) (*models.Employee, error) {
	query := fmt.Sprintf("SELECT %s FROM employees WHERE emp_code = $1", employeeColumns)
	var employee models.Employee
	if err := r.db.GetContext(ctx, &employee, query, strings.TrimSpace(empCode)); err != nil {
		return nil, err
	}
	return &employee, nil
}

// FindByUserID fetches the employee linked to a user account.
func (r *EmployeeRepository) FindByUserID(ctx context.Context, userID string) (*models.Employee, error) {
	query := fmt.Sprintf("SELECT %s FROM employees WHERE user_id = $1", employeeColumns)
	var employee models.Employee
	if err := r.db.GetContext(ctx, &employee, query, userID); err != nil {
		return nil, err
	}
	return &employee, nil
}

// Create inserts a new employee row and populates its id.
func (r *EmployeeRepository) Create(ctx context.Context, employee *models.Employee) error {
	query := `INSERT INTO employees (emp_code, name, email, department, designation, location, date_of_joining, date_of_birth, manager_id, manager_emp_code, manager_name_cached, user_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $13)
		RETURNING id`
	now := time.Now().UTC()
	if err := r.db.QueryRowxContext(ctx, query,
		employee.EmpCode, employee.Name, employee.Email, employee.Department,
		employee.Designation, employee.Location, employee.DateOfJoin, employee.DateOfBirth,
		employee.ManagerID, employee.ManagerEmpCode, employee.ManagerNameCached,
		employee.UserID, now,
	).Scan(&employee.ID); err != nil {
		return fmt.Errorf("create employee: %w", err)
	}
	employee.CreatedAt = now
	employee.UpdatedAt = now
	return nil
}

// Update rewrites the mutable employee fields.
func (r *EmployeeRepository) Update(ctx context.Context, employee *models.Employee) error {
	query := `UPDATE employees SET name = $1, email = $2, department = $3, designation = $4, location = $5,
		date_of_joining = $6, date_of_birth = $7, manager_emp_code = $8, manager_name_cached = $9,
		user_id = $10, updated_at = $11 WHERE id = $12`
	now := time.Now().UTC()
	if _, err := r.db.ExecContext(ctx, query,
		employee.Name, employee.Email, employee.Department, employee.Designation, employee.Location,
		employee.DateOfJoin, employee.DateOfBirth, employee.ManagerEmpCode, employee.ManagerNameCached,
		employee.UserID, now, employee.ID,
	); err != nil {
		return fmt.Errorf("update employee: %w", err)
	}
	employee.UpdatedAt = now
	return nil
}

// SetManager assigns or clears the normalized manager link.
func (r *EmployeeRepository) SetManager(ctx context.Context, id int64, managerID *int64) error {
	query := "UPDATE employees SET manager_id = $1, updated_at = $2 WHERE id = $3"
	if _, err := r.db.ExecContext(ctx, query, managerID, time.Now().UTC(), id); err != nil {
		return fmt.Errorf("set manager: %w", err)
	}
	return nil
}
