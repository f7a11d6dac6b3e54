package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/hayat-interiors/appraisal-api/internal/models"
	appErrors "github.com/hayat-interiors/appraisal-api/pkg/errors"
)

type employeeRepo interface {
	List(ctx context.Context, filter models.EmployeeFilter) ([]models.Employee, int, error)
	ListAll(ctx context.Context) ([]models.Employee, error)
	FindByID(ctx context.Context, id int64) (*models.Employee, error)
	FindByCode(ctx context.Context, empCode string) (*models.Employee, error)
	Create(ctx context.Context, employee *models.Employee) error
	Update(ctx context.Context, employee *models.Employee) error
	SetManager(ctx context.Context, id int64, managerID *int64) error
}

// CreateEmployeeRequest adds one employee by hand, outside the import flow.
type CreateEmployeeRequest struct {
	EmpCode     string     `json:"emp_code" validate:"required,max=20"`
	Name        string     `json:"name" validate:"required,max=150"`
	Email       *string    `json:"email" validate:"omitempty,email"`
	Department  *string    `json:"department"`
	Designation *string    `json:"designation"`
	Location    *string    `json:"location"`
	DateOfJoin  *time.Time `json:"date_of_joining"`
	DateOfBirth *time.Time `json:"date_of_birth"`
}

// UpdateEmployeeRequest rewrites the mutable profile fields.
type UpdateEmployeeRequest struct {
	Name        string     `json:"name" validate:"required,max=150"`
	Email       *string    `json:"email" validate:"omitempty,email"`
	Department  *string    `json:"department"`
	Designation *string    `json:"designation"`
	Location    *string    `json:"location"`
	DateOfJoin  *time.Time `json:"date_of_joining"`
	DateOfBirth *time.Time `json:"date_of_birth"`
}

// AssignManagerRequest sets or clears the normalized manager link.
type AssignManagerRequest struct {
	ManagerID *int64 `json:"manager_id"`
}

// EmployeeService manages the employee directory.
type EmployeeService struct {
	employees employeeRepo
	validator *validator.Validate
	logger    *zap.Logger
}

// NewEmployeeService constructs EmployeeService.
func NewEmployeeService(employees employeeRepo, validate *validator.Validate, logger *zap.Logger) *EmployeeService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EmployeeService{employees: employees, validator: validate, logger: logger}
}

// List returns a filtered employee page with the total count.
func (s *EmployeeService) List(ctx context.Context, filter models.EmployeeFilter) ([]models.Employee, int, error) {
	employees, total, err := s.employees.List(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list employees")
	}
	return employees, total, nil
}

// Get fetches one employee by id.
func (s *EmployeeService) Get(ctx context.Context, id int64) (*models.Employee, error) {
	employee, err := s.employees.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "employee not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load employee")
	}
	return employee, nil
}

// Create adds a new employee. Emp codes are unique after trimming.
func (s *EmployeeService) Create(ctx context.Context, req CreateEmployeeRequest) (*models.Employee, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid employee payload")
	}

	empCode := strings.TrimSpace(req.EmpCode)
	if _, err := s.employees.FindByCode(ctx, empCode); err == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "emp code already in use")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check emp code")
	}

	employee := &models.Employee{
		EmpCode:     empCode,
		Name:        strings.TrimSpace(req.Name),
		Email:       req.Email,
		Department:  req.Department,
		Designation: req.Designation,
		Location:    req.Location,
		DateOfJoin:  req.DateOfJoin,
		DateOfBirth: req.DateOfBirth,
	}
	if err := s.employees.Create(ctx, employee); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create employee")
	}
	return employee, nil
}

// Update rewrites the profile fields of one employee.
func (s *EmployeeService) Update(ctx context.Context, id int64, req UpdateEmployeeRequest) (*models.Employee, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid employee payload")
	}

	employee, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	employee.Name = strings.TrimSpace(req.Name)
	employee.Email = req.Email
	employee.Department = req.Department
	employee.Designation = req.Designation
	employee.Location = req.Location
	employee.DateOfJoin = req.DateOfJoin
	employee.DateOfBirth = req.DateOfBirth

	if err := s.employees.Update(ctx, employee); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update employee")
	}
	return employee, nil
}

// AssignManager sets the strong manager link after checking the assignment
// would not close a reporting loop. Passing a nil manager clears the link.
func (s *EmployeeService) AssignManager(ctx context.Context, id int64, req AssignManagerRequest) error {
	employee, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	if req.ManagerID != nil {
		if *req.ManagerID == employee.ID {
			return appErrors.Clone(appErrors.ErrValidation, "employee cannot manage themselves")
		}
		if _, err := s.Get(ctx, *req.ManagerID); err != nil {
			return err
		}

		all, err := s.employees.ListAll(ctx)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load employees")
		}
		if createsManagerCycle(employee.ID, *req.ManagerID, all) {
			return appErrors.Clone(appErrors.ErrValidation, "assignment would create a reporting cycle")
		}
	}

	if err := s.employees.SetManager(ctx, id, req.ManagerID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to assign manager")
	}
	s.logger.Info("manager assigned", zap.Int64("employee_id", id))
	return nil
}

// createsManagerCycle walks the strong-link chain upward from the proposed
// manager; finding the employee there means the assignment closes a loop.
// The visited set also guards against pre-existing corrupt cycles.
func createsManagerCycle(employeeID, managerID int64, all []models.Employee) bool {
	managerOf := make(map[int64]*int64, len(all))
	for _, e := range all {
		managerOf[e.ID] = e.ManagerID
	}

	visited := make(map[int64]struct{})
	current := managerID
	for {
		if current == employeeID {
			return true
		}
		if _, seen := visited[current]; seen {
			return false
		}
		visited[current] = struct{}{}
		next, ok := managerOf[current]
		if !ok || next == nil {
			return false
		}
		current = *next
	}
}
