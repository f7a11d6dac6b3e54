package service

import (
	"context"
	"database/sql"
	"errors"

	"go.uber.org/zap"

	"github.com/hayat-interiors/appraisal-api/internal/models"
	appErrors "github.com/hayat-interiors/appraisal-api/pkg/errors"
)

type authorityEmployeeReader interface {
	FindByCode(ctx context.Context, empCode string) (*models.Employee, error)
}

type managerLikeResolver interface {
	ManagerLike(ctx context.Context, target models.Employee) (bool, error)
}

// AuthorityService resolves the acting principal's capability set once per
// request. HR and CEO are designated emp codes from configuration; Manager is
// derived from live hierarchy data, never from a stored role.
type AuthorityService struct {
	employees  authorityEmployeeReader
	hierarchy  managerLikeResolver
	hrEmpCode  string
	ceoEmpCode string
	logger     *zap.Logger
}

// NewAuthorityService constructs AuthorityService.
func NewAuthorityService(employees authorityEmployeeReader, hierarchy managerLikeResolver, hrEmpCode, ceoEmpCode string, logger *zap.Logger) *AuthorityService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthorityService{
		employees:  employees,
		hierarchy:  hierarchy,
		hrEmpCode:  hrEmpCode,
		ceoEmpCode: ceoEmpCode,
		logger:     logger,
	}
}

// Resolve builds the AuthorityContext for an authenticated user. A user
// without an employee row gets a minimal context carrying only the stored
// role; administrators remain fully functional without one.
func (s *AuthorityService) Resolve(ctx context.Context, userID, empCode string, role models.UserRole) (models.AuthorityContext, error) {
	authority := models.AuthorityContext{Role: role}

	employee, err := s.employees.FindByCode(ctx, empCode)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			authority.Employee = models.Employee{EmpCode: empCode, UserID: &userID}
			return authority, nil
		}
		return authority, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve employee")
	}
	if employee.UserID == nil {
		employee.UserID = &userID
	}
	authority.Employee = *employee

	authority.HR = empCode == s.hrEmpCode
	authority.CEO = empCode == s.ceoEmpCode

	manager, err := s.hierarchy.ManagerLike(ctx, *employee)
	if err != nil {
		return authority, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve manager capability")
	}
	authority.Manager = manager
	return authority, nil
}
