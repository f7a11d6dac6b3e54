package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/hayat-interiors/appraisal-api/internal/models"
	appErrors "github.com/hayat-interiors/appraisal-api/pkg/errors"
)

type importEmployeeRepo interface {
	ListAll(ctx context.Context) ([]models.Employee, error)
	FindByCode(ctx context.Context, empCode string) (*models.Employee, error)
	Create(ctx context.Context, employee *models.Employee) error
	Update(ctx context.Context, employee *models.Employee) error
	SetManager(ctx context.Context, id int64, managerID *int64) error
}

type importUserRepo interface {
	FindByEmpCode(ctx context.Context, empCode string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// ImportRowError records why one sheet row was skipped.
type ImportRowError struct {
	Row    int    `json:"row"`
	Reason string `json:"reason"`
}

// ImportResult summarises an employee import run.
type ImportResult struct {
	Created      int              `json:"created"`
	Updated      int              `json:"updated"`
	UsersCreated int              `json:"users_created"`
	StrongLinks  int              `json:"strong_links"`
	WeakOnly     int              `json:"weak_only"`
	Skipped      []ImportRowError `json:"skipped,omitempty"`
}

// Column order of the employee master sheet. The first row is a header.
const (
	colSNo = iota
	colEmpCode
	colName
	colManagerName
	colManagerCode
	colLocation
	colDepartment
	colDesignation
	colDateOfJoin
	colDateOfBirth
	colEmail
	importColumnCount
)

// ImportService ingests the employee master workbook. Pass one upserts
// employees and their accounts; pass two resolves manager codes to strong
// links, leaving the free-text fallback fields in place for weak matching.
type ImportService struct {
	employees    importEmployeeRepo
	users        importUserRepo
	adminEmpCode string
	logger       *zap.Logger
}

// NewImportService constructs ImportService.
func NewImportService(employees importEmployeeRepo, users importUserRepo, adminEmpCode string, logger *zap.Logger) *ImportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ImportService{employees: employees, users: users, adminEmpCode: adminEmpCode, logger: logger}
}

type importRow struct {
	empCode     string
	name        string
	managerName string
	managerCode string
	location    string
	department  string
	designation string
	dateOfJoin  *time.Time
	dateOfBirth *time.Time
	email       string
	sheetRow    int
}

// ImportWorkbook reads the first sheet of an xlsx stream and applies it.
func (s *ImportService) ImportWorkbook(ctx context.Context, actor models.AuthorityContext, reader io.Reader) (*ImportResult, error) {
	book, err := excelize.OpenReader(reader)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "not a readable xlsx workbook")
	}
	defer book.Close() //nolint:errcheck

	sheets := book.GetSheetList()
	if len(sheets) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "workbook has no sheets")
	}
	raw, err := book.GetRows(sheets[0])
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "failed to read sheet")
	}
	if len(raw) < 2 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "sheet has no data rows")
	}

	result := &ImportResult{}
	var rows []importRow
	for i, cells := range raw[1:] {
		row, reason := parseImportRow(cells, i+2)
		if reason != "" {
			result.Skipped = append(result.Skipped, ImportRowError{Row: i + 2, Reason: reason})
			continue
		}
		rows = append(rows, row)
	}

	if err := s.applyEmployees(ctx, rows, result); err != nil {
		return nil, err
	}
	if err := s.linkManagers(ctx, rows, result); err != nil {
		return nil, err
	}

	s.auditImport(ctx, actor, result)
	s.logger.Info("employee import finished",
		zap.Int("created", result.Created),
		zap.Int("updated", result.Updated),
		zap.Int("strong_links", result.StrongLinks),
		zap.Int("skipped", len(result.Skipped)))
	return result, nil
}

func parseImportRow(cells []string, sheetRow int) (importRow, string) {
	cell := func(idx int) string {
		if idx < len(cells) {
			return strings.TrimSpace(cells[idx])
		}
		return ""
	}

	row := importRow{
		empCode:     cell(colEmpCode),
		name:        cell(colName),
		managerName: cell(colManagerName),
		managerCode: cell(colManagerCode),
		location:    cell(colLocation),
		department:  cell(colDepartment),
		designation: cell(colDesignation),
		email:       cell(colEmail),
		sheetRow:    sheetRow,
	}
	if row.empCode == "" {
		return row, "missing emp code"
	}
	if row.name == "" {
		return row, "missing name"
	}
	row.dateOfJoin = parseSheetDate(cell(colDateOfJoin))
	row.dateOfBirth = parseSheetDate(cell(colDateOfBirth))
	return row, ""
}

// parseSheetDate accepts the formats the HR sheets arrive in, including the
// raw serial numbers excelize yields for unformatted date cells. Unparseable
// values become nil rather than failing the row.
func parseSheetDate(value string) *time.Time {
	if value == "" {
		return nil
	}
	if n, err := strconv.ParseFloat(value, 64); err == nil {
		// Serial range guard keeps plain small/large numbers out.
		if n > 59 && n < 60000 {
			if t, err := excelize.ExcelDateToTime(n, false); err == nil {
				day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
				return &day
			}
		}
		return nil
	}
	for _, layout := range []string{"02-01-2006", "02/01/2006", "2006-01-02", "01-02-06", "Jan 2, 2006"} {
		if t, err := time.Parse(layout, value); err == nil {
			return &t
		}
	}
	return nil
}

func (s *ImportService) applyEmployees(ctx context.Context, rows []importRow, result *ImportResult) error {
	for _, row := range rows {
		user, err := s.ensureUser(ctx, row)
		if err != nil {
			return err
		}
		if user != nil {
			result.UsersCreated++
		}

		existing, err := s.employees.FindByCode(ctx, row.empCode)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			employee := rowToEmployee(row)
			if user != nil {
				employee.UserID = &user.ID
			} else if u, err := s.users.FindByEmpCode(ctx, row.empCode); err == nil {
				employee.UserID = &u.ID
			}
			if err := s.employees.Create(ctx, employee); err != nil {
				return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create employee")
			}
			result.Created++
		case err != nil:
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to look up employee")
		default:
			merged := rowToEmployee(row)
			merged.ID = existing.ID
			merged.UserID = existing.UserID
			if merged.UserID == nil && user != nil {
				merged.UserID = &user.ID
			}
			if err := s.employees.Update(ctx, merged); err != nil {
				return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update employee")
			}
			result.Updated++
		}
	}
	return nil
}

func rowToEmployee(row importRow) *models.Employee {
	employee := &models.Employee{
		EmpCode: row.empCode,
		Name:    row.name,
	}
	if row.email != "" {
		employee.Email = &row.email
	}
	if row.department != "" {
		employee.Department = &row.department
	}
	if row.designation != "" {
		employee.Designation = &row.designation
	}
	if row.location != "" {
		employee.Location = &row.location
	}
	if row.managerCode != "" {
		employee.ManagerEmpCode = &row.managerCode
	}
	if row.managerName != "" {
		employee.ManagerNameCached = &row.managerName
	}
	employee.DateOfJoin = row.dateOfJoin
	employee.DateOfBirth = row.dateOfBirth
	return employee
}

// ensureUser creates the account for a row if none exists yet. Returns the
// new user, or nil when one already existed.
func (s *ImportService) ensureUser(ctx context.Context, row importRow) (*models.User, error) {
	_, err := s.users.FindByEmpCode(ctx, row.empCode)
	if err == nil {
		return nil, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to look up user")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(initialPassword(row)), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}

	role := models.RoleEmployee
	if row.empCode == s.adminEmpCode {
		role = models.RoleAdmin
	}
	user := &models.User{
		EmpCode:            row.empCode,
		DisplayName:        row.name,
		PasswordHash:       string(hash),
		Role:               role,
		MustChangePassword: true,
		Active:             true,
	}
	if row.email != "" {
		user.Email = &row.email
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create user")
	}
	return user, nil
}

// initialPassword derives the first-login password from the row: the
// uppercased first initial of the name (falling back to the emp code's first
// character, then 'A') followed by the birth date as ddMMyyyy, falling back
// to the joining date and finally 1990-01-01. Users must change it at first
// login.
func initialPassword(row importRow) string {
	initial := "A"
	if row.name != "" {
		r, _ := utf8.DecodeRuneInString(row.name)
		initial = strings.ToUpper(string(r))
	} else if row.empCode != "" {
		r, _ := utf8.DecodeRuneInString(row.empCode)
		initial = strings.ToUpper(string(r))
	}

	date := time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC)
	if row.dateOfBirth != nil {
		date = *row.dateOfBirth
	} else if row.dateOfJoin != nil {
		date = *row.dateOfJoin
	}
	return initial + date.Format("02012006")
}

// linkManagers is pass two: resolve manager codes to employee ids. A code
// that resolves nowhere leaves the weak fallback fields as the only link.
func (s *ImportService) linkManagers(ctx context.Context, rows []importRow, result *ImportResult) error {
	all, err := s.employees.ListAll(ctx)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list employees")
	}
	byCode := make(map[string]models.Employee, len(all))
	for _, e := range all {
		byCode[e.EmpCode] = e
	}

	for _, row := range rows {
		if row.managerCode == "" {
			continue
		}
		employee, ok := byCode[row.empCode]
		if !ok {
			continue
		}
		manager, ok := byCode[row.managerCode]
		if !ok || manager.ID == employee.ID {
			result.WeakOnly++
			continue
		}
		if err := s.employees.SetManager(ctx, employee.ID, &manager.ID); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to link manager")
		}
		result.StrongLinks++
	}
	return nil
}

func (s *ImportService) auditImport(ctx context.Context, actor models.AuthorityContext, result *ImportResult) {
	summary := fmt.Sprintf("created=%d updated=%d strong=%d", result.Created, result.Updated, result.StrongLinks)
	entry := &models.AuditLog{
		UserID:   actor.Employee.UserID,
		Action:   models.AuditActionImport,
		Resource: "employee_import",
		NewValues: []byte(fmt.Sprintf(`{"summary":%q}`, summary)),
	}
	if err := s.users.CreateAuditLog(ctx, entry); err != nil {
		s.logger.Warn("audit log write failed", zap.Error(err))
	}
}
