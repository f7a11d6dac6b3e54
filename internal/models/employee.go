package models

import "time"

// Employee represents one staff member eligible for appraisal.
type Employee struct {
	ID          int64      `db:"id" json:"id"`
	EmpCode     string     `db:"emp_code" json:"emp_code"`
	Name        string     `db:"name" json:"name"`
	Email       *string    `db:"email" json:"email,omitempty"`
	Department  *string    `db:"department" json:"department,omitempty"`
	Designation *string    `db:"designation" json:"designation,omitempty"`
	Location    *string    `db:"location" json:"location,omitempty"`
	DateOfJoin  *time.Time `db:"date_of_joining" json:"date_of_joining,omitempty"`
	DateOfBirth *time.Time `db:"date_of_birth" json:"date_of_birth,omitempty"`

	// ManagerID is the normalized link, preferred when resolvable.
	ManagerID *int64 `db:"manager_id" json:"manager_id,omitempty"`

	// Fallback fields populated at import time when the manager reference
	// could not be resolved to a row. Weak matching runs against these.
	ManagerEmpCode    *string `db:"manager_emp_code" json:"manager_emp_code,omitempty"`
	ManagerNameCached *string `db:"manager_name_cached" json:"manager_name_cached,omitempty"`

	UserID    *string   `db:"user_id" json:"user_id,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// EmployeeFilter captures filtering options for listing employees.
type EmployeeFilter struct {
	Search     string
	Department string
	Page       int
	PageSize   int
	SortBy     string
	SortOrder  string
}

// LinkProvenance records how a direct report was matched to its manager.
type LinkProvenance string

const (
	LinkStrong     LinkProvenance = "STRONG"
	LinkWeakByCode LinkProvenance = "WEAK_BY_CODE"
	LinkWeakByName LinkProvenance = "WEAK_BY_NAME"
	LinkWeakByBoth LinkProvenance = "WEAK_BY_BOTH"
)

// Weak reports true for any provenance other than the normalized FK link.
func (p LinkProvenance) Weak() bool {
	return p != LinkStrong
}

// DirectReport is one resolved manager→report edge with its provenance.
type DirectReport struct {
	Employee   Employee       `json:"employee"`
	Provenance LinkProvenance `json:"provenance"`
}

// ScopeType classifies an administrator-declared authority grant.
type ScopeType string

const (
	ScopeReportingManager ScopeType = "ReportingManager"
	ScopeGeneralManager   ScopeType = "GeneralManager"
)

// ManagerScope grants reviewer authority independent of hierarchy data.
// A GeneralManager scope additionally covers every form in its departments.
type ManagerScope struct {
	ID                int64     `db:"id" json:"id"`
	ManagerEmployeeID int64     `db:"manager_employee_id" json:"manager_employee_id"`
	ScopeType         ScopeType `db:"scope_type" json:"scope_type"`
	Notes             *string   `db:"notes" json:"notes,omitempty"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`

	Departments []ManagerScopeDepartment `db:"-" json:"departments,omitempty"`
}

// ManagerScopeDepartment names one department covered by a GeneralManager scope.
type ManagerScopeDepartment struct {
	ID             int64  `db:"id" json:"id"`
	ManagerScopeID int64  `db:"manager_scope_id" json:"manager_scope_id"`
	Department     string `db:"department" json:"department"`
}

// ManagerCheck is the diagnostic view of one employee's manager-likeness.
type ManagerCheck struct {
	Employee           Employee       `json:"employee"`
	DirectsStrong      []DirectReport `json:"directs_strong"`
	DirectsWeak        []DirectReport `json:"directs_weak"`
	GMDepartments      []string       `json:"gm_departments"`
	ByTeam             bool           `json:"by_team"`
	ByScope            bool           `json:"by_scope"`
	ByDepartment       bool           `json:"by_department"`
	IsReportingManager bool           `json:"is_reporting_manager"`
}
