package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// FormStatus is the workflow state of one appraisal form.
type FormStatus string

const (
	StatusDraft       FormStatus = "Draft"
	StatusSubmitted   FormStatus = "Submitted"
	StatusMgrReviewed FormStatus = "MgrReviewed"
	StatusHRReviewed  FormStatus = "HRReviewed"
	StatusApproved    FormStatus = "Approved"
	// StatusFinalized is an administrator-only closure, not reachable
	// through the regular workflow transitions.
	StatusFinalized FormStatus = "Finalized"
)

// Form is one appraisal instance for (employee × cycle).
type Form struct {
	ID         int64      `db:"id" json:"id"`
	EmployeeID int64      `db:"employee_id" json:"employee_id"`
	CycleID    int64      `db:"cycle_id" json:"cycle_id"`
	Status     FormStatus `db:"status" json:"status"`

	EmployeeScore *decimal.Decimal `db:"employee_score" json:"employee_score,omitempty"`
	ManagerScore  *decimal.Decimal `db:"manager_score" json:"manager_score,omitempty"`
	FinalScore    *decimal.Decimal `db:"final_score" json:"final_score,omitempty"`

	SelfComments    *string `db:"self_comments" json:"self_comments,omitempty"`
	ManagerComments *string `db:"manager_comments" json:"manager_comments,omitempty"`
	HRComments      *string `db:"hr_comments" json:"hr_comments,omitempty"`
	CEOComments     *string `db:"ceo_comments" json:"ceo_comments,omitempty"`

	// RowVersion guards workflow mutations against lost updates.
	RowVersion int64 `db:"row_version" json:"row_version"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// FormDetail joins a form with its employee and cycle for list views.
type FormDetail struct {
	Form
	EmpCode    string  `db:"emp_code" json:"emp_code"`
	EmpName    string  `db:"emp_name" json:"emp_name"`
	Department *string `db:"department" json:"department,omitempty"`
	CycleName  string  `db:"cycle_name" json:"cycle_name"`
}

// Responsibility is one self-evaluation row, replaced as a batch on save.
type Responsibility struct {
	ID                 int64   `db:"id" json:"id"`
	FormID             int64   `db:"form_id" json:"form_id"`
	Title              string  `db:"title" json:"title"`
	Description        *string `db:"description" json:"description,omitempty"`
	AchievementPercent int     `db:"achievement_percent" json:"achievement_percent"`
}

// KPIItem is one manager-entered KPI row, score 0–100.
type KPIItem struct {
	ID                int64   `db:"id" json:"id"`
	FormID            int64   `db:"form_id" json:"form_id"`
	Description       string  `db:"description" json:"description"`
	ActualPerformance *string `db:"actual_performance" json:"actual_performance,omitempty"`
	Score             int     `db:"score" json:"score"`
}

// SoftSkillRating is one manager-entered attribute row, score 1–10. Rows are
// materialized once per form from the fixed catalog and only rescored after that.
type SoftSkillRating struct {
	ID           int64  `db:"id" json:"id"`
	FormID       int64  `db:"form_id" json:"form_id"`
	AttributeKey string `db:"attribute_key" json:"attribute_key"`
	Attribute    string `db:"attribute" json:"attribute"`
	Score        int    `db:"score" json:"score"`
}

// SoftSkillAttribute pairs a stable key with its display name.
type SoftSkillAttribute struct {
	Key  string `json:"key"`
	Name string `json:"name"`
}

// SoftSkillCatalog is the fixed ordered attribute set for every form.
// Keys are stable identifiers; the display name is presentation only.
var SoftSkillCatalog = []SoftSkillAttribute{
	{Key: "punctuality", Name: "Punctuality & Attendance"},
	{Key: "attitude", Name: "Attitude & Professionalism"},
	{Key: "time_management", Name: "Time Management"},
	{Key: "communication", Name: "Communication Skills"},
	{Key: "collaboration", Name: "Team Collaboration"},
	{Key: "adaptability", Name: "Adaptability & Flexibility"},
	{Key: "initiative", Name: "Initiative & Proactiveness"},
	{Key: "problem_solving", Name: "Problem-Solving Ability"},
	{Key: "accountability", Name: "Accountability & Ownership"},
	{Key: "company_values", Name: "Compliance with Company Values"},
}

// DefaultSoftSkillScore is assigned when attribute rows are first materialized.
const DefaultSoftSkillScore = 5

// KPIRowCount is the fixed number of KPI input rows presented to a manager.
const KPIRowCount = 5
