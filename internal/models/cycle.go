package models

import "time"

// CycleStatus enumerates the lifecycle of an appraisal cycle.
type CycleStatus string

const (
	CycleOpen   CycleStatus = "Open"
	CycleClosed CycleStatus = "Closed"
)

// AppraisalCycle is a named time-boxed review period.
type AppraisalCycle struct {
	ID        int64       `db:"id" json:"id"`
	Name      string      `db:"name" json:"name"`
	Start     time.Time   `db:"start_date" json:"start_date"`
	End       time.Time   `db:"end_date" json:"end_date"`
	Status    CycleStatus `db:"status" json:"status"`
	CreatedAt time.Time   `db:"created_at" json:"created_at"`
}

// CycleProgress carries per-cycle form counts for the dashboard.
type CycleProgress struct {
	CycleID     int64  `db:"cycle_id" json:"cycle_id"`
	CycleName   string `db:"cycle_name" json:"cycle_name"`
	Total       int    `db:"total" json:"total"`
	Submitted   int    `db:"submitted" json:"submitted"`
	MgrReviewed int    `db:"mgr_reviewed" json:"mgr_reviewed"`
	HRReviewed  int    `db:"hr_reviewed" json:"hr_reviewed"`
	Completed   int    `db:"completed" json:"completed"`
}
