package dto

import "github.com/hayat-interiors/appraisal-api/internal/models"

// ReportRequest captures POST /reports/generate payload.
type ReportRequest struct {
	Type       models.ReportType   `json:"type"`
	CycleID    int64               `json:"cycleId"`
	FormID     *int64              `json:"formId,omitempty"`
	Department *string             `json:"department,omitempty"`
	Format     models.ReportFormat `json:"format"`
}

// ReportJobResponse is returned after enqueueing a report.
type ReportJobResponse struct {
	ID       string              `json:"id"`
	Status   models.ReportStatus `json:"status"`
	Progress int                 `json:"progress"`
}

// ReportStatusResponse exposes job progress metadata.
type ReportStatusResponse struct {
	ID        string              `json:"id"`
	Status    models.ReportStatus `json:"status"`
	Progress  int                 `json:"progress"`
	ResultURL *string             `json:"resultUrl,omitempty"`
	Error     *string             `json:"error,omitempty"`
}

// CycleSummaryResponse groups a cycle's forms by department into review buckets.
type CycleSummaryResponse struct {
	CycleID     int64               `json:"cycleId"`
	CycleName   string              `json:"cycleName"`
	Departments []DepartmentSummary `json:"departments"`
}

// DepartmentSummary is one department's awaiting/approved split.
type DepartmentSummary struct {
	Department string             `json:"department"`
	Awaiting   []FormSummaryEntry `json:"awaiting"`
	Approved   []FormSummaryEntry `json:"approved"`
}

// FormSummaryEntry is one form line in the summary listing.
type FormSummaryEntry struct {
	FormID     int64             `json:"formId"`
	EmpCode    string            `json:"empCode"`
	EmpName    string            `json:"empName"`
	Status     models.FormStatus `json:"status"`
	FinalScore *string           `json:"finalScore,omitempty"`
}
