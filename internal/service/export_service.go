package service

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/hayat-interiors/appraisal-api/internal/models"
	"github.com/hayat-interiors/appraisal-api/pkg/export"
	"github.com/hayat-interiors/appraisal-api/pkg/storage"
)

type exportFormReader interface {
	FindDetail(ctx context.Context, id int64) (*models.FormDetail, error)
	ListDetailsByCycle(ctx context.Context, cycleID int64) ([]models.FormDetail, error)
	ListResponsibilities(ctx context.Context, formID int64) ([]models.Responsibility, error)
	ListKPIs(ctx context.Context, formID int64) ([]models.KPIItem, error)
	ListSoftSkills(ctx context.Context, formID int64) ([]models.SoftSkillRating, error)
}

type exportCycleReader interface {
	FindByID(ctx context.Context, id int64) (*models.AppraisalCycle, error)
}

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix string
	ResultTTL time.Duration
}

// ExportResult captures successful generation metadata.
type ExportResult struct {
	RelativePath string
	Token        string
	URL          string
	Format       models.ReportFormat
	ExpiresAt    time.Time
}

// ExportService builds report datasets and persists rendered files.
type ExportService struct {
	forms   exportFormReader
	cycles  exportCycleReader
	storage fileStorage
	csv     csvRenderer
	pdf     pdfRenderer
	signer  *storage.SignedURLSigner
	logger  *zap.Logger
	cfg     ExportConfig
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// NewExportService constructs an ExportService.
func NewExportService(forms exportFormReader, cycles exportCycleReader, storage fileStorage, signer *storage.SignedURLSigner, cfg ExportConfig, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{
		forms:   forms,
		cycles:  cycles,
		storage: storage,
		csv:     csv,
		pdf:     pdf,
		signer:  signer,
		logger:  logger,
		cfg:     cfg,
	}
}

// Generate builds dataset according to job definition and stores the rendered export.
func (s *ExportService) Generate(ctx context.Context, job *models.ReportJob) (*ExportResult, error) {
	if job == nil {
		return nil, fmt.Errorf("job nil")
	}
	dataset, title, err := s.buildDataset(ctx, job)
	if err != nil {
		return nil, err
	}

	var payload []byte
	switch job.Params.Format {
	case models.ReportFormatCSV:
		payload, err = s.csv.Render(dataset)
	case models.ReportFormatPDF:
		payload, err = s.pdf.Render(dataset, title)
	default:
		err = fmt.Errorf("unsupported format %s", job.Params.Format)
	}
	if err != nil {
		return nil, err
	}

	filename := s.buildFilename(job)
	relPath, err := s.storage.Save(filename, payload)
	if err != nil {
		return nil, err
	}

	token, expiresAt, err := s.signer.Generate(job.ID, relPath)
	if err != nil {
		return nil, err
	}
	signedURL := strings.TrimRight(s.cfg.APIPrefix, "/")
	if signedURL == "" {
		signedURL = "/api/v1"
	}
	signedURL = fmt.Sprintf("%s/export/%s", signedURL, token)

	return &ExportResult{
		RelativePath: relPath,
		Token:        token,
		URL:          signedURL,
		Format:       job.Params.Format,
		ExpiresAt:    expiresAt,
	}, nil
}

// ParseToken validates download token metadata.
func (s *ExportService) ParseToken(token string, allowExpired bool) (jobID, relPath string, expiresAt time.Time, err error) {
	return s.signer.Parse(token, allowExpired)
}

// Open returns a handle to the stored file.
func (s *ExportService) Open(relPath string) (*os.File, error) {
	return s.storage.Open(relPath)
}

// Delete removes a stored export file.
func (s *ExportService) Delete(relPath string) error {
	return s.storage.Delete(relPath)
}

// Cleanup removes files older than ttl (defaults to configured ResultTTL when ttl <= 0).
func (s *ExportService) Cleanup(ttl time.Duration) ([]string, error) {
	if ttl <= 0 {
		ttl = s.cfg.ResultTTL
	}
	return s.storage.CleanupOlderThan(ttl)
}

func (s *ExportService) buildFilename(job *models.ReportJob) string {
	timestamp := time.Now().UTC().Format("20060102_150405")
	scope := fmt.Sprintf("cycle%d", job.Params.CycleID)
	if job.Type == models.ReportTypeForm && job.Params.FormID != nil {
		scope = fmt.Sprintf("form%d", *job.Params.FormID)
	}
	return fmt.Sprintf("%s_%s_%s.%s", strings.ToLower(string(job.Type)), scope, timestamp, job.Params.Format)
}

func (s *ExportService) buildDataset(ctx context.Context, job *models.ReportJob) (export.Dataset, string, error) {
	switch job.Type {
	case models.ReportTypeSummary:
		return s.buildSummaryDataset(ctx, job.Params)
	case models.ReportTypeScores:
		return s.buildScoresDataset(ctx, job.Params)
	case models.ReportTypeForm:
		return s.buildFormDataset(ctx, job.Params)
	default:
		return export.Dataset{}, "", fmt.Errorf("unsupported report type %s", job.Type)
	}
}

// buildSummaryDataset rolls a cycle up per department: how many forms exist,
// how many still await review, how many were approved, and the mean final score.
func (s *ExportService) buildSummaryDataset(ctx context.Context, params models.ReportJobParams) (export.Dataset, string, error) {
	cycle, err := s.cycles.FindByID(ctx, params.CycleID)
	if err != nil {
		return export.Dataset{}, "", err
	}
	details, err := s.forms.ListDetailsByCycle(ctx, params.CycleID)
	if err != nil {
		return export.Dataset{}, "", err
	}
	details = filterByDepartment(details, params.Department)

	type deptAcc struct {
		total, awaiting, approved int
		finalSum                  decimal.Decimal
		finalCount                int64
	}
	acc := map[string]*deptAcc{}
	order := []string{}
	for _, detail := range details {
		dept := departmentOf(detail)
		entry, ok := acc[dept]
		if !ok {
			entry = &deptAcc{}
			acc[dept] = entry
			order = append(order, dept)
		}
		entry.total++
		if formApproved(detail.Status) {
			entry.approved++
		} else {
			entry.awaiting++
		}
		if detail.FinalScore != nil {
			entry.finalSum = entry.finalSum.Add(*detail.FinalScore)
			entry.finalCount++
		}
	}

	rows := make([]map[string]string, 0, len(order))
	for _, dept := range order {
		entry := acc[dept]
		avg := ""
		if entry.finalCount > 0 {
			avg = entry.finalSum.Div(decimal.NewFromInt(entry.finalCount)).Round(2).String()
		}
		rows = append(rows, map[string]string{
			"Department":    dept,
			"Total Forms":   strconv.Itoa(entry.total),
			"Awaiting":      strconv.Itoa(entry.awaiting),
			"Approved":      strconv.Itoa(entry.approved),
			"Average Final": avg,
		})
	}
	dataset := export.Dataset{
		Headers: []string{"Department", "Total Forms", "Awaiting", "Approved", "Average Final"},
		Rows:    rows,
	}
	title := fmt.Sprintf("Appraisal Summary %s", cycle.Name)
	return dataset, title, nil
}

func (s *ExportService) buildScoresDataset(ctx context.Context, params models.ReportJobParams) (export.Dataset, string, error) {
	cycle, err := s.cycles.FindByID(ctx, params.CycleID)
	if err != nil {
		return export.Dataset{}, "", err
	}
	details, err := s.forms.ListDetailsByCycle(ctx, params.CycleID)
	if err != nil {
		return export.Dataset{}, "", err
	}
	details = filterByDepartment(details, params.Department)

	rows := make([]map[string]string, 0, len(details))
	for _, detail := range details {
		rows = append(rows, map[string]string{
			"Emp Code":      detail.EmpCode,
			"Name":          detail.EmpName,
			"Department":    departmentOf(detail),
			"Status":        string(detail.Status),
			"Manager Score": formatScore(detail.ManagerScore),
			"Final Score":   formatScore(detail.FinalScore),
		})
	}
	dataset := export.Dataset{
		Headers: []string{"Emp Code", "Name", "Department", "Status", "Manager Score", "Final Score"},
		Rows:    rows,
	}
	title := fmt.Sprintf("Appraisal Scores %s", cycle.Name)
	return dataset, title, nil
}

// buildFormDataset flattens one form into section rows so the same renderer
// serves both paper formats. The weighted breakdown is recomputed from the
// stored rows rather than read back from the form.
func (s *ExportService) buildFormDataset(ctx context.Context, params models.ReportJobParams) (export.Dataset, string, error) {
	if params.FormID == nil {
		return export.Dataset{}, "", fmt.Errorf("form report requires formId")
	}
	detail, err := s.forms.FindDetail(ctx, *params.FormID)
	if err != nil {
		return export.Dataset{}, "", err
	}
	responsibilities, err := s.forms.ListResponsibilities(ctx, detail.ID)
	if err != nil {
		return export.Dataset{}, "", err
	}
	kpis, err := s.forms.ListKPIs(ctx, detail.ID)
	if err != nil {
		return export.Dataset{}, "", err
	}
	softSkills, err := s.forms.ListSoftSkills(ctx, detail.ID)
	if err != nil {
		return export.Dataset{}, "", err
	}

	rows := []map[string]string{
		formRow("Employee", "Code", detail.EmpCode),
		formRow("Employee", "Name", detail.EmpName),
		formRow("Employee", "Department", departmentOf(*detail)),
		formRow("Employee", "Cycle", detail.CycleName),
		formRow("Employee", "Status", string(detail.Status)),
	}
	for _, resp := range responsibilities {
		rows = append(rows, formRow("Self Evaluation", resp.Title, fmt.Sprintf("%d%%", resp.AchievementPercent)))
	}
	for _, kpi := range kpis {
		rows = append(rows, formRow("KPIs", kpi.Description, strconv.Itoa(kpi.Score)))
	}
	for _, skill := range softSkills {
		rows = append(rows, formRow("Soft Skills", skill.Attribute, strconv.Itoa(skill.Score)))
	}
	if len(kpis) > 0 || len(softSkills) > 0 {
		breakdown := ComputeWeightedScore(kpis, softSkills)
		rows = append(rows,
			formRow("Scores", "KPI Component", breakdown.KPIWeighted.String()),
			formRow("Scores", "Soft Skill Component", breakdown.SoftWeighted.String()),
			formRow("Scores", "Final", breakdown.Final.String()),
		)
	}
	if detail.ManagerComments != nil && *detail.ManagerComments != "" {
		rows = append(rows, formRow("Comments", "Manager", *detail.ManagerComments))
	}
	if detail.HRComments != nil && *detail.HRComments != "" {
		rows = append(rows, formRow("Comments", "HR", *detail.HRComments))
	}
	if detail.CEOComments != nil && *detail.CEOComments != "" {
		rows = append(rows, formRow("Comments", "CEO", *detail.CEOComments))
	}

	dataset := export.Dataset{
		Headers: []string{"Section", "Item", "Value"},
		Rows:    rows,
	}
	title := fmt.Sprintf("Appraisal Form %s (%s)", detail.EmpName, detail.CycleName)
	return dataset, title, nil
}

func formRow(section, item, value string) map[string]string {
	return map[string]string{"Section": section, "Item": item, "Value": value}
}

func formApproved(status models.FormStatus) bool {
	return status == models.StatusApproved || status == models.StatusFinalized
}

func departmentOf(detail models.FormDetail) string {
	if detail.Department == nil || strings.TrimSpace(*detail.Department) == "" {
		return "Unassigned"
	}
	return strings.TrimSpace(*detail.Department)
}

func filterByDepartment(details []models.FormDetail, department *string) []models.FormDetail {
	if department == nil || strings.TrimSpace(*department) == "" {
		return details
	}
	want := strings.TrimSpace(*department)
	filtered := make([]models.FormDetail, 0, len(details))
	for _, detail := range details {
		if strings.EqualFold(departmentOf(detail), want) {
			filtered = append(filtered, detail)
		}
	}
	return filtered
}

func formatScore(score *decimal.Decimal) string {
	if score == nil {
		return ""
	}
	return score.String()
}
