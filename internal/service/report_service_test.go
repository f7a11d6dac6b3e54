package service

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hayat-interiors/appraisal-api/internal/dto"
	"github.com/hayat-interiors/appraisal-api/internal/models"
	"github.com/hayat-interiors/appraisal-api/internal/repository"
	appErrors "github.com/hayat-interiors/appraisal-api/pkg/errors"
	"github.com/hayat-interiors/appraisal-api/pkg/jobs"
)

type reportRepoStub struct {
	jobs map[string]*models.ReportJob
}

func newReportRepoStub() *reportRepoStub {
	return &reportRepoStub{jobs: map[string]*models.ReportJob{}}
}

func (r *reportRepoStub) Create(ctx context.Context, job *models.ReportJob) error {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	r.jobs[job.ID] = job
	return nil
}

func (r *reportRepoStub) GetByID(ctx context.Context, id string) (*models.ReportJob, error) {
	job, ok := r.jobs[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return job, nil
}

func (r *reportRepoStub) Update(ctx context.Context, id string, params repository.UpdateReportJobParams) error {
	job, ok := r.jobs[id]
	if !ok {
		return sql.ErrNoRows
	}
	if params.Status != nil {
		job.Status = *params.Status
	}
	if params.Progress != nil {
		job.Progress = *params.Progress
	}
	if params.ResultURL != nil {
		job.ResultURL = params.ResultURL
	}
	if params.ErrorMessage != nil {
		job.ErrorMessage = params.ErrorMessage
	}
	if params.FinishedAt != nil {
		job.FinishedAt = params.FinishedAt
	}
	return nil
}

func (r *reportRepoStub) ListQueued(ctx context.Context, limit int) ([]models.ReportJob, error) {
	var queued []models.ReportJob
	for _, job := range r.jobs {
		if job.Status == models.ReportStatusQueued {
			queued = append(queued, *job)
		}
	}
	return queued, nil
}

func (r *reportRepoStub) ListFinishedBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.ReportJob, error) {
	return nil, nil
}

type queueStub struct {
	jobs []jobs.Job
	err  error
}

func (q *queueStub) Enqueue(job jobs.Job) error {
	if q.err != nil {
		return q.err
	}
	q.jobs = append(q.jobs, job)
	return nil
}

func hrActor() models.AuthorityContext {
	userID := "hr-user"
	return models.AuthorityContext{
		Employee: models.Employee{ID: 88, EmpCode: "88", UserID: &userID},
		Role:     models.RoleEmployee,
		HR:       true,
	}
}

func newReportFixture(t *testing.T) (*ReportService, *reportRepoStub, *queueStub, *ExportService) {
	t.Helper()
	exportSvc, forms, cycles, _ := newExportFixture(t)
	repo := newReportRepoStub()
	queue := &queueStub{}
	svc := NewReportService(repo, forms, cycles, queue, exportSvc, zap.NewNop(), ReportServiceConfig{
		ResultTTL:       time.Hour,
		CleanupInterval: time.Hour,
		MaxRetries:      3,
	})
	return svc, repo, queue, exportSvc
}

func TestReportServiceCreateJob(t *testing.T) {
	svc, repo, queue, _ := newReportFixture(t)

	resp, err := svc.CreateJob(context.Background(), dto.ReportRequest{
		Type:    models.ReportTypeScores,
		CycleID: 1,
		Format:  models.ReportFormatCSV,
	}, hrActor())
	require.NoError(t, err)
	require.NotEmpty(t, resp.ID)
	require.Len(t, queue.jobs, 1)
	assert.Equal(t, models.ReportStatusQueued, resp.Status)
	assert.Contains(t, repo.jobs, resp.ID)
	assert.Equal(t, "hr-user", repo.jobs[resp.ID].CreatedBy)
}

func TestReportServiceCreateJobRequiresHR(t *testing.T) {
	svc, _, queue, _ := newReportFixture(t)

	_, err := svc.CreateJob(context.Background(), dto.ReportRequest{
		Type:    models.ReportTypeScores,
		CycleID: 1,
		Format:  models.ReportFormatCSV,
	}, ownerAuthority(10))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
	assert.Empty(t, queue.jobs)
}

func TestReportServiceCreateJobUnknownCycle(t *testing.T) {
	svc, _, _, _ := newReportFixture(t)

	_, err := svc.CreateJob(context.Background(), dto.ReportRequest{
		Type:    models.ReportTypeSummary,
		CycleID: 42,
		Format:  models.ReportFormatPDF,
	}, hrActor())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestReportServiceFormReportNeedsFormID(t *testing.T) {
	svc, _, _, _ := newReportFixture(t)

	_, err := svc.CreateJob(context.Background(), dto.ReportRequest{
		Type:    models.ReportTypeForm,
		CycleID: 1,
		Format:  models.ReportFormatPDF,
	}, hrActor())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestReportServiceGetStatusLimitedToCreator(t *testing.T) {
	svc, repo, _, _ := newReportFixture(t)
	job := &models.ReportJob{
		ID:        "job-1",
		Type:      models.ReportTypeScores,
		Params:    models.ReportJobParams{CycleID: 1, Format: models.ReportFormatCSV},
		Status:    models.ReportStatusFinished,
		Progress:  100,
		CreatedBy: "hr-user",
	}
	repo.jobs[job.ID] = job

	resp, err := svc.GetStatus(context.Background(), job.ID, hrActor())
	require.NoError(t, err)
	assert.Equal(t, job.Status, resp.Status)
	assert.Equal(t, job.Progress, resp.Progress)

	stranger := ownerAuthority(10)
	_, err = svc.GetStatus(context.Background(), job.ID, stranger)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestReportServiceSummaryBuckets(t *testing.T) {
	svc, _, _, _ := newReportFixture(t)

	summary, err := svc.Summary(context.Background(), 1, hrActor())
	require.NoError(t, err)
	assert.Equal(t, "FY26 Mid-Year", summary.CycleName)
	require.Len(t, summary.Departments, 2)

	design := summary.Departments[0]
	assert.Equal(t, "Design", design.Department)
	require.Len(t, design.Awaiting, 1)
	require.Len(t, design.Approved, 1)
	assert.Equal(t, "102", design.Awaiting[0].EmpCode)
	require.NotNil(t, design.Approved[0].FinalScore)
	assert.Equal(t, "82.4", *design.Approved[0].FinalScore)

	projects := summary.Departments[1]
	assert.Equal(t, "Projects", projects.Department)
	assert.Empty(t, projects.Awaiting)
	require.Len(t, projects.Approved, 1)
}

func TestReportServiceSummaryRequiresHR(t *testing.T) {
	svc, _, _, _ := newReportFixture(t)

	_, err := svc.Summary(context.Background(), 1, managerAuthority(20))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestReportServiceResolveDownload(t *testing.T) {
	svc, repo, _, exportSvc := newReportFixture(t)
	job := &models.ReportJob{
		ID:        "job-download",
		Type:      models.ReportTypeSummary,
		Params:    models.ReportJobParams{CycleID: 1, Format: models.ReportFormatCSV},
		Status:    models.ReportStatusFinished,
		Progress:  100,
		CreatedBy: "hr-user",
	}
	repo.jobs[job.ID] = job
	result, err := exportSvc.Generate(context.Background(), job)
	require.NoError(t, err)
	job.ResultURL = &result.URL
	now := time.Now()
	job.FinishedAt = &now

	download, err := svc.ResolveDownload(context.Background(), result.Token)
	require.NoError(t, err)
	assert.Equal(t, filepath.Base(result.RelativePath), download.Filename)
	download.File.Close()
}

type exportStub struct {
	result *ExportResult
	err    error
}

func (e exportStub) Generate(ctx context.Context, job *models.ReportJob) (*ExportResult, error) {
	if e.err != nil {
		return nil, e.err
	}
	return e.result, nil
}

func TestReportWorkerHandleSuccess(t *testing.T) {
	repo := &reportRepoStub{
		jobs: map[string]*models.ReportJob{
			"job-1": {
				ID:        "job-1",
				Type:      models.ReportTypeScores,
				Params:    models.ReportJobParams{CycleID: 1, Format: models.ReportFormatCSV},
				Status:    models.ReportStatusQueued,
				CreatedBy: "hr-user",
			},
		},
	}
	exporter := exportStub{result: &ExportResult{URL: "/api/v1/export/token"}}
	worker := NewReportWorker(repo, exporter, 3, zap.NewNop())

	err := worker.Handle(context.Background(), jobs.Job{ID: "job-1"})
	require.NoError(t, err)
	require.Equal(t, models.ReportStatusFinished, repo.jobs["job-1"].Status)
	require.Equal(t, 100, repo.jobs["job-1"].Progress)
}

func TestReportWorkerHandleFailureExhaustsRetries(t *testing.T) {
	repo := &reportRepoStub{
		jobs: map[string]*models.ReportJob{
			"job-1": {
				ID:        "job-1",
				Type:      models.ReportTypeScores,
				Params:    models.ReportJobParams{CycleID: 1, Format: models.ReportFormatCSV},
				Status:    models.ReportStatusQueued,
				CreatedBy: "hr-user",
			},
		},
	}
	exporter := exportStub{err: errors.New("boom")}
	worker := NewReportWorker(repo, exporter, 2, zap.NewNop())

	err := worker.Handle(context.Background(), jobs.Job{ID: "job-1", Attempt: 2})
	require.Error(t, err)
	require.Equal(t, models.ReportStatusFailed, repo.jobs["job-1"].Status)
}
