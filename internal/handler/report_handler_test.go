package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/hayat-interiors/appraisal-api/internal/dto"
	"github.com/hayat-interiors/appraisal-api/internal/middleware"
	"github.com/hayat-interiors/appraisal-api/internal/models"
	"github.com/hayat-interiors/appraisal-api/internal/service"
)

type reportServiceMock struct {
	createResp  *dto.ReportJobResponse
	createErr   error
	statusResp  *dto.ReportStatusResponse
	statusErr   error
	summaryResp *dto.CycleSummaryResponse
	summaryErr  error
	download    *service.ReportDownload
	downloadErr error
}

func (m *reportServiceMock) CreateJob(ctx context.Context, req dto.ReportRequest, actor models.AuthorityContext) (*dto.ReportJobResponse, error) {
	return m.createResp, m.createErr
}

func (m *reportServiceMock) GetStatus(ctx context.Context, id string, actor models.AuthorityContext) (*dto.ReportStatusResponse, error) {
	return m.statusResp, m.statusErr
}

func (m *reportServiceMock) Summary(ctx context.Context, cycleID int64, actor models.AuthorityContext) (*dto.CycleSummaryResponse, error) {
	return m.summaryResp, m.summaryErr
}

func (m *reportServiceMock) ResolveDownload(ctx context.Context, token string) (*service.ReportDownload, error) {
	return m.download, m.downloadErr
}

func newGinContext(method, path string, body []byte) (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	return c, w
}

func hrAuthority() models.AuthorityContext {
	return models.AuthorityContext{
		Employee: models.Employee{ID: 88, EmpCode: "88"},
		Role:     models.RoleEmployee,
		HR:       true,
	}
}

func TestReportHandlerGenerate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &reportServiceMock{
		createResp: &dto.ReportJobResponse{ID: "job-1", Status: models.ReportStatusQueued, Progress: 0},
	}
	h := NewReportHandler(mockSvc)

	payload, _ := json.Marshal(dto.ReportRequest{Type: models.ReportTypeSummary, CycleID: 1, Format: models.ReportFormatCSV})
	c, w := newGinContext(http.MethodPost, "/reports", payload)
	c.Set(middleware.ContextAuthorityKey, hrAuthority())

	h.Generate(c)
	require.Equal(t, http.StatusAccepted, w.Code)
}

func TestReportHandlerGenerateNoAuthority(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewReportHandler(&reportServiceMock{})

	payload, _ := json.Marshal(dto.ReportRequest{Type: models.ReportTypeSummary, CycleID: 1, Format: models.ReportFormatCSV})
	c, w := newGinContext(http.MethodPost, "/reports", payload)

	h.Generate(c)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestReportHandlerStatus(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &reportServiceMock{
		statusResp: &dto.ReportStatusResponse{ID: "job-1", Status: models.ReportStatusFinished, Progress: 100},
	}
	h := NewReportHandler(mockSvc)

	c, w := newGinContext(http.MethodGet, "/reports/job-1", nil)
	c.Params = gin.Params{{Key: "id", Value: "job-1"}}
	c.Set(middleware.ContextAuthorityKey, hrAuthority())

	h.Status(c)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestReportHandlerSummary(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &reportServiceMock{
		summaryResp: &dto.CycleSummaryResponse{CycleID: 1, CycleName: "FY26 Mid-Year"},
	}
	h := NewReportHandler(mockSvc)

	c, w := newGinContext(http.MethodGet, "/reports/cycles/1/summary", nil)
	c.Params = gin.Params{{Key: "id", Value: "1"}}
	c.Set(middleware.ContextAuthorityKey, hrAuthority())

	h.Summary(c)
	require.Equal(t, http.StatusOK, w.Code)

	var envelope struct {
		Data dto.CycleSummaryResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.Equal(t, "FY26 Mid-Year", envelope.Data.CycleName)
}

func TestReportHandlerDownload(t *testing.T) {
	gin.SetMode(gin.TestMode)
	file, err := os.CreateTemp("", "report*.csv")
	require.NoError(t, err)
	defer os.Remove(file.Name())
	_, _ = file.WriteString("Department,Total Forms\nDesign,2\n")
	_, _ = file.Seek(0, 0)

	mockSvc := &reportServiceMock{
		download: &service.ReportDownload{
			File:      file,
			Filename:  "summary_cycle1.csv",
			Format:    models.ReportFormatCSV,
			ExpiresAt: time.Now().Add(time.Hour),
		},
	}
	h := NewReportHandler(mockSvc)

	c, w := newGinContext(http.MethodGet, "/export/tok", nil)
	c.Params = gin.Params{{Key: "token", Value: "tok"}}

	h.Download(c)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Header().Get("Content-Disposition"), "summary_cycle1.csv")
	require.Contains(t, w.Body.String(), "Design,2")
}
