package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/hayat-interiors/appraisal-api/internal/dto"
	appErrors "github.com/hayat-interiors/appraisal-api/pkg/errors"
)

type fakeDashboardSrv struct {
	overviewResp *dto.DashboardOverviewResponse
	overviewErr  error
	overviewHit  bool
	cycleResp    *dto.CycleDashboardResponse
	cycleErr     error
	cycleHit     bool
	lastCycleID  int64
}

func (f *fakeDashboardSrv) Overview(context.Context) (*dto.DashboardOverviewResponse, bool, error) {
	return f.overviewResp, f.overviewHit, f.overviewErr
}

func (f *fakeDashboardSrv) Cycle(_ context.Context, cycleID int64) (*dto.CycleDashboardResponse, bool, error) {
	f.lastCycleID = cycleID
	return f.cycleResp, f.cycleHit, f.cycleErr
}

func TestDashboardHandlerOverviewSuccess(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewDashboardHandler(&fakeDashboardSrv{
		overviewResp: &dto.DashboardOverviewResponse{
			Cycles: []dto.CycleProgressEntry{{CycleID: 1, CycleName: "FY26 Mid-Year", Total: 3}},
		},
		overviewHit: true,
	})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/dashboard", nil)

	handler.Overview(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	var envelope responseEnvelope
	_ = json.Unmarshal(rec.Body.Bytes(), &envelope)
	assert.Equal(t, true, envelope.Meta["cache_hit"])
	assert.NotNil(t, envelope.Meta["processing_time_ms"])
}

func TestDashboardHandlerCycleSuccess(t *testing.T) {
	gin.SetMode(gin.TestMode)
	srv := &fakeDashboardSrv{
		cycleResp: &dto.CycleDashboardResponse{CycleID: 7},
	}
	handler := NewDashboardHandler(srv)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/dashboard/cycles/7", nil)
	c.Params = gin.Params{{Key: "id", Value: "7"}}

	handler.Cycle(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(7), srv.lastCycleID)
}

func TestDashboardHandlerCycleInvalidID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewDashboardHandler(&fakeDashboardSrv{})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/dashboard/cycles/abc", nil)
	c.Params = gin.Params{{Key: "id", Value: "abc"}}

	handler.Cycle(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDashboardHandlerCycleNotFound(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewDashboardHandler(&fakeDashboardSrv{
		cycleErr: appErrors.Clone(appErrors.ErrNotFound, "cycle not found"),
	})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/dashboard/cycles/42", nil)
	c.Params = gin.Params{{Key: "id", Value: "42"}}

	handler.Cycle(c)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

type responseEnvelope struct {
	Data map[string]interface{} `json:"data"`
	Meta map[string]interface{} `json:"meta"`
}
