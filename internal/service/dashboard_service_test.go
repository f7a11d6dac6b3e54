package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hayat-interiors/appraisal-api/internal/models"
	appErrors "github.com/hayat-interiors/appraisal-api/pkg/errors"
)

type memCacheRepo struct {
	entries map[string][]byte
}

func newMemCacheRepo() *memCacheRepo {
	return &memCacheRepo{entries: map[string][]byte{}}
}

func (r *memCacheRepo) Get(ctx context.Context, key string, dest interface{}) error {
	raw, ok := r.entries[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (r *memCacheRepo) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	r.entries[key] = raw
	return nil
}

func (r *memCacheRepo) DeleteByPattern(ctx context.Context, pattern string) error {
	prefix := strings.TrimSuffix(pattern, "*")
	for key := range r.entries {
		if strings.HasPrefix(key, prefix) {
			delete(r.entries, key)
		}
	}
	return nil
}

func newDashboardFixture(t *testing.T, cacheRepo CacheRepository) (*DashboardService, *cycleReaderStub, *formReaderStub) {
	t.Helper()
	cycles := newCycleReaderStub()
	cycles.cycles[1] = &models.AppraisalCycle{ID: 1, Name: "FY26 Mid-Year", Status: models.CycleOpen}
	cycles.progress = []models.CycleProgress{
		{CycleID: 1, CycleName: "FY26 Mid-Year", Total: 3, Submitted: 1, MgrReviewed: 0, HRReviewed: 0, Completed: 2},
	}
	forms := newFormReaderStub()
	forms.byCycle[1] = []models.FormDetail{
		cycleDetail(1, "101", "Aisha Rahman", "Design", models.StatusApproved, decPtr("82.4")),
		cycleDetail(2, "102", "Bilal Khan", "Design", models.StatusSubmitted, nil),
		cycleDetail(3, "103", "Chandra Nair", "Projects", models.StatusFinalized, decPtr("91")),
	}
	var cache *CacheService
	if cacheRepo != nil {
		cache = NewCacheService(cacheRepo, nil, time.Minute, zap.NewNop(), true)
	}
	svc := NewDashboardService(cycles, forms, cache, zap.NewNop(), DashboardServiceConfig{CacheTTL: time.Minute})
	return svc, cycles, forms
}

func TestDashboardOverview(t *testing.T) {
	svc, _, _ := newDashboardFixture(t, nil)

	overview, cached, err := svc.Overview(context.Background())
	require.NoError(t, err)
	assert.False(t, cached)
	require.Len(t, overview.Cycles, 1)

	entry := overview.Cycles[0]
	assert.Equal(t, int64(1), entry.CycleID)
	assert.Equal(t, 3, entry.Total)
	assert.Equal(t, 1, entry.Submitted)
	assert.Equal(t, 2, entry.Completed)
}

func TestDashboardOverviewServedFromCache(t *testing.T) {
	cacheRepo := newMemCacheRepo()
	svc, cycles, _ := newDashboardFixture(t, cacheRepo)

	_, cached, err := svc.Overview(context.Background())
	require.NoError(t, err)
	assert.False(t, cached)

	// Progress changes do not show through until the cache is invalidated.
	cycles.progress[0].Completed = 3
	overview, cached, err := svc.Overview(context.Background())
	require.NoError(t, err)
	assert.True(t, cached)
	assert.Equal(t, 2, overview.Cycles[0].Completed)

	svc.Invalidate(context.Background())
	overview, cached, err = svc.Overview(context.Background())
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Equal(t, 3, overview.Cycles[0].Completed)
}

func TestDashboardCycleBreakdown(t *testing.T) {
	svc, _, _ := newDashboardFixture(t, nil)

	summary, cached, err := svc.Cycle(context.Background(), 1)
	require.NoError(t, err)
	assert.False(t, cached)

	require.Len(t, summary.Departments, 2)
	assert.Equal(t, "Projects", summary.Departments[0].Department)
	assert.Equal(t, 100.0, summary.Departments[0].Rate)
	assert.Equal(t, "Design", summary.Departments[1].Department)
	assert.Equal(t, 50.0, summary.Departments[1].Rate)

	bands := map[string]int{}
	for _, band := range summary.ScoreBands {
		bands[band.Band] = band.Count
	}
	assert.Equal(t, 1, bands["Outstanding"])
	assert.Equal(t, 1, bands["Exceeds"])
	assert.Equal(t, 0, bands["Below"])

	assert.Equal(t, []string{"102"}, summary.Laggards)
}

func TestDashboardCycleUnknown(t *testing.T) {
	svc, _, _ := newDashboardFixture(t, nil)

	_, _, err := svc.Cycle(context.Background(), 42)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestDashboardLaggardsCapped(t *testing.T) {
	cycles := newCycleReaderStub()
	cycles.cycles[1] = &models.AppraisalCycle{ID: 1, Name: "FY26 Mid-Year", Status: models.CycleOpen}
	forms := newFormReaderStub()
	for i := int64(1); i <= 5; i++ {
		forms.byCycle[1] = append(forms.byCycle[1], cycleDetail(i, fmt.Sprintf("10%d", i), "Emp", "Design", models.StatusDraft, nil))
	}
	svc := NewDashboardService(cycles, forms, nil, zap.NewNop(), DashboardServiceConfig{LaggardsLimit: 2})

	summary, _, err := svc.Cycle(context.Background(), 1)
	require.NoError(t, err)
	assert.Len(t, summary.Laggards, 2)
}
