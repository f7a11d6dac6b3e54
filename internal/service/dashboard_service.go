package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/hayat-interiors/appraisal-api/internal/dto"
	"github.com/hayat-interiors/appraisal-api/internal/models"
	appErrors "github.com/hayat-interiors/appraisal-api/pkg/errors"
)

type cycleProgressReader interface {
	Progress(ctx context.Context) ([]models.CycleProgress, error)
	FindByID(ctx context.Context, id int64) (*models.AppraisalCycle, error)
}

type dashboardFormReader interface {
	ListDetailsByCycle(ctx context.Context, cycleID int64) ([]models.FormDetail, error)
}

// DashboardServiceConfig tunes dashboard behaviour.
type DashboardServiceConfig struct {
	CacheTTL      time.Duration
	LaggardsLimit int
}

// DashboardService composes cached workflow progress payloads.
type DashboardService struct {
	cycles cycleProgressReader
	forms  dashboardFormReader
	cache  *CacheService
	logger *zap.Logger
	cfg    DashboardServiceConfig
}

// NewDashboardService constructs a DashboardService with sane defaults.
func NewDashboardService(cycles cycleProgressReader, forms dashboardFormReader, cache *CacheService, logger *zap.Logger, cfg DashboardServiceConfig) *DashboardService {
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 5 * time.Minute
	}
	if cfg.LaggardsLimit <= 0 {
		cfg.LaggardsLimit = 10
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DashboardService{
		cycles: cycles,
		forms:  forms,
		cache:  cache,
		logger: logger,
		cfg:    cfg,
	}
}

// Overview returns per-cycle progress counts and indicates cache utilisation.
func (s *DashboardService) Overview(ctx context.Context) (*dto.DashboardOverviewResponse, bool, error) {
	const cacheKey = "dash:overview"
	if s.cache != nil {
		var cached dto.DashboardOverviewResponse
		hit, err := s.cache.Get(ctx, cacheKey, &cached)
		if err != nil {
			return nil, false, err
		}
		if hit {
			return &cached, true, nil
		}
	}

	progress, err := s.cycles.Progress(ctx)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load cycle progress")
	}
	summary := &dto.DashboardOverviewResponse{
		Cycles: make([]dto.CycleProgressEntry, 0, len(progress)),
	}
	for _, row := range progress {
		summary.Cycles = append(summary.Cycles, dto.CycleProgressEntry{
			CycleID:     row.CycleID,
			CycleName:   row.CycleName,
			Total:       row.Total,
			Submitted:   row.Submitted,
			MgrReviewed: row.MgrReviewed,
			HRReviewed:  row.HRReviewed,
			Completed:   row.Completed,
		})
	}
	s.persistCache(ctx, cacheKey, summary)
	return summary, false, nil
}

// Cycle breaks one cycle down by department completion and score bands.
func (s *DashboardService) Cycle(ctx context.Context, cycleID int64) (*dto.CycleDashboardResponse, bool, error) {
	cacheKey := fmt.Sprintf("dash:cycle:%d", cycleID)
	if s.cache != nil {
		var cached dto.CycleDashboardResponse
		hit, err := s.cache.Get(ctx, cacheKey, &cached)
		if err != nil {
			return nil, false, err
		}
		if hit {
			return &cached, true, nil
		}
	}

	if _, err := s.cycles.FindByID(ctx, cycleID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, appErrors.Clone(appErrors.ErrNotFound, "cycle not found")
		}
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load cycle")
	}
	details, err := s.forms.ListDetailsByCycle(ctx, cycleID)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load cycle forms")
	}

	summary := &dto.CycleDashboardResponse{
		CycleID:     cycleID,
		Departments: s.buildDepartmentCompletion(details),
		ScoreBands:  s.buildScoreBands(details),
		Laggards:    s.buildLaggards(details),
	}
	s.persistCache(ctx, cacheKey, summary)
	return summary, false, nil
}

// Invalidate drops every cached dashboard payload. Workflow transitions call
// this so progress counts never serve stale state for the full TTL.
func (s *DashboardService) Invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, "dash:*"); err != nil {
		s.logger.Warn("dashboard cache invalidation failed", zap.Error(err))
	}
}

func (s *DashboardService) persistCache(ctx context.Context, key string, value interface{}) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, key, value, s.cfg.CacheTTL); err != nil {
		s.logger.Warn("dashboard cache write failed", zap.String("key", key), zap.Error(err))
	}
}

func (s *DashboardService) buildDepartmentCompletion(details []models.FormDetail) []dto.DepartmentCompletion {
	type deptAcc struct {
		total, completed int
	}
	acc := map[string]*deptAcc{}
	for _, detail := range details {
		dept := departmentOf(detail)
		entry, ok := acc[dept]
		if !ok {
			entry = &deptAcc{}
			acc[dept] = entry
		}
		entry.total++
		if formApproved(detail.Status) {
			entry.completed++
		}
	}
	departments := make([]dto.DepartmentCompletion, 0, len(acc))
	for dept, entry := range acc {
		rate := 0.0
		if entry.total > 0 {
			rate = float64(entry.completed) / float64(entry.total) * 100
		}
		departments = append(departments, dto.DepartmentCompletion{
			Department: dept,
			Total:      entry.total,
			Completed:  entry.completed,
			Rate:       rate,
		})
	}
	sort.Slice(departments, func(i, j int) bool {
		if departments[i].Rate == departments[j].Rate {
			return departments[i].Department < departments[j].Department
		}
		return departments[i].Rate > departments[j].Rate
	})
	return departments
}

func (s *DashboardService) buildScoreBands(details []models.FormDetail) []dto.ScoreBandBin {
	counts := map[string]int{}
	for _, detail := range details {
		if detail.FinalScore == nil {
			continue
		}
		score, _ := detail.FinalScore.Float64()
		counts[scoreBand(score)]++
	}
	bands := make([]dto.ScoreBandBin, 0, len(scoreBandOrder))
	for _, band := range scoreBandOrder {
		bands = append(bands, dto.ScoreBandBin{Band: band, Count: counts[band]})
	}
	return bands
}

// buildLaggards lists emp codes whose forms have not yet reached manager
// review, capped so the payload stays dashboard-sized.
func (s *DashboardService) buildLaggards(details []models.FormDetail) []string {
	var laggards []string
	for _, detail := range details {
		if detail.Status != models.StatusDraft && detail.Status != models.StatusSubmitted {
			continue
		}
		laggards = append(laggards, detail.EmpCode)
		if len(laggards) >= s.cfg.LaggardsLimit {
			break
		}
	}
	return laggards
}

var scoreBandOrder = []string{"Outstanding", "Exceeds", "Meets", "Below"}

func scoreBand(score float64) string {
	switch {
	case score >= 90:
		return "Outstanding"
	case score >= 75:
		return "Exceeds"
	case score >= 60:
		return "Meets"
	default:
		return "Below"
	}
}
