package service

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/hayat-interiors/appraisal-api/internal/models"
)

func intPtr(v int) *int { return &v }

func kpiRows(scores ...int) []models.KPIItem {
	rows := make([]models.KPIItem, len(scores))
	for i, s := range scores {
		rows[i] = models.KPIItem{Description: "kpi", Score: s}
	}
	return rows
}

func softRows(scores ...int) []models.SoftSkillRating {
	rows := make([]models.SoftSkillRating, len(scores))
	for i, s := range scores {
		rows[i] = models.SoftSkillRating{AttributeKey: "attr", Score: s}
	}
	return rows
}

func TestComputeWeightedScore_ReferenceCase(t *testing.T) {
	// KPIs 80/90/100 average to 90; ten soft skills at 5 map to 50%.
	// 90*0.70 + 50*0.30 = 63.00 + 15.00 = 78.00.
	got := ComputeWeightedScore(
		kpiRows(80, 90, 100),
		softRows(5, 5, 5, 5, 5, 5, 5, 5, 5, 5),
	)
	assert.Equal(t, "90", got.KPIPercent.String())
	assert.Equal(t, "50", got.SoftPercent.String())
	assert.Equal(t, "63", got.KPIWeighted.String())
	assert.Equal(t, "15", got.SoftWeighted.String())
	assert.Equal(t, "78", got.Final.String())
}

func TestComputeWeightedScore_ClampsOutOfRange(t *testing.T) {
	got := ComputeWeightedScore(kpiRows(150, -20), softRows(12, 0))
	// KPIs clamp to 100 and 0, mean 50. Soft clamps to 10 and 1, mean 5.5,
	// percent 55.
	assert.Equal(t, "50", got.KPIPercent.String())
	assert.Equal(t, "55", got.SoftPercent.String())
}

func TestComputeWeightedScore_RoundsHalfAwayFromZero(t *testing.T) {
	// KPI mean 92.5 rounds up to 93 before weighting.
	got := ComputeWeightedScore(kpiRows(92, 93), nil)
	assert.Equal(t, "93", got.KPIPercent.String())
	assert.Equal(t, "65.1", got.KPIWeighted.String())
}

func TestComputeWeightedScore_EmptySides(t *testing.T) {
	got := ComputeWeightedScore(nil, nil)
	assert.True(t, got.Final.IsZero())

	kpiOnly := ComputeWeightedScore(kpiRows(100), nil)
	assert.Equal(t, "70", kpiOnly.Final.String())

	softOnly := ComputeWeightedScore(nil, softRows(10))
	assert.Equal(t, "30", softOnly.Final.String())
}

func legacyResponse(weight int64, self, mgr *int) models.ResponseDetail {
	return models.ResponseDetail{
		Response: models.Response{SelfRating: self, ManagerRating: mgr},
		Weight:   decimal.NewFromInt(weight),
	}
}

func TestComputeLegacyScores_AnsweredWeightsOnly(t *testing.T) {
	// Weights 2,2,1,1. Self answers the first three; the last row is blank
	// on both sides so its weight is excluded. Divisor 5.
	responses := []models.ResponseDetail{
		legacyResponse(2, intPtr(4), nil),
		legacyResponse(2, intPtr(5), nil),
		legacyResponse(1, intPtr(3), nil),
		legacyResponse(1, nil, nil),
	}

	got := ComputeLegacyScores(responses)
	assert.Equal(t, "4.2", got.EmployeeScore.String())
	assert.Equal(t, "0", got.ManagerScore.String())
	assert.Equal(t, "2.1", got.FinalScore.String())
}

func TestComputeLegacyScores_ManagerRatingCountsAsAnswered(t *testing.T) {
	responses := []models.ResponseDetail{
		legacyResponse(2, nil, intPtr(4)),
		legacyResponse(1, intPtr(3), intPtr(5)),
	}

	got := ComputeLegacyScores(responses)
	// Divisor 3. Emp: 3/3 = 1.00. Mgr: (8+5)/3 = 4.33.
	assert.Equal(t, "1", got.EmployeeScore.String())
	assert.Equal(t, "4.33", got.ManagerScore.String())
	assert.Equal(t, "2.67", got.FinalScore.String())
}

func TestComputeLegacyScores_NoAnsweredRowsDivisorDefaultsToOne(t *testing.T) {
	responses := []models.ResponseDetail{
		legacyResponse(2, nil, nil),
		legacyResponse(3, nil, nil),
	}

	got := ComputeLegacyScores(responses)
	assert.True(t, got.EmployeeScore.IsZero())
	assert.True(t, got.ManagerScore.IsZero())
	assert.True(t, got.FinalScore.IsZero())
}

func TestComputeLegacyScores_NoRows(t *testing.T) {
	got := ComputeLegacyScores(nil)
	assert.True(t, got.FinalScore.IsZero())
}
