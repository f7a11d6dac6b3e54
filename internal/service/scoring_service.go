package service

import (
	"github.com/shopspring/decimal"

	"github.com/hayat-interiors/appraisal-api/internal/models"
)

// Weighted-score split between the KPI and soft-skill components.
var (
	kpiWeight  = decimal.NewFromFloat(0.70)
	softWeight = decimal.NewFromFloat(0.30)
	ten        = decimal.NewFromInt(10)
	hundred    = decimal.NewFromInt(100)
)

// ScoreBreakdown carries the computed weighted score with its components.
type ScoreBreakdown struct {
	KPIPercent   decimal.Decimal `json:"kpi_percent"`
	SoftPercent  decimal.Decimal `json:"soft_percent"`
	KPIWeighted  decimal.Decimal `json:"kpi_weighted"`
	SoftWeighted decimal.Decimal `json:"soft_weighted"`
	Final        decimal.Decimal `json:"final"`
}

// LegacyScores carries the weighted Q&A fallback result.
type LegacyScores struct {
	EmployeeScore decimal.Decimal `json:"employee_score"`
	ManagerScore  decimal.Decimal `json:"manager_score"`
	FinalScore    decimal.Decimal `json:"final_score"`
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// meanClamped averages the clamped scores as a decimal. Empty input yields zero.
func meanClamped(scores []int, lo, hi int) decimal.Decimal {
	if len(scores) == 0 {
		return decimal.Zero
	}
	sum := decimal.Zero
	for _, s := range scores {
		sum = sum.Add(decimal.NewFromInt(int64(clampInt(s, lo, hi))))
	}
	return sum.Div(decimal.NewFromInt(int64(len(scores))))
}

// ComputeWeightedScore derives the 70/30 weighted final score from the KPI
// and soft-skill rows. Percentages round to whole numbers before weighting,
// weighted components and the final to two places. Rounding is half away
// from zero at every step. Either row set may be empty; its component is
// then zero and the other side still contributes.
func ComputeWeightedScore(kpis []models.KPIItem, softSkills []models.SoftSkillRating) ScoreBreakdown {
	kpiScores := make([]int, 0, len(kpis))
	for _, k := range kpis {
		kpiScores = append(kpiScores, k.Score)
	}
	softScores := make([]int, 0, len(softSkills))
	for _, s := range softSkills {
		softScores = append(softScores, s.Score)
	}

	kpiPercent := meanClamped(kpiScores, 0, 100).Round(0)
	softPercent := decimal.Zero
	if len(softScores) > 0 {
		softPercent = meanClamped(softScores, 1, 10).Div(ten).Mul(hundred).Round(0)
	}

	kpiWeighted := kpiPercent.Mul(kpiWeight).Round(2)
	softWeighted := softPercent.Mul(softWeight).Round(2)

	return ScoreBreakdown{
		KPIPercent:   kpiPercent,
		SoftPercent:  softPercent,
		KPIWeighted:  kpiWeighted,
		SoftWeighted: softWeighted,
		Final:        kpiWeighted.Add(softWeighted).Round(2),
	}
}

// ComputeLegacyScores applies the weighted Q&A model over the form's
// responses. The divisor is the summed weight of answered responses only;
// a row counts as answered when either side rated it. With no answered
// rows the divisor defaults to one, and with no rows at all every score
// is zero.
func ComputeLegacyScores(responses []models.ResponseDetail) LegacyScores {
	if len(responses) == 0 {
		return LegacyScores{EmployeeScore: decimal.Zero, ManagerScore: decimal.Zero, FinalScore: decimal.Zero}
	}

	totalWeight := decimal.Zero
	empSum := decimal.Zero
	mgrSum := decimal.Zero
	for _, r := range responses {
		if !r.Answered() {
			continue
		}
		totalWeight = totalWeight.Add(r.Weight)
		if r.SelfRating != nil {
			empSum = empSum.Add(decimal.NewFromInt(int64(*r.SelfRating)).Mul(r.Weight))
		}
		if r.ManagerRating != nil {
			mgrSum = mgrSum.Add(decimal.NewFromInt(int64(*r.ManagerRating)).Mul(r.Weight))
		}
	}
	if totalWeight.IsZero() {
		totalWeight = decimal.NewFromInt(1)
	}

	emp := empSum.Div(totalWeight).Round(2)
	mgr := mgrSum.Div(totalWeight).Round(2)
	final := emp.Add(mgr).Div(decimal.NewFromInt(2)).Round(2)
	return LegacyScores{EmployeeScore: emp, ManagerScore: mgr, FinalScore: final}
}
