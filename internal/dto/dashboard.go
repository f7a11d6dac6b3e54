package dto

// DashboardOverviewResponse captures per-cycle workflow progress counts.
type DashboardOverviewResponse struct {
	Cycles []CycleProgressEntry `json:"cycles"`
}

// CycleProgressEntry counts one cycle's forms by workflow state.
type CycleProgressEntry struct {
	CycleID     int64  `json:"cycleId"`
	CycleName   string `json:"cycleName"`
	Total       int    `json:"total"`
	Submitted   int    `json:"submitted"`
	MgrReviewed int    `json:"mgrReviewed"`
	HRReviewed  int    `json:"hrReviewed"`
	Completed   int    `json:"completed"`
}

// CycleDashboardResponse breaks one cycle down by department and score band.
type CycleDashboardResponse struct {
	CycleID     int64                  `json:"cycleId"`
	Departments []DepartmentCompletion `json:"departments"`
	ScoreBands  []ScoreBandBin         `json:"scoreBands"`
	Laggards    []string               `json:"laggards"`
}

// DepartmentCompletion is one department's completion rate within a cycle.
type DepartmentCompletion struct {
	Department string  `json:"department"`
	Total      int     `json:"total"`
	Completed  int     `json:"completed"`
	Rate       float64 `json:"rate"`
}

// ScoreBandBin counts finalized scores falling into one band.
type ScoreBandBin struct {
	Band  string `json:"band"`
	Count int    `json:"count"`
}
