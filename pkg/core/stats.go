package core

// DashboardSummary aggregates pipeline activity across all sources. It is a
// simple reduction over stored runs, check results and alert events.
type DashboardSummary struct {
	TotalSources    int     `json:"total_sources"`
	TotalRuns       int     `json:"total_runs"`
	ChecksPassed    int     `json:"checks_passed"`
	ChecksFailed    int     `json:"checks_failed"`
	ChecksWarning   int     `json:"checks_warning"`
	PassRate        float64 `json:"pass_rate"`
	AvgQualityScore float64 `json:"avg_quality_score"`
	RecentAlerts    int     `json:"recent_alerts"`
}

// TimelineBucket is one day of check outcomes for the dashboard timeline.
type TimelineBucket struct {
	Date    string `json:"date"` // YYYY-MM-DD
	Passed  int    `json:"passed"`
	Failed  int    `json:"failed"`
	Warning int    `json:"warning"`
}
