package output

// SourcesOutput is the JSON document produced by `sources list`.
type SourcesOutput struct {
	Sources []SourceInfo   `json:"sources"`
	Summary SourcesSummary `json:"summary"`
}

// SourceInfo describes one data source in JSON output.
type SourceInfo struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Domain      string       `json:"domain"`
	Description string       `json:"description,omitempty"`
	RecordCount int          `json:"record_count"`
	CreatedAt   string       `json:"created_at"`
	Deleted     bool         `json:"deleted,omitempty"`
	LastRun     *LastRunInfo `json:"last_run,omitempty"`
}

// LastRunInfo summarizes a source's most recent pipeline run.
type LastRunInfo struct {
	RunID         string  `json:"run_id"`
	Status        string  `json:"status"`
	QualityScore  int     `json:"quality_score"`
	TotalRecords  int     `json:"total_records"`
	PassedRecords int     `json:"passed_records"`
	CompletedAt   string  `json:"completed_at,omitempty"`
	Error         *string `json:"error,omitempty"`
}

// SourcesSummary aggregates the source listing.
type SourcesSummary struct {
	TotalSources int            `json:"total_sources"`
	ByDomain     map[string]int `json:"by_domain"`
}
