package output

// RunEvent is one JSON line of `run --json` output. Event is one of
// run_start, layer_update, rule_complete, or run_complete; the remaining
// fields are populated per event kind.
type RunEvent struct {
	Event     string `json:"event"`
	Timestamp string `json:"timestamp"`
	RunID     string `json:"run_id,omitempty"`
	Source    string `json:"source,omitempty"`

	Layer  string `json:"layer,omitempty"`
	Status string `json:"status,omitempty"`

	Rule       string `json:"rule,omitempty"`
	RulesDone  int    `json:"rules_done,omitempty"`
	RulesTotal int    `json:"rules_total,omitempty"`

	TotalRecords  int    `json:"total_records,omitempty"`
	PassedRecords int    `json:"passed_records,omitempty"`
	QualityScore  int    `json:"quality_score,omitempty"`
	ChecksFailed  int    `json:"checks_failed,omitempty"`
	Error         string `json:"error,omitempty"`
	TotalMS       int64  `json:"total_ms,omitempty"`
}
