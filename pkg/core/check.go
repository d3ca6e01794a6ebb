package core

import "time"

// CheckStatus is the aggregate outcome of one rule over one run's dataset.
type CheckStatus string

// Check status constants.
const (
	CheckPassed  CheckStatus = "passed"
	CheckFailed  CheckStatus = "failed"
	CheckWarning CheckStatus = "warning"
)

// DetailSampleLimit caps the violation samples embedded in a check result so
// detail payloads stay bounded no matter how many rows violate.
const DetailSampleLimit = 5

// ViolationDetail is one sampled violation inside a check result.
type ViolationDetail struct {
	RowID   string `json:"row_id"`
	Field   string `json:"field,omitempty"`
	Value   any    `json:"value,omitempty"`
	Message string `json:"message,omitempty"`
}

// CheckDetails carries the bounded evidence of a rule evaluation.
type CheckDetails struct {
	TotalRecords     int               `json:"total_records"`
	EvaluatedRecords int               `json:"evaluated_records"`
	ViolationCount   int               `json:"violation_count,omitempty"`
	SampleViolations []ViolationDetail `json:"sample_violations,omitempty"`
	Error            string            `json:"error,omitempty"`
}

// CheckResult is the outcome of evaluating one pinned rule revision within
// one run. Created once per rule per run; immutable after creation.
type CheckResult struct {
	ID         string       `json:"id"`
	RunID      string       `json:"run_id"`
	RuleID     string       `json:"rule_id"`
	RuleKey    string       `json:"rule_key"`
	RuleName   string       `json:"rule_name"`
	CheckType  CheckType    `json:"check_type"`
	Status     CheckStatus  `json:"status"`
	ExecutedAt time.Time    `json:"executed_at"`
	Details    CheckDetails `json:"details"`
}
