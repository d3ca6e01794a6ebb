package core

import "time"

// Layer identifies one stage of the medallion pipeline.
type Layer string

// Pipeline layers.
const (
	LayerBronze Layer = "bronze"
	LayerSilver Layer = "silver"
	LayerGold   Layer = "gold"
)

// LayerStatus represents the state of a single pipeline layer within a run.
type LayerStatus string

// Layer status constants. Transitions: pending → running → completed|failed.
const (
	LayerPending   LayerStatus = "pending"
	LayerRunning   LayerStatus = "running"
	LayerCompleted LayerStatus = "completed"
	LayerFailed    LayerStatus = "failed"
)

// Terminal reports whether the status is an end state.
func (s LayerStatus) Terminal() bool {
	return s == LayerCompleted || s == LayerFailed
}

// RunStatus is the derived overall state of a pipeline run.
type RunStatus string

// Run status constants.
const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// PipelineRun records one execution of the Bronze→Silver→Gold pipeline for a
// source. Layer statuses are mutated only by the orchestrator; a finished run
// is never deleted, only superseded by newer runs in the lineage history.
//
// Rule failures are data, not faults: a failed run still reaches the caller
// as a PipelineRun with Error set.
type PipelineRun struct {
	ID            string      `json:"id"`
	SourceID      string      `json:"source_id"`
	StartedAt     time.Time   `json:"started_at"`
	CompletedAt   *time.Time  `json:"completed_at,omitempty"`
	BronzeStatus  LayerStatus `json:"bronze_status"`
	SilverStatus  LayerStatus `json:"silver_status"`
	GoldStatus    LayerStatus `json:"gold_status"`
	TotalRecords  int         `json:"total_records"`
	PassedRecords int         `json:"passed_records"`
	QualityScore  int         `json:"quality_score"`
	ChecksApplied int         `json:"checks_applied"`
	Error         string      `json:"error,omitempty"`
}

// Status derives the overall run state from the layer statuses: failed as
// soon as any layer failed, completed once Gold completed, running otherwise.
func (r *PipelineRun) Status() RunStatus {
	if r.BronzeStatus == LayerFailed || r.SilverStatus == LayerFailed || r.GoldStatus == LayerFailed {
		return RunStatusFailed
	}
	if r.GoldStatus == LayerCompleted {
		return RunStatusCompleted
	}
	return RunStatusRunning
}

// Terminal reports whether the run has reached an end state.
func (r *PipelineRun) Terminal() bool {
	s := r.Status()
	return s == RunStatusCompleted || s == RunStatusFailed
}

// LayerStatusOf returns the status of the named layer.
func (r *PipelineRun) LayerStatusOf(layer Layer) LayerStatus {
	switch layer {
	case LayerBronze:
		return r.BronzeStatus
	case LayerSilver:
		return r.SilverStatus
	case LayerGold:
		return r.GoldStatus
	default:
		return LayerPending
	}
}

// LayerUpdate is an atomic field-group write for one layer transition: the
// layer's status and the counters that depend on it are persisted in a single
// update so readers never observe a completed layer with stale counts.
type LayerUpdate struct {
	RunID  string
	Layer  Layer
	Status LayerStatus

	// Set with the layer that owns them: TotalRecords with Bronze,
	// ChecksApplied with Silver, PassedRecords and QualityScore with Gold.
	TotalRecords  *int
	ChecksApplied *int
	PassedRecords *int
	QualityScore  *int
}
