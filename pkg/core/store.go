package core

import "time"

// Store defines the persistence interface consumed by the pipeline. The core
// treats it as an opaque record store; implementations live in
// internal/state.
//
// Reads that look up a specific id return ErrNotFound when the record does
// not exist. GetActiveRun, LatestRun and GetDataset return (nil, nil) when
// there is simply nothing yet; absence is a normal answer for them.
type Store interface {
	Close() error

	// Data source operations
	CreateSource(src *DataSource) error
	GetSource(id string) (*DataSource, error)
	GetSourceByName(name string) (*DataSource, error)
	ListSources(includeDeleted bool) ([]*DataSource, error)
	UpdateSourceRecordCount(id string, count int) error
	// DeleteSource soft-deletes a source that runs reference and hard-deletes
	// one that was never run.
	DeleteSource(id string) error

	// Uploaded dataset payloads (one per source, replaced on re-upload)
	SaveDataset(ds *RawDataset) error
	GetDataset(sourceID string) (*RawDataset, error)

	// Rule revisions. EnsureRuleRevision pins the given definition: it
	// returns the stored revision whose fingerprint matches, or inserts the
	// next version for the rule's key. Stored revisions are immutable.
	EnsureRuleRevision(rule *QualityRule) (*QualityRule, error)
	GetRule(id string) (*QualityRule, error)
	ListRuleRevisions(domain Domain) ([]*QualityRule, error)

	// Run operations
	CreateRun(run *PipelineRun) error
	GetRun(id string) (*PipelineRun, error)
	GetActiveRun(sourceID string) (*PipelineRun, error)
	LatestRun(sourceID string) (*PipelineRun, error)
	ListRunsBySource(sourceID string, limit int) ([]*PipelineRun, error)
	// UpdateRunLayer writes one layer transition and its dependent counters
	// as a single atomic update.
	UpdateRunLayer(update LayerUpdate) error
	CompleteRun(id string, completedAt time.Time, errMsg string) error

	// Check results (immutable; written once per run in one batch)
	SaveCheckResults(results []*CheckResult) error
	ListCheckResults(runID string) ([]*CheckResult, error)

	// Alert configs and delivery history
	CreateAlertConfig(cfg *AlertConfig) error
	GetAlertConfig(id string) (*AlertConfig, error)
	ListAlertConfigs(enabledOnly bool) ([]*AlertConfig, error)
	UpdateAlertConfig(cfg *AlertConfig) error
	DeleteAlertConfig(id string) error
	RecordAlertEvent(ev *AlertEvent) error
	ListAlertEvents(limit int) ([]*AlertEvent, error)
	CountAlertEventsSince(since time.Time) (int, error)

	// Dashboard aggregates
	Summary() (*DashboardSummary, error)
	CheckTimeline(days int) ([]TimelineBucket, error)
}
