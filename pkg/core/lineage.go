package core

// Human-readable layer descriptions used in lineage views.
const (
	BronzeDescription = "Raw data ingestion"
	SilverDescription = "Data validation & quality checks"
	GoldDescription   = "Business-ready data"
)

// LayerSnapshot is the point-in-time state of one layer for a source, taken
// from the source's most recent run.
type LayerSnapshot struct {
	Layer       Layer       `json:"layer"`
	Status      LayerStatus `json:"status"`
	Description string      `json:"description"`
	// Count is layer-specific: raw record count for Bronze, checks applied
	// for Silver, quality score for Gold.
	Count int `json:"count"`
}

// LineageView is a derived, read-only projection of how a source's data moved
// through the pipeline. It is assembled on demand and never stored.
type LineageView struct {
	Source *DataSource    `json:"source"`
	Bronze LayerSnapshot  `json:"bronze"`
	Silver LayerSnapshot  `json:"silver"`
	Gold   LayerSnapshot  `json:"gold"`
	Checks []*CheckResult `json:"quality_checks"`
	// Runs is the full run history, most recent first.
	Runs []*PipelineRun `json:"pipeline_runs"`
}

// LatestRun returns the most recent run in the view, or nil when the source
// has never been run.
func (v *LineageView) LatestRun() *PipelineRun {
	if len(v.Runs) == 0 {
		return nil
	}
	return v.Runs[0]
}
