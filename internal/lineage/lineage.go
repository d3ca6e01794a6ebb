// Package lineage assembles the read-only view of how a source's data
// moved through the pipeline: layer states and check results from the
// most recent run plus the full run history. Views are derived on
// demand from the store and never written back.
package lineage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/leapstack-labs/leapdq/pkg/core"
)

// Recorder builds lineage views from the state store.
type Recorder struct {
	store  core.Store
	logger *slog.Logger
}

// NewRecorder creates a lineage recorder. A nil logger discards output.
func NewRecorder(store core.Store, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Recorder{store: store, logger: logger}
}

// Snapshot assembles the lineage view for a source. The layer snapshots
// and check results come from the most recent run; the run history is
// returned in full, newest first. A source that has never run yields
// pending layers with zero counts. Soft-deleted sources stay readable:
// preserving run history is why the tombstone exists.
func (r *Recorder) Snapshot(ctx context.Context, sourceID string) (*core.LineageView, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	source, err := r.store.GetSource(sourceID)
	if err != nil {
		return nil, err
	}

	view := &core.LineageView{
		Source: source,
		Bronze: core.LayerSnapshot{Layer: core.LayerBronze, Status: core.LayerPending, Description: core.BronzeDescription},
		Silver: core.LayerSnapshot{Layer: core.LayerSilver, Status: core.LayerPending, Description: core.SilverDescription},
		Gold:   core.LayerSnapshot{Layer: core.LayerGold, Status: core.LayerPending, Description: core.GoldDescription},
	}

	runs, err := r.store.ListRunsBySource(sourceID, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to load run history: %w", err)
	}
	view.Runs = runs

	if len(runs) == 0 {
		r.logger.Debug("lineage requested for source with no runs", "source_id", sourceID)
		return view, nil
	}

	latest := runs[0]
	view.Bronze.Status = latest.BronzeStatus
	view.Bronze.Count = latest.TotalRecords
	view.Silver.Status = latest.SilverStatus
	view.Silver.Count = latest.ChecksApplied
	view.Gold.Status = latest.GoldStatus
	view.Gold.Count = latest.QualityScore

	checks, err := r.store.ListCheckResults(latest.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load check results: %w", err)
	}
	view.Checks = checks

	return view, nil
}
