package pipeline

// gold.go - the Gold aggregation stage

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/leapstack-labs/leapdq/pkg/core"
)

// Score computes the quality score for a run: passed over total as a
// rounded percentage, 0 for an empty dataset. A low score is a finding
// about the data, never a pipeline failure.
func Score(passed, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(100 * float64(passed) / float64(total)))
}

// runGold commits the passed-record count and quality score, then
// hands the surviving rows to the exporters. Once the score is
// committed the layer stays completed: export failures are logged, and
// those of run-requested sinks surface on the run's Error field.
func (e *Engine) runGold(ctx context.Context, source *core.DataSource, run *core.PipelineRun, ds *core.Dataset, passed []int, opts RunOptions) error {
	if err := ctx.Err(); err != nil {
		e.failLayer(run, core.LayerGold, opts)
		return err
	}

	if err := e.applyLayer(run, core.LayerUpdate{RunID: run.ID, Layer: core.LayerGold, Status: core.LayerRunning}, opts); err != nil {
		e.failLayer(run, core.LayerGold, opts)
		return fmt.Errorf("%w: failed to start gold layer: %v", core.ErrAggregation, err)
	}

	score := Score(len(passed), ds.Len())

	update := core.LayerUpdate{
		RunID:         run.ID,
		Layer:         core.LayerGold,
		Status:        core.LayerCompleted,
		PassedRecords: intPtr(len(passed)),
		QualityScore:  intPtr(score),
	}
	if err := e.applyLayer(run, update, opts); err != nil {
		e.failLayer(run, core.LayerGold, opts)
		return fmt.Errorf("%w: failed to commit quality score: %v", core.ErrAggregation, err)
	}

	e.logger.Debug("gold layer completed",
		"run_id", run.ID,
		"quality_score", score,
		"passed", len(passed),
		"total", ds.Len())

	return e.export(ctx, source, run, ds.Select(passed), opts)
}

// export runs the engine-wide sinks best effort, then the sinks
// requested for this run. Only the latter report back to the caller.
func (e *Engine) export(ctx context.Context, source *core.DataSource, run *core.PipelineRun, gold *core.Dataset, opts RunOptions) error {
	for _, ex := range e.exporters {
		if err := ex.Export(ctx, source, run, gold); err != nil {
			e.logger.Error("gold export failed", "exporter", ex.Name(), "run_id", run.ID, "error", err)
		}
	}

	var errs []error
	for _, ex := range opts.Exporters {
		if err := ex.Export(ctx, source, run, gold); err != nil {
			e.logger.Error("gold export failed", "exporter", ex.Name(), "run_id", run.ID, "error", err)
			errs = append(errs, fmt.Errorf("export %s: %w", ex.Name(), err))
		}
	}
	return errors.Join(errs...)
}
