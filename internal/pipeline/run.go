package pipeline

// run.go - run orchestration and the Bronze ingestion stage

import (
	"context"
	"fmt"
	"time"

	"github.com/leapstack-labs/leapdq/internal/ingest"
	"github.com/leapstack-labs/leapdq/pkg/core"
)

// ProgressEvent is one observable step of a pipeline run. Layer
// transitions carry the layer and its new status; Silver additionally
// emits one event per finished rule with RuleKey and the done/total
// counters set.
type ProgressEvent struct {
	RunID  string
	Layer  core.Layer
	Status core.LayerStatus

	RuleKey    string
	RulesDone  int
	RulesTotal int
}

// RunOptions tunes a single pipeline run.
type RunOptions struct {
	// Progress receives run events. Optional; called synchronously
	// from the run goroutine, so handlers must not block.
	Progress func(ProgressEvent)
	// Exporters write this run's Gold dataset in addition to the
	// engine-wide sinks. Their failures are recorded on the run's
	// Error field; engine-wide sinks are only logged.
	Exporters []Exporter
}

func (o RunOptions) emit(ev ProgressEvent) {
	if o.Progress != nil {
		o.Progress(ev)
	}
}

// Run executes the full pipeline for a source and returns the terminal
// run record. Rule failures are data: a failed run still comes back as
// a PipelineRun with Error set and a nil error. Only conditions that
// precede the run row (unknown source, a conflicting active run, the
// store refusing the insert) are returned as errors.
func (e *Engine) Run(ctx context.Context, sourceID string, opts RunOptions) (*core.PipelineRun, error) {
	source, err := e.store.GetSource(sourceID)
	if err != nil {
		return nil, err
	}
	if source.Deleted() {
		return nil, fmt.Errorf("%w: source %s is deleted", core.ErrNotFound, sourceID)
	}

	if !e.tryAcquire(source.ID) {
		return nil, fmt.Errorf("%w: source %s", core.ErrConcurrentRun, source.ID)
	}
	defer e.release(source.ID)

	// The arena only covers this process; the store knows about runs
	// started elsewhere.
	active, err := e.store.GetActiveRun(source.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to check for active runs: %w", err)
	}
	if active != nil {
		return nil, fmt.Errorf("%w: run %s is still active for source %s", core.ErrConcurrentRun, active.ID, source.ID)
	}

	run := &core.PipelineRun{SourceID: source.ID}
	if err := e.store.CreateRun(run); err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}

	e.logger.Info("starting run", "run_id", run.ID, "source", source.Name, "domain", source.Domain)

	runErr := e.execute(ctx, source, run, opts)

	return e.finalize(ctx, run, runErr), nil
}

// execute walks the three layers in order. Each stage persists its own
// transitions; the returned error is the run's failure cause.
func (e *Engine) execute(ctx context.Context, source *core.DataSource, run *core.PipelineRun, opts RunOptions) error {
	ds, err := e.runBronze(ctx, source, run, opts)
	if err != nil {
		return err
	}

	passed, err := e.runSilver(ctx, source, run, ds, opts)
	if err != nil {
		return err
	}

	return e.runGold(ctx, source, run, ds, passed, opts)
}

// finalize stamps the completion time, logs the layer snapshot and
// hands the terminal run to the alert sink. It always yields a run
// record, falling back to the in-memory copy if the store read fails.
func (e *Engine) finalize(ctx context.Context, run *core.PipelineRun, runErr error) *core.PipelineRun {
	errMsg := ""
	if runErr != nil {
		errMsg = runErr.Error()
	}

	completedAt := time.Now().UTC()
	if err := e.store.CompleteRun(run.ID, completedAt, errMsg); err != nil {
		e.logger.Error("failed to finalize run", "run_id", run.ID, "error", err)
	}

	final, err := e.store.GetRun(run.ID)
	if err != nil {
		e.logger.Error("failed to reload run", "run_id", run.ID, "error", err)
		run.CompletedAt = &completedAt
		run.Error = errMsg
		final = run
	}

	e.logger.Debug("run layers",
		"run_id", final.ID,
		"bronze", final.BronzeStatus,
		"silver", final.SilverStatus,
		"gold", final.GoldStatus)

	if final.Status() == core.RunStatusFailed {
		e.logger.Info("run failed", "run_id", final.ID, "error", final.Error)
	} else {
		e.logger.Info("run completed",
			"run_id", final.ID,
			"quality_score", final.QualityScore,
			"passed", final.PassedRecords,
			"total", final.TotalRecords)
	}

	results, err := e.store.ListCheckResults(run.ID)
	if err != nil {
		e.logger.Error("failed to load check results for alerting", "run_id", run.ID, "error", err)
	}
	if e.alerts != nil {
		e.alerts.RunFinished(ctx, final, results)
	}

	return final
}

// applyLayer persists a layer transition and mirrors it on the
// in-memory run so the caller's copy stays truthful even when the
// final store read fails.
func (e *Engine) applyLayer(run *core.PipelineRun, update core.LayerUpdate, opts RunOptions) error {
	if err := e.store.UpdateRunLayer(update); err != nil {
		return err
	}

	switch update.Layer {
	case core.LayerBronze:
		run.BronzeStatus = update.Status
	case core.LayerSilver:
		run.SilverStatus = update.Status
	case core.LayerGold:
		run.GoldStatus = update.Status
	}
	if update.TotalRecords != nil {
		run.TotalRecords = *update.TotalRecords
	}
	if update.ChecksApplied != nil {
		run.ChecksApplied = *update.ChecksApplied
	}
	if update.PassedRecords != nil {
		run.PassedRecords = *update.PassedRecords
	}
	if update.QualityScore != nil {
		run.QualityScore = *update.QualityScore
	}

	opts.emit(ProgressEvent{RunID: run.ID, Layer: update.Layer, Status: update.Status})
	return nil
}

// failLayer marks a layer failed. The in-memory run is marked even
// when the store write fails, so the caller's copy never reports a
// terminal run as still running.
func (e *Engine) failLayer(run *core.PipelineRun, layer core.Layer, opts RunOptions) {
	update := core.LayerUpdate{RunID: run.ID, Layer: layer, Status: core.LayerFailed}
	if err := e.store.UpdateRunLayer(update); err != nil {
		e.logger.Error("failed to record layer failure", "run_id", run.ID, "layer", layer, "error", err)
	}

	switch layer {
	case core.LayerBronze:
		run.BronzeStatus = core.LayerFailed
	case core.LayerSilver:
		run.SilverStatus = core.LayerFailed
	case core.LayerGold:
		run.GoldStatus = core.LayerFailed
	}

	opts.emit(ProgressEvent{RunID: run.ID, Layer: layer, Status: core.LayerFailed})
}

// runBronze materializes the source's dataset, either by re-parsing
// the stored upload or by running the domain generator, and records
// the ingested record count.
func (e *Engine) runBronze(ctx context.Context, source *core.DataSource, run *core.PipelineRun, opts RunOptions) (*core.Dataset, error) {
	if err := ctx.Err(); err != nil {
		e.failLayer(run, core.LayerBronze, opts)
		return nil, err
	}

	if err := e.applyLayer(run, core.LayerUpdate{RunID: run.ID, Layer: core.LayerBronze, Status: core.LayerRunning}, opts); err != nil {
		e.failLayer(run, core.LayerBronze, opts)
		return nil, fmt.Errorf("failed to start bronze layer: %w", err)
	}

	raw, err := e.store.GetDataset(source.ID)
	if err != nil {
		e.failLayer(run, core.LayerBronze, opts)
		return nil, fmt.Errorf("failed to load uploaded dataset: %w", err)
	}

	ds, err := ingest.Ingest(source, raw)
	if err != nil {
		e.failLayer(run, core.LayerBronze, opts)
		return nil, err
	}

	// Keep the catalog in step with what was actually ingested; an
	// upload may not match the declared record count.
	if err := e.store.UpdateSourceRecordCount(source.ID, ds.Len()); err != nil {
		e.logger.Error("failed to update source record count", "source_id", source.ID, "error", err)
	}

	update := core.LayerUpdate{
		RunID:        run.ID,
		Layer:        core.LayerBronze,
		Status:       core.LayerCompleted,
		TotalRecords: intPtr(ds.Len()),
	}
	if err := e.applyLayer(run, update, opts); err != nil {
		e.failLayer(run, core.LayerBronze, opts)
		return nil, fmt.Errorf("failed to record bronze completion: %w", err)
	}

	e.logger.Debug("bronze layer completed", "run_id", run.ID, "records", ds.Len())
	return ds, nil
}
