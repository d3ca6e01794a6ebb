// Package alert evaluates finished pipeline runs against the configured
// alert channels and dispatches notifications. Delivery is best-effort:
// every attempt is recorded in the store's alert history, and no failure
// propagates back to the run.
package alert

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/leapstack-labs/leapdq/pkg/core"
)

// Notifier delivers one alert payload over one channel.
type Notifier interface {
	Notify(ctx context.Context, cfg *core.AlertConfig, payload *core.AlertPayload) error
}

// Config assembles an Evaluator.
type Config struct {
	// Store provides alert configs and records delivery attempts. Required.
	Store core.Store

	// Notifiers maps channels to their transports. Defaults to the log and
	// webhook reference notifiers.
	Notifiers map[core.AlertChannel]Notifier

	// Logger receives evaluation and delivery logs. Defaults to discard.
	Logger *slog.Logger
}

// Evaluator decides which configured alerts fire for a finished run and
// dispatches them. It implements core.AlertSink.
type Evaluator struct {
	store     core.Store
	notifiers map[core.AlertChannel]Notifier
	logger    *slog.Logger
}

// NewEvaluator creates an alert evaluator.
func NewEvaluator(cfg Config) (*Evaluator, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("%w: alert evaluator requires a store", core.ErrInvalid)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	notifiers := cfg.Notifiers
	if notifiers == nil {
		notifiers = map[core.AlertChannel]Notifier{
			core.ChannelLog:     NewLogNotifier(logger),
			core.ChannelWebhook: NewWebhookNotifier(nil),
		}
	}

	return &Evaluator{store: cfg.Store, notifiers: notifiers, logger: logger}, nil
}

// RunFinished fires every enabled alert config whose conditions the run
// meets: a failed run or failed checks always fire, and a config with
// MinScore set also fires on completed runs scoring below its threshold.
// Errors are logged and recorded, never returned.
func (e *Evaluator) RunFinished(ctx context.Context, run *core.PipelineRun, results []*core.CheckResult) {
	configs, err := e.store.ListAlertConfigs(true)
	if err != nil {
		e.logger.Error("failed to load alert configs", "run_id", run.ID, "error", err)
		return
	}
	if len(configs) == 0 {
		return
	}

	source, err := e.store.GetSource(run.SourceID)
	if err != nil {
		e.logger.Error("failed to load source for alerting", "run_id", run.ID, "source_id", run.SourceID, "error", err)
		return
	}

	failed := failedCheckNames(results)

	for _, cfg := range configs {
		if !shouldFire(cfg, run, len(failed)) {
			continue
		}

		payload := &core.AlertPayload{
			SourceID:     source.ID,
			SourceName:   source.Name,
			RunID:        run.ID,
			Status:       run.Status(),
			QualityScore: run.QualityScore,
			FailedChecks: failed,
			Message:      alertMessage(cfg, source, run, len(failed)),
		}
		_ = e.deliver(ctx, cfg, payload)
	}
}

// Test fires a synthetic alert through one config, enabled or not, so a
// channel can be verified before real runs depend on it. The delivery
// attempt is recorded like any other.
func (e *Evaluator) Test(ctx context.Context, configID string) error {
	cfg, err := e.store.GetAlertConfig(configID)
	if err != nil {
		return err
	}

	payload := &core.AlertPayload{
		SourceID:     "test",
		SourceName:   "test",
		RunID:        "test",
		Status:       core.RunStatusCompleted,
		QualityScore: 100,
		Message:      fmt.Sprintf("test alert for config %s", cfg.Name),
	}

	if err := e.deliver(ctx, cfg, payload); err != nil {
		return fmt.Errorf("failed to deliver test alert: %w", err)
	}
	return nil
}

// deliver sends one payload over one config's channel and records the
// attempt. RunFinished drops the returned error; Test surfaces it.
func (e *Evaluator) deliver(ctx context.Context, cfg *core.AlertConfig, payload *core.AlertPayload) error {
	event := &core.AlertEvent{
		ConfigID: cfg.ID,
		RunID:    payload.RunID,
		SourceID: payload.SourceID,
		Channel:  cfg.Channel,
		Status:   core.AlertEventSent,
	}

	var deliverErr error
	if notifier, ok := e.notifiers[cfg.Channel]; ok {
		deliverErr = notifier.Notify(ctx, cfg, payload)
	} else {
		deliverErr = fmt.Errorf("%w: no notifier for channel %q", core.ErrInvalid, cfg.Channel)
	}

	if deliverErr != nil {
		event.Status = core.AlertEventFailed
		event.Message = deliverErr.Error()
		e.logger.Error("alert delivery failed",
			"config", cfg.Name, "channel", string(cfg.Channel), "run_id", payload.RunID, "error", deliverErr)
	} else {
		e.logger.Info("alert sent",
			"config", cfg.Name, "channel", string(cfg.Channel), "run_id", payload.RunID)
	}

	if err := e.store.RecordAlertEvent(event); err != nil {
		e.logger.Error("failed to record alert event", "config", cfg.Name, "error", err)
	}

	return deliverErr
}

// shouldFire reports whether one config wants a notification for the run.
// Failures fire every config; MinScore widens a config to low-scoring
// completed runs.
func shouldFire(cfg *core.AlertConfig, run *core.PipelineRun, failedChecks int) bool {
	if run.Status() == core.RunStatusFailed || failedChecks > 0 {
		return true
	}
	return cfg.MinScore > 0 && run.QualityScore < cfg.MinScore
}

func alertMessage(cfg *core.AlertConfig, source *core.DataSource, run *core.PipelineRun, failedChecks int) string {
	switch {
	case run.Status() == core.RunStatusFailed:
		return fmt.Sprintf("pipeline run failed for source %s: %s", source.Name, run.Error)
	case failedChecks > 0:
		return fmt.Sprintf("%d of %d quality checks failed for source %s (score %d)",
			failedChecks, run.ChecksApplied, source.Name, run.QualityScore)
	default:
		return fmt.Sprintf("quality score %d for source %s is below the alert threshold %d",
			run.QualityScore, source.Name, cfg.MinScore)
	}
}

func failedCheckNames(results []*core.CheckResult) []string {
	var names []string
	for _, res := range results {
		if res.Status == core.CheckFailed {
			names = append(names, res.RuleName)
		}
	}
	return names
}
