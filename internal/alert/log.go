package alert

import (
	"context"
	"log/slog"

	"github.com/leapstack-labs/leapdq/pkg/core"
)

// LogNotifier writes alerts to the application log. It is the zero-setup
// reference channel and never fails.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a log notifier. A nil logger discards output.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &LogNotifier{logger: logger}
}

// Notify logs the alert at warn level.
func (n *LogNotifier) Notify(_ context.Context, _ *core.AlertConfig, payload *core.AlertPayload) error {
	n.logger.Warn("data quality alert",
		"source", payload.SourceName,
		"run_id", payload.RunID,
		"status", string(payload.Status),
		"quality_score", payload.QualityScore,
		"failed_checks", len(payload.FailedChecks),
		"message", payload.Message,
	)
	return nil
}
