package core

import (
	"context"
	"time"
)

// AlertChannel identifies a notification transport.
type AlertChannel string

// Built-in alert channels. Additional channels can be registered by glue
// code; the core only reads configs and hands off payloads.
const (
	ChannelLog     AlertChannel = "log"
	ChannelWebhook AlertChannel = "webhook"
)

// AlertConfig is a configured notification target. It is consumed, not
// owned, by the pipeline core: the orchestrator reads enabled configs and
// hands off payloads, it never manages channel lifecycle.
type AlertConfig struct {
	ID      string       `json:"id"`
	Name    string       `json:"name"`
	Channel AlertChannel `json:"channel"`
	// Settings is channel-specific configuration (e.g. webhook url, timeout)
	// decoded by the channel's notifier.
	Settings map[string]any `json:"settings,omitempty"`
	// MinScore additionally fires the alert when a completed run scores below
	// this threshold. Zero means failures only.
	MinScore  int       `json:"min_score"`
	Enabled   bool      `json:"enabled"`
	CreatedAt time.Time `json:"created_at"`
}

// AlertPayload is the notification body handed to alert channels when a
// finished run warrants an alert.
type AlertPayload struct {
	SourceID     string    `json:"source_id"`
	SourceName   string    `json:"source_name"`
	RunID        string    `json:"run_id"`
	Status       RunStatus `json:"status"`
	QualityScore int       `json:"quality_score"`
	FailedChecks []string  `json:"failed_checks,omitempty"`
	Message      string    `json:"message,omitempty"`
}

// AlertEvent records one delivery attempt for the dashboard's recent-alerts
// aggregate. Append-only.
type AlertEvent struct {
	ID        string       `json:"id"`
	ConfigID  string       `json:"config_id"`
	RunID     string       `json:"run_id"`
	SourceID  string       `json:"source_id"`
	Channel   AlertChannel `json:"channel"`
	Status    string       `json:"status"` // sent | failed
	Message   string       `json:"message,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
}

// Alert event delivery statuses.
const (
	AlertEventSent   = "sent"
	AlertEventFailed = "failed"
)

// AlertSink is the collaborator the orchestrator notifies when a run reaches
// a terminal state. Implementations decide whether configured channels fire;
// their failures must never fail the run, so the method returns nothing.
type AlertSink interface {
	RunFinished(ctx context.Context, run *PipelineRun, results []*CheckResult)
}
