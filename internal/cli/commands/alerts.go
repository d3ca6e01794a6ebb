package commands

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapdq/internal/alert"
	"github.com/leapstack-labs/leapdq/internal/cli/output"
	"github.com/leapstack-labs/leapdq/internal/state"
	"github.com/leapstack-labs/leapdq/pkg/core"
)

// NewAlertsCommand creates the alerts command group.
func NewAlertsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "alerts",
		Short: "Manage alert configurations",
		Long: `Configure where the pipeline reports finished runs.

An alert config fires when a run fails or its quality score drops below
the config's min-score threshold. Channels: log (structured log line)
and webhook (JSON POST).`,
	}

	cmd.AddCommand(
		newAlertsListCommand(),
		newAlertsAddCommand(),
		newAlertsRemoveCommand(),
		newAlertsEnableCommand(true),
		newAlertsEnableCommand(false),
		newAlertsTestCommand(),
	)

	return cmd
}

func newAlertsListCommand() *cobra.Command {
	var showEvents int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List alert configurations",
		Example: `  # List alert configs
  leapdq alerts list

  # Include the last 10 delivery events
  leapdq alerts list --events 10`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runAlertsList(cmd, showEvents)
		},
	}

	cmd.Flags().IntVar(&showEvents, "events", 0, "also show the N most recent delivery events")

	return cmd
}

func newAlertsAddCommand() *cobra.Command {
	var (
		channel  string
		url      string
		timeout  string
		minScore int
		disabled bool
	)

	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Add an alert configuration",
		Example: `  # Log every failed run
  leapdq alerts add oncall-log --channel log

  # POST to a webhook when the score drops below 80
  leapdq alerts add quality-hook --channel webhook --url https://hooks.example.com/dq --min-score 80`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAlertsAdd(cmd, args[0], channel, url, timeout, minScore, !disabled)
		},
	}

	cmd.Flags().StringVar(&channel, "channel", string(core.ChannelLog), "alert channel: log or webhook")
	cmd.Flags().StringVar(&url, "url", "", "webhook URL (webhook channel only)")
	cmd.Flags().StringVar(&timeout, "timeout", "", "webhook delivery timeout, e.g. 5s (webhook channel only)")
	cmd.Flags().IntVar(&minScore, "min-score", 0, "fire when the quality score is below this (0 = failures only)")
	cmd.Flags().BoolVar(&disabled, "disabled", false, "create the config disabled")

	return cmd
}

func newAlertsRemoveCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "rm <config>",
		Aliases: []string{"remove"},
		Short:   "Remove an alert configuration",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAlertsRemove(cmd, args[0])
		},
	}
}

func newAlertsEnableCommand(enable bool) *cobra.Command {
	use, short := "enable <config>", "Enable an alert configuration"
	if !enable {
		use, short = "disable <config>", "Disable an alert configuration"
	}

	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAlertsToggle(cmd, args[0], enable)
		},
	}
}

func newAlertsTestCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "test <config>",
		Short: "Fire a synthetic alert through a configuration",
		Long: `Send a synthetic payload through one alert config's channel.

Unlike run-driven alerting, a delivery failure surfaces here so a
channel can be verified before it is trusted.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAlertsTest(cmd, args[0])
		},
	}
}

// resolveAlertConfig finds an alert config by id first, then by name.
func resolveAlertConfig(store *state.SQLStore, nameOrID string) (*core.AlertConfig, error) {
	cfg, err := store.GetAlertConfig(nameOrID)
	if err == nil {
		return cfg, nil
	}
	if !errors.Is(err, core.ErrNotFound) {
		return nil, err
	}

	configs, err := store.ListAlertConfigs(false)
	if err != nil {
		return nil, err
	}
	for _, c := range configs {
		if c.Name == nameOrID {
			return c, nil
		}
	}
	return nil, fmt.Errorf("%w: alert config %s", core.ErrNotFound, nameOrID)
}

func runAlertsList(cmd *cobra.Command, showEvents int) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	configs, err := cmdCtx.Store.ListAlertConfigs(false)
	if err != nil {
		return fmt.Errorf("failed to list alert configs: %w", err)
	}

	var events []*core.AlertEvent
	if showEvents > 0 {
		events, err = cmdCtx.Store.ListAlertEvents(showEvents)
		if err != nil {
			return fmt.Errorf("failed to list alert events: %w", err)
		}
	}

	r := cmdCtx.Renderer
	switch r.EffectiveMode() {
	case output.ModeJSON:
		return r.JSON(struct {
			Configs []*core.AlertConfig `json:"configs"`
			Events  []*core.AlertEvent  `json:"events,omitempty"`
		}{configs, events})
	case output.ModeMarkdown:
		return alertsMarkdown(r, configs, events)
	default:
		return alertsText(r, configs, events)
	}
}

func alertsText(r *output.Renderer, configs []*core.AlertConfig, events []*core.AlertEvent) error {
	r.Header(1, fmt.Sprintf("Alert Configs (%d total)", len(configs)))

	if len(configs) == 0 {
		r.Muted("No alert configs. Add one with: leapdq alerts add <name> --channel log")
		return nil
	}

	t := table.NewWriter()
	t.SetOutputMirror(r.Writer())
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"NAME", "CHANNEL", "MIN SCORE", "ENABLED", "TARGET"})
	for _, cfg := range configs {
		t.AppendRow(table.Row{cfg.Name, string(cfg.Channel), cfg.MinScore, cfg.Enabled, alertTarget(cfg)})
	}
	t.Render()

	if len(events) > 0 {
		r.Println("")
		r.Header(2, "Recent Deliveries")
		for _, ev := range events {
			r.StatusLine(string(ev.Channel), ev.Status,
				fmt.Sprintf("run %s at %s", shortID(ev.RunID), ev.CreatedAt.Format("2006-01-02 15:04")))
		}
	}

	return nil
}

func alertsMarkdown(r *output.Renderer, configs []*core.AlertConfig, events []*core.AlertEvent) error {
	r.Println(output.FormatHeader(1, "Alert Configs"))
	r.Println("")
	for _, cfg := range configs {
		r.Println(output.FormatHeader(2, cfg.Name))
		r.Println(output.FormatKeyValue("ID", cfg.ID))
		r.Println(output.FormatKeyValue("Channel", string(cfg.Channel)))
		r.Println(output.FormatKeyValue("Min Score", fmt.Sprintf("%d", cfg.MinScore)))
		r.Println(output.FormatKeyValue("Enabled", fmt.Sprintf("%t", cfg.Enabled)))
		if target := alertTarget(cfg); target != "" {
			r.Println(output.FormatKeyValue("Target", target))
		}
		r.Println("")
	}

	if len(events) > 0 {
		r.Println(output.FormatHeader(2, "Recent Deliveries"))
		r.Println("")
		for _, ev := range events {
			r.Println(output.FormatKeyValue(ev.CreatedAt.Format("2006-01-02 15:04"),
				fmt.Sprintf("%s via %s: %s", shortID(ev.RunID), ev.Channel, ev.Status)))
		}
	}

	return nil
}

// alertTarget summarizes where a config delivers to.
func alertTarget(cfg *core.AlertConfig) string {
	if cfg.Channel != core.ChannelWebhook {
		return ""
	}
	if url, ok := cfg.Settings["url"].(string); ok {
		return url
	}
	return ""
}

func runAlertsAdd(cmd *cobra.Command, name, channel, url, timeout string, minScore int, enabled bool) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	ch := core.AlertChannel(strings.ToLower(channel))
	if ch != core.ChannelLog && ch != core.ChannelWebhook {
		return fmt.Errorf("unknown channel %q (want log or webhook)", channel)
	}
	if minScore < 0 || minScore > 100 {
		return fmt.Errorf("min-score must be between 0 and 100, got %d", minScore)
	}

	var settings map[string]any
	if ch == core.ChannelWebhook {
		settings = map[string]any{"url": url}
		if timeout != "" {
			settings["timeout"] = timeout
		}
		if _, err := alert.DecodeWebhookSettings(settings); err != nil {
			return err
		}
	}

	cfg := &core.AlertConfig{
		Name:     name,
		Channel:  ch,
		Settings: settings,
		MinScore: minScore,
		Enabled:  enabled,
	}
	if err := cmdCtx.Store.CreateAlertConfig(cfg); err != nil {
		return fmt.Errorf("failed to create alert config: %w", err)
	}

	r := cmdCtx.Renderer
	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(cfg)
	}
	r.Success(fmt.Sprintf("created alert config %s (%s)", cfg.Name, cfg.ID))
	return nil
}

func runAlertsRemove(cmd *cobra.Command, nameOrID string) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	cfg, err := resolveAlertConfig(cmdCtx.Store, nameOrID)
	if err != nil {
		return err
	}
	if err := cmdCtx.Store.DeleteAlertConfig(cfg.ID); err != nil {
		return fmt.Errorf("failed to delete alert config: %w", err)
	}

	r := cmdCtx.Renderer
	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(map[string]string{"deleted": cfg.ID})
	}
	r.Success(fmt.Sprintf("removed alert config %s", cfg.Name))
	return nil
}

func runAlertsToggle(cmd *cobra.Command, nameOrID string, enable bool) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	cfg, err := resolveAlertConfig(cmdCtx.Store, nameOrID)
	if err != nil {
		return err
	}

	cfg.Enabled = enable
	if err := cmdCtx.Store.UpdateAlertConfig(cfg); err != nil {
		return fmt.Errorf("failed to update alert config: %w", err)
	}

	r := cmdCtx.Renderer
	verb := "enabled"
	if !enable {
		verb = "disabled"
	}
	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(cfg)
	}
	r.Success(fmt.Sprintf("%s alert config %s", verb, cfg.Name))
	return nil
}

func runAlertsTest(cmd *cobra.Command, nameOrID string) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	cfg, err := resolveAlertConfig(cmdCtx.Store, nameOrID)
	if err != nil {
		return err
	}

	r := cmdCtx.Renderer
	if err := cmdCtx.Alerts.Test(cmd.Context(), cfg.ID); err != nil {
		r.Failure(fmt.Sprintf("delivery failed: %v", err))
		return err
	}

	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(map[string]string{"status": "sent"})
	}
	r.Success(fmt.Sprintf("test alert delivered via %s", cfg.Channel))
	return nil
}
