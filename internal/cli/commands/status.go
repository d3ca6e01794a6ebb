package commands

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapdq/internal/cli/output"
	"github.com/leapstack-labs/leapdq/pkg/core"
)

// NewStatusCommand creates the status command.
func NewStatusCommand() *cobra.Command {
	var days int

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show pipeline health at a glance",
		Long: `Summarize the state database: sources, runs, check pass rates and the
average quality score, plus a per-day check timeline.`,
		Example: `  # Dashboard summary with a 7-day timeline
  leapdq status

  # Last 30 days as JSON
  leapdq status --days 30 --output json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStatus(cmd, days)
		},
	}

	cmd.Flags().IntVar(&days, "days", 7, "timeline window in days")

	return cmd
}

// statusOutput is the JSON output for the status command.
type statusOutput struct {
	Summary  *core.DashboardSummary `json:"summary"`
	Timeline []core.TimelineBucket  `json:"timeline"`
}

func runStatus(cmd *cobra.Command, days int) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	if days < 1 {
		days = 1
	}

	summary, err := cmdCtx.Store.Summary()
	if err != nil {
		return fmt.Errorf("failed to load summary: %w", err)
	}
	timeline, err := cmdCtx.Store.CheckTimeline(days)
	if err != nil {
		return fmt.Errorf("failed to load timeline: %w", err)
	}

	r := cmdCtx.Renderer
	switch r.EffectiveMode() {
	case output.ModeJSON:
		return r.JSON(statusOutput{Summary: summary, Timeline: timeline})
	case output.ModeMarkdown:
		return statusMarkdown(r, summary, timeline)
	default:
		return statusText(r, summary, timeline)
	}
}

func statusText(r *output.Renderer, summary *core.DashboardSummary, timeline []core.TimelineBucket) error {
	r.Header(1, "Pipeline Status")

	scoreStyle := r.Styles().ScoreStyle(int(summary.AvgQualityScore))
	r.Printf("  Sources:       %d\n", summary.TotalSources)
	r.Printf("  Runs:          %d\n", summary.TotalRuns)
	r.Printf("  Checks:        %d passed, %d failed, %d warnings\n",
		summary.ChecksPassed, summary.ChecksFailed, summary.ChecksWarning)
	r.Printf("  Pass rate:     %.1f%%\n", summary.PassRate)
	r.Printf("  Avg score:     %s\n", scoreStyle.Render(fmt.Sprintf("%.1f", summary.AvgQualityScore)))
	r.Printf("  Recent alerts: %d\n", summary.RecentAlerts)

	r.Println("")
	r.Header(2, fmt.Sprintf("Check Timeline (%d days)", len(timeline)))

	t := table.NewWriter()
	t.SetOutputMirror(r.Writer())
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"DATE", "PASSED", "FAILED", "WARNING"})
	for _, bucket := range timeline {
		t.AppendRow(table.Row{bucket.Date, bucket.Passed, bucket.Failed, bucket.Warning})
	}
	t.Render()

	return nil
}

func statusMarkdown(r *output.Renderer, summary *core.DashboardSummary, timeline []core.TimelineBucket) error {
	r.Println(output.FormatHeader(1, "Pipeline Status"))
	r.Println("")
	r.Println(output.FormatKeyValue("Sources", fmt.Sprintf("%d", summary.TotalSources)))
	r.Println(output.FormatKeyValue("Runs", fmt.Sprintf("%d", summary.TotalRuns)))
	r.Println(output.FormatKeyValue("Checks Passed", fmt.Sprintf("%d", summary.ChecksPassed)))
	r.Println(output.FormatKeyValue("Checks Failed", fmt.Sprintf("%d", summary.ChecksFailed)))
	r.Println(output.FormatKeyValue("Checks Warning", fmt.Sprintf("%d", summary.ChecksWarning)))
	r.Println(output.FormatKeyValue("Pass Rate", fmt.Sprintf("%.1f%%", summary.PassRate)))
	r.Println(output.FormatKeyValue("Avg Quality Score", fmt.Sprintf("%.1f", summary.AvgQualityScore)))
	r.Println(output.FormatKeyValue("Recent Alerts", fmt.Sprintf("%d", summary.RecentAlerts)))
	r.Println("")
	r.Println(output.FormatHeader(2, "Check Timeline"))
	r.Println("")
	r.Println("| date | passed | failed | warning |")
	r.Println("| --- | --- | --- | --- |")
	for _, bucket := range timeline {
		r.Printf("| %s | %d | %d | %d |\n", bucket.Date, bucket.Passed, bucket.Failed, bucket.Warning)
	}
	return nil
}
