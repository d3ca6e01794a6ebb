package commands

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapdq/internal/cli/output"
	"github.com/leapstack-labs/leapdq/internal/lineage"
	"github.com/leapstack-labs/leapdq/pkg/core"
)

// NewLineageCommand creates the lineage command.
func NewLineageCommand() *cobra.Command {
	var maxRuns int

	cmd := &cobra.Command{
		Use:   "lineage <source>",
		Short: "Show how a source's data moved through the layers",
		Long: `Display the Bronze, Silver and Gold layer states from the most recent
run of a source, the quality checks that ran, and the run history.

The lineage shows where records were dropped and why, helping you trace
a low quality score back to the rules that caused it.`,
		Example: `  # Show lineage for a source
  leapdq lineage claims

  # Lineage as JSON (full check details)
  leapdq lineage claims --output json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLineage(cmd, args[0], maxRuns)
		},
	}

	cmd.Flags().IntVar(&maxRuns, "runs", 5, "number of historical runs to display (text mode)")

	return cmd
}

func runLineage(cmd *cobra.Command, nameOrID string, maxRuns int) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	src, err := resolveSource(cmdCtx.Store, nameOrID)
	if err != nil {
		return err
	}

	recorder := lineage.NewRecorder(cmdCtx.Store, cmdCtx.Logger)
	view, err := recorder.Snapshot(cmd.Context(), src.ID)
	if err != nil {
		return fmt.Errorf("failed to build lineage: %w", err)
	}

	r := cmdCtx.Renderer
	switch r.EffectiveMode() {
	case output.ModeJSON:
		return r.JSON(view)
	case output.ModeMarkdown:
		return lineageMarkdown(r, view)
	default:
		return lineageText(r, view, maxRuns)
	}
}

// layerStatusWord maps a layer status to the renderer's status icons.
func layerStatusWord(status core.LayerStatus) string {
	switch status {
	case core.LayerFailed:
		return "failed"
	case core.LayerRunning:
		return "warning"
	case core.LayerPending:
		return "skipped"
	default:
		return "success"
	}
}

// layerDetail renders the per-layer count with its unit.
func layerDetail(snap core.LayerSnapshot) string {
	switch snap.Layer {
	case core.LayerBronze:
		return fmt.Sprintf("%s (%d records)", snap.Description, snap.Count)
	case core.LayerSilver:
		return fmt.Sprintf("%s (%d checks)", snap.Description, snap.Count)
	default:
		return fmt.Sprintf("%s (score %d)", snap.Description, snap.Count)
	}
}

// lineageText outputs lineage in styled text format.
func lineageText(r *output.Renderer, view *core.LineageView, maxRuns int) error {
	r.Header(1, fmt.Sprintf("Lineage: %s", view.Source.Name))

	for _, snap := range []core.LayerSnapshot{view.Bronze, view.Silver, view.Gold} {
		r.StatusLine(string(snap.Layer), layerStatusWord(snap.Status), layerDetail(snap))
	}

	if len(view.Runs) == 0 {
		r.Println("")
		r.Muted("No runs yet. Start one with: leapdq run " + view.Source.Name)
		return nil
	}

	if len(view.Checks) > 0 {
		r.Println("")
		r.Header(2, fmt.Sprintf("Quality Checks (%d)", len(view.Checks)))

		t := table.NewWriter()
		t.SetOutputMirror(r.Writer())
		t.SetStyle(table.StyleLight)
		t.AppendHeader(table.Row{"RULE", "TYPE", "STATUS", "VIOLATIONS"})
		for _, check := range view.Checks {
			t.AppendRow(table.Row{
				check.RuleKey,
				string(check.CheckType),
				string(check.Status),
				check.Details.ViolationCount,
			})
		}
		t.Render()
	}

	r.Println("")
	r.Header(2, "Run History")

	runs := view.Runs
	if maxRuns > 0 && len(runs) > maxRuns {
		runs = runs[:maxRuns]
	}

	t := table.NewWriter()
	t.SetOutputMirror(r.Writer())
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"RUN", "STATUS", "SCORE", "PASSED", "STARTED"})
	for _, run := range runs {
		t.AppendRow(table.Row{
			shortID(run.ID),
			string(run.Status()),
			run.QualityScore,
			fmt.Sprintf("%d/%d", run.PassedRecords, run.TotalRecords),
			run.StartedAt.Format("2006-01-02 15:04"),
		})
	}
	t.Render()
	if len(view.Runs) > len(runs) {
		r.Muted(fmt.Sprintf("(%d older runs not shown; use --runs to widen)", len(view.Runs)-len(runs)))
	}

	return nil
}

// lineageMarkdown outputs lineage in markdown format.
func lineageMarkdown(r *output.Renderer, view *core.LineageView) error {
	r.Println(output.FormatHeader(1, fmt.Sprintf("Lineage: %s", view.Source.Name)))
	r.Println("")

	for _, snap := range []core.LayerSnapshot{view.Bronze, view.Silver, view.Gold} {
		r.Println(output.FormatHeader(2, string(snap.Layer)))
		r.Println(output.FormatKeyValue("Status", string(snap.Status)))
		r.Println(output.FormatKeyValue("Description", snap.Description))
		r.Println(output.FormatKeyValue("Count", fmt.Sprintf("%d", snap.Count)))
		r.Println("")
	}

	if len(view.Checks) > 0 {
		r.Println(output.FormatHeader(2, "Quality Checks"))
		r.Println("")
		r.Println("| rule | type | status | violations |")
		r.Println("| --- | --- | --- | --- |")
		for _, check := range view.Checks {
			r.Printf("| %s | %s | %s | %d |\n",
				check.RuleKey, check.CheckType, check.Status, check.Details.ViolationCount)
		}
		r.Println("")
	}

	r.Println(output.FormatHeader(2, "Run History"))
	r.Println("")
	for _, run := range view.Runs {
		r.Println(output.FormatKeyValue(run.ID,
			fmt.Sprintf("%s, score %d, %d/%d passed", run.Status(), run.QualityScore, run.PassedRecords, run.TotalRecords)))
	}

	return nil
}
