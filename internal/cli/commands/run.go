package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapdq/internal/cli/output"
	"github.com/leapstack-labs/leapdq/internal/export"
	"github.com/leapstack-labs/leapdq/internal/pipeline"
	"github.com/leapstack-labs/leapdq/internal/state"
	"github.com/leapstack-labs/leapdq/pkg/core"
)

// RunOptions holds options for the run command.
type RunOptions struct {
	File       string
	Type       string
	ExportDir  string
	JSONOutput bool
}

// NewRunCommand creates the run command.
func NewRunCommand() *cobra.Command {
	opts := &RunOptions{}

	cmd := &cobra.Command{
		Use:   "run <source>",
		Short: "Run the quality pipeline for a source",
		Long: `Run the full Bronze → Silver → Gold pipeline for a source.

Bronze ingests the source's dataset, Silver applies the quality rules
registered for the source's domain, and Gold keeps the rows that passed
every blocking rule and scores the run. The command exits non-zero when
the run fails, so it can gate CI jobs and cron pipelines.`,
		Example: `  # Run the pipeline against the stored dataset
  leapdq run claims

  # Upload a file first, then run
  leapdq run claims --file data/claims.csv

  # Write the Gold rows of this run to a directory as CSV
  leapdq run claims --export ./out

  # Emit machine-readable progress, one JSON object per line
  leapdq run claims --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRun(cmd, args[0], opts)
		},
	}

	cmd.Flags().StringVarP(&opts.File, "file", "f", "", "upload a dataset file before running")
	cmd.Flags().StringVarP(&opts.Type, "type", "t", "", "content type of --file (csv or json, inferred from the extension when omitted)")
	cmd.Flags().StringVar(&opts.ExportDir, "export", "", "write this run's Gold dataset to a directory as CSV")
	cmd.Flags().BoolVar(&opts.JSONOutput, "json", false, "output progress as JSON lines")

	return cmd
}

func runRun(cmd *cobra.Command, sourceArg string, opts *RunOptions) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	src, err := resolveSource(cmdCtx.Store, sourceArg)
	if err != nil {
		return err
	}

	if opts.File != "" {
		if err := uploadDataset(cmdCtx, src, opts.File, opts.Type); err != nil {
			return err
		}
	}

	var runOpts pipeline.RunOptions
	if opts.ExportDir != "" {
		runOpts.Exporters = append(runOpts.Exporters, export.NewCSVSink(opts.ExportDir, cmdCtx.Logger))
	}

	r := cmdCtx.Renderer
	if opts.JSONOutput || r.EffectiveMode() == output.ModeJSON {
		return runWithJSON(cmd, cmdCtx, src, runOpts)
	}
	if r.IsTTY() {
		return runWithProgressUI(cmd, cmdCtx, src, runOpts)
	}
	return runWithText(cmd, cmdCtx, src, runOpts)
}

// uploadDataset attaches a local file to the source, replacing any
// previous upload. The payload is stored as received and parsed at run
// time, so a bad file fails the run's Bronze layer, not the upload.
func uploadDataset(cmdCtx *CommandContext, src *core.DataSource, path, explicitType string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read dataset file: %w", err)
	}

	ct, err := datasetContentType(explicitType, path)
	if err != nil {
		return err
	}

	ds := &core.RawDataset{SourceID: src.ID, ContentType: ct, Content: content}
	if err := cmdCtx.Store.SaveDataset(ds); err != nil {
		return fmt.Errorf("failed to save dataset: %w", err)
	}

	cmdCtx.Logger.Info("dataset uploaded",
		"source", src.Name,
		"content_type", ct,
		"bytes", len(content))
	return nil
}

// datasetContentType resolves the declared payload format from --type or
// the file extension.
func datasetContentType(explicit, filename string) (core.ContentType, error) {
	if explicit != "" {
		ct := core.ContentType(strings.ToLower(explicit))
		if !ct.Valid() {
			return "", fmt.Errorf("%w: unsupported content type %q (want csv or json)", core.ErrInvalid, explicit)
		}
		return ct, nil
	}

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv":
		return core.ContentTypeCSV, nil
	case ".json":
		return core.ContentTypeJSON, nil
	}
	return "", fmt.Errorf("%w: cannot infer content type of %q, pass --type csv or --type json", core.ErrInvalid, filename)
}

// runWithText drives the run with plain line-by-line progress, for
// pipes and CI logs where a live terminal UI would be noise.
func runWithText(cmd *cobra.Command, cmdCtx *CommandContext, src *core.DataSource, runOpts pipeline.RunOptions) error {
	r := cmdCtx.Renderer
	r.Header(1, fmt.Sprintf("Pipeline Run: %s", src.Name))

	var rulesDone, rulesTotal int
	runOpts.Progress = func(ev pipeline.ProgressEvent) {
		if ev.RuleKey != "" {
			rulesDone, rulesTotal = ev.RulesDone, ev.RulesTotal
			return
		}
		if !ev.Status.Terminal() {
			return
		}
		detail := ""
		if ev.Layer == core.LayerSilver && rulesTotal > 0 {
			detail = fmt.Sprintf("%d/%d rules", rulesDone, rulesTotal)
		}
		r.StatusLine(string(ev.Layer), layerStatusWord(ev.Status), detail)
	}

	start := time.Now()
	run, err := cmdCtx.Engine.Run(cmd.Context(), src.ID, runOpts)
	if err != nil {
		return err
	}

	r.Println("")
	return renderRunSummary(r, run, time.Since(start))
}

// runWithJSON emits one JSON object per line so callers can track
// progress programmatically.
func runWithJSON(cmd *cobra.Command, cmdCtx *CommandContext, src *core.DataSource, runOpts pipeline.RunOptions) error {
	w := cmdCtx.Renderer.Writer()
	start := time.Now()

	emitRunEvent(w, output.RunEvent{Event: "run_start", Source: src.Name})

	runOpts.Progress = func(ev pipeline.ProgressEvent) {
		if ev.RuleKey != "" {
			emitRunEvent(w, output.RunEvent{
				Event:      "rule_complete",
				RunID:      ev.RunID,
				Rule:       ev.RuleKey,
				RulesDone:  ev.RulesDone,
				RulesTotal: ev.RulesTotal,
			})
			return
		}
		emitRunEvent(w, output.RunEvent{
			Event:  "layer_update",
			RunID:  ev.RunID,
			Layer:  string(ev.Layer),
			Status: string(ev.Status),
		})
	}

	run, err := cmdCtx.Engine.Run(cmd.Context(), src.ID, runOpts)
	if err != nil {
		return err
	}

	emitRunEvent(w, output.RunEvent{
		Event:         "run_complete",
		RunID:         run.ID,
		Source:        src.Name,
		Status:        string(run.Status()),
		TotalRecords:  run.TotalRecords,
		PassedRecords: run.PassedRecords,
		QualityScore:  run.QualityScore,
		ChecksFailed:  countFailedChecks(cmdCtx.Store, run.ID),
		Error:         run.Error,
		TotalMS:       time.Since(start).Milliseconds(),
	})

	if run.Status() == core.RunStatusFailed {
		return fmt.Errorf("run %s failed: %s", shortID(run.ID), run.Error)
	}
	return nil
}

func emitRunEvent(w io.Writer, event output.RunEvent) {
	event.Timestamp = time.Now().UTC().Format(time.RFC3339)
	data, _ := json.Marshal(event)
	fmt.Fprintln(w, string(data))
}

func countFailedChecks(store *state.SQLStore, runID string) int {
	results, err := store.ListCheckResults(runID)
	if err != nil {
		return 0
	}
	failed := 0
	for _, res := range results {
		if res.Status == core.CheckFailed {
			failed++
		}
	}
	return failed
}

// renderRunSummary prints the terminal run record. A failed run is
// reported as an error so the process exits non-zero.
func renderRunSummary(r *output.Renderer, run *core.PipelineRun, elapsed time.Duration) error {
	styles := r.Styles()
	score := styles.ScoreStyle(run.QualityScore).Render(fmt.Sprintf("%d/100", run.QualityScore))

	switch run.Status() {
	case core.RunStatusCompleted:
		r.Success(fmt.Sprintf("run %s completed in %s", shortID(run.ID), elapsed.Round(time.Millisecond)))
	default:
		r.Failure(fmt.Sprintf("run %s failed in %s", shortID(run.ID), elapsed.Round(time.Millisecond)))
		if run.Error != "" {
			r.Muted("  " + run.Error)
		}
	}
	r.Printf("  Quality score %s, %d/%d records passed\n", score, run.PassedRecords, run.TotalRecords)

	if run.Status() == core.RunStatusFailed {
		return fmt.Errorf("run %s failed: %s", shortID(run.ID), run.Error)
	}
	return nil
}
