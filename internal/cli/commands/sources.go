package commands

import (
	"errors"
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapdq/internal/cli/output"
	"github.com/leapstack-labs/leapdq/internal/ingest"
	"github.com/leapstack-labs/leapdq/internal/state"
	"github.com/leapstack-labs/leapdq/pkg/core"
)

// NewSourcesCommand creates the sources command group.
func NewSourcesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sources",
		Short: "Manage data sources",
		Long: `Register, inspect and remove the data sources the pipeline runs against.

Output adapts to environment:
  - Terminal: Styled, colored output
  - Piped/Scripted: Markdown format (agent-friendly)

Use --output to override: auto, text, markdown, json`,
	}

	cmd.AddCommand(
		newSourcesListCommand(),
		newSourcesAddCommand(),
		newSourcesShowCommand(),
		newSourcesRemoveCommand(),
	)

	return cmd
}

func newSourcesListCommand() *cobra.Command {
	var includeDeleted bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List registered data sources",
		Example: `  # List all sources with their latest run
  leapdq sources list

  # Include soft-deleted sources
  leapdq sources list --all

  # List sources as JSON
  leapdq sources list --output json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSourcesList(cmd, includeDeleted)
		},
	}

	cmd.Flags().BoolVar(&includeDeleted, "all", false, "include soft-deleted sources")

	return cmd
}

func newSourcesAddCommand() *cobra.Command {
	var (
		domain      string
		description string
		seed        int64
		records     int
	)

	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Register a new data source",
		Long: `Register a data source with the pipeline.

Sources without an uploaded dataset produce deterministic demo records
from their domain generator, seeded by --seed.`,
		Example: `  # Register an insurance claims source with 500 generated records
  leapdq sources add claims --domain insurance --records 500

  # Register a source for uploaded data
  leapdq sources add payments --domain banking --description "card settlements"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSourcesAdd(cmd, args[0], domain, description, seed, records)
		},
	}

	cmd.Flags().StringVar(&domain, "domain", string(core.DomainCustom), "rule domain: insurance, banking or custom")
	cmd.Flags().StringVar(&description, "description", "", "free-form description")
	cmd.Flags().Int64Var(&seed, "seed", 0, "seed for the demo data generator")
	cmd.Flags().IntVar(&records, "records", 0, fmt.Sprintf("generated record count (default %d)", ingest.DefaultGenerateRecords))

	return cmd
}

func newSourcesShowCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <source>",
		Short: "Show a source and its recent runs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSourcesShow(cmd, args[0])
		},
	}

	return cmd
}

func newSourcesRemoveCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "rm <source>",
		Aliases: []string{"remove"},
		Short:   "Remove a data source",
		Long: `Remove a data source.

Sources that pipeline runs reference are soft-deleted so run history
stays intact; sources that never ran are removed outright.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSourcesRemove(cmd, args[0])
		},
	}

	return cmd
}

// resolveSource finds a source by id first, then by name.
func resolveSource(store *state.SQLStore, nameOrID string) (*core.DataSource, error) {
	src, err := store.GetSource(nameOrID)
	if err == nil {
		return src, nil
	}
	if !errors.Is(err, core.ErrNotFound) {
		return nil, err
	}
	return store.GetSourceByName(nameOrID)
}

func runSourcesList(cmd *cobra.Command, includeDeleted bool) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	sources, err := cmdCtx.Store.ListSources(includeDeleted)
	if err != nil {
		return fmt.Errorf("failed to list sources: %w", err)
	}

	r := cmdCtx.Renderer
	switch r.EffectiveMode() {
	case output.ModeJSON:
		return sourcesJSON(cmdCtx, sources)
	case output.ModeMarkdown:
		return sourcesMarkdown(cmdCtx, sources)
	default:
		return sourcesText(cmdCtx, sources)
	}
}

// sourcesText outputs the source listing as a table.
func sourcesText(cmdCtx *CommandContext, sources []*core.DataSource) error {
	r := cmdCtx.Renderer
	r.Header(1, fmt.Sprintf("Data Sources (%d total)", len(sources)))

	if len(sources) == 0 {
		r.Muted("No sources registered. Add one with: leapdq sources add <name>")
		return nil
	}

	t := table.NewWriter()
	t.SetOutputMirror(r.Writer())
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"NAME", "DOMAIN", "RECORDS", "LAST RUN", "SCORE"})

	for _, src := range sources {
		lastRun, score := "-", "-"
		if run, err := cmdCtx.Store.LatestRun(src.ID); err == nil && run != nil {
			lastRun = string(run.Status())
			score = fmt.Sprintf("%d", run.QualityScore)
		}
		name := src.Name
		if src.Deleted() {
			name += " (deleted)"
		}
		t.AppendRow(table.Row{name, string(src.Domain), src.RecordCount, lastRun, score})
	}

	t.Render()
	return nil
}

// sourcesMarkdown outputs the source listing in markdown format.
func sourcesMarkdown(cmdCtx *CommandContext, sources []*core.DataSource) error {
	r := cmdCtx.Renderer
	r.Println(output.FormatHeader(1, fmt.Sprintf("Data Sources (%d total)", len(sources))))
	r.Println("")

	for _, src := range sources {
		r.Println(output.FormatHeader(2, src.Name))
		r.Println(output.FormatKeyValue("ID", src.ID))
		r.Println(output.FormatKeyValue("Domain", string(src.Domain)))
		if src.Description != "" {
			r.Println(output.FormatKeyValue("Description", src.Description))
		}
		r.Println(output.FormatKeyValue("Records", fmt.Sprintf("%d", src.RecordCount)))
		if src.Deleted() {
			r.Println(output.FormatKeyValue("Deleted", src.DeletedAt.Format(time.RFC3339)))
		}

		if run, err := cmdCtx.Store.LatestRun(src.ID); err == nil && run != nil {
			r.Println(output.FormatKeyValue("Last Run", string(run.Status())))
			r.Println(output.FormatKeyValue("Quality Score", fmt.Sprintf("%d", run.QualityScore)))
		}

		r.Println("")
	}

	return nil
}

// sourcesJSON outputs the source listing in JSON format.
func sourcesJSON(cmdCtx *CommandContext, sources []*core.DataSource) error {
	out := output.SourcesOutput{
		Sources: make([]output.SourceInfo, 0, len(sources)),
		Summary: output.SourcesSummary{
			TotalSources: len(sources),
			ByDomain:     make(map[string]int),
		},
	}

	for _, src := range sources {
		out.Sources = append(out.Sources, buildSourceInfo(cmdCtx.Store, src))
		out.Summary.ByDomain[string(src.Domain)]++
	}

	return cmdCtx.Renderer.JSON(out)
}

// buildSourceInfo assembles the JSON view of one source, including its
// latest run when there is one.
func buildSourceInfo(store *state.SQLStore, src *core.DataSource) output.SourceInfo {
	info := output.SourceInfo{
		ID:          src.ID,
		Name:        src.Name,
		Domain:      string(src.Domain),
		Description: src.Description,
		RecordCount: src.RecordCount,
		CreatedAt:   src.CreatedAt.Format(time.RFC3339),
		Deleted:     src.Deleted(),
	}

	if run, err := store.LatestRun(src.ID); err == nil && run != nil {
		var errPtr *string
		if run.Error != "" {
			errPtr = &run.Error
		}
		completedAt := ""
		if run.CompletedAt != nil {
			completedAt = run.CompletedAt.Format(time.RFC3339)
		}
		info.LastRun = &output.LastRunInfo{
			RunID:         run.ID,
			Status:        string(run.Status()),
			QualityScore:  run.QualityScore,
			TotalRecords:  run.TotalRecords,
			PassedRecords: run.PassedRecords,
			CompletedAt:   completedAt,
			Error:         errPtr,
		}
	}

	return info
}

func runSourcesAdd(cmd *cobra.Command, name, domain, description string, seed int64, records int) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	parsed, ok := core.ParseDomain(domain)
	if !ok {
		return fmt.Errorf("unknown domain %q (want insurance, banking or custom)", domain)
	}
	if records > ingest.MaxGenerateRecords {
		return fmt.Errorf("record count %d exceeds maximum %d", records, ingest.MaxGenerateRecords)
	}
	if records <= 0 {
		records = ingest.DefaultGenerateRecords
	}

	src := &core.DataSource{
		Name:        name,
		Domain:      parsed,
		Description: description,
		Seed:        seed,
		RecordCount: records,
	}
	if err := cmdCtx.Store.CreateSource(src); err != nil {
		return fmt.Errorf("failed to register source: %w", err)
	}

	r := cmdCtx.Renderer
	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(buildSourceInfo(cmdCtx.Store, src))
	}

	r.Success(fmt.Sprintf("registered source %s (%s)", src.Name, src.ID))
	r.Muted(fmt.Sprintf("  domain=%s records=%d seed=%d", src.Domain, src.RecordCount, src.Seed))
	return nil
}

func runSourcesShow(cmd *cobra.Command, nameOrID string) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	src, err := resolveSource(cmdCtx.Store, nameOrID)
	if err != nil {
		return err
	}

	runs, err := cmdCtx.Store.ListRunsBySource(src.ID, 5)
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}

	r := cmdCtx.Renderer
	switch r.EffectiveMode() {
	case output.ModeJSON:
		return r.JSON(struct {
			Source output.SourceInfo   `json:"source"`
			Runs   []*core.PipelineRun `json:"recent_runs"`
		}{buildSourceInfo(cmdCtx.Store, src), runs})
	case output.ModeMarkdown:
		r.Println(output.FormatHeader(1, src.Name))
		r.Println(output.FormatKeyValue("ID", src.ID))
		r.Println(output.FormatKeyValue("Domain", string(src.Domain)))
		if src.Description != "" {
			r.Println(output.FormatKeyValue("Description", src.Description))
		}
		r.Println(output.FormatKeyValue("Records", fmt.Sprintf("%d", src.RecordCount)))
		r.Println(output.FormatKeyValue("Created", src.CreatedAt.Format(time.RFC3339)))
		for _, run := range runs {
			r.Println("")
			r.Println(output.FormatHeader(2, fmt.Sprintf("Run %s", run.ID)))
			r.Println(output.FormatKeyValue("Status", string(run.Status())))
			r.Println(output.FormatKeyValue("Score", fmt.Sprintf("%d", run.QualityScore)))
			r.Println(output.FormatKeyValue("Passed", fmt.Sprintf("%d/%d", run.PassedRecords, run.TotalRecords)))
		}
		return nil
	default:
		r.Header(1, src.Name)
		r.Printf("  ID:      %s\n", src.ID)
		r.Printf("  Domain:  %s\n", src.Domain)
		if src.Description != "" {
			r.Printf("  About:   %s\n", src.Description)
		}
		r.Printf("  Records: %d\n", src.RecordCount)
		r.Printf("  Created: %s\n", src.CreatedAt.Format("2006-01-02 15:04"))

		if len(runs) == 0 {
			r.Println("")
			r.Muted("No runs yet. Start one with: leapdq run " + src.Name)
			return nil
		}

		r.Println("")
		r.Header(2, "Recent Runs")
		t := table.NewWriter()
		t.SetOutputMirror(r.Writer())
		t.SetStyle(table.StyleLight)
		t.AppendHeader(table.Row{"RUN", "STATUS", "SCORE", "PASSED", "COMPLETED"})
		for _, run := range runs {
			completed := "-"
			if run.CompletedAt != nil {
				completed = run.CompletedAt.Format("2006-01-02 15:04")
			}
			t.AppendRow(table.Row{
				shortID(run.ID),
				string(run.Status()),
				run.QualityScore,
				fmt.Sprintf("%d/%d", run.PassedRecords, run.TotalRecords),
				completed,
			})
		}
		t.Render()
		return nil
	}
}

func runSourcesRemove(cmd *cobra.Command, nameOrID string) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	src, err := resolveSource(cmdCtx.Store, nameOrID)
	if err != nil {
		return err
	}

	if err := cmdCtx.Store.DeleteSource(src.ID); err != nil {
		return fmt.Errorf("failed to remove source: %w", err)
	}

	r := cmdCtx.Renderer
	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(map[string]string{"deleted": src.ID})
	}
	r.Success(fmt.Sprintf("removed source %s", src.Name))
	return nil
}

// shortID shortens a UUID for table display.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
