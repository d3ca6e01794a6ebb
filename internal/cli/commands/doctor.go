package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/leapstack-labs/leapdq/internal/alert"
	"github.com/leapstack-labs/leapdq/internal/cli/config"
	"github.com/leapstack-labs/leapdq/internal/cli/output"
	"github.com/leapstack-labs/leapdq/internal/state"
	"github.com/leapstack-labs/leapdq/pkg/core"
	"github.com/leapstack-labs/leapdq/pkg/rules"
)

// stuckRunAge is how long a run may stay in the running state before
// the doctor flags it.
const stuckRunAge = time.Hour

// DoctorOptions holds options for the doctor command.
type DoctorOptions struct {
	Format string
}

// NewDoctorCommand creates the doctor command.
func NewDoctorCommand() *cobra.Command {
	opts := &DoctorOptions{}
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Run a comprehensive pipeline health check",
		Long: `Analyze the LeapDQ setup for potential issues.

The doctor command inspects the configuration, the state store, the
rule registry, the project rule packs and the alert configs, and
provides a report including:
- Pipeline summary (sources, rules, runs, alert configs)
- Health checks grouped by category
- Health score (0-100)
- Actionable recommendations`,
		Example: `  # Run health check
  leapdq doctor

  # Output as JSON
  leapdq doctor --format json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDoctor(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Format, "format", "f", "", "output format: text, markdown, json")

	return cmd
}

// DoctorOutput is the JSON output for the doctor command.
type DoctorOutput struct {
	Summary         PipelineSummary `json:"summary"`
	HealthChecks    []HealthCheck   `json:"health_checks"`
	Score           int             `json:"score"`
	Recommendations []string        `json:"recommendations"`
	IssueCount      int             `json:"issue_count"`
}

// PipelineSummary contains setup-level statistics.
type PipelineSummary struct {
	Sources         int     `json:"sources"`
	Rules           int     `json:"rules"`
	Runs            int     `json:"runs"`
	AlertConfigs    int     `json:"alert_configs"`
	AvgQualityScore float64 `json:"avg_quality_score"`
}

// HealthCheck represents a single health check result.
type HealthCheck struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Group      string   `json:"group"`
	Status     string   `json:"status"` // "pass", "warn", "error"
	IssueCount int      `json:"issue_count"`
	Details    []string `json:"details,omitempty"`
}

func runDoctor(cmd *cobra.Command, opts *DoctorOptions) error {
	cfg := getConfig()
	logger := config.GetLogger(cmd.Context())

	mode := output.Mode(cfg.OutputFormat)
	if opts.Format != "" {
		mode = output.Mode(opts.Format)
	}
	r := output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), mode)

	// The doctor diagnoses a broken setup, so a store that fails to
	// open is a finding, not a command error.
	store, storeErr := openStore(cfg, logger)
	if storeErr == nil {
		defer func() { _ = store.Close() }()
	} else {
		store = nil
	}

	// Show spinner while checks run in TTY mode
	var spinner *output.Spinner
	if r.IsTTY() && r.EffectiveMode() == output.ModeText {
		spinner = r.NewSpinner("Running health checks...")
		spinner.Start()
	}

	doctorOutput := buildDoctorOutput(cfg, store, storeErr)

	if spinner != nil {
		spinner.Stop()
	}

	switch r.EffectiveMode() {
	case output.ModeJSON:
		return r.JSON(doctorOutput)
	case output.ModeMarkdown:
		return renderDoctorMarkdown(r, doctorOutput)
	default:
		return renderDoctorText(r, doctorOutput)
	}
}

func buildDoctorOutput(cfg *config.Config, store *state.SQLStore, storeErr error) *DoctorOutput {
	var checks []HealthCheck

	checks = append(checks, checkConfigFile(), checkRulesDir(cfg))
	checks = append(checks, checkStore(cfg, store, storeErr)...)

	packs, packRules := checkProjectPacks(cfg)
	checks = append(checks, checkRegistry(), packs)
	if store != nil {
		checks = append(checks, checkDomainCoverage(store))
		checks = append(checks, checkAlertSettings(store))
	}

	sort.Slice(checks, func(i, j int) bool {
		if checks[i].Group != checks[j].Group {
			return checks[i].Group < checks[j].Group
		}
		return checks[i].ID < checks[j].ID
	})

	summary := buildPipelineSummary(store, packRules)
	issueCount := 0
	for _, c := range checks {
		issueCount += c.IssueCount
	}

	return &DoctorOutput{
		Summary:         summary,
		HealthChecks:    checks,
		Score:           calculateHealthScore(checks, summary.Sources),
		Recommendations: generateRecommendations(checks),
		IssueCount:      issueCount,
	}
}

func buildPipelineSummary(store *state.SQLStore, projectRules int) PipelineSummary {
	summary := PipelineSummary{Rules: rules.Default().Count() + projectRules}

	if store == nil {
		return summary
	}

	if stats, err := store.Summary(); err == nil {
		summary.Sources = stats.TotalSources
		summary.Runs = stats.TotalRuns
		summary.AvgQualityScore = stats.AvgQualityScore
	}
	if configs, err := store.ListAlertConfigs(false); err == nil {
		summary.AlertConfigs = len(configs)
	}

	return summary
}

func checkConfigFile() HealthCheck {
	check := HealthCheck{ID: "CFG01", Name: "Config File", Group: "configuration", Status: "pass"}

	path := config.GetConfigFileUsed()
	if path == "" {
		check.Status = "warn"
		check.IssueCount = 1
		check.Details = []string{"no leapdq.yaml found, running on defaults"}
		return check
	}
	check.Details = []string{path}
	return check
}

func checkRulesDir(cfg *config.Config) HealthCheck {
	check := HealthCheck{ID: "CFG02", Name: "Rules Directory", Group: "configuration", Status: "pass"}

	if cfg.RulesDir == "" {
		return check
	}
	if _, err := os.Stat(cfg.RulesDir); err != nil {
		check.Status = "warn"
		check.IssueCount = 1
		check.Details = []string{fmt.Sprintf("rules directory %s not found", cfg.RulesDir)}
	}
	return check
}

func checkStore(cfg *config.Config, store *state.SQLStore, storeErr error) []HealthCheck {
	open := HealthCheck{ID: "ST01", Name: "State Store", Group: "state", Status: "pass"}
	if storeErr != nil {
		open.Status = "error"
		open.IssueCount = 1
		open.Details = []string{fmt.Sprintf("cannot open %s: %v", cfg.StatePath, storeErr)}
		return []HealthCheck{open}
	}

	migrations := HealthCheck{ID: "ST02", Name: "Schema Migrations", Group: "state", Status: "pass"}
	if version, err := store.GetMigrationVersion(); err != nil {
		migrations.Status = "error"
		migrations.IssueCount = 1
		migrations.Details = []string{fmt.Sprintf("cannot read schema version: %v", err)}
	} else {
		migrations.Details = []string{fmt.Sprintf("schema version %d", version)}
	}

	return []HealthCheck{open, migrations, checkStuckRuns(store)}
}

// checkStuckRuns flags runs that have sat in the running state long
// enough that their process is probably gone. Such runs block new runs
// of the same source until cleared.
func checkStuckRuns(store *state.SQLStore) HealthCheck {
	check := HealthCheck{ID: "ST03", Name: "Stuck Runs", Group: "state", Status: "pass"}

	sources, err := store.ListSources(true)
	if err != nil {
		check.Status = "error"
		check.IssueCount = 1
		check.Details = []string{fmt.Sprintf("cannot list sources: %v", err)}
		return check
	}

	cutoff := time.Now().UTC().Add(-stuckRunAge)
	for _, src := range sources {
		run, err := store.GetActiveRun(src.ID)
		if err != nil || run == nil {
			continue
		}
		if run.StartedAt.Before(cutoff) {
			check.IssueCount++
			check.Details = append(check.Details,
				fmt.Sprintf("run %s of %s running since %s", shortID(run.ID), src.Name, run.StartedAt.Format(time.RFC3339)))
		}
	}
	if check.IssueCount > 0 {
		check.Status = "warn"
	}
	return check
}

func checkRegistry() HealthCheck {
	check := HealthCheck{ID: "RU01", Name: "Rule Registry", Group: "rules", Status: "pass"}

	count := rules.Default().Count()
	if count == 0 {
		check.Status = "error"
		check.IssueCount = 1
		check.Details = []string{"no built-in rules registered"}
		return check
	}
	check.Details = []string{fmt.Sprintf("%d built-in rules", count)}
	return check
}

// checkProjectPacks parses every pack file individually so one bad
// file does not hide the state of the others. Returns the check and
// the number of rules the parseable packs contribute.
func checkProjectPacks(cfg *config.Config) (HealthCheck, int) {
	check := HealthCheck{ID: "RU02", Name: "Project Rule Packs", Group: "rules", Status: "pass"}

	if cfg.RulesDir == "" {
		return check, 0
	}
	entries, err := os.ReadDir(cfg.RulesDir)
	if err != nil {
		// CFG02 already covers a missing directory.
		return check, 0
	}

	ruleCount := 0
	packCount := 0
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		packCount++
		pack, err := rules.LoadPackFile(filepath.Join(cfg.RulesDir, e.Name()))
		if err != nil {
			check.IssueCount++
			check.Details = append(check.Details, err.Error())
			continue
		}
		ruleCount += len(pack.Rules)
	}

	if check.IssueCount > 0 {
		check.Status = "error"
	} else if packCount > 0 {
		check.Details = []string{fmt.Sprintf("%d packs, %d rules", packCount, ruleCount)}
	}
	return check, ruleCount
}

// checkDomainCoverage warns when registered sources live in a domain
// with no rules: their runs would pass vacuously.
func checkDomainCoverage(store *state.SQLStore) HealthCheck {
	check := HealthCheck{ID: "RU03", Name: "Domain Coverage", Group: "rules", Status: "pass"}

	sources, err := store.ListSources(false)
	if err != nil {
		check.Status = "error"
		check.IssueCount = 1
		check.Details = []string{fmt.Sprintf("cannot list sources: %v", err)}
		return check
	}

	seen := make(map[core.Domain]int)
	for _, src := range sources {
		seen[src.Domain]++
	}

	registry := rules.Default()
	domains := make([]core.Domain, 0, len(seen))
	for d := range seen {
		domains = append(domains, d)
	}
	sort.Slice(domains, func(i, j int) bool { return domains[i] < domains[j] })

	for _, d := range domains {
		if len(registry.RulesFor(d)) == 0 {
			check.IssueCount++
			check.Details = append(check.Details,
				fmt.Sprintf("%d source(s) in domain %s have no rules", seen[d], d))
		}
	}
	if check.IssueCount > 0 {
		check.Status = "warn"
	}
	return check
}

// checkAlertSettings decodes every webhook config's settings the way
// delivery would, so malformed urls or timeouts surface before a run
// tries to alert.
func checkAlertSettings(store *state.SQLStore) HealthCheck {
	check := HealthCheck{ID: "AL01", Name: "Alert Settings", Group: "alerts", Status: "pass"}

	configs, err := store.ListAlertConfigs(false)
	if err != nil {
		check.Status = "error"
		check.IssueCount = 1
		check.Details = []string{fmt.Sprintf("cannot list alert configs: %v", err)}
		return check
	}

	for _, cfg := range configs {
		if cfg.Channel != core.ChannelWebhook {
			continue
		}
		if _, err := alert.DecodeWebhookSettings(cfg.Settings); err != nil {
			check.IssueCount++
			check.Details = append(check.Details, fmt.Sprintf("%s: %v", cfg.Name, err))
		}
	}
	if check.IssueCount > 0 {
		check.Status = "error"
	}
	return check
}

// calculateHealthScore computes a health score from 0-100. Errors count
// double, and with more sources each individual issue weighs less.
func calculateHealthScore(checks []HealthCheck, sourceCount int) int {
	if len(checks) == 0 {
		return 100
	}

	score := 100.0

	basePenalty := 5.0
	if sourceCount > 10 {
		basePenalty = 3.0
	}
	if sourceCount > 50 {
		basePenalty = 2.0
	}

	for _, check := range checks {
		switch check.Status {
		case "error":
			score -= float64(check.IssueCount) * basePenalty * 2
		case "warn":
			score -= float64(check.IssueCount) * basePenalty
		}
	}

	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return int(score)
}

// generateRecommendations creates actionable recommendations based on findings.
func generateRecommendations(checks []HealthCheck) []string {
	var recommendations []string
	seen := make(map[string]bool)

	for _, check := range checks {
		if check.IssueCount == 0 {
			continue
		}
		rec := getRecommendation(check.ID)
		if rec != "" && !seen[rec] {
			recommendations = append(recommendations, rec)
			seen[rec] = true
		}
	}

	if len(recommendations) > 5 {
		recommendations = recommendations[:5]
	}
	return recommendations
}

// getRecommendation returns a recommendation for a specific check.
func getRecommendation(checkID string) string {
	switch checkID {
	case "CFG01":
		return "Run 'leapdq init' to create leapdq.yaml so settings are explicit"
	case "CFG02":
		return "Create the rules directory or point rules_dir at your packs"
	case "ST01":
		return "Fix state_path or file permissions so the state store can open"
	case "ST02":
		return "Check the state database file for corruption"
	case "ST03":
		return "Investigate runs stuck in the running state; they block new runs of their source"
	case "RU01":
		return "Rebuild the binary; no built-in rule packs are registered"
	case "RU02":
		return "Fix the rule pack files listed in the report"
	case "RU03":
		return "Add a rule pack for the uncovered domains or retire their sources"
	case "AL01":
		return "Fix the webhook settings on the listed alert configs"
	default:
		return ""
	}
}

func renderDoctorText(r *output.Renderer, out *DoctorOutput) error {
	styles := r.Styles()

	r.Println("")
	r.Println(styles.Header1.Render("LeapDQ Pipeline Health Report"))
	r.Println(styles.Muted.Render(strings.Repeat("=", 55)))
	r.Println("")

	r.Println(styles.Header2.Render("Pipeline Summary"))
	r.Printf("   Sources: %d | Rules: %d | Runs: %d | Alert configs: %d\n",
		out.Summary.Sources, out.Summary.Rules, out.Summary.Runs, out.Summary.AlertConfigs)
	if out.Summary.Runs > 0 {
		r.Printf("   Average quality score: %.1f\n", out.Summary.AvgQualityScore)
	}
	r.Println("")

	r.Println(styles.Header2.Render("Health Checks"))
	r.Println("")

	currentGroup := ""
	titleCaser := cases.Title(language.English)
	for _, check := range out.HealthChecks {
		if check.Group != currentGroup {
			currentGroup = check.Group
			r.Println(styles.Bold.Render("   " + titleCaser.String(currentGroup)))
			r.Println(styles.Muted.Render("   " + strings.Repeat("-", 40)))
		}

		icon := styles.StatusSuccess.String()
		switch check.Status {
		case "warn":
			icon = styles.StatusWarning.String()
		case "error":
			icon = styles.StatusFailed.String()
		}

		status := fmt.Sprintf("%s %s: %s", icon, check.ID, check.Name)
		if check.IssueCount > 0 {
			status += fmt.Sprintf(" (%d issues)", check.IssueCount)
		}
		r.Println("   " + status)

		for i, detail := range check.Details {
			if i >= 3 {
				r.Println(styles.Muted.Render(fmt.Sprintf("       ... and %d more", len(check.Details)-3)))
				break
			}
			r.Println(styles.Muted.Render("       - " + detail))
		}
	}
	r.Println("")

	r.Println(styles.Muted.Render(strings.Repeat("=", 55)))
	r.Printf("   Health Score: %s\n", styles.ScoreStyle(out.Score).Render(fmt.Sprintf("%d/100", out.Score)))
	r.Println("")

	if len(out.Recommendations) > 0 {
		r.Println(styles.Header2.Render("Recommendations"))
		for i, rec := range out.Recommendations {
			r.Printf("   %d. %s\n", i+1, rec)
		}
		r.Println("")
	}

	return nil
}

func renderDoctorMarkdown(r *output.Renderer, out *DoctorOutput) error {
	r.Println("# LeapDQ Pipeline Health Report")
	r.Println("")

	r.Println("## Pipeline Summary")
	r.Println("")
	r.Printf("- **Sources**: %d\n", out.Summary.Sources)
	r.Printf("- **Rules**: %d\n", out.Summary.Rules)
	r.Printf("- **Runs**: %d\n", out.Summary.Runs)
	r.Printf("- **Alert configs**: %d\n", out.Summary.AlertConfigs)
	if out.Summary.Runs > 0 {
		r.Printf("- **Average quality score**: %.1f\n", out.Summary.AvgQualityScore)
	}
	r.Println("")

	r.Println("## Health Checks")
	r.Println("")

	currentGroup := ""
	titleCaser := cases.Title(language.English)
	for _, check := range out.HealthChecks {
		if check.Group != currentGroup {
			currentGroup = check.Group
			r.Println("### " + titleCaser.String(currentGroup))
			r.Println("")
		}

		status := "PASS"
		switch check.Status {
		case "warn":
			status = "WARN"
		case "error":
			status = "ERROR"
		}

		r.Printf("- **[%s]** %s: %s", status, check.ID, check.Name)
		if check.IssueCount > 0 {
			r.Printf(" (%d issues)", check.IssueCount)
		}
		r.Println("")

		for _, detail := range check.Details {
			r.Printf("  - %s\n", detail)
		}
	}
	r.Println("")

	r.Println("## Health Score")
	r.Println("")
	r.Printf("**%d/100**\n", out.Score)
	r.Println("")

	if len(out.Recommendations) > 0 {
		r.Println("## Recommendations")
		r.Println("")
		for i, rec := range out.Recommendations {
			r.Printf("%d. %s\n", i+1, rec)
		}
		r.Println("")
	}

	return nil
}
