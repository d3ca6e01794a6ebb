package commands

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapdq/internal/cli/config"
	"github.com/leapstack-labs/leapdq/internal/cli/output"
	"github.com/leapstack-labs/leapdq/internal/state"
	"github.com/leapstack-labs/leapdq/pkg/core"
)

// NewInitCommand creates the init command.
func NewInitCommand() *cobra.Command {
	var force bool
	var demo bool

	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Initialize a new LeapDQ project",
		Long: `Initialize a new LeapDQ project with default configuration.

This creates:
  - leapdq.yaml configuration file
  - rules/ directory with a starter rule pack
  - data/orders.csv sample dataset
  - .leapdq/state.db state database, migrated and ready

Use --demo to also register three demo sources: generated insurance
claims, generated banking transactions, and the sample orders upload.`,
		Example: `  # Initialize in the current directory
  leapdq init

  # Initialize with demo sources ready to run
  leapdq init --demo

  # Initialize in a new directory
  leapdq init my-project --demo

  # Force overwrite existing configuration
  leapdq init --force`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}
			return runInit(cmd, dir, force, demo)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "overwrite existing configuration")
	cmd.Flags().BoolVar(&demo, "demo", false, "register demo sources ready to run")

	return cmd
}

func runInit(cmd *cobra.Command, dir string, force, demo bool) error {
	cfg := getConfig()
	logger := config.GetLogger(cmd.Context())
	r := output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), output.Mode(cfg.OutputFormat))

	if dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	configPath := filepath.Join(dir, "leapdq.yaml")
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("leapdq.yaml already exists, use --force to overwrite")
	}

	if err := copyTemplate(dir, force); err != nil {
		return fmt.Errorf("failed to initialize project: %w", err)
	}

	// Open and migrate the state database up front so the first run or
	// serve does not pay migration latency.
	initCfg := &config.Config{StatePath: filepath.Join(dir, config.DefaultStateFile)}
	store, err := openStore(initCfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	files, err := listTemplateFiles()
	if err != nil {
		return err
	}
	for _, f := range files {
		r.StatusLine(f, "success", "")
	}
	r.StatusLine(config.DefaultStateFile, "success", "")

	if demo {
		r.Println("")
		r.Header(2, "Demo Sources")
		if err := seedDemoSources(store, r); err != nil {
			return err
		}
	}

	r.Println("")
	r.Success("LeapDQ project initialized!")
	r.Println("")
	r.Println("Next steps:")
	if demo {
		r.Println("  leapdq run claims     Validate the generated insurance claims")
		r.Println("  leapdq run orders     Validate the sample orders upload")
		r.Println("  leapdq status         See the quality dashboard")
		r.Println("  leapdq serve          Start the API server")
	} else {
		r.Println("  1. Register a source with 'leapdq sources add <name> --domain <domain>'")
		r.Println("  2. Run it with 'leapdq run <name>' (add --file to upload data first)")
		r.Println("  3. Tune the rule pack in rules/")
	}

	return nil
}

// demoSources are registered by init --demo. The generated sources get
// fixed seeds so demo runs reproduce the same defects everywhere.
var demoSources = []struct {
	name        string
	domain      core.Domain
	description string
	seed        int64
	records     int
}{
	{"claims", core.DomainInsurance, "Generated insurance claims with seeded defects", 42, 500},
	{"transactions", core.DomainBanking, "Generated banking transactions with seeded defects", 7, 1000},
	{"orders", core.DomainCustom, "Sample order upload from data/orders.csv", 0, 0},
}

func seedDemoSources(store *state.SQLStore, r *output.Renderer) error {
	for _, d := range demoSources {
		if _, err := store.GetSourceByName(d.name); err == nil {
			r.StatusLine(d.name, "skipped", "already registered")
			continue
		} else if !errors.Is(err, core.ErrNotFound) {
			return err
		}

		src := &core.DataSource{
			Name:        d.name,
			Domain:      d.domain,
			Description: d.description,
			Seed:        d.seed,
			RecordCount: d.records,
		}
		if err := store.CreateSource(src); err != nil {
			return err
		}

		// Custom sources have no generator; the demo ships its data.
		if d.domain == core.DomainCustom {
			content, err := templateFile("data/orders.csv")
			if err != nil {
				return err
			}
			ds := &core.RawDataset{SourceID: src.ID, ContentType: core.ContentTypeCSV, Content: content}
			if err := store.SaveDataset(ds); err != nil {
				return err
			}
		}

		r.StatusLine(d.name, "success", string(d.domain))
	}
	return nil
}
