package commands

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapdq/internal/alert"
	"github.com/leapstack-labs/leapdq/internal/cli/config"
	"github.com/leapstack-labs/leapdq/internal/cli/output"
	"github.com/leapstack-labs/leapdq/internal/export"
	"github.com/leapstack-labs/leapdq/internal/pipeline"
	"github.com/leapstack-labs/leapdq/internal/state"
	"github.com/leapstack-labs/leapdq/pkg/rules"

	// Register built-in rule packs via init()
	_ "github.com/leapstack-labs/leapdq/pkg/rules/packs"
)

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg      *config.Config
	Logger   *slog.Logger
	Store    *state.SQLStore
	Registry *rules.Registry
	Alerts   *alert.Evaluator
	Engine   *pipeline.Engine
	Renderer *output.Renderer
}

// NewCommandContext creates a CommandContext with store, registry,
// pipeline engine and renderer. Returns the context and a cleanup
// function that must be called (typically via defer).
func NewCommandContext(cmd *cobra.Command) (*CommandContext, func(), error) {
	cfg := getConfig()
	logger := config.GetLogger(cmd.Context())

	store, err := openStore(cfg, logger)
	if err != nil {
		return nil, nil, err
	}

	registry, err := loadRegistry(cfg)
	if err != nil {
		_ = store.Close()
		return nil, nil, err
	}

	alerts, err := alert.NewEvaluator(alert.Config{
		Store:  store,
		Logger: logger,
	})
	if err != nil {
		_ = store.Close()
		return nil, nil, err
	}

	eng, err := createEngine(cfg, store, registry, alerts, logger)
	if err != nil {
		_ = store.Close()
		return nil, nil, err
	}

	mode := output.Mode(cfg.OutputFormat)
	r := output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), mode)

	cleanup := func() {
		_ = store.Close()
	}

	return &CommandContext{
		Cfg:      cfg,
		Logger:   logger,
		Store:    store,
		Registry: registry,
		Alerts:   alerts,
		Engine:   eng,
		Renderer: r,
	}, cleanup, nil
}

// NewCommandContextWithoutStore creates a CommandContext without a
// store or engine. Useful for commands that don't need database access.
func NewCommandContextWithoutStore(cmd *cobra.Command) *CommandContext {
	cfg := getConfig()
	logger := config.GetLogger(cmd.Context())
	mode := output.Mode(cfg.OutputFormat)
	r := output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), mode)

	return &CommandContext{
		Cfg:      cfg,
		Logger:   logger,
		Renderer: r,
	}
}

// Helper functions shared across commands

// getConfig returns the current configuration.
// It uses config.GetCurrentConfig() if available, otherwise falls back
// to environment variables.
func getConfig() *config.Config {
	if cfg := config.GetCurrentConfig(); cfg != nil {
		return cfg
	}

	// Fallback: read from environment with defaults
	statePath := getEnvOrDefault("LEAPDQ_STATE_PATH", config.DefaultStateFile)
	rulesDir := getEnvOrDefault("LEAPDQ_RULES_DIR", config.DefaultRulesDir)
	verbose := os.Getenv("LEAPDQ_VERBOSE") == "true"
	outputFormat := getEnvOrDefault("LEAPDQ_OUTPUT", config.DefaultOutput)

	return &config.Config{
		StatePath:    statePath,
		RulesDir:     rulesDir,
		Verbose:      verbose,
		OutputFormat: outputFormat,
		Server: config.ServerConfig{
			Port:            config.DefaultServerPort,
			MaxConns:        config.DefaultServerMaxConns,
			Watch:           true,
			ShutdownTimeout: config.DefaultShutdownTimeout,
		},
	}
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

// openStore opens the state database and applies pending migrations.
func openStore(cfg *config.Config, logger *slog.Logger) (*state.SQLStore, error) {
	// Ensure the state directory exists for file-backed SQLite
	if cfg.StatePath != ":memory:" && !strings.HasPrefix(cfg.StatePath, "postgres") {
		stateDir := filepath.Dir(cfg.StatePath)
		if stateDir != "." && stateDir != "" {
			if err := os.MkdirAll(stateDir, 0750); err != nil {
				return nil, err
			}
		}
	}

	store := state.NewStore(logger)
	if err := store.Open(cfg.StatePath); err != nil {
		return nil, err
	}
	if err := store.Migrate(); err != nil {
		_ = store.Close()
		return nil, err
	}
	return store, nil
}

// loadRegistry returns the rule registry: built-in packs plus any
// project packs found in the rules directory.
func loadRegistry(cfg *config.Config) (*rules.Registry, error) {
	registry := rules.Default()
	if cfg.RulesDir != "" {
		if _, err := os.Stat(cfg.RulesDir); err == nil {
			if _, err := rules.ApplyDir(registry, cfg.RulesDir); err != nil {
				return nil, err
			}
		}
	}
	return registry, nil
}

func createEngine(cfg *config.Config, store *state.SQLStore, registry *rules.Registry, alerts *alert.Evaluator, logger *slog.Logger) (*pipeline.Engine, error) {
	var exporters []pipeline.Exporter
	if cfg.Export.Dir != "" {
		exporters = append(exporters, export.NewCSVSink(cfg.Export.Dir, logger))
	}
	if cfg.Export.DuckDB != "" {
		exporters = append(exporters, export.NewDuckDBSink(cfg.Export.DuckDB, logger))
	}

	return pipeline.New(pipeline.Config{
		Store:     store,
		Registry:  registry,
		Alerts:    alerts,
		Exporters: exporters,
		Logger:    logger,
	})
}
