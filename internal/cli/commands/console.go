package commands

import (
	"database/sql"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapdq/internal/cli/config"

	// Drivers for direct state database access.
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// resolveStatePath returns the state database location from config or the default.
func resolveStatePath(cfg *config.Config) string {
	if cfg.StatePath != "" {
		return cfg.StatePath
	}
	return config.DefaultStateFile
}

// consoleDB wraps a read-only state database handle with the dialect
// flag the introspection queries need.
type consoleDB struct {
	*sql.DB
	postgres bool
}

// openConsoleDB opens the state database read-only. DSNs starting with
// postgres:// or postgresql:// select the Postgres driver; anything
// else is treated as a SQLite path.
func openConsoleDB(statePath string) (*consoleDB, error) {
	if strings.HasPrefix(statePath, "postgres://") || strings.HasPrefix(statePath, "postgresql://") {
		db, err := sql.Open("pgx", statePath)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		// One pooled connection so the read-only session setting holds
		// for every statement.
		db.SetMaxOpenConns(1)
		if _, err := db.Exec("SET SESSION CHARACTERISTICS AS TRANSACTION READ ONLY"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to open database read-only: %w", err)
		}
		return &consoleDB{DB: db, postgres: true}, nil
	}

	if _, err := os.Stat(statePath); os.IsNotExist(err) {
		return nil, fmt.Errorf("state database not found at %s (run 'leapdq init' first)", statePath)
	}
	db, err := sql.Open("sqlite", statePath+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return &consoleDB{DB: db}, nil
}

// ConsoleOptions holds options for the console command.
type ConsoleOptions struct {
	Format string
	Input  string
}

// NewConsoleCommand creates the console command.
func NewConsoleCommand() *cobra.Command {
	opts := &ConsoleOptions{}

	cmd := &cobra.Command{
		Use:   "console [SQL]",
		Short: "Inspect the state database",
		Long: `Query the LeapDQ state database directly.

Execute SQL against the state store to inspect sources, runs, check
results and alert history. The database is opened read-only, so
console sessions can never corrupt pipeline state. Supports multiple
output formats for scripting and integration.

When invoked without arguments on a terminal, enters an interactive
shell.`,
		Example: `  # Execute SQL directly
  leapdq console "SELECT name, domain FROM sources"

  # List available tables
  leapdq console tables

  # Show schema for a table
  leapdq console schema runs

  # Output as JSON
  leapdq console "SELECT * FROM runs LIMIT 5" --format json

  # Interactive shell
  leapdq console`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConsole(cmd, args, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Format, "format", "f", "table", "output format: table, json, csv, md")
	cmd.Flags().StringVarP(&opts.Input, "input", "i", "", "read SQL from file")

	cmd.AddCommand(newConsoleTablesCommand(opts))
	cmd.AddCommand(newConsoleSchemaCommand(opts))

	return cmd
}

func runConsole(cmd *cobra.Command, args []string, opts *ConsoleOptions) error {
	cmdCtx := NewCommandContextWithoutStore(cmd)
	statePath := resolveStatePath(cmdCtx.Cfg)

	var sqlQuery string

	switch {
	case len(args) > 0:
		sqlQuery = strings.Join(args, " ")
	case opts.Input != "":
		content, err := os.ReadFile(opts.Input)
		if err != nil {
			return fmt.Errorf("failed to read file: %w", err)
		}
		sqlQuery = string(content)
	case !isTerminal(os.Stdin):
		content, err := io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("failed to read stdin: %w", err)
		}
		sqlQuery = string(content)
	default:
		return runConsoleREPL(cmd, statePath, opts)
	}

	db, err := openConsoleDB(statePath)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	sqlQuery = strings.TrimSuffix(strings.TrimSpace(sqlQuery), ";")
	return executeAndRenderQuery(cmd, db, sqlQuery, opts.Format)
}

// newConsoleTablesCommand creates the tables subcommand.
func newConsoleTablesCommand(opts *ConsoleOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "tables",
		Short: "List the state database tables",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmdCtx := NewCommandContextWithoutStore(cmd)
			db, err := openConsoleDB(resolveStatePath(cmdCtx.Cfg))
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()
			return listTablesFromDB(cmd.Context(), cmd.OutOrStdout(), db, opts.Format)
		},
	}
}

// newConsoleSchemaCommand creates the schema subcommand.
func newConsoleSchemaCommand(opts *ConsoleOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "schema <table>",
		Short: "Show schema for a table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmdCtx := NewCommandContextWithoutStore(cmd)
			db, err := openConsoleDB(resolveStatePath(cmdCtx.Cfg))
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()
			return showSchemaFromDB(cmd.Context(), cmd.OutOrStdout(), db, args[0], opts.Format)
		},
	}
}

// readOnlyPrefixes are the statement kinds the console accepts. The
// database handles are opened read-only too; this guard turns a write
// attempt into a clear error instead of a driver one.
var readOnlyPrefixes = []string{"select", "with", "explain", "pragma", "show", "values"}

func ensureReadOnly(query string) error {
	q := strings.ToLower(strings.TrimSpace(query))
	for _, p := range readOnlyPrefixes {
		if strings.HasPrefix(q, p) {
			return nil
		}
	}
	return fmt.Errorf("console is read-only: statements must start with SELECT, WITH, EXPLAIN, PRAGMA, SHOW or VALUES")
}

func executeAndRenderQuery(cmd *cobra.Command, db *consoleDB, query, format string) error {
	if err := ensureReadOnly(query); err != nil {
		return err
	}

	rows, err := db.QueryContext(cmd.Context(), query)
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return renderResults(cmd.OutOrStdout(), rows, format)
}

func isTerminal(f *os.File) bool {
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return (fi.Mode() & os.ModeCharDevice) != 0
}
