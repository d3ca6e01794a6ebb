package export

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	_ "github.com/marcboeker/go-duckdb" // duckdb driver

	"github.com/leapstack-labs/leapdq/pkg/core"
)

// DuckDBSink materializes each run's Gold dataset as a table named
// gold_<source> in a DuckDB database, replaced on every run. The database
// is opened per export so no file lock is held between runs.
type DuckDBSink struct {
	path   string
	logger *slog.Logger
}

// NewDuckDBSink creates a DuckDB sink writing to the database at path.
// A nil logger discards output.
func NewDuckDBSink(path string, logger *slog.Logger) *DuckDBSink {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &DuckDBSink{path: path, logger: logger}
}

// Name identifies the sink in run errors and logs.
func (s *DuckDBSink) Name() string { return "duckdb" }

// Export replaces the source's gold table with the run's rows. Column
// types are derived from the data; a column with mixed value types is
// stored as VARCHAR.
func (s *DuckDBSink) Export(ctx context.Context, source *core.DataSource, run *core.PipelineRun, gold *core.Dataset) error {
	db, err := sql.Open("duckdb", s.path)
	if err != nil {
		return fmt.Errorf("failed to open duckdb: %w", err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to ping duckdb: %w", err)
	}

	table := "gold_" + safeName(source.Name)

	types := make(map[string]string, len(gold.Columns))
	defs := make([]string, 0, len(gold.Columns)+1)
	defs = append(defs, `row_id VARCHAR`)
	for _, col := range gold.Columns {
		types[col] = columnType(gold, col)
		defs = append(defs, quoteIdent(col)+" "+types[col])
	}

	create := fmt.Sprintf("CREATE OR REPLACE TABLE %s (%s)", table, strings.Join(defs, ", "))
	if _, err := db.ExecContext(ctx, create); err != nil {
		return fmt.Errorf("failed to create gold table: %w", err)
	}

	if gold.Len() == 0 {
		s.logger.Debug("gold table replaced", "source", source.Name, "run_id", run.ID, "table", table, "rows", 0)
		return nil
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin export transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(gold.Columns)+1), ", ")
	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf("INSERT INTO %s VALUES (%s)", table, placeholders))
	if err != nil {
		return fmt.Errorf("failed to prepare gold insert: %w", err)
	}
	defer stmt.Close()

	args := make([]any, 0, len(gold.Columns)+1)
	for _, row := range gold.Rows {
		args = args[:0]
		args = append(args, row.ID)
		for _, col := range gold.Columns {
			args = append(args, coerce(row.Value(col), types[col]))
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("failed to insert gold row %s: %w", row.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit export: %w", err)
	}

	s.logger.Debug("gold table replaced",
		"source", source.Name, "run_id", run.ID, "table", table, "rows", gold.Len())
	return nil
}

// columnType picks the DuckDB type for a column from its values. BIGINT
// and DOUBLE widen to DOUBLE; any other mix degrades to VARCHAR, as does
// an all-nil column.
func columnType(gold *core.Dataset, col string) string {
	t := ""
	for _, row := range gold.Rows {
		v := row.Value(col)
		if v == nil {
			continue
		}
		var vt string
		switch v.(type) {
		case int64:
			vt = "BIGINT"
		case float64:
			vt = "DOUBLE"
		case bool:
			vt = "BOOLEAN"
		default:
			vt = "VARCHAR"
		}
		switch {
		case t == "":
			t = vt
		case t == vt:
		case (t == "BIGINT" && vt == "DOUBLE") || (t == "DOUBLE" && vt == "BIGINT"):
			t = "DOUBLE"
		default:
			return "VARCHAR"
		}
	}
	if t == "" {
		return "VARCHAR"
	}
	return t
}

// coerce aligns a value with the column's declared type.
func coerce(v any, sqlType string) any {
	if v == nil {
		return nil
	}
	switch sqlType {
	case "VARCHAR":
		return formatValue(v)
	case "DOUBLE":
		if i, ok := v.(int64); ok {
			return float64(i)
		}
	}
	return v
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
