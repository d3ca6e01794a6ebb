package export

import (
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/leapstack-labs/leapdq/pkg/core"
)

// CSVSink writes each run's Gold dataset to gold_<source>.csv inside one
// directory. The file is replaced on every run, so the directory always
// holds the latest business-ready data per source.
type CSVSink struct {
	dir    string
	logger *slog.Logger
}

// NewCSVSink creates a CSV directory sink. The directory is created on
// first export; a nil logger discards output.
func NewCSVSink(dir string, logger *slog.Logger) *CSVSink {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &CSVSink{dir: dir, logger: logger}
}

// Name identifies the sink in run errors and logs.
func (s *CSVSink) Name() string { return "csv" }

// Export writes the gold rows with a leading row_id column tying each row
// back to the run's check evidence.
func (s *CSVSink) Export(ctx context.Context, source *core.DataSource, run *core.PipelineRun, gold *core.Dataset) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create export directory: %w", err)
	}

	path := filepath.Join(s.dir, "gold_"+safeName(source.Name)+".csv")
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create export file: %w", err)
	}

	w := csv.NewWriter(f)
	header := append([]string{"row_id"}, gold.Columns...)
	if err := w.Write(header); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write export header: %w", err)
	}

	record := make([]string, 0, len(header))
	for _, row := range gold.Rows {
		record = record[:0]
		record = append(record, row.ID)
		for _, col := range gold.Columns {
			record = append(record, formatValue(row.Value(col)))
		}
		if err := w.Write(record); err != nil {
			_ = f.Close()
			return fmt.Errorf("failed to write export row: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to flush export: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close export file: %w", err)
	}

	s.logger.Debug("gold dataset exported",
		"source", source.Name, "run_id", run.ID, "path", path, "rows", gold.Len())
	return nil
}
