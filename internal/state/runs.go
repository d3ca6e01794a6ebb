package state

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/leapstack-labs/leapdq/pkg/core"
)

const selectRun = `SELECT id, source_id, started_at, completed_at, bronze_status, silver_status, gold_status, total_records, passed_records, quality_score, checks_applied, error FROM runs`

// CreateRun persists a new pipeline run. Missing ID, StartedAt and layer
// statuses are filled with defaults (pending layers).
func (s *SQLStore) CreateRun(run *core.PipelineRun) error {
	if s.db == nil {
		return errNotOpened
	}

	if run.ID == "" {
		run.ID = generateID()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}
	for _, status := range []*core.LayerStatus{&run.BronzeStatus, &run.SilverStatus, &run.GoldStatus} {
		if *status == "" {
			*status = core.LayerPending
		}
	}

	s.logger.Debug("creating run", slog.String("id", run.ID), slog.String("source_id", run.SourceID))

	_, err := s.exec(
		`INSERT INTO runs (id, source_id, started_at, completed_at, bronze_status, silver_status, gold_status, total_records, passed_records, quality_score, checks_applied, error)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.SourceID, encodeTime(run.StartedAt), encodeTimePtr(run.CompletedAt),
		string(run.BronzeStatus), string(run.SilverStatus), string(run.GoldStatus),
		run.TotalRecords, run.PassedRecords, run.QualityScore, run.ChecksApplied, run.Error,
	)
	if err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}

	return nil
}

// GetRun retrieves a run by ID.
func (s *SQLStore) GetRun(id string) (*core.PipelineRun, error) {
	if s.db == nil {
		return nil, errNotOpened
	}

	run, err := scanRun(s.queryRow(selectRun+` WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: run %s", core.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	return run, nil
}

// GetActiveRun retrieves the non-terminal run for a source, or (nil, nil)
// when no run is in flight. A run is active until CompleteRun stamps it.
func (s *SQLStore) GetActiveRun(sourceID string) (*core.PipelineRun, error) {
	if s.db == nil {
		return nil, errNotOpened
	}

	run, err := scanRun(s.queryRow(
		selectRun+` WHERE source_id = ? AND completed_at IS NULL ORDER BY started_at DESC LIMIT 1`,
		sourceID,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get active run: %w", err)
	}

	return run, nil
}

// LatestRun retrieves the most recent run for a source, or (nil, nil) when
// the source has never been run.
func (s *SQLStore) LatestRun(sourceID string) (*core.PipelineRun, error) {
	if s.db == nil {
		return nil, errNotOpened
	}

	run, err := scanRun(s.queryRow(
		selectRun+` WHERE source_id = ? ORDER BY started_at DESC LIMIT 1`,
		sourceID,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest run: %w", err)
	}

	return run, nil
}

// ListRunsBySource retrieves runs for a source, newest first. A limit of
// zero or less returns all of them.
func (s *SQLStore) ListRunsBySource(sourceID string, limit int) ([]*core.PipelineRun, error) {
	if s.db == nil {
		return nil, errNotOpened
	}

	query := selectRun + ` WHERE source_id = ? ORDER BY started_at DESC`
	args := []any{sourceID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []*core.PipelineRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}

	return runs, rows.Err()
}

// UpdateRunLayer writes one layer transition and the counters owned by that
// layer in a single UPDATE, so readers never observe a completed layer with
// stale counts.
func (s *SQLStore) UpdateRunLayer(update core.LayerUpdate) error {
	if s.db == nil {
		return errNotOpened
	}

	var statusColumn string
	switch update.Layer {
	case core.LayerBronze:
		statusColumn = "bronze_status"
	case core.LayerSilver:
		statusColumn = "silver_status"
	case core.LayerGold:
		statusColumn = "gold_status"
	default:
		return fmt.Errorf("%w: unknown layer %q", core.ErrInvalid, update.Layer)
	}

	assignments := []string{statusColumn + " = ?"}
	args := []any{string(update.Status)}

	if update.TotalRecords != nil {
		assignments = append(assignments, "total_records = ?")
		args = append(args, *update.TotalRecords)
	}
	if update.ChecksApplied != nil {
		assignments = append(assignments, "checks_applied = ?")
		args = append(args, *update.ChecksApplied)
	}
	if update.PassedRecords != nil {
		assignments = append(assignments, "passed_records = ?")
		args = append(args, *update.PassedRecords)
	}
	if update.QualityScore != nil {
		assignments = append(assignments, "quality_score = ?")
		args = append(args, *update.QualityScore)
	}
	args = append(args, update.RunID)

	result, err := s.exec(`UPDATE runs SET `+strings.Join(assignments, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return fmt.Errorf("failed to update run layer: %w", err)
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return fmt.Errorf("%w: run %s", core.ErrNotFound, update.RunID)
	}

	return nil
}

// CompleteRun stamps a run's completion time and error message, ending it.
func (s *SQLStore) CompleteRun(id string, completedAt time.Time, errMsg string) error {
	if s.db == nil {
		return errNotOpened
	}

	result, err := s.exec(
		`UPDATE runs SET completed_at = ?, error = ? WHERE id = ?`,
		encodeTime(completedAt), errMsg, id,
	)
	if err != nil {
		return fmt.Errorf("failed to complete run: %w", err)
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return fmt.Errorf("%w: run %s", core.ErrNotFound, id)
	}

	return nil
}

func scanRun(sc rowScanner) (*core.PipelineRun, error) {
	var (
		run         core.PipelineRun
		startedAt   string
		completedAt sql.NullString
		bronze      string
		silver      string
		gold        string
	)
	if err := sc.Scan(&run.ID, &run.SourceID, &startedAt, &completedAt, &bronze, &silver, &gold,
		&run.TotalRecords, &run.PassedRecords, &run.QualityScore, &run.ChecksApplied, &run.Error); err != nil {
		return nil, err
	}

	run.BronzeStatus = core.LayerStatus(bronze)
	run.SilverStatus = core.LayerStatus(silver)
	run.GoldStatus = core.LayerStatus(gold)

	var err error
	if run.StartedAt, err = decodeTime(startedAt); err != nil {
		return nil, err
	}
	if run.CompletedAt, err = decodeTimePtr(completedAt); err != nil {
		return nil, err
	}

	return &run, nil
}
