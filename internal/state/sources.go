package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/leapstack-labs/leapdq/pkg/core"
)

const selectSource = `SELECT id, name, domain, description, seed, record_count, created_at, deleted_at FROM sources`

// CreateSource persists a new data source. A missing ID and CreatedAt are
// assigned on insert.
func (s *SQLStore) CreateSource(src *core.DataSource) error {
	if s.db == nil {
		return errNotOpened
	}

	if src.ID == "" {
		src.ID = generateID()
	}
	if src.CreatedAt.IsZero() {
		src.CreatedAt = time.Now().UTC()
	}

	s.logger.Debug("creating source", slog.String("id", src.ID), slog.String("name", src.Name))

	_, err := s.exec(
		`INSERT INTO sources (id, name, domain, description, seed, record_count, created_at, deleted_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		src.ID, src.Name, string(src.Domain), src.Description, src.Seed, src.RecordCount,
		encodeTime(src.CreatedAt), encodeTimePtr(src.DeletedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to create source: %w", err)
	}

	return nil
}

// GetSource retrieves a source by ID, soft-deleted ones included.
func (s *SQLStore) GetSource(id string) (*core.DataSource, error) {
	if s.db == nil {
		return nil, errNotOpened
	}

	src, err := scanSource(s.queryRow(selectSource+` WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: source %s", core.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get source: %w", err)
	}

	return src, nil
}

// GetSourceByName retrieves the most recently registered live source with the
// given name.
func (s *SQLStore) GetSourceByName(name string) (*core.DataSource, error) {
	if s.db == nil {
		return nil, errNotOpened
	}

	src, err := scanSource(s.queryRow(
		selectSource+` WHERE name = ? AND deleted_at IS NULL ORDER BY created_at DESC LIMIT 1`,
		name,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: source named %q", core.ErrNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get source by name: %w", err)
	}

	return src, nil
}

// ListSources retrieves all sources in registration order. Soft-deleted
// sources are excluded unless includeDeleted is set.
func (s *SQLStore) ListSources(includeDeleted bool) ([]*core.DataSource, error) {
	if s.db == nil {
		return nil, errNotOpened
	}

	query := selectSource + ` WHERE deleted_at IS NULL ORDER BY created_at, name`
	if includeDeleted {
		query = selectSource + ` ORDER BY created_at, name`
	}

	rows, err := s.query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to list sources: %w", err)
	}
	defer rows.Close()

	var sources []*core.DataSource
	for rows.Next() {
		src, err := scanSource(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan source: %w", err)
		}
		sources = append(sources, src)
	}

	return sources, rows.Err()
}

// UpdateSourceRecordCount refreshes the record count after a successful
// Bronze ingestion.
func (s *SQLStore) UpdateSourceRecordCount(id string, count int) error {
	if s.db == nil {
		return errNotOpened
	}

	result, err := s.exec(`UPDATE sources SET record_count = ? WHERE id = ?`, count, id)
	if err != nil {
		return fmt.Errorf("failed to update source record count: %w", err)
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return fmt.Errorf("%w: source %s", core.ErrNotFound, id)
	}

	return nil
}

// DeleteSource removes a source. A source that runs reference is soft-deleted
// so lineage history stays resolvable; one that was never run is removed
// outright along with its uploaded dataset.
func (s *SQLStore) DeleteSource(id string) error {
	if s.db == nil {
		return errNotOpened
	}

	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var exists int
	if err := tx.QueryRow(s.rebind(`SELECT COUNT(*) FROM sources WHERE id = ?`), id).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check source: %w", err)
	}
	if exists == 0 {
		return fmt.Errorf("%w: source %s", core.ErrNotFound, id)
	}

	var runs int
	if err := tx.QueryRow(s.rebind(`SELECT COUNT(*) FROM runs WHERE source_id = ?`), id).Scan(&runs); err != nil {
		return fmt.Errorf("failed to count runs: %w", err)
	}

	if runs > 0 {
		_, err = tx.Exec(
			s.rebind(`UPDATE sources SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL`),
			encodeTime(time.Now().UTC()), id,
		)
		if err != nil {
			return fmt.Errorf("failed to soft-delete source: %w", err)
		}
	} else {
		if _, err := tx.Exec(s.rebind(`DELETE FROM datasets WHERE source_id = ?`), id); err != nil {
			return fmt.Errorf("failed to delete dataset: %w", err)
		}
		if _, err := tx.Exec(s.rebind(`DELETE FROM sources WHERE id = ?`), id); err != nil {
			return fmt.Errorf("failed to delete source: %w", err)
		}
	}

	return tx.Commit()
}

func scanSource(sc rowScanner) (*core.DataSource, error) {
	var (
		src       core.DataSource
		domain    string
		createdAt string
		deletedAt sql.NullString
	)
	if err := sc.Scan(&src.ID, &src.Name, &domain, &src.Description, &src.Seed, &src.RecordCount, &createdAt, &deletedAt); err != nil {
		return nil, err
	}

	src.Domain = core.Domain(domain)

	var err error
	if src.CreatedAt, err = decodeTime(createdAt); err != nil {
		return nil, err
	}
	if src.DeletedAt, err = decodeTimePtr(deletedAt); err != nil {
		return nil, err
	}

	return &src, nil
}
