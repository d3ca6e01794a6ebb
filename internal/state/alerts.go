package state

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/leapstack-labs/leapdq/pkg/core"
)

const selectAlertConfig = `SELECT id, name, channel, settings, min_score, enabled, created_at FROM alert_configs`

// CreateAlertConfig persists a new alert configuration.
func (s *SQLStore) CreateAlertConfig(cfg *core.AlertConfig) error {
	if s.db == nil {
		return errNotOpened
	}

	if cfg.ID == "" {
		cfg.ID = generateID()
	}
	if cfg.CreatedAt.IsZero() {
		cfg.CreatedAt = time.Now().UTC()
	}

	settings, err := json.Marshal(cfg.Settings)
	if err != nil {
		return fmt.Errorf("failed to encode alert settings: %w", err)
	}

	_, err = s.exec(
		`INSERT INTO alert_configs (id, name, channel, settings, min_score, enabled, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		cfg.ID, cfg.Name, string(cfg.Channel), string(settings), cfg.MinScore,
		boolToInt(cfg.Enabled), encodeTime(cfg.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to create alert config: %w", err)
	}

	return nil
}

// GetAlertConfig retrieves an alert configuration by ID.
func (s *SQLStore) GetAlertConfig(id string) (*core.AlertConfig, error) {
	if s.db == nil {
		return nil, errNotOpened
	}

	cfg, err := scanAlertConfig(s.queryRow(selectAlertConfig+` WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: alert config %s", core.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get alert config: %w", err)
	}

	return cfg, nil
}

// ListAlertConfigs retrieves alert configurations in registration order,
// optionally restricted to enabled ones.
func (s *SQLStore) ListAlertConfigs(enabledOnly bool) ([]*core.AlertConfig, error) {
	if s.db == nil {
		return nil, errNotOpened
	}

	query := selectAlertConfig + ` ORDER BY created_at, name`
	var args []any
	if enabledOnly {
		query = selectAlertConfig + ` WHERE enabled = ? ORDER BY created_at, name`
		args = append(args, 1)
	}

	rows, err := s.query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list alert configs: %w", err)
	}
	defer rows.Close()

	var configs []*core.AlertConfig
	for rows.Next() {
		cfg, err := scanAlertConfig(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan alert config: %w", err)
		}
		configs = append(configs, cfg)
	}

	return configs, rows.Err()
}

// UpdateAlertConfig replaces the mutable fields of an alert configuration.
func (s *SQLStore) UpdateAlertConfig(cfg *core.AlertConfig) error {
	if s.db == nil {
		return errNotOpened
	}

	settings, err := json.Marshal(cfg.Settings)
	if err != nil {
		return fmt.Errorf("failed to encode alert settings: %w", err)
	}

	result, err := s.exec(
		`UPDATE alert_configs SET name = ?, channel = ?, settings = ?, min_score = ?, enabled = ? WHERE id = ?`,
		cfg.Name, string(cfg.Channel), string(settings), cfg.MinScore, boolToInt(cfg.Enabled), cfg.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update alert config: %w", err)
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return fmt.Errorf("%w: alert config %s", core.ErrNotFound, cfg.ID)
	}

	return nil
}

// DeleteAlertConfig removes an alert configuration. Past delivery events are
// kept for the dashboard history.
func (s *SQLStore) DeleteAlertConfig(id string) error {
	if s.db == nil {
		return errNotOpened
	}

	result, err := s.exec(`DELETE FROM alert_configs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete alert config: %w", err)
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return fmt.Errorf("%w: alert config %s", core.ErrNotFound, id)
	}

	return nil
}

// RecordAlertEvent appends one delivery attempt to the alert history.
func (s *SQLStore) RecordAlertEvent(ev *core.AlertEvent) error {
	if s.db == nil {
		return errNotOpened
	}

	if ev.ID == "" {
		ev.ID = generateID()
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}

	_, err := s.exec(
		`INSERT INTO alert_events (id, config_id, run_id, source_id, channel, status, message, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.ID, ev.ConfigID, ev.RunID, ev.SourceID, string(ev.Channel), ev.Status, ev.Message,
		encodeTime(ev.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to record alert event: %w", err)
	}

	return nil
}

// ListAlertEvents retrieves delivery attempts, newest first. A limit of zero
// or less returns all of them.
func (s *SQLStore) ListAlertEvents(limit int) ([]*core.AlertEvent, error) {
	if s.db == nil {
		return nil, errNotOpened
	}

	query := `SELECT id, config_id, run_id, source_id, channel, status, message, created_at FROM alert_events ORDER BY created_at DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list alert events: %w", err)
	}
	defer rows.Close()

	var events []*core.AlertEvent
	for rows.Next() {
		var (
			ev        core.AlertEvent
			channel   string
			createdAt string
		)
		if err := rows.Scan(&ev.ID, &ev.ConfigID, &ev.RunID, &ev.SourceID, &channel, &ev.Status, &ev.Message, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan alert event: %w", err)
		}
		ev.Channel = core.AlertChannel(channel)
		if ev.CreatedAt, err = decodeTime(createdAt); err != nil {
			return nil, err
		}
		events = append(events, &ev)
	}

	return events, rows.Err()
}

// CountAlertEventsSince counts delivery attempts recorded at or after the
// given instant.
func (s *SQLStore) CountAlertEventsSince(since time.Time) (int, error) {
	if s.db == nil {
		return 0, errNotOpened
	}

	var count int
	err := s.queryRow(`SELECT COUNT(*) FROM alert_events WHERE created_at >= ?`, encodeTime(since)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count alert events: %w", err)
	}

	return count, nil
}

func scanAlertConfig(sc rowScanner) (*core.AlertConfig, error) {
	var (
		cfg       core.AlertConfig
		channel   string
		settings  string
		enabled   int
		createdAt string
	)
	if err := sc.Scan(&cfg.ID, &cfg.Name, &channel, &settings, &cfg.MinScore, &enabled, &createdAt); err != nil {
		return nil, err
	}

	cfg.Channel = core.AlertChannel(channel)
	cfg.Enabled = enabled != 0

	if err := json.Unmarshal([]byte(settings), &cfg.Settings); err != nil {
		return nil, fmt.Errorf("failed to decode alert settings: %w", err)
	}

	var err error
	if cfg.CreatedAt, err = decodeTime(createdAt); err != nil {
		return nil, err
	}

	return &cfg, nil
}
