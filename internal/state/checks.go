package state

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/leapstack-labs/leapdq/pkg/core"
)

const selectCheckResult = `SELECT id, run_id, rule_id, rule_key, rule_name, check_type, status, executed_at, details FROM check_results`

// SaveCheckResults persists a run's check results in one transaction,
// preserving evaluation order. Missing IDs and timestamps are filled.
func (s *SQLStore) SaveCheckResults(results []*core.CheckResult) error {
	if s.db == nil {
		return errNotOpened
	}
	if len(results) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	insert := s.rebind(
		`INSERT INTO check_results (id, run_id, rule_id, rule_key, rule_name, check_type, status, executed_at, details, position)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
	)

	for i, res := range results {
		if res.ID == "" {
			res.ID = generateID()
		}
		if res.ExecutedAt.IsZero() {
			res.ExecutedAt = time.Now().UTC()
		}

		details, err := json.Marshal(res.Details)
		if err != nil {
			return fmt.Errorf("failed to encode check details: %w", err)
		}

		if _, err := tx.Exec(insert,
			res.ID, res.RunID, res.RuleID, res.RuleKey, res.RuleName,
			string(res.CheckType), string(res.Status), encodeTime(res.ExecutedAt), string(details), i,
		); err != nil {
			return fmt.Errorf("failed to save check result %s: %w", res.RuleKey, err)
		}
	}

	return tx.Commit()
}

// ListCheckResults retrieves a run's check results in evaluation order.
func (s *SQLStore) ListCheckResults(runID string) ([]*core.CheckResult, error) {
	if s.db == nil {
		return nil, errNotOpened
	}

	rows, err := s.query(selectCheckResult+` WHERE run_id = ? ORDER BY position`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list check results: %w", err)
	}
	defer rows.Close()

	var results []*core.CheckResult
	for rows.Next() {
		res, err := scanCheckResult(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan check result: %w", err)
		}
		results = append(results, res)
	}

	return results, rows.Err()
}

func scanCheckResult(sc rowScanner) (*core.CheckResult, error) {
	var (
		res        core.CheckResult
		checkType  string
		status     string
		executedAt string
		details    string
	)
	if err := sc.Scan(&res.ID, &res.RunID, &res.RuleID, &res.RuleKey, &res.RuleName, &checkType, &status, &executedAt, &details); err != nil {
		return nil, err
	}

	res.CheckType = core.CheckType(checkType)
	res.Status = core.CheckStatus(status)

	if err := json.Unmarshal([]byte(details), &res.Details); err != nil {
		return nil, fmt.Errorf("failed to decode check details: %w", err)
	}

	var err error
	if res.ExecutedAt, err = decodeTime(executedAt); err != nil {
		return nil, err
	}

	return &res, nil
}
