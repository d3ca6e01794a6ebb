package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/leapstack-labs/leapdq/pkg/core"
)

const selectRule = `SELECT id, key, domain, version, check_type, name, description, severity, predicate, created_at FROM rules`

// EnsureRuleRevision pins the given rule definition. If a stored revision
// with the same fingerprint exists it is returned as-is; otherwise the
// definition is inserted as the next version for the rule's key. Stored
// revisions are immutable, so check results referencing them reproduce the
// exact definition that was evaluated.
func (s *SQLStore) EnsureRuleRevision(rule *core.QualityRule) (*core.QualityRule, error) {
	if s.db == nil {
		return nil, errNotOpened
	}

	fingerprint := rule.Fingerprint()

	existing, err := s.getRuleByFingerprint(rule.Key, fingerprint)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	predicate, err := json.Marshal(rule.Predicate)
	if err != nil {
		return nil, fmt.Errorf("failed to encode predicate: %w", err)
	}

	pinned := *rule
	pinned.ID = generateID()
	pinned.CreatedAt = time.Now().UTC()

	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var version sql.NullInt64
	if err := tx.QueryRow(s.rebind(`SELECT MAX(version) FROM rules WHERE key = ?`), rule.Key).Scan(&version); err != nil {
		return nil, fmt.Errorf("failed to resolve rule version: %w", err)
	}
	pinned.Version = int(version.Int64) + 1

	_, err = tx.Exec(
		s.rebind(`INSERT INTO rules (id, key, domain, version, fingerprint, check_type, name, description, severity, predicate, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		pinned.ID, pinned.Key, string(pinned.Domain), pinned.Version, fingerprint, string(pinned.CheckType),
		pinned.Name, pinned.Description, string(pinned.Severity), string(predicate), encodeTime(pinned.CreatedAt),
	)
	if err == nil {
		if err := tx.Commit(); err != nil {
			return nil, fmt.Errorf("failed to commit rule revision: %w", err)
		}
		return &pinned, nil
	}

	// A concurrent pin of the same definition trips UNIQUE(key, fingerprint);
	// the revision that won the race is the one to return.
	_ = tx.Rollback()
	existing, selErr := s.getRuleByFingerprint(rule.Key, fingerprint)
	if selErr == nil && existing != nil {
		return existing, nil
	}
	return nil, fmt.Errorf("failed to pin rule revision: %w", err)
}

// GetRule retrieves a pinned rule revision by ID.
func (s *SQLStore) GetRule(id string) (*core.QualityRule, error) {
	if s.db == nil {
		return nil, errNotOpened
	}

	rule, err := scanRule(s.queryRow(selectRule+` WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: rule %s", core.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get rule: %w", err)
	}

	return rule, nil
}

// ListRuleRevisions retrieves every pinned revision for a domain, ordered by
// key and version.
func (s *SQLStore) ListRuleRevisions(domain core.Domain) ([]*core.QualityRule, error) {
	if s.db == nil {
		return nil, errNotOpened
	}

	rows, err := s.query(selectRule+` WHERE domain = ? ORDER BY key, version`, string(domain))
	if err != nil {
		return nil, fmt.Errorf("failed to list rule revisions: %w", err)
	}
	defer rows.Close()

	var rules []*core.QualityRule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan rule: %w", err)
		}
		rules = append(rules, rule)
	}

	return rules, rows.Err()
}

// getRuleByFingerprint returns the stored revision matching the fingerprint,
// or (nil, nil) when none exists.
func (s *SQLStore) getRuleByFingerprint(key, fingerprint string) (*core.QualityRule, error) {
	rule, err := scanRule(s.queryRow(selectRule+` WHERE key = ? AND fingerprint = ?`, key, fingerprint))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up rule revision: %w", err)
	}
	return rule, nil
}

func scanRule(sc rowScanner) (*core.QualityRule, error) {
	var (
		rule      core.QualityRule
		domain    string
		checkType string
		severity  string
		predicate string
		createdAt string
	)
	if err := sc.Scan(&rule.ID, &rule.Key, &domain, &rule.Version, &checkType, &rule.Name, &rule.Description, &severity, &predicate, &createdAt); err != nil {
		return nil, err
	}

	rule.Domain = core.Domain(domain)
	rule.CheckType = core.CheckType(checkType)
	rule.Severity = core.Severity(severity)

	if err := json.Unmarshal([]byte(predicate), &rule.Predicate); err != nil {
		return nil, fmt.Errorf("failed to decode predicate: %w", err)
	}

	var err error
	if rule.CreatedAt, err = decodeTime(createdAt); err != nil {
		return nil, err
	}

	return &rule, nil
}
