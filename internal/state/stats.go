package state

import (
	"database/sql"
	"fmt"
	"math"
	"time"

	"github.com/leapstack-labs/leapdq/pkg/core"
)

// Summary reduces stored runs, check results and alert events into the
// dashboard aggregate. Pass rate is 100 while no checks have run yet.
func (s *SQLStore) Summary() (*core.DashboardSummary, error) {
	if s.db == nil {
		return nil, errNotOpened
	}

	sum := &core.DashboardSummary{}

	if err := s.queryRow(`SELECT COUNT(*) FROM sources WHERE deleted_at IS NULL`).Scan(&sum.TotalSources); err != nil {
		return nil, fmt.Errorf("failed to count sources: %w", err)
	}
	if err := s.queryRow(`SELECT COUNT(*) FROM runs`).Scan(&sum.TotalRuns); err != nil {
		return nil, fmt.Errorf("failed to count runs: %w", err)
	}

	rows, err := s.query(`SELECT status, COUNT(*) FROM check_results GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("failed to count check results: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("failed to scan check counts: %w", err)
		}
		switch core.CheckStatus(status) {
		case core.CheckPassed:
			sum.ChecksPassed = n
		case core.CheckFailed:
			sum.ChecksFailed = n
		case core.CheckWarning:
			sum.ChecksWarning = n
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to count check results: %w", err)
	}

	total := sum.ChecksPassed + sum.ChecksFailed + sum.ChecksWarning
	sum.PassRate = 100.0
	if total > 0 {
		sum.PassRate = round2(float64(sum.ChecksPassed) / float64(total) * 100)
	}

	var avg sql.NullFloat64
	err = s.queryRow(
		`SELECT AVG(quality_score) FROM runs WHERE gold_status = ?`,
		string(core.LayerCompleted),
	).Scan(&avg)
	if err != nil {
		return nil, fmt.Errorf("failed to average quality score: %w", err)
	}
	if avg.Valid {
		sum.AvgQualityScore = round2(avg.Float64)
	}

	sum.RecentAlerts, err = s.CountAlertEventsSince(time.Now().UTC().Add(-24 * time.Hour))
	if err != nil {
		return nil, err
	}

	return sum, nil
}

// CheckTimeline buckets check outcomes per UTC day for the trailing window
// ending today. Days without checks appear as zero buckets so charts get a
// contiguous series.
func (s *SQLStore) CheckTimeline(days int) ([]core.TimelineBucket, error) {
	if s.db == nil {
		return nil, errNotOpened
	}
	if days <= 0 {
		days = 7
	}

	now := time.Now().UTC()
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, -(days - 1))

	buckets := make([]core.TimelineBucket, days)
	index := make(map[string]*core.TimelineBucket, days)
	for i := range buckets {
		date := start.AddDate(0, 0, i).Format(time.DateOnly)
		buckets[i].Date = date
		index[date] = &buckets[i]
	}

	// The day is the first ten bytes of the stored RFC 3339 UTC timestamp.
	rows, err := s.query(
		`SELECT substr(executed_at, 1, 10) AS day, status, COUNT(*)
		 FROM check_results WHERE executed_at >= ? GROUP BY day, status`,
		encodeTime(start),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query check timeline: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			day    string
			status string
			n      int
		)
		if err := rows.Scan(&day, &status, &n); err != nil {
			return nil, fmt.Errorf("failed to scan timeline bucket: %w", err)
		}
		bucket, ok := index[day]
		if !ok {
			continue
		}
		switch core.CheckStatus(status) {
		case core.CheckPassed:
			bucket.Passed = n
		case core.CheckFailed:
			bucket.Failed = n
		case core.CheckWarning:
			bucket.Warning = n
		}
	}

	return buckets, rows.Err()
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
