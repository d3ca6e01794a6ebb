package commands

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leapdq/internal/cli/config"
)

func TestCalculateHealthScore(t *testing.T) {
	tests := []struct {
		name        string
		checks      []HealthCheck
		sourceCount int
		minScore    int
		maxScore    int
	}{
		{
			name:        "no checks returns 100",
			checks:      nil,
			sourceCount: 10,
			minScore:    100,
			maxScore:    100,
		},
		{
			name: "all passing returns 100",
			checks: []HealthCheck{
				{ID: "CFG01", Status: "pass", IssueCount: 0},
				{ID: "ST02", Status: "pass", IssueCount: 0},
			},
			sourceCount: 10,
			minScore:    100,
			maxScore:    100,
		},
		{
			name: "warnings reduce the score",
			checks: []HealthCheck{
				{ID: "CFG01", Status: "warn", IssueCount: 2},
			},
			sourceCount: 5,
			minScore:    90,
			maxScore:    90,
		},
		{
			name: "errors weigh double",
			checks: []HealthCheck{
				{ID: "ST01", Status: "error", IssueCount: 2},
			},
			sourceCount: 5,
			minScore:    80,
			maxScore:    80,
		},
		{
			name: "score is clamped at zero",
			checks: []HealthCheck{
				{ID: "RU02", Status: "error", IssueCount: 50},
			},
			sourceCount: 5,
			minScore:    0,
			maxScore:    0,
		},
		{
			name: "larger fleets get smaller per-issue penalties",
			checks: []HealthCheck{
				{ID: "ST03", Status: "warn", IssueCount: 2},
			},
			sourceCount: 60,
			minScore:    96,
			maxScore:    96,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			score := calculateHealthScore(tt.checks, tt.sourceCount)
			assert.GreaterOrEqual(t, score, tt.minScore)
			assert.LessOrEqual(t, score, tt.maxScore)
		})
	}
}

func TestGenerateRecommendations(t *testing.T) {
	t.Run("passing checks produce nothing", func(t *testing.T) {
		checks := []HealthCheck{
			{ID: "CFG01", Status: "pass", IssueCount: 0},
			{ID: "ST01", Status: "pass", IssueCount: 0},
		}
		assert.Empty(t, generateRecommendations(checks))
	})

	t.Run("duplicate findings are deduplicated", func(t *testing.T) {
		checks := []HealthCheck{
			{ID: "RU02", Status: "error", IssueCount: 1},
			{ID: "RU02", Status: "error", IssueCount: 3},
		}
		recs := generateRecommendations(checks)
		assert.Len(t, recs, 1)
	})

	t.Run("unknown check IDs are skipped", func(t *testing.T) {
		checks := []HealthCheck{
			{ID: "XX99", Status: "error", IssueCount: 1},
		}
		assert.Empty(t, generateRecommendations(checks))
	})

	t.Run("at most five recommendations", func(t *testing.T) {
		var checks []HealthCheck
		for _, id := range []string{"CFG01", "CFG02", "ST01", "ST02", "ST03", "RU01", "RU02", "RU03", "AL01"} {
			checks = append(checks, HealthCheck{ID: id, Status: "warn", IssueCount: 1})
		}
		recs := generateRecommendations(checks)
		assert.LessOrEqual(t, len(recs), 5)
	})
}

func TestBuildDoctorOutputStoreFailure(t *testing.T) {
	config.ResetConfig()
	cfg := &config.Config{
		StatePath: "/nonexistent/dir/state.db",
		RulesDir:  filepath.Join(t.TempDir(), "missing-rules"),
	}

	out := buildDoctorOutput(cfg, nil, errors.New("permission denied"))

	var st01 *HealthCheck
	for i := range out.HealthChecks {
		if out.HealthChecks[i].ID == "ST01" {
			st01 = &out.HealthChecks[i]
		}
		// Store-dependent checks are omitted when the store is down.
		assert.NotEqual(t, "RU03", out.HealthChecks[i].ID)
		assert.NotEqual(t, "AL01", out.HealthChecks[i].ID)
	}
	require.NotNil(t, st01, "ST01 check should be present")
	assert.Equal(t, "error", st01.Status)
	require.NotEmpty(t, st01.Details)
	assert.Contains(t, st01.Details[0], "permission denied")

	assert.Less(t, out.Score, 100)
	assert.NotEmpty(t, out.Recommendations)
	assert.Greater(t, out.Summary.Rules, 0, "built-in rules should count even without a store")
}

func TestBuildDoctorOutputHealthyProject(t *testing.T) {
	config.ResetConfig()
	tmp := t.TempDir()
	rulesDir := filepath.Join(tmp, "rules")
	require.NoError(t, os.MkdirAll(rulesDir, 0755))

	packYAML := `domain: custom
rules:
  - key: DT01
    name: Doctor Test Rule
    check_type: constraint
    severity: warning
    predicate:
      kind: not_null
      field: name
`
	require.NoError(t, os.WriteFile(filepath.Join(rulesDir, "pack.yaml"), []byte(packYAML), 0644))

	cfg := &config.Config{
		StatePath: filepath.Join(tmp, "state.db"),
		RulesDir:  rulesDir,
	}
	store, err := openStore(cfg, slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	out := buildDoctorOutput(cfg, store, nil)

	byID := make(map[string]HealthCheck)
	for _, c := range out.HealthChecks {
		byID[c.ID] = c
	}

	assert.Equal(t, "pass", byID["CFG02"].Status)
	assert.Equal(t, "pass", byID["ST01"].Status)
	require.NotEmpty(t, byID["ST02"].Details)
	assert.Contains(t, byID["ST02"].Details[0], "schema version")
	assert.Equal(t, "pass", byID["ST03"].Status)
	assert.Equal(t, "pass", byID["RU01"].Status)
	assert.Equal(t, "pass", byID["RU02"].Status)
	require.NotEmpty(t, byID["RU02"].Details)
	assert.Contains(t, byID["RU02"].Details[0], "1 packs")
	assert.Equal(t, "pass", byID["RU03"].Status)
	assert.Equal(t, "pass", byID["AL01"].Status)

	// Only the missing-config warning remains.
	assert.GreaterOrEqual(t, out.Score, 90)
}

func TestBuildDoctorOutputBadPack(t *testing.T) {
	config.ResetConfig()
	tmp := t.TempDir()
	rulesDir := filepath.Join(tmp, "rules")
	require.NoError(t, os.MkdirAll(rulesDir, 0755))

	good := `domain: custom
rules:
  - key: DT02
    name: Good Rule
    check_type: constraint
    severity: warning
    predicate:
      kind: not_null
      field: id
`
	require.NoError(t, os.WriteFile(filepath.Join(rulesDir, "a_good.yaml"), []byte(good), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(rulesDir, "b_bad.yaml"), []byte("rules: {not a list}\n"), 0644))

	cfg := &config.Config{
		StatePath: filepath.Join(tmp, "state.db"),
		RulesDir:  rulesDir,
	}
	store, err := openStore(cfg, slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	out := buildDoctorOutput(cfg, store, nil)

	var ru02 *HealthCheck
	for i := range out.HealthChecks {
		if out.HealthChecks[i].ID == "RU02" {
			ru02 = &out.HealthChecks[i]
		}
	}
	require.NotNil(t, ru02)
	assert.Equal(t, "error", ru02.Status)
	assert.Equal(t, 1, ru02.IssueCount, "one bad pack file")

	// The good pack still counts toward the rule total.
	assert.Greater(t, out.Summary.Rules, 0)
}

func TestDoctorCommandJSON(t *testing.T) {
	config.ResetConfig()
	tmp := t.TempDir()
	t.Setenv("LEAPDQ_STATE_PATH", filepath.Join(tmp, "state.db"))
	t.Setenv("LEAPDQ_RULES_DIR", filepath.Join(tmp, "rules"))

	cmd := NewDoctorCommand()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"--format", "json"})
	require.NoError(t, cmd.Execute())

	var out DoctorOutput
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	assert.NotEmpty(t, out.HealthChecks)
	assert.Greater(t, out.Summary.Rules, 0)
	assert.GreaterOrEqual(t, out.Score, 0)
	assert.LessOrEqual(t, out.Score, 100)
}
