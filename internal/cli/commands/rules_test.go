package commands

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leapdq/internal/cli/config"
)

// rulesTestEnv pins config to an empty project so listings only see
// the built-in packs.
func rulesTestEnv(t *testing.T, format string) {
	t.Helper()
	config.ResetConfig()
	t.Setenv("LEAPDQ_RULES_DIR", filepath.Join(t.TempDir(), "no-rules"))
	t.Setenv("LEAPDQ_OUTPUT", format)
}

func TestRulesCommandListAll(t *testing.T) {
	rulesTestEnv(t, "markdown")

	cmd := NewRulesCommand()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{})
	require.NoError(t, cmd.Execute())

	out := buf.String()
	assert.Contains(t, out, "# Quality Rules")
	assert.Contains(t, out, "Insurance Rules")
	assert.Contains(t, out, "Banking Rules")
	assert.Contains(t, out, "Custom Rules")

	// One representative key per domain.
	for _, key := range []string{"NN01", "SC02", "NN03"} {
		assert.Contains(t, out, key)
	}
}

func TestRulesCommandFilterByDomain(t *testing.T) {
	rulesTestEnv(t, "markdown")

	cmd := NewRulesCommand()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--domain", "banking"})
	require.NoError(t, cmd.Execute())

	out := buf.String()
	for _, key := range []string{"BR02", "NN02", "PT01", "SC02"} {
		assert.Contains(t, out, key)
	}
	assert.NotContains(t, out, "NN01", "insurance rules should be filtered out")
}

func TestRulesCommandUnknownDomain(t *testing.T) {
	rulesTestEnv(t, "markdown")

	cmd := NewRulesCommand()
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs([]string{"--domain", "retail"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown domain")
}

func TestRulesCommandShowRule(t *testing.T) {
	rulesTestEnv(t, "markdown")

	t.Run("exact key", func(t *testing.T) {
		cmd := NewRulesCommand()
		buf := new(bytes.Buffer)
		cmd.SetOut(buf)
		cmd.SetArgs([]string{"SC01"})
		require.NoError(t, cmd.Execute())

		out := buf.String()
		assert.Contains(t, out, "# SC01")
		assert.Contains(t, out, "insurance")
		assert.Contains(t, out, "Predicate")
	})

	t.Run("lowercase key resolves", func(t *testing.T) {
		cmd := NewRulesCommand()
		buf := new(bytes.Buffer)
		cmd.SetOut(buf)
		cmd.SetArgs([]string{"sc01"})
		require.NoError(t, cmd.Execute())
		assert.Contains(t, buf.String(), "# SC01")
	})

	t.Run("unknown key", func(t *testing.T) {
		cmd := NewRulesCommand()
		cmd.SetOut(new(bytes.Buffer))
		cmd.SetErr(new(bytes.Buffer))
		cmd.SetArgs([]string{"XX99"})

		err := cmd.Execute()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not found")
	})
}

func TestRulesCommandJSON(t *testing.T) {
	rulesTestEnv(t, "json")

	cmd := NewRulesCommand()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{})
	require.NoError(t, cmd.Execute())

	var out RulesJSONOutput
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))

	assert.Equal(t, out.Count.Total, len(out.Rules))
	assert.GreaterOrEqual(t, out.Count.ByDomain["insurance"], 4)
	assert.GreaterOrEqual(t, out.Count.ByDomain["banking"], 4)
	assert.GreaterOrEqual(t, out.Count.ByDomain["custom"], 2)
	for _, rule := range out.Rules {
		assert.NotEmpty(t, rule.Key)
		assert.NotEmpty(t, rule.Name)
	}
}

func TestRulesCommandProjectPackOverlay(t *testing.T) {
	config.ResetConfig()
	rulesDir := filepath.Join(t.TempDir(), "rules")
	require.NoError(t, os.MkdirAll(rulesDir, 0755))

	packYAML := `domain: banking
rules:
  - key: ZZ01
    name: Settlement Window
    description: Transactions settle within the allowed window.
    check_type: business_rule
    severity: warning
    predicate:
      kind: range
      field: settlement_days
      min: 0
      max: 5
`
	require.NoError(t, os.WriteFile(filepath.Join(rulesDir, "bank_extras.yaml"), []byte(packYAML), 0644))

	t.Setenv("LEAPDQ_RULES_DIR", rulesDir)
	t.Setenv("LEAPDQ_OUTPUT", "markdown")

	cmd := NewRulesCommand()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--domain", "banking"})
	require.NoError(t, cmd.Execute())

	out := buf.String()
	assert.Contains(t, out, "ZZ01")
	assert.Contains(t, out, "Settlement Window")
	assert.Contains(t, out, "BR02", "built-ins remain alongside the project pack")
}
