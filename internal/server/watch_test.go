package server

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leapdq/internal/alert"
	"github.com/leapstack-labs/leapdq/internal/pipeline"
	"github.com/leapstack-labs/leapdq/internal/state"
	"github.com/leapstack-labs/leapdq/pkg/rules"
)

const testPack = `domain: custom
rules:
  - key: WP01
    name: %s
    check_type: constraint
    severity: blocking
    predicate:
      kind: not_null
      field: amount
`

func watchingServer(t *testing.T, dir string) (*Server, *rules.Registry) {
	t.Helper()

	store := state.NewStore(nil)
	require.NoError(t, store.Open(":memory:"))
	require.NoError(t, store.Migrate())
	t.Cleanup(func() { _ = store.Close() })

	registry := rules.NewRegistry()
	engine, err := pipeline.New(pipeline.Config{Store: store, Registry: registry})
	require.NoError(t, err)
	evaluator, err := alert.NewEvaluator(alert.Config{Store: store})
	require.NoError(t, err)

	srv, err := New(Config{
		Store:    store,
		Engine:   engine,
		Registry: registry,
		Alerts:   evaluator,
		Watch:    true,
		RulesDir: dir,
	})
	require.NoError(t, err)
	return srv, registry
}

func writePack(t *testing.T, path, name string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(fmt.Sprintf(testPack, name)), 0o644))
}

func TestReloadPacks(t *testing.T) {
	dir := t.TempDir()
	srv, registry := watchingServer(t, dir)

	packPath := filepath.Join(dir, "custom.yaml")
	writePack(t, packPath, "Amount present")

	srv.reloadPacks()

	rule, ok := registry.Lookup("WP01")
	require.True(t, ok)
	require.Equal(t, "Amount present", rule.Name)

	// Editing the pack swaps in the new definition on the next reload.
	writePack(t, packPath, "Amount is set")
	srv.reloadPacks()

	rule, ok = registry.Lookup("WP01")
	require.True(t, ok)
	require.Equal(t, "Amount is set", rule.Name)
}

func TestReloadPacks_BadPackKeepsCurrentRules(t *testing.T) {
	dir := t.TempDir()
	srv, registry := watchingServer(t, dir)

	packPath := filepath.Join(dir, "custom.yaml")
	writePack(t, packPath, "Amount present")
	srv.reloadPacks()

	_, ok := registry.Lookup("WP01")
	require.True(t, ok)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.yaml"), []byte("rules: {nope"), 0o644))
	srv.reloadPacks()

	rule, ok := registry.Lookup("WP01")
	require.True(t, ok, "a broken pack must not clear previously loaded rules")
	require.Equal(t, "Amount present", rule.Name)
}
