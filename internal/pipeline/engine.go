// Package pipeline orchestrates the medallion run for a data source:
// Bronze ingestion, Silver rule validation and Gold aggregation, with
// every transition persisted through the state store.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/leapstack-labs/leapdq/internal/starlark"
	"github.com/leapstack-labs/leapdq/pkg/core"
	"github.com/leapstack-labs/leapdq/pkg/rules"
)

// DefaultParallelism bounds concurrent rule evaluation when the
// configuration does not say otherwise.
const DefaultParallelism = 4

// Exporter writes a run's Gold dataset to an external sink. Exporters
// run only after the quality score is committed, so their failures are
// logged and recorded but never change a run's layer statuses.
type Exporter interface {
	// Name identifies the sink in logs and run error messages.
	Name() string
	Export(ctx context.Context, source *core.DataSource, run *core.PipelineRun, gold *core.Dataset) error
}

// Engine runs the Bronze → Silver → Gold pipeline. It owns the
// per-source run exclusivity arena; the store, registry and alert sink
// are collaborators supplied by the caller.
type Engine struct {
	store     core.Store
	registry  *rules.Registry
	compiler  rules.ExprCompiler
	alerts    core.AlertSink
	exporters []Exporter
	logger    *slog.Logger

	parallelism int

	// locks is the per-source run arena: a source present in the map
	// has a run in flight in this process.
	mu    sync.Mutex
	locks map[string]struct{}
}

// Config holds pipeline engine configuration.
type Config struct {
	// Store persists sources, runs, rules and check results. Required.
	Store core.Store
	// Registry supplies the quality rules per domain. Defaults to the
	// process-wide registry.
	Registry *rules.Registry
	// Compiler evaluates expr predicates. Defaults to the Starlark
	// compiler.
	Compiler rules.ExprCompiler
	// Alerts is notified after every terminal run (optional).
	Alerts core.AlertSink
	// Exporters receive every run's Gold dataset (optional). Sinks for
	// a single run are passed via RunOptions instead.
	Exporters []Exporter
	// Parallelism bounds concurrent rule evaluation. Defaults to
	// DefaultParallelism.
	Parallelism int
	// Logger is the structured logger (optional, uses discard if nil).
	Logger *slog.Logger
}

// New creates a pipeline engine.
func New(cfg Config) (*Engine, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("%w: pipeline engine requires a store", core.ErrInvalid)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	registry := cfg.Registry
	if registry == nil {
		registry = rules.Default()
	}

	compiler := cfg.Compiler
	if compiler == nil {
		compiler = starlark.NewCompiler()
	}

	parallelism := cfg.Parallelism
	if parallelism <= 0 {
		parallelism = DefaultParallelism
	}

	return &Engine{
		store:       cfg.Store,
		registry:    registry,
		compiler:    compiler,
		alerts:      cfg.Alerts,
		exporters:   cfg.Exporters,
		logger:      logger,
		parallelism: parallelism,
		locks:       make(map[string]struct{}),
	}, nil
}

// tryAcquire reserves the run slot for a source. It returns false when
// another run in this process already holds it.
func (e *Engine) tryAcquire(sourceID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, held := e.locks[sourceID]; held {
		return false
	}
	e.locks[sourceID] = struct{}{}
	return true
}

// release frees the run slot for a source.
func (e *Engine) release(sourceID string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	delete(e.locks, sourceID)
}

func intPtr(v int) *int { return &v }
