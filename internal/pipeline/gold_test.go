package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leapdq/pkg/core"
)

func TestScore(t *testing.T) {
	tests := []struct {
		passed, total, want int
	}{
		{0, 0, 0},
		{0, 5, 0},
		{5, 5, 100},
		{80, 100, 80},
		{1, 3, 33},
		{2, 3, 67},
		{1, 8, 13}, // 12.5 rounds half up
		{999, 1000, 100},
	}
	for _, tt := range tests {
		got := Score(tt.passed, tt.total)
		assert.Equal(t, tt.want, got, "Score(%d, %d)", tt.passed, tt.total)
		assert.GreaterOrEqual(t, got, 0)
		assert.LessOrEqual(t, got, 100)
	}
}

// captureExporter records what the pipeline hands it and optionally
// fails.
type captureExporter struct {
	name string
	err  error

	calls  int
	source *core.DataSource
	run    *core.PipelineRun
	gold   *core.Dataset
}

func (c *captureExporter) Name() string { return c.name }

func (c *captureExporter) Export(_ context.Context, source *core.DataSource, run *core.PipelineRun, gold *core.Dataset) error {
	c.calls++
	c.source = source
	c.run = run
	c.gold = gold
	return c.err
}

func TestRun_ExportsPassedRowsOnly(t *testing.T) {
	store := newTestStore(t)
	sink := &captureExporter{name: "capture"}

	eng, err := New(Config{
		Store:     store,
		Registry:  testRegistry(t, nonNegativeAmount(core.SeverityBlocking)),
		Exporters: []Exporter{sink},
	})
	require.NoError(t, err)

	src := createSource(t, store, core.DomainCustom)
	uploadCSV(t, store, src.ID, "id,amount\na,10\nb,-5\nc,30\nd,40\n")

	run, runErr := eng.Run(context.Background(), src.ID, RunOptions{})
	require.NoError(t, runErr)
	assert.Equal(t, core.RunStatusCompleted, run.Status())

	require.Equal(t, 1, sink.calls)
	assert.Equal(t, src.ID, sink.source.ID)
	assert.Equal(t, run.ID, sink.run.ID)
	assert.Equal(t, 75, sink.run.QualityScore, "score is committed before export")

	require.NotNil(t, sink.gold)
	assert.Equal(t, []string{"id", "amount"}, sink.gold.Columns)
	require.Equal(t, 3, sink.gold.Len())
	assert.Equal(t, "row-000001", sink.gold.Rows[0].ID)
	assert.Equal(t, "row-000003", sink.gold.Rows[1].ID)
	assert.Equal(t, "row-000004", sink.gold.Rows[2].ID)
}

func TestRun_RequestedExporterFailureLandsOnRun(t *testing.T) {
	store := newTestStore(t)
	eng := newTestEngine(t, store, testRegistry(t, nonNegativeAmount(core.SeverityBlocking)))
	src := createSource(t, store, core.DomainCustom)
	uploadCSV(t, store, src.ID, "id,amount\na,10\n")

	sink := &captureExporter{name: "bad-sink", err: errors.New("disk full")}
	run, err := eng.Run(context.Background(), src.ID, RunOptions{Exporters: []Exporter{sink}})
	require.NoError(t, err)

	// The score was committed, so the run stays completed; the export
	// failure is recorded, not promoted.
	assert.Equal(t, core.LayerCompleted, run.GoldStatus)
	assert.Equal(t, core.RunStatusCompleted, run.Status())
	assert.Equal(t, 100, run.QualityScore)
	assert.Contains(t, run.Error, "export bad-sink")
	assert.Contains(t, run.Error, "disk full")
}

func TestRun_EngineExporterFailureIsLoggedOnly(t *testing.T) {
	store := newTestStore(t)
	sink := &captureExporter{name: "flaky", err: errors.New("connection refused")}

	eng, err := New(Config{
		Store:     store,
		Registry:  testRegistry(t, nonNegativeAmount(core.SeverityBlocking)),
		Exporters: []Exporter{sink},
	})
	require.NoError(t, err)

	src := createSource(t, store, core.DomainCustom)
	uploadCSV(t, store, src.ID, "id,amount\na,10\n")

	run, runErr := eng.Run(context.Background(), src.ID, RunOptions{})
	require.NoError(t, runErr)

	assert.Equal(t, 1, sink.calls)
	assert.Equal(t, core.RunStatusCompleted, run.Status())
	assert.Empty(t, run.Error, "engine-wide sinks never mark the run")
}

func TestRun_ExportSkippedWhenGoldNeverRuns(t *testing.T) {
	store := newTestStore(t)
	sink := &captureExporter{name: "capture"}

	eng, err := New(Config{
		Store:     store,
		Registry:  testRegistry(t),
		Exporters: []Exporter{sink},
	})
	require.NoError(t, err)

	src := createSource(t, store, core.DomainCustom)
	uploadCSV(t, store, src.ID, "\n")

	run, runErr := eng.Run(context.Background(), src.ID, RunOptions{})
	require.NoError(t, runErr)

	assert.Equal(t, core.RunStatusFailed, run.Status())
	assert.Zero(t, sink.calls, "nothing to export when bronze fails")
}
