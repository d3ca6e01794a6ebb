package pipeline

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leapdq/pkg/core"
)

// hundredRowCSV builds a 100-row payload where every fifth row carries
// a negative amount, so exactly 20 rows violate the non-negative
// amount constraint.
func hundredRowCSV() string {
	var b strings.Builder
	b.WriteString("id,amount\n")
	for i := 1; i <= 100; i++ {
		amount := 50
		if i%5 == 0 {
			amount = -50
		}
		fmt.Fprintf(&b, "CUST-%03d,%d\n", i, amount)
	}
	return b.String()
}

func TestRun_AllChecksPass(t *testing.T) {
	store := newTestStore(t)
	eng := newTestEngine(t, store, testRegistry(t, requiredAmountSchema(), nonNegativeAmount(core.SeverityBlocking)))
	src := createSource(t, store, core.DomainCustom)
	uploadCSV(t, store, src.ID, "id,amount\na,10\nb,20\nc,30\n")

	run, err := eng.Run(context.Background(), src.ID, RunOptions{})
	require.NoError(t, err)
	require.NotNil(t, run)

	assert.Equal(t, core.RunStatusCompleted, run.Status())
	assert.Equal(t, core.LayerCompleted, run.BronzeStatus)
	assert.Equal(t, core.LayerCompleted, run.SilverStatus)
	assert.Equal(t, core.LayerCompleted, run.GoldStatus)
	assert.Equal(t, 3, run.TotalRecords)
	assert.Equal(t, 3, run.PassedRecords)
	assert.Equal(t, 100, run.QualityScore)
	assert.Equal(t, 2, run.ChecksApplied)
	assert.Empty(t, run.Error)
	require.NotNil(t, run.CompletedAt)

	// The returned record matches what was persisted.
	stored, err := store.GetRun(run.ID)
	require.NoError(t, err)
	assert.Equal(t, run, stored)

	results, err := store.ListCheckResults(run.ID)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "SC90", results[0].RuleKey)
	assert.Equal(t, "RG90", results[1].RuleKey)
	for _, res := range results {
		assert.Equal(t, core.CheckPassed, res.Status)
		assert.Equal(t, 3, res.Details.EvaluatedRecords)
		assert.Zero(t, res.Details.ViolationCount)
	}
}

func TestRun_BlockingViolationsScoreEighty(t *testing.T) {
	store := newTestStore(t)
	eng := newTestEngine(t, store, testRegistry(t, nonNegativeAmount(core.SeverityBlocking)))
	src := createSource(t, store, core.DomainCustom)
	uploadCSV(t, store, src.ID, hundredRowCSV())

	run, err := eng.Run(context.Background(), src.ID, RunOptions{})
	require.NoError(t, err)

	assert.Equal(t, core.RunStatusCompleted, run.Status())
	assert.Equal(t, 100, run.TotalRecords)
	assert.Equal(t, 80, run.PassedRecords)
	assert.Equal(t, 80, run.QualityScore)
	assert.Empty(t, run.Error)

	assert.LessOrEqual(t, run.PassedRecords, run.TotalRecords)
	assert.GreaterOrEqual(t, run.QualityScore, 0)
	assert.LessOrEqual(t, run.QualityScore, 100)

	results, err := store.ListCheckResults(run.ID)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, core.CheckFailed, results[0].Status)
	assert.Equal(t, 20, results[0].Details.ViolationCount)
	assert.Equal(t, 100, results[0].Details.EvaluatedRecords)
	assert.Len(t, results[0].Details.SampleViolations, core.DetailSampleLimit)
	assert.Equal(t, "row-000005", results[0].Details.SampleViolations[0].RowID)
}

func TestRun_WarningsNeverBlock(t *testing.T) {
	store := newTestStore(t)
	eng := newTestEngine(t, store, testRegistry(t, nonNegativeAmount(core.SeverityWarning)))
	src := createSource(t, store, core.DomainCustom)
	uploadCSV(t, store, src.ID, "id,amount\na,10\nb,-5\nc,30\n")

	run, err := eng.Run(context.Background(), src.ID, RunOptions{})
	require.NoError(t, err)

	assert.Equal(t, core.RunStatusCompleted, run.Status())
	assert.Equal(t, 3, run.TotalRecords)
	assert.Equal(t, 3, run.PassedRecords, "warning violations keep their rows")
	assert.Equal(t, 100, run.QualityScore)

	results, err := store.ListCheckResults(run.ID)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, core.CheckWarning, results[0].Status)
	assert.Equal(t, 1, results[0].Details.ViolationCount)
}

func TestRun_EmptyUploadFailsBronze(t *testing.T) {
	store := newTestStore(t)
	eng := newTestEngine(t, store, testRegistry(t, nonNegativeAmount(core.SeverityBlocking)))
	src := createSource(t, store, core.DomainCustom)
	uploadCSV(t, store, src.ID, "  \n ")

	run, err := eng.Run(context.Background(), src.ID, RunOptions{})
	require.NoError(t, err, "pipeline failures come back on the run record")
	require.NotNil(t, run)

	assert.Equal(t, core.RunStatusFailed, run.Status())
	assert.Equal(t, core.LayerFailed, run.BronzeStatus)
	assert.Equal(t, core.LayerPending, run.SilverStatus)
	assert.Equal(t, core.LayerPending, run.GoldStatus)
	assert.Contains(t, run.Error, "empty")
	require.NotNil(t, run.CompletedAt)

	results, err := store.ListCheckResults(run.ID)
	require.NoError(t, err)
	assert.Empty(t, results, "silver never ran")
}

func TestRun_ConcurrentRunInStore(t *testing.T) {
	store := newTestStore(t)
	eng := newTestEngine(t, store, testRegistry(t))
	src := createSource(t, store, core.DomainCustom)

	// A run started by another process is still active in the store.
	stale := &core.PipelineRun{SourceID: src.ID}
	require.NoError(t, store.CreateRun(stale))

	run, err := eng.Run(context.Background(), src.ID, RunOptions{})
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrConcurrentRun)
	assert.Nil(t, run)

	runs, err := store.ListRunsBySource(src.ID, 0)
	require.NoError(t, err)
	assert.Len(t, runs, 1, "no second run row is created")
}

func TestRun_ConcurrentRunInProcess(t *testing.T) {
	store := newTestStore(t)
	eng := newTestEngine(t, store, testRegistry(t, nonNegativeAmount(core.SeverityBlocking)))
	src := createSource(t, store, core.DomainCustom)
	uploadCSV(t, store, src.ID, "id,amount\na,10\n")

	started := make(chan struct{})
	unblock := make(chan struct{})
	first := RunOptions{Progress: func(ev ProgressEvent) {
		if ev.Layer == core.LayerBronze && ev.Status == core.LayerRunning {
			close(started)
			<-unblock
		}
	}}

	done := make(chan *core.PipelineRun, 1)
	go func() {
		run, err := eng.Run(context.Background(), src.ID, first)
		assert.NoError(t, err)
		done <- run
	}()

	<-started
	_, err := eng.Run(context.Background(), src.ID, RunOptions{})
	assert.ErrorIs(t, err, core.ErrConcurrentRun)

	close(unblock)
	run := <-done
	assert.Equal(t, core.RunStatusCompleted, run.Status())

	runs, err := store.ListRunsBySource(src.ID, 0)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestRun_SourceNotFound(t *testing.T) {
	eng := newTestEngine(t, newTestStore(t), testRegistry(t))

	run, err := eng.Run(context.Background(), "no-such-source", RunOptions{})
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrNotFound)
	assert.Nil(t, run)
}

func TestRun_DeletedSource(t *testing.T) {
	store := newTestStore(t)
	eng := newTestEngine(t, store, testRegistry(t))
	src := createSource(t, store, core.DomainCustom)

	// A completed run forces a soft delete; the tombstone must not be
	// runnable.
	old := &core.PipelineRun{SourceID: src.ID}
	require.NoError(t, store.CreateRun(old))
	require.NoError(t, store.CompleteRun(old.ID, old.StartedAt, ""))
	require.NoError(t, store.DeleteSource(src.ID))

	_, err := eng.Run(context.Background(), src.ID, RunOptions{})
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestRun_CancelledContext(t *testing.T) {
	store := newTestStore(t)
	eng := newTestEngine(t, store, testRegistry(t, nonNegativeAmount(core.SeverityBlocking)))
	src := createSource(t, store, core.DomainCustom)
	uploadCSV(t, store, src.ID, "id,amount\na,10\n")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	run, err := eng.Run(ctx, src.ID, RunOptions{})
	require.NoError(t, err)
	require.NotNil(t, run)

	assert.Equal(t, core.RunStatusFailed, run.Status())
	assert.Equal(t, core.LayerFailed, run.BronzeStatus)
	assert.Equal(t, core.LayerPending, run.SilverStatus)
	assert.Equal(t, core.LayerPending, run.GoldStatus)
	assert.Equal(t, context.Canceled.Error(), run.Error)
	require.NotNil(t, run.CompletedAt)
}

func TestRun_GeneratedSource(t *testing.T) {
	store := newTestStore(t)
	reg := testRegistry(t, core.QualityRule{
		Key:       "SC91",
		Domain:    core.DomainInsurance,
		CheckType: core.CheckSchema,
		Name:      "Claim Fields Present",
		Severity:  core.SeverityBlocking,
		Predicate: core.Predicate{
			Kind: core.PredicateSchema,
			Fields: []core.FieldSpec{
				{Name: "claim_id", Type: core.FieldString, Required: true},
				{Name: "claim_amount", Type: core.FieldNumber, Required: true},
			},
		},
	})
	eng := newTestEngine(t, store, reg)
	src := createSource(t, store, core.DomainInsurance)

	// No upload stored: the seeded generator supplies the dataset.
	run, err := eng.Run(context.Background(), src.ID, RunOptions{})
	require.NoError(t, err)

	assert.Equal(t, core.RunStatusCompleted, run.Status())
	assert.Equal(t, 25, run.TotalRecords)
	assert.Equal(t, 25, run.PassedRecords)
	assert.Equal(t, 100, run.QualityScore)

	// Same seed, same data: a rerun reproduces the result.
	rerun, err := eng.Run(context.Background(), src.ID, RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, run.QualityScore, rerun.QualityScore)
	assert.Equal(t, run.TotalRecords, rerun.TotalRecords)

	runs, err := store.ListRunsBySource(src.ID, 0)
	require.NoError(t, err)
	assert.Len(t, runs, 2, "a rerun is a new run, prior runs stay untouched")
	assert.Equal(t, run.ID, runs[1].ID)
}

func TestRun_SyncsSourceRecordCount(t *testing.T) {
	store := newTestStore(t)
	eng := newTestEngine(t, store, testRegistry(t))
	src := createSource(t, store, core.DomainCustom)
	uploadCSV(t, store, src.ID, "id,amount\na,1\nb,2\nc,3\n")

	_, err := eng.Run(context.Background(), src.ID, RunOptions{})
	require.NoError(t, err)

	stored, err := store.GetSource(src.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, stored.RecordCount, "catalog reflects the ingested upload, not the declared count")
}

func TestRun_PinsRuleRevisions(t *testing.T) {
	store := newTestStore(t)
	reg := testRegistry(t, nonNegativeAmount(core.SeverityBlocking))
	eng := newTestEngine(t, store, reg)
	src := createSource(t, store, core.DomainCustom)
	uploadCSV(t, store, src.ID, "id,amount\na,10\n")

	first, err := eng.Run(context.Background(), src.ID, RunOptions{})
	require.NoError(t, err)

	// Tighten the rule definition between runs.
	changed := nonNegativeAmount(core.SeverityBlocking)
	changed.Predicate.Min = floatPtr(5)
	require.NoError(t, reg.Add("test", changed))

	second, err := eng.Run(context.Background(), src.ID, RunOptions{})
	require.NoError(t, err)

	firstResults, err := store.ListCheckResults(first.ID)
	require.NoError(t, err)
	secondResults, err := store.ListCheckResults(second.ID)
	require.NoError(t, err)
	require.Len(t, firstResults, 1)
	require.Len(t, secondResults, 1)
	assert.NotEqual(t, firstResults[0].RuleID, secondResults[0].RuleID)

	v1, err := store.GetRule(firstResults[0].RuleID)
	require.NoError(t, err)
	v2, err := store.GetRule(secondResults[0].RuleID)
	require.NoError(t, err)
	assert.Equal(t, 1, v1.Version)
	assert.Equal(t, 2, v2.Version)
	require.NotNil(t, v1.Predicate.Min)
	assert.Equal(t, float64(0), *v1.Predicate.Min, "pinned revisions are immutable")
	require.NotNil(t, v2.Predicate.Min)
	assert.Equal(t, float64(5), *v2.Predicate.Min)
}

func TestRun_ProgressEvents(t *testing.T) {
	store := newTestStore(t)
	eng := newTestEngine(t, store, testRegistry(t, requiredAmountSchema(), nonNegativeAmount(core.SeverityBlocking)))
	src := createSource(t, store, core.DomainCustom)
	uploadCSV(t, store, src.ID, "id,amount\na,10\n")

	var events []ProgressEvent
	opts := RunOptions{Progress: func(ev ProgressEvent) { events = append(events, ev) }}

	run, err := eng.Run(context.Background(), src.ID, opts)
	require.NoError(t, err)
	require.Equal(t, core.RunStatusCompleted, run.Status())

	type step struct {
		layer   core.Layer
		status  core.LayerStatus
		ruleKey string
	}
	want := []step{
		{core.LayerBronze, core.LayerRunning, ""},
		{core.LayerBronze, core.LayerCompleted, ""},
		{core.LayerSilver, core.LayerRunning, ""},
		{core.LayerSilver, core.LayerRunning, "SC90"},
		{core.LayerSilver, core.LayerRunning, "RG90"},
		{core.LayerSilver, core.LayerCompleted, ""},
		{core.LayerGold, core.LayerRunning, ""},
		{core.LayerGold, core.LayerCompleted, ""},
	}
	require.Len(t, events, len(want))
	for i, w := range want {
		assert.Equal(t, w.layer, events[i].Layer, "event %d", i)
		assert.Equal(t, w.status, events[i].Status, "event %d", i)
		assert.Equal(t, w.ruleKey, events[i].RuleKey, "event %d", i)
		assert.Equal(t, run.ID, events[i].RunID, "event %d", i)
	}

	ticks := events[3:5]
	assert.Equal(t, 1, ticks[0].RulesDone)
	assert.Equal(t, 2, ticks[0].RulesTotal)
	assert.Equal(t, 2, ticks[1].RulesDone)
	assert.Equal(t, 2, ticks[1].RulesTotal)
}

// captureSink records the terminal runs handed to the alert sink.
type captureSink struct {
	calls   int
	run     *core.PipelineRun
	results []*core.CheckResult
}

func (c *captureSink) RunFinished(_ context.Context, run *core.PipelineRun, results []*core.CheckResult) {
	c.calls++
	c.run = run
	c.results = results
}

func TestRun_NotifiesAlertSink(t *testing.T) {
	store := newTestStore(t)
	sink := &captureSink{}
	eng, err := New(Config{
		Store:    store,
		Registry: testRegistry(t, nonNegativeAmount(core.SeverityBlocking)),
		Alerts:   sink,
	})
	require.NoError(t, err)

	src := createSource(t, store, core.DomainCustom)
	uploadCSV(t, store, src.ID, "id,amount\na,10\nb,-5\n")

	run, runErr := eng.Run(context.Background(), src.ID, RunOptions{})
	require.NoError(t, runErr)

	require.Equal(t, 1, sink.calls)
	assert.Equal(t, run.ID, sink.run.ID)
	assert.Equal(t, core.RunStatusCompleted, sink.run.Status())
	require.Len(t, sink.results, 1)
	assert.Equal(t, core.CheckFailed, sink.results[0].Status)
}

func TestRun_NotifiesAlertSinkOnFailure(t *testing.T) {
	store := newTestStore(t)
	sink := &captureSink{}
	eng, err := New(Config{Store: store, Registry: testRegistry(t), Alerts: sink})
	require.NoError(t, err)

	src := createSource(t, store, core.DomainCustom)
	uploadCSV(t, store, src.ID, " ")

	run, runErr := eng.Run(context.Background(), src.ID, RunOptions{})
	require.NoError(t, runErr)
	require.Equal(t, core.RunStatusFailed, run.Status())

	require.Equal(t, 1, sink.calls, "failed runs alert too")
	assert.Equal(t, core.RunStatusFailed, sink.run.Status())
	assert.Empty(t, sink.results)
}

func TestRun_HeaderOnlyUpload(t *testing.T) {
	store := newTestStore(t)
	eng := newTestEngine(t, store, testRegistry(t, nonNegativeAmount(core.SeverityBlocking)))
	src := createSource(t, store, core.DomainCustom)
	uploadCSV(t, store, src.ID, "id,amount\n")

	run, err := eng.Run(context.Background(), src.ID, RunOptions{})
	require.NoError(t, err)

	assert.Equal(t, core.RunStatusCompleted, run.Status())
	assert.Zero(t, run.TotalRecords)
	assert.Zero(t, run.PassedRecords)
	assert.Zero(t, run.QualityScore, "empty dataset scores zero, not a division error")
}
