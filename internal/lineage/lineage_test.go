package lineage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leapdq/internal/state"
	"github.com/leapstack-labs/leapdq/pkg/core"
)

func setupRecorder(t *testing.T) (*Recorder, *state.SQLStore) {
	t.Helper()
	store := state.NewStore(nil)
	require.NoError(t, store.Open(":memory:"))
	require.NoError(t, store.Migrate())
	t.Cleanup(func() { _ = store.Close() })
	return NewRecorder(store, nil), store
}

func createSource(t *testing.T, store *state.SQLStore) *core.DataSource {
	t.Helper()
	src := &core.DataSource{Name: "payments", Domain: core.DomainBanking, Seed: 7, RecordCount: 10}
	require.NoError(t, store.CreateSource(src))
	return src
}

// finishRun walks a run through all three layer transitions and stamps it.
func finishRun(t *testing.T, store *state.SQLStore, run *core.PipelineRun, total, checks, passed, score int) {
	t.Helper()
	require.NoError(t, store.UpdateRunLayer(core.LayerUpdate{
		RunID: run.ID, Layer: core.LayerBronze, Status: core.LayerCompleted, TotalRecords: &total,
	}))
	require.NoError(t, store.UpdateRunLayer(core.LayerUpdate{
		RunID: run.ID, Layer: core.LayerSilver, Status: core.LayerCompleted, ChecksApplied: &checks,
	}))
	require.NoError(t, store.UpdateRunLayer(core.LayerUpdate{
		RunID: run.ID, Layer: core.LayerGold, Status: core.LayerCompleted, PassedRecords: &passed, QualityScore: &score,
	}))
	require.NoError(t, store.CompleteRun(run.ID, time.Now().UTC(), ""))
}

func saveChecks(t *testing.T, store *state.SQLStore, runID string, keys ...string) {
	t.Helper()
	results := make([]*core.CheckResult, 0, len(keys))
	for _, key := range keys {
		results = append(results, &core.CheckResult{
			RunID:     runID,
			RuleID:    key + "-rev1",
			RuleKey:   key,
			RuleName:  key,
			CheckType: core.CheckConstraint,
			Status:    core.CheckPassed,
			Details:   core.CheckDetails{TotalRecords: 10, EvaluatedRecords: 10},
		})
	}
	require.NoError(t, store.SaveCheckResults(results))
}

func TestSnapshot_NoRuns(t *testing.T) {
	recorder, store := setupRecorder(t)
	src := createSource(t, store)

	view, err := recorder.Snapshot(context.Background(), src.ID)
	require.NoError(t, err)

	require.NotNil(t, view.Source)
	assert.Equal(t, src.ID, view.Source.ID)

	assert.Equal(t, core.LayerBronze, view.Bronze.Layer)
	assert.Equal(t, core.LayerPending, view.Bronze.Status)
	assert.Equal(t, core.BronzeDescription, view.Bronze.Description)
	assert.Zero(t, view.Bronze.Count)

	assert.Equal(t, core.LayerSilver, view.Silver.Layer)
	assert.Equal(t, core.LayerPending, view.Silver.Status)
	assert.Equal(t, core.SilverDescription, view.Silver.Description)
	assert.Zero(t, view.Silver.Count)

	assert.Equal(t, core.LayerGold, view.Gold.Layer)
	assert.Equal(t, core.LayerPending, view.Gold.Status)
	assert.Equal(t, core.GoldDescription, view.Gold.Description)
	assert.Zero(t, view.Gold.Count)

	assert.Empty(t, view.Runs)
	assert.Empty(t, view.Checks)
	assert.Nil(t, view.LatestRun())
}

func TestSnapshot_ReflectsLatestRun(t *testing.T) {
	recorder, store := setupRecorder(t)
	src := createSource(t, store)

	run := &core.PipelineRun{SourceID: src.ID}
	require.NoError(t, store.CreateRun(run))
	finishRun(t, store, run, 100, 3, 80, 80)
	saveChecks(t, store, run.ID, "RG01", "RG02", "RG03")

	view, err := recorder.Snapshot(context.Background(), src.ID)
	require.NoError(t, err)

	assert.Equal(t, core.LayerCompleted, view.Bronze.Status)
	assert.Equal(t, 100, view.Bronze.Count)
	assert.Equal(t, core.LayerCompleted, view.Silver.Status)
	assert.Equal(t, 3, view.Silver.Count)
	assert.Equal(t, core.LayerCompleted, view.Gold.Status)
	assert.Equal(t, 80, view.Gold.Count)

	require.Len(t, view.Runs, 1)
	assert.Equal(t, run.ID, view.Runs[0].ID)
	assert.Equal(t, run.ID, view.LatestRun().ID)

	require.Len(t, view.Checks, 3)
	assert.Equal(t, "RG01", view.Checks[0].RuleKey)
	assert.Equal(t, "RG02", view.Checks[1].RuleKey)
	assert.Equal(t, "RG03", view.Checks[2].RuleKey)
}

func TestSnapshot_LatestRunWins(t *testing.T) {
	recorder, store := setupRecorder(t)
	src := createSource(t, store)

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	older := &core.PipelineRun{SourceID: src.ID, StartedAt: base}
	require.NoError(t, store.CreateRun(older))
	finishRun(t, store, older, 50, 2, 30, 60)
	saveChecks(t, store, older.ID, "RG01", "RG02")

	newer := &core.PipelineRun{SourceID: src.ID, StartedAt: base.Add(time.Hour)}
	require.NoError(t, store.CreateRun(newer))
	finishRun(t, store, newer, 50, 2, 45, 90)
	saveChecks(t, store, newer.ID, "RG01", "RG02")

	view, err := recorder.Snapshot(context.Background(), src.ID)
	require.NoError(t, err)

	require.Len(t, view.Runs, 2)
	assert.Equal(t, newer.ID, view.Runs[0].ID)
	assert.Equal(t, older.ID, view.Runs[1].ID)

	assert.Equal(t, 90, view.Gold.Count)
	assert.Equal(t, 45, view.Runs[0].PassedRecords)
	require.Len(t, view.Checks, 2)
	assert.Equal(t, newer.ID, view.Checks[0].RunID)
}

func TestSnapshot_IsIdempotent(t *testing.T) {
	recorder, store := setupRecorder(t)
	src := createSource(t, store)

	run := &core.PipelineRun{SourceID: src.ID}
	require.NoError(t, store.CreateRun(run))
	finishRun(t, store, run, 25, 1, 25, 100)
	saveChecks(t, store, run.ID, "SC01")

	first, err := recorder.Snapshot(context.Background(), src.ID)
	require.NoError(t, err)
	second, err := recorder.Snapshot(context.Background(), src.ID)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestSnapshot_UnknownSource(t *testing.T) {
	recorder, _ := setupRecorder(t)

	_, err := recorder.Snapshot(context.Background(), "missing")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestSnapshot_DeletedSourceStillViewable(t *testing.T) {
	recorder, store := setupRecorder(t)
	src := createSource(t, store)

	run := &core.PipelineRun{SourceID: src.ID}
	require.NoError(t, store.CreateRun(run))
	finishRun(t, store, run, 10, 1, 10, 100)
	require.NoError(t, store.DeleteSource(src.ID))

	view, err := recorder.Snapshot(context.Background(), src.ID)
	require.NoError(t, err)

	assert.True(t, view.Source.Deleted())
	assert.Equal(t, 100, view.Gold.Count)
	require.Len(t, view.Runs, 1)
}

func TestSnapshot_FailedRun(t *testing.T) {
	recorder, store := setupRecorder(t)
	src := createSource(t, store)

	run := &core.PipelineRun{SourceID: src.ID}
	require.NoError(t, store.CreateRun(run))
	total := 40
	require.NoError(t, store.UpdateRunLayer(core.LayerUpdate{
		RunID: run.ID, Layer: core.LayerBronze, Status: core.LayerCompleted, TotalRecords: &total,
	}))
	require.NoError(t, store.UpdateRunLayer(core.LayerUpdate{
		RunID: run.ID, Layer: core.LayerSilver, Status: core.LayerFailed,
	}))
	require.NoError(t, store.CompleteRun(run.ID, time.Now().UTC(), "failed to save check results: disk full"))

	view, err := recorder.Snapshot(context.Background(), src.ID)
	require.NoError(t, err)

	assert.Equal(t, core.LayerCompleted, view.Bronze.Status)
	assert.Equal(t, 40, view.Bronze.Count)
	assert.Equal(t, core.LayerFailed, view.Silver.Status)
	assert.Equal(t, core.LayerPending, view.Gold.Status)
	assert.Zero(t, view.Gold.Count)
	assert.Empty(t, view.Checks)
	assert.Equal(t, core.RunStatusFailed, view.Runs[0].Status())
}

func TestSnapshot_CancelledContext(t *testing.T) {
	recorder, store := setupRecorder(t)
	src := createSource(t, store)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := recorder.Snapshot(ctx, src.ID)
	assert.ErrorIs(t, err, context.Canceled)
}
