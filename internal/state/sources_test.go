package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leapdq/pkg/core"
)

func TestSQLStore_SourceRoundTrip(t *testing.T) {
	store := setupTestStore(t)

	src := &core.DataSource{
		Name:        "claims-q3",
		Domain:      core.DomainInsurance,
		Description: "Q3 claims extract",
		Seed:        42,
	}
	require.NoError(t, store.CreateSource(src))
	require.NotEmpty(t, src.ID)
	require.False(t, src.CreatedAt.IsZero())

	got, err := store.GetSource(src.ID)
	require.NoError(t, err)
	assert.Equal(t, src, got)
}

func TestSQLStore_GetSourceNotFound(t *testing.T) {
	store := setupTestStore(t)

	_, err := store.GetSource("nope")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestSQLStore_GetSourceByName(t *testing.T) {
	store := setupTestStore(t)
	src := testSource(t, store, "transactions", core.DomainBanking)

	got, err := store.GetSourceByName("transactions")
	require.NoError(t, err)
	assert.Equal(t, src.ID, got.ID)

	_, err = store.GetSourceByName("unknown")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestSQLStore_ListSources(t *testing.T) {
	store := setupTestStore(t)
	a := testSource(t, store, "alpha", core.DomainInsurance)
	b := testSource(t, store, "beta", core.DomainBanking)

	// Soft-delete beta by giving it a run first.
	testRun(t, store, b.ID)
	require.NoError(t, store.DeleteSource(b.ID))

	live, err := store.ListSources(false)
	require.NoError(t, err)
	require.Len(t, live, 1)
	assert.Equal(t, a.ID, live[0].ID)

	all, err := store.ListSources(true)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, a.ID, all[0].ID)
	assert.Equal(t, b.ID, all[1].ID)
	assert.True(t, all[1].Deleted())
}

func TestSQLStore_UpdateSourceRecordCount(t *testing.T) {
	store := setupTestStore(t)
	src := testSource(t, store, "claims", core.DomainInsurance)

	require.NoError(t, store.UpdateSourceRecordCount(src.ID, 250))

	got, err := store.GetSource(src.ID)
	require.NoError(t, err)
	assert.Equal(t, 250, got.RecordCount)

	err = store.UpdateSourceRecordCount("missing", 1)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestSQLStore_DeleteSourceHard(t *testing.T) {
	store := setupTestStore(t)
	src := testSource(t, store, "scratch", core.DomainCustom)
	require.NoError(t, store.SaveDataset(&core.RawDataset{
		SourceID:    src.ID,
		ContentType: core.ContentTypeCSV,
		Content:     []byte("id\n1\n"),
	}))

	// No runs reference the source, so the row and its upload go away.
	require.NoError(t, store.DeleteSource(src.ID))

	_, err := store.GetSource(src.ID)
	assert.ErrorIs(t, err, core.ErrNotFound)

	ds, err := store.GetDataset(src.ID)
	require.NoError(t, err)
	assert.Nil(t, ds)
}

func TestSQLStore_DeleteSourceSoft(t *testing.T) {
	store := setupTestStore(t)
	src := testSource(t, store, "audited", core.DomainBanking)
	run := testRun(t, store, src.ID)

	require.NoError(t, store.DeleteSource(src.ID))

	got, err := store.GetSource(src.ID)
	require.NoError(t, err)
	require.True(t, got.Deleted())

	// Lineage for the old run still resolves.
	kept, err := store.GetRun(run.ID)
	require.NoError(t, err)
	assert.Equal(t, src.ID, kept.SourceID)

	// A second delete keeps the original tombstone.
	require.NoError(t, store.DeleteSource(src.ID))
	again, err := store.GetSource(src.ID)
	require.NoError(t, err)
	assert.Equal(t, got.DeletedAt, again.DeletedAt)
}

func TestSQLStore_DeleteSourceNotFound(t *testing.T) {
	store := setupTestStore(t)

	err := store.DeleteSource("missing")
	assert.ErrorIs(t, err, core.ErrNotFound)
}
