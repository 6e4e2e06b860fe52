package attendance

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BrandonDHaskell/timecard/internal/timecard/store"
	"github.com/BrandonDHaskell/timecard/internal/timecard/store/memory"
)

func TestStatusCache_MissingRowIsOut(t *testing.T) {
	f := newFixture(t)

	snap, err := f.cache.Get(context.Background(), "AA11")
	require.NoError(t, err)
	assert.Equal(t, StateOut, snap.State)
	assert.False(t, snap.Pending)
	assert.Empty(t, f.status.Data(), "reads never create rows")
}

func TestStatusCache_TTL(t *testing.T) {
	f := newFixture(t)
	f.status.Seed(store.Row{"AA11", "Ann", "in", "2024-03-01 07:00:00"})
	ctx := context.Background()

	snap, err := f.cache.Get(ctx, "AA11")
	require.NoError(t, err)
	assert.Equal(t, StateIn, snap.State)
	assert.Equal(t, "Ann", snap.HolderName)
	assert.Equal(t, 1, f.status.Calls(memory.OpFind))

	// Someone edits the sheet by hand.
	require.NoError(t, f.status.UpdateRange(ctx, 2, 2, []string{"OUT"}))

	f.clock.Advance(DefaultStatusTTL - time.Second)
	snap, err = f.cache.Get(ctx, "AA11")
	require.NoError(t, err)
	assert.Equal(t, StateIn, snap.State, "served from cache within the TTL")
	assert.Equal(t, 1, f.status.Calls(memory.OpFind))

	f.clock.Advance(time.Second)
	snap, err = f.cache.Get(ctx, "AA11")
	require.NoError(t, err)
	assert.Equal(t, StateOut, snap.State, "refreshed once the TTL elapsed")
	assert.Equal(t, 2, f.status.Calls(memory.OpFind))

	assert.Equal(t, 1, f.obs.hits)
	assert.Equal(t, 2, f.obs.misses)
}

func TestStatusCache_ZeroTTLAlwaysReads(t *testing.T) {
	f := newFixture(t)
	cache := NewStatusCache(f.status, StatusCacheConfig{Now: f.clock.Now})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := cache.Get(ctx, "AA11")
		require.NoError(t, err)
	}
	assert.Equal(t, 3, f.status.Calls(memory.OpFind))
}

func TestStatusCache_PutUpdatesInPlace(t *testing.T) {
	f := newFixture(t)
	f.status.Seed(
		store.Row{"BB22", "Bob", "IN", "x"},
		store.Row{"AA11", "Ann", "OUT", "x"},
	)
	ctx := context.Background()

	require.NoError(t, f.cache.Put(ctx, "AA11", "Ann", StateIn))
	assert.Equal(t, []store.Row{
		{"BB22", "Bob", "IN", "x"},
		{"AA11", "Ann", "IN", "2024-03-01 08:00:00"},
	}, f.status.Data())

	snap, err := f.cache.Get(ctx, "AA11")
	require.NoError(t, err)
	assert.Equal(t, StateIn, snap.State)
	assert.Equal(t, 1, f.obs.hits)
}

func TestStatusCache_InvalidateKeepsPending(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.status.FailOn(memory.OpFind, errBackend)

	assert.Error(t, f.cache.Put(ctx, "AA11", "Ann", StateIn))
	f.cache.Invalidate("AA11")
	assert.Equal(t, []string{"AA11"}, f.cache.Pending())

	snap, err := f.cache.Get(ctx, "AA11")
	require.NoError(t, err, "pending entries are served without a remote read")
	assert.Equal(t, StateIn, snap.State)
	assert.True(t, snap.Pending)
}

func TestStatusCache_ReadErrorIsNotCached(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.status.FailOn(memory.OpFind, errBackend)

	_, err := f.cache.Get(ctx, "AA11")
	assert.ErrorIs(t, err, errBackend)

	f.status.FailOn(memory.OpFind, nil)
	snap, err := f.cache.Get(ctx, "AA11")
	require.NoError(t, err)
	assert.Equal(t, StateOut, snap.State)
}

func TestStatusCache_Badges(t *testing.T) {
	f := newFixture(t)
	f.status.Seed(store.Row{"aa11", "Ann", "IN"}, store.Row{""}, store.Row{"BB22"})

	got, err := f.cache.Badges(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"AA11", "BB22"}, got)
}

// ── Reads racing writes ──────────────────────────────────────────────────

func TestStatusCache_ReadDuringSwipeDoesNotUndoIt(t *testing.T) {
	f := newFixture(t)
	gated := newGatedTable(f.status, memory.OpAppend)
	cache, engine := engineOver(f, gated, f.records)
	ctx := context.Background()

	done := make(chan error, 1)
	go func() {
		_, err := engine.SubmitEvent(ctx, "AA11", ActionIn)
		done <- err
	}()
	<-gated.entered // ledger row written, status row not yet

	f.clock.Advance(DefaultStatusTTL + time.Second)
	snap, err := engine.Status(ctx, "AA11")
	require.NoError(t, err)
	assert.Equal(t, StateOut, snap.State, "the status write has not landed")

	close(gated.release)
	require.NoError(t, <-done)

	snap, err = cache.Get(ctx, "AA11")
	require.NoError(t, err)
	assert.Equal(t, StateIn, snap.State)

	res, err := engine.SubmitEvent(ctx, "AA11", ActionIn)
	require.NoError(t, err)
	assert.Equal(t, OutcomeRejected, res.Outcome)
	assert.Len(t, f.records.Data(), 1)
}

func TestStatusCache_StaleReadFinishingAfterPutIsDropped(t *testing.T) {
	f := newFixture(t)
	gated := newGatedTable(f.status, memory.OpFind)
	cache := NewStatusCache(gated, StatusCacheConfig{TTL: DefaultStatusTTL, Now: f.clock.Now, Location: time.UTC})
	ctx := context.Background()

	got := make(chan Snapshot, 1)
	go func() {
		snap, err := cache.Get(ctx, "AA11")
		assert.NoError(t, err)
		got <- snap
	}()
	<-gated.entered // read "no row", parked before caching it

	require.NoError(t, cache.Put(ctx, "AA11", "Ann", StateIn))
	close(gated.release)

	assert.Equal(t, StateIn, (<-got).State)
	snap, err := cache.Get(ctx, "AA11")
	require.NoError(t, err)
	assert.Equal(t, StateIn, snap.State)
	assert.Equal(t, []store.Row{{"AA11", "Ann", "IN", "2024-03-01 08:00:00"}}, f.status.Data())
}

func TestStatusCache_SharedRefreshOutlivesFirstCaller(t *testing.T) {
	f := newFixture(t)
	f.status.Seed(store.Row{"AA11", "Ann", "IN", "2024-03-01 07:00:00"})
	gated := newGatedTable(f.status, memory.OpFind)
	cache := NewStatusCache(gated, StatusCacheConfig{TTL: DefaultStatusTTL, Now: f.clock.Now, Location: time.UTC})

	first, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := cache.Get(first, "AA11")
		firstErr <- err
	}()
	<-gated.entered

	type result struct {
		snap Snapshot
		err  error
	}
	second := make(chan result, 1)
	go func() {
		snap, err := cache.Get(context.Background(), "AA11")
		second <- result{snap, err}
	}()
	// Let the second caller join the parked read.
	time.Sleep(20 * time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-firstErr, context.Canceled)

	close(gated.release)
	r := <-second
	require.NoError(t, r.err)
	assert.Equal(t, StateIn, r.snap.State)

	_, err := cache.Get(context.Background(), "AA11")
	require.NoError(t, err)
	assert.Equal(t, 1, f.status.Calls(memory.OpFind), "the shared read was cached")
}
