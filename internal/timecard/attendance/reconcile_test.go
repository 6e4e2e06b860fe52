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

func TestReconcile_RepairsDrift(t *testing.T) {
	f := newFixture(t)
	f.records.Seed(
		// Crash between ledger append and status write.
		store.Row{"2024-03-01", "07:00:00", "AA11", "Ann", "Eng", "E1", "IN"},
		// History that starts with OUT is reported, not rewritten.
		store.Row{"2024-03-01", "07:10:00", "CC33", "Cy", "Ops", "E3", "OUT"},
	)
	// Status says IN with no ledger history at all.
	f.status.Seed(store.Row{"BB22", "Bob", "IN", "2024-03-01 06:00:00"})

	rep, err := f.engine.Reconcile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, rep.Badges)
	assert.Equal(t, []string{"AA11", "BB22"}, rep.Repaired)
	assert.Equal(t, []string{"CC33"}, rep.Irregular)
	assert.Empty(t, rep.Flushed)

	assert.Equal(t, []store.Row{
		{"BB22", "Bob", "OUT", "2024-03-01 08:00:00"},
		{"AA11", "Ann", "IN", "2024-03-01 08:00:00"},
	}, f.status.Data())

	// A second pass finds nothing to do.
	rep, err = f.engine.Reconcile(context.Background())
	require.NoError(t, err)
	assert.Empty(t, rep.Repaired)
}

func TestReconcile_FlushesPending(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.status.FailOn(memory.OpAppend, errBackend)
	_, err := f.engine.SubmitEvent(ctx, "AA11", ActionIn)
	require.ErrorIs(t, err, ErrStatusPending)

	f.status.FailOn(memory.OpAppend, nil)
	rep, err := f.engine.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"AA11"}, rep.Flushed)
	assert.Empty(t, rep.Repaired)
	assert.Empty(t, f.cache.Pending())
}

func TestReconcile_LedgerUnavailable(t *testing.T) {
	f := newFixture(t)
	f.records.FailOn(memory.OpRows, errBackend)

	_, err := f.engine.Reconcile(context.Background())
	assert.ErrorIs(t, err, errBackend)
}

func TestReconcile_KeepsSwipeAcceptedDuringPass(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	records := &hookedRows{Table: f.records}
	_, engine := engineOver(f, f.status, records)

	_, err := engine.SubmitEvent(ctx, "AA11", ActionIn)
	require.NoError(t, err)

	// The swipe lands after the full ledger scan, before AA11 is compared.
	records.hook = func() {
		f.clock.Advance(time.Minute)
		_, err := engine.SubmitEvent(ctx, "AA11", ActionOut)
		assert.NoError(t, err)
	}

	rep, err := engine.Reconcile(ctx)
	require.NoError(t, err)
	assert.Empty(t, rep.Repaired)

	rows := f.records.Data()
	require.Len(t, rows, 2)
	assert.Equal(t, "OUT", rows[1].Cell(6))
	require.Len(t, f.status.Data(), 1)
	assert.Equal(t, "OUT", f.status.Data()[0].Cell(2))
}
