package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/BrandonDHaskell/timecard/internal/timecard/service"
	"github.com/BrandonDHaskell/timecard/internal/timecard/store"
	"github.com/BrandonDHaskell/timecard/internal/timecard/store/memory"
)

func TestPruner_DisabledWhenRetentionZero(t *testing.T) {
	hs := memory.NewHeartbeatStore()
	pruner := service.NewPruner(service.PrunerConfig{IntervalHours: 1}, silentLogger(),
		service.PruneTarget{Name: "heartbeats", Store: hs, RetentionDays: 0},
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pruner.Start(ctx)
	// Stop should return immediately without error.
	pruner.Stop()
}

func TestPruner_RunOncePrunesEachTarget(t *testing.T) {
	hs := memory.NewHeartbeatStore()
	sl := memory.NewSwipeLogStore()
	ctx := context.Background()
	now := time.Now().UTC()

	// One heartbeat 40 days old, one from yesterday.
	for id, age := range map[string]int{"reader-old": 40, "reader-recent": 1} {
		rec := store.HeartbeatRecord{ReaderID: id, ReceivedAt: now.AddDate(0, 0, -age)}
		if err := hs.RecordHeartbeat(ctx, rec); err != nil {
			t.Fatalf("insert %s: %v", id, err)
		}
	}

	// Swipes 100, 20 and 1 days old.
	for i, age := range []int{100, 20, 1} {
		rec := store.SwipeLogRecord{
			SwipeID:    string(rune('a' + i)),
			ReaderID:   "reader-recent",
			BadgeID:    "AA11",
			Outcome:    "accepted",
			ReceivedAt: now.AddDate(0, 0, -age),
			DecidedAt:  now.AddDate(0, 0, -age),
		}
		if err := sl.RecordSwipe(ctx, rec); err != nil {
			t.Fatalf("record swipe: %v", err)
		}
	}

	pruner := service.NewPruner(service.PrunerConfig{IntervalHours: 1}, silentLogger(),
		service.PruneTarget{Name: "heartbeats", Store: hs, RetentionDays: 30},
		service.PruneTarget{Name: "swipes", Store: sl, RetentionDays: 90},
	)
	got := pruner.RunOnce(ctx)

	if got["heartbeats"] != 1 {
		t.Errorf("heartbeats pruned: expected 1, got %d", got["heartbeats"])
	}
	if got["swipes"] != 1 {
		t.Errorf("swipes pruned: expected 1, got %d", got["swipes"])
	}
	if hs.Count("reader-recent") != 1 {
		t.Error("recent heartbeat should survive")
	}
	if n := len(sl.Events()); n != 2 {
		t.Errorf("expected 2 swipes left, got %d", n)
	}
}

func TestPruner_StopIsIdempotent(t *testing.T) {
	hs := memory.NewHeartbeatStore()
	pruner := service.NewPruner(service.PrunerConfig{IntervalHours: 1}, silentLogger(),
		service.PruneTarget{Name: "heartbeats", Store: hs, RetentionDays: 30},
	)

	ctx, cancel := context.WithCancel(context.Background())
	pruner.Start(ctx)

	cancel()
	// Multiple stops should not panic.
	pruner.Stop()
	pruner.Stop()
}
