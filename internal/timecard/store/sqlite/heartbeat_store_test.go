package sqlite_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/BrandonDHaskell/timecard/internal/timecard/store"
	sqlitestore "github.com/BrandonDHaskell/timecard/internal/timecard/store/sqlite"
)

func newHeartbeatStore(t *testing.T) (*sql.DB, *sqlitestore.HeartbeatStore) {
	t.Helper()
	conn := openTestDB(t)
	return conn, sqlitestore.NewHeartbeatStore(conn, newTestWriter(t, conn))
}

func beat(t *testing.T, hs *sqlitestore.HeartbeatStore, rec store.HeartbeatRecord) {
	t.Helper()
	if err := hs.RecordHeartbeat(context.Background(), rec); err != nil {
		t.Fatalf("RecordHeartbeat %s: %v", rec.ReaderID, err)
	}
}

func countHeartbeats(t *testing.T, conn *sql.DB, readerID string) int {
	t.Helper()
	var n int
	if err := conn.QueryRow(
		`SELECT COUNT(*) FROM reader_heartbeats WHERE reader_id = ?`, readerID,
	).Scan(&n); err != nil {
		t.Fatalf("count heartbeats: %v", err)
	}
	return n
}

func readerRow(t *testing.T, conn *sql.DB, readerID string) (lastSeenMs int64, enabled int) {
	t.Helper()
	if err := conn.QueryRow(
		`SELECT last_seen_at_ms, enabled FROM readers WHERE reader_id = ?`, readerID,
	).Scan(&lastSeenMs, &enabled); err != nil {
		t.Fatalf("reader row %s: %v", readerID, err)
	}
	return lastSeenMs, enabled
}

// ── RecordHeartbeat / Latest ────────────────────────────────────────────────

func TestHeartbeatStore_LatestReturnsNewestBeat(t *testing.T) {
	conn, hs := newHeartbeatStore(t)
	base := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	weak, strong := -80, -41

	beat(t, hs, store.HeartbeatRecord{
		ReaderID: "reader-7", ReceivedAt: base, FirmwareVersion: "1.0.0", IP: "10.0.0.7",
		RSSIDbm: &weak, Uptime: 30 * time.Second, Seq: 1,
	})
	beat(t, hs, store.HeartbeatRecord{
		ReaderID: "reader-7", ReceivedAt: base.Add(time.Minute), FirmwareVersion: " 1.1.0 ", IP: "10.0.0.8",
		RSSIDbm: &strong, Uptime: 90 * time.Second, Seq: 2, ReadErrors: 3,
	})

	if n := countHeartbeats(t, conn, "reader-7"); n != 2 {
		t.Fatalf("heartbeat rows = %d, want 2", n)
	}

	got, found, err := hs.Latest(context.Background(), "reader-7")
	if err != nil || !found {
		t.Fatalf("Latest: found=%v err=%v", found, err)
	}
	if got.FirmwareVersion != "1.1.0" || got.IP != "10.0.0.8" {
		t.Errorf("latest fw=%q ip=%q, want trimmed second beat", got.FirmwareVersion, got.IP)
	}
	if got.Uptime != 90*time.Second || got.Seq != 2 || got.ReadErrors != 3 {
		t.Errorf("latest uptime=%v seq=%d read_errors=%d, want 90s, 2 and 3", got.Uptime, got.Seq, got.ReadErrors)
	}
	if got.RSSIDbm == nil || *got.RSSIDbm != strong {
		t.Errorf("latest rssi = %v, want %d", got.RSSIDbm, strong)
	}
	if !got.ReceivedAt.Equal(base.Add(time.Minute)) {
		t.Errorf("latest received at %v, want %v", got.ReceivedAt, base.Add(time.Minute))
	}

	if seen, _ := readerRow(t, conn, "reader-7"); seen != base.Add(time.Minute).UnixMilli() {
		t.Errorf("last_seen_at_ms = %d, want the second heartbeat", seen)
	}
}

func TestHeartbeatStore_LatestUnknownReader(t *testing.T) {
	_, hs := newHeartbeatStore(t)

	if _, found, err := hs.Latest(context.Background(), "nobody"); err != nil || found {
		t.Errorf("Latest = found %v err %v, want not found", found, err)
	}
}

func TestHeartbeatStore_UnknownReaderIsRegisteredDisabled(t *testing.T) {
	conn, hs := newHeartbeatStore(t)

	beat(t, hs, store.HeartbeatRecord{ReaderID: "stranger", ReceivedAt: time.Now()})

	if _, enabled := readerRow(t, conn, "stranger"); enabled != 0 {
		t.Errorf("enabled = %d, want 0 for an uncommissioned reader", enabled)
	}
	got, _, err := hs.Latest(context.Background(), "stranger")
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if got.RSSIDbm != nil {
		t.Errorf("rssi = %d, want nil when not reported", *got.RSSIDbm)
	}
}

func TestHeartbeatStore_LateBeatKeepsLastSeen(t *testing.T) {
	conn, hs := newHeartbeatStore(t)
	now := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

	beat(t, hs, store.HeartbeatRecord{ReaderID: "reader-3", ReceivedAt: now})
	beat(t, hs, store.HeartbeatRecord{ReaderID: "reader-3", ReceivedAt: now.Add(-time.Hour)})

	if seen, _ := readerRow(t, conn, "reader-3"); seen != now.UnixMilli() {
		t.Errorf("last_seen_at_ms = %d, want %d", seen, now.UnixMilli())
	}
}

func TestHeartbeatStore_BlankReaderIDIsIgnored(t *testing.T) {
	conn, hs := newHeartbeatStore(t)

	if err := hs.RecordHeartbeat(context.Background(), store.HeartbeatRecord{ReaderID: "  "}); err != nil {
		t.Fatalf("RecordHeartbeat: %v", err)
	}
	var n int
	if err := conn.QueryRow(`SELECT COUNT(*) FROM reader_heartbeats`).Scan(&n); err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 0 {
		t.Errorf("rows = %d, want 0", n)
	}
}

// ── PruneOlderThan ──────────────────────────────────────────────────────────

func TestHeartbeatStore_PruneOlderThan(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		ages    []time.Duration
		cutoff  time.Duration
		deleted int64
		left    int
	}{
		{name: "empty table", cutoff: 24 * time.Hour},
		{name: "all recent", ages: []time.Duration{time.Hour, 2 * time.Hour}, cutoff: 24 * time.Hour, left: 2},
		{name: "mixed", ages: []time.Duration{time.Hour, 48 * time.Hour, 72 * time.Hour}, cutoff: 24 * time.Hour, deleted: 2, left: 1},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			conn, hs := newHeartbeatStore(t)
			for _, age := range tc.ages {
				beat(t, hs, store.HeartbeatRecord{ReaderID: "reader-1", ReceivedAt: now.Add(-age)})
			}

			deleted, err := hs.PruneOlderThan(context.Background(), now.Add(-tc.cutoff))
			if err != nil {
				t.Fatalf("PruneOlderThan: %v", err)
			}
			if deleted != tc.deleted {
				t.Errorf("deleted = %d, want %d", deleted, tc.deleted)
			}
			if n := countHeartbeats(t, conn, "reader-1"); n != tc.left {
				t.Errorf("rows left = %d, want %d", n, tc.left)
			}
		})
	}
}

func TestHeartbeatStore_PruneKeepsLastSeen(t *testing.T) {
	conn, hs := newHeartbeatStore(t)
	old := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	beat(t, hs, store.HeartbeatRecord{ReaderID: "reader-2", ReceivedAt: old, FirmwareVersion: "0.9"})
	if _, err := hs.PruneOlderThan(context.Background(), old.Add(time.Hour)); err != nil {
		t.Fatalf("PruneOlderThan: %v", err)
	}

	if n := countHeartbeats(t, conn, "reader-2"); n != 0 {
		t.Fatalf("rows = %d, want 0", n)
	}
	if seen, _ := readerRow(t, conn, "reader-2"); seen != old.UnixMilli() {
		t.Errorf("last_seen_at_ms = %d, want it untouched by pruning", seen)
	}
}
