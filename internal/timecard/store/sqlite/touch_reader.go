package sqlite

import (
	"context"
	"database/sql"
	"fmt"
)

// touchReader makes sure readerID has a readers row, so heartbeats and
// swipe_events can reference it, and moves last_seen_at_ms forward to
// seenMs.  A row created here starts disabled and uncommissioned; only
// Commission (or the dev seeder) enables a reader.  seenMs <= 0 leaves
// last_seen alone.
//
// Must be called inside a writer transaction.
func touchReader(ctx context.Context, tx *sql.Tx, readerID string, nowMs, seenMs int64) error {
	var seen any
	if seenMs > 0 {
		seen = seenMs
	}
	if _, err := tx.ExecContext(ctx, `
INSERT INTO readers(reader_id, enabled, last_seen_at_ms, created_at_ms, updated_at_ms)
VALUES (?, 0, ?, ?, ?)
ON CONFLICT(reader_id) DO UPDATE SET
  last_seen_at_ms = CASE
    WHEN excluded.last_seen_at_ms IS NULL THEN readers.last_seen_at_ms
    ELSE MAX(COALESCE(readers.last_seen_at_ms, 0), excluded.last_seen_at_ms)
  END,
  updated_at_ms = excluded.updated_at_ms;
`, readerID, seen, nowMs, nowMs); err != nil {
		return fmt.Errorf("touchReader %s: %w", readerID, err)
	}
	return nil
}
