package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	dbpkg "github.com/BrandonDHaskell/timecard/internal/db"
	"github.com/BrandonDHaskell/timecard/internal/timecard/store"
)

type SwipeLogStore struct {
	db     *sql.DB
	writer *dbpkg.Worker
}

func NewSwipeLogStore(db *sql.DB, writer *dbpkg.Worker) *SwipeLogStore {
	return &SwipeLogStore{db: db, writer: writer}
}

func (s *SwipeLogStore) RecordSwipe(ctx context.Context, rec store.SwipeLogRecord) error {
	if rec.SwipeID == "" {
		return fmt.Errorf("RecordSwipe: empty swipe id")
	}
	if rec.ReceivedAt.IsZero() {
		rec.ReceivedAt = time.Now().UTC()
	}
	if rec.DecidedAt.IsZero() {
		rec.DecidedAt = time.Now().UTC()
	}
	receivedMs := rec.ReceivedAt.UTC().UnixMilli()
	decidedMs := rec.DecidedAt.UTC().UnixMilli()

	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if err := touchReader(ctx, tx, rec.ReaderID, decidedMs, receivedMs); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
INSERT INTO swipe_events(
  swipe_id, reader_id, badge_id, action, outcome, state, reason,
  received_at_ms, decided_at_ms
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?);
`,
			rec.SwipeID, rec.ReaderID, rec.BadgeID, nullString(rec.Action), rec.Outcome,
			nullString(rec.State), nullString(rec.Reason), receivedMs, decidedMs,
		); err != nil {
			return fmt.Errorf("RecordSwipe insert: %w", err)
		}
		return nil
	})
}

// LastForReader returns the newest swipe received from readerID.
func (s *SwipeLogStore) LastForReader(ctx context.Context, readerID string) (store.SwipeLogRecord, bool, error) {
	var (
		rec                   store.SwipeLogRecord
		action, state, reason sql.NullString
		receivedMs, decidedMs int64
	)
	err := s.db.QueryRowContext(ctx, `
SELECT swipe_id, reader_id, badge_id, action, outcome, state, reason, received_at_ms, decided_at_ms
FROM swipe_events
WHERE reader_id = ?
ORDER BY received_at_ms DESC, rowid DESC
LIMIT 1;
`, readerID).Scan(&rec.SwipeID, &rec.ReaderID, &rec.BadgeID, &action, &rec.Outcome, &state, &reason, &receivedMs, &decidedMs)
	if errors.Is(err, sql.ErrNoRows) {
		return store.SwipeLogRecord{}, false, nil
	}
	if err != nil {
		return store.SwipeLogRecord{}, false, fmt.Errorf("LastForReader query: %w", err)
	}
	rec.Action, rec.State, rec.Reason = action.String, state.String, reason.String
	rec.ReceivedAt = time.UnixMilli(receivedMs).UTC()
	rec.DecidedAt = time.UnixMilli(decidedMs).UTC()
	return rec, true, nil
}

// PruneOlderThan deletes swipe rows received before cutoff.  Returns the
// number of rows deleted.
func (s *SwipeLogStore) PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	cutoffMs := cutoff.UTC().UnixMilli()

	var deleted int64
	err := s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
DELETE FROM swipe_events
WHERE received_at_ms < ?;
`, cutoffMs)
		if err != nil {
			return fmt.Errorf("PruneOlderThan: %w", err)
		}
		deleted, _ = res.RowsAffected()
		return nil
	})
	return deleted, err
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
