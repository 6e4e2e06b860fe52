package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	dbpkg "github.com/BrandonDHaskell/timecard/internal/db"
	"github.com/BrandonDHaskell/timecard/internal/timecard/store"
)

// HeartbeatStore appends reader heartbeats to reader_heartbeats and keeps
// readers.last_seen_at_ms current.
type HeartbeatStore struct {
	db     *sql.DB
	writer *dbpkg.Worker
}

func NewHeartbeatStore(db *sql.DB, writer *dbpkg.Worker) *HeartbeatStore {
	return &HeartbeatStore{db: db, writer: writer}
}

func (s *HeartbeatStore) RecordHeartbeat(ctx context.Context, rec store.HeartbeatRecord) error {
	readerID := strings.TrimSpace(rec.ReaderID)
	if readerID == "" {
		return nil
	}
	if rec.ReceivedAt.IsZero() {
		rec.ReceivedAt = time.Now().UTC()
	}
	at := rec.ReceivedAt.UTC().UnixMilli()

	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if err := touchReader(ctx, tx, readerID, at, at); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
INSERT INTO reader_heartbeats(
  reader_id, received_at_ms, seq, uptime_ms, fw_version, wifi_rssi, ip, read_errors
) VALUES (?, ?, ?, ?, ?, ?, ?, ?);
`,
			readerID, at, nullUint(rec.Seq), nullUint(uint64(rec.Uptime.Milliseconds())),
			nullString(strings.TrimSpace(rec.FirmwareVersion)), nullInt(rec.RSSIDbm),
			nullString(strings.TrimSpace(rec.IP)), rec.ReadErrors,
		); err != nil {
			return fmt.Errorf("RecordHeartbeat insert: %w", err)
		}
		return nil
	})
}

// Latest returns the newest heartbeat of readerID.
func (s *HeartbeatStore) Latest(ctx context.Context, readerID string) (store.HeartbeatRecord, bool, error) {
	var (
		at       int64
		seq      sql.NullInt64
		uptimeMs sql.NullInt64
		fw       sql.NullString
		rssi     sql.NullInt64
		ip       sql.NullString
		readErrs int64
	)
	err := s.db.QueryRowContext(ctx, `
SELECT received_at_ms, seq, uptime_ms, fw_version, wifi_rssi, ip, read_errors
FROM reader_heartbeats
WHERE reader_id = ?
ORDER BY received_at_ms DESC, id DESC
LIMIT 1;
`, strings.TrimSpace(readerID)).Scan(&at, &seq, &uptimeMs, &fw, &rssi, &ip, &readErrs)
	if err == sql.ErrNoRows {
		return store.HeartbeatRecord{}, false, nil
	}
	if err != nil {
		return store.HeartbeatRecord{}, false, fmt.Errorf("Latest query: %w", err)
	}

	rec := store.HeartbeatRecord{
		ReaderID:        strings.TrimSpace(readerID),
		ReceivedAt:      time.UnixMilli(at).UTC(),
		FirmwareVersion: fw.String,
		Uptime:          time.Duration(uptimeMs.Int64) * time.Millisecond,
		IP:              ip.String,
		Seq:             uint64(seq.Int64),
		ReadErrors:      uint64(readErrs),
	}
	if rssi.Valid {
		v := int(rssi.Int64)
		rec.RSSIDbm = &v
	}
	return rec, true, nil
}

// PruneOlderThan deletes heartbeats received before cutoff and returns how
// many went.  readers.last_seen_at_ms is left as it was.
func (s *HeartbeatStore) PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	var deleted int64
	err := s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`DELETE FROM reader_heartbeats WHERE received_at_ms < ?;`, cutoff.UTC().UnixMilli())
		if err != nil {
			return fmt.Errorf("PruneOlderThan: %w", err)
		}
		deleted, _ = res.RowsAffected()
		return nil
	})
	return deleted, err
}

func nullUint(v uint64) any {
	if v == 0 {
		return nil
	}
	return int64(v)
}

func nullInt(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}
