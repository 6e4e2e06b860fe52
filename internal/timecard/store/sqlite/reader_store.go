package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	dbpkg "github.com/BrandonDHaskell/timecard/internal/db"
	"github.com/BrandonDHaskell/timecard/internal/timecard/store"
)

type ReaderStore struct {
	db     *sql.DB
	writer *dbpkg.Worker
}

func NewReaderStore(db *sql.DB, writer *dbpkg.Worker) *ReaderStore {
	return &ReaderStore{db: db, writer: writer}
}

const readerColumns = `reader_id, mode, enabled, commissioned_at_ms, revoked_at_ms, last_seen_at_ms`

type rowScanner interface {
	Scan(dest ...any) error
}

// scanReader reads one readerColumns row.  Enabled is only true for a
// reader that is enabled, commissioned and not revoked.
func scanReader(sc rowScanner) (store.ReaderRecord, error) {
	var (
		id, mode     string
		enabled      int
		commissioned sql.NullInt64
		revoked      sql.NullInt64
		lastSeen     sql.NullInt64
	)
	if err := sc.Scan(&id, &mode, &enabled, &commissioned, &revoked, &lastSeen); err != nil {
		return store.ReaderRecord{}, err
	}
	rec := store.ReaderRecord{
		ReaderID: id,
		Mode:     store.ReaderMode(mode),
		Enabled:  enabled == 1 && commissioned.Valid && !revoked.Valid,
	}
	if lastSeen.Valid {
		rec.LastSeen = time.UnixMilli(lastSeen.Int64).UTC()
	}
	return rec, nil
}

func (s *ReaderStore) Lookup(ctx context.Context, readerID string) (store.ReaderRecord, bool, error) {
	readerID = strings.TrimSpace(readerID)
	if readerID == "" {
		return store.ReaderRecord{}, false, nil
	}
	rec, err := scanReader(s.db.QueryRowContext(ctx,
		`SELECT `+readerColumns+` FROM readers WHERE reader_id = ?;`, readerID))
	if errors.Is(err, sql.ErrNoRows) {
		return store.ReaderRecord{}, false, nil
	}
	if err != nil {
		return store.ReaderRecord{}, false, fmt.Errorf("Lookup query: %w", err)
	}
	return rec, true, nil
}

func (s *ReaderStore) List(ctx context.Context) ([]store.ReaderRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+readerColumns+` FROM readers ORDER BY reader_id;`)
	if err != nil {
		return nil, fmt.Errorf("List query: %w", err)
	}
	defer rows.Close()

	var out []store.ReaderRecord
	for rows.Next() {
		rec, err := scanReader(rows)
		if err != nil {
			return nil, fmt.Errorf("List scan: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// MarkSeen ensures the reader row exists (even if unknown) and moves
// last_seen forward to t.
func (s *ReaderStore) MarkSeen(ctx context.Context, readerID string, t time.Time) error {
	readerID = strings.TrimSpace(readerID)
	if readerID == "" {
		return nil
	}
	if t.IsZero() {
		t = time.Now().UTC()
	}
	ms := t.UTC().UnixMilli()

	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		return touchReader(ctx, tx, readerID, ms, ms)
	})
}

// Commission enables readerID in the given mode, creating it if needed.
func (s *ReaderStore) Commission(ctx context.Context, readerID string, mode store.ReaderMode) error {
	readerID = strings.TrimSpace(readerID)
	if readerID == "" {
		return fmt.Errorf("Commission: empty reader id")
	}
	if !mode.Valid() {
		return fmt.Errorf("Commission: invalid mode %q", mode)
	}
	ms := time.Now().UTC().UnixMilli()

	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if err := touchReader(ctx, tx, readerID, ms, 0); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
UPDATE readers
SET mode = ?,
    enabled = 1,
    commissioned_at_ms = COALESCE(commissioned_at_ms, ?),
    revoked_at_ms = NULL,
    updated_at_ms = ?
WHERE reader_id = ?;
`, string(mode), ms, ms, readerID); err != nil {
			return fmt.Errorf("Commission update reader: %w", err)
		}
		return nil
	})
}
