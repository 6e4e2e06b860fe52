package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

type SeedDevOptions struct {
	// Readers are commissioned enabled, in toggle mode.  Empty means a
	// single "reader-001".
	Readers []string
}

func SeedDev(ctx context.Context, db *sql.DB, opt SeedDevOptions) error {
	now := time.Now().UTC().UnixMilli()

	readers := opt.Readers
	if len(readers) == 0 {
		readers = []string{"reader-001"}
	}

	for _, rid := range readers {
		rid = strings.TrimSpace(rid)
		if rid == "" {
			continue
		}
		if _, err := db.ExecContext(ctx, `
INSERT INTO readers(
  reader_id, display_name, mode,
  enabled, commissioned_at_ms,
  created_at_ms, updated_at_ms
) VALUES (?, ?, 'toggle', 1, ?, ?, ?)
ON CONFLICT(reader_id) DO UPDATE SET
  enabled = 1,
  commissioned_at_ms = COALESCE(readers.commissioned_at_ms, excluded.commissioned_at_ms),
  revoked_at_ms = NULL,
  updated_at_ms = excluded.updated_at_ms;
`, rid, rid, now, now, now); err != nil {
			return fmt.Errorf("seed reader %s: %w", rid, err)
		}
	}

	return nil
}
