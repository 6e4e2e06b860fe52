package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/fxamacker/cbor/v2"

	dbpkg "github.com/BrandonDHaskell/timecard/internal/db"
	"github.com/BrandonDHaskell/timecard/internal/timecard/store"
)

// Cells are stored as a CBOR array of text strings.  Core deterministic
// encoding keeps equal rows byte-identical.
var (
	cellEnc cbor.EncMode
	cellDec cbor.DecMode
)

func init() {
	var err error
	cellEnc, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("sqlite: CBOR encoder initialization failed: " + err.Error())
	}
	cellDec, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic("sqlite: CBOR decoder initialization failed: " + err.Error())
	}
}

func encodeCells(r store.Row) ([]byte, error) {
	if r == nil {
		r = store.Row{}
	}
	return cellEnc.Marshal([]string(r))
}

func decodeCells(b []byte) (store.Row, error) {
	var cells []string
	if err := cellDec.Unmarshal(b, &cells); err != nil {
		return nil, err
	}
	return store.Row(cells), nil
}

// Sheets is a store.Tables kept in the local database.  It stands in for the
// spreadsheet when none is configured, with the same row addressing.
type Sheets struct {
	db     *sql.DB
	writer *dbpkg.Worker
}

func NewSheets(db *sql.DB, writer *dbpkg.Worker) *Sheets {
	return &Sheets{db: db, writer: writer}
}

// Open creates the sheet with header if it does not exist.  An existing
// sheet keeps its stored header.
func (s *Sheets) Open(ctx context.Context, name string, header store.Row) (store.Table, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("Open: empty sheet name")
	}
	b, err := encodeCells(header)
	if err != nil {
		return nil, fmt.Errorf("Open %s encode header: %w", name, err)
	}
	ms := time.Now().UTC().UnixMilli()

	err = s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
INSERT OR IGNORE INTO sheets(name, header, created_at_ms) VALUES (?, ?, ?);
`, name, b, ms); err != nil {
			return fmt.Errorf("Open %s: %w", name, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &Sheet{db: s.db, writer: s.writer, name: name}, nil
}

// Sheet is one sheet of Sheets.
type Sheet struct {
	db     *sql.DB
	writer *dbpkg.Worker
	name   string
}

func (t *Sheet) Name() string { return t.name }

func (t *Sheet) FindRow(ctx context.Context, key string) (int, bool, error) {
	var rowNum int
	err := t.db.QueryRowContext(ctx, `
SELECT row_num FROM sheet_rows
WHERE sheet = ? AND row_key = ?
ORDER BY row_num
LIMIT 1;
`, t.name, key).Scan(&rowNum)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("FindRow %s: %w", t.name, err)
	}
	return rowNum, true, nil
}

func (t *Sheet) ReadRow(ctx context.Context, rowNum int) (store.Row, error) {
	var (
		b   []byte
		err error
	)
	if rowNum == 1 {
		err = t.db.QueryRowContext(ctx, `SELECT header FROM sheets WHERE name = ?;`, t.name).Scan(&b)
	} else {
		err = t.db.QueryRowContext(ctx, `
SELECT cells FROM sheet_rows WHERE sheet = ? AND row_num = ?;
`, t.name, rowNum).Scan(&b)
	}
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("ReadRow %s: %w: %d", t.name, store.ErrRowOutOfRange, rowNum)
	}
	if err != nil {
		return nil, fmt.Errorf("ReadRow %s: %w", t.name, err)
	}
	row, err := decodeCells(b)
	if err != nil {
		return nil, fmt.Errorf("ReadRow %s decode row %d: %w", t.name, rowNum, err)
	}
	return row, nil
}

func (t *Sheet) AppendRow(ctx context.Context, row store.Row) error {
	b, err := encodeCells(row)
	if err != nil {
		return fmt.Errorf("AppendRow %s encode: %w", t.name, err)
	}
	ms := time.Now().UTC().UnixMilli()

	return t.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		var next int
		if err := tx.QueryRowContext(ctx, `
SELECT COALESCE(MAX(row_num), 1) + 1 FROM sheet_rows WHERE sheet = ?;
`, t.name).Scan(&next); err != nil {
			return fmt.Errorf("AppendRow %s next row: %w", t.name, err)
		}
		if _, err := tx.ExecContext(ctx, `
INSERT INTO sheet_rows(sheet, row_num, row_key, cells, updated_at_ms)
VALUES (?, ?, ?, ?, ?);
`, t.name, next, row.Cell(0), b, ms); err != nil {
			return fmt.Errorf("AppendRow %s insert: %w", t.name, err)
		}
		return nil
	})
}

// UpdateRange rewrites cells of a data row.  The header row is read-only.
func (t *Sheet) UpdateRange(ctx context.Context, rowNum, col int, cells []string) error {
	if rowNum < 2 || col < 0 {
		return fmt.Errorf("UpdateRange %s: %w: row %d col %d", t.name, store.ErrRowOutOfRange, rowNum, col)
	}
	ms := time.Now().UTC().UnixMilli()

	return t.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		var b []byte
		err := tx.QueryRowContext(ctx, `
SELECT cells FROM sheet_rows WHERE sheet = ? AND row_num = ?;
`, t.name, rowNum).Scan(&b)
		if err == sql.ErrNoRows {
			return fmt.Errorf("UpdateRange %s: %w: %d", t.name, store.ErrRowOutOfRange, rowNum)
		}
		if err != nil {
			return fmt.Errorf("UpdateRange %s read: %w", t.name, err)
		}
		row, err := decodeCells(b)
		if err != nil {
			return fmt.Errorf("UpdateRange %s decode: %w", t.name, err)
		}
		for len(row) < col+len(cells) {
			row = append(row, "")
		}
		copy(row[col:], cells)

		if b, err = encodeCells(row); err != nil {
			return fmt.Errorf("UpdateRange %s encode: %w", t.name, err)
		}
		if _, err := tx.ExecContext(ctx, `
UPDATE sheet_rows
SET row_key = ?,
    cells = ?,
    updated_at_ms = ?
WHERE sheet = ? AND row_num = ?;
`, row.Cell(0), b, ms, t.name, rowNum); err != nil {
			return fmt.Errorf("UpdateRange %s update: %w", t.name, err)
		}
		return nil
	})
}

func (t *Sheet) Rows(ctx context.Context) ([]store.Row, error) {
	rs, err := t.db.QueryContext(ctx, `
SELECT row_num, cells FROM sheet_rows WHERE sheet = ? ORDER BY row_num;
`, t.name)
	if err != nil {
		return nil, fmt.Errorf("Rows %s: %w", t.name, err)
	}
	defer rs.Close()

	var out []store.Row
	for rs.Next() {
		var (
			rowNum int
			b      []byte
		)
		if err := rs.Scan(&rowNum, &b); err != nil {
			return nil, fmt.Errorf("Rows %s scan: %w", t.name, err)
		}
		row, err := decodeCells(b)
		if err != nil {
			return nil, fmt.Errorf("Rows %s decode row %d: %w", t.name, rowNum, err)
		}
		out = append(out, row)
	}
	if err := rs.Err(); err != nil {
		return nil, fmt.Errorf("Rows %s: %w", t.name, err)
	}
	return out, nil
}
