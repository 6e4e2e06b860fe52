package store

import (
	"context"
	"errors"
	"fmt"
)

// Row is one row of a sheet.  Cells are positional; the column order of each
// sheet is fixed (see the attendance package for the three layouts).
type Row []string

// Cell returns the i-th cell, or "" when the row is shorter than that.
// Spreadsheet backends drop trailing empty cells, so readers must not
// assume full-width rows.
func (r Row) Cell(i int) string {
	if i < 0 || i >= len(r) {
		return ""
	}
	return r[i]
}

// Table is a single sheet of the remote tabular store.
//
// Row numbers are 1-based and row 1 always holds the header, matching
// spreadsheet A1 addressing.  No operation spans more than one row and the
// store offers no multi-row transaction.
type Table interface {
	Name() string

	// FindRow returns the number of the first data row whose first cell
	// equals key.  found=false with a nil error means no such row.
	FindRow(ctx context.Context, key string) (rowNum int, found bool, err error)

	// ReadRow returns the cells of rowNum.
	ReadRow(ctx context.Context, rowNum int) (Row, error)

	// AppendRow adds row after the last data row.
	AppendRow(ctx context.Context, row Row) error

	// UpdateRange overwrites len(cells) cells of rowNum starting at the
	// 0-based column col.
	UpdateRange(ctx context.Context, rowNum, col int, cells []string) error

	// Rows returns every data row (header excluded) in append order.
	Rows(ctx context.Context) ([]Row, error)
}

// Tables opens sheets of one store.  Open creates the sheet with the given
// header when it does not exist yet.
type Tables interface {
	Open(ctx context.Context, name string, header Row) (Table, error)
}

var (
	// ErrUnavailable classifies any failed call to the backing store.
	ErrUnavailable = errors.New("store unavailable")

	// ErrTimeout classifies a call that ran past its deadline.
	ErrTimeout = errors.New("store timeout")

	// ErrRowOutOfRange is returned for row numbers outside the sheet.
	ErrRowOutOfRange = errors.New("row out of range")
)

// Error carries the sheet and operation that failed along with its
// classification (ErrUnavailable or ErrTimeout).
type Error struct {
	Table string
	Op    string
	Kind  error
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s %s: %v: %v", e.Table, e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() []error { return []error{e.Kind, e.Err} }

// Classify wraps err in an *Error.  Deadline errors become ErrTimeout and
// everything else ErrUnavailable.  Errors that are already classified are
// returned unchanged.
func Classify(ctx context.Context, table, op string, err error) error {
	if err == nil {
		return nil
	}
	var se *Error
	if errors.As(err, &se) {
		return err
	}
	kind := ErrUnavailable
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		kind = ErrTimeout
	}
	return &Error{Table: table, Op: op, Kind: kind, Err: err}
}

// CheckRowNum validates a data or header row number against the current
// number of rows (header included).
func CheckRowNum(rowNum, rowCount int) error {
	if rowNum < 1 || rowNum > rowCount {
		return fmt.Errorf("%w: %d of %d", ErrRowOutOfRange, rowNum, rowCount)
	}
	return nil
}
