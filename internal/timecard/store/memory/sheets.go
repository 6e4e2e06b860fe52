// Package memory holds in-process implementations of the store interfaces.
// They back tests and the dev profile; nothing here survives a restart.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/BrandonDHaskell/timecard/internal/timecard/store"
)

// Sheets is an in-memory store.Tables.
type Sheets struct {
	mu     sync.Mutex
	sheets map[string]*Sheet
}

func NewSheets() *Sheets {
	return &Sheets{sheets: make(map[string]*Sheet)}
}

// Open returns the named sheet, creating it with header if needed.
func (s *Sheets) Open(_ context.Context, name string, header store.Row) (store.Table, error) {
	return s.Sheet(name, header), nil
}

// Sheet is Open without the interface, for tests that need the fault
// injection helpers.  header is only used when the sheet is created.
func (s *Sheets) Sheet(name string, header store.Row) *Sheet {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sh, ok := s.sheets[name]; ok {
		return sh
	}
	sh := NewSheet(name, header)
	s.sheets[name] = sh
	return sh
}

// Operation names accepted by FailOn and Calls.
const (
	OpFind   = "find"
	OpRead   = "read"
	OpAppend = "append"
	OpUpdate = "update"
	OpRows   = "rows"
)

// Sheet is an in-memory store.Table with fault injection.
type Sheet struct {
	name string

	mu       sync.Mutex
	rows     []store.Row // rows[0] is the header
	failures map[string]error
	calls    map[string]int
	delay    time.Duration
}

func NewSheet(name string, header store.Row) *Sheet {
	return &Sheet{
		name:     name,
		rows:     []store.Row{cloneRow(header)},
		failures: make(map[string]error),
		calls:    make(map[string]int),
	}
}

func (t *Sheet) Name() string { return t.name }

// FailOn makes every call of op return err until FailOn(op, nil).
func (t *Sheet) FailOn(op string, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err == nil {
		delete(t.failures, op)
		return
	}
	t.failures[op] = err
}

// SetDelay makes every call wait d, or until its context ends.
func (t *Sheet) SetDelay(d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.delay = d
}

// Calls returns how many times op was invoked, failed calls included.
func (t *Sheet) Calls(op string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.calls[op]
}

// Seed appends rows without counting calls.
func (t *Sheet) Seed(rows ...store.Row) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, r := range rows {
		t.rows = append(t.rows, cloneRow(r))
	}
}

// Data returns a copy of the data rows.
func (t *Sheet) Data() []store.Row {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]store.Row, 0, len(t.rows)-1)
	for _, r := range t.rows[1:] {
		out = append(out, cloneRow(r))
	}
	return out
}

func (t *Sheet) enter(ctx context.Context, op string) error {
	t.mu.Lock()
	t.calls[op]++
	delay := t.delay
	injected := t.failures[op]
	t.mu.Unlock()

	if delay > 0 {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return injected
}

func (t *Sheet) FindRow(ctx context.Context, key string) (int, bool, error) {
	if err := t.enter(ctx, OpFind); err != nil {
		return 0, false, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := 1; i < len(t.rows); i++ {
		if t.rows[i].Cell(0) == key {
			return i + 1, true, nil
		}
	}
	return 0, false, nil
}

func (t *Sheet) ReadRow(ctx context.Context, rowNum int) (store.Row, error) {
	if err := t.enter(ctx, OpRead); err != nil {
		return nil, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := store.CheckRowNum(rowNum, len(t.rows)); err != nil {
		return nil, err
	}
	return cloneRow(t.rows[rowNum-1]), nil
}

func (t *Sheet) AppendRow(ctx context.Context, row store.Row) error {
	if err := t.enter(ctx, OpAppend); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rows = append(t.rows, cloneRow(row))
	return nil
}

func (t *Sheet) UpdateRange(ctx context.Context, rowNum, col int, cells []string) error {
	if err := t.enter(ctx, OpUpdate); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := store.CheckRowNum(rowNum, len(t.rows)); err != nil {
		return err
	}
	r := t.rows[rowNum-1]
	for len(r) < col+len(cells) {
		r = append(r, "")
	}
	copy(r[col:], cells)
	t.rows[rowNum-1] = r
	return nil
}

func (t *Sheet) Rows(ctx context.Context) ([]store.Row, error) {
	if err := t.enter(ctx, OpRows); err != nil {
		return nil, err
	}
	return t.Data(), nil
}

func cloneRow(r store.Row) store.Row {
	out := make(store.Row, len(r))
	copy(out, r)
	return out
}
