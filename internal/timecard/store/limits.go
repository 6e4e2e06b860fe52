package store

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

// Limits bounds every call made to a remote sheet.  A zero Timeout disables
// the deadline; a nil Limiter disables rate limiting.
type Limits struct {
	Timeout time.Duration
	Limiter *rate.Limiter
}

// NewLimiter returns a limiter allowing perSecond calls with the given burst.
// perSecond <= 0 returns nil (unlimited).
func NewLimiter(perSecond float64, burst int) *rate.Limiter {
	if perSecond <= 0 {
		return nil
	}
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(perSecond), burst)
}

// WithLimits wraps t so that each call waits for the limiter, runs under the
// timeout, and returns classified errors.  The wrapper never retries.
func WithLimits(t Table, l Limits) Table {
	return &limitedTable{inner: t, limits: l}
}

// WithLimitsAll applies the same limits to every sheet opened from ts.  The
// limiter is shared because spreadsheet quotas are per store, not per sheet.
func WithLimitsAll(ts Tables, l Limits) Tables {
	return &limitedTables{inner: ts, limits: l}
}

type limitedTables struct {
	inner  Tables
	limits Limits
}

func (lt *limitedTables) Open(ctx context.Context, name string, header Row) (Table, error) {
	t, err := lt.inner.Open(ctx, name, header)
	if err != nil {
		return nil, Classify(ctx, name, "open", err)
	}
	return WithLimits(t, lt.limits), nil
}

type limitedTable struct {
	inner  Table
	limits Limits
}

func (t *limitedTable) Name() string { return t.inner.Name() }

func (t *limitedTable) begin(ctx context.Context) (context.Context, context.CancelFunc, error) {
	cancel := context.CancelFunc(func() {})
	if t.limits.Timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, t.limits.Timeout)
	}
	if t.limits.Limiter != nil {
		if err := t.limits.Limiter.Wait(ctx); err != nil {
			// The limiter refuses up front when the wait would outlast the
			// deadline; report that as a timeout, not an outage.
			if _, ok := ctx.Deadline(); ok {
				err = fmt.Errorf("%w: rate limit: %v", context.DeadlineExceeded, err)
			}
			return ctx, cancel, err
		}
	}
	return ctx, cancel, nil
}

func (t *limitedTable) FindRow(ctx context.Context, key string) (int, bool, error) {
	ctx, cancel, err := t.begin(ctx)
	defer cancel()
	if err != nil {
		return 0, false, Classify(ctx, t.Name(), "find", err)
	}
	n, found, err := t.inner.FindRow(ctx, key)
	return n, found, Classify(ctx, t.Name(), "find", err)
}

func (t *limitedTable) ReadRow(ctx context.Context, rowNum int) (Row, error) {
	ctx, cancel, err := t.begin(ctx)
	defer cancel()
	if err != nil {
		return nil, Classify(ctx, t.Name(), "read", err)
	}
	row, err := t.inner.ReadRow(ctx, rowNum)
	return row, Classify(ctx, t.Name(), "read", err)
}

func (t *limitedTable) AppendRow(ctx context.Context, row Row) error {
	ctx, cancel, err := t.begin(ctx)
	defer cancel()
	if err != nil {
		return Classify(ctx, t.Name(), "append", err)
	}
	return Classify(ctx, t.Name(), "append", t.inner.AppendRow(ctx, row))
}

func (t *limitedTable) UpdateRange(ctx context.Context, rowNum, col int, cells []string) error {
	ctx, cancel, err := t.begin(ctx)
	defer cancel()
	if err != nil {
		return Classify(ctx, t.Name(), "update", err)
	}
	return Classify(ctx, t.Name(), "update", t.inner.UpdateRange(ctx, rowNum, col, cells))
}

func (t *limitedTable) Rows(ctx context.Context) ([]Row, error) {
	ctx, cancel, err := t.begin(ctx)
	defer cancel()
	if err != nil {
		return nil, Classify(ctx, t.Name(), "rows", err)
	}
	rows, err := t.inner.Rows(ctx)
	return rows, Classify(ctx, t.Name(), "rows", err)
}
