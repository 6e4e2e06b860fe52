package attendance

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/BrandonDHaskell/timecard/internal/timecard/store"
	"github.com/BrandonDHaskell/timecard/internal/timecard/store/memory"
)

var testEpoch = time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type countingObserver struct {
	mu       sync.Mutex
	outcomes map[Outcome]int
	hits     int
	misses   int
}

func (o *countingObserver) ObserveOutcome(out Outcome) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.outcomes == nil {
		o.outcomes = make(map[Outcome]int)
	}
	o.outcomes[out]++
}

func (o *countingObserver) CacheLookup(hit bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if hit {
		o.hits++
	} else {
		o.misses++
	}
}

type fixture struct {
	users   *memory.Sheet
	status  *memory.Sheet
	records *memory.Sheet

	clock  *fakeClock
	obs    *countingObserver
	cache  *StatusCache
	ledger *Ledger
	engine *Engine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	sheets := memory.NewSheets()
	f := &fixture{
		users:   sheets.Sheet("Users", UsersHeader),
		status:  sheets.Sheet("Status", StatusHeader),
		records: sheets.Sheet("Records", RecordsHeader),
		clock:   &fakeClock{t: testEpoch},
		obs:     &countingObserver{},
	}
	f.cache = NewStatusCache(f.status, StatusCacheConfig{
		TTL:      DefaultStatusTTL,
		Now:      f.clock.Now,
		Location: time.UTC,
		Observer: f.obs,
	})
	f.ledger = NewLedger(f.records)
	f.engine = NewEngine(NewDirectory(f.users), f.cache, f.ledger, EngineConfig{
		Location: time.UTC,
		Now:      f.clock.Now,
		Observer: f.obs,
	})
	return f
}

// gatedTable parks the first call of one operation until released.  A
// gated FindRow parks after reading, an AppendRow before writing.
type gatedTable struct {
	store.Table
	op      string
	armed   atomic.Bool
	entered chan struct{}
	release chan struct{}
}

func newGatedTable(t store.Table, op string) *gatedTable {
	g := &gatedTable{
		Table:   t,
		op:      op,
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	g.armed.Store(true)
	return g
}

func (g *gatedTable) hold(op string) {
	if op != g.op || !g.armed.CompareAndSwap(true, false) {
		return
	}
	close(g.entered)
	<-g.release
}

func (g *gatedTable) FindRow(ctx context.Context, key string) (int, bool, error) {
	n, found, err := g.Table.FindRow(ctx, key)
	g.hold(memory.OpFind)
	return n, found, err
}

func (g *gatedTable) AppendRow(ctx context.Context, row store.Row) error {
	g.hold(memory.OpAppend)
	return g.Table.AppendRow(ctx, row)
}

// hookedRows runs hook once, right after the first full read.
type hookedRows struct {
	store.Table
	fired atomic.Bool
	hook  func()
}

func (h *hookedRows) Rows(ctx context.Context) ([]store.Row, error) {
	rows, err := h.Table.Rows(ctx)
	if h.fired.CompareAndSwap(false, true) {
		h.hook()
	}
	return rows, err
}

// engineOver builds an engine like newFixture but over the given status and
// records tables.
func engineOver(f *fixture, status, records store.Table) (*StatusCache, *Engine) {
	cache := NewStatusCache(status, StatusCacheConfig{
		TTL:      DefaultStatusTTL,
		Now:      f.clock.Now,
		Location: time.UTC,
	})
	engine := NewEngine(NewDirectory(f.users), cache, NewLedger(records), EngineConfig{
		Location: time.UTC,
		Now:      f.clock.Now,
	})
	return cache, engine
}
