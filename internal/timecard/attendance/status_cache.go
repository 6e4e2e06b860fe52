package attendance

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/BrandonDHaskell/timecard/internal/timecard/store"
)

// StatusHeader is the fixed column layout of the Status sheet.
var StatusHeader = store.Row{"badgeId", "name", "state", "lastUpdated"}

// DefaultStatusTTL bounds how stale a cached status may be.
const DefaultStatusTTL = 30 * time.Second

// DefaultRefreshTimeout bounds one shared remote status read.
const DefaultRefreshTimeout = 10 * time.Second

// TimestampLayout formats lastUpdated cells.
const TimestampLayout = "2006-01-02 15:04:05"

// Snapshot is a badge's status as seen by the cache.
type Snapshot struct {
	BadgeID    string
	State      State
	HolderName string
	AsOf       time.Time

	// Pending is set when the last status write failed after its ledger
	// row was appended.  The cached state mirrors the ledger and is served
	// until a flush lands it remotely.  While pending the TTL does not
	// apply, so a change another process makes to the badge's Status row
	// is not seen until the flush succeeds.
	Pending bool
}

// CacheObserver is notified of cache hits and misses.
type CacheObserver interface {
	CacheLookup(hit bool)
}

type StatusCacheConfig struct {
	TTL time.Duration
	// RefreshTimeout bounds a remote read shared by concurrent callers.
	// It runs detached from any single caller's cancellation.
	RefreshTimeout time.Duration
	Now            func() time.Time
	Location       *time.Location
	Observer       CacheObserver
}

type cacheEntry struct {
	state      State
	holderName string
	asOf       time.Time
	pending    bool
}

// StatusCache is a write-through, TTL-bounded cache over the Status sheet.
//
// Reads are served locally while younger than the TTL and refreshed from the
// sheet otherwise, so a change made by another process shows up within one
// TTL.  Concurrent refreshes of one badge share a single remote read.  The
// remote calls run outside the cache lock.
type StatusCache struct {
	table store.Table
	ttl   time.Duration
	now   func() time.Time
	loc   *time.Location
	obs   CacheObserver

	refreshTimeout time.Duration

	mu      sync.Mutex
	entries map[string]cacheEntry
	// gens counts write starts and ends per badge.  A refresh that
	// overlapped any part of a write never caches what it read.
	gens  map[string]uint64
	group singleflight.Group
}

func NewStatusCache(table store.Table, cfg StatusCacheConfig) *StatusCache {
	ttl := cfg.TTL
	if ttl < 0 {
		ttl = 0
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	loc := cfg.Location
	if loc == nil {
		loc = time.Local
	}
	refreshTimeout := cfg.RefreshTimeout
	if refreshTimeout <= 0 {
		refreshTimeout = DefaultRefreshTimeout
	}
	return &StatusCache{
		table:          table,
		ttl:            ttl,
		now:            now,
		loc:            loc,
		obs:            cfg.Observer,
		refreshTimeout: refreshTimeout,
		entries:        make(map[string]cacheEntry),
		gens:           make(map[string]uint64),
	}
}

// TTL returns the configured staleness bound.
func (c *StatusCache) TTL() time.Duration { return c.ttl }

// Get returns the badge's status, refreshing it from the sheet when the
// cached copy is TTL old or older.  A badge with no Status row is OUT as of
// now.
func (c *StatusCache) Get(ctx context.Context, badgeID string) (Snapshot, error) {
	if s, ok := c.cached(badgeID, c.now()); ok {
		c.observe(true)
		return s, nil
	}
	c.observe(false)

	// The shared read outlives any one caller; each caller still stops
	// waiting when its own ctx ends.
	shared := context.WithoutCancel(ctx)
	ch := c.group.DoChan(badgeID, func() (any, error) {
		rctx, cancel := context.WithTimeout(shared, c.refreshTimeout)
		defer cancel()
		return c.refresh(rctx, badgeID)
	})
	select {
	case r := <-ch:
		if r.Err != nil {
			return Snapshot{}, r.Err
		}
		return r.Val.(Snapshot), nil
	case <-ctx.Done():
		return Snapshot{}, fmt.Errorf("status get %s: %w", badgeID, ctx.Err())
	}
}

func (c *StatusCache) cached(badgeID string, now time.Time) (Snapshot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[badgeID]
	if !ok {
		return Snapshot{}, false
	}
	if !e.pending && now.Sub(e.asOf) >= c.ttl {
		return Snapshot{}, false
	}
	return e.snapshot(badgeID), true
}

func (c *StatusCache) refresh(ctx context.Context, badgeID string) (Snapshot, error) {
	c.mu.Lock()
	gen := c.gens[badgeID]
	c.mu.Unlock()

	fetched, err := c.fetch(ctx, badgeID)
	if err != nil {
		return Snapshot{}, err
	}
	fetched.asOf = c.now()

	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[badgeID]; ok && e.pending {
		return e.snapshot(badgeID), nil
	}
	if c.gens[badgeID] != gen {
		// A write overlapped the read.  Prefer what it cached; if it is
		// still in flight, answer with the read but keep it out of the
		// cache.
		if e, ok := c.entries[badgeID]; ok {
			return e.snapshot(badgeID), nil
		}
		return fetched.snapshot(badgeID), nil
	}
	c.entries[badgeID] = fetched
	return fetched.snapshot(badgeID), nil
}

// begin marks a write to badgeID as started.  The write bumps the
// generation again when it caches its result.
func (c *StatusCache) begin(badgeID string) {
	c.mu.Lock()
	c.gens[badgeID]++
	c.mu.Unlock()
}

func (c *StatusCache) fetch(ctx context.Context, badgeID string) (cacheEntry, error) {
	rowNum, found, err := c.table.FindRow(ctx, badgeID)
	if err != nil {
		return cacheEntry{}, fmt.Errorf("status find: %w", err)
	}
	if !found {
		return cacheEntry{state: StateOut}, nil
	}
	row, err := c.table.ReadRow(ctx, rowNum)
	if err != nil {
		return cacheEntry{}, fmt.Errorf("status read row %d: %w", rowNum, err)
	}
	return cacheEntry{
		state:      parseState(row.Cell(2)),
		holderName: row.Cell(1),
	}, nil
}

// Put writes the badge's new status to the sheet, updating its row in place
// or appending one, and then caches it.  It must only be called once the
// matching ledger row has been appended.
//
// When the remote write fails the new state is still cached, marked
// pending, because the ledger already holds the transition; Flush retries
// the write.
func (c *StatusCache) Put(ctx context.Context, badgeID, holderName string, state State) error {
	now := c.now()
	c.begin(badgeID)
	err := c.write(ctx, badgeID, holderName, state, now)

	c.mu.Lock()
	c.gens[badgeID]++
	c.entries[badgeID] = cacheEntry{
		state:      state,
		holderName: holderName,
		asOf:       now,
		pending:    err != nil,
	}
	c.mu.Unlock()

	if err != nil {
		return fmt.Errorf("status write: %w", err)
	}
	return nil
}

func (c *StatusCache) write(ctx context.Context, badgeID, holderName string, state State, at time.Time) error {
	stamp := at.In(c.loc).Format(TimestampLayout)
	rowNum, found, err := c.table.FindRow(ctx, badgeID)
	if err != nil {
		return err
	}
	if found {
		return c.table.UpdateRange(ctx, rowNum, 1, []string{holderName, string(state), stamp})
	}
	return c.table.AppendRow(ctx, store.Row{badgeID, holderName, string(state), stamp})
}

// Pending lists badges whose last status write has not reached the sheet,
// sorted for deterministic flushing.
func (c *StatusCache) Pending() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []string
	for id, e := range c.entries {
		if e.pending {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

// Flush retries the pending write for badgeID.  It is a no-op when nothing
// is pending.  Callers serialize Flush with Put for the same badge.
func (c *StatusCache) Flush(ctx context.Context, badgeID string) error {
	c.mu.Lock()
	e, ok := c.entries[badgeID]
	c.mu.Unlock()
	if !ok || !e.pending {
		return nil
	}
	c.begin(badgeID)
	if err := c.write(ctx, badgeID, e.holderName, e.state, e.asOf); err != nil {
		return fmt.Errorf("status flush %s: %w", badgeID, err)
	}

	c.mu.Lock()
	c.gens[badgeID]++
	if cur, ok := c.entries[badgeID]; ok && cur.pending && cur.asOf.Equal(e.asOf) {
		cur.pending = false
		cur.asOf = c.now()
		c.entries[badgeID] = cur
	}
	c.mu.Unlock()
	return nil
}

// Badges lists the badge ids that have a row in the Status sheet.
func (c *StatusCache) Badges(ctx context.Context) ([]string, error) {
	rows, err := c.table.Rows(ctx)
	if err != nil {
		return nil, fmt.Errorf("status rows: %w", err)
	}
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		if id := strings.ToUpper(strings.TrimSpace(r.Cell(0))); id != "" {
			out = append(out, id)
		}
	}
	return out, nil
}

// Invalidate drops the cached entry so the next Get reads the sheet.
// Pending entries are kept: dropping them would let a stale remote value
// contradict the ledger.
func (c *StatusCache) Invalidate(badgeID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[badgeID]; ok && !e.pending {
		delete(c.entries, badgeID)
	}
}

func (c *StatusCache) observe(hit bool) {
	if c.obs != nil {
		c.obs.CacheLookup(hit)
	}
}

func (e cacheEntry) snapshot(badgeID string) Snapshot {
	return Snapshot{
		BadgeID:    badgeID,
		State:      e.state,
		HolderName: e.holderName,
		AsOf:       e.asOf,
		Pending:    e.pending,
	}
}

func parseState(s string) State {
	if State(strings.ToUpper(strings.TrimSpace(s))) == StateIn {
		return StateIn
	}
	return StateOut
}
