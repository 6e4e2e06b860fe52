package service_test

import (
	"io"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/BrandonDHaskell/timecard/internal/feedback"
	"github.com/BrandonDHaskell/timecard/internal/timecard/attendance"
	"github.com/BrandonDHaskell/timecard/internal/timecard/service"
	"github.com/BrandonDHaskell/timecard/internal/timecard/store"
	"github.com/BrandonDHaskell/timecard/internal/timecard/store/memory"
)

func silentLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

var testEpoch = time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type swipeObserver struct {
	mu       sync.Mutex
	outcomes map[string]int
}

func (o *swipeObserver) ObserveSwipe(outcome string, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.outcomes == nil {
		o.outcomes = make(map[string]int)
	}
	o.outcomes[outcome]++
}

func (o *swipeObserver) count(outcome string) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.outcomes[outcome]
}

type env struct {
	clock *clock

	users   *memory.Sheet
	status  *memory.Sheet
	records *memory.Sheet

	readers  *memory.ReaderStore
	swipeLog *memory.SwipeLogStore
	fb       *feedback.Recorder
	obs      *swipeObserver

	engine *attendance.Engine
	svc    *service.SwipeService
}

// newEnv wires a SwipeService over in-memory sheets with one toggle reader,
// "reader-1".
func newEnv(t *testing.T, shared bool) *env {
	t.Helper()
	sheets := memory.NewSheets()
	e := &env{
		clock:    &clock{t: testEpoch},
		users:    sheets.Sheet("Users", attendance.UsersHeader),
		status:   sheets.Sheet("Status", attendance.StatusHeader),
		records:  sheets.Sheet("Records", attendance.RecordsHeader),
		readers:  memory.NewReaderStore([]string{"reader-1"}),
		swipeLog: memory.NewSwipeLogStore(),
		fb:       &feedback.Recorder{},
		obs:      &swipeObserver{},
	}
	cache := attendance.NewStatusCache(e.status, attendance.StatusCacheConfig{
		Now:      e.clock.Now,
		Location: time.UTC,
	})
	e.engine = attendance.NewEngine(attendance.NewDirectory(e.users), cache, attendance.NewLedger(e.records), attendance.EngineConfig{
		Location: time.UTC,
		Now:      e.clock.Now,
	})
	e.svc = service.NewSwipeService(service.NewReaderRegistry(e.readers), e.engine, e.swipeLog, service.SwipeConfig{
		SharedDebounce: shared,
		Feedback:       e.fb,
		Logger:         silentLogger(),
		Observer:       e.obs,
		Now:            e.clock.Now,
	})
	e.users.Seed(store.Row{"AA11", "Ann", "Eng", "E1"})
	return e
}
