// Package app builds the timecard object graph from a Config.  The serve
// command and the one-shot CLI commands share it.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/BrandonDHaskell/timecard/internal/config"
	dbpkg "github.com/BrandonDHaskell/timecard/internal/db"
	"github.com/BrandonDHaskell/timecard/internal/feedback"
	"github.com/BrandonDHaskell/timecard/internal/metrics"
	"github.com/BrandonDHaskell/timecard/internal/timecard/attendance"
	"github.com/BrandonDHaskell/timecard/internal/timecard/service"
	"github.com/BrandonDHaskell/timecard/internal/timecard/store"
	"github.com/BrandonDHaskell/timecard/internal/timecard/store/gsheets"
	"github.com/BrandonDHaskell/timecard/internal/timecard/store/memory"
	"github.com/BrandonDHaskell/timecard/internal/timecard/store/sqlite"
)

// Options adjust Build for the calling command.
type Options struct {
	// Feedback replaces the sinks built from config.
	Feedback feedback.Sink
	// Console receives the console panel when feedback.console is on.
	// Defaults to os.Stdout.
	Console io.Writer
	// Tables replaces the configured sheet backend.
	Tables store.Tables
}

type App struct {
	Config config.Config
	Logger *log.Logger

	DB     *sql.DB
	Writer *dbpkg.Worker

	Readers    store.ReaderStore
	Heartbeats store.HeartbeatStore
	SwipeLog   store.SwipeLogStore

	Metrics *metrics.Metrics
	Cache   *attendance.StatusCache
	Engine  *attendance.Engine

	Registry  *service.ReaderRegistry
	Swipes    *service.SwipeService
	Heartbeat *service.HeartbeatService
	Pruner    *service.Pruner
	Repairer  *service.StatusRepairer

	closers []func()
}

// NewLogger returns the service logger: stdout, plus path when set.
func NewLogger(prefix, path string) (*log.Logger, func(), error) {
	out := io.Writer(os.Stdout)
	closeFn := func() {}
	if path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		out = io.MultiWriter(os.Stdout, f)
		closeFn = func() { _ = f.Close() }
	}
	return log.New(out, prefix, log.LstdFlags|log.LUTC), closeFn, nil
}

// Build opens every store and wires the service.  On error everything
// opened so far is closed again.
func Build(ctx context.Context, cfg config.Config, logger *log.Logger, opt Options) (*App, error) {
	a := &App{Config: cfg, Logger: logger}
	if err := a.build(ctx, opt); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) build(ctx context.Context, opt Options) error {
	cfg, logger := a.Config, a.Logger

	loc := time.Local
	if cfg.Attendance.Location != "" {
		var err error
		if loc, err = time.LoadLocation(cfg.Attendance.Location); err != nil {
			return fmt.Errorf("Build location: %w", err)
		}
	}

	if err := a.openOperationalStores(ctx); err != nil {
		return err
	}

	tables := opt.Tables
	if tables == nil {
		var err error
		if tables, err = a.openTables(ctx); err != nil {
			return err
		}
	}
	tables = store.WithLimitsAll(tables, store.Limits{
		Timeout: cfg.Store.Timeout,
		Limiter: store.NewLimiter(cfg.Store.RatePerSecond, cfg.Store.Burst),
	})

	users, err := tables.Open(ctx, cfg.Store.UsersSheet, attendance.UsersHeader)
	if err != nil {
		return fmt.Errorf("Build open users: %w", err)
	}
	statusTable, err := tables.Open(ctx, cfg.Store.StatusSheet, attendance.StatusHeader)
	if err != nil {
		return fmt.Errorf("Build open status: %w", err)
	}
	records, err := tables.Open(ctx, cfg.Store.RecordsSheet, attendance.RecordsHeader)
	if err != nil {
		return fmt.Errorf("Build open records: %w", err)
	}

	if cfg.Env == "dev" && cfg.Store.Backend != config.BackendSheets {
		if err := seedSampleUser(ctx, users); err != nil {
			return err
		}
	}

	a.Metrics = metrics.New(func() int { return len(a.Cache.Pending()) })
	a.Cache = attendance.NewStatusCache(statusTable, attendance.StatusCacheConfig{
		TTL: cfg.Attendance.StatusCacheTTL,
		// A refresh is a find plus a read, each bounded by the store timeout.
		RefreshTimeout: 2 * cfg.Store.Timeout,
		Location:       loc,
		Observer:       a.Metrics,
	})
	if a.Writer != nil {
		a.Metrics.WatchWriterQueue(a.Writer.Queued)
	}
	a.Engine = attendance.NewEngine(attendance.NewDirectory(users), a.Cache, attendance.NewLedger(records), attendance.EngineConfig{
		Location: loc,
		Logger:   logger,
		Observer: a.Metrics,
	})

	sink := opt.Feedback
	if sink == nil {
		var err error
		if sink, err = a.buildFeedback(opt.Console); err != nil {
			return err
		}
	}

	a.Registry = service.NewReaderRegistry(a.Readers)
	a.Swipes = service.NewSwipeService(a.Registry, a.Engine, a.SwipeLog, service.SwipeConfig{
		Debounce: attendance.DebounceConfig{
			MinInterval:     cfg.Attendance.MinInterval,
			SameBadgeWindow: cfg.Attendance.SameBadgeWindow,
		},
		SharedDebounce: cfg.Attendance.DebounceShared,
		Feedback:       sink,
		Logger:         logger,
		Observer:       a.Metrics,
	})
	a.Heartbeat = service.NewHeartbeatService(a.Heartbeats, a.Registry, service.HeartbeatConfig{
		SwipeLog:     a.SwipeLog,
		OfflineAfter: cfg.Attendance.ReaderOfflineAfter,
	})

	a.Pruner = service.NewPruner(service.PrunerConfig{IntervalHours: cfg.Retention.PruneIntervalHours}, logger,
		service.PruneTarget{Name: "heartbeats", Store: a.Heartbeats, RetentionDays: cfg.Retention.HeartbeatDays},
		service.PruneTarget{Name: "swipes", Store: a.SwipeLog, RetentionDays: cfg.Retention.SwipeLogDays},
	)
	a.Repairer = service.NewStatusRepairer(a.Engine, service.RepairerConfig{
		Interval:         cfg.Attendance.RepairInterval,
		ReconcileOnStart: cfg.Attendance.ReconcileOnStart,
	}, logger)

	return nil
}

// openOperationalStores opens the reader, heartbeat and swipe log stores
// and commissions the configured readers.  They live in SQLite unless the
// whole service runs in memory.
func (a *App) openOperationalStores(ctx context.Context) error {
	cfg := a.Config
	if cfg.Store.Backend == config.BackendMemory {
		rs := memory.NewReaderStore(nil)
		for _, r := range cfg.Readers {
			rs.Put(store.ReaderRecord{ReaderID: r.ID, Mode: store.ReaderMode(r.Mode), Enabled: true})
		}
		a.Readers = rs
		a.Heartbeats = memory.NewHeartbeatStore()
		a.SwipeLog = memory.NewSwipeLogStore()
		return nil
	}

	db, err := dbpkg.Open(ctx, dbpkg.Config{Path: cfg.DB.Path, Env: cfg.Env, Logger: a.Logger})
	if err != nil {
		return fmt.Errorf("Build open db: %w", err)
	}
	a.DB = db
	a.closers = append(a.closers, func() { _ = db.Close() })
	a.Writer = dbpkg.NewWorker(db)
	a.closers = append(a.closers, a.Writer.Close)

	if cfg.Env == "dev" {
		if err := dbpkg.SeedDev(ctx, db, dbpkg.SeedDevOptions{Readers: cfg.ReaderIDs()}); err != nil {
			return fmt.Errorf("Build seed: %w", err)
		}
	}

	rs := sqlite.NewReaderStore(db, a.Writer)
	for _, r := range cfg.Readers {
		if err := rs.Commission(ctx, r.ID, store.ReaderMode(r.Mode)); err != nil {
			return fmt.Errorf("Build commission %s: %w", r.ID, err)
		}
	}
	a.Readers = rs
	a.Heartbeats = sqlite.NewHeartbeatStore(db, a.Writer)
	a.SwipeLog = sqlite.NewSwipeLogStore(db, a.Writer)
	return nil
}

func (a *App) openTables(ctx context.Context) (store.Tables, error) {
	switch a.Config.Store.Backend {
	case config.BackendSheets:
		ss, err := gsheets.New(ctx, gsheets.Config{
			SpreadsheetID:   a.Config.Store.SpreadsheetID,
			CredentialsFile: a.Config.Store.CredentialsFile,
		})
		if err != nil {
			return nil, fmt.Errorf("Build: %w", err)
		}
		return ss, nil
	case config.BackendMemory:
		return memory.NewSheets(), nil
	default:
		return sqlite.NewSheets(a.DB, a.Writer), nil
	}
}

func (a *App) buildFeedback(console io.Writer) (feedback.Sink, error) {
	fc := a.Config.Feedback
	sinks := feedback.Fanout{feedback.LogSink{Logger: a.Logger}}

	if fc.Console {
		if console == nil {
			console = os.Stdout
		}
		sinks = append(sinks, feedback.NewConsoleSink(console))
	}
	if fc.Audio.Enabled {
		sinks = append(sinks, feedback.NewAudioSink(fc.Audio.Player, fc.Audio.Clips))
	}
	if fc.MQTT.Broker != "" {
		pub, err := feedback.NewRealPublisher(fc.MQTT.Broker, fc.MQTT.ClientID)
		if err != nil {
			return nil, fmt.Errorf("Build mqtt: %w", err)
		}
		a.closers = append(a.closers, func() { _ = pub.Close() })
		sinks = append(sinks, feedback.MQTTSink{Publisher: pub, Topic: fc.MQTT.Topic})
	}
	if fc.GPIO.Enabled {
		leds, err := feedback.NewRealLEDs(fc.GPIO.Chip, fc.GPIO.GreenPin, fc.GPIO.RedPin)
		if err != nil {
			return nil, fmt.Errorf("Build gpio: %w", err)
		}
		a.closers = append(a.closers, func() { _ = leds.Close() })
		sinks = append(sinks, feedback.NewGPIOSink(leds, fc.GPIO.Hold))
	}
	return sinks, nil
}

// seedSampleUser adds one Users row to an empty dev sheet so a fresh
// install has a badge to try.
func seedSampleUser(ctx context.Context, users store.Table) error {
	rows, err := users.Rows(ctx)
	if err != nil {
		return fmt.Errorf("Build seed users: %w", err)
	}
	if len(rows) > 0 {
		return nil
	}
	if err := users.AppendRow(ctx, store.Row{"0A1B2C3D", "Sample User", "Engineering", "E0001"}); err != nil {
		return fmt.Errorf("Build seed users: %w", err)
	}
	return nil
}

// Close releases everything Build opened, newest first.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
