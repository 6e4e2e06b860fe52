package service

import (
	"context"
	"log"
	"time"

	"github.com/BrandonDHaskell/timecard/internal/timecard/attendance"
)

type RepairerConfig struct {
	// Interval between flushes of pending status writes.  0 disables the
	// repairer.
	Interval time.Duration

	// ReconcileOnStart compares every Status row with the ledger before
	// the first flush.
	ReconcileOnStart bool
}

// StatusRepairer lands status writes that failed after their ledger row was
// appended, so the Status sheet catches up with the ledger without waiting
// for the badge's next swipe.
type StatusRepairer struct {
	engine *attendance.Engine
	cfg    RepairerConfig
	logger *log.Logger
	cancel context.CancelFunc
	done   chan struct{}
}

func NewStatusRepairer(engine *attendance.Engine, cfg RepairerConfig, logger *log.Logger) *StatusRepairer {
	return &StatusRepairer{
		engine: engine,
		cfg:    cfg,
		logger: logger,
		done:   make(chan struct{}),
	}
}

func (r *StatusRepairer) Start(ctx context.Context) {
	if r.cfg.Interval <= 0 {
		r.logger.Printf("status repairer disabled (interval=0)")
		close(r.done)
		return
	}

	ctx, r.cancel = context.WithCancel(ctx)
	go r.loop(ctx)

	r.logger.Printf("status repairer started interval=%s reconcile_on_start=%t",
		r.cfg.Interval, r.cfg.ReconcileOnStart)
}

// Stop signals the repairer to exit and waits for it to finish.
func (r *StatusRepairer) Stop() {
	if r.cancel != nil {
		r.cancel()
	}
	<-r.done
}

func (r *StatusRepairer) loop(ctx context.Context) {
	defer close(r.done)

	if r.cfg.ReconcileOnStart {
		if _, err := r.engine.Reconcile(ctx); err != nil {
			r.logger.Printf("status reconcile error: %v", err)
		}
	}

	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.RunOnce(ctx)
		}
	}
}

// RunOnce flushes pending status writes and returns how many landed.
func (r *StatusRepairer) RunOnce(ctx context.Context) int {
	n, err := r.engine.FlushPending(ctx)
	if err != nil {
		r.logger.Printf("status repair: flushed=%d err=%v", n, err)
		return n
	}
	if n > 0 {
		r.logger.Printf("status repair: flushed=%d", n)
	}
	return n
}
