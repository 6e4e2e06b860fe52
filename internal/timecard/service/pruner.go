package service

import (
	"context"
	"log"
	"time"
)

// Prunable is any append-only log with a retention window.
type Prunable interface {
	PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// PruneTarget is one log kept by the Pruner.
type PruneTarget struct {
	Name  string
	Store Prunable

	// RetentionDays is how many days of history to keep.  0 keeps
	// everything.
	RetentionDays int
}

// PrunerConfig holds the parameters for NewPruner.
type PrunerConfig struct {
	// IntervalHours is how often the pruner runs.  Defaults to 6.
	IntervalHours int
}

// Pruner periodically deletes heartbeat and swipe log rows older than
// their retention period.  It runs as a background goroutine and is safe
// to stop via its context or the Stop method.
//
// Targets with a retention of 0 are skipped; when every target is, the
// pruner does not start.
type Pruner struct {
	targets  []PruneTarget
	interval time.Duration
	logger   *log.Logger
	now      func() time.Time
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewPruner creates a pruner but does not start it.
// Call Start to begin the background loop.
func NewPruner(cfg PrunerConfig, logger *log.Logger, targets ...PruneTarget) *Pruner {
	interval := time.Duration(cfg.IntervalHours) * time.Hour
	if interval <= 0 {
		interval = 6 * time.Hour
	}

	var active []PruneTarget
	for _, t := range targets {
		if t.Store != nil && t.RetentionDays > 0 {
			active = append(active, t)
		}
	}

	return &Pruner{
		targets:  active,
		interval: interval,
		logger:   logger,
		now:      time.Now,
		done:     make(chan struct{}),
	}
}

// Start begins the background pruning loop.  It runs an immediate prune
// on startup, then repeats on the configured interval.  The loop exits
// when ctx is cancelled or Stop is called.
func (p *Pruner) Start(ctx context.Context) {
	if len(p.targets) == 0 {
		p.logger.Printf("pruner disabled (no retention configured)")
		close(p.done)
		return
	}

	ctx, p.cancel = context.WithCancel(ctx)

	go p.loop(ctx)

	for _, t := range p.targets {
		p.logger.Printf("pruner started target=%s retention=%dd interval=%dh",
			t.Name, t.RetentionDays, int(p.interval.Hours()))
	}
}

// Stop signals the pruner to exit and waits for it to finish.
func (p *Pruner) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
	<-p.done
}

func (p *Pruner) loop(ctx context.Context) {
	defer close(p.done)

	// Run immediately on startup to clean up any backlog.
	p.RunOnce(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.RunOnce(ctx)
		}
	}
}

// RunOnce prunes every target once and returns the rows deleted per
// target name.  Errors are logged and leave the target out of the result.
func (p *Pruner) RunOnce(ctx context.Context) map[string]int64 {
	out := make(map[string]int64, len(p.targets))
	for _, t := range p.targets {
		cutoff := p.now().UTC().AddDate(0, 0, -t.RetentionDays)
		deleted, err := t.Store.PruneOlderThan(ctx, cutoff)
		if err != nil {
			p.logger.Printf("prune %s error: %v", t.Name, err)
			continue
		}
		out[t.Name] = deleted
		if deleted > 0 {
			p.logger.Printf("prune %s: deleted %d rows older than %s",
				t.Name, deleted, cutoff.Format(time.RFC3339))
		}
	}
	return out
}
