// Package feedback tells the person at the reader what happened to their
// swipe: log lines, audio clips, a console panel, MQTT events and LEDs.
//
// Sinks are best effort.  A sink error is logged by the caller and never
// changes the outcome of a swipe.
package feedback

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Outcome strings carried by Event.Outcome.
const (
	OutcomeAccepted      = "accepted"
	OutcomeRejected      = "rejected"
	OutcomeFailed        = "failed"
	OutcomeSuppressed    = "suppressed"
	OutcomeUnknownReader = "unknown_reader"
)

// Event describes one decided swipe.
type Event struct {
	SwipeID    string
	ReaderID   string
	BadgeID    string
	Holder     string
	Registered bool
	Outcome    string
	Action     string // IN | OUT
	State      string // state after the swipe
	Reason     string
	At         time.Time
}

// Sink receives swipe events.
type Sink interface {
	Notify(ctx context.Context, ev Event) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, ev Event) error

func (f SinkFunc) Notify(ctx context.Context, ev Event) error { return f(ctx, ev) }

// Fanout delivers each event to every sink concurrently and waits for all of
// them.  The returned error joins every sink failure.
type Fanout []Sink

func (f Fanout) Notify(ctx context.Context, ev Event) error {
	var (
		g    errgroup.Group
		mu   sync.Mutex
		errs []error
	)
	for _, s := range f {
		if s == nil {
			continue
		}
		g.Go(func() error {
			if err := s.Notify(ctx, ev); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}

// Recorder is a Sink that keeps every event.  Test helper.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Notify(_ context.Context, ev Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}
