package service

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/BrandonDHaskell/timecard/internal/reader"
	"github.com/BrandonDHaskell/timecard/internal/timecard/attendance"
	"github.com/BrandonDHaskell/timecard/internal/timecard/types"
)

const (
	DefaultPollInterval = 100 * time.Millisecond
	DefaultErrorBackoff = time.Second
)

// SwipeHandler is satisfied by *SwipeService.
type SwipeHandler interface {
	Handle(ctx context.Context, req types.SwipeRequest) (types.SwipeResponse, error)
}

// ReaderLoop polls a locally attached reader and submits every card it
// sees as a swipe from ReaderID.
type ReaderLoop struct {
	ReaderID string
	Source   reader.Source
	Swipes   SwipeHandler
	Logger   *log.Logger

	// Poll is the pause between reads; Backoff replaces it after an
	// error.
	Poll    time.Duration
	Backoff time.Duration
}

// Run polls until ctx is done or the source closes.
func (l *ReaderLoop) Run(ctx context.Context) error {
	poll := l.Poll
	if poll <= 0 {
		poll = DefaultPollInterval
	}
	backoff := l.Backoff
	if backoff <= 0 {
		backoff = DefaultErrorBackoff
	}

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}

		wait := poll
		card, err := l.Source.ReadCard(ctx)
		switch {
		case errors.Is(err, reader.ErrClosed):
			return err
		case err != nil:
			if ctx.Err() != nil {
				return ctx.Err()
			}
			l.Logger.Printf("reader %s read error: %v", l.ReaderID, err)
			wait = backoff
		case card != "":
			resp, err := l.Swipes.Handle(ctx, types.SwipeRequest{ReaderID: l.ReaderID, CardID: card})
			switch {
			case err == nil:
				l.Logger.Printf("reader %s card=%s outcome=%s state=%s", l.ReaderID, card, resp.Outcome, resp.State)
			case errors.Is(err, attendance.ErrInvalidBadgeID):
				l.Logger.Printf("reader %s ignored card=%q: %v", l.ReaderID, card, err)
			default:
				l.Logger.Printf("reader %s card=%s failed: %v", l.ReaderID, card, err)
				wait = backoff
			}
		}
		timer.Reset(wait)
	}
}
