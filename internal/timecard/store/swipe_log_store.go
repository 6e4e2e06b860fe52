package store

import (
	"context"
	"time"
)

// SwipeLogRecord captures the outcome of one physical swipe for the
// operational log.  Unlike the Records sheet it also keeps rejected,
// failed, suppressed and unknown-reader swipes.
type SwipeLogRecord struct {
	SwipeID    string
	ReaderID   string
	BadgeID    string
	Action     string // requested action; empty when suppressed before resolution
	Outcome    string // accepted | rejected | failed | suppressed | unknown_reader
	State      string // state after the swipe, when known
	Reason     string
	ReceivedAt time.Time
	DecidedAt  time.Time
}

// SwipeLogStore persists swipe outcomes as an append-only log.
type SwipeLogStore interface {
	RecordSwipe(ctx context.Context, rec SwipeLogRecord) error
	// LastForReader returns the most recently received swipe of readerID.
	LastForReader(ctx context.Context, readerID string) (SwipeLogRecord, bool, error)
	PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}
