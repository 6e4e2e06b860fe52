package store

import (
	"context"
	"time"
)

// HeartbeatRecord is one stored reader heartbeat.
type HeartbeatRecord struct {
	ReaderID        string
	ReceivedAt      time.Time
	FirmwareVersion string
	Uptime          time.Duration
	RSSIDbm         *int
	IP              string
	Seq             uint64
	ReadErrors      uint64
}

// HeartbeatStore keeps reader heartbeats.  Heartbeats are append-only; the
// latest one per reader also feeds the reader's liveness snapshot.
type HeartbeatStore interface {
	RecordHeartbeat(ctx context.Context, rec HeartbeatRecord) error
	// Latest returns the reader's most recent heartbeat.
	Latest(ctx context.Context, readerID string) (HeartbeatRecord, bool, error)
	PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}
