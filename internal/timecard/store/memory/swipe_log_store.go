package memory

import (
	"context"
	"sync"
	"time"

	"github.com/BrandonDHaskell/timecard/internal/timecard/store"
)

// SwipeLogStore is an in-memory append-only log of swipe outcomes.
// It is intended for use in tests and dev environments.
type SwipeLogStore struct {
	mu     sync.Mutex
	events []store.SwipeLogRecord
}

func NewSwipeLogStore() *SwipeLogStore {
	return &SwipeLogStore{}
}

func (s *SwipeLogStore) RecordSwipe(_ context.Context, rec store.SwipeLogRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, rec)
	return nil
}

func (s *SwipeLogStore) LastForReader(_ context.Context, readerID string) (store.SwipeLogRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.events) - 1; i >= 0; i-- {
		if s.events[i].ReaderID == readerID {
			return s.events[i], true, nil
		}
	}
	return store.SwipeLogRecord{}, false, nil
}

func (s *SwipeLogStore) PruneOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.events[:0]
	var n int64
	for _, e := range s.events {
		if e.ReceivedAt.Before(cutoff) {
			n++
			continue
		}
		kept = append(kept, e)
	}
	s.events = kept
	return n, nil
}

// Events returns a copy of all recorded swipes.  Test-only helper.
func (s *SwipeLogStore) Events() []store.SwipeLogRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]store.SwipeLogRecord, len(s.events))
	copy(out, s.events)
	return out
}
