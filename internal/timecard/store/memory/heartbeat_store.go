package memory

import (
	"context"
	"sync"
	"time"

	"github.com/BrandonDHaskell/timecard/internal/timecard/store"
)

// HeartbeatStore keeps every heartbeat per reader in arrival order.
type HeartbeatStore struct {
	mu    sync.RWMutex
	beats map[string][]store.HeartbeatRecord
}

func NewHeartbeatStore() *HeartbeatStore {
	return &HeartbeatStore{beats: make(map[string][]store.HeartbeatRecord)}
}

func (s *HeartbeatStore) RecordHeartbeat(_ context.Context, rec store.HeartbeatRecord) error {
	if rec.ReaderID == "" {
		return nil
	}
	if rec.ReceivedAt.IsZero() {
		rec.ReceivedAt = time.Now().UTC()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.beats[rec.ReaderID] = append(s.beats[rec.ReaderID], rec)
	return nil
}

func (s *HeartbeatStore) Latest(_ context.Context, readerID string) (store.HeartbeatRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	beats := s.beats[readerID]
	if len(beats) == 0 {
		return store.HeartbeatRecord{}, false, nil
	}
	return beats[len(beats)-1], true, nil
}

func (s *HeartbeatStore) PruneOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, beats := range s.beats {
		kept := beats[:0]
		for _, b := range beats {
			if b.ReceivedAt.Before(cutoff) {
				n++
				continue
			}
			kept = append(kept, b)
		}
		if len(kept) == 0 {
			delete(s.beats, id)
		} else {
			s.beats[id] = kept
		}
	}
	return n, nil
}

// Count returns how many heartbeats readerID has stored.
func (s *HeartbeatStore) Count(readerID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.beats[readerID])
}
