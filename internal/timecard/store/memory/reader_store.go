package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/BrandonDHaskell/timecard/internal/timecard/store"
)

type ReaderStore struct {
	mu      sync.RWMutex
	readers map[string]store.ReaderRecord
}

// NewReaderStore commissions every id in readers, enabled and in toggle
// mode.
func NewReaderStore(readers []string) *ReaderStore {
	s := &ReaderStore{readers: make(map[string]store.ReaderRecord, len(readers))}
	for _, r := range readers {
		r = strings.TrimSpace(r)
		if r != "" {
			s.readers[r] = store.ReaderRecord{ReaderID: r, Mode: store.ModeToggle, Enabled: true}
		}
	}
	return s
}

// Put commissions or replaces a reader.
func (s *ReaderStore) Put(rec store.ReaderRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.readers[rec.ReaderID] = rec
}

func (s *ReaderStore) Lookup(_ context.Context, readerID string) (store.ReaderRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.readers[readerID]
	return rec, ok, nil
}

func (s *ReaderStore) MarkSeen(_ context.Context, readerID string, t time.Time) error {
	if t.IsZero() {
		t = time.Now().UTC()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.readers[readerID]
	if !ok {
		// Seen but never commissioned: tracked, disabled.
		rec = store.ReaderRecord{ReaderID: readerID, Mode: store.ModeToggle}
	}
	if t.After(rec.LastSeen) {
		rec.LastSeen = t
	}
	s.readers[readerID] = rec
	return nil
}

func (s *ReaderStore) List(context.Context) ([]store.ReaderRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]store.ReaderRecord, 0, len(s.readers))
	for _, rec := range s.readers {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ReaderID < out[j].ReaderID })
	return out, nil
}
