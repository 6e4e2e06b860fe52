package service

import (
	"context"
	"strings"
	"time"

	"github.com/BrandonDHaskell/timecard/internal/timecard/store"
)

type ReaderRegistry struct {
	store store.ReaderStore
}

func NewReaderRegistry(st store.ReaderStore) *ReaderRegistry {
	return &ReaderRegistry{store: st}
}

// Lookup returns the reader's record and whether it may submit swipes:
// found, enabled and in a valid mode.
func (r *ReaderRegistry) Lookup(ctx context.Context, readerID string) (store.ReaderRecord, bool, error) {
	readerID = strings.TrimSpace(readerID)
	if readerID == "" {
		return store.ReaderRecord{}, false, nil
	}
	rec, found, err := r.store.Lookup(ctx, readerID)
	if err != nil {
		return store.ReaderRecord{}, false, err
	}
	return rec, found && rec.Enabled && rec.Mode.Valid(), nil
}

func (r *ReaderRegistry) IsKnown(ctx context.Context, readerID string) (bool, error) {
	_, known, err := r.Lookup(ctx, readerID)
	return known, err
}

// NoteSeen records that readerID talked to the server at t.
func (r *ReaderRegistry) NoteSeen(ctx context.Context, readerID string, t time.Time) error {
	readerID = strings.TrimSpace(readerID)
	if readerID == "" {
		return nil
	}
	return r.store.MarkSeen(ctx, readerID, t.UTC())
}

// Readers lists every reader the store knows, commissioned or not.
func (r *ReaderRegistry) Readers(ctx context.Context) ([]store.ReaderRecord, error) {
	return r.store.List(ctx)
}
