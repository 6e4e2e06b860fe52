package store

import (
	"context"
	"time"
)

// ReaderMode decides which action a reader's swipes request.
type ReaderMode string

const (
	ModeIn     ReaderMode = "in"
	ModeOut    ReaderMode = "out"
	ModeToggle ReaderMode = "toggle"
)

// Valid reports whether m is one of the known modes.
func (m ReaderMode) Valid() bool {
	switch m {
	case ModeIn, ModeOut, ModeToggle:
		return true
	}
	return false
}

type ReaderRecord struct {
	ReaderID string
	Mode     ReaderMode
	Enabled  bool
	LastSeen time.Time
}

type ReaderStore interface {
	// Lookup returns the reader's record.  found=false means the reader was
	// never commissioned.
	Lookup(ctx context.Context, readerID string) (ReaderRecord, bool, error)
	MarkSeen(ctx context.Context, readerID string, t time.Time) error
	// List returns every reader the store knows, commissioned or not,
	// sorted by id.
	List(ctx context.Context) ([]ReaderRecord, error)
}
