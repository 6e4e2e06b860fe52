// Package reader provides card sources for locally attached readers.
//
// A Source is polled: ReadCard returns the id of a card presented since the
// last call, or "" when there is none.
package reader

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
)

// ErrClosed is returned once the underlying stream has ended.
var ErrClosed = errors.New("reader closed")

type Source interface {
	ReadCard(ctx context.Context) (string, error)
	Close() error
}

// LineReader reads one card id per line from a stream.  Keyboard-wedge USB
// readers, serial adapters and a terminal all look like this.
type LineReader struct {
	src   io.ReadCloser
	lines chan string

	mu  sync.Mutex
	err error
}

// NewLineReader starts scanning src.  Blank lines are ignored.
func NewLineReader(src io.ReadCloser) *LineReader {
	r := &LineReader{src: src, lines: make(chan string, 16)}
	go r.scan()
	return r
}

func (r *LineReader) scan() {
	sc := bufio.NewScanner(r.src)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line != "" {
			r.lines <- line
		}
	}
	err := sc.Err()
	if err == nil {
		err = ErrClosed
	} else {
		err = fmt.Errorf("scan: %w", err)
	}
	r.mu.Lock()
	r.err = err
	r.mu.Unlock()
	close(r.lines)
}

// ReadCard never blocks.  Queued ids are returned before a stream error.
func (r *LineReader) ReadCard(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	select {
	case line, ok := <-r.lines:
		if !ok {
			r.mu.Lock()
			defer r.mu.Unlock()
			return "", r.err
		}
		return line, nil
	default:
		return "", nil
	}
}

func (r *LineReader) Close() error {
	return r.src.Close()
}

// Fake returns queued reads in order, then "" forever.
type Fake struct {
	mu     sync.Mutex
	reads  []fakeRead
	closed bool
}

type fakeRead struct {
	card string
	err  error
}

// Push queues a card id.
func (f *Fake) Push(cards ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range cards {
		f.reads = append(f.reads, fakeRead{card: c})
	}
}

// PushError queues a read error.
func (f *Fake) PushError(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads = append(f.reads, fakeRead{err: err})
}

// Pending returns how many queued reads are left.
func (f *Fake) Pending() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.reads)
}

func (f *Fake) ReadCard(context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.reads) == 0 {
		return "", nil
	}
	r := f.reads[0]
	f.reads = f.reads[1:]
	return r.card, r.err
}

func (f *Fake) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}
