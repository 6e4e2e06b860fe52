package reader

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLineReader(t *testing.T) {
	r := NewLineReader(io.NopCloser(strings.NewReader("aa11\n\n  BB22 \n")))
	ctx := context.Background()

	var got []string
	var err error
	require.Eventually(t, func() bool {
		var card string
		card, err = r.ReadCard(ctx)
		if card != "" {
			got = append(got, card)
		}
		return err != nil
	}, time.Second, time.Millisecond)

	assert.Equal(t, []string{"aa11", "BB22"}, got)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestLineReader_CancelledContext(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()
	r := NewLineReader(pr)
	defer r.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := r.ReadCard(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	card, err := r.ReadCard(context.Background())
	assert.NoError(t, err)
	assert.Empty(t, card, "no card presented yet")
}

func TestFake(t *testing.T) {
	f := &Fake{}
	boom := errors.New("boom")
	f.Push("AA11")
	f.PushError(boom)
	ctx := context.Background()

	card, err := f.ReadCard(ctx)
	assert.NoError(t, err)
	assert.Equal(t, "AA11", card)

	_, err = f.ReadCard(ctx)
	assert.ErrorIs(t, err, boom)

	card, err = f.ReadCard(ctx)
	assert.NoError(t, err)
	assert.Empty(t, card)
	assert.Zero(t, f.Pending())
}
