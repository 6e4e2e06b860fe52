package feedback

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testEvent = Event{
	SwipeID:    "swp-1",
	ReaderID:   "reader-001",
	BadgeID:    "AA11",
	Holder:     "Ann",
	Registered: true,
	Outcome:    OutcomeAccepted,
	Action:     "IN",
	State:      "IN",
	At:         time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC),
}

func TestFanout_DeliversToAllAndJoinsErrors(t *testing.T) {
	var calls atomic.Int32
	boom := errors.New("boom")
	rec := &Recorder{}

	f := Fanout{
		rec,
		SinkFunc(func(context.Context, Event) error { calls.Add(1); return boom }),
		nil,
		SinkFunc(func(context.Context, Event) error { calls.Add(1); return nil }),
	}

	err := f.Notify(context.Background(), testEvent)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, int32(2), calls.Load())
	assert.Len(t, rec.Events(), 1)
}

func TestLogSink(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, LogSink{Logger: log.New(&buf, "", 0)}.Notify(context.Background(), testEvent))
	assert.Contains(t, buf.String(), "badge=AA11")
	assert.Contains(t, buf.String(), "outcome=accepted")
}

func TestAudioSink_PlaysClipPerOutcome(t *testing.T) {
	var played []string
	s := NewAudioSink([]string{"player", "-q"}, map[string]string{
		ClipIn:       "/sounds/in.wav",
		ClipOut:      "/sounds/out.wav",
		ClipRejected: "/sounds/no.wav",
	})
	s.run = func(_ context.Context, name string, args ...string) error {
		played = append(played, name+" "+strings.Join(args, " "))
		return nil
	}
	ctx := context.Background()

	require.NoError(t, s.Notify(ctx, testEvent))
	out := testEvent
	out.Action = "OUT"
	require.NoError(t, s.Notify(ctx, out))
	rej := testEvent
	rej.Outcome = OutcomeRejected
	require.NoError(t, s.Notify(ctx, rej))
	failed := testEvent
	failed.Outcome = OutcomeFailed
	require.NoError(t, s.Notify(ctx, failed), "no clip configured is silent")

	assert.Equal(t, []string{
		"player -q /sounds/in.wav",
		"player -q /sounds/out.wav",
		"player -q /sounds/no.wav",
	}, played)
}

func TestConsoleSink(t *testing.T) {
	var buf bytes.Buffer
	s := NewConsoleSink(&buf)
	ctx := context.Background()

	require.NoError(t, s.Notify(ctx, testEvent))
	assert.Contains(t, buf.String(), "Welcome, Ann")
	assert.Contains(t, buf.String(), "08:00:00")

	buf.Reset()
	rej := testEvent
	rej.Outcome = OutcomeRejected
	require.NoError(t, s.Notify(ctx, rej))
	assert.Contains(t, buf.String(), "Already in")

	buf.Reset()
	sup := testEvent
	sup.Outcome = OutcomeSuppressed
	require.NoError(t, s.Notify(ctx, sup))
	assert.Empty(t, buf.String())
}

func TestMQTTSink(t *testing.T) {
	pub := NewFakePublisher()
	s := MQTTSink{Publisher: pub}

	require.NoError(t, s.Notify(context.Background(), testEvent))
	require.Len(t, pub.Payloads, 1)
	assert.Equal(t, DefaultTopic, pub.Topics[0])

	var p Payload
	require.NoError(t, json.Unmarshal(pub.Payloads[0], &p))
	assert.Equal(t, "AA11", p.Swipe.Badge)
	assert.Equal(t, "2024-03-01T08:00:00Z", p.Swipe.Timestamp)

	pub.PublishError = errors.New("broker gone")
	assert.Error(t, s.Notify(context.Background(), testEvent))
}

func TestGPIOSink_BlinksAndClears(t *testing.T) {
	leds := &FakeLEDs{}
	s := NewGPIOSink(leds, 10*time.Millisecond)

	require.NoError(t, s.Notify(context.Background(), testEvent))
	assert.Equal(t, [2]bool{true, false}, leds.States()[0])

	assert.Eventually(t, func() bool {
		st := leds.States()
		return len(st) == 2 && st[1] == [2]bool{false, false}
	}, time.Second, 5*time.Millisecond)

	rej := testEvent
	rej.Outcome = OutcomeRejected
	require.NoError(t, s.Notify(context.Background(), rej))
	assert.Equal(t, [2]bool{false, true}, leds.States()[2])

	sup := testEvent
	sup.Outcome = OutcomeSuppressed
	require.NoError(t, s.Notify(context.Background(), sup))
}
