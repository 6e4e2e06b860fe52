package feedback

import (
	"context"
	"sync"
	"time"
)

// LEDs drives the reader's two indicator LEDs.
type LEDs interface {
	Set(green, red bool) error
	Close() error
}

// Default BCM pins for the indicator LEDs.
const (
	PinGreen = 17
	PinRed   = 27
)

// GPIOSink lights green for an accepted swipe and red for anything else
// that reached a decision, then turns both off after Hold.  Notify returns
// as soon as the LED is lit.
type GPIOSink struct {
	leds LEDs
	hold time.Duration

	mu    sync.Mutex
	timer *time.Timer
}

func NewGPIOSink(leds LEDs, hold time.Duration) *GPIOSink {
	if hold <= 0 {
		hold = 700 * time.Millisecond
	}
	return &GPIOSink{leds: leds, hold: hold}
}

func (s *GPIOSink) Notify(_ context.Context, ev Event) error {
	var green, red bool
	switch ev.Outcome {
	case OutcomeAccepted:
		green = true
	case OutcomeRejected, OutcomeFailed, OutcomeUnknownReader:
		red = true
	default:
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer != nil {
		s.timer.Stop()
	}
	if err := s.leds.Set(green, red); err != nil {
		return err
	}
	s.timer = time.AfterFunc(s.hold, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		_ = s.leds.Set(false, false)
	})
	return nil
}

// FakeLEDs records every Set call.
type FakeLEDs struct {
	mu     sync.Mutex
	states [][2]bool
	Closed bool
}

func (f *FakeLEDs) Set(green, red bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.states = append(f.states, [2]bool{green, red})
	return nil
}

func (f *FakeLEDs) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Closed = true
	return nil
}

// States returns the recorded (green, red) pairs.
func (f *FakeLEDs) States() [][2]bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][2]bool, len(f.states))
	copy(out, f.states)
	return out
}
