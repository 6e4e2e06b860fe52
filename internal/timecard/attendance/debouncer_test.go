package attendance

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDebouncer_Defaults(t *testing.T) {
	d := NewDebouncer(DebounceConfig{})
	assert.Equal(t, DefaultMinInterval, d.MinInterval())
	assert.Equal(t, 2*DefaultMinInterval, d.SameBadgeWindow())

	d = NewDebouncer(DebounceConfig{MinInterval: time.Second, SameBadgeWindow: time.Millisecond})
	assert.Equal(t, time.Second, d.SameBadgeWindow(), "same-badge window is never shorter than the interval")
}

func TestDebouncer_GlobalInterval(t *testing.T) {
	d := NewDebouncer(DebounceConfig{MinInterval: 1500 * time.Millisecond})

	assert.True(t, d.Detect("AA11", testEpoch))
	// A different badge inside the interval is swallowed too.
	assert.False(t, d.Detect("BB22", testEpoch.Add(time.Second)))
	assert.True(t, d.Detect("BB22", testEpoch.Add(1500*time.Millisecond)))
	assert.Equal(t, uint64(1), d.Suppressed())
}

func TestDebouncer_SameBadgeWindow(t *testing.T) {
	d := NewDebouncer(DebounceConfig{MinInterval: 1500 * time.Millisecond})

	assert.True(t, d.Detect("AA11", testEpoch))
	assert.False(t, d.Detect("AA11", testEpoch.Add(2*time.Second)))
	// Suppressed detections do not extend the window.
	assert.True(t, d.Detect("AA11", testEpoch.Add(3*time.Second)))
	assert.Equal(t, uint64(1), d.Suppressed())
}

func TestDebouncer_Concurrent(t *testing.T) {
	d := NewDebouncer(DebounceConfig{MinInterval: time.Minute})

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		forwarded int
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if d.Detect("AA11", testEpoch) {
				mu.Lock()
				forwarded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, forwarded)
	assert.Equal(t, uint64(49), d.Suppressed())
}
