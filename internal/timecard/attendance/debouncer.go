package attendance

import (
	"sync"
	"time"
)

// DefaultMinInterval is the spacing enforced between two forwarded
// detections when none is configured.
const DefaultMinInterval = 1500 * time.Millisecond

// DebounceConfig configures a Debouncer.
type DebounceConfig struct {
	// MinInterval is the minimum spacing between two forwarded detections,
	// whatever the badge.
	MinInterval time.Duration

	// SameBadgeWindow is the stricter spacing applied when a detection
	// repeats the last forwarded badge.  Zero means 2 x MinInterval.
	SameBadgeWindow time.Duration
}

// Debouncer turns a stream of raw tag detections into distinct swipes.
//
// The interval is global, not per badge: a second badge presented within
// MinInterval of the last forwarded one is dropped too.  This keeps reader
// polling cheap but can swallow a near-simultaneous swipe when one
// Debouncer is shared by several readers.
//
// Debouncer is safe for concurrent use.
type Debouncer struct {
	minInterval time.Duration
	sameWindow  time.Duration

	mu            sync.Mutex
	lastBadge     string
	lastAccepted  time.Time
	hasAccepted   bool
	suppressCount uint64
}

// NewDebouncer returns a Debouncer.  A non-positive MinInterval falls back
// to DefaultMinInterval.
func NewDebouncer(cfg DebounceConfig) *Debouncer {
	minInterval := cfg.MinInterval
	if minInterval <= 0 {
		minInterval = DefaultMinInterval
	}
	same := cfg.SameBadgeWindow
	if same <= 0 {
		same = 2 * minInterval
	}
	if same < minInterval {
		same = minInterval
	}
	return &Debouncer{minInterval: minInterval, sameWindow: same}
}

// Detect reports whether the detection of badgeID at detectedAt should be
// forwarded.  State only advances on forward.
func (d *Debouncer) Detect(badgeID string, detectedAt time.Time) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.hasAccepted {
		elapsed := detectedAt.Sub(d.lastAccepted)
		window := d.minInterval
		if badgeID == d.lastBadge {
			window = d.sameWindow
		}
		if elapsed < window {
			d.suppressCount++
			return false
		}
	}

	d.hasAccepted = true
	d.lastAccepted = detectedAt
	d.lastBadge = badgeID
	return true
}

// Suppressed returns how many detections were dropped so far.
func (d *Debouncer) Suppressed() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.suppressCount
}

// MinInterval returns the effective global spacing.
func (d *Debouncer) MinInterval() time.Duration { return d.minInterval }

// SameBadgeWindow returns the effective same-badge spacing.
func (d *Debouncer) SameBadgeWindow() time.Duration { return d.sameWindow }
