package series

import (
	"context"
	"sync"
	"time"
)

// Watchdog flags the telemetry feed as stalled once more than Threshold has
// elapsed since the last sample. Any new sample clears the stalled state
// immediately. The degraded state is a standing indicator, not an error.
type Watchdog struct {
	Threshold time.Duration
	Interval  time.Duration

	// OnChange, if set, is called with the new stalled state whenever it
	// flips.
	OnChange func(stalled bool)

	mu       sync.Mutex
	lastData time.Time
	stalled  bool
}

// NewWatchdog builds a watchdog with the given silence threshold and check
// interval.
func NewWatchdog(threshold, interval time.Duration) *Watchdog {
	return &Watchdog{
		Threshold: threshold,
		Interval:  interval,
		lastData:  time.Now(),
	}
}

// Touch records receipt of telemetry and clears the stalled state.
func (w *Watchdog) Touch() {
	w.mu.Lock()
	w.lastData = time.Now()
	changed := w.stalled
	w.stalled = false
	cb := w.OnChange
	w.mu.Unlock()

	if changed && cb != nil {
		cb(false)
	}
}

// Stalled reports the current degraded-state flag.
func (w *Watchdog) Stalled() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stalled
}

// Run checks the feed periodically until the context is cancelled.
func (w *Watchdog) Run(ctx context.Context) {
	ticker := time.NewTicker(w.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.check(time.Now())
		}
	}
}

func (w *Watchdog) check(now time.Time) {
	w.mu.Lock()
	shouldStall := now.Sub(w.lastData) > w.Threshold
	changed := shouldStall != w.stalled
	w.stalled = shouldStall
	cb := w.OnChange
	w.mu.Unlock()

	if changed && cb != nil {
		cb(shouldStall)
	}
}
