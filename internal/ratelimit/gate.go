// Package ratelimit implements the per-key admission throttle used to
// decouple the hot ticker-store write from the cold process-registry
// update on the tick callback path.
package ratelimit

import (
	"sync"
	"time"

	"github.com/ingmarAvocado/fullon-ticker-service/internal/ticker"
)

// DefaultWindow is the default minimum interval between admitted events
// for a given key. Two to three orders of magnitude separate a ticker-store
// write from a process-registry update; a 30s window collapses a would-be
// 1000/s registry write storm down to roughly one write every 30s per
// symbol, double the resolution of the common 60s liveness convention.
const DefaultWindow = 30 * time.Second

// Gate admits at most one event per window per key. A coarse lock over the
// whole map is fine here: admission work is O(1), so lock contention never
// shows up next to the ticker-store and registry calls it's gating.
type Gate struct {
	window time.Duration

	mu   sync.Mutex
	last map[ticker.Key]time.Time
}

// New creates a Gate with the given window. A non-positive window falls
// back to DefaultWindow.
func New(window time.Duration) *Gate {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Gate{
		window: window,
		last:   make(map[ticker.Key]time.Time),
	}
}

// Admit reports whether an event for key is admitted at time now, and
// records now as the key's new last-admission time if so. The first call
// for any key is always admitted. A now earlier than the recorded last
// admission is treated as zero elapsed time and rejected without rewriting
// the recorded time backward — the gate never un-admits an earlier event.
func (g *Gate) Admit(key ticker.Key, now time.Time) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	last, ok := g.last[key]
	if !ok {
		g.last[key] = now
		return true
	}

	if now.Before(last) {
		return false
	}

	if now.Sub(last) < g.window {
		return false
	}

	g.last[key] = now
	return true
}

// Forget drops any recorded admission time for key, so the next Admit for
// that key is treated as a first call.
func (g *Gate) Forget(key ticker.Key) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.last, key)
}

// Reset clears all recorded admission state, used on full collector
// teardown.
func (g *Gate) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.last = make(map[ticker.Key]time.Time)
}
