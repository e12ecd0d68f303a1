package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ingmarAvocado/fullon-ticker-service/internal/ticker"
)

func TestGate_FirstAdmitAlwaysSucceeds(t *testing.T) {
	g := New(30 * time.Second)
	now := time.Now()

	assert.True(t, g.Admit("kraken:BTC/USD", now))
}

func TestGate_BoundaryBehavior(t *testing.T) {
	g := New(30 * time.Second)
	start := time.Now()
	key := ticker.Key("kraken:BTC/USD")

	require.True(t, g.Admit(key, start))

	// Just under the window: rejected.
	assert.False(t, g.Admit(key, start.Add(30*time.Second-time.Millisecond)))

	// Exactly at the window: admitted.
	assert.True(t, g.Admit(key, start.Add(30*time.Second)))

	// Just over the new window: admitted.
	second := start.Add(30 * time.Second)
	assert.True(t, g.Admit(key, second.Add(30*time.Second+time.Millisecond)))
}

func TestGate_NonMonotonicClockRejectsWithoutRewriting(t *testing.T) {
	g := New(30 * time.Second)
	key := ticker.Key("kraken:BTC/USD")
	now := time.Now()

	require.True(t, g.Admit(key, now))

	// Clock goes backward: rejected, and the recorded time must not move.
	assert.False(t, g.Admit(key, now.Add(-5*time.Second)))

	// A later admission using the original elapsed time still succeeds,
	// proving the backward call didn't rewrite last(key).
	assert.True(t, g.Admit(key, now.Add(30*time.Second)))
}

func TestGate_HighFrequencyTicksAdmitOnce(t *testing.T) {
	g := New(30 * time.Second)
	key := ticker.Key("kraken:BTC/USD")
	start := time.Now()

	admitted := 0
	for i := 0; i < 100; i++ {
		now := start.Add(time.Duration(i) * 100 * time.Millisecond)
		if g.Admit(key, now) {
			admitted++
		}
	}

	// 100 ticks spaced 100ms apart span ~9.9s, well under the 30s window:
	// only the first admits.
	assert.Equal(t, 1, admitted)
}

func TestGate_IndependentKeys(t *testing.T) {
	g := New(30 * time.Second)
	now := time.Now()

	assert.True(t, g.Admit("kraken:BTC/USD", now))
	assert.True(t, g.Admit("kraken:ETH/USD", now))
}

func TestGate_ForgetAndReset(t *testing.T) {
	g := New(30 * time.Second)
	key := ticker.Key("kraken:BTC/USD")
	now := time.Now()

	require.True(t, g.Admit(key, now))
	assert.False(t, g.Admit(key, now.Add(time.Second)))

	g.Forget(key)
	assert.True(t, g.Admit(key, now.Add(time.Second)))

	g.Reset()
	assert.True(t, g.Admit(key, now.Add(2*time.Second)))
}
