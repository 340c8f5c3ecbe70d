package security

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiter_ExhaustsBurstThenRefills(t *testing.T) {
	r := NewRateLimiter(1, 2) // 1/sec, burst 2
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	assert.True(t, r.AllowAt(start))
	assert.True(t, r.AllowAt(start))
	assert.False(t, r.AllowAt(start))

	assert.True(t, r.AllowAt(start.Add(time.Second)))
}

// TestRateLimiter_BackwardClockJumpDoesNotInflateAllowance covers spec
// invariant 17: moving the wall clock backward must never grant more
// tokens than a monotonically advancing clock would have.
func TestRateLimiter_BackwardClockJumpDoesNotInflateAllowance(t *testing.T) {
	r := NewRateLimiter(1, 1) // 1/sec, burst 1
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	assert.True(t, r.AllowAt(start))
	assert.False(t, r.AllowAt(start))

	// Jump the wall clock an hour into the past.
	past := start.Add(-time.Hour)
	assert.False(t, r.AllowAt(past), "a backward clock jump must not grant an extra token")

	// Resuming forward progress from the original timeline still refills
	// at the configured rate, unaffected by the backward excursion.
	assert.True(t, r.AllowAt(start.Add(time.Second)))
}
