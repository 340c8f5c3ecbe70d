package security

import (
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter is a token bucket policed against wall-clock time — the
// configured rate is a per-second wall-clock policy — while the
// underlying accounting advances only by the non-negative elapsed
// duration between calls, so a wall-clock jump backward can never inflate
// the bucket: x/time/rate's Limiter clamps its internal "last observed"
// time forward to now whenever now is earlier, making elapsed 0 rather
// than negative in that case.
type RateLimiter struct {
	limiter *rate.Limiter
}

// NewRateLimiter builds a limiter allowing perSecond events/sec with the
// given burst capacity.
func NewRateLimiter(perSecond float64, burst int) *RateLimiter {
	return &RateLimiter{limiter: rate.NewLimiter(rate.Limit(perSecond), burst)}
}

// AllowAt reports whether one event is permitted at wall-clock time now,
// consuming a token if so.
func (r *RateLimiter) AllowAt(now time.Time) bool {
	return r.limiter.AllowN(now, 1)
}

// TokensAt returns the current token count as of now, without consuming
// one.
func (r *RateLimiter) TokensAt(now time.Time) float64 {
	return r.limiter.TokensAt(now)
}
