package crawler

import (
	"context"
	"math"

	"golang.org/x/time/rate"
)

// RateLimiter caps the request rate of the whole crawl. It is shared by all
// workers and does not distinguish between hosts.
type RateLimiter struct {
	limiter *rate.Limiter
}

// NewRateLimiter creates a limiter allowing perSecond requests per second
// with a burst of one. perSecond <= 0 disables limiting.
func NewRateLimiter(perSecond float64) *RateLimiter {
	if perSecond <= 0 || math.IsInf(perSecond, 1) {
		return &RateLimiter{}
	}
	return &RateLimiter{limiter: rate.NewLimiter(rate.Limit(perSecond), 1)}
}

// Wait blocks until a request may be sent or ctx is done.
func (r *RateLimiter) Wait(ctx context.Context) error {
	if r == nil || r.limiter == nil {
		return ctx.Err()
	}
	return r.limiter.Wait(ctx)
}

// Enabled reports whether requests are throttled
func (r *RateLimiter) Enabled() bool {
	return r != nil && r.limiter != nil
}
