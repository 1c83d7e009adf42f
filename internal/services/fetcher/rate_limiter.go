package fetcher

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// RateLimiter enforces a per-source request rate using token buckets
type RateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	limit    rate.Limit
	burst    int
}

// NewRateLimiter creates a rate limiter allowing requestsPerSecond per source
func NewRateLimiter(requestsPerSecond float64, burst int) *RateLimiter {
	if requestsPerSecond <= 0 {
		requestsPerSecond = 1
	}
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		limiters: make(map[string]*rate.Limiter),
		limit:    rate.Limit(requestsPerSecond),
		burst:    burst,
	}
}

// Wait blocks until the source's rate limit permits a request
func (rl *RateLimiter) Wait(ctx context.Context, sourceKey string) error {
	if sourceKey == "" {
		return nil
	}

	rl.mu.Lock()
	limiter, exists := rl.limiters[sourceKey]
	if !exists {
		limiter = rate.NewLimiter(rl.limit, rl.burst)
		rl.limiters[sourceKey] = limiter
	}
	rl.mu.Unlock()

	return limiter.Wait(ctx)
}
