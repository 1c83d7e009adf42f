package fetcher

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"net"
	"time"

	"github.com/vestigolabs/vestigo/internal/common"
)

// RetryPolicy defines retry behavior with exponential backoff
type RetryPolicy struct {
	MaxAttempts          int
	InitialBackoff       time.Duration
	MaxBackoff           time.Duration
	BackoffMultiplier    float64
	RetryableStatusCodes []int
}

// NewRetryPolicy builds a retry policy from fetch configuration
func NewRetryPolicy(config *common.FetchConfig) *RetryPolicy {
	return &RetryPolicy{
		MaxAttempts:       config.MaxAttempts,
		InitialBackoff:    config.InitialBackoff,
		MaxBackoff:        config.MaxBackoff,
		BackoffMultiplier: config.BackoffMultiplier,
		RetryableStatusCodes: []int{
			408, // Request Timeout
			429, // Too Many Requests
			500, // Internal Server Error
			502, // Bad Gateway
			503, // Service Unavailable
			504, // Gateway Timeout
		},
	}
}

// ShouldRetry checks if an attempt should be retried based on attempt count,
// status code, and error type
func (p *RetryPolicy) ShouldRetry(attempt int, statusCode int, err error) bool {
	if attempt >= p.MaxAttempts-1 {
		return false
	}

	if statusCode > 0 {
		if p.IsRetryableStatus(statusCode) {
			return true
		}
		// Remaining client errors are not retryable
		if statusCode >= 400 && statusCode < 500 {
			return false
		}
	}

	if err != nil {
		return IsTransientError(err)
	}

	return false
}

// CalculateBackoff calculates the backoff duration with exponential growth and jitter
func (p *RetryPolicy) CalculateBackoff(attempt int) time.Duration {
	backoff := float64(p.InitialBackoff) * math.Pow(p.BackoffMultiplier, float64(attempt))
	if backoff > float64(p.MaxBackoff) {
		backoff = float64(p.MaxBackoff)
	}

	// Add jitter (±25%)
	jitter := backoff * 0.25 * (rand.Float64()*2 - 1)
	backoff += jitter

	if backoff < 0 {
		backoff = float64(p.InitialBackoff)
	}

	return time.Duration(backoff)
}

// IsRetryableStatus checks if a status code is retryable
func (p *RetryPolicy) IsRetryableStatus(statusCode int) bool {
	for _, code := range p.RetryableStatusCodes {
		if statusCode == code {
			return true
		}
	}
	return false
}

// IsTransientError classifies a transport error. Timeouts and connection
// resets are transient; DNS resolution failures are fatal because repeating
// them within the same run cannot succeed.
func IsTransientError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, context.Canceled) {
		return false
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}

	return false
}
