package models

import (
	"time"
)

// FetchRequest describes a single URL retrieval
type FetchRequest struct {
	URL       string            `json:"url"`
	SourceKey string            `json:"source_key,omitempty"` // health and rate-limit key; defaults to the registrable domain
	Headers   map[string]string `json:"headers,omitempty"`
	NoCache   bool              `json:"no_cache,omitempty"` // skip the cache fallback on failure
}

// FetchOutcome is the result of a fetch attempt. Network failures are
// reported through OK/Error, never as a Go error.
type FetchOutcome struct {
	URL        string        `json:"url"`
	FinalURL   string        `json:"final_url,omitempty"` // after redirects
	OK         bool          `json:"ok"`
	StatusCode int           `json:"status_code"`
	Body       string        `json:"body,omitempty"`
	FromCache  bool          `json:"from_cache"`
	Attempts   int           `json:"attempts"`
	Error      string        `json:"error,omitempty"` // diagnostic; may be set on cache-served successes
	Elapsed    time.Duration `json:"elapsed"`
}

// CachedResponse is a persisted successful fetch, keyed by normalized URL
type CachedResponse struct {
	Key        string    `json:"key" badgerhold:"unique"`
	URL        string    `json:"url"`
	StatusCode int       `json:"status_code"`
	Body       string    `json:"body"`
	SourceKey  string    `json:"source_key"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Age returns how long ago the cached response was refreshed
func (c *CachedResponse) Age(now time.Time) time.Duration {
	return now.Sub(c.UpdatedAt)
}

// SourceHealthRecord tracks fetch outcomes per source for circuit breaking
type SourceHealthRecord struct {
	Key                 string    `json:"key" badgerhold:"unique"`
	SuccessCount        int       `json:"success_count"`
	FailureCount        int       `json:"failure_count"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	LastSuccess         time.Time `json:"last_success,omitempty"`
	LastFailure         time.Time `json:"last_failure,omitempty"`
	LastError           string    `json:"last_error,omitempty"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// Unhealthy reports whether the source has accumulated enough consecutive
// failures within the cooloff window that callers should skip it
func (r *SourceHealthRecord) Unhealthy(threshold int, cooloff time.Duration, now time.Time) bool {
	if r == nil || r.ConsecutiveFailures < threshold {
		return false
	}
	if cooloff <= 0 {
		return true
	}
	return now.Sub(r.LastFailure) < cooloff
}
