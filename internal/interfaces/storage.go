package interfaces

import (
	"context"
	"errors"

	"github.com/vestigolabs/vestigo/internal/models"
)

// ErrKeyNotFound is returned when a key is not present in a store
var ErrKeyNotFound = errors.New("key not found")

// FetchCacheStorage persists successful fetches keyed by normalized URL
type FetchCacheStorage interface {
	// Get retrieves a cached response, returns ErrKeyNotFound when absent
	Get(ctx context.Context, key string) (*models.CachedResponse, error)

	// Upsert inserts or refreshes a cached response, preserving CreatedAt
	Upsert(ctx context.Context, response *models.CachedResponse) error

	// Delete removes a cached response, returns ErrKeyNotFound when absent
	Delete(ctx context.Context, key string) error

	// Count returns the number of cached responses
	Count(ctx context.Context) (int, error)
}

// SourceHealthStorage tracks per-source fetch outcomes
type SourceHealthStorage interface {
	// Get retrieves a health record, returns ErrKeyNotFound when absent
	Get(ctx context.Context, key string) (*models.SourceHealthRecord, error)

	// RecordSuccess increments success counters and resets the consecutive
	// failure count for the source
	RecordSuccess(ctx context.Context, key string) error

	// RecordFailure increments failure counters and stores the last error
	RecordFailure(ctx context.Context, key string, cause string) error

	// List returns all health records ordered by most recently updated
	List(ctx context.Context) ([]models.SourceHealthRecord, error)
}

// StorageManager owns the persistent stores and their shared connection
type StorageManager interface {
	FetchCache() FetchCacheStorage
	SourceHealth() SourceHealthStorage
	Close() error
}
