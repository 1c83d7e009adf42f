package badger

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"
	"github.com/vestigolabs/vestigo/internal/interfaces"
	"github.com/vestigolabs/vestigo/internal/models"
)

// CacheStorage implements FetchCacheStorage for Badger
type CacheStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewCacheStorage creates a new CacheStorage instance
func NewCacheStorage(db *BadgerDB, logger arbor.ILogger) interfaces.FetchCacheStorage {
	return &CacheStorage{
		db:     db,
		logger: logger,
	}
}

// Get retrieves a cached response by normalized URL key
func (s *CacheStorage) Get(ctx context.Context, key string) (*models.CachedResponse, error) {
	var cached models.CachedResponse
	err := s.db.Store().Get(key, &cached)
	if err == badgerhold.ErrNotFound {
		return nil, interfaces.ErrKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cached response: %w", err)
	}
	return &cached, nil
}

// Upsert inserts or refreshes a cached response, preserving CreatedAt
func (s *CacheStorage) Upsert(ctx context.Context, response *models.CachedResponse) error {
	now := time.Now()
	response.UpdatedAt = now
	if response.CreatedAt.IsZero() {
		response.CreatedAt = now
	}

	var existing models.CachedResponse
	if err := s.db.Store().Get(response.Key, &existing); err == nil {
		response.CreatedAt = existing.CreatedAt
	}

	if err := s.db.Store().Upsert(response.Key, response); err != nil {
		return fmt.Errorf("failed to upsert cached response: %w", err)
	}

	s.logger.Debug().Str("key", response.Key).Int("status", response.StatusCode).Msg("Cached fetch response")
	return nil
}

// Delete removes a cached response
func (s *CacheStorage) Delete(ctx context.Context, key string) error {
	err := s.db.Store().Delete(key, &models.CachedResponse{})
	if err == badgerhold.ErrNotFound {
		return interfaces.ErrKeyNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to delete cached response: %w", err)
	}
	return nil
}

// Count returns the number of cached responses
func (s *CacheStorage) Count(ctx context.Context) (int, error) {
	count, err := s.db.Store().Count(&models.CachedResponse{}, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to count cached responses: %w", err)
	}
	return int(count), nil
}
