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

// HealthStorage implements SourceHealthStorage for Badger
type HealthStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewHealthStorage creates a new HealthStorage instance
func NewHealthStorage(db *BadgerDB, logger arbor.ILogger) interfaces.SourceHealthStorage {
	return &HealthStorage{
		db:     db,
		logger: logger,
	}
}

// Get retrieves a health record by source key
func (s *HealthStorage) Get(ctx context.Context, key string) (*models.SourceHealthRecord, error) {
	var record models.SourceHealthRecord
	err := s.db.Store().Get(key, &record)
	if err == badgerhold.ErrNotFound {
		return nil, interfaces.ErrKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get health record: %w", err)
	}
	return &record, nil
}

// RecordSuccess increments success counters and resets the consecutive failure count
func (s *HealthStorage) RecordSuccess(ctx context.Context, key string) error {
	record, err := s.load(key)
	if err != nil {
		return err
	}

	now := time.Now()
	record.SuccessCount++
	record.ConsecutiveFailures = 0
	record.LastSuccess = now
	record.LastError = ""
	record.UpdatedAt = now

	if err := s.db.Store().Upsert(key, record); err != nil {
		return fmt.Errorf("failed to record source success: %w", err)
	}
	return nil
}

// RecordFailure increments failure counters and stores the last error
func (s *HealthStorage) RecordFailure(ctx context.Context, key string, cause string) error {
	record, err := s.load(key)
	if err != nil {
		return err
	}

	now := time.Now()
	record.FailureCount++
	record.ConsecutiveFailures++
	record.LastFailure = now
	record.LastError = cause
	record.UpdatedAt = now

	if err := s.db.Store().Upsert(key, record); err != nil {
		return fmt.Errorf("failed to record source failure: %w", err)
	}

	s.logger.Debug().
		Str("source", key).
		Int("consecutive_failures", record.ConsecutiveFailures).
		Msg("Recorded source failure")
	return nil
}

// List returns all health records ordered by most recently updated
func (s *HealthStorage) List(ctx context.Context) ([]models.SourceHealthRecord, error) {
	var records []models.SourceHealthRecord
	query := badgerhold.Where("Key").Ne("").SortBy("UpdatedAt").Reverse()
	if err := s.db.Store().Find(&records, query); err != nil {
		return nil, fmt.Errorf("failed to list health records: %w", err)
	}
	return records, nil
}

// load fetches an existing record or initializes a fresh one
func (s *HealthStorage) load(key string) (*models.SourceHealthRecord, error) {
	var record models.SourceHealthRecord
	err := s.db.Store().Get(key, &record)
	if err == badgerhold.ErrNotFound {
		return &models.SourceHealthRecord{Key: key}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load health record: %w", err)
	}
	return &record, nil
}
