package badger

import (
	"github.com/ternarybob/arbor"
	"github.com/vestigolabs/vestigo/internal/common"
	"github.com/vestigolabs/vestigo/internal/interfaces"
)

// Manager implements the StorageManager interface for Badger
type Manager struct {
	db     *BadgerDB
	cache  interfaces.FetchCacheStorage
	health interfaces.SourceHealthStorage
	logger arbor.ILogger
}

// NewManager creates a new Badger storage manager
func NewManager(logger arbor.ILogger, config *common.StorageConfig) (interfaces.StorageManager, error) {
	db, err := NewBadgerDB(logger, config)
	if err != nil {
		return nil, err
	}

	manager := &Manager{
		db:     db,
		cache:  NewCacheStorage(db, logger),
		health: NewHealthStorage(db, logger),
		logger: logger,
	}

	logger.Info().Msg("Badger storage manager initialized")

	return manager, nil
}

// FetchCache returns the fetch cache storage interface
func (m *Manager) FetchCache() interfaces.FetchCacheStorage {
	return m.cache
}

// SourceHealth returns the source health storage interface
func (m *Manager) SourceHealth() interfaces.SourceHealthStorage {
	return m.health
}

// Close closes the database connection
func (m *Manager) Close() error {
	if m.db != nil {
		return m.db.Close()
	}
	return nil
}
