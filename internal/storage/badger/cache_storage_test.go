package badger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"
	"github.com/vestigolabs/vestigo/internal/interfaces"
	"github.com/vestigolabs/vestigo/internal/models"
)

func newTestDB(t *testing.T) *BadgerDB {
	t.Helper()

	tmpDir := t.TempDir()

	options := badgerhold.DefaultOptions
	options.Dir = tmpDir
	options.ValueDir = tmpDir
	options.Logger = nil

	store, err := badgerhold.Open(options)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	return &BadgerDB{store: store, logger: arbor.NewLogger()}
}

func TestCacheStorageRoundTrip(t *testing.T) {
	db := newTestDB(t)
	storage := NewCacheStorage(db, arbor.NewLogger())
	ctx := context.Background()

	cached := &models.CachedResponse{
		Key:        "https://example.com/about",
		URL:        "https://example.com/about",
		StatusCode: 200,
		Body:       "<html><body>About us</body></html>",
		SourceKey:  "example.com",
	}
	require.NoError(t, storage.Upsert(ctx, cached))

	got, err := storage.Get(ctx, "https://example.com/about")
	require.NoError(t, err)
	assert.Equal(t, cached.Body, got.Body)
	assert.Equal(t, 200, got.StatusCode)
	assert.False(t, got.CreatedAt.IsZero())
	assert.False(t, got.UpdatedAt.IsZero())
}

func TestCacheStorageUpsertPreservesCreatedAt(t *testing.T) {
	db := newTestDB(t)
	storage := NewCacheStorage(db, arbor.NewLogger())
	ctx := context.Background()

	first := &models.CachedResponse{
		Key:        "https://example.com/",
		URL:        "https://example.com/",
		StatusCode: 200,
		Body:       "v1",
	}
	require.NoError(t, storage.Upsert(ctx, first))

	created, err := storage.Get(ctx, "https://example.com/")
	require.NoError(t, err)

	time.Sleep(10 * time.Millisecond)

	second := &models.CachedResponse{
		Key:        "https://example.com/",
		URL:        "https://example.com/",
		StatusCode: 200,
		Body:       "v2",
	}
	require.NoError(t, storage.Upsert(ctx, second))

	got, err := storage.Get(ctx, "https://example.com/")
	require.NoError(t, err)
	assert.Equal(t, "v2", got.Body)
	assert.Equal(t, created.CreatedAt.Unix(), got.CreatedAt.Unix())
	assert.True(t, got.UpdatedAt.After(got.CreatedAt))
}

func TestCacheStorageMiss(t *testing.T) {
	db := newTestDB(t)
	storage := NewCacheStorage(db, arbor.NewLogger())

	_, err := storage.Get(context.Background(), "https://example.com/missing")
	assert.ErrorIs(t, err, interfaces.ErrKeyNotFound)
}

func TestHealthStorageCounters(t *testing.T) {
	db := newTestDB(t)
	storage := NewHealthStorage(db, arbor.NewLogger())
	ctx := context.Background()

	require.NoError(t, storage.RecordFailure(ctx, "example.com", "timeout"))
	require.NoError(t, storage.RecordFailure(ctx, "example.com", "timeout"))

	record, err := storage.Get(ctx, "example.com")
	require.NoError(t, err)
	assert.Equal(t, 2, record.FailureCount)
	assert.Equal(t, 2, record.ConsecutiveFailures)
	assert.Equal(t, "timeout", record.LastError)

	// Success resets the consecutive count but keeps totals
	require.NoError(t, storage.RecordSuccess(ctx, "example.com"))

	record, err = storage.Get(ctx, "example.com")
	require.NoError(t, err)
	assert.Equal(t, 0, record.ConsecutiveFailures)
	assert.Equal(t, 2, record.FailureCount)
	assert.Equal(t, 1, record.SuccessCount)
	assert.Empty(t, record.LastError)
}

func TestHealthStorageUnhealthy(t *testing.T) {
	db := newTestDB(t)
	storage := NewHealthStorage(db, arbor.NewLogger())
	ctx := context.Background()

	for i := 0; i < 6; i++ {
		require.NoError(t, storage.RecordFailure(ctx, "flaky.example", "connection reset"))
	}

	record, err := storage.Get(ctx, "flaky.example")
	require.NoError(t, err)
	assert.True(t, record.Unhealthy(6, 2*time.Hour, time.Now()))
	assert.False(t, record.Unhealthy(6, 2*time.Hour, time.Now().Add(3*time.Hour)))
}
