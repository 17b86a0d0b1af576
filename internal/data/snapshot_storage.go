package data

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/AaronSotoPacheco/criptoapi/internal/model"
	"github.com/google/uuid"
)

// StorageConfig holds configuration for the snapshot storage
type StorageConfig struct {
	MaxCoins     int
	MaxExchanges int
}

// DefaultStorageConfig returns sensible default configuration
func DefaultStorageConfig() StorageConfig {
	return StorageConfig{
		MaxCoins:     1000,
		MaxExchanges: 1000,
	}
}

// InMemorySnapshotStorage keeps the latest coins/exchanges snapshot in memory.
// Both lists are always swapped together under one lock.
type InMemorySnapshotStorage struct {
	snapshot model.Snapshot
	present  bool
	config   StorageConfig
	now      func() time.Time
	mu       sync.RWMutex
}

// NewInMemorySnapshotStorage creates a new in-memory snapshot storage with default config
func NewInMemorySnapshotStorage() *InMemorySnapshotStorage {
	return NewInMemorySnapshotStorageWithConfig(DefaultStorageConfig())
}

// NewInMemorySnapshotStorageWithConfig creates a new in-memory snapshot storage with custom config
func NewInMemorySnapshotStorageWithConfig(config StorageConfig) *InMemorySnapshotStorage {
	return &InMemorySnapshotStorage{
		config: config,
		now:    time.Now,
	}
}

// Replace stores a new snapshot, discarding the previous one entirely.
// Lists longer than the configured maximums keep only their head.
func (s *InMemorySnapshotStorage) Replace(coins []model.Coin, exchanges []model.Exchange) model.Snapshot {
	coins = headCopy(coins, s.config.MaxCoins)
	exchanges = headCopy(exchanges, s.config.MaxExchanges)

	snapshot := model.Snapshot{
		ID:        uuid.New().String(),
		FetchedAt: s.now().UTC(),
		Coins:     coins,
		Exchanges: exchanges,
	}

	s.mu.Lock()
	s.snapshot = snapshot
	s.present = true
	s.mu.Unlock()

	slog.Debug("snapshot replaced",
		slog.String("snapshot_id", snapshot.ID),
		slog.Int("coins", len(coins)),
		slog.Int("exchanges", len(exchanges)))

	return copySnapshot(snapshot)
}

// Snapshot returns a copy of the current snapshot and whether one exists
func (s *InMemorySnapshotStorage) Snapshot(ctx context.Context) (model.Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.present {
		return model.Snapshot{}, false
	}

	// Return a copy to prevent external modification
	return copySnapshot(s.snapshot), true
}

func copySnapshot(s model.Snapshot) model.Snapshot {
	s.Coins = headCopy(s.Coins, 0)
	s.Exchanges = headCopy(s.Exchanges, 0)
	return s
}

// headCopy copies at most limit items; limit <= 0 copies everything
func headCopy[T any](items []T, limit int) []T {
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}

	result := make([]T, len(items))
	copy(result, items)
	return result
}
