// Package cache provides the recommendation cache backends: an in-process
// TTL-bounded LRU and an optional Redis store shared across sessions.
package cache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"

	"nextup/internal/core"
)

// Memory is the default recommendation cache: seed id to candidate list
// with a fixed TTL, bounded by an LRU. Expiry is checked at read time by
// the underlying cache; entries are never updated in place, a new Put for
// the same seed replaces the old entry wholesale.
type Memory struct {
	entries *expirable.LRU[int64, core.CacheEntry]
	logger  *zap.Logger
}

func NewMemory(cfg *core.CacheConfig, logger *zap.Logger) *Memory {
	return &Memory{
		entries: expirable.NewLRU[int64, core.CacheEntry](cfg.MaxSeeds, nil, cfg.TTL),
		logger:  logger,
	}
}

// Get returns the entry for a seed id, or nil on miss or expiry.
func (m *Memory) Get(_ context.Context, seedID int64) *core.CacheEntry {
	entry, ok := m.entries.Get(seedID)
	if !ok {
		return nil
	}
	return &entry
}

// Put stores a fresh entry for the seed id, overwriting any existing one.
func (m *Memory) Put(_ context.Context, seedID int64, tracks []core.Track, source core.RecommendationSource) {
	entry := core.CacheEntry{
		Tracks:    append([]core.Track(nil), tracks...),
		Source:    source,
		FetchedAt: time.Now(),
	}
	m.entries.Add(seedID, entry)

	m.logger.Debug("cached recommendations",
		zap.Int64("seedID", seedID),
		zap.String("source", string(source)),
		zap.Int("tracks", len(tracks)))
}
