package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"nextup/internal/core"
)

// Redis is the shared recommendation cache backend. Entries are stored as
// JSON under a per-seed key with the TTL applied by Redis itself, so a
// read after expiry is simply a miss. Redis errors degrade to cache
// misses; the source chain falls through to the network either way.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

type redisEntry struct {
	Tracks    []core.Track              `json:"tracks"`
	Source    core.RecommendationSource `json:"source"`
	FetchedAt time.Time                 `json:"fetchedAt"`
}

func NewRedis(cfg *core.CacheConfig, logger *zap.Logger) *Redis {
	client := redis.NewClient(&redis.Options{
		Addr: cfg.RedisAddr,
		DB:   cfg.RedisDB,
	})
	return &Redis{
		client: client,
		ttl:    cfg.TTL,
		logger: logger,
	}
}

func seedKey(seedID int64) string {
	return fmt.Sprintf("nextup:recs:%d", seedID)
}

// Get returns the entry for a seed id, or nil on miss, expiry or error.
func (r *Redis) Get(ctx context.Context, seedID int64) *core.CacheEntry {
	raw, err := r.client.Get(ctx, seedKey(seedID)).Bytes()
	if err == redis.Nil {
		return nil
	}
	if err != nil {
		r.logger.Warn("redis cache read failed, treating as miss",
			zap.Int64("seedID", seedID),
			zap.Error(err))
		return nil
	}

	var entry redisEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		r.logger.Warn("discarding malformed redis cache entry",
			zap.Int64("seedID", seedID),
			zap.Error(err))
		return nil
	}

	return &core.CacheEntry{
		Tracks:    entry.Tracks,
		Source:    entry.Source,
		FetchedAt: entry.FetchedAt,
	}
}

// Put stores a fresh entry for the seed id with the configured TTL.
func (r *Redis) Put(ctx context.Context, seedID int64, tracks []core.Track, source core.RecommendationSource) {
	raw, err := json.Marshal(redisEntry{
		Tracks:    tracks,
		Source:    source,
		FetchedAt: time.Now(),
	})
	if err != nil {
		r.logger.Warn("failed to marshal cache entry", zap.Error(err))
		return
	}

	if err := r.client.Set(ctx, seedKey(seedID), raw, r.ttl).Err(); err != nil {
		r.logger.Warn("redis cache write failed",
			zap.Int64("seedID", seedID),
			zap.Error(err))
	}
}

// Close releases the underlying Redis connection.
func (r *Redis) Close() error {
	return r.client.Close()
}
