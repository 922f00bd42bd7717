// Package persist implements the persistence collaborator: smart-queue
// settings and the write-only recommendation audit log, backed by SQLite.
package persist

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"nextup/internal/core"
)

const schema = `
CREATE TABLE IF NOT EXISTS smart_queue_settings (
	id INTEGER PRIMARY KEY CHECK (id = 1),
	auto_queue_enabled INTEGER NOT NULL,
	auto_queue_threshold INTEGER NOT NULL,
	auto_queue_count INTEGER NOT NULL,
	similarity_preference TEXT NOT NULL,
	smart_mix_enabled INTEGER NOT NULL,
	updated_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS recommendation_log (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	seed_ids TEXT NOT NULL,
	result_ids TEXT NOT NULL,
	source TEXT NOT NULL,
	requested INTEGER NOT NULL,
	latency_ms INTEGER NOT NULL,
	success INTEGER NOT NULL,
	context TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL
);
`

// Store owns the SQLite database and implements core.SettingsStore and
// core.RecommendationLogger.
type Store struct {
	db       *sql.DB
	defaults core.SmartQueueSettings
	logger   *zap.Logger
}

// Open opens (creating if necessary) the database at path and applies the
// schema.
func Open(path string, defaults core.SmartQueueSettings, logger *zap.Logger) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Store{
		db:       db,
		defaults: defaults,
		logger:   logger,
	}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Load returns the persisted settings, or the configured defaults when
// nothing has been saved yet.
func (s *Store) Load(ctx context.Context) (core.SmartQueueSettings, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT auto_queue_enabled, auto_queue_threshold, auto_queue_count,
		       similarity_preference, smart_mix_enabled
		FROM smart_queue_settings WHERE id = 1`)

	var settings core.SmartQueueSettings
	var enabled, smartMix int
	var pref string

	err := row.Scan(&enabled, &settings.AutoQueueThreshold, &settings.AutoQueueCount, &pref, &smartMix)
	if err == sql.ErrNoRows {
		return s.defaults, nil
	}
	if err != nil {
		return core.SmartQueueSettings{}, fmt.Errorf("load settings: %w", err)
	}

	settings.AutoQueueEnabled = enabled != 0
	settings.SmartMixEnabled = smartMix != 0
	settings.SimilarityPreference = core.SimilarityPreference(pref)
	return settings, nil
}

// Save upserts the single settings row.
func (s *Store) Save(ctx context.Context, settings core.SmartQueueSettings) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO smart_queue_settings
			(id, auto_queue_enabled, auto_queue_threshold, auto_queue_count,
			 similarity_preference, smart_mix_enabled, updated_at)
		VALUES (1, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			auto_queue_enabled = excluded.auto_queue_enabled,
			auto_queue_threshold = excluded.auto_queue_threshold,
			auto_queue_count = excluded.auto_queue_count,
			similarity_preference = excluded.similarity_preference,
			smart_mix_enabled = excluded.smart_mix_enabled,
			updated_at = excluded.updated_at`,
		boolInt(settings.AutoQueueEnabled),
		settings.AutoQueueThreshold,
		settings.AutoQueueCount,
		string(settings.SimilarityPreference),
		boolInt(settings.SmartMixEnabled),
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("save settings: %w", err)
	}

	s.logger.Debug("smart queue settings saved",
		zap.Bool("autoQueueEnabled", settings.AutoQueueEnabled),
		zap.Int("threshold", settings.AutoQueueThreshold),
		zap.Int("count", settings.AutoQueueCount),
		zap.String("preference", string(settings.SimilarityPreference)))
	return nil
}

// Log appends one audit row. Entries are write-only from the core's
// perspective; they exist for external observability.
func (s *Store) Log(ctx context.Context, entry core.LogEntry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO recommendation_log
			(seed_ids, result_ids, source, requested, latency_ms, success, context, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		joinIDs(entry.SeedIDs),
		joinIDs(entry.ResultIDs),
		string(entry.Source),
		entry.Requested,
		entry.Latency.Milliseconds(),
		boolInt(entry.Success),
		string(entry.Context),
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("write recommendation log: %w", err)
	}
	return nil
}

func joinIDs(ids []int64) string {
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		parts = append(parts, strconv.FormatInt(id, 10))
	}
	return strings.Join(parts, ",")
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
