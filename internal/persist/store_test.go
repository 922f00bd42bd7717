package persist

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"nextup/internal/core"
)

func testDefaults() core.SmartQueueSettings {
	return core.SmartQueueSettings{
		AutoQueueEnabled:     true,
		AutoQueueThreshold:   3,
		AutoQueueCount:       5,
		SimilarityPreference: core.SimilarityBalanced,
		SmartMixEnabled:      true,
	}
}

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nextup.db")
	s, err := Open(path, testDefaults(), zap.NewNop())
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestLoadReturnsDefaultsWhenEmpty(t *testing.T) {
	s := openTestStore(t)

	settings, err := s.Load(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if settings != testDefaults() {
		t.Errorf("settings = %+v, want defaults", settings)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	s := openTestStore(t)

	saved := core.SmartQueueSettings{
		AutoQueueEnabled:     false,
		AutoQueueThreshold:   7,
		AutoQueueCount:       12,
		SimilarityPreference: core.SimilarityDiverse,
		SmartMixEnabled:      false,
	}
	if err := s.Save(context.Background(), saved); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	loaded, err := s.Load(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if loaded != saved {
		t.Errorf("loaded = %+v, want %+v", loaded, saved)
	}
}

func TestSaveUpserts(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	first := testDefaults()
	first.AutoQueueThreshold = 2
	if err := s.Save(ctx, first); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	second := testDefaults()
	second.AutoQueueThreshold = 9
	if err := s.Save(ctx, second); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	loaded, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if loaded.AutoQueueThreshold != 9 {
		t.Errorf("threshold = %d, want 9", loaded.AutoQueueThreshold)
	}

	var rows int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM smart_queue_settings").Scan(&rows); err != nil {
		t.Fatalf("failed to count rows: %v", err)
	}
	if rows != 1 {
		t.Errorf("settings rows = %d, want 1", rows)
	}
}

func TestLogWritesAuditRows(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	entry := core.LogEntry{
		SeedIDs:   []int64{1, 2},
		ResultIDs: []int64{10, 11, 12},
		Source:    core.SourceSecondary,
		Requested: 5,
		Latency:   1500 * time.Millisecond,
		Success:   true,
		Context:   core.ContextAutoQueue,
	}
	if err := s.Log(ctx, entry); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var seedIDs, resultIDs, source, reqCtx string
	var requested, latencyMS, success int
	err := s.db.QueryRow(`
		SELECT seed_ids, result_ids, source, requested, latency_ms, success, context
		FROM recommendation_log`).
		Scan(&seedIDs, &resultIDs, &source, &requested, &latencyMS, &success, &reqCtx)
	if err != nil {
		t.Fatalf("failed to read audit row: %v", err)
	}

	if seedIDs != "1,2" {
		t.Errorf("seed_ids = %q, want \"1,2\"", seedIDs)
	}
	if resultIDs != "10,11,12" {
		t.Errorf("result_ids = %q, want \"10,11,12\"", resultIDs)
	}
	if source != "secondary" {
		t.Errorf("source = %q, want secondary", source)
	}
	if requested != 5 {
		t.Errorf("requested = %d, want 5", requested)
	}
	if latencyMS != 1500 {
		t.Errorf("latency_ms = %d, want 1500", latencyMS)
	}
	if success != 1 {
		t.Errorf("success = %d, want 1", success)
	}
	if reqCtx != "auto-queue" {
		t.Errorf("context = %q, want auto-queue", reqCtx)
	}
}

func TestLogAppends(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		entry := core.LogEntry{
			SeedIDs: []int64{int64(i)},
			Source:  core.SourceCache,
			Context: core.ContextManual,
		}
		if err := s.Log(ctx, entry); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	var rows int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM recommendation_log").Scan(&rows); err != nil {
		t.Fatalf("failed to count rows: %v", err)
	}
	if rows != 3 {
		t.Errorf("audit rows = %d, want 3", rows)
	}
}
