package cache

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"nextup/internal/core"
)

func testConfig(ttl time.Duration) *core.CacheConfig {
	return &core.CacheConfig{
		Backend:  "memory",
		TTL:      ttl,
		MaxSeeds: 8,
	}
}

func TestMemoryGetMiss(t *testing.T) {
	m := NewMemory(testConfig(time.Minute), zap.NewNop())

	if entry := m.Get(context.Background(), 1); entry != nil {
		t.Errorf("expected miss, got %v", entry)
	}
}

func TestMemoryPutGet(t *testing.T) {
	m := NewMemory(testConfig(time.Minute), zap.NewNop())
	tracks := []core.Track{{ID: 10}, {ID: 11}}

	m.Put(context.Background(), 1, tracks, core.SourceRadio)

	entry := m.Get(context.Background(), 1)
	if entry == nil {
		t.Fatal("expected cache hit")
	}
	if len(entry.Tracks) != 2 || entry.Tracks[0].ID != 10 {
		t.Errorf("unexpected tracks: %v", entry.Tracks)
	}
	if entry.Source != core.SourceRadio {
		t.Errorf("entry source = %q, want radio", entry.Source)
	}
	if entry.FetchedAt.IsZero() {
		t.Errorf("FetchedAt not set")
	}
}

func TestMemoryPutReplacesEntry(t *testing.T) {
	m := NewMemory(testConfig(time.Minute), zap.NewNop())

	m.Put(context.Background(), 1, []core.Track{{ID: 10}}, core.SourceRadio)
	m.Put(context.Background(), 1, []core.Track{{ID: 20}}, core.SourcePrimary)

	entry := m.Get(context.Background(), 1)
	if entry == nil {
		t.Fatal("expected cache hit")
	}
	if len(entry.Tracks) != 1 || entry.Tracks[0].ID != 20 {
		t.Errorf("expected entry replaced wholesale, got %v", entry.Tracks)
	}
	if entry.Source != core.SourcePrimary {
		t.Errorf("entry source = %q, want primary", entry.Source)
	}
}

func TestMemoryExpiry(t *testing.T) {
	m := NewMemory(testConfig(20*time.Millisecond), zap.NewNop())

	m.Put(context.Background(), 1, []core.Track{{ID: 10}}, core.SourceRadio)
	time.Sleep(50 * time.Millisecond)

	if entry := m.Get(context.Background(), 1); entry != nil {
		t.Errorf("expected expiry, got %v", entry)
	}
}

func TestMemoryCopiesTracks(t *testing.T) {
	m := NewMemory(testConfig(time.Minute), zap.NewNop())
	tracks := []core.Track{{ID: 10}}

	m.Put(context.Background(), 1, tracks, core.SourceRadio)
	tracks[0].ID = 99

	entry := m.Get(context.Background(), 1)
	if entry == nil {
		t.Fatal("expected cache hit")
	}
	if entry.Tracks[0].ID != 10 {
		t.Errorf("cache entry shares storage with the caller's slice")
	}
}

func TestMemoryEvictsOldestSeeds(t *testing.T) {
	m := NewMemory(testConfig(time.Minute), zap.NewNop())

	for i := int64(1); i <= 10; i++ {
		m.Put(context.Background(), i, []core.Track{{ID: i + 100}}, core.SourceRadio)
	}

	// Capacity is 8, so the two oldest seeds are gone.
	if entry := m.Get(context.Background(), 1); entry != nil {
		t.Errorf("expected seed 1 evicted")
	}
	if entry := m.Get(context.Background(), 10); entry == nil {
		t.Errorf("expected seed 10 retained")
	}
}
