package core

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"
)

type recordingAudit struct {
	entries []LogEntry
	err     error
}

func (r *recordingAudit) Log(_ context.Context, entry LogEntry) error {
	r.entries = append(r.entries, entry)
	return r.err
}

type recordingMetrics struct {
	chainResults []RecommendationSource
	replenishes  []string
	smartMixes   int
	fetching     []bool
	queueLengths []int
}

func (r *recordingMetrics) RecordChainResult(source RecommendationSource) {
	r.chainResults = append(r.chainResults, source)
}

func (r *recordingMetrics) RecordReplenish(status string, _ time.Duration) {
	r.replenishes = append(r.replenishes, status)
}

func (r *recordingMetrics) RecordSmartMix() {
	r.smartMixes++
}

func (r *recordingMetrics) RecordFetching(active bool) {
	r.fetching = append(r.fetching, active)
}

func (r *recordingMetrics) SetQueueLength(length int) {
	r.queueLengths = append(r.queueLengths, length)
}

type serviceFixture struct {
	*chainFixture
	audit   *recordingAudit
	metrics *recordingMetrics
	service *RecommendationService
}

func newServiceFixture() *serviceFixture {
	f := &serviceFixture{
		chainFixture: newChainFixture(),
		audit:        &recordingAudit{},
		metrics:      &recordingMetrics{},
	}
	app := &AppConfig{
		StepTimeout:       time.Second,
		SmartMixSeedLimit: 5,
		SmartMixPerSeed:   20,
	}
	f.service = NewRecommendationService(f.chain, NewDiversityPolicy(), f.audit, f.metrics, app, zap.NewNop())
	return f
}

func TestServiceRecommendTruncatesAndLogs(t *testing.T) {
	f := newServiceFixture()
	f.cache.entries[1] = &CacheEntry{
		Tracks: []Track{track(10), track(11), track(12), track(13)},
		Source: SourceRadio,
	}

	results := f.service.Recommend(context.Background(), track(1), 3, nil, SimilarityBalanced, ContextManual)
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}

	if len(f.audit.entries) != 1 {
		t.Fatalf("expected 1 audit entry, got %d", len(f.audit.entries))
	}
	entry := f.audit.entries[0]
	if !entry.Success {
		t.Errorf("expected successful entry")
	}
	if entry.Source != SourceCache {
		t.Errorf("entry source = %q, want cache", entry.Source)
	}
	if entry.Requested != 3 {
		t.Errorf("entry requested = %d, want 3", entry.Requested)
	}
	if entry.Context != ContextManual {
		t.Errorf("entry context = %q, want manual", entry.Context)
	}
	assertIDs(t, entry.SeedIDs, 1)

	if len(f.metrics.chainResults) != 1 || f.metrics.chainResults[0] != SourceCache {
		t.Errorf("chain result metric = %v, want [cache]", f.metrics.chainResults)
	}
}

func TestServiceRecommendEmptyResultLogsFailure(t *testing.T) {
	f := newServiceFixture()
	f.primary.err = context.DeadlineExceeded
	f.similar.err = context.DeadlineExceeded
	f.catalog.radioErr = context.DeadlineExceeded

	results := f.service.Recommend(context.Background(), track(1), 3, nil, SimilarityBalanced, ContextAutoQueue)
	if len(results) != 0 {
		t.Fatalf("expected no results, got %d", len(results))
	}

	if len(f.audit.entries) != 1 {
		t.Fatalf("expected 1 audit entry, got %d", len(f.audit.entries))
	}
	if f.audit.entries[0].Success {
		t.Errorf("expected failed entry")
	}
	if f.audit.entries[0].Source != SourceNone {
		t.Errorf("entry source = %q, want none", f.audit.entries[0].Source)
	}
}

func TestServiceSmartMixMergesAndDeduplicates(t *testing.T) {
	f := newServiceFixture()
	f.cache.entries[1] = &CacheEntry{
		Tracks: []Track{track(10), track(11), track(12)},
		Source: SourceRadio,
	}
	f.cache.entries[2] = &CacheEntry{
		Tracks: []Track{track(11), track(12), track(13)},
		Source: SourceRadio,
	}

	results := f.service.SmartMix(context.Background(), []Track{track(1), track(2)}, 10, SimilarityDiverse)

	ids := make(map[int64]bool, len(results))
	for _, r := range results {
		if ids[r.ID] {
			t.Fatalf("duplicate id %d in smart mix", r.ID)
		}
		ids[r.ID] = true
	}
	if len(results) != 4 {
		t.Fatalf("expected 4 unique tracks, got %d", len(results))
	}
	for _, want := range []int64{10, 11, 12, 13} {
		if !ids[want] {
			t.Errorf("missing track %d in smart mix", want)
		}
	}

	if f.metrics.smartMixes != 1 {
		t.Errorf("smart mix metric = %d, want 1", f.metrics.smartMixes)
	}
	if len(f.audit.entries) != 1 || f.audit.entries[0].Source != SourceMixed {
		t.Errorf("expected one mixed audit entry, got %v", f.audit.entries)
	}
	if f.audit.entries[0].Context != ContextSmartMix {
		t.Errorf("entry context = %q, want smart-mix", f.audit.entries[0].Context)
	}
}

func TestServiceSmartMixExcludesSeeds(t *testing.T) {
	f := newServiceFixture()
	f.cache.entries[1] = &CacheEntry{
		Tracks: []Track{track(2), track(10)},
		Source: SourceRadio,
	}
	f.cache.entries[2] = &CacheEntry{
		Tracks: []Track{track(1), track(11)},
		Source: SourceRadio,
	}

	results := f.service.SmartMix(context.Background(), []Track{track(1), track(2)}, 10, SimilarityBalanced)
	for _, r := range results {
		if r.ID == 1 || r.ID == 2 {
			t.Errorf("seed %d leaked into smart mix", r.ID)
		}
	}
}

func TestServiceSmartMixCapsSeeds(t *testing.T) {
	f := newServiceFixture()
	seeds := make([]Track, 0, 7)
	for i := int64(1); i <= 7; i++ {
		seeds = append(seeds, track(i))
		f.cache.entries[i] = &CacheEntry{
			Tracks: []Track{track(i + 100)},
			Source: SourceRadio,
		}
	}

	f.service.SmartMix(context.Background(), seeds, 50, SimilarityBalanced)

	if len(f.cache.gets) != 5 {
		t.Errorf("expected 5 seeds consulted, got %d", len(f.cache.gets))
	}
}

func TestServiceSmartMixTruncatesToTotal(t *testing.T) {
	f := newServiceFixture()
	pool := make([]Track, 0, 12)
	for i := int64(10); i < 22; i++ {
		pool = append(pool, track(i))
	}
	f.cache.entries[1] = &CacheEntry{Tracks: pool, Source: SourceRadio}

	results := f.service.SmartMix(context.Background(), []Track{track(1)}, 5, SimilarityBalanced)
	if len(results) != 5 {
		t.Errorf("expected 5 results, got %d", len(results))
	}
}

func TestServiceSimilarTracksTagsContext(t *testing.T) {
	f := newServiceFixture()
	f.cache.entries[1] = &CacheEntry{
		Tracks: []Track{track(10)},
		Source: SourceRadio,
	}

	f.service.SimilarTracks(context.Background(), track(1), 3, nil, SimilarityBalanced)

	if len(f.audit.entries) != 1 {
		t.Fatalf("expected 1 audit entry, got %d", len(f.audit.entries))
	}
	if f.audit.entries[0].Context != ContextSimilarTracks {
		t.Errorf("entry context = %q, want similar-tracks", f.audit.entries[0].Context)
	}
}

func TestServiceAuditFailureDoesNotAffectResults(t *testing.T) {
	f := newServiceFixture()
	f.audit.err = context.DeadlineExceeded
	f.cache.entries[1] = &CacheEntry{
		Tracks: []Track{track(10)},
		Source: SourceRadio,
	}

	results := f.service.Recommend(context.Background(), track(1), 3, nil, SimilarityBalanced, ContextManual)
	assertIDs(t, resultIDs(results), 10)
}
