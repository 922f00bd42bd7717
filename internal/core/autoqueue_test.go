package core

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
)

type stubSettings struct {
	mu       sync.Mutex
	settings SmartQueueSettings
	err      error
	loads    int
}

func (s *stubSettings) Load(_ context.Context) (SmartQueueSettings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loads++
	return s.settings, s.err
}

func (s *stubSettings) Save(_ context.Context, settings SmartQueueSettings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings = settings
	return nil
}

type controllerFixture struct {
	*serviceFixture
	queue      *PlaybackQueue
	settings   *stubSettings
	controller *AutoQueueController
}

func newControllerFixture(settings SmartQueueSettings) *controllerFixture {
	f := &controllerFixture{
		serviceFixture: newServiceFixture(),
		queue:          newTestQueue(),
		settings:       &stubSettings{settings: settings},
	}
	f.controller = NewAutoQueueController(f.queue, f.service, f.settings, f.seen, f.metrics, zap.NewNop())
	return f
}

func defaultTestSettings() SmartQueueSettings {
	return SmartQueueSettings{
		AutoQueueEnabled:     true,
		AutoQueueThreshold:   3,
		AutoQueueCount:       5,
		SimilarityPreference: SimilarityBalanced,
	}
}

func TestControllerReplenishesWhenBelowThreshold(t *testing.T) {
	f := newControllerFixture(defaultTestSettings())
	f.queue.PlayNow(track(1))
	f.queue.Enqueue([]Track{track(2)}, false)
	f.cache.entries[1] = &CacheEntry{
		Tracks: []Track{track(10), track(11), track(12)},
		Source: SourceRadio,
	}

	f.controller.evaluate(context.Background())

	assertIDs(t, queueIDs(f.queue), 2, 10, 11, 12)
	if f.controller.IsFetching() {
		t.Errorf("fetch guard still held after replenish")
	}
	if len(f.metrics.replenishes) != 1 || f.metrics.replenishes[0] != "ok" {
		t.Errorf("replenish metric = %v, want [ok]", f.metrics.replenishes)
	}
	// Fetched tracks become part of the session's seen set.
	for _, id := range []int64{10, 11, 12} {
		if !f.seen.Has(id) {
			t.Errorf("track %d not marked seen after replenish", id)
		}
	}
}

func TestControllerSkipsWhenDisabled(t *testing.T) {
	settings := defaultTestSettings()
	settings.AutoQueueEnabled = false
	f := newControllerFixture(settings)
	f.queue.PlayNow(track(1))

	f.controller.evaluate(context.Background())

	if len(f.cache.gets) != 0 {
		t.Errorf("expected no recommendation lookup when disabled")
	}
}

func TestControllerSkipsWithoutCurrentTrack(t *testing.T) {
	f := newControllerFixture(defaultTestSettings())
	f.queue.Enqueue([]Track{track(2)}, false)

	f.controller.evaluate(context.Background())

	if len(f.cache.gets) != 0 {
		t.Errorf("expected no recommendation lookup without a current track")
	}
}

func TestControllerSkipsAboveThreshold(t *testing.T) {
	f := newControllerFixture(defaultTestSettings())
	f.queue.PlayNow(track(1))
	f.queue.Enqueue([]Track{track(2), track(3), track(4), track(5)}, false)

	f.controller.evaluate(context.Background())

	if len(f.cache.gets) != 0 {
		t.Errorf("expected no recommendation lookup above threshold")
	}
	assertIDs(t, queueIDs(f.queue), 2, 3, 4, 5)
}

func TestControllerSingleFlight(t *testing.T) {
	f := newControllerFixture(defaultTestSettings())
	f.queue.PlayNow(track(1))
	f.cache.entries[1] = &CacheEntry{
		Tracks: []Track{track(10)},
		Source: SourceRadio,
	}

	if !f.controller.acquireFetch() {
		t.Fatal("failed to take the fetch guard")
	}
	f.controller.evaluate(context.Background())

	if len(f.cache.gets) != 0 {
		t.Errorf("expected trigger dropped while a fetch is in flight")
	}

	f.controller.releaseFetch()
	f.controller.evaluate(context.Background())
	assertIDs(t, queueIDs(f.queue), 10)
}

func TestControllerEmptyResultLeavesQueueUnchanged(t *testing.T) {
	f := newControllerFixture(defaultTestSettings())
	f.queue.PlayNow(track(1))
	f.queue.Enqueue([]Track{track(2)}, false)
	f.primary.err = fmt.Errorf("provider down")
	f.similar.err = fmt.Errorf("similarity down")
	f.catalog.radioErr = fmt.Errorf("radio down")

	f.controller.evaluate(context.Background())

	assertIDs(t, queueIDs(f.queue), 2)
	if f.controller.IsFetching() {
		t.Errorf("fetch guard still held after failed replenish")
	}
	if len(f.metrics.replenishes) != 1 || f.metrics.replenishes[0] != "empty" {
		t.Errorf("replenish metric = %v, want [empty]", f.metrics.replenishes)
	}
}

func TestControllerSettingsLoadFailureSkipsEvaluation(t *testing.T) {
	f := newControllerFixture(defaultTestSettings())
	f.settings.err = fmt.Errorf("database locked")
	f.queue.PlayNow(track(1))

	f.controller.evaluate(context.Background())

	if len(f.cache.gets) != 0 {
		t.Errorf("expected no recommendation lookup when settings fail to load")
	}
}

func TestControllerExcludesQueuedTracks(t *testing.T) {
	f := newControllerFixture(defaultTestSettings())
	f.queue.PlayNow(track(1))
	f.queue.Enqueue([]Track{track(10)}, false)
	f.cache.entries[1] = &CacheEntry{
		Tracks: []Track{track(10), track(11)},
		Source: SourceRadio,
	}

	f.controller.evaluate(context.Background())

	assertIDs(t, queueIDs(f.queue), 10, 11)
}

func TestControllerMarksHistorySeen(t *testing.T) {
	f := newControllerFixture(defaultTestSettings())
	f.queue.PlayNow(track(5))
	f.queue.PlayNow(track(1))
	// history [5]; a later fetch must not resurface it
	f.cache.entries[1] = &CacheEntry{
		Tracks: []Track{track(5), track(11)},
		Source: SourceRadio,
	}

	f.controller.evaluate(context.Background())

	assertIDs(t, queueIDs(f.queue), 11)
}

func TestNotifyNeverBlocks(t *testing.T) {
	f := newControllerFixture(defaultTestSettings())

	// Repeated notifications with nothing draining the channel collapse
	// into one pending wakeup.
	for i := 0; i < 10; i++ {
		f.controller.Notify()
	}
	if len(f.controller.wakeup) != 1 {
		t.Errorf("expected 1 pending wakeup, got %d", len(f.controller.wakeup))
	}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	settings := defaultTestSettings()
	settings.AutoQueueEnabled = false
	f := newControllerFixture(settings)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- f.controller.Run(ctx)
	}()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run returned error on cancel: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop on context cancel")
	}
}

func TestRequestedCount(t *testing.T) {
	tests := []struct {
		configured int
		length     int
		want       int
	}{
		{5, 20, 5},   // queue already at target, configured count wins
		{5, 25, 5},   // above target
		{5, 1, 29},   // ceil(19 * 1.5)
		{5, 19, 5},   // ceil(1 * 1.5) = 2, configured wins
		{3, 18, 3},   // ceil(2 * 1.5) = 3, tie
		{40, 10, 40}, // large configured count wins
		{5, 0, 30},   // empty queue
	}

	for _, tt := range tests {
		if got := requestedCount(tt.configured, tt.length); got != tt.want {
			t.Errorf("requestedCount(%d, %d) = %d, want %d", tt.configured, tt.length, got, tt.want)
		}
	}
}
