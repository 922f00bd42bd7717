package core

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// targetQueueLength is the queue length the over-request formula aims for:
// requested = max(configured count, ceil((target - length) * 1.5)). The
// deliberate over-request leaves enough novel tracks after exclusion
// filtering removes what the listener already knows.
const targetQueueLength = 20

// AutoQueueController observes queue-length changes and replenishes the
// queue from the recommendation service when it runs low. At most one
// fetch is in flight at a time; triggers arriving while a fetch is
// outstanding are dropped, not queued. Queue mutations are never blocked
// by an outstanding fetch, and results are appended to whatever the queue
// tail is at completion time.
type AutoQueueController struct {
	queue    *PlaybackQueue
	recs     *RecommendationService
	settings SettingsStore
	seen     SeenStore
	metrics  MetricsRecorder
	logger   *zap.Logger

	wakeup chan struct{}

	fetchMu  sync.Mutex
	fetching bool
}

func NewAutoQueueController(
	queue *PlaybackQueue,
	recs *RecommendationService,
	settings SettingsStore,
	seen SeenStore,
	metrics MetricsRecorder,
	logger *zap.Logger,
) *AutoQueueController {
	c := &AutoQueueController{
		queue:    queue,
		recs:     recs,
		settings: settings,
		seen:     seen,
		metrics:  metrics,
		logger:   logger,
		wakeup:   make(chan struct{}, 1),
	}
	queue.SetChangeListener(c.Notify)
	return c
}

// Notify signals that the queue length may have changed. Non-blocking: a
// full wakeup channel means an evaluation is already pending.
func (c *AutoQueueController) Notify() {
	select {
	case c.wakeup <- struct{}{}:
	default:
	}
}

// Run evaluates the trigger condition on every wakeup until the context is
// canceled. An evaluation runs immediately on startup.
func (c *AutoQueueController) Run(ctx context.Context) error {
	c.logger.Info("starting auto-queue controller")

	c.evaluate(ctx)

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("auto-queue controller stopped")
			return nil
		case <-c.wakeup:
			c.evaluate(ctx)
		}
	}
}

// IsFetching reports whether a replenishment fetch is outstanding. Exposed
// to the presentation layer for loading indication.
func (c *AutoQueueController) IsFetching() bool {
	c.fetchMu.Lock()
	defer c.fetchMu.Unlock()
	return c.fetching
}

// acquireFetch attempts to take the single-flight fetch guard.
func (c *AutoQueueController) acquireFetch() bool {
	c.fetchMu.Lock()
	defer c.fetchMu.Unlock()

	if c.fetching {
		return false
	}
	c.fetching = true
	return true
}

func (c *AutoQueueController) releaseFetch() {
	c.fetchMu.Lock()
	c.fetching = false
	c.fetchMu.Unlock()
	if c.metrics != nil {
		c.metrics.RecordFetching(false)
	}
}

func (c *AutoQueueController) evaluate(ctx context.Context) {
	settings, err := c.settings.Load(ctx)
	if err != nil {
		c.logger.Warn("failed to load smart queue settings, skipping evaluation", zap.Error(err))
		return
	}

	if !settings.AutoQueueEnabled {
		return
	}

	current := c.queue.Current()
	if current == nil {
		return
	}

	length := c.queue.Len()
	if length > settings.AutoQueueThreshold {
		return
	}

	if !c.acquireFetch() {
		c.logger.Debug("replenishment already in flight, dropping trigger")
		return
	}
	if c.metrics != nil {
		c.metrics.RecordFetching(true)
	}
	// The guard must be released on every exit path; a failure here must
	// never wedge auto-queue permanently.
	defer c.releaseFetch()

	c.replenish(ctx, settings, *current, length)
}

func (c *AutoQueueController) replenish(ctx context.Context, settings SmartQueueSettings, seed Track, length int) {
	start := time.Now()
	requested := requestedCount(settings.AutoQueueCount, length)

	c.logger.Info("triggering queue replenishment",
		zap.Int64("seedID", seed.ID),
		zap.Int("queueLength", length),
		zap.Int("threshold", settings.AutoQueueThreshold),
		zap.Int("requested", requested))

	c.markHistorySeen()

	exclude := NewIDSet([]Track{seed}, c.queue.Tracks())
	results := c.recs.Recommend(ctx, seed, requested, exclude,
		settings.SimilarityPreference, ContextAutoQueue)

	if len(results) == 0 {
		c.logger.Info("replenishment yielded no candidates, queue unchanged",
			zap.Int64("seedID", seed.ID))
		if c.metrics != nil {
			c.metrics.RecordReplenish("empty", time.Since(start))
		}
		return
	}

	added := c.queue.Enqueue(results, true)
	for _, t := range results {
		c.seen.Add(t.ID)
	}

	if c.metrics != nil {
		c.metrics.RecordReplenish("ok", time.Since(start))
	}
	c.logger.Info("queue replenished",
		zap.Int64("seedID", seed.ID),
		zap.Int("fetched", len(results)),
		zap.Int("added", added),
		zap.Duration("latency", time.Since(start)))
}

// markHistorySeen feeds played tracks into the seen store so the exclusion
// filter keeps replenishment novel across the session.
func (c *AutoQueueController) markHistorySeen() {
	for _, t := range c.queue.History() {
		c.seen.Add(t.ID)
	}
}

// requestedCount computes max(configured, ceil((20 - length) * 1.5)).
func requestedCount(configured, length int) int {
	needed := targetQueueLength - length
	if needed < 0 {
		needed = 0
	}
	over := (needed*3 + 1) / 2
	if configured > over {
		return configured
	}
	return over
}
