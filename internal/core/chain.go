package core

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"nextup/pkg/fuzzy"
)

// IDSet is the exclusion set passed into chain lookups.
type IDSet map[int64]struct{}

// NewIDSet builds an exclusion set from track lists.
func NewIDSet(tracks ...[]Track) IDSet {
	set := make(IDSet)
	for _, list := range tracks {
		for _, t := range list {
			set[t.ID] = struct{}{}
		}
	}
	return set
}

func (s IDSet) Add(id int64) {
	s[id] = struct{}{}
}

func (s IDSet) Has(id int64) bool {
	_, ok := s[id]
	return ok
}

// SourceChain resolves recommendations for a seed track by trying, in
// order: cache, primary API, secondary similarity API, radio fallback.
// The first step that yields at least one usable candidate after exclusion
// filtering wins. Steps two through four write a fresh cache entry before
// returning; step failures are logged and fall through, never surfaced.
type SourceChain struct {
	cache      RecommendationCache
	catalog    CatalogProvider
	primary    PrimaryRecommender
	similar    SimilarityProvider
	seen       SeenStore
	normalizer *fuzzy.Normalizer
	logger     *zap.Logger

	stepTimeout time.Duration
	radioLimit  int
}

func NewSourceChain(
	cache RecommendationCache,
	catalog CatalogProvider,
	primary PrimaryRecommender,
	similar SimilarityProvider,
	seen SeenStore,
	cfg *AppConfig,
	catalogCfg *CatalogConfig,
	logger *zap.Logger,
) *SourceChain {
	return &SourceChain{
		cache:       cache,
		catalog:     catalog,
		primary:     primary,
		similar:     similar,
		seen:        seen,
		normalizer:  fuzzy.NewNormalizer(),
		logger:      logger,
		stepTimeout: cfg.StepTimeout,
		radioLimit:  catalogCfg.RadioPageLimit,
	}
}

// Recommend returns up to count candidates for the seed track, never
// containing excluded ids or the seed itself. The returned source tags the
// chain link that produced the result. An empty list with SourceNone means
// every step was exhausted; no error is ever returned past this boundary.
func (c *SourceChain) Recommend(ctx context.Context, seed Track, count int, exclude IDSet) ([]Track, RecommendationSource) {
	if count <= 0 {
		return nil, SourceNone
	}

	if tracks := c.fromCache(ctx, seed, count, exclude); len(tracks) > 0 {
		return tracks, SourceCache
	}

	steps := []struct {
		source RecommendationSource
		fetch  func(context.Context) ([]Track, error)
	}{
		{SourcePrimary, func(ctx context.Context) ([]Track, error) { return c.fromPrimary(ctx, seed, count) }},
		{SourceSecondary, func(ctx context.Context) ([]Track, error) { return c.fromSecondary(ctx, seed, count) }},
		{SourceRadio, func(ctx context.Context) ([]Track, error) { return c.fromRadio(ctx, seed) }},
	}

	for _, step := range steps {
		stepCtx, cancel := context.WithTimeout(ctx, c.stepTimeout)
		fetched, err := step.fetch(stepCtx)
		cancel()
		if err != nil {
			c.logger.Warn("recommendation step failed, falling through",
				zap.String("source", string(step.source)),
				zap.Int64("seedID", seed.ID),
				zap.Error(err))
			continue
		}

		candidates := dedupeByID(fetched, seed.ID)
		if len(candidates) == 0 {
			continue
		}

		// Cache the full candidate list before exclusion filtering so a
		// later lookup with a different exclusion set can still be served.
		c.cache.Put(ctx, seed.ID, candidates, step.source)

		usable := c.filterExcluded(candidates, count, exclude)
		if len(usable) == 0 {
			continue
		}

		c.logger.Debug("recommendation step succeeded",
			zap.String("source", string(step.source)),
			zap.Int64("seedID", seed.ID),
			zap.Int("fetched", len(fetched)),
			zap.Int("usable", len(usable)))
		return usable, step.source
	}

	c.logger.Info("all recommendation sources exhausted",
		zap.Int64("seedID", seed.ID),
		zap.Int("requested", count))
	return nil, SourceNone
}

func (c *SourceChain) fromCache(ctx context.Context, seed Track, count int, exclude IDSet) []Track {
	entry := c.cache.Get(ctx, seed.ID)
	if entry == nil {
		return nil
	}
	return c.filterExcluded(dedupeByID(entry.Tracks, seed.ID), count, exclude)
}

// fromPrimary queries the free-text semantic-match service and re-resolves
// each loosely identified suggestion against the catalog. Individual
// re-resolution failures drop the item, never the batch.
func (c *SourceChain) fromPrimary(ctx context.Context, seed Track, count int) ([]Track, error) {
	if c.primary == nil {
		return nil, fmt.Errorf("primary recommender not configured")
	}

	suggestions, err := c.primary.Recommend(ctx, []Track{seed}, count)
	if err != nil {
		return nil, fmt.Errorf("primary recommend: %w", err)
	}

	resolved := make([]Track, 0, len(suggestions))
	for _, s := range suggestions {
		track, err := c.resolveSuggestion(ctx, s)
		if err != nil {
			c.logger.Debug("dropping unresolvable suggestion",
				zap.String("title", s.Title),
				zap.String("artist", s.Artist),
				zap.Error(err))
			continue
		}
		resolved = append(resolved, *track)
	}
	return resolved, nil
}

// resolveSuggestion maps one loosely identified suggestion to a catalog
// track. When a catalog id is present it is looked up directly; otherwise
// the suggestion is searched by normalized "artist title" and the first
// result wins.
func (c *SourceChain) resolveSuggestion(ctx context.Context, s Suggestion) (*Track, error) {
	if s.CatalogID != 0 {
		track, err := c.catalog.GetTrack(ctx, s.CatalogID)
		if err != nil {
			return nil, fmt.Errorf("get track %d: %w", s.CatalogID, err)
		}
		return track, nil
	}

	query := c.normalizer.SearchQuery(s.Artist, s.Title)
	if query == "" {
		return nil, fmt.Errorf("empty suggestion")
	}

	results, err := c.catalog.SearchTrack(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", query, err)
	}
	if len(results) == 0 {
		return nil, fmt.Errorf("no catalog match for %q", query)
	}
	return &results[0], nil
}

func (c *SourceChain) fromSecondary(ctx context.Context, seed Track, count int) ([]Track, error) {
	tracks, err := c.similar.Similar(ctx, seed.ID, count)
	if err != nil {
		return nil, fmt.Errorf("similar tracks: %w", err)
	}
	return tracks, nil
}

func (c *SourceChain) fromRadio(ctx context.Context, seed Track) ([]Track, error) {
	tracks, err := c.catalog.GetRadio(ctx, seed.ID, c.radioLimit)
	if err != nil {
		return nil, fmt.Errorf("radio: %w", err)
	}
	return tracks, nil
}

// filterExcluded drops excluded and already-seen ids and caps the result
// at count.
func (c *SourceChain) filterExcluded(tracks []Track, count int, exclude IDSet) []Track {
	filtered := make([]Track, 0, len(tracks))
	for _, t := range tracks {
		if exclude.Has(t.ID) {
			continue
		}
		if c.seen != nil && c.seen.Has(t.ID) {
			continue
		}
		filtered = append(filtered, t)
		if len(filtered) == count {
			break
		}
	}
	return filtered
}

// dedupeByID removes duplicate ids and the seed itself, preserving order.
func dedupeByID(tracks []Track, seedID int64) []Track {
	seen := make(map[int64]struct{}, len(tracks))
	out := make([]Track, 0, len(tracks))
	for _, t := range tracks {
		if t.ID == seedID {
			continue
		}
		if _, dup := seen[t.ID]; dup {
			continue
		}
		seen[t.ID] = struct{}{}
		out = append(out, t)
	}
	return out
}
