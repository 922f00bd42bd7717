package core

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// MetricsRecorder receives recommendation pipeline observations. The HTTP
// server implements it; a nil recorder disables recording.
type MetricsRecorder interface {
	RecordChainResult(source RecommendationSource)
	RecordReplenish(status string, duration time.Duration)
	RecordSmartMix()
	RecordFetching(active bool)
	SetQueueLength(length int)
}

// RecommendationService orchestrates the source chain and the diversity
// policy, and writes the audit log. Callers always receive a list,
// possibly empty, never an error: recommendation failures must not put the
// queue at risk.
type RecommendationService struct {
	chain   *SourceChain
	policy  *DiversityPolicy
	audit   RecommendationLogger
	metrics MetricsRecorder
	logger  *zap.Logger

	smartMixSeedLimit int
	smartMixPerSeed   int
}

func NewRecommendationService(
	chain *SourceChain,
	policy *DiversityPolicy,
	audit RecommendationLogger,
	metrics MetricsRecorder,
	cfg *AppConfig,
	logger *zap.Logger,
) *RecommendationService {
	return &RecommendationService{
		chain:             chain,
		policy:            policy,
		audit:             audit,
		metrics:           metrics,
		logger:            logger,
		smartMixSeedLimit: cfg.SmartMixSeedLimit,
		smartMixPerSeed:   cfg.SmartMixPerSeed,
	}
}

// Recommend fetches up to count candidates seeded by one track, applies
// the diversity policy and logs the request. The context tag records why
// the request was made (auto-queue, manual, similar-tracks).
func (s *RecommendationService) Recommend(
	ctx context.Context,
	seed Track,
	count int,
	exclude IDSet,
	pref SimilarityPreference,
	reqCtx RequestContext,
) []Track {
	start := time.Now()

	candidates, source := s.chain.Recommend(ctx, seed, count, exclude)
	if s.metrics != nil {
		s.metrics.RecordChainResult(source)
	}

	results := s.policy.Apply(candidates, []Track{seed}, pref)
	if len(results) > count {
		results = results[:count]
	}

	s.writeLog(ctx, []Track{seed}, results, source, count, time.Since(start), reqCtx)
	return results
}

// SmartMix blends recommendations from up to five seed tracks into one
// deduplicated pool, applies the diversity policy and truncates to the
// requested total. Seed tracks themselves are always excluded.
func (s *RecommendationService) SmartMix(
	ctx context.Context,
	seeds []Track,
	total int,
	pref SimilarityPreference,
) []Track {
	start := time.Now()

	if len(seeds) > s.smartMixSeedLimit {
		seeds = seeds[:s.smartMixSeedLimit]
	}

	exclude := NewIDSet(seeds)
	pool := make([]Track, 0, len(seeds)*s.smartMixPerSeed)
	pooled := make(IDSet)

	for _, seed := range seeds {
		candidates, _ := s.chain.Recommend(ctx, seed, s.smartMixPerSeed, exclude)
		for _, t := range candidates {
			if pooled.Has(t.ID) {
				continue
			}
			pooled.Add(t.ID)
			pool = append(pool, t)
		}
	}

	results := s.policy.Apply(pool, seeds, pref)
	if len(results) > total {
		results = results[:total]
	}

	if s.metrics != nil {
		s.metrics.RecordSmartMix()
	}
	s.writeLog(ctx, seeds, results, SourceMixed, total, time.Since(start), ContextSmartMix)

	s.logger.Info("smart mix generated",
		zap.Int("seeds", len(seeds)),
		zap.Int("poolSize", len(pool)),
		zap.Int("results", len(results)))
	return results
}

// SimilarTracks is the manual "more like this" operation. It behaves like
// Recommend but tags the audit entry accordingly.
func (s *RecommendationService) SimilarTracks(
	ctx context.Context,
	seed Track,
	count int,
	exclude IDSet,
	pref SimilarityPreference,
) []Track {
	return s.Recommend(ctx, seed, count, exclude, pref, ContextSimilarTracks)
}

func (s *RecommendationService) writeLog(
	ctx context.Context,
	seeds, results []Track,
	source RecommendationSource,
	requested int,
	latency time.Duration,
	reqCtx RequestContext,
) {
	if s.audit == nil {
		return
	}

	entry := LogEntry{
		SeedIDs:   trackIDs(seeds),
		ResultIDs: trackIDs(results),
		Source:    source,
		Requested: requested,
		Latency:   latency,
		Success:   len(results) > 0,
		Context:   reqCtx,
	}
	if err := s.audit.Log(ctx, entry); err != nil {
		s.logger.Warn("failed to write recommendation log entry", zap.Error(err))
	}
}

func trackIDs(tracks []Track) []int64 {
	ids := make([]int64, 0, len(tracks))
	for _, t := range tracks {
		ids = append(ids, t.ID)
	}
	return ids
}
