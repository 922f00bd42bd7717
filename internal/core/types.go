package core

import (
	"context"
	"time"
)

// Artist identifies a catalog artist. Identity is the numeric id.
type Artist struct {
	ID   int64
	Name string
}

// Cover holds the image variants the catalog provider publishes for an
// album. Any of the fields may be empty for partial records.
type Cover struct {
	Small  string
	Medium string
	Big    string
}

// Album identifies a catalog album.
type Album struct {
	ID    int64
	Title string
	Cover Cover
}

// Track is an immutable catalog track. Equality and deduplication are
// always by the numeric ID, never by title/artist strings.
type Track struct {
	ID       int64
	Title    string
	Duration time.Duration
	Artist   Artist
	Album    Album
}

// RepeatMode controls what happens when the current track finishes.
type RepeatMode int

const (
	// RepeatNone stops playback once the queue is exhausted.
	RepeatNone RepeatMode = iota
	// RepeatAll cycles the queue through history and back.
	RepeatAll
	// RepeatOne replays the current track without consuming the queue.
	RepeatOne
)

func (m RepeatMode) String() string {
	switch m {
	case RepeatOne:
		return "one"
	case RepeatAll:
		return "all"
	default:
		return "none"
	}
}

// SimilarityPreference selects how aggressively the diversity policy
// reshapes a candidate pool.
type SimilarityPreference string

const (
	SimilarityStrict   SimilarityPreference = "strict"
	SimilarityBalanced SimilarityPreference = "balanced"
	SimilarityDiverse  SimilarityPreference = "diverse"
)

// SmartQueueSettings is the per-user auto-queue configuration. Values are
// loaded from the settings store and passed around as immutable snapshots;
// components never share a mutable settings object.
type SmartQueueSettings struct {
	AutoQueueEnabled     bool
	AutoQueueThreshold   int
	AutoQueueCount       int
	SimilarityPreference SimilarityPreference
	SmartMixEnabled      bool
}

// RecommendationSource tags which chain link produced a candidate list.
type RecommendationSource string

const (
	SourceCache     RecommendationSource = "cache"
	SourcePrimary   RecommendationSource = "primary"
	SourceSecondary RecommendationSource = "secondary"
	SourceRadio     RecommendationSource = "radio"
	SourceMixed     RecommendationSource = "mixed"
	SourceNone      RecommendationSource = "none"
)

// RequestContext tags why a recommendation request was made.
type RequestContext string

const (
	ContextAutoQueue     RequestContext = "auto-queue"
	ContextSmartMix      RequestContext = "smart-mix"
	ContextManual        RequestContext = "manual"
	ContextSimilarTracks RequestContext = "similar-tracks"
)

// Suggestion is a loosely identified track returned by the primary
// recommendation API. CatalogID is zero when the upstream response carried
// no usable catalog id, in which case the suggestion must be re-resolved
// through catalog search before it can become a Track.
type Suggestion struct {
	Title     string
	Artist    string
	CatalogID int64
}

// CacheEntry is an immutable recommendation-cache record for one seed id.
type CacheEntry struct {
	Tracks    []Track
	Source    RecommendationSource
	FetchedAt time.Time
}

// LogEntry is a write-only audit record of one recommendation request.
type LogEntry struct {
	SeedIDs   []int64
	ResultIDs []int64
	Source    RecommendationSource
	Requested int
	Latency   time.Duration
	Success   bool
	Context   RequestContext
}

// CatalogProvider is the external music metadata catalog. Implementations
// are expected to be rate-limited and to tolerate partial records.
type CatalogProvider interface {
	SearchTrack(ctx context.Context, query string) ([]Track, error)
	GetTrack(ctx context.Context, id int64) (*Track, error)
	GetRadio(ctx context.Context, id int64, limit int) ([]Track, error)
}

// SimilarityProvider is the catalog-native "similar tracks to id" endpoint.
type SimilarityProvider interface {
	Similar(ctx context.Context, id int64, count int) ([]Track, error)
}

// PrimaryRecommender is the free-text semantic-match service. Results are
// suggestions that may need re-resolution against the catalog.
type PrimaryRecommender interface {
	Recommend(ctx context.Context, seeds []Track, count int) ([]Suggestion, error)
}

// RecommendationCache stores candidate lists per seed id with a TTL.
// Get returns nil on miss or expiry; expiry is checked at read time.
type RecommendationCache interface {
	Get(ctx context.Context, seedID int64) *CacheEntry
	Put(ctx context.Context, seedID int64, tracks []Track, source RecommendationSource)
}

// SettingsStore persists SmartQueueSettings. Load returns defaults when
// nothing has been saved yet.
type SettingsStore interface {
	Load(ctx context.Context) (SmartQueueSettings, error)
	Save(ctx context.Context, settings SmartQueueSettings) error
}

// RecommendationLogger records audit entries. Entries are never read back
// by this core.
type RecommendationLogger interface {
	Log(ctx context.Context, entry LogEntry) error
}

// SeenStore remembers track ids the listener has already heard this
// session, so replenishment keeps suggesting novel tracks.
type SeenStore interface {
	Has(trackID int64) bool
	Add(trackID int64)
	Size() int
	Clear()
}
