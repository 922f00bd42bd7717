// Package catalog implements the HTTP client for the external music
// metadata provider.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"nextup/internal/core"
)

// maxPageSize is the largest page the provider serves for list endpoints.
const maxPageSize = 100

// Client talks to the catalog provider's JSON API. The provider is
// rate-limited upstream, so every request waits on a local token bucket
// first. Responses may carry partial records; missing cover or album
// fields decode to zero values and never fail a request.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *zap.Logger
}

func NewClient(cfg *core.CatalogConfig, logger *zap.Logger) *Client {
	return &Client{
		baseURL: cfg.BaseURL,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSec), 1),
		logger:  logger,
	}
}

// trackPayload mirrors the provider's track representation. Only the id is
// mandatory; everything else tolerates absence.
type trackPayload struct {
	ID       int64  `json:"id"`
	Title    string `json:"title"`
	Duration int64  `json:"duration"`
	Artist   struct {
		ID   int64  `json:"id"`
		Name string `json:"name"`
	} `json:"artist"`
	Album struct {
		ID          int64  `json:"id"`
		Title       string `json:"title"`
		CoverSmall  string `json:"cover_small"`
		CoverMedium string `json:"cover_medium"`
		CoverBig    string `json:"cover_big"`
	} `json:"album"`
}

type listPayload struct {
	Data  []trackPayload `json:"data"`
	Error *errorPayload  `json:"error"`
}

type errorPayload struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (p trackPayload) toTrack() core.Track {
	return core.Track{
		ID:       p.ID,
		Title:    p.Title,
		Duration: time.Duration(p.Duration) * time.Second,
		Artist: core.Artist{
			ID:   p.Artist.ID,
			Name: p.Artist.Name,
		},
		Album: core.Album{
			ID:    p.Album.ID,
			Title: p.Album.Title,
			Cover: core.Cover{
				Small:  p.Album.CoverSmall,
				Medium: p.Album.CoverMedium,
				Big:    p.Album.CoverBig,
			},
		},
	}
}

// SearchTrack searches the catalog by free text and returns matching
// tracks in provider relevance order.
func (c *Client) SearchTrack(ctx context.Context, query string) ([]core.Track, error) {
	endpoint := fmt.Sprintf("%s/search/track?q=%s", c.baseURL, url.QueryEscape(query))
	return c.fetchTrackList(ctx, endpoint)
}

// GetTrack fetches one track by id.
func (c *Client) GetTrack(ctx context.Context, id int64) (*core.Track, error) {
	body, err := c.get(ctx, fmt.Sprintf("%s/track/%d", c.baseURL, id))
	if err != nil {
		return nil, err
	}

	var payload struct {
		trackPayload
		Error *errorPayload `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decode track %d: %w", id, err)
	}
	if payload.Error != nil {
		return nil, fmt.Errorf("catalog error for track %d: %s", id, payload.Error.Message)
	}
	if payload.ID == 0 {
		return nil, fmt.Errorf("track %d not found", id)
	}

	track := payload.toTrack()
	return &track, nil
}

// Similar returns the catalog-native similar tracks for a track id.
func (c *Client) Similar(ctx context.Context, id int64, count int) ([]core.Track, error) {
	if count > maxPageSize {
		count = maxPageSize
	}
	endpoint := fmt.Sprintf("%s/track/%d/similar?limit=%d", c.baseURL, id, count)
	return c.fetchTrackList(ctx, endpoint)
}

// GetRadio returns the broad-rotation radio feed seeded by a track id,
// capped to the provider's maximum page size.
func (c *Client) GetRadio(ctx context.Context, id int64, limit int) ([]core.Track, error) {
	if limit <= 0 || limit > maxPageSize {
		limit = maxPageSize
	}
	endpoint := fmt.Sprintf("%s/track/%d/radio?limit=%d", c.baseURL, id, limit)
	return c.fetchTrackList(ctx, endpoint)
}

func (c *Client) fetchTrackList(ctx context.Context, endpoint string) ([]core.Track, error) {
	body, err := c.get(ctx, endpoint)
	if err != nil {
		return nil, err
	}

	var payload listPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decode track list: %w", err)
	}
	if payload.Error != nil {
		return nil, fmt.Errorf("catalog error: %s", payload.Error.Message)
	}

	tracks := make([]core.Track, 0, len(payload.Data))
	for _, p := range payload.Data {
		// Records without an id cannot participate in dedup or exclusion
		// logic, so partial records missing it are dropped.
		if p.ID == 0 {
			continue
		}
		tracks = append(tracks, p.toTrack())
	}
	return tracks, nil
}

func (c *Client) get(ctx context.Context, endpoint string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("catalog request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("catalog returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return body, nil
}
