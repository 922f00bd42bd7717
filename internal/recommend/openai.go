package recommend

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
	"go.uber.org/zap"

	"nextup/internal/core"
)

type OpenAIClient struct {
	config *core.RecommenderConfig
	logger *zap.Logger
	client *openai.Client
}

type suggestionsResponse struct {
	Suggestions []struct {
		Title     string `json:"title"`
		Artist    string `json:"artist"`
		CatalogID int64  `json:"catalog_id,omitempty"`
	} `json:"suggestions"`
}

const (
	defaultTemperature = 0.7
	maxTokens          = 1500
	defaultModel       = "gpt-4o-mini"
)

func NewOpenAIClient(config *core.RecommenderConfig, logger *zap.Logger) (*OpenAIClient, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}

	var opts []option.RequestOption
	opts = append(opts, option.WithAPIKey(config.APIKey))

	if config.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(config.BaseURL))
	}

	client := openai.NewClient(opts...)

	return &OpenAIClient{
		config: config,
		logger: logger,
		client: &client,
	}, nil
}

func (o *OpenAIClient) SuggestSimilar(ctx context.Context, seeds []core.Track, count int) ([]core.Suggestion, error) {
	prompt := buildSuggestPrompt(count)
	userMsg := formatSeeds(seeds)

	o.logger.Debug("calling OpenAI for track suggestions",
		zap.String("seeds", userMsg),
		zap.Int("count", count),
		zap.String("model", o.config.Model))

	resp, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(prompt),
			openai.UserMessage(userMsg),
		},
		Model:       o.getModel(),
		Temperature: openai.Float(defaultTemperature),
		MaxTokens:   openai.Int(maxTokens),
	})
	if err != nil {
		return nil, fmt.Errorf("OpenAI API call failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no response from OpenAI")
	}

	content := resp.Choices[0].Message.Content

	suggestions, err := parseSuggestions(content)
	if err != nil {
		o.logger.Error("failed to parse OpenAI response",
			zap.Error(err),
			zap.String("content", content))
		return nil, err
	}

	o.logger.Info("OpenAI suggestions received",
		zap.Int("count", len(suggestions)))
	return suggestions, nil
}

func (o *OpenAIClient) getModel() shared.ChatModel {
	if o.config.Model != "" {
		return o.config.Model
	}
	return defaultModel
}

func parseSuggestions(content string) ([]core.Suggestion, error) {
	var response suggestionsResponse
	if err := json.Unmarshal([]byte(content), &response); err != nil {
		return nil, fmt.Errorf("failed to parse suggestions: %w", err)
	}

	suggestions := make([]core.Suggestion, 0, len(response.Suggestions))
	for _, s := range response.Suggestions {
		if strings.TrimSpace(s.Title) == "" || strings.TrimSpace(s.Artist) == "" {
			continue
		}
		suggestions = append(suggestions, core.Suggestion{
			Title:     s.Title,
			Artist:    s.Artist,
			CatalogID: s.CatalogID,
		})
	}
	return suggestions, nil
}

func formatSeeds(seeds []core.Track) string {
	parts := make([]string, 0, len(seeds))
	for _, s := range seeds {
		parts = append(parts, fmt.Sprintf("%s - %s", s.Artist.Name, s.Title))
	}
	return strings.Join(parts, "; ")
}

func buildSuggestPrompt(count int) string {
	return fmt.Sprintf(`You are a music recommendation engine. Given one or more seed tracks as "Artist - Title" pairs, suggest up to %d real songs a listener of those tracks would enjoy next.

Respond with a JSON object in this exact format:
{
  "suggestions": [
    {
      "title": "Song Title",
      "artist": "Artist Name"
    }
  ]
}

Rules:
1. Only include real, released songs
2. Never include the seed tracks themselves
3. Stay close to the seeds' genre and era, with some variety in artists
4. Order from most to least similar
5. Do not include any text outside the JSON object`, count)
}
