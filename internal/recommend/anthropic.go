package recommend

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.uber.org/zap"

	"nextup/internal/core"
)

type AnthropicClient struct {
	config *core.RecommenderConfig
	logger *zap.Logger
	client *anthropic.Client
}

func NewAnthropicClient(config *core.RecommenderConfig, logger *zap.Logger) (*AnthropicClient, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("Anthropic API key is required")
	}

	var opts []option.RequestOption
	opts = append(opts, option.WithAPIKey(config.APIKey))

	if config.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(config.BaseURL))
	}

	client := anthropic.NewClient(opts...)

	return &AnthropicClient{
		config: config,
		logger: logger,
		client: &client,
	}, nil
}

func (a *AnthropicClient) SuggestSimilar(ctx context.Context, seeds []core.Track, count int) ([]core.Suggestion, error) {
	systemPrompt := buildSuggestPrompt(count)
	userPrompt := fmt.Sprintf("Seed tracks: %s", formatSeeds(seeds))

	model := a.config.Model
	if model == "" {
		model = "claude-3-5-haiku-latest"
	}

	message, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: maxTokens,
		System: []anthropic.TextBlockParam{{
			Type: "text",
			Text: systemPrompt,
		}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userPrompt)),
		},
		Temperature: anthropic.Float(defaultTemperature),
	})
	if err != nil {
		return nil, fmt.Errorf("Anthropic API call failed: %w", err)
	}

	if len(message.Content) == 0 {
		return nil, fmt.Errorf("no response from Anthropic")
	}

	content := message.Content[0].Text

	suggestions, err := parseSuggestions(content)
	if err != nil {
		a.logger.Error("failed to parse Anthropic response",
			zap.Error(err),
			zap.String("content", content))
		return nil, err
	}

	a.logger.Debug("Anthropic suggestions received",
		zap.Int("count", len(suggestions)))
	return suggestions, nil
}
