// Package recommend implements the primary recommendation API: an
// LLM-backed suggestion service that proposes similar tracks as loosely
// identified name/artist pairs which the source chain re-resolves against
// the catalog.
package recommend

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"nextup/internal/core"
)

type Provider struct {
	config *core.RecommenderConfig
	logger *zap.Logger
	client suggestionClient
}

type suggestionClient interface {
	SuggestSimilar(ctx context.Context, seeds []core.Track, count int) ([]core.Suggestion, error)
}

func NewProvider(config *core.RecommenderConfig, logger *zap.Logger) (*Provider, error) {
	var client suggestionClient
	var err error

	switch config.Provider {
	case "openai":
		client, err = NewOpenAIClient(config, logger)
	case "anthropic":
		client, err = NewAnthropicClient(config, logger)
	default:
		return nil, fmt.Errorf("unsupported recommendation provider: %s", config.Provider)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to create %s client: %w", config.Provider, err)
	}

	return &Provider{
		config: config,
		logger: logger,
		client: client,
	}, nil
}

// Recommend asks the provider for up to count tracks similar to the seeds.
func (p *Provider) Recommend(ctx context.Context, seeds []core.Track, count int) ([]core.Suggestion, error) {
	if len(seeds) == 0 {
		return nil, fmt.Errorf("no seed tracks provided")
	}

	suggestions, err := p.client.SuggestSimilar(ctx, seeds, count)
	if err != nil {
		return nil, err
	}

	if len(suggestions) > count {
		suggestions = suggestions[:count]
	}
	return suggestions, nil
}
