package embed

import (
	"context"
	"fmt"

	"github.com/corvid-labs/hindsight/internal/config"
	"github.com/corvid-labs/hindsight/internal/core"
	"github.com/corvid-labs/hindsight/pkg/log"
)

func NewEmbedder(ctx context.Context, cfg *config.EmbeddingConfig) (core.Embedder, error) {
	log.FromCtx(ctx).Info().
		Str("provider", cfg.Provider).
		Str("model", cfg.Model).
		Int("dimensions", cfg.Dimensions).
		Msg("starting embedding provider")

	switch cfg.Provider {
	case "openai":
		return NewOpenAI(OpenAIConfig{
			BaseURL:    cfg.BaseURL,
			APIKey:     cfg.APIKey,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
		}), nil
	case "mock":
		return NewMock(cfg.Dimensions), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s", cfg.Provider)
	}
}
