package config

import (
	"context"

	"github.com/caarlos0/env/v11"
	"github.com/corvid-labs/hindsight/pkg/log"
)

type EmbeddingConfig struct {
	Provider   string `env:"EMBEDDING_PROVIDER" envDefault:"openai"`
	Model      string `env:"EMBEDDING_MODEL" envDefault:"text-embedding-3-small"`
	Dimensions int    `env:"EMBEDDING_DIMENSIONS" envDefault:"1536"`
	BaseURL    string `env:"EMBEDDING_BASE_URL"`
	APIKey     string `env:"EMBEDDING_API_KEY"`
}

func NewEmbeddingConfig(ctx context.Context) *EmbeddingConfig {
	c := &EmbeddingConfig{}
	if err := env.Parse(c); err != nil {
		log.FromCtx(ctx).Fatal().Err(err).Msg("failed to parse Embedding config")
	}
	return c
}
