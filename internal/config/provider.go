package config

import (
	"context"

	"github.com/caarlos0/env/v11"
	"github.com/corvid-labs/hindsight/pkg/log"
)

type ProviderConfig struct {
	Provider string `env:"LLM_PROVIDER" envDefault:"openai"`

	// Model drives the primary (response-generating) completions.
	// AgentModel drives the temporal and memorization agents; a smaller,
	// cheaper model is usually enough there.
	Model      string `env:"LLM_MODEL" envDefault:"gpt-4o"`
	AgentModel string `env:"LLM_AGENT_MODEL" envDefault:"gpt-4o-mini"`

	OpenAIAPIKey     string `env:"OPENAI_API_KEY"`
	OpenRouterAPIKey string `env:"OPENROUTER_API_KEY"`

	OllamaBaseURL string `env:"OLLAMA_BASE_URL" envDefault:"http://localhost:11434"`
	OllamaAPIKey  string `env:"OLLAMA_API_KEY"`

	CustomBaseURL string `env:"CUSTOM_OPENAI_BASE_URL"`
	CustomAPIKey  string `env:"CUSTOM_OPENAI_API_KEY"`
}

func NewProviderConfig(ctx context.Context) *ProviderConfig {
	c := &ProviderConfig{}
	if err := env.Parse(c); err != nil {
		log.FromCtx(ctx).Fatal().Err(err).Msg("failed to parse Provider config")
	}
	return c
}
