package llm

import (
	"context"
	"fmt"

	"github.com/corvid-labs/hindsight/internal/config"
	"github.com/corvid-labs/hindsight/internal/core"
	"github.com/corvid-labs/hindsight/pkg/log"
)

// Temperatures are role-specific: the primary model answers conversationally,
// the agents emit structured output and want near-deterministic sampling.
const (
	primaryTemperature = 0.7
	agentTemperature   = 0.05
)

// NewPrimary creates the Completer that generates user-visible responses.
func NewPrimary(ctx context.Context, cfg *config.ProviderConfig) (core.Completer, error) {
	log.FromCtx(ctx).Info().
		Str("provider", cfg.Provider).
		Str("model", cfg.Model).
		Msg("starting primary llm provider")

	return newCompleter(cfg, cfg.Model, primaryTemperature)
}

// NewAgent creates the structured-output Completer shared by the temporal and
// memorization agents.
func NewAgent(ctx context.Context, cfg *config.ProviderConfig) (core.Completer, error) {
	log.FromCtx(ctx).Info().
		Str("provider", cfg.Provider).
		Str("model", cfg.AgentModel).
		Msg("starting agent llm provider")

	return newCompleter(cfg, cfg.AgentModel, agentTemperature)
}

func newCompleter(cfg *config.ProviderConfig, model string, temperature float64) (core.Completer, error) {
	switch cfg.Provider {
	case "openai":
		return NewOpenAI(cfg.OpenAIAPIKey, model, temperature), nil
	case "openrouter":
		return NewOpenRouter(cfg.OpenRouterAPIKey, model, temperature), nil
	case "ollama":
		return NewOllama(cfg.OllamaBaseURL, cfg.OllamaAPIKey, model, temperature), nil
	case "custom":
		return NewOpenAICompatible(OpenAICompatibleConfig{
			BaseURL:     cfg.CustomBaseURL,
			APIKey:      cfg.CustomAPIKey,
			Model:       model,
			AuthHeader:  "Authorization",
			AuthPrefix:  "Bearer ",
			Temperature: temperature,
		}), nil
	default:
		return nil, fmt.Errorf("unknown llm provider: %s", cfg.Provider)
	}
}
