package config

import (
	"context"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/corvid-labs/hindsight/pkg/log"
)

type MemoryConfig struct {
	// RecentTurns is how many recent transcript turns feed the prompt.
	RecentTurns int `env:"HINDSIGHT_RECENT_TURNS" envDefault:"10"`

	// SemanticK is the number of nearest fragments requested per turn.
	SemanticK int `env:"HINDSIGHT_SEMANTIC_K" envDefault:"6"`

	// ImportanceThreshold drops extracted candidates scoring below it.
	// Tunable policy, not a load-bearing contract.
	ImportanceThreshold float64 `env:"HINDSIGHT_IMPORTANCE_THRESHOLD" envDefault:"0.5"`

	// ContextBudget bounds the fused prompt, in tokens.
	ContextBudget int `env:"HINDSIGHT_CONTEXT_BUDGET" envDefault:"3000"`

	// RetrievalTimeout bounds each best-effort retrieval branch.
	RetrievalTimeout time.Duration `env:"HINDSIGHT_RETRIEVAL_TIMEOUT" envDefault:"3s"`

	// GenerationTimeout bounds a single primary-model attempt.
	GenerationTimeout time.Duration `env:"HINDSIGHT_GENERATION_TIMEOUT" envDefault:"60s"`

	// MemorizeTimeout bounds the detached memorization pass.
	MemorizeTimeout time.Duration `env:"HINDSIGHT_MEMORIZE_TIMEOUT" envDefault:"2m"`

	// GenerationRetries is the number of retries after the first failed
	// primary-model attempt.
	GenerationRetries int `env:"HINDSIGHT_GENERATION_RETRIES" envDefault:"2"`
}

func NewMemoryConfig(ctx context.Context) *MemoryConfig {
	c := &MemoryConfig{}
	if err := env.Parse(c); err != nil {
		log.FromCtx(ctx).Fatal().Err(err).Msg("failed to parse Memory config")
	}
	return c
}
