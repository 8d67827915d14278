package config

import (
	"context"
	"path/filepath"

	"github.com/caarlos0/env/v11"
	"github.com/corvid-labs/hindsight/pkg/log"
)

type AppConfig struct {
	RuntimePath string `env:"HINDSIGHT_RUNTIME_PATH" envDefault:".hindsight"`

	// DatabaseURL switches the transcript store to Postgres when set;
	// the embedded SQLite store is used otherwise.
	DatabaseURL string `env:"HINDSIGHT_DATABASE_URL"`

	// Timezone anchors natural-language date resolution ("yesterday").
	Timezone string `env:"HINDSIGHT_TIMEZONE" envDefault:"UTC"`
}

func NewAppConfig(ctx context.Context) *AppConfig {
	c := &AppConfig{}
	if err := env.Parse(c); err != nil {
		log.FromCtx(ctx).Fatal().Err(err).Msg("failed to parse App config")
	}
	return c
}

func (c AppConfig) GetRuntimePath() string {
	return c.RuntimePath
}

func (c AppConfig) GetDatabasePath() string {
	return filepath.Join(c.RuntimePath, "hindsight.db")
}

func (c AppConfig) GetSemanticStorePath() string {
	return filepath.Join(c.RuntimePath, "semantic")
}

func (c AppConfig) GetSystemPromptPath() string {
	return filepath.Join(c.RuntimePath, "SYSTEM.md")
}
