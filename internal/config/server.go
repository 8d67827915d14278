package config

import (
	"context"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/corvid-labs/hindsight/pkg/log"
)

type ServerConfig struct {
	BindAddr         string        `env:"HINDSIGHT_BIND_ADDR" envDefault:":8080"`
	ShutdownTimeout  time.Duration `env:"HINDSIGHT_SHUTDOWN_TIMEOUT" envDefault:"10s"`
	MetricsNamespace string        `env:"HINDSIGHT_METRICS_NAMESPACE" envDefault:"hindsight"`
}

func NewServerConfig(ctx context.Context) *ServerConfig {
	c := &ServerConfig{}
	if err := env.Parse(c); err != nil {
		log.FromCtx(ctx).Fatal().Err(err).Msg("failed to parse Server config")
	}
	return c
}
