package main

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"

	"github.com/corvid-labs/hindsight/internal/config"
	"github.com/corvid-labs/hindsight/internal/core"
	"github.com/corvid-labs/hindsight/internal/httpapi"
	"github.com/corvid-labs/hindsight/internal/observability"
	"github.com/corvid-labs/hindsight/internal/providers/embed"
	"github.com/corvid-labs/hindsight/internal/providers/llm"
	"github.com/corvid-labs/hindsight/internal/service/composer"
	"github.com/corvid-labs/hindsight/internal/service/memorize"
	"github.com/corvid-labs/hindsight/internal/service/orchestrator"
	"github.com/corvid-labs/hindsight/internal/service/temporal"
	"github.com/corvid-labs/hindsight/internal/storage/chromem"
	"github.com/corvid-labs/hindsight/internal/storage/postgres"
	"github.com/corvid-labs/hindsight/internal/storage/sqlite"
	"github.com/corvid-labs/hindsight/pkg/log"
	"github.com/corvid-labs/hindsight/pkg/srv"
)

const defaultSystemPrompt = "You are " + core.Name + ", a conversational assistant with long-term memory. Use the recalled facts and history when they are relevant; never invent memories."

func NewServices(ctx context.Context) []srv.Service {
	orch, _, serverCfg, services := NewCore(ctx)
	return append(services, httpapi.New(serverCfg, orch))
}

// NewCore builds everything below the transport layer: configuration,
// stores, providers, agents and the orchestrator. The returned services are
// cleanups that must run on shutdown.
func NewCore(ctx context.Context) (*orchestrator.Orchestrator, *config.AppConfig, *config.ServerConfig, []srv.Service) {
	logger := log.FromCtx(ctx)
	services := make([]srv.Service, 0)

	// init env
	if err := initEnv(ctx, config.GetRuntimePath()); err != nil {
		logger.Fatal().Err(err).Msg("failed to init env")
	}

	// 1. Configuration
	appCfg := config.NewAppConfig(ctx)
	providerCfg := config.NewProviderConfig(ctx)
	memoryCfg := config.NewMemoryConfig(ctx)
	embeddingCfg := config.NewEmbeddingConfig(ctx)
	serverCfg := config.NewServerConfig(ctx)

	loc, err := time.LoadLocation(appCfg.Timezone)
	if err != nil {
		logger.Fatal().Err(err).Str("tz", appCfg.Timezone).Msg("invalid timezone")
	}

	// 2. Storage
	transcripts, closeStore, err := initTranscripts(ctx, appCfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize transcript store")
	}
	services = append(services, srv.NewCleanup(closeStore))

	semantic, err := chromem.New(appCfg.GetSemanticStorePath())
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize semantic store")
	}

	// 3. Providers
	primary, err := llm.NewPrimary(ctx, providerCfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize primary model")
	}

	agentModel, err := llm.NewAgent(ctx, providerCfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize agent model")
	}

	embedder, err := embed.NewEmbedder(ctx, embeddingCfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize embedder")
	}

	// 4. Agents
	temporalAgent := temporal.NewAgent(agentModel, loc, memoryCfg.RetrievalTimeout)
	memorizer := memorize.NewAgent(agentModel, embedder, semantic, memoryCfg.ImportanceThreshold, memoryCfg.MemorizeTimeout)

	// 5. Orchestrator
	metrics := observability.NewMetrics(serverCfg.MetricsNamespace)

	orch := orchestrator.New(
		transcripts,
		semantic,
		embedder,
		primary,
		temporalAgent,
		memorizer,
		composer.New(memoryCfg.ContextBudget),
		loadSystemPrompt(appCfg),
		memoryCfg,
		metrics,
	)

	return orch, appCfg, serverCfg, services
}

func initTranscripts(ctx context.Context, cfg *config.AppConfig) (core.TranscriptStore, func() error, error) {
	if cfg.DatabaseURL != "" {
		store, err := postgres.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	}

	db, err := sqlite.NewDB(ctx, cfg.GetDatabasePath())
	if err != nil {
		return nil, nil, err
	}
	return sqlite.NewTranscriptRepo(db), db.Close, nil
}

func loadSystemPrompt(cfg *config.AppConfig) string {
	content, err := os.ReadFile(cfg.GetSystemPromptPath())
	if err != nil || len(content) == 0 {
		return defaultSystemPrompt
	}
	return string(content)
}

func initEnv(ctx context.Context, runtimePath string) error {
	logger := log.FromCtx(ctx)
	envFile := filepath.Join(runtimePath, ".env")

	if _, err := os.Stat(envFile); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	if err := godotenv.Load(envFile); err != nil {
		logger.Warn().Err(err).Str("path", envFile).Msg("failed to load .env file")
		return err
	}

	logger.Debug().Str("path", envFile).Msg("loaded .env file")
	return nil
}
