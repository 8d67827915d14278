package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"

	"github.com/corvid-labs/hindsight/internal/config"
	"github.com/corvid-labs/hindsight/internal/core"
	"github.com/corvid-labs/hindsight/pkg/log"
)

const defaultSessionID = "cli-local"

type Orchestrator interface {
	HandleTurn(ctx context.Context, sessionID, userText string) (core.TurnResult, error)
	History(ctx context.Context, sessionID string, limit int) ([]core.Turn, error)
}

// ReadLine is an interactive chat loop over the turn pipeline, for local use
// without the HTTP surface.
type ReadLine struct {
	cfg          *config.AppConfig
	orchestrator Orchestrator
	sessionID    string
	rl           *readline.Instance
}

func NewReadLine(orchestrator Orchestrator, cfg *config.AppConfig, sessionID string) (*ReadLine, error) {
	if err := os.MkdirAll(cfg.RuntimePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create runtime directory: %w", err)
	}
	if sessionID == "" {
		sessionID = defaultSessionID
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          ">>> ",
		HistoryFile:     filepath.Join(cfg.RuntimePath, "input_history"),
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, err
	}

	return &ReadLine{
		cfg:          cfg,
		orchestrator: orchestrator,
		sessionID:    sessionID,
		rl:           rl,
	}, nil
}

func (r *ReadLine) Start(ctx context.Context) error {
	logger := log.FromCtx(ctx)
	logger.Info().Str("session", r.sessionID).Msg("chat started. Type 'exit' to quit, '/history' to review the transcript.")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line, err := r.rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) {
				if len(line) == 0 {
					return nil
				}
				continue
			} else if err == io.EOF {
				return nil
			}
			return err
		}

		line = strings.TrimSpace(line)
		if line == "exit" {
			return nil
		}
		if line == "" {
			continue
		}

		if line == "/history" {
			r.printHistory(ctx)
			continue
		}

		result, err := r.orchestrator.HandleTurn(ctx, r.sessionID, line)
		if err != nil {
			logger.Error().Err(err).Msg("turn failed")
			fmt.Fprintf(r.rl.Stdout(), "Error: %v\n", err)
			continue
		}

		fmt.Fprintf(r.rl.Stdout(), "%s\n", result.ResponseText)
	}
}

func (r *ReadLine) printHistory(ctx context.Context) {
	turns, err := r.orchestrator.History(ctx, r.sessionID, 0)
	if err != nil {
		fmt.Fprintf(r.rl.Stdout(), "Error: %v\n", err)
		return
	}
	for _, turn := range turns {
		fmt.Fprintf(r.rl.Stdout(), "[%s] %s: %s\n", turn.CreatedAt.Local().Format("2006-01-02 15:04"), turn.Role, turn.Content)
	}
}

func (r *ReadLine) Shutdown(context.Context) error {
	if r.rl != nil {
		return r.rl.Close()
	}
	return nil
}
