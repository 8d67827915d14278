package main

import (
	"context"
	"errors"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/corvid-labs/hindsight/internal/transport/cli"
	"github.com/corvid-labs/hindsight/pkg/log"
)

var chatSession string

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat with Hindsight in the terminal",
	Long:  `Runs an interactive chat session against the local stores, without starting the HTTP server.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		var flushLog func()
		ctx, flushLog = setupLogger(ctx)
		defer flushLog()

		logger := log.FromCtx(ctx)

		orch, appCfg, _, cleanups := NewCore(ctx)

		rl, err := cli.NewReadLine(orch, appCfg, chatSession)
		if err != nil {
			return err
		}

		runErr := rl.Start(ctx)

		shutdownCtx := context.WithoutCancel(ctx)
		if err := rl.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("failed to close input")
		}
		if err := orch.Drain(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("memorization passes did not finish")
		}
		for _, cleanup := range cleanups {
			if err := cleanup.Shutdown(shutdownCtx); err != nil {
				logger.Error().Err(err).Msgf("%T failed to shutdown", cleanup)
			}
		}

		if runErr != nil && !errors.Is(runErr, context.Canceled) {
			return runErr
		}
		return nil
	},
}

func init() {
	chatCmd.Flags().StringVar(&chatSession, "session", "", "session id to chat under (defaults to a local session)")
	rootCmd.AddCommand(chatCmd)
}
