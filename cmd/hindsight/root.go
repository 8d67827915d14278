package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/corvid-labs/hindsight/internal/config"
	"github.com/corvid-labs/hindsight/pkg/log"
)

var (
	debug bool
)

var rootCmd = &cobra.Command{
	Use:   "hindsight",
	Short: "Hindsight — a conversational memory service",
	Long:  `Hindsight is a conversational assistant core that remembers: it keeps a full transcript, extracts durable facts, and recalls both by time and by meaning.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", config.IsDebug(), "enable debug logging")
}

func setupLogger(ctx context.Context) (context.Context, func()) {
	isDebug := debug || config.IsDebug()
	return log.NewContextWithLogger(ctx, isDebug)
}
