package main

import (
	"log/slog"
	"os"

	"github.com/ashureev/hacxweb/internal/config"
	"github.com/ashureev/hacxweb/internal/registry"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "unknown"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "hacxweb",
		Short: "Web console for chatting with hosted language models",
		Long: `hacxweb serves a browser console that talks to OpenAI-compatible
and Gemini chat APIs. Pick a provider, paste an API key, and chat.

Quick Start:
  hacxweb                     # serve on 127.0.0.1:7860
  hacxweb --port 8080         # custom port
  hacxweb --share             # listen on all interfaces
  hacxweb providers           # list configured providers`,
		Version:       version + " (commit: " + commit + ")",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if err := godotenv.Load(); err != nil {
				slog.Debug("No .env file found, using environment variables")
			}
		},
	}
	root.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	serve := newServeCmd()
	// Bare "hacxweb" behaves like "hacxweb serve".
	root.Flags().AddFlagSet(serve.Flags())
	root.RunE = serve.RunE

	root.AddCommand(serve, newProvidersCmd(), newHealthcheckCmd())
	return root
}

func setupLogger(level slog.Level) *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)
	return logger
}

func loadRegistry(cfg *config.Config) (*registry.Registry, error) {
	if cfg.ProvidersPath == "" {
		return registry.Default()
	}
	return registry.LoadFile(cfg.ProvidersPath)
}
