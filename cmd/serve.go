package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/AmolNarang/orderassistant/api"
	"github.com/AmolNarang/orderassistant/internal/app"
	"github.com/AmolNarang/orderassistant/internal/config"
	"github.com/AmolNarang/orderassistant/internal/log"
)

// runServe initializes the application and starts the HTTP API server.
// Blocks until SIGINT or SIGTERM.
func runServe(logger log.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}
	if err := checkRequiredEnv(cfg); err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger.Info("starting order assistant", "version", AppVersion)

	a, err := app.Setup(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			logger.Warn("shutdown error", "error", closeErr)
		}
	}()

	server := api.NewServer(a.DBPool, func(enableAnalytics bool) api.ChatExecutor {
		return a.AgentFor(enableAnalytics)
	}, a.Store, logger)

	return server.Run(ctx, cfg.ListenAddr)
}

// checkRequiredEnv verifies provider credentials before the first model call
// would fail with a confusing error.
func checkRequiredEnv(cfg *config.Config) error {
	if cfg.Provider == config.ProviderGemini && os.Getenv("GEMINI_API_KEY") == "" {
		fmt.Fprintln(os.Stderr, "Error: GEMINI_API_KEY environment variable not set")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "The gemini provider requires an API key.")
		fmt.Fprintln(os.Stderr, "  export GEMINI_API_KEY=your-api-key")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Get your API key at: https://ai.google.dev/")
		return fmt.Errorf("GEMINI_API_KEY not set")
	}
	return nil
}
