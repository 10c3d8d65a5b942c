// Package cmd contains the CLI entry points for the order assistant.
//
// Following the pattern used by kubectl, hugo, and other standard Go CLI
// tools, all application logic lives here and main.go stays a minimal entry
// point.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/AmolNarang/orderassistant/internal/log"
)

// Version information (injected at build time via ldflags).
var (
	AppVersion = "0.1.0"
	BuildTime  = "unknown"
	GitCommit  = "unknown"
)

// Execute is the main entry point for the CLI. It routes to the requested
// subcommand; `serve` is the default.
func Execute() error {
	logger := initLogger()
	slog.SetDefault(logger)

	cmd := "serve"
	if len(os.Args) > 1 {
		cmd = os.Args[1]
	}

	switch cmd {
	case "serve":
		return runServe(logger)
	case "seed":
		return runSeed(logger)
	case "version", "--version", "-v":
		printVersionInfo()
		return nil
	case "help", "--help", "-h":
		printHelp()
		return nil
	default:
		printHelp()
		return fmt.Errorf("unknown command: %s", cmd)
	}
}

// initLogger initializes the structured logger. Level is controlled by the
// DEBUG environment variable; output goes to stderr.
func initLogger() log.Logger {
	cfg := log.Config{Level: slog.LevelInfo}
	if os.Getenv("DEBUG") != "" {
		cfg.Level = slog.LevelDebug
	}
	return log.New(cfg)
}

func printVersionInfo() {
	fmt.Printf("orderassistant v%s\n", AppVersion)
	fmt.Printf("Build: %s\n", BuildTime)
	fmt.Printf("Commit: %s\n", GitCommit)
}

func printHelp() {
	fmt.Println("orderassistant - AI customer support agent for an e-commerce order system")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  orderassistant serve      Start the HTTP API server (default)")
	fmt.Println("  orderassistant seed       Load demo customers, products, and orders")
	fmt.Println("  orderassistant version    Show version information")
	fmt.Println("  orderassistant help       Show this help")
	fmt.Println()
	fmt.Println("Environment Variables:")
	fmt.Println("  GEMINI_API_KEY            Required for the gemini provider")
	fmt.Println("  DATABASE_URL              Optional: overrides the postgres settings")
	fmt.Println("  DEBUG                     Optional: enable debug logging")
}
