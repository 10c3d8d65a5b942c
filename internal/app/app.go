// Package app provides application initialization and dependency wiring.
//
// Setup builds every component in dependency order: database pool and
// migrations, Genkit with the configured AI provider, the knowledge index,
// the tool catalog, and the chat agents. App owns the lifecycle; Close
// releases everything Setup created.
package app

import (
	"context"
	"log/slog"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/AmolNarang/orderassistant/internal/chat"
	"github.com/AmolNarang/orderassistant/internal/config"
	"github.com/AmolNarang/orderassistant/internal/knowledge"
	"github.com/AmolNarang/orderassistant/internal/session"
	"github.com/AmolNarang/orderassistant/internal/store"
)

// App is the core application container.
type App struct {
	Config *config.Config
	Logger *slog.Logger

	Genkit   *genkit.Genkit
	Embedder ai.Embedder
	DBPool   *pgxpool.Pool

	Store     *store.Store
	Knowledge *knowledge.Store
	Sessions  *session.Store

	// Agent serves the default catalog (order tools + knowledge search).
	// AnalyticsAgent additionally carries query_database; requests opt in
	// per turn.
	Agent          *chat.Agent
	AnalyticsAgent *chat.Agent

	cancel context.CancelFunc
}

// Close gracefully shuts down all resources.
func (a *App) Close() error {
	if a.Logger != nil {
		a.Logger.Info("shutting down application")
	}

	if a.cancel != nil {
		a.cancel()
	}

	if a.DBPool != nil {
		a.DBPool.Close()
	}

	return nil
}

// AgentFor returns the agent matching the per-request analytics flag.
func (a *App) AgentFor(enableAnalytics bool) *chat.Agent {
	if enableAnalytics {
		return a.AnalyticsAgent
	}
	return a.Agent
}
