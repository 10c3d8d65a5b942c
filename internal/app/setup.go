package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/googlegenai"
	"github.com/firebase/genkit/go/plugins/ollama"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/AmolNarang/orderassistant/db"
	"github.com/AmolNarang/orderassistant/internal/analytics"
	"github.com/AmolNarang/orderassistant/internal/chat"
	"github.com/AmolNarang/orderassistant/internal/config"
	"github.com/AmolNarang/orderassistant/internal/knowledge"
	"github.com/AmolNarang/orderassistant/internal/session"
	"github.com/AmolNarang/orderassistant/internal/store"
	"github.com/AmolNarang/orderassistant/internal/tools"
)

// Setup creates and initializes the application.
// Returns an App with embedded cleanup — call Close() to release.
func Setup(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *App, retErr error) {
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{Config: cfg, Logger: logger}

	// On error, clean up everything already initialized.
	defer func() {
		if retErr != nil {
			if err := a.Close(); err != nil {
				logger.Warn("cleanup during setup failure", "error", err)
			}
		}
	}()

	pool, err := provideDBPool(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.DBPool = pool

	g, err := provideGenkit(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.Genkit = g

	embedder := provideEmbedder(g, cfg)
	if embedder == nil {
		return nil, fmt.Errorf("embedder %q not found for provider %q", cfg.EmbedderModel, cfg.Provider)
	}
	a.Embedder = embedder

	a.Store = store.New(pool, logger)
	a.Sessions = session.New(pool, logger)

	a.Knowledge = knowledge.New(pool, embedder, logger)
	if err := a.Knowledge.Ensure(ctx); err != nil {
		return nil, fmt.Errorf("building knowledge index: %w", err)
	}

	baseTools, analyticsTools, err := provideTools(a)
	if err != nil {
		return nil, err
	}

	modelName := qualifiedModelName(cfg.Provider, cfg.ModelName)
	a.Agent, err = provideAgent(a, modelName, baseTools)
	if err != nil {
		return nil, fmt.Errorf("creating agent: %w", err)
	}
	allTools := make([]ai.Tool, 0, len(baseTools)+len(analyticsTools))
	allTools = append(allTools, baseTools...)
	allTools = append(allTools, analyticsTools...)
	a.AnalyticsAgent, err = provideAgent(a, modelName, allTools)
	if err != nil {
		return nil, fmt.Errorf("creating analytics agent: %w", err)
	}

	_, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	return a, nil
}

// provideDBPool runs migrations and creates the PostgreSQL connection pool.
func provideDBPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	if err := db.Migrate(cfg.PostgresURL()); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.PostgresConnectionString())
	if err != nil {
		return nil, fmt.Errorf("parsing connection config: %w", err)
	}

	poolCfg.MaxConns = 10
	poolCfg.MinConns = 2
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute
	poolCfg.HealthCheckPeriod = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
	defer pingCancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return pool, nil
}

// provideGenkit initializes Genkit with the configured AI provider.
// Supports gemini (default) and ollama.
func provideGenkit(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*genkit.Genkit, error) {
	var g *genkit.Genkit

	switch cfg.Provider {
	case config.ProviderOllama:
		ollamaPlugin := &ollama.Ollama{ServerAddress: cfg.OllamaHost}
		g = genkit.Init(ctx, genkit.WithPlugins(ollamaPlugin))
		if g == nil {
			return nil, errors.New("initializing genkit with ollama provider")
		}
		// Ollama requires explicit model registration (no auto-discovery).
		ollamaPlugin.DefineModel(g, ollama.ModelDefinition{
			Name: cfg.ModelName,
			Type: "chat",
		}, nil)
		ollamaPlugin.DefineEmbedder(g, cfg.OllamaHost, cfg.EmbedderModel, nil)
		logger.Info("initialized genkit with ollama provider",
			"model", cfg.ModelName, "host", cfg.OllamaHost)

	default: // gemini
		g = genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{}))
		if g == nil {
			return nil, errors.New("initializing genkit with gemini provider")
		}
		logger.Info("initialized genkit with gemini provider", "model", cfg.ModelName)
	}

	return g, nil
}

// provideEmbedder looks up the embedder registered by the provider plugin.
func provideEmbedder(g *genkit.Genkit, cfg *config.Config) ai.Embedder {
	switch cfg.Provider {
	case config.ProviderOllama:
		// Ollama embedders are keyed by server address (registered in provideGenkit).
		return ollama.Embedder(g, cfg.OllamaHost)
	default:
		return googlegenai.GoogleAIEmbedder(g, cfg.EmbedderModel)
	}
}

// provideTools builds and registers the tool catalogs. The analytics tool is
// returned separately so requests can opt in per turn.
func provideTools(a *App) (base, extra []ai.Tool, err error) {
	ot, err := tools.NewOrders(a.Store, a.Logger)
	if err != nil {
		return nil, nil, fmt.Errorf("creating order tools: %w", err)
	}
	orderTools, err := tools.RegisterOrders(a.Genkit, ot)
	if err != nil {
		return nil, nil, fmt.Errorf("registering order tools: %w", err)
	}
	base = append(base, orderTools...)

	kt, err := tools.NewKnowledge(a.Knowledge, a.Logger)
	if err != nil {
		return nil, nil, fmt.Errorf("creating knowledge tools: %w", err)
	}
	knowledgeTools, err := tools.RegisterKnowledge(a.Genkit, kt)
	if err != nil {
		return nil, nil, fmt.Errorf("registering knowledge tools: %w", err)
	}
	base = append(base, knowledgeTools...)

	synth := analytics.New(&genkitTextGenerator{
		g:         a.Genkit,
		modelName: qualifiedModelName(a.Config.Provider, a.Config.ModelName),
	}, a.Store, a.Logger)
	at, err := tools.NewAnalytics(synth, a.Logger)
	if err != nil {
		return nil, nil, fmt.Errorf("creating analytics tools: %w", err)
	}
	analyticsTools, err := tools.RegisterAnalytics(a.Genkit, at)
	if err != nil {
		return nil, nil, fmt.Errorf("registering analytics tools: %w", err)
	}

	a.Logger.Info("tools registered", "base", len(base), "analytics", len(analyticsTools))
	return base, analyticsTools, nil
}

func provideAgent(a *App, modelName string, agentTools []ai.Tool) (*chat.Agent, error) {
	return chat.New(chat.Config{
		Genkit:             a.Genkit,
		Sessions:           a.Sessions,
		Logger:             a.Logger,
		Tools:              agentTools,
		ModelName:          modelName,
		Temperature:        float64(a.Config.Temperature),
		MaxToolRounds:      a.Config.MaxToolRounds,
		MaxHistoryMessages: a.Config.MaxHistoryMessages,
	})
}

// qualifiedModelName prefixes the provider namespace when the configured
// name is bare (e.g. "gemini-2.5-flash" -> "googleai/gemini-2.5-flash").
func qualifiedModelName(provider, name string) string {
	if strings.Contains(name, "/") {
		return name
	}
	switch provider {
	case config.ProviderOllama:
		return "ollama/" + name
	default:
		return "googleai/" + name
	}
}

// genkitTextGenerator adapts genkit.Generate to the analytics TextGenerator
// interface. SQL generation runs at temperature zero for determinism.
type genkitTextGenerator struct {
	g         *genkit.Genkit
	modelName string
}

func (t *genkitTextGenerator) GenerateText(ctx context.Context, prompt string) (string, error) {
	resp, err := genkit.Generate(ctx, t.g,
		ai.WithModelName(t.modelName),
		ai.WithPrompt(prompt),
		ai.WithConfig(&ai.GenerationCommonConfig{Temperature: 0}),
	)
	if err != nil {
		return "", err
	}
	return resp.Text(), nil
}
