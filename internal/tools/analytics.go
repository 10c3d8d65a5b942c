package tools

import (
	"context"
	"errors"
	"log/slog"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"

	"github.com/AmolNarang/orderassistant/internal/analytics"
)

// QueryDatabaseName is the Genkit tool name for analytical database queries.
const QueryDatabaseName = "query_database"

// Answerer is the subset of synthesizer operations the query tool needs.
type Answerer interface {
	Answer(ctx context.Context, question string) (*analytics.Answer, error)
}

// QueryDatabaseInput defines input for the query_database tool.
type QueryDatabaseInput struct {
	Question string `json:"question" jsonschema_description:"The analytical question to answer"`
}

// Analytics holds dependencies for the analytical query handler.
type Analytics struct {
	answerer Answerer
	logger   *slog.Logger
}

// NewAnalytics creates an Analytics instance.
func NewAnalytics(answerer Answerer, logger *slog.Logger) (*Analytics, error) {
	if answerer == nil {
		return nil, errors.New("answerer is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Analytics{answerer: answerer, logger: logger}, nil
}

// RegisterAnalytics registers the query_database tool with Genkit.
func RegisterAnalytics(g *genkit.Genkit, a *Analytics) ([]ai.Tool, error) {
	if g == nil {
		return nil, errors.New("genkit instance is required")
	}
	if a == nil {
		return nil, errors.New("Analytics is required")
	}

	return []ai.Tool{
		genkit.DefineTool(g, QueryDatabaseName,
			"Write and execute SQL queries to answer analytical questions about "+
				"orders, customers, products, and returns. Use this ONLY for "+
				"analytical questions like 'How many orders...?', 'Which customer...?', "+
				"'What's the most...?', 'Show me all...', 'List customers who...'. "+
				"DO NOT use this for individual order lookups - use get_order_status instead.",
			a.QueryDatabase),
	}, nil
}

// QueryDatabase answers an analytical question. Synthesis and execution
// failures come back in the envelope so the model can ask the customer to
// rephrase.
func (a *Analytics) QueryDatabase(ctx *ai.ToolContext, input QueryDatabaseInput) (analytics.Answer, error) {
	a.logger.Info("query_database called", "question", input.Question)

	answer, err := a.answerer.Answer(ctx, input.Question)
	if err != nil {
		return analytics.Answer{}, err
	}
	return *answer, nil
}
