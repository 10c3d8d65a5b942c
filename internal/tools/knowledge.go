package tools

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"

	"github.com/AmolNarang/orderassistant/internal/knowledge"
)

// SearchKnowledgeName is the Genkit tool name for knowledge base search.
const SearchKnowledgeName = "search_company_knowledge"

// DefaultKnowledgeTopK is the number of chunks returned per search.
const DefaultKnowledgeTopK = 3

// Retriever is the subset of knowledge store operations the search tool needs.
type Retriever interface {
	Search(ctx context.Context, query string, k int) ([]knowledge.Result, error)
}

// SearchKnowledgeInput defines input for the search_company_knowledge tool.
type SearchKnowledgeInput struct {
	Query string `json:"query" jsonschema_description:"What to search for"`
}

// Knowledge holds dependencies for the knowledge search handler.
type Knowledge struct {
	retriever Retriever
	logger    *slog.Logger
}

// NewKnowledge creates a Knowledge instance.
func NewKnowledge(retriever Retriever, logger *slog.Logger) (*Knowledge, error) {
	if retriever == nil {
		return nil, errors.New("retriever is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Knowledge{retriever: retriever, logger: logger}, nil
}

// RegisterKnowledge registers the knowledge search tool with Genkit.
func RegisterKnowledge(g *genkit.Genkit, k *Knowledge) ([]ai.Tool, error) {
	if g == nil {
		return nil, errors.New("genkit instance is required")
	}
	if k == nil {
		return nil, errors.New("Knowledge is required")
	}

	return []ai.Tool{
		genkit.DefineTool(g, SearchKnowledgeName,
			"Search company policies, FAQs, and product information. "+
				"Use this when the customer asks about return/refund policies, "+
				"shipping information, product specifications, general company "+
				"policies, or how-to questions.",
			k.SearchKnowledge),
	}, nil
}

// SearchKnowledge retrieves the chunks most relevant to the query and
// formats them as labeled context for the model.
func (k *Knowledge) SearchKnowledge(ctx *ai.ToolContext, input SearchKnowledgeInput) (string, error) {
	k.logger.Info("search_company_knowledge called", "query", input.Query)

	results, err := k.retriever.Search(ctx, input.Query, DefaultKnowledgeTopK)
	if err != nil {
		return "", fmt.Errorf("searching knowledge base: %w", err)
	}

	if len(results) == 0 {
		return "No relevant information found in company knowledge base.", nil
	}

	sections := make([]string, 0, len(results))
	for _, r := range results {
		sections = append(sections, fmt.Sprintf("**Source: %s**\n%s", r.SourceType, r.Content))
	}
	return strings.Join(sections, "\n\n"), nil
}
