// Package chat implements the conversational support agent.
//
// The agent runs an explicit tool-calling loop: each model turn may request
// tools, the agent dispatches them against the registered catalog, feeds the
// results back, and repeats until the model produces a final text answer or
// the round ceiling is hit. Conversation state lives in the session store,
// keyed by session UUID.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/AmolNarang/orderassistant/internal/session"
)

const (
	// fallbackResponseMessage is returned when the model produces an empty
	// final response.
	fallbackResponseMessage = "I apologize, but I couldn't generate a response. Please try rephrasing your question."

	// toolFailureMessage is returned when a tool invocation fails at the
	// infrastructure level. Expected failures stay inside tool envelopes
	// and never reach this path.
	toolFailureMessage = "I ran into a problem while looking that up. Please try again in a moment."

	// toolBudgetMessage is returned when the model keeps requesting tools
	// past the round ceiling.
	toolBudgetMessage = "I wasn't able to finish working on that request. Could you try asking in a simpler way?"
)

// ModelCaller makes a single model turn. The production implementation is
// genkit-backed; tests supply a scripted caller.
type ModelCaller interface {
	Call(ctx context.Context, messages []*ai.Message, tools []ai.ToolRef) (*ai.ModelResponse, error)
}

// SessionStore is the subset of session persistence the agent needs.
type SessionStore interface {
	GetOrCreate(ctx context.Context, id uuid.UUID) (bool, error)
	History(ctx context.Context, id uuid.UUID, limit int32) ([]*session.Message, error)
	AppendMessages(ctx context.Context, id uuid.UUID, messages []*session.Message) error
}

// Response is the result of one agent turn.
type Response struct {
	FinalText  string // Model's final text output
	ToolRounds int    // Number of tool dispatch rounds this turn
}

// Config contains all required parameters for the Agent.
type Config struct {
	Genkit   *genkit.Genkit
	Sessions SessionStore
	Logger   *slog.Logger
	Tools    []ai.Tool // Pre-registered tools from RegisterXxx()

	ModelName   string  // Provider-qualified model name (e.g., "googleai/gemini-2.5-flash")
	Temperature float64 // Sampling temperature (0 = provider default)

	MaxToolRounds      int   // Tool dispatch rounds per turn before giving up
	MaxHistoryMessages int32 // History messages loaded per turn

	RetryConfig          RetryConfig          // Model retry settings (zero-value uses defaults)
	CircuitBreakerConfig CircuitBreakerConfig // Circuit breaker settings (zero-value uses defaults)
	RateLimiter          *rate.Limiter        // Optional: proactive rate limiting (nil = use default)

	// Caller overrides the genkit-backed model caller. Tests only.
	Caller ModelCaller
}

func (cfg Config) validate() error {
	if cfg.Genkit == nil {
		return errors.New("genkit instance is required")
	}
	if cfg.Sessions == nil {
		return errors.New("session store is required")
	}
	if len(cfg.Tools) == 0 {
		return errors.New("at least one tool is required")
	}
	if cfg.Caller == nil && cfg.ModelName == "" {
		return errors.New("model name is required")
	}
	return nil
}

// Agent is the customer support conversational agent.
//
// Agent is stateless across turns; all conversation state lives in the
// session store. Configuration is captured immutably at construction so
// concurrent Execute calls are safe.
type Agent struct {
	modelName          string
	maxToolRounds      int
	maxHistoryMessages int32

	retryConfig    RetryConfig
	circuitBreaker *CircuitBreaker
	rateLimiter    *rate.Limiter

	caller      ModelCaller
	sessions    SessionStore
	logger      *slog.Logger
	toolsByName map[string]ai.Tool
	toolRefs    []ai.ToolRef
	toolNames   string
}

// New creates an Agent from cfg.
func New(cfg Config) (*Agent, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	maxToolRounds := cfg.MaxToolRounds
	if maxToolRounds <= 0 {
		maxToolRounds = 5
	}
	maxHistory := cfg.MaxHistoryMessages
	if maxHistory <= 0 {
		maxHistory = 100
	}

	retryConfig := cfg.RetryConfig
	if retryConfig.MaxRetries == 0 {
		retryConfig = DefaultRetryConfig()
	}
	cbConfig := cfg.CircuitBreakerConfig
	if cbConfig.FailureThreshold == 0 {
		cbConfig = DefaultCircuitBreakerConfig()
	}

	rl := cfg.RateLimiter
	if rl == nil {
		rl = rate.NewLimiter(10, 30)
	}

	toolRefs := make([]ai.ToolRef, len(cfg.Tools))
	toolsByName := make(map[string]ai.Tool, len(cfg.Tools))
	names := make([]string, len(cfg.Tools))
	for i, t := range cfg.Tools {
		toolRefs[i] = t
		toolsByName[t.Name()] = t
		names[i] = t.Name()
	}

	caller := cfg.Caller
	if caller == nil {
		caller = &genkitCaller{
			g:           cfg.Genkit,
			modelName:   cfg.ModelName,
			temperature: cfg.Temperature,
		}
	}

	a := &Agent{
		modelName:          cfg.ModelName,
		maxToolRounds:      maxToolRounds,
		maxHistoryMessages: maxHistory,
		retryConfig:        retryConfig,
		circuitBreaker:     NewCircuitBreaker(cbConfig),
		rateLimiter:        rl,
		caller:             caller,
		sessions:           cfg.Sessions,
		logger:             logger,
		toolsByName:        toolsByName,
		toolRefs:           toolRefs,
		toolNames:          strings.Join(names, ", "),
	}

	a.logger.Info("chat agent initialized",
		"tools", a.toolNames,
		"maxToolRounds", a.maxToolRounds,
	)
	return a, nil
}

// Execute runs one turn of the conversation. customerEmail, when non-empty,
// is prepended to the user message as an identity annotation so tools can
// verify ownership without re-asking.
//
// Expected tool-level failures are relayed in FinalText with a nil error;
// a non-nil error means the turn could not run at all.
func (a *Agent) Execute(ctx context.Context, sessionID uuid.UUID, input, customerEmail string) (*Response, error) {
	if strings.TrimSpace(input) == "" {
		return nil, errors.New("input is empty")
	}

	if _, err := a.sessions.GetOrCreate(ctx, sessionID); err != nil {
		return nil, fmt.Errorf("ensuring session: %w", err)
	}

	history, err := a.sessions.History(ctx, sessionID, a.maxHistoryMessages)
	if err != nil {
		return nil, fmt.Errorf("loading history: %w", err)
	}

	// Genkit mutates message content in-place during rendering, so history
	// shared with other goroutines must be copied.
	messages := make([]*ai.Message, 0, len(history)+2)
	persistedCount := len(history)
	if persistedCount == 0 {
		messages = append(messages, ai.NewSystemTextMessage(systemPrompt))
	}
	for _, m := range history {
		messages = append(messages, &ai.Message{Role: ai.Role(m.Role), Content: m.Content})
	}
	messages = deepCopyMessages(messages)
	messages = append(messages, ai.NewUserTextMessage(annotateWithEmail(input, customerEmail)))

	a.logger.Debug("executing turn",
		"session_id", sessionID,
		"history_messages", persistedCount,
		"annotated", customerEmail != "",
	)

	finalText := ""
	rounds := 0
	for {
		if err := a.circuitBreaker.Allow(); err != nil {
			a.logger.Warn("circuit breaker open, rejecting request",
				"state", a.circuitBreaker.State().String())
			return nil, fmt.Errorf("service unavailable: %w", err)
		}

		resp, err := a.callWithRetry(ctx, messages)
		if err != nil {
			a.circuitBreaker.Failure()
			return nil, err
		}
		a.circuitBreaker.Success()

		requests := resp.ToolRequests()
		if len(requests) == 0 {
			finalText = strings.TrimSpace(resp.Text())
			messages = resp.History()
			if finalText == "" {
				a.logger.Warn("model returned empty response", "session_id", sessionID)
				finalText = fallbackResponseMessage
				messages = append(messages, ai.NewModelTextMessage(finalText))
			}
			break
		}

		if rounds >= a.maxToolRounds {
			a.logger.Warn("tool round ceiling reached",
				"session_id", sessionID, "rounds", rounds)
			finalText = toolBudgetMessage
			// The dangling tool requests are dropped so the persisted
			// history stays well-formed for the next turn.
			messages = append(messages, ai.NewModelTextMessage(finalText))
			break
		}

		messages = resp.History()
		parts := make([]*ai.Part, 0, len(requests))
		for _, req := range requests {
			// Dispatch only within this agent's catalog; tools registered
			// elsewhere in the process stay unreachable here.
			tool, ok := a.toolsByName[req.Name]
			if !ok {
				a.logger.Error("model requested tool outside catalog",
					"session_id", sessionID, "tool", req.Name)
				return &Response{FinalText: toolFailureMessage, ToolRounds: rounds}, nil
			}

			out, err := tool.RunRaw(ctx, req.Input)
			if err != nil {
				a.logger.Error("tool execution failed",
					"session_id", sessionID, "tool", req.Name, "error", err)
				return &Response{FinalText: toolFailureMessage, ToolRounds: rounds}, nil
			}

			parts = append(parts, ai.NewToolResponsePart(&ai.ToolResponse{
				Name:   req.Name,
				Ref:    req.Ref,
				Output: out,
			}))
		}
		messages = append(messages, ai.NewMessage(ai.RoleTool, nil, parts...))
		rounds++
	}

	a.persistTurn(ctx, sessionID, messages, persistedCount)

	return &Response{FinalText: finalText, ToolRounds: rounds}, nil
}

// persistTurn appends this turn's new messages (everything past what was
// already persisted) to the session. Best-effort: failures are logged, the
// response still goes out.
func (a *Agent) persistTurn(ctx context.Context, sessionID uuid.UUID, messages []*ai.Message, persistedCount int) {
	if len(messages) <= persistedCount {
		return
	}

	newMessages := make([]*session.Message, 0, len(messages)-persistedCount)
	for _, m := range messages[persistedCount:] {
		newMessages = append(newMessages, &session.Message{
			Role:    string(m.Role),
			Content: m.Content,
		})
	}
	if err := a.sessions.AppendMessages(ctx, sessionID, newMessages); err != nil {
		a.logger.Warn("appending messages to session",
			"session_id", sessionID, "error", err)
	}
}

// genkitCaller is the production ModelCaller. Tool requests are returned to
// the agent loop rather than auto-dispatched by genkit.
type genkitCaller struct {
	g           *genkit.Genkit
	modelName   string
	temperature float64
}

func (c *genkitCaller) Call(ctx context.Context, messages []*ai.Message, tools []ai.ToolRef) (*ai.ModelResponse, error) {
	opts := []ai.GenerateOption{
		ai.WithModelName(c.modelName),
		ai.WithMessages(messages...),
		ai.WithTools(tools...),
		ai.WithReturnToolRequests(true),
	}
	if c.temperature > 0 {
		opts = append(opts, ai.WithConfig(&ai.GenerationCommonConfig{
			Temperature: c.temperature,
		}))
	}
	return genkit.Generate(ctx, c.g, opts...)
}

// deepCopyMessages creates independent copies of Message and Part structs.
// Genkit's renderMessages() modifies msg.Content in-place, so messages
// shared across concurrent executions must not alias.
func deepCopyMessages(msgs []*ai.Message) []*ai.Message {
	if msgs == nil {
		return nil
	}
	copied := make([]*ai.Message, len(msgs))
	for i, msg := range msgs {
		parts := make([]*ai.Part, len(msg.Content))
		for j, part := range msg.Content {
			parts[j] = deepCopyPart(part)
		}
		copied[i] = &ai.Message{
			Role:     msg.Role,
			Content:  parts,
			Metadata: shallowCopyMap(msg.Metadata),
		}
	}
	return copied
}

// deepCopyPart copies an ai.Part. ToolRequest.Input and ToolResponse.Output
// are copied by reference; genkit only mutates the content slice itself.
func deepCopyPart(p *ai.Part) *ai.Part {
	if p == nil {
		return nil
	}
	cp := &ai.Part{
		Kind:        p.Kind,
		ContentType: p.ContentType,
		Text:        p.Text,
		Custom:      shallowCopyMap(p.Custom),
		Metadata:    shallowCopyMap(p.Metadata),
	}
	if p.ToolRequest != nil {
		cp.ToolRequest = &ai.ToolRequest{
			Input: p.ToolRequest.Input,
			Name:  p.ToolRequest.Name,
			Ref:   p.ToolRequest.Ref,
		}
	}
	if p.ToolResponse != nil {
		cp.ToolResponse = &ai.ToolResponse{
			Name:   p.ToolResponse.Name,
			Output: p.ToolResponse.Output,
			Ref:    p.ToolResponse.Ref,
		}
	}
	return cp
}

func shallowCopyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	cp := make(map[string]any, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return cp
}
