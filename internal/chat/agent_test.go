package chat

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AmolNarang/orderassistant/internal/log"
	"github.com/AmolNarang/orderassistant/internal/session"
)

// scriptedReply is one model turn in a scripted conversation.
type scriptedReply struct {
	message *ai.Message
	err     error
}

func textReply(text string) scriptedReply {
	return scriptedReply{message: ai.NewModelTextMessage(text)}
}

func toolReply(name, ref string, input map[string]any) scriptedReply {
	return scriptedReply{message: ai.NewMessage(ai.RoleModel, nil, &ai.Part{
		Kind: ai.PartToolRequest,
		ToolRequest: &ai.ToolRequest{
			Name:  name,
			Ref:   ref,
			Input: input,
		},
	})}
}

// scriptedCaller replays a fixed sequence of model replies. The last reply
// repeats if the agent calls more often than scripted.
type scriptedCaller struct {
	mu     sync.Mutex
	script []scriptedReply
	calls  [][]*ai.Message
}

func (c *scriptedCaller) Call(_ context.Context, messages []*ai.Message, _ []ai.ToolRef) (*ai.ModelResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.script) == 0 {
		return nil, errors.New("no scripted reply")
	}
	idx := len(c.calls)
	c.calls = append(c.calls, messages)
	if idx >= len(c.script) {
		idx = len(c.script) - 1
	}

	reply := c.script[idx]
	if reply.err != nil {
		return nil, reply.err
	}
	return &ai.ModelResponse{
		Request: &ai.ModelRequest{Messages: messages},
		Message: reply.message,
	}, nil
}

func (c *scriptedCaller) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.calls)
}

// memorySessions is an in-memory SessionStore.
type memorySessions struct {
	mu       sync.Mutex
	sessions map[uuid.UUID][]*session.Message
}

func newMemorySessions() *memorySessions {
	return &memorySessions{sessions: make(map[uuid.UUID][]*session.Message)}
}

func (m *memorySessions) GetOrCreate(_ context.Context, id uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[id]; ok {
		return false, nil
	}
	m.sessions[id] = nil
	return true, nil
}

func (m *memorySessions) History(_ context.Context, id uuid.UUID, limit int32) ([]*session.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msgs := m.sessions[id]
	if int32(len(msgs)) > limit {
		msgs = msgs[int32(len(msgs))-limit:]
	}
	out := make([]*session.Message, len(msgs))
	copy(out, msgs)
	return out, nil
}

func (m *memorySessions) AppendMessages(_ context.Context, id uuid.UUID, messages []*session.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[id] = append(m.sessions[id], messages...)
	return nil
}

func (m *memorySessions) stored(id uuid.UUID) []*session.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions[id]
}

type orderLookupIn struct {
	OrderID string `json:"order_id"`
}

// newTestAgent builds an agent with one registered lookup tool and a
// scripted caller. The tool echoes a fixed status.
func newTestAgent(t *testing.T, caller ModelCaller, sessions SessionStore, maxRounds int) *Agent {
	t.Helper()

	g := genkit.Init(context.Background())
	tool := genkit.DefineTool(g, "order_lookup", "Look up an order.",
		func(_ *ai.ToolContext, in orderLookupIn) (map[string]any, error) {
			return map[string]any{"order_id": in.OrderID, "status": "shipped"}, nil
		})

	agent, err := New(Config{
		Genkit:        g,
		Sessions:      sessions,
		Logger:        log.NewNop(),
		Tools:         []ai.Tool{tool},
		MaxToolRounds: maxRounds,
		RetryConfig: RetryConfig{
			MaxRetries:      1,
			InitialInterval: time.Millisecond,
			MaxInterval:     time.Millisecond,
		},
		Caller: caller,
	})
	require.NoError(t, err)
	return agent
}

func messageText(m *session.Message) string {
	text := ""
	for _, p := range m.Content {
		text += p.Text
	}
	return text
}

// TestAgent_Execute_FinalText tests a turn where the model answers directly.
func TestAgent_Execute_FinalText(t *testing.T) {
	t.Parallel()

	caller := &scriptedCaller{script: []scriptedReply{
		textReply("Hi John, how can I help?"),
	}}
	sessions := newMemorySessions()
	agent := newTestAgent(t, caller, sessions, 5)
	id := uuid.New()

	resp, err := agent.Execute(context.Background(), id, "Hello", "john@example.com")
	require.NoError(t, err)
	assert.Equal(t, "Hi John, how can I help?", resp.FinalText)
	assert.Equal(t, 0, resp.ToolRounds)

	// First turn persists system prompt, annotated user message, and reply.
	stored := sessions.stored(id)
	require.Len(t, stored, 3)
	assert.Equal(t, string(ai.RoleSystem), stored[0].Role)
	assert.Equal(t, string(ai.RoleUser), stored[1].Role)
	assert.Equal(t, "[Customer Email: john@example.com]\nHello", messageText(stored[1]))
	assert.Equal(t, string(ai.RoleModel), stored[2].Role)
	assert.Equal(t, "Hi John, how can I help?", messageText(stored[2]))
}

// TestAgent_Execute_NoAnnotationWithoutEmail tests that the user message is
// stored verbatim when no customer email is supplied.
func TestAgent_Execute_NoAnnotationWithoutEmail(t *testing.T) {
	t.Parallel()

	caller := &scriptedCaller{script: []scriptedReply{textReply("Sure.")}}
	sessions := newMemorySessions()
	agent := newTestAgent(t, caller, sessions, 5)
	id := uuid.New()

	_, err := agent.Execute(context.Background(), id, "What's your return policy?", "")
	require.NoError(t, err)

	stored := sessions.stored(id)
	require.Len(t, stored, 3)
	assert.Equal(t, "What's your return policy?", messageText(stored[1]))
}

// TestAgent_Execute_ToolRound tests dispatching one tool request and feeding
// the result back to the model.
func TestAgent_Execute_ToolRound(t *testing.T) {
	t.Parallel()

	caller := &scriptedCaller{script: []scriptedReply{
		toolReply("order_lookup", "c1", map[string]any{"order_id": "ORD001"}),
		textReply("Your order ORD001 has shipped."),
	}}
	sessions := newMemorySessions()
	agent := newTestAgent(t, caller, sessions, 5)
	id := uuid.New()

	resp, err := agent.Execute(context.Background(), id, "Where is ORD001?", "john@example.com")
	require.NoError(t, err)
	assert.Equal(t, "Your order ORD001 has shipped.", resp.FinalText)
	assert.Equal(t, 1, resp.ToolRounds)
	require.Equal(t, 2, caller.callCount())

	// The second model call must carry the tool response.
	second := caller.calls[1]
	last := second[len(second)-1]
	assert.Equal(t, ai.RoleTool, last.Role)
	require.Len(t, last.Content, 1)
	toolResp := last.Content[0].ToolResponse
	require.NotNil(t, toolResp)
	assert.Equal(t, "order_lookup", toolResp.Name)
	assert.Equal(t, "c1", toolResp.Ref)

	// system, user, tool request, tool response, final reply
	stored := sessions.stored(id)
	require.Len(t, stored, 5)
	assert.Equal(t, string(ai.RoleModel), stored[2].Role)
	assert.Equal(t, string(ai.RoleTool), stored[3].Role)
	assert.Equal(t, string(ai.RoleModel), stored[4].Role)
}

// TestAgent_Execute_RoundCeiling tests that a model stuck requesting tools is
// cut off with a well-formed reply.
func TestAgent_Execute_RoundCeiling(t *testing.T) {
	t.Parallel()

	caller := &scriptedCaller{script: []scriptedReply{
		toolReply("order_lookup", "c1", map[string]any{"order_id": "ORD001"}),
	}}
	sessions := newMemorySessions()
	agent := newTestAgent(t, caller, sessions, 2)
	id := uuid.New()

	resp, err := agent.Execute(context.Background(), id, "Loop forever", "")
	require.NoError(t, err)
	assert.Equal(t, toolBudgetMessage, resp.FinalText)
	assert.Equal(t, 2, resp.ToolRounds)
	assert.Equal(t, 3, caller.callCount())

	// The dangling tool request from the last model call must not be
	// persisted; history ends with a plain model message.
	stored := sessions.stored(id)
	require.NotEmpty(t, stored)
	last := stored[len(stored)-1]
	assert.Equal(t, string(ai.RoleModel), last.Role)
	assert.Equal(t, toolBudgetMessage, messageText(last))
	for _, p := range last.Content {
		assert.Nil(t, p.ToolRequest)
	}
}

// TestAgent_Execute_EmptyModelResponse tests the fallback reply.
func TestAgent_Execute_EmptyModelResponse(t *testing.T) {
	t.Parallel()

	caller := &scriptedCaller{script: []scriptedReply{textReply("   ")}}
	sessions := newMemorySessions()
	agent := newTestAgent(t, caller, sessions, 5)
	id := uuid.New()

	resp, err := agent.Execute(context.Background(), id, "Hello", "")
	require.NoError(t, err)
	assert.Equal(t, fallbackResponseMessage, resp.FinalText)

	stored := sessions.stored(id)
	require.NotEmpty(t, stored)
	assert.Equal(t, fallbackResponseMessage, messageText(stored[len(stored)-1]))
}

// TestAgent_Execute_UnknownTool tests that a request for an unregistered tool
// aborts the turn without persisting a broken transcript.
func TestAgent_Execute_UnknownTool(t *testing.T) {
	t.Parallel()

	caller := &scriptedCaller{script: []scriptedReply{
		toolReply("bogus_tool", "c1", map[string]any{}),
	}}
	sessions := newMemorySessions()
	agent := newTestAgent(t, caller, sessions, 5)
	id := uuid.New()

	resp, err := agent.Execute(context.Background(), id, "Hello", "")
	require.NoError(t, err)
	assert.Equal(t, toolFailureMessage, resp.FinalText)
	assert.Empty(t, sessions.stored(id))
}

// TestAgent_Execute_WithheldTool tests that a tool registered in the process
// but left out of the agent's catalog is never dispatched.
func TestAgent_Execute_WithheldTool(t *testing.T) {
	t.Parallel()

	g := genkit.Init(context.Background())
	lookup := genkit.DefineTool(g, "order_lookup", "Look up an order.",
		func(_ *ai.ToolContext, in orderLookupIn) (map[string]any, error) {
			return map[string]any{"order_id": in.OrderID, "status": "shipped"}, nil
		})

	withheldRan := false
	genkit.DefineTool(g, "query_database", "Run an analytical query.",
		func(_ *ai.ToolContext, _ struct{}) (string, error) {
			withheldRan = true
			return "rows", nil
		})

	caller := &scriptedCaller{script: []scriptedReply{
		toolReply("query_database", "c1", map[string]any{}),
		textReply("done"),
	}}
	sessions := newMemorySessions()
	agent, err := New(Config{
		Genkit:   g,
		Sessions: sessions,
		Logger:   log.NewNop(),
		Tools:    []ai.Tool{lookup},
		RetryConfig: RetryConfig{
			MaxRetries:      1,
			InitialInterval: time.Millisecond,
			MaxInterval:     time.Millisecond,
		},
		Caller: caller,
	})
	require.NoError(t, err)

	resp, err := agent.Execute(context.Background(), uuid.New(), "Hello", "")
	require.NoError(t, err)
	assert.Equal(t, toolFailureMessage, resp.FinalText)
	assert.False(t, withheldRan)
	assert.Equal(t, 1, caller.callCount())
}

// TestAgent_Execute_ModelError tests that a non-retryable model failure
// surfaces as an error.
func TestAgent_Execute_ModelError(t *testing.T) {
	t.Parallel()

	caller := &scriptedCaller{script: []scriptedReply{
		{err: errors.New("invalid API key")},
	}}
	sessions := newMemorySessions()
	agent := newTestAgent(t, caller, sessions, 5)

	_, err := agent.Execute(context.Background(), uuid.New(), "Hello", "")
	require.Error(t, err)
}

// TestAgent_Execute_SecondTurn tests that the system prompt is installed only
// once per session.
func TestAgent_Execute_SecondTurn(t *testing.T) {
	t.Parallel()

	caller := &scriptedCaller{script: []scriptedReply{
		textReply("First answer."),
		textReply("Second answer."),
	}}
	sessions := newMemorySessions()
	agent := newTestAgent(t, caller, sessions, 5)
	id := uuid.New()

	_, err := agent.Execute(context.Background(), id, "First question", "john@example.com")
	require.NoError(t, err)
	resp, err := agent.Execute(context.Background(), id, "Second question", "john@example.com")
	require.NoError(t, err)
	assert.Equal(t, "Second answer.", resp.FinalText)

	systemCount := 0
	for _, m := range sessions.stored(id) {
		if m.Role == string(ai.RoleSystem) {
			systemCount++
		}
	}
	assert.Equal(t, 1, systemCount)

	// The second call sees the full persisted history plus the new user turn.
	require.Equal(t, 2, caller.callCount())
	secondTurn := caller.calls[1]
	assert.Equal(t, ai.RoleSystem, secondTurn[0].Role)
	assert.Len(t, secondTurn, 4)
}

// TestAgent_Execute_EmptyInput tests input validation.
func TestAgent_Execute_EmptyInput(t *testing.T) {
	t.Parallel()

	agent := newTestAgent(t, &scriptedCaller{script: []scriptedReply{textReply("x")}}, newMemorySessions(), 5)

	_, err := agent.Execute(context.Background(), uuid.New(), "   ", "")
	require.Error(t, err)
}

// TestNew_Validation tests constructor requirements.
func TestNew_Validation(t *testing.T) {
	t.Parallel()

	g := genkit.Init(context.Background())
	tool := genkit.DefineTool(g, "noop", "noop",
		func(_ *ai.ToolContext, _ struct{}) (string, error) { return "", nil })
	sessions := newMemorySessions()

	tests := []struct {
		name string
		cfg  Config
	}{
		{"missing genkit", Config{Sessions: sessions, Tools: []ai.Tool{tool}, ModelName: "m"}},
		{"missing sessions", Config{Genkit: g, Tools: []ai.Tool{tool}, ModelName: "m"}},
		{"missing tools", Config{Genkit: g, Sessions: sessions, ModelName: "m"}},
		{"missing model name", Config{Genkit: g, Sessions: sessions, Tools: []ai.Tool{tool}}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := New(tc.cfg)
			assert.Error(t, err)
		})
	}
}

// TestAnnotateWithEmail tests the identity annotation format.
func TestAnnotateWithEmail(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "hello", annotateWithEmail("hello", ""))
	assert.Equal(t, "[Customer Email: a@b.com]\nhello", annotateWithEmail("hello", "a@b.com"))
}
