package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/AmolNarang/orderassistant/internal/chat"
)

// MaxChatBodyBytes bounds the chat request body.
const MaxChatBodyBytes = 64 * 1024

// MaxMessageLength bounds the user message in characters.
const MaxMessageLength = 8000

// ChatExecutor runs one agent turn. Implemented by *chat.Agent.
type ChatExecutor interface {
	Execute(ctx context.Context, sessionID uuid.UUID, input, customerEmail string) (*chat.Response, error)
}

// AgentSelector picks the agent for a request based on the analytics flag.
type AgentSelector func(enableAnalytics bool) ChatExecutor

// ChatRequest is the POST /api/chat request body.
type ChatRequest struct {
	Message         string `json:"message"`
	CustomerEmail   string `json:"customerEmail,omitempty"`
	SessionID       string `json:"sessionId,omitempty"`
	EnableAnalytics bool   `json:"enableAnalytics,omitempty"`
}

// ChatResponse is the POST /api/chat response body. SessionID echoes the
// request's session or carries the newly generated one.
type ChatResponse struct {
	Response  string `json:"response"`
	SessionID string `json:"sessionId"`
}

// ChatHandler handles the conversational endpoint.
type ChatHandler struct {
	agents AgentSelector
	logger *slog.Logger
}

// NewChatHandler creates a new chat handler.
func NewChatHandler(agents AgentSelector, logger *slog.Logger) *ChatHandler {
	return &ChatHandler{agents: agents, logger: logger}
}

// RegisterRoutes registers chat routes on the given mux.
func (h *ChatHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/chat", h.chat)
}

func (h *ChatHandler) chat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	body := http.MaxBytesReader(w, r.Body, MaxChatBodyBytes)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(h.logger, w, http.StatusRequestEntityTooLarge, "request too large", "")
			return
		}
		if errors.Is(err, io.EOF) {
			writeError(h.logger, w, http.StatusBadRequest, "empty request body", "")
			return
		}
		writeError(h.logger, w, http.StatusBadRequest, "invalid JSON", err.Error())
		return
	}

	if strings.TrimSpace(req.Message) == "" {
		writeError(h.logger, w, http.StatusBadRequest, "message is required", "")
		return
	}
	if len(req.Message) > MaxMessageLength {
		writeError(h.logger, w, http.StatusBadRequest, "message too long", "")
		return
	}

	// Absent or blank session ID starts a new conversation.
	sessionID := uuid.New()
	if strings.TrimSpace(req.SessionID) != "" {
		parsed, err := uuid.Parse(req.SessionID)
		if err != nil {
			writeError(h.logger, w, http.StatusBadRequest, "invalid session ID", err.Error())
			return
		}
		sessionID = parsed
	}

	agent := h.agents(req.EnableAnalytics)
	resp, err := agent.Execute(r.Context(), sessionID, req.Message, req.CustomerEmail)
	if err != nil {
		h.logger.Error("chat turn failed", "session_id", sessionID, "error", err)
		writeError(h.logger, w, http.StatusInternalServerError, "chat failed",
			"The assistant is temporarily unavailable. Please try again.")
		return
	}

	writeJSON(h.logger, w, http.StatusOK, ChatResponse{
		Response:  resp.FinalText,
		SessionID: sessionID.String(),
	})
}
