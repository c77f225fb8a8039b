package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"dataflow-studio/backend/internal/chat"
	"dataflow-studio/backend/internal/runner"
	"dataflow-studio/backend/pkg/models"
)

// ChatState is the full panel state: transcript, context set and the summary
// line shown above the input.
type ChatState struct {
	Messages   []models.ChatMessage `json:"messages"`
	ContextIDs []string             `json:"context_ids"`
	Summary    string               `json:"summary,omitempty"`
	Detail     *chat.ContextDetail  `json:"detail,omitempty"`
}

func (s *Server) chatState(ws *Workspace) ChatState {
	return ChatState{
		Messages:   ws.Chat.Messages(),
		ContextIDs: ws.Chat.ContextIDs(),
		Summary:    ws.Chat.ContextSummary(ws.Canvas.Nodes()),
		Detail:     ws.Chat.Detail(),
	}
}

// handleChatMessages returns the panel state.
// (GET /api/chat/messages)
func (s *Server) handleChatMessages(c echo.Context) error {
	ws, _, err := s.workspace(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, s.chatState(ws))
}

type chatSendRequest struct {
	Message string `json:"message"`
}

// ChatSendResult is the assistant's turn. HasSuggestion marks a flow
// suggestion waiting to be applied via /api/chat/apply.
type ChatSendResult struct {
	Reply         models.ChatMessage `json:"reply"`
	HasSuggestion bool               `json:"has_suggestion"`
}

// handleChatSend sends a user message. Engine failures come back as a
// synthetic assistant turn, never as an HTTP error.
// (POST /api/chat/messages)
func (s *Server) handleChatSend(c echo.Context) error {
	ws, _, err := s.workspace(c)
	if err != nil {
		return err
	}

	var req chatSendRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body: "+err.Error())
	}
	if req.Message == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "message is required")
	}

	reply := ws.Chat.Send(c.Request().Context(), req.Message, ws.Canvas.Nodes(), ws.Runner.Latest())
	return c.JSON(http.StatusOK, ChatSendResult{Reply: reply, HasSuggestion: ws.Chat.HasSuggestion()})
}

// handleChatToggleContext adds or removes a node from the chat context set.
// (POST /api/chat/context/:id)
func (s *Server) handleChatToggleContext(c echo.Context) error {
	ws, _, err := s.workspace(c)
	if err != nil {
		return err
	}

	id := c.Param("id")
	if _, ok := ws.Canvas.Node(id); !ok {
		return echo.NewHTTPError(http.StatusNotFound, "node not found")
	}
	ws.Chat.ToggleContext(id)
	return c.JSON(http.StatusOK, s.chatState(ws))
}

// ChatApplyResult is the canvas after an append-only suggestion merge plus
// the execution the merge triggered.
type ChatApplyResult struct {
	Canvas         CanvasState             `json:"canvas"`
	Execution      *models.ExecutionResult `json:"execution,omitempty"`
	ExecutionError string                  `json:"execution_error,omitempty"`
}

// handleChatApply merges the pending flow suggestion into the canvas and
// triggers one execution of the merged graph. Merging is append-only;
// existing nodes and edges are never touched.
// (POST /api/chat/apply)
func (s *Server) handleChatApply(c echo.Context) error {
	ws, _, err := s.workspace(c)
	if err != nil {
		return err
	}

	suggestion, ok := ws.Chat.Suggestion()
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "no pending flow suggestion")
	}
	ws.Canvas.MergeSuggestion(suggestion.Nodes, suggestion.Edges)

	res := ChatApplyResult{Canvas: canvasState(ws.Canvas)}
	result, execErr := ws.Runner.Execute(c.Request().Context(), ws.Canvas.Nodes(), ws.Canvas.Edges())
	switch {
	case execErr == nil:
		res.Execution = result
	case errors.Is(execErr, runner.ErrSuperseded):
		res.Execution = ws.Runner.Latest()
	default:
		res.ExecutionError = execErr.Error()
	}
	return c.JSON(http.StatusOK, res)
}
