// Package chat holds the per-flow assistant transcript and the context set
// the assistant reasons about.
package chat

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"dataflow-studio/backend/internal/graph"
	"dataflow-studio/backend/internal/logging"
	"dataflow-studio/backend/pkg/models"
)

// WelcomeMessage seeds a transcript that has no persisted history.
const WelcomeMessage = "Welcome to DataFlow Studio! ."

// ConnectionErrorMessage is appended as a synthetic assistant turn when the
// engine cannot be reached. Chat failures never surface as errors.
const ConnectionErrorMessage = "Connection Error (Check Backend)."

// Client is the slice of the engine client the panel needs.
type Client interface {
	Chat(ctx context.Context, req models.ChatRequest) (*models.ChatResponse, error)
	ChatHistory(ctx context.Context, userID, flowID int) ([]models.ChatMessage, error)
}

// ContextDetail summarizes the data behind the primary context node.
type ContextDetail struct {
	Rows    int `json:"rows"`
	Columns int `json:"cols"`
}

// Panel is the chat side panel for one workspace.
type Panel struct {
	client Client
	logger *logging.Logger

	mu       sync.Mutex
	userID   int
	flowID   *int
	messages []models.ChatMessage
	ctxIDs   []string
	detail   *ContextDetail
	pending  *models.FlowSuggestion
}

// NewPanel creates an empty panel bound to client.
func NewPanel(client Client, logger *logging.Logger) *Panel {
	return &Panel{client: client, logger: logger}
}

// Open loads the transcript for a user and flow. When either is missing or no
// history exists, the transcript starts with the welcome message. A history
// fetch failure also falls back to the welcome message.
func (p *Panel) Open(ctx context.Context, userID int, flowID *int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.userID = userID
	p.flowID = flowID
	p.ctxIDs = nil
	p.detail = nil
	p.pending = nil

	if userID != 0 && flowID != nil {
		history, err := p.client.ChatHistory(ctx, userID, *flowID)
		if err != nil {
			p.logger.Error("chat history fetch failed", "user_id", userID, "flow_id", *flowID, "error", err)
		} else if len(history) > 0 {
			p.messages = history
			return
		}
	}
	p.messages = []models.ChatMessage{{Role: models.ChatRoleAssistant, Content: WelcomeMessage}}
}

// SyncSelection replaces the context set with the node selected on the
// canvas. Deselection on the canvas leaves the context set untouched.
func (p *Panel) SyncSelection(nodeID string, result *models.ExecutionResult) {
	if nodeID == "" {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	p.ctxIDs = []string{nodeID}
	p.detail = nil
	if result != nil {
		if out, ok := result.Output(nodeID); ok {
			p.detail = &ContextDetail{Rows: out.Rows, Columns: len(out.Columns)}
		}
	}
}

// ToggleContext adds or removes a node from the context set, independent of
// canvas selection.
func (p *Panel) ToggleContext(nodeID string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if i := slices.Index(p.ctxIDs, nodeID); i >= 0 {
		p.ctxIDs = slices.Delete(p.ctxIDs, i, i+1)
	} else {
		p.ctxIDs = append(p.ctxIDs, nodeID)
	}
}

// ContextIDs returns a copy of the context set.
func (p *Panel) ContextIDs() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.ctxIDs)
}

// ContextSummary describes the context set for display: the primary node's
// type label for a single node, a count otherwise.
func (p *Panel) ContextSummary(nodes []models.Node) string {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch len(p.ctxIDs) {
	case 0:
		return ""
	case 1:
		for _, n := range nodes {
			if n.ID == p.ctxIDs[0] {
				return n.Data.TypeLabel
			}
		}
		return "Unknown Node"
	default:
		return fmt.Sprintf("%d Nodes Selected", len(p.ctxIDs))
	}
}

// Send appends the user's message, asks the engine, and appends the reply.
// The data context comes from the primary (first) context node: its execution
// output when one exists, otherwise the columns of its uploaded file. Network
// failures produce a synthetic assistant message instead of an error, so Send
// always returns the assistant turn that was appended.
func (p *Panel) Send(ctx context.Context, text string, nodes []models.Node, result *models.ExecutionResult) models.ChatMessage {
	p.mu.Lock()
	p.messages = append(p.messages, models.ChatMessage{Role: models.ChatRoleUser, Content: text})

	reqCtx := models.ChatContext{
		Columns:      []string{},
		DataPreview:  []map[string]any{},
		DataStats:    map[string]any{},
		CurrentNodes: nodes,
	}
	if len(p.ctxIDs) > 0 {
		primary := p.ctxIDs[0]
		reqCtx.SelectedNode = &models.ChatNodeRef{ID: primary}
		if out, ok := outputFor(result, primary); ok {
			reqCtx.Columns = out.Columns
			reqCtx.DataPreview = out.Preview
			reqCtx.DataStats = out.Stats
		} else {
			for _, n := range nodes {
				if n.ID == primary {
					if cols := graph.UploadColumns(n); len(cols) > 0 {
						reqCtx.Columns = cols
					}
					break
				}
			}
		}
	}

	req := models.ChatRequest{
		Message: text,
		UserID:  p.userID,
		FlowID:  p.flowID,
		Context: reqCtx,
	}
	p.mu.Unlock()

	resp, err := p.client.Chat(ctx, req)

	p.mu.Lock()
	defer p.mu.Unlock()

	var reply models.ChatMessage
	if err != nil {
		p.logger.Error("chat request failed", "error", err)
		reply = models.ChatMessage{Role: models.ChatRoleAssistant, Content: ConnectionErrorMessage}
	} else {
		reply = models.ChatMessage{Role: models.ChatRoleAssistant, Content: resp.Message}
		if resp.Type == models.ChatResponseSuggestion && resp.Flow != nil {
			p.pending = resp.Flow
		}
		if len(resp.History) > 0 {
			// The engine replays the persisted transcript with the user turn
			// and this reply already in it; it supersedes the optimistic
			// local copy.
			p.messages = slices.Clone(resp.History)
			return reply
		}
	}
	p.messages = append(p.messages, reply)
	return reply
}

// HasSuggestion reports whether a flow suggestion is waiting to be applied.
func (p *Panel) HasSuggestion() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pending != nil
}

// Suggestion pops the flow suggestion attached to the most recent assistant
// reply, if any. The caller merges it into the canvas.
func (p *Panel) Suggestion() (*models.FlowSuggestion, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.pending == nil {
		return nil, false
	}
	s := p.pending
	p.pending = nil
	return s, true
}

// Messages returns a copy of the transcript.
func (p *Panel) Messages() []models.ChatMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.messages)
}

// Detail returns the row/column summary for the current single-node context.
func (p *Panel) Detail() *ContextDetail {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.detail == nil {
		return nil
	}
	d := *p.detail
	return &d
}

func outputFor(result *models.ExecutionResult, nodeID string) (models.NodeOutput, bool) {
	if result == nil {
		return models.NodeOutput{}, false
	}
	return result.Output(nodeID)
}
