package models

// ChatMessage is one entry of a per-flow transcript.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

const (
	ChatRoleUser      = "user"
	ChatRoleAssistant = "assistant"
)

// ChatNodeRef identifies the primary context node of a chat request.
type ChatNodeRef struct {
	ID string `json:"id"`
}

// ChatContext is the data context shipped with every chat message: the
// columns, preview and stats of the primary context node, plus the full node
// list so the assistant can propose graph modifications.
type ChatContext struct {
	Columns      []string         `json:"columns"`
	DataPreview  []map[string]any `json:"dataPreview"`
	DataStats    map[string]any   `json:"dataStats"`
	SelectedNode *ChatNodeRef     `json:"selectedNode"`
	CurrentNodes []Node           `json:"currentNodes"`
}

// ChatRequest is the payload of POST /api/ai-chat.
type ChatRequest struct {
	Message string      `json:"message"`
	UserID  int         `json:"user_id"`
	FlowID  *int        `json:"flow_id"`
	Context ChatContext `json:"context"`
}

// FlowSuggestion is an additional node/edge subgraph proposed by the
// assistant. Applying it appends to the live graph, never replaces.
type FlowSuggestion struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// ChatResponse is either a plain reply (Type "text") or a flow suggestion
// (Type "flow_suggestion" with Flow set).
type ChatResponse struct {
	Type    string          `json:"type"`
	Message string          `json:"message"`
	Flow    *FlowSuggestion `json:"flow,omitempty"`
	History []ChatMessage   `json:"history,omitempty"`
}

const (
	ChatResponseText       = "text"
	ChatResponseSuggestion = "flow_suggestion"
)
