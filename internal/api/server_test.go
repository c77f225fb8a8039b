package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dataflow-studio/backend/internal/engine"
	"dataflow-studio/backend/internal/logging"
	"dataflow-studio/backend/internal/session"
	"dataflow-studio/backend/pkg/models"
)

// stubEngine is an in-memory double for the data engine.
type stubEngine struct {
	mu           sync.Mutex
	executeCalls int
	executeRes   *models.ExecutionResult
	executeErr   error
	flows        []models.Flow
	savedFlowIDs []*int
	deleted      []int
	chatRes      *models.ChatResponse
	history      []models.ChatMessage
	files        []models.FileMeta
}

func (s *stubEngine) Login(ctx context.Context, creds models.Credentials) (*models.LoginResponse, error) {
	if creds.Password == "wrong" {
		return nil, &engine.APIError{Status: http.StatusUnauthorized, Detail: "Invalid credentials"}
	}
	return &models.LoginResponse{Status: "success", UserID: 42, Username: creds.Username}, nil
}

func (s *stubEngine) Signup(ctx context.Context, creds models.Credentials) error { return nil }

func (s *stubEngine) ListFiles(ctx context.Context, userID int) ([]models.FileMeta, error) {
	return s.files, nil
}

func (s *stubEngine) UploadFiles(ctx context.Context, userID int, uploads []engine.Upload) ([]models.FileMeta, error) {
	var out []models.FileMeta
	for _, u := range uploads {
		io.Copy(io.Discard, u.Reader)
		out = append(out, models.FileMeta{Name: u.Name, Columns: []string{"a", "b"}})
	}
	return out, nil
}

func (s *stubEngine) Execute(ctx context.Context, nodes []models.Node, edges []models.Edge) (*models.ExecutionResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.executeCalls++
	if s.executeErr != nil {
		return nil, s.executeErr
	}
	if s.executeRes != nil {
		return s.executeRes, nil
	}
	return &models.ExecutionResult{Status: "success", NodeOutputs: map[string]models.NodeOutput{}}, nil
}

func (s *stubEngine) SaveFlow(ctx context.Context, userID int, name string, nodes []models.Node, edges []models.Edge, flowID *int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.savedFlowIDs = append(s.savedFlowIDs, flowID)
	if flowID != nil {
		return *flowID, nil
	}
	return 7, nil
}

func (s *stubEngine) ListFlows(ctx context.Context, userID int) ([]models.Flow, error) {
	return s.flows, nil
}

func (s *stubEngine) DeleteFlow(ctx context.Context, userID, flowID int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleted = append(s.deleted, flowID)
	return nil
}

func (s *stubEngine) Chat(ctx context.Context, req models.ChatRequest) (*models.ChatResponse, error) {
	if s.chatRes != nil {
		return s.chatRes, nil
	}
	return &models.ChatResponse{Type: models.ChatResponseText, Message: "ok"}, nil
}

func (s *stubEngine) ChatHistory(ctx context.Context, userID, flowID int) ([]models.ChatMessage, error) {
	return s.history, nil
}

func (s *stubEngine) executeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.executeCalls
}

func newTestServer(t *testing.T) (*echo.Echo, *stubEngine) {
	t.Helper()
	eng := &stubEngine{}
	logger := logging.NewLoggerWithWriter(io.Discard)
	srv := NewServer(eng, session.NewManager(eng), logger)
	e := echo.New()
	srv.Register(e)
	return e, eng
}

func doJSON(t *testing.T, e *echo.Echo, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func loginTest(t *testing.T, e *echo.Echo) string {
	t.Helper()
	rec := doJSON(t, e, http.MethodPost, "/api/session/login", "", models.Credentials{Username: "analyst", Password: "pw"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var res LoginResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	require.NotEmpty(t, res.Token)
	assert.Equal(t, 42, res.UserID)
	return res.Token
}

func addNode(t *testing.T, e *echo.Echo, token, label string) models.Node {
	t.Helper()
	rec := doJSON(t, e, http.MethodPost, "/api/canvas/nodes", token, map[string]any{
		"type": "custom", "label": label, "position": map[string]float64{"x": 10, "y": 20},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var node models.Node
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &node))
	return node
}

func TestGuardedRoutesRequireSession(t *testing.T) {
	e, _ := newTestServer(t)
	for _, path := range []string{"/api/canvas", "/api/flows", "/api/results", "/api/chat/messages"} {
		rec := doJSON(t, e, http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	e, _ := newTestServer(t)
	rec := doJSON(t, e, http.MethodPost, "/api/session/login", "", models.Credentials{Username: "x", Password: "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "Invalid credentials")
}

func TestLogoutTearsDownWorkspace(t *testing.T) {
	e, _ := newTestServer(t)
	token := loginTest(t, e)

	rec := doJSON(t, e, http.MethodPost, "/api/session/logout", token, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, e, http.MethodGet, "/api/canvas", token, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAddNodeAndSelection(t *testing.T) {
	e, _ := newTestServer(t)
	token := loginTest(t, e)

	node := addNode(t, e, token, "Upload File")
	assert.Regexp(t, `^node_1_\d+$`, node.ID)
	assert.Equal(t, "upload_file", node.Data.Kind)

	rec := doJSON(t, e, http.MethodGet, "/api/canvas", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var state CanvasState
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &state))
	require.Len(t, state.Nodes, 1)
	assert.Equal(t, node.ID, state.Selected)
}

func TestAddNodeIncompleteDrop(t *testing.T) {
	e, _ := newTestServer(t)
	token := loginTest(t, e)

	rec := doJSON(t, e, http.MethodPost, "/api/canvas/nodes", token, map[string]any{"type": "custom"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSaveConfigTriggersExactlyOneExecution(t *testing.T) {
	e, eng := newTestServer(t)
	token := loginTest(t, e)
	node := addNode(t, e, token, "Bar Chart")

	rec := doJSON(t, e, http.MethodPut, "/api/canvas/nodes/"+node.ID+"/config", token, map[string]any{
		"config": map[string]any{"column": "region"},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 1, eng.executeCount())

	var res SaveConfigResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, "Bar Chart: region", res.Node.Data.Label)
	require.NotNil(t, res.Execution)
	assert.Equal(t, "success", res.Execution.Status)
}

func TestSaveConfigValidationFailureDoesNotExecute(t *testing.T) {
	e, eng := newTestServer(t)
	token := loginTest(t, e)
	node := addNode(t, e, token, "Bar Chart")

	rec := doJSON(t, e, http.MethodPut, "/api/canvas/nodes/"+node.ID+"/config", token, map[string]any{
		"config": map[string]any{"title": "missing column"},
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, 0, eng.executeCount())
}

func TestExecuteAndResults(t *testing.T) {
	e, eng := newTestServer(t)
	eng.executeRes = &models.ExecutionResult{
		Status:      "success",
		NodeOutputs: map[string]models.NodeOutput{},
		FinalOutput: &models.FinalOutput{Rows: 3, Columns: []string{"a"}},
		Logs:        []string{"Executing node_1", "Error in node_2: boom"},
	}
	token := loginTest(t, e)
	addNode(t, e, token, "Upload File")

	rec := doJSON(t, e, http.MethodPost, "/api/execute", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, e, http.MethodGet, "/api/results", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var state ResultsState
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &state))
	require.NotNil(t, state.Result)
	assert.Equal(t, "success", state.Result.Status)
	assert.Equal(t, []string{"a"}, state.Columns)
	require.Len(t, state.Logs, 2)
	assert.False(t, state.Logs[0].IsError)
	assert.True(t, state.Logs[1].IsError)
}

func TestResultsPanelHidesPlumbingOutputs(t *testing.T) {
	e, eng := newTestServer(t)
	token := loginTest(t, e)
	upload := addNode(t, e, token, "Upload File")
	chart := addNode(t, e, token, "Bar Chart")
	eng.executeRes = &models.ExecutionResult{
		Status: "success",
		NodeOutputs: map[string]models.NodeOutput{
			upload.ID: {ID: upload.ID, Type: "Filter Rows"},
			chart.ID:  {ID: chart.ID, Type: "Bar Chart"},
		},
	}

	rec := doJSON(t, e, http.MethodPost, "/api/execute", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, e, http.MethodGet, "/api/results", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var state ResultsState
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &state))
	require.Len(t, state.Result.NodeOutputs, 2, "the raw result keeps every output")
	require.Len(t, state.PanelOutputs, 1, "the panel shows displayable outputs only")
	assert.Equal(t, chart.ID, state.PanelOutputs[0].ID)
}

func TestSaveFlowBindsWorkspace(t *testing.T) {
	e, eng := newTestServer(t)
	token := loginTest(t, e)
	addNode(t, e, token, "Upload File")

	rec := doJSON(t, e, http.MethodPost, "/api/flows/save", token, map[string]string{"name": "My Flow"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"flow_id": 7}`, rec.Body.String())

	rec = doJSON(t, e, http.MethodPost, "/api/flows/save", token, map[string]string{"name": "My Flow"})
	require.Equal(t, http.StatusOK, rec.Code)

	require.Len(t, eng.savedFlowIDs, 2)
	assert.Nil(t, eng.savedFlowIDs[0], "first save creates")
	require.NotNil(t, eng.savedFlowIDs[1])
	assert.Equal(t, 7, *eng.savedFlowIDs[1], "second save overwrites the same flow")
}

func TestSaveFlowRequiresName(t *testing.T) {
	e, _ := newTestServer(t)
	token := loginTest(t, e)
	rec := doJSON(t, e, http.MethodPost, "/api/flows/save", token, map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestOpenFlowLoadsEverything(t *testing.T) {
	e, eng := newTestServer(t)
	eng.flows = []models.Flow{{
		ID:    9,
		Name:  "Saved",
		Nodes: []models.Node{{ID: "n1", Data: models.NodeData{TypeLabel: "Group By"}}},
		Edges: []models.Edge{},
		ExecutionResult: &models.ExecutionResult{
			Status:      "success",
			NodeOutputs: map[string]models.NodeOutput{"n1": {ID: "n1", Columns: []string{"c"}}},
		},
	}}
	eng.history = []models.ChatMessage{{Role: "user", Content: "earlier"}}
	token := loginTest(t, e)

	rec := doJSON(t, e, http.MethodPost, "/api/flows/9/open", token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var opened OpenFlowResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &opened))
	require.Len(t, opened.Canvas.Nodes, 1)
	assert.Nil(t, opened.Execution, "no run requested")
	assert.Equal(t, 0, eng.executeCount())

	rec = doJSON(t, e, http.MethodGet, "/api/results", token, nil)
	var results ResultsState
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &results))
	require.NotNil(t, results.Result, "the stored execution result travels with the flow")

	rec = doJSON(t, e, http.MethodGet, "/api/chat/messages", token, nil)
	var chatSt ChatState
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &chatSt))
	require.Len(t, chatSt.Messages, 1)
	assert.Equal(t, "earlier", chatSt.Messages[0].Content)
}

func TestOpenFlowRunVariant(t *testing.T) {
	e, eng := newTestServer(t)
	eng.flows = []models.Flow{{
		ID:    4,
		Name:  "Saved",
		Nodes: []models.Node{{ID: "n1", Data: models.NodeData{TypeLabel: "Group By"}}},
		Edges: []models.Edge{},
	}}
	eng.executeRes = &models.ExecutionResult{Status: "success", NodeOutputs: map[string]models.NodeOutput{}}
	token := loginTest(t, e)

	rec := doJSON(t, e, http.MethodPost, "/api/flows/4/open?run=true", token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var opened OpenFlowResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &opened))
	require.NotNil(t, opened.Execution)
	assert.Equal(t, "success", opened.Execution.Status)
	assert.Equal(t, 1, eng.executeCount())
}

func TestOpenFlowRunFailureKeepsLoadedFlow(t *testing.T) {
	e, eng := newTestServer(t)
	eng.flows = []models.Flow{{
		ID:    4,
		Name:  "Saved",
		Nodes: []models.Node{{ID: "n1", Data: models.NodeData{TypeLabel: "Group By"}}},
		Edges: []models.Edge{},
	}}
	eng.executeErr = fmt.Errorf("engine down")
	token := loginTest(t, e)

	rec := doJSON(t, e, http.MethodPost, "/api/flows/4/open?run=true", token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var opened OpenFlowResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &opened))
	require.Len(t, opened.Canvas.Nodes, 1, "the flow stays loaded")
	assert.Nil(t, opened.Execution)
	assert.Contains(t, opened.ExecutionError, "engine down")
}

func TestOpenFlowNotFound(t *testing.T) {
	e, _ := newTestServer(t)
	token := loginTest(t, e)
	rec := doJSON(t, e, http.MethodPost, "/api/flows/99/open", token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteFlowRequiresConfirmation(t *testing.T) {
	e, eng := newTestServer(t)
	token := loginTest(t, e)

	rec := doJSON(t, e, http.MethodDelete, "/api/flows/9", token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, eng.deleted, "no engine call without confirmation")

	rec = doJSON(t, e, http.MethodDelete, "/api/flows/9?confirm=true", token, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, []int{9}, eng.deleted)
}

func TestResolveColumnsNeedsRunFlag(t *testing.T) {
	e, _ := newTestServer(t)
	token := loginTest(t, e)
	node := addNode(t, e, token, "Bar Chart")

	rec := doJSON(t, e, http.MethodGet, fmt.Sprintf("/api/canvas/nodes/%s/columns", node.ID), token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var res ColumnsResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Empty(t, res.Columns)
	assert.True(t, res.NeedsRun, "an empty column set must be flagged, not silent")
}

func TestChatWelcomeAndSend(t *testing.T) {
	e, _ := newTestServer(t)
	token := loginTest(t, e)

	rec := doJSON(t, e, http.MethodGet, "/api/chat/messages", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var state ChatState
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &state))
	require.Len(t, state.Messages, 1)
	assert.Contains(t, state.Messages[0].Content, "Welcome to DataFlow Studio")

	rec = doJSON(t, e, http.MethodPost, "/api/chat/messages", token, map[string]string{"message": "hello"})
	require.Equal(t, http.StatusOK, rec.Code)
	var sent ChatSendResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sent))
	assert.Equal(t, "ok", sent.Reply.Content)
	assert.False(t, sent.HasSuggestion)
}

func TestChatSuggestionApply(t *testing.T) {
	e, eng := newTestServer(t)
	eng.chatRes = &models.ChatResponse{
		Type:    models.ChatResponseSuggestion,
		Message: "added a Group By",
		Flow: &models.FlowSuggestion{
			Nodes: []models.Node{{ID: "ai_1", Type: "custom", Data: models.NodeData{TypeLabel: "Group By"}}},
			Edges: []models.Edge{},
		},
	}
	token := loginTest(t, e)
	addNode(t, e, token, "Upload File")

	rec := doJSON(t, e, http.MethodPost, "/api/chat/messages", token, map[string]string{"message": "group it"})
	require.Equal(t, http.StatusOK, rec.Code)
	var sent ChatSendResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sent))
	require.True(t, sent.HasSuggestion)

	rec = doJSON(t, e, http.MethodPost, "/api/chat/apply", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var applied ChatApplyResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &applied))
	require.Len(t, applied.Canvas.Nodes, 2, "the suggestion is appended to the existing graph")
	assert.Equal(t, "group_by", applied.Canvas.Nodes[1].Data.Kind)
	assert.Equal(t, 1, eng.executeCount(), "applying a suggestion runs the merged graph once")

	rec = doJSON(t, e, http.MethodPost, "/api/chat/apply", token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code, "a suggestion applies once")
	assert.Equal(t, 1, eng.executeCount())
}

func TestChatContextToggle(t *testing.T) {
	e, _ := newTestServer(t)
	token := loginTest(t, e)
	node := addNode(t, e, token, "Group By")

	rec := doJSON(t, e, http.MethodPost, "/api/chat/context/"+node.ID, token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var state ChatState
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &state))
	assert.Equal(t, []string{node.ID}, state.ContextIDs)
	assert.Equal(t, "Group By", state.Summary)

	rec = doJSON(t, e, http.MethodPost, "/api/chat/context/missing", token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestReportEndpoint(t *testing.T) {
	e, eng := newTestServer(t)
	eng.executeRes = &models.ExecutionResult{
		Status:      "success",
		NodeOutputs: map[string]models.NodeOutput{},
	}
	token := loginTest(t, e)

	// No execution yet: the report page has nothing to show.
	rec := doJSON(t, e, http.MethodGet, "/api/report", token, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	addNode(t, e, token, "Upload File")
	rec = doJSON(t, e, http.MethodPost, "/api/execute", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, e, http.MethodGet, "/api/report", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Untitled Report")
}

func TestClearCanvasResetsWorkspace(t *testing.T) {
	e, _ := newTestServer(t)
	token := loginTest(t, e)
	addNode(t, e, token, "Upload File")

	rec := doJSON(t, e, http.MethodPost, "/api/canvas/clear", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var state CanvasState
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &state))
	assert.Empty(t, state.Nodes)

	rec = doJSON(t, e, http.MethodGet, "/api/results", token, nil)
	var results ResultsState
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &results))
	assert.Nil(t, results.Result)
}

func TestHealth(t *testing.T) {
	e, _ := newTestServer(t)
	rec := doJSON(t, e, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "dataflow-studio")
}

func TestConnectEdgeEndpoint(t *testing.T) {
	e, _ := newTestServer(t)
	token := loginTest(t, e)
	a := addNode(t, e, token, "Upload File")
	b := addNode(t, e, token, "Merge/Join")

	rec := doJSON(t, e, http.MethodPost, "/api/canvas/edges", token, map[string]any{
		"source": a.ID, "target": b.ID, "role": "left",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var edge models.Edge
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &edge))
	assert.Equal(t, models.EdgeRoleLeft, edge.Role)

	rec = doJSON(t, e, http.MethodPost, "/api/canvas/edges", token, map[string]any{
		"source": a.ID, "target": "missing",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
