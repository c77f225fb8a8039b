// Package engine is the HTTP client for the remote data-engine service. It
// only shapes requests and decodes responses; all data processing, flow
// persistence and chat memory live on the other side of this API.
package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"dataflow-studio/backend/pkg/models"
)

// APIError is a non-2xx engine response. Detail carries the engine's
// human-readable message when it sent one.
type APIError struct {
	Status int
	Detail string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("engine: %d: %s", e.Status, e.Detail)
	}
	return fmt.Sprintf("engine: unexpected status %d", e.Status)
}

// Client talks to the data engine.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a Client for the engine at baseURL. A zero timeout
// disables the client-side deadline; per-request contexts still apply.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

// Health reports whether the engine answers its root health route.
func (c *Client) Health(ctx context.Context) error {
	var out struct {
		Status string `json:"status"`
	}
	return c.get(ctx, "/", &out)
}

// Login verifies credentials and returns the engine-assigned user identity.
func (c *Client) Login(ctx context.Context, creds models.Credentials) (*models.LoginResponse, error) {
	var out models.LoginResponse
	if err := c.post(ctx, "/api/login", creds, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Signup registers a new user.
func (c *Client) Signup(ctx context.Context, creds models.Credentials) error {
	return c.post(ctx, "/api/signup", creds, nil)
}

// ListFiles returns the files previously uploaded by a user.
func (c *Client) ListFiles(ctx context.Context, userID int) ([]models.FileMeta, error) {
	var out struct {
		Files []models.FileMeta `json:"files"`
	}
	if err := c.get(ctx, "/api/files/"+strconv.Itoa(userID), &out); err != nil {
		return nil, err
	}
	return out.Files, nil
}

// Upload is one file blob of an UploadFiles call.
type Upload struct {
	Name   string
	Reader io.Reader
}

// UploadFiles sends file blobs to the engine and returns their metadata,
// including the declared columns (and sheet names for spreadsheets).
func (c *Client) UploadFiles(ctx context.Context, userID int, uploads []Upload) ([]models.FileMeta, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if err := mw.WriteField("user_id", strconv.Itoa(userID)); err != nil {
		return nil, fmt.Errorf("write user_id field: %w", err)
	}
	for _, u := range uploads {
		part, err := mw.CreateFormFile("files", u.Name)
		if err != nil {
			return nil, fmt.Errorf("create form file %s: %w", u.Name, err)
		}
		if _, err := io.Copy(part, u.Reader); err != nil {
			return nil, fmt.Errorf("copy %s: %w", u.Name, err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("finish multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/upload", &body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var out struct {
		Files []models.FileMeta `json:"files"`
	}
	if err := c.do(req, &out); err != nil {
		return nil, err
	}
	return out.Files, nil
}

// Execute submits the full node/edge set for execution. The engine returns
// per-node outputs keyed by node id, the terminal output and an ordered log.
func (c *Client) Execute(ctx context.Context, nodes []models.Node, edges []models.Edge) (*models.ExecutionResult, error) {
	payload := map[string]any{"nodes": nodes, "edges": edges}
	var out models.ExecutionResult
	if err := c.post(ctx, "/api/execute", payload, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SaveFlow persists a flow and returns its id. Passing a non-nil flowID
// updates that flow instead of creating a new one.
func (c *Client) SaveFlow(ctx context.Context, userID int, name string, nodes []models.Node, edges []models.Edge, flowID *int) (int, error) {
	payload := map[string]any{
		"user_id": userID,
		"name":    name,
		"nodes":   nodes,
		"edges":   edges,
		"flow_id": flowID,
	}
	var out struct {
		FlowID int `json:"flow_id"`
	}
	if err := c.post(ctx, "/api/flows/save", payload, &out); err != nil {
		return 0, err
	}
	return out.FlowID, nil
}

// ListFlows returns the saved flows of a user.
func (c *Client) ListFlows(ctx context.Context, userID int) ([]models.Flow, error) {
	var out struct {
		Flows []models.Flow `json:"flows"`
	}
	if err := c.get(ctx, "/api/flows/"+strconv.Itoa(userID), &out); err != nil {
		return nil, err
	}
	return out.Flows, nil
}

// DeleteFlow removes a saved flow. Callers are responsible for confirming
// the destructive action first.
func (c *Client) DeleteFlow(ctx context.Context, userID, flowID int) error {
	path := fmt.Sprintf("/api/flows/%d/%d", userID, flowID)
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	return c.do(req, nil)
}

// Chat sends a chat message with its data context and returns either a plain
// reply or a flow suggestion.
func (c *Client) Chat(ctx context.Context, req models.ChatRequest) (*models.ChatResponse, error) {
	var out models.ChatResponse
	if err := c.post(ctx, "/api/ai-chat", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ChatHistory returns the persisted transcript for a user+flow pair.
func (c *Client) ChatHistory(ctx context.Context, userID, flowID int) ([]models.ChatMessage, error) {
	path := fmt.Sprintf("/api/chat/history/%d/%d", userID, flowID)
	var out struct {
		History []models.ChatMessage `json:"history"`
	}
	if err := c.get(ctx, path, &out); err != nil {
		return nil, err
	}
	return out.History, nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	return c.do(req, out)
}

func (c *Client) post(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("engine request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode}
		var detail struct {
			Detail string `json:"detail"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&detail); err == nil {
			apiErr.Detail = detail.Detail
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response body: %w", err)
	}
	return nil
}
