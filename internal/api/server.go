// Package api contains the HTTP handlers for the studio server.
package api

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"

	"dataflow-studio/backend/internal/catalog"
	"dataflow-studio/backend/internal/chat"
	"dataflow-studio/backend/internal/engine"
	"dataflow-studio/backend/internal/graph"
	"dataflow-studio/backend/internal/logging"
	"dataflow-studio/backend/internal/runner"
	"dataflow-studio/backend/internal/session"
	"dataflow-studio/backend/pkg/models"
)

// Engine is the slice of the data-engine client the API depends on. The
// concrete implementation is engine.Client; tests substitute a stub.
type Engine interface {
	Login(ctx context.Context, creds models.Credentials) (*models.LoginResponse, error)
	Signup(ctx context.Context, creds models.Credentials) error
	ListFiles(ctx context.Context, userID int) ([]models.FileMeta, error)
	UploadFiles(ctx context.Context, userID int, uploads []engine.Upload) ([]models.FileMeta, error)
	Execute(ctx context.Context, nodes []models.Node, edges []models.Edge) (*models.ExecutionResult, error)
	SaveFlow(ctx context.Context, userID int, name string, nodes []models.Node, edges []models.Edge, flowID *int) (int, error)
	ListFlows(ctx context.Context, userID int) ([]models.Flow, error)
	DeleteFlow(ctx context.Context, userID, flowID int) error
	Chat(ctx context.Context, req models.ChatRequest) (*models.ChatResponse, error)
	ChatHistory(ctx context.Context, userID, flowID int) ([]models.ChatMessage, error)
}

// Server holds the dependencies for the API server.
type Server struct {
	engine   Engine
	sessions *session.Manager
	logger   *logging.Logger

	mu         sync.Mutex
	workspaces map[string]*Workspace
}

// NewServer creates a new Server.
func NewServer(eng Engine, sessions *session.Manager, logger *logging.Logger) *Server {
	return &Server{
		engine:     eng,
		sessions:   sessions,
		logger:     logger,
		workspaces: make(map[string]*Workspace),
	}
}

// Workspace is the per-session editing state: the canvas, the execution
// coordinator and the chat transcript. It exists from login to logout.
type Workspace struct {
	Canvas *graph.Canvas
	Runner *runner.Runner
	Chat   *chat.Panel

	mu       sync.Mutex
	flowID   *int
	flowName string
}

// Flow returns the flow the workspace is bound to, if any.
func (w *Workspace) Flow() (*int, string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.flowID, w.flowName
}

func (w *Workspace) bind(flowID *int, name string) {
	w.mu.Lock()
	w.flowID = flowID
	w.flowName = name
	w.mu.Unlock()
}

// Register wires all routes onto e.
func (s *Server) Register(e *echo.Echo) {
	e.GET("/health", s.handleHealth)

	api := e.Group("/api")
	api.POST("/session/login", s.handleLogin)
	api.POST("/session/signup", s.handleSignup)

	g := api.Group("", session.Middleware(s.sessions))
	g.POST("/session/logout", s.handleLogout)

	g.GET("/catalog", s.handleCatalog)

	g.GET("/files", s.handleListFiles)
	g.POST("/files", s.handleUpload)

	g.GET("/flows", s.handleListFlows)
	g.POST("/flows/save", s.handleSaveFlow)
	g.POST("/flows/:id/open", s.handleOpenFlow)
	g.DELETE("/flows/:id", s.handleDeleteFlow)

	g.GET("/canvas", s.handleCanvas)
	g.POST("/canvas/clear", s.handleClearCanvas)
	g.POST("/canvas/nodes", s.handleAddNode)
	g.POST("/canvas/edges", s.handleConnect)
	g.POST("/canvas/select/:id", s.handleSelect)
	g.DELETE("/canvas/select", s.handleClearSelection)
	g.PUT("/canvas/nodes/:id/config", s.handleSaveConfig)
	g.GET("/canvas/nodes/:id/columns", s.handleResolveColumns)

	g.POST("/execute", s.handleExecute)
	g.GET("/results", s.handleResults)
	g.GET("/report", s.handleReport)

	g.GET("/chat/messages", s.handleChatMessages)
	g.POST("/chat/messages", s.handleChatSend)
	g.POST("/chat/context/:id", s.handleChatToggleContext)
	g.POST("/chat/apply", s.handleChatApply)
}

type healthStatus struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Service   string    `json:"service"`
	Version   string    `json:"version"`
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, healthStatus{
		Status:    "ok",
		Timestamp: time.Now(),
		Service:   "dataflow-studio",
		Version:   "1.0.0",
	})
}

func (s *Server) handleCatalog(c echo.Context) error {
	return c.JSON(http.StatusOK, catalog.Categories)
}

// workspace returns the calling session's workspace. Sessions always get one
// at login, so a miss means the session was torn down underneath the caller.
func (s *Server) workspace(c echo.Context) (*Workspace, *session.Session, error) {
	sess := session.FromContext(c)
	if sess == nil {
		return nil, nil, echo.NewHTTPError(http.StatusUnauthorized, "no session")
	}
	s.mu.Lock()
	ws, ok := s.workspaces[sess.Token]
	s.mu.Unlock()
	if !ok {
		return nil, nil, echo.NewHTTPError(http.StatusUnauthorized, "session has no workspace")
	}
	return ws, sess, nil
}

// engineError maps an engine client failure onto an HTTP error, preserving
// the engine's status and detail when it responded at all.
func engineError(err error) *echo.HTTPError {
	var apiErr *engine.APIError
	if errors.As(err, &apiErr) {
		return echo.NewHTTPError(apiErr.Status, apiErr.Detail)
	}
	return echo.NewHTTPError(http.StatusBadGateway, err.Error())
}
