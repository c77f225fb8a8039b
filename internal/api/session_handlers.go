package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"dataflow-studio/backend/internal/chat"
	"dataflow-studio/backend/internal/graph"
	"dataflow-studio/backend/internal/runner"
	"dataflow-studio/backend/internal/session"
	"dataflow-studio/backend/pkg/models"
)

// LoginResult is the studio's login response: the session token plus the
// engine-assigned identity.
type LoginResult struct {
	Token    string `json:"token"`
	UserID   int    `json:"user_id"`
	Username string `json:"username"`
}

// handleLogin verifies credentials against the engine, initializes a session
// and gives it a fresh workspace.
// (POST /api/session/login)
func (s *Server) handleLogin(c echo.Context) error {
	var creds models.Credentials
	if err := c.Bind(&creds); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body: "+err.Error())
	}
	if creds.Username == "" || creds.Password == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "username and password are required")
	}

	sess, err := s.sessions.Login(c.Request().Context(), creds)
	if err != nil {
		return engineError(err)
	}

	ws := &Workspace{
		Canvas: graph.NewCanvas(),
		Runner: runner.New(s.engine, s.logger),
		Chat:   chat.NewPanel(s.engine, s.logger),
	}
	ws.Chat.Open(c.Request().Context(), sess.UserID, nil)

	s.mu.Lock()
	s.workspaces[sess.Token] = ws
	s.mu.Unlock()

	s.logger.Info("session started", "user_id", sess.UserID, "username", sess.Username)
	return c.JSON(http.StatusOK, LoginResult{Token: sess.Token, UserID: sess.UserID, Username: sess.Username})
}

// handleSignup registers a new user. The client logs in separately.
// (POST /api/session/signup)
func (s *Server) handleSignup(c echo.Context) error {
	var creds models.Credentials
	if err := c.Bind(&creds); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body: "+err.Error())
	}
	if creds.Username == "" || creds.Password == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "username and password are required")
	}

	if err := s.sessions.Signup(c.Request().Context(), creds); err != nil {
		return engineError(err)
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "created"})
}

// handleLogout tears the session and its workspace down completely. Nothing
// of the canvas, results or transcript survives.
// (POST /api/session/logout)
func (s *Server) handleLogout(c echo.Context) error {
	sess := session.FromContext(c)
	if sess == nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "no session")
	}

	s.mu.Lock()
	delete(s.workspaces, sess.Token)
	s.mu.Unlock()
	s.sessions.Logout(sess.Token)

	s.logger.Info("session ended", "user_id", sess.UserID)
	return c.NoContent(http.StatusNoContent)
}
