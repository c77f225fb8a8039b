package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"dataflow-studio/backend/internal/graph"
	"dataflow-studio/backend/internal/runner"
	"dataflow-studio/backend/pkg/models"
)

// CanvasState is the full editing surface: every canvas read returns it.
type CanvasState struct {
	Nodes    []models.Node `json:"nodes"`
	Edges    []models.Edge `json:"edges"`
	Selected string        `json:"selected,omitempty"`
}

func canvasState(c *graph.Canvas) CanvasState {
	return CanvasState{Nodes: c.Nodes(), Edges: c.Edges(), Selected: c.Selected()}
}

// handleCanvas returns the current canvas.
// (GET /api/canvas)
func (s *Server) handleCanvas(c echo.Context) error {
	ws, _, err := s.workspace(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, canvasState(ws.Canvas))
}

// handleClearCanvas resets the workspace to an unsaved empty flow.
// (POST /api/canvas/clear)
func (s *Server) handleClearCanvas(c echo.Context) error {
	ws, sess, err := s.workspace(c)
	if err != nil {
		return err
	}
	ws.Canvas.Load(nil, nil)
	ws.Runner.SetLatest(nil)
	ws.Runner.SetColumns(nil)
	ws.bind(nil, "")
	ws.Chat.Open(c.Request().Context(), sess.UserID, nil)
	return c.JSON(http.StatusOK, canvasState(ws.Canvas))
}

type addNodeRequest struct {
	Type     string          `json:"type"`
	Label    string          `json:"label"`
	Position models.Position `json:"position"`
}

// handleAddNode drops a palette item onto the canvas. The new node becomes
// the selection, which also syncs the chat context to it.
// (POST /api/canvas/nodes)
func (s *Server) handleAddNode(c echo.Context) error {
	ws, _, err := s.workspace(c)
	if err != nil {
		return err
	}

	var req addNodeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body: "+err.Error())
	}

	node, err := ws.Canvas.AddNode(graph.DropPayload{Type: req.Type, Label: req.Label}, req.Position)
	if err != nil {
		if errors.Is(err, graph.ErrIncompleteDrop) {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	ws.Chat.SyncSelection(node.ID, ws.Runner.Latest())

	return c.JSON(http.StatusCreated, node)
}

type connectRequest struct {
	Source string          `json:"source"`
	Target string          `json:"target"`
	Role   models.EdgeRole `json:"role,omitempty"`
}

// handleConnect wires one node's output to another's input.
// (POST /api/canvas/edges)
func (s *Server) handleConnect(c echo.Context) error {
	ws, _, err := s.workspace(c)
	if err != nil {
		return err
	}

	var req connectRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body: "+err.Error())
	}

	edge, err := ws.Canvas.Connect(req.Source, req.Target, req.Role)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	return c.JSON(http.StatusCreated, edge)
}

// handleSelect makes a node the canvas selection and syncs the chat context.
// (POST /api/canvas/select/:id)
func (s *Server) handleSelect(c echo.Context) error {
	ws, _, err := s.workspace(c)
	if err != nil {
		return err
	}

	node, err := ws.Canvas.Select(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	ws.Chat.SyncSelection(node.ID, ws.Runner.Latest())
	return c.JSON(http.StatusOK, node)
}

// handleClearSelection deselects. The chat context keeps its last node.
// (DELETE /api/canvas/select)
func (s *Server) handleClearSelection(c echo.Context) error {
	ws, _, err := s.workspace(c)
	if err != nil {
		return err
	}
	ws.Canvas.ClearSelection()
	return c.NoContent(http.StatusNoContent)
}

type saveConfigRequest struct {
	Config models.Config `json:"config"`
}

// SaveConfigResult reports the updated node and the execution the save
// triggered. A failed execution does not fail the save; the message explains
// what went wrong and the previous result stays available.
type SaveConfigResult struct {
	Node           models.Node             `json:"node"`
	Execution      *models.ExecutionResult `json:"execution,omitempty"`
	ExecutionError string                  `json:"execution_error,omitempty"`
}

// handleSaveConfig replaces a node's configuration and triggers exactly one
// execution of the whole flow.
// (PUT /api/canvas/nodes/:id/config)
func (s *Server) handleSaveConfig(c echo.Context) error {
	ws, _, err := s.workspace(c)
	if err != nil {
		return err
	}

	var req saveConfigRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body: "+err.Error())
	}

	node, err := ws.Canvas.SaveConfig(c.Param("id"), req.Config)
	if err != nil {
		switch {
		case errors.Is(err, graph.ErrNodeNotFound):
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		case errors.Is(err, graph.ErrInvalidConfig):
			return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
		default:
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
	}

	res := SaveConfigResult{Node: node}
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

// ColumnsResult carries the columns offered to a node's configuration form.
// NeedsRun is the hint shown when nothing upstream has produced a schema yet.
type ColumnsResult struct {
	Columns  []string `json:"columns"`
	NeedsRun bool     `json:"needs_run"`
}

// handleResolveColumns resolves the column options for one node's form.
// (GET /api/canvas/nodes/:id/columns)
func (s *Server) handleResolveColumns(c echo.Context) error {
	ws, _, err := s.workspace(c)
	if err != nil {
		return err
	}

	id := c.Param("id")
	if _, ok := ws.Canvas.Node(id); !ok {
		return echo.NewHTTPError(http.StatusNotFound, "node not found")
	}

	cols := ws.Canvas.ResolveColumns(id, ws.Runner.Latest(), ws.Runner.Columns())
	if cols == nil {
		cols = []string{}
	}
	return c.JSON(http.StatusOK, ColumnsResult{Columns: cols, NeedsRun: len(cols) == 0})
}
