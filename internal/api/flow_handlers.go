package api

import (
	"errors"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"dataflow-studio/backend/internal/catalog"
	"dataflow-studio/backend/internal/engine"
	"dataflow-studio/backend/internal/report"
	"dataflow-studio/backend/internal/runner"
	"dataflow-studio/backend/pkg/models"
)

// handleListFiles returns the caller's uploaded datasets.
// (GET /api/files)
func (s *Server) handleListFiles(c echo.Context) error {
	_, sess, err := s.workspace(c)
	if err != nil {
		return err
	}
	files, err := s.engine.ListFiles(c.Request().Context(), sess.UserID)
	if err != nil {
		return engineError(err)
	}
	return c.JSON(http.StatusOK, files)
}

// handleUpload forwards multipart files to the engine and returns their
// parsed metadata (sheets, columns).
// (POST /api/files)
func (s *Server) handleUpload(c echo.Context) error {
	_, sess, err := s.workspace(c)
	if err != nil {
		return err
	}

	form, err := c.MultipartForm()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid multipart form: "+err.Error())
	}
	headers := form.File["files"]
	if len(headers) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "no files in request")
	}

	uploads := make([]engine.Upload, 0, len(headers))
	for _, h := range headers {
		f, err := h.Open()
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "cannot read file "+h.Filename)
		}
		defer f.Close()
		uploads = append(uploads, engine.Upload{Name: h.Filename, Reader: f})
	}

	files, err := s.engine.UploadFiles(c.Request().Context(), sess.UserID, uploads)
	if err != nil {
		return engineError(err)
	}
	return c.JSON(http.StatusOK, files)
}

// handleListFlows returns the caller's saved flows, newest first as the
// engine orders them.
// (GET /api/flows)
func (s *Server) handleListFlows(c echo.Context) error {
	_, sess, err := s.workspace(c)
	if err != nil {
		return err
	}
	flows, err := s.engine.ListFlows(c.Request().Context(), sess.UserID)
	if err != nil {
		return engineError(err)
	}
	return c.JSON(http.StatusOK, flows)
}

type saveFlowRequest struct {
	Name string `json:"name"`
}

// handleSaveFlow persists the current canvas under a name. When the
// workspace is bound to a flow the save overwrites it; otherwise the engine
// assigns a new id and the workspace binds to it.
// (POST /api/flows/save)
func (s *Server) handleSaveFlow(c echo.Context) error {
	ws, sess, err := s.workspace(c)
	if err != nil {
		return err
	}

	var req saveFlowRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body: "+err.Error())
	}
	if req.Name == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "flow name is required")
	}

	flowID, _ := ws.Flow()
	id, err := s.engine.SaveFlow(c.Request().Context(), sess.UserID, req.Name, ws.Canvas.Nodes(), ws.Canvas.Edges(), flowID)
	if err != nil {
		return engineError(err)
	}
	ws.bind(&id, req.Name)

	return c.JSON(http.StatusOK, map[string]int{"flow_id": id})
}

// OpenFlowResult is the loaded canvas plus, when run=true was requested,
// the fresh execution result. An execution failure never unloads the flow;
// it comes back as ExecutionError with the previous result intact.
type OpenFlowResult struct {
	Canvas         CanvasState             `json:"canvas"`
	Execution      *models.ExecutionResult `json:"execution,omitempty"`
	ExecutionError string                  `json:"execution_error,omitempty"`
}

// handleOpenFlow loads a saved flow into the workspace: graph onto the
// canvas, its stored execution result into the runner, and the flow's chat
// history into the panel. With ?run=true the flow is executed immediately
// after loading, as the gallery "run" action does.
// (POST /api/flows/:id/open)
func (s *Server) handleOpenFlow(c echo.Context) error {
	ws, sess, err := s.workspace(c)
	if err != nil {
		return err
	}

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid flow id")
	}

	flows, err := s.engine.ListFlows(c.Request().Context(), sess.UserID)
	if err != nil {
		return engineError(err)
	}
	for _, f := range flows {
		if f.ID != id {
			continue
		}
		ws.Canvas.Load(f.Nodes, f.Edges)
		ws.Runner.SetLatest(f.ExecutionResult)
		ws.Runner.SetColumns(nil)
		ws.bind(&f.ID, f.Name)
		ws.Chat.Open(c.Request().Context(), sess.UserID, &f.ID)

		out := OpenFlowResult{Canvas: canvasState(ws.Canvas)}
		if c.QueryParam("run") == "true" {
			result, execErr := ws.Runner.Execute(c.Request().Context(), ws.Canvas.Nodes(), ws.Canvas.Edges())
			switch {
			case execErr == nil:
				out.Execution = result
			case errors.Is(execErr, runner.ErrSuperseded):
				out.Execution = ws.Runner.Latest()
			default:
				out.ExecutionError = execErr.Error()
			}
		}
		return c.JSON(http.StatusOK, out)
	}
	return echo.NewHTTPError(http.StatusNotFound, "flow not found")
}

// handleDeleteFlow deletes a saved flow. Deletion is destructive, so the
// request must carry confirm=true; without it nothing happens.
// (DELETE /api/flows/:id?confirm=true)
func (s *Server) handleDeleteFlow(c echo.Context) error {
	ws, sess, err := s.workspace(c)
	if err != nil {
		return err
	}

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid flow id")
	}
	if c.QueryParam("confirm") != "true" {
		return echo.NewHTTPError(http.StatusBadRequest, "deletion requires confirm=true")
	}

	if err := s.engine.DeleteFlow(c.Request().Context(), sess.UserID, id); err != nil {
		return engineError(err)
	}

	// Unbind so the next save does not resurrect the deleted flow's id.
	if bound, _ := ws.Flow(); bound != nil && *bound == id {
		ws.bind(nil, "")
	}
	s.logger.Info("flow deleted", "user_id", sess.UserID, "flow_id", id)
	return c.NoContent(http.StatusNoContent)
}

// handleExecute runs the current canvas against the engine. When a newer run
// supersedes this one, the newer run's result is returned instead.
// (POST /api/execute)
func (s *Server) handleExecute(c echo.Context) error {
	ws, _, err := s.workspace(c)
	if err != nil {
		return err
	}

	result, err := ws.Runner.Execute(c.Request().Context(), ws.Canvas.Nodes(), ws.Canvas.Edges())
	if err != nil {
		if errors.Is(err, runner.ErrSuperseded) {
			return c.JSON(http.StatusOK, ws.Runner.Latest())
		}
		return engineError(err)
	}
	return c.JSON(http.StatusOK, result)
}

// ResultsState is the last applied execution plus the global column set
// derived from it. PanelOutputs is the displayable subset of node outputs,
// in canvas order.
type ResultsState struct {
	Result       *models.ExecutionResult `json:"result"`
	Columns      []string                `json:"columns"`
	PanelOutputs []models.NodeOutput     `json:"panel_outputs"`
	Logs         []LogEntry              `json:"logs"`
}

// panelOutputs filters node outputs down to the types the results panel
// displays: canvas order first, then outputs of since-removed nodes sorted
// by id.
func panelOutputs(result *models.ExecutionResult, nodes []models.Node) []models.NodeOutput {
	if result == nil {
		return nil
	}
	seen := make(map[string]bool, len(nodes))
	var out []models.NodeOutput
	for _, n := range nodes {
		seen[n.ID] = true
		if o, ok := result.NodeOutputs[n.ID]; ok && catalog.PanelVisible(o.Type) {
			out = append(out, o)
		}
	}
	var rest []string
	for id, o := range result.NodeOutputs {
		if !seen[id] && catalog.PanelVisible(o.Type) {
			rest = append(rest, id)
		}
	}
	sort.Strings(rest)
	for _, id := range rest {
		out = append(out, result.NodeOutputs[id])
	}
	return out
}

// LogEntry is one execution log line, flagged when it reports an error so
// the logs tab can highlight it.
type LogEntry struct {
	Text    string `json:"text"`
	IsError bool   `json:"isError"`
}

func logEntries(result *models.ExecutionResult) []LogEntry {
	if result == nil {
		return nil
	}
	entries := make([]LogEntry, 0, len(result.Logs))
	for _, line := range result.Logs {
		entries = append(entries, LogEntry{Text: line, IsError: strings.Contains(line, "Error")})
	}
	return entries
}

// handleResults returns the last applied execution result.
// (GET /api/results)
func (s *Server) handleResults(c echo.Context) error {
	ws, _, err := s.workspace(c)
	if err != nil {
		return err
	}
	result := ws.Runner.Latest()
	return c.JSON(http.StatusOK, ResultsState{
		Result:       result,
		Columns:      ws.Runner.Columns(),
		PanelOutputs: panelOutputs(result, ws.Canvas.Nodes()),
		Logs:         logEntries(result),
	})
}

// handleReport builds the dashboard document for the last execution.
// (GET /api/report)
func (s *Server) handleReport(c echo.Context) error {
	ws, _, err := s.workspace(c)
	if err != nil {
		return err
	}

	result := ws.Runner.Latest()
	if result == nil {
		return echo.NewHTTPError(http.StatusConflict, "no execution result; run the flow first")
	}
	_, name := ws.Flow()
	if name == "" {
		name = "Untitled Report"
	}
	return c.JSON(http.StatusOK, report.Build(name, result, ws.Canvas.Nodes()))
}
