// Package runner coordinates workflow executions against the data engine.
// It is the single writer of the shared execution result: every save,
// manual run and suggestion merge funnels through here, and responses from
// superseded requests are discarded instead of clobbering newer state.
package runner

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"dataflow-studio/backend/internal/graph"
	"dataflow-studio/backend/internal/logging"
	"dataflow-studio/backend/pkg/models"
)

// ErrSuperseded is returned when an execution response arrives after a newer
// request has already been applied. The response is dropped.
var ErrSuperseded = errors.New("runner: execution superseded by a newer request")

// ExecuteClient is the slice of the engine client the runner needs.
type ExecuteClient interface {
	Execute(ctx context.Context, nodes []models.Node, edges []models.Edge) (*models.ExecutionResult, error)
}

// Runner holds the latest execution result and the globally tracked column
// list for one builder session.
type Runner struct {
	client ExecuteClient
	logger *logging.Logger

	seq atomic.Uint64

	mu      sync.Mutex
	applied uint64
	latest  *models.ExecutionResult
	columns []string
	cancel  context.CancelFunc
}

// New creates a Runner executing through client.
func New(client ExecuteClient, logger *logging.Logger) *Runner {
	return &Runner{client: client, logger: logger}
}

// Execute submits the node/edge set to the engine. Each call gets a
// monotonically increasing sequence number; a response whose sequence is
// older than the latest applied one is discarded with ErrSuperseded, and
// issuing a new request cancels the one still in flight. On failure the
// previous result stays in place.
func (r *Runner) Execute(ctx context.Context, nodes []models.Node, edges []models.Edge) (*models.ExecutionResult, error) {
	seq := r.seq.Add(1)

	runCtx, cancel := context.WithCancel(ctx)
	r.mu.Lock()
	if r.cancel != nil {
		r.cancel()
	}
	r.cancel = cancel
	r.mu.Unlock()

	result, err := r.client.Execute(runCtx, nodes, edges)
	if err != nil {
		r.logger.Error("workflow execution failed", "seq", seq, "error", err)
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if seq < r.applied {
		r.logger.Info("discarding stale execution response", "seq", seq, "applied", r.applied)
		return nil, ErrSuperseded
	}
	r.applied = seq
	r.latest = result
	r.syncColumns(result, nodes)
	return result, nil
}

// Latest returns the most recently applied execution result, or nil before
// the first successful run.
func (r *Runner) Latest() *models.ExecutionResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.latest
}

// SetLatest seeds the result store from a loaded flow's stored execution.
func (r *Runner) SetLatest(result *models.ExecutionResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.latest = result
	if result != nil {
		r.syncColumns(result, nil)
	}
}

// Columns returns the globally tracked column list: the columns of the most
// recently executed node, or of the most recent upload when nothing has run.
func (r *Runner) Columns() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.columns...)
}

// SetColumns replaces the global column list, typically from a fresh upload.
func (r *Runner) SetColumns(cols []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.columns = append([]string(nil), cols...)
}

// syncColumns refreshes the global column list from an applied result: the
// terminal output wins, else the last submitted node with output columns.
// Callers hold r.mu.
func (r *Runner) syncColumns(result *models.ExecutionResult, nodes []models.Node) {
	if result.FinalOutput != nil && len(result.FinalOutput.Columns) > 0 {
		r.columns = result.FinalOutput.Columns
		return
	}
	for i := len(nodes) - 1; i >= 0; i-- {
		if out, ok := result.Output(nodes[i].ID); ok && len(out.Columns) > 0 {
			r.columns = out.Columns
			return
		}
	}
	for i := len(nodes) - 1; i >= 0; i-- {
		if cols := graph.UploadColumns(nodes[i]); len(cols) > 0 {
			r.columns = cols
			return
		}
	}
}
