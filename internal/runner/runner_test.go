package runner

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dataflow-studio/backend/internal/logging"
	"dataflow-studio/backend/pkg/models"
)

// scriptedClient returns queued responses; a response can be held back on a
// gate channel to interleave two in-flight executions deterministically.
type scriptedClient struct {
	mu    sync.Mutex
	calls int
	fn    func(ctx context.Context, call int) (*models.ExecutionResult, error)
}

func (s *scriptedClient) Execute(ctx context.Context, nodes []models.Node, edges []models.Edge) (*models.ExecutionResult, error) {
	s.mu.Lock()
	s.calls++
	call := s.calls
	s.mu.Unlock()
	return s.fn(ctx, call)
}

func testLogger() *logging.Logger {
	return logging.NewLoggerWithWriter(io.Discard)
}

func successResult(status string, cols ...string) *models.ExecutionResult {
	return &models.ExecutionResult{
		Status:      status,
		NodeOutputs: map[string]models.NodeOutput{},
		FinalOutput: &models.FinalOutput{Columns: cols},
	}
}

func TestExecuteAppliesResult(t *testing.T) {
	client := &scriptedClient{fn: func(ctx context.Context, call int) (*models.ExecutionResult, error) {
		return successResult("success", "a", "b"), nil
	}}
	r := New(client, testLogger())

	result, err := r.Execute(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.True(t, result.Succeeded())
	assert.Equal(t, result, r.Latest())
	assert.Equal(t, []string{"a", "b"}, r.Columns(), "terminal output seeds the global columns")
}

func TestExecuteFailureKeepsPreviousResult(t *testing.T) {
	boom := errors.New("engine down")
	client := &scriptedClient{fn: func(ctx context.Context, call int) (*models.ExecutionResult, error) {
		if call == 1 {
			return successResult("success", "a"), nil
		}
		return nil, boom
	}}
	r := New(client, testLogger())

	first, err := r.Execute(context.Background(), nil, nil)
	require.NoError(t, err)

	_, err = r.Execute(context.Background(), nil, nil)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, first, r.Latest(), "a failed run never clobbers the last good result")
	assert.Equal(t, []string{"a"}, r.Columns())
}

func TestStaleResponseIsDiscarded(t *testing.T) {
	gate := make(chan struct{})
	client := &scriptedClient{fn: func(ctx context.Context, call int) (*models.ExecutionResult, error) {
		if call == 1 {
			// First request resolves last.
			<-gate
			return successResult("success", "old"), nil
		}
		return successResult("success", "new"), nil
	}}
	r := New(client, testLogger())

	var wg sync.WaitGroup
	var firstErr error
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, firstErr = r.Execute(context.Background(), nil, nil)
	}()

	// Make sure the first request is in flight before issuing the second.
	require.Eventually(t, func() bool {
		client.mu.Lock()
		defer client.mu.Unlock()
		return client.calls == 1
	}, time.Second, time.Millisecond)

	second, err := r.Execute(context.Background(), nil, nil)
	require.NoError(t, err)

	close(gate)
	wg.Wait()

	assert.ErrorIs(t, firstErr, ErrSuperseded, "the older request must not win")
	assert.Equal(t, second, r.Latest())
	assert.Equal(t, []string{"new"}, r.Columns())
}

func TestNewRequestCancelsInFlight(t *testing.T) {
	client := &scriptedClient{fn: func(ctx context.Context, call int) (*models.ExecutionResult, error) {
		if call == 1 {
			<-ctx.Done()
			return nil, ctx.Err()
		}
		return successResult("success"), nil
	}}
	r := New(client, testLogger())

	var wg sync.WaitGroup
	var firstErr error
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, firstErr = r.Execute(context.Background(), nil, nil)
	}()

	require.Eventually(t, func() bool {
		client.mu.Lock()
		defer client.mu.Unlock()
		return client.calls == 1
	}, time.Second, time.Millisecond)

	_, err := r.Execute(context.Background(), nil, nil)
	require.NoError(t, err)

	wg.Wait()
	assert.ErrorIs(t, firstErr, context.Canceled)
}

func TestSyncColumnsFallsBackToLastExecutedNode(t *testing.T) {
	nodes := []models.Node{{ID: "n1"}, {ID: "n2"}, {ID: "n3"}}
	client := &scriptedClient{fn: func(ctx context.Context, call int) (*models.ExecutionResult, error) {
		return &models.ExecutionResult{
			Status: "success",
			NodeOutputs: map[string]models.NodeOutput{
				"n1": {ID: "n1", Columns: []string{"first"}},
				"n2": {ID: "n2", Columns: []string{"last"}},
				"n3": {ID: "n3"}, // terminal node produced no columns
			},
		}, nil
	}}
	r := New(client, testLogger())

	_, err := r.Execute(context.Background(), nodes, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"last"}, r.Columns(), "the last node with columns wins")
}

func TestSyncColumnsFallsBackToUpload(t *testing.T) {
	nodes := []models.Node{{
		ID: "up",
		Data: models.NodeData{Config: models.Config{
			"uploadedFiles": []models.FileMeta{{Name: "a.csv", Columns: []string{"u1", "u2"}}},
		}},
	}}
	client := &scriptedClient{fn: func(ctx context.Context, call int) (*models.ExecutionResult, error) {
		return &models.ExecutionResult{Status: "success", NodeOutputs: map[string]models.NodeOutput{}}, nil
	}}
	r := New(client, testLogger())

	_, err := r.Execute(context.Background(), nodes, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"u1", "u2"}, r.Columns())
}

func TestSetLatestFromLoadedFlow(t *testing.T) {
	r := New(&scriptedClient{}, testLogger())
	stored := successResult("success", "s1")

	r.SetLatest(stored)
	assert.Equal(t, stored, r.Latest())
	assert.Equal(t, []string{"s1"}, r.Columns())

	r.SetLatest(nil)
	assert.Nil(t, r.Latest())
}
