// Package models defines the domain models shared between the studio server,
// the flowctl CLI and the data-engine client. JSON tags match the engine's
// REST surface exactly; the engine echoes nodes and edges back verbatim, so
// any shape drift here breaks round-tripping.
package models

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// EdgeRole marks which input of a binary node (Merge/Join, Concatenate) an
// edge feeds. Edges without a role fall back to array order, where the first
// edge into a node is treated as the primary input.
type EdgeRole string

const (
	EdgeRoleLeft  EdgeRole = "left"
	EdgeRoleRight EdgeRole = "right"
)

// Config is the open-ended per-node configuration object. Its shape depends
// on the node kind; internal/catalog owns the typed schemas.
type Config map[string]any

// String returns the string value stored under key, or "" when absent or not
// a string.
func (c Config) String(key string) string {
	s, _ := c[key].(string)
	return s
}

// Int returns the integer value stored under key. JSON numbers decode as
// float64 and form inputs store numbers as strings, so all three
// representations are accepted.
func (c Config) Int(key string, fallback int) int {
	switch v := c[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return int(n)
		}
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n
		}
	}
	return fallback
}

// Position is a canvas coordinate. It has no execution semantics.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// NodeData carries the render label, the human-readable action name and the
// per-node configuration. TypeLabel is the effective discriminator the engine
// dispatches on; Kind is the stable identifier resolved from it at creation
// time.
type NodeData struct {
	Label     string `json:"label"`
	TypeLabel string `json:"typeLabel"`
	Kind      string `json:"kind,omitempty"`
	Config    Config `json:"config"`
}

// Node is a unit of work in the workflow graph.
type Node struct {
	ID       string   `json:"id"`
	Type     string   `json:"type"`
	Position Position `json:"position"`
	Data     NodeData `json:"data"`
}

// Edge is a directed connection from one node's output to another's input.
type Edge struct {
	ID     string   `json:"id"`
	Source string   `json:"source"`
	Target string   `json:"target"`
	Role   EdgeRole `json:"role,omitempty"`
}

// Flow is the persisted unit: a named graph plus the result of its last
// execution, if any. Flows are owned by the engine; the studio holds a local
// working copy that diverges until explicitly saved.
type Flow struct {
	ID              int              `json:"id"`
	Name            string           `json:"name"`
	Nodes           []Node           `json:"nodes"`
	Edges           []Edge           `json:"edges"`
	UpdatedAt       time.Time        `json:"updated_at"`
	ExecutionResult *ExecutionResult `json:"executionResult,omitempty"`
}

// NodeOutput is the engine's computed output for a single node.
type NodeOutput struct {
	ID      string           `json:"id"`
	Type    string           `json:"type"`
	Config  Config           `json:"config"`
	Rows    int              `json:"rows"`
	Columns []string         `json:"columns"`
	Preview []map[string]any `json:"preview"`
	Stats   map[string]any   `json:"stats,omitempty"`
	// Image is a data URI produced by image-rendering nodes (Word Cloud).
	Image string `json:"image,omitempty"`
}

// FinalOutput describes the terminal node of an execution. Its columns seed
// the global column suggestions.
type FinalOutput struct {
	Rows    int              `json:"rows"`
	Columns []string         `json:"columns,omitempty"`
	Preview []map[string]any `json:"preview"`
	Stats   map[string]any   `json:"stats,omitempty"`
}

// ExecutionResult is the engine's response to one execution call. It is
// replaced wholesale on every execution, never merged incrementally.
type ExecutionResult struct {
	Status      string                `json:"status"`
	Message     string                `json:"message,omitempty"`
	NodeOutputs map[string]NodeOutput `json:"node_outputs"`
	FinalOutput *FinalOutput          `json:"final_output,omitempty"`
	Logs        []string              `json:"logs"`
}

// Succeeded reports whether the execution completed without a top-level
// failure. Per-node errors still surface through Logs.
func (r *ExecutionResult) Succeeded() bool {
	return r != nil && r.Status == "success"
}

// Output returns the output for a node id, if the last execution produced one.
func (r *ExecutionResult) Output(nodeID string) (NodeOutput, bool) {
	if r == nil || r.NodeOutputs == nil {
		return NodeOutput{}, false
	}
	out, ok := r.NodeOutputs[nodeID]
	return out, ok
}

// FileMeta describes an uploaded server-side file. Sheets is populated for
// spreadsheet uploads; Columns holds the declared header of the file (first
// sheet for spreadsheets).
type FileMeta struct {
	Name    string   `json:"name"`
	Path    string   `json:"path,omitempty"`
	Type    string   `json:"type,omitempty"`
	Size    int64    `json:"size,omitempty"`
	Sheets  []string `json:"sheets,omitempty"`
	Columns []string `json:"columns,omitempty"`
}
