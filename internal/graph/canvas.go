// Package graph holds the editable workflow graph: the node and edge
// collections behind the canvas, selection state, and the column-resolution
// walk the configuration panel depends on.
package graph

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"dataflow-studio/backend/internal/catalog"
	"dataflow-studio/backend/pkg/models"
)

var (
	// ErrIncompleteDrop is returned when a drop payload is missing the type
	// discriminator or the label. Such drops are ignored: no node is created.
	ErrIncompleteDrop = errors.New("graph: drop payload missing type or label")
	// ErrNodeNotFound is returned when an operation references an unknown
	// node id.
	ErrNodeNotFound = errors.New("graph: node not found")
	// ErrInvalidConfig is returned when a saved configuration fails its
	// kind's schema.
	ErrInvalidConfig = errors.New("graph: invalid node configuration")
)

// DropPayload is the drag-and-drop contract: both fields must be present for
// a drop to materialize a node.
type DropPayload struct {
	Type  string `json:"type"`
	Label string `json:"label"`
}

// Canvas is the live workflow graph of one builder session. All methods are
// safe for concurrent use; handlers and the run coordinator share one
// instance.
type Canvas struct {
	mu       sync.RWMutex
	nodes    []models.Node
	edges    []models.Edge
	selected string
	ordinal  int
}

// NewCanvas creates an empty canvas.
func NewCanvas() *Canvas {
	return &Canvas{}
}

// Load replaces the canvas contents with a saved flow's graph.
func (c *Canvas) Load(nodes []models.Node, edges []models.Edge) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nodes = append([]models.Node(nil), nodes...)
	c.edges = append([]models.Edge(nil), edges...)
	c.selected = ""
	c.ordinal = len(nodes)
}

// AddNode creates a node from a drop at the given position. The new node has
// an empty config, its display label mirrors the type label, and its kind is
// resolved from the label once, here. The node becomes the active selection.
func (c *Canvas) AddNode(drop DropPayload, pos models.Position) (models.Node, error) {
	if drop.Type == "" || drop.Label == "" {
		return models.Node{}, ErrIncompleteDrop
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.ordinal++
	node := models.Node{
		// The ordinal is a display aid only; it is not unique after edits.
		ID:       fmt.Sprintf("node_%d_%d", c.ordinal, time.Now().UnixMilli()),
		Type:     drop.Type,
		Position: pos,
		Data: models.NodeData{
			Label:     drop.Label,
			TypeLabel: drop.Label,
			Kind:      string(catalog.KindForLabel(drop.Label)),
			Config:    models.Config{},
		},
	}
	c.nodes = append(c.nodes, node)
	c.selected = node.ID
	return node, nil
}

// Connect appends a directed edge. No type-compatibility, cardinality or
// cycle validation happens here; the engine reports such problems through
// its execution logs. Role may be empty, in which case array order decides
// which parent is primary.
func (c *Canvas) Connect(source, target string, role models.EdgeRole) (models.Edge, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.findNode(source); !ok {
		return models.Edge{}, fmt.Errorf("%w: %s", ErrNodeNotFound, source)
	}
	if _, ok := c.findNode(target); !ok {
		return models.Edge{}, fmt.Errorf("%w: %s", ErrNodeNotFound, target)
	}

	edge := models.Edge{
		ID:     "edge_" + uuid.New().String(),
		Source: source,
		Target: target,
		Role:   role,
	}
	c.edges = append(c.edges, edge)
	return edge, nil
}

// Select marks a node as the single active selection and returns it.
func (c *Canvas) Select(id string) (models.Node, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	node, ok := c.findNode(id)
	if !ok {
		return models.Node{}, fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}
	c.selected = id
	return node, nil
}

// Selected returns the id of the active selection, or "".
func (c *Canvas) Selected() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.selected
}

// ClearSelection closes the configuration panel's selection.
func (c *Canvas) ClearSelection() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.selected = ""
}

// SaveConfig validates cfg against the node's kind, stores it as the node's
// configuration and recomputes the display label. The caller must trigger an
// execution afterwards; a saved config is not effective until the flow has
// been re-executed.
func (c *Canvas) SaveConfig(nodeID string, cfg models.Config) (models.Node, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	idx := -1
	for i := range c.nodes {
		if c.nodes[i].ID == nodeID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return models.Node{}, fmt.Errorf("%w: %s", ErrNodeNotFound, nodeID)
	}

	node := &c.nodes[idx]
	kind := catalog.Kind(node.Data.Kind)
	if err := catalog.ValidateConfig(kind, cfg); err != nil {
		return models.Node{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	node.Data.Config = cfg
	node.Data.Label = catalog.SummaryLabel(node.Data.TypeLabel, cfg)
	if c.selected == nodeID {
		c.selected = ""
	}
	return *node, nil
}

// MergeSuggestion appends a suggested subgraph to the live graph. It is a
// pure append: existing nodes and edges are never replaced or de-duplicated.
// Suggested nodes get their kind resolved if the suggester omitted it.
func (c *Canvas) MergeSuggestion(nodes []models.Node, edges []models.Edge) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, n := range nodes {
		if n.Data.Kind == "" {
			n.Data.Kind = string(catalog.KindForLabel(n.Data.TypeLabel))
		}
		if n.Data.Config == nil {
			n.Data.Config = models.Config{}
		}
		c.nodes = append(c.nodes, n)
		c.ordinal++
	}
	c.edges = append(c.edges, edges...)
}

// Nodes returns a copy of the node collection in insertion order.
func (c *Canvas) Nodes() []models.Node {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]models.Node(nil), c.nodes...)
}

// Edges returns a copy of the edge collection in insertion order.
func (c *Canvas) Edges() []models.Edge {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]models.Edge(nil), c.edges...)
}

// Node returns the node with the given id.
func (c *Canvas) Node(id string) (models.Node, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.findNode(id)
}

// Parents returns the source ids of all edges into nodeID. An edge carrying
// the "left" role is moved to the front; otherwise edge array order is kept,
// so the first connected edge supplies the primary input of binary nodes.
func (c *Canvas) Parents(nodeID string) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.parentsLocked(nodeID)
}

func (c *Canvas) parentsLocked(nodeID string) []string {
	var parents []string
	for _, e := range c.edges {
		if e.Target == nodeID {
			if e.Role == models.EdgeRoleLeft {
				parents = append([]string{e.Source}, parents...)
			} else {
				parents = append(parents, e.Source)
			}
		}
	}
	return parents
}

func (c *Canvas) findNode(id string) (models.Node, bool) {
	for _, n := range c.nodes {
		if n.ID == id {
			return n, true
		}
	}
	return models.Node{}, false
}
