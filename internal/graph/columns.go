package graph

import "dataflow-studio/backend/pkg/models"

// ResolveColumns determines the selectable columns for a node's
// configuration form. The resolution order is fixed:
//
//  1. the node's own uploaded-file columns (source nodes are
//     self-describing),
//  2. the immediate first parent's columns from the last execution result,
//  3. a depth-first upward search through ancestors for an uploaded-file
//     column list, first successful branch wins,
//  4. the globally tracked column list.
//
// The walk carries a visited set; revisiting a node counts as "no columns
// via this path" instead of recursing forever. An empty return means the
// form must show an explicit no-columns state, not an empty selector.
func (c *Canvas) ResolveColumns(nodeID string, result *models.ExecutionResult, global []string) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	node, ok := c.findNode(nodeID)
	if !ok {
		return global
	}

	if cols := UploadColumns(node); len(cols) > 0 {
		return cols
	}

	parents := c.parentsLocked(nodeID)
	if len(parents) > 0 {
		if out, ok := result.Output(parents[0]); ok && len(out.Columns) > 0 {
			return out.Columns
		}
		visited := map[string]bool{nodeID: true}
		for _, p := range parents {
			if cols := c.searchUpload(p, visited); len(cols) > 0 {
				return cols
			}
		}
	}

	return global
}

// searchUpload walks upward from id looking for a node whose config declares
// uploaded-file columns.
func (c *Canvas) searchUpload(id string, visited map[string]bool) []string {
	if visited[id] {
		return nil
	}
	visited[id] = true

	if node, ok := c.findNode(id); ok {
		if cols := UploadColumns(node); len(cols) > 0 {
			return cols
		}
	}
	for _, p := range c.parentsLocked(id) {
		if cols := c.searchUpload(p, visited); len(cols) > 0 {
			return cols
		}
	}
	return nil
}

// UploadColumns extracts the declared columns of the first uploaded file in
// a node's config, if any. The config map holds JSON-decoded values, so the
// nested shapes are []any and map[string]any.
func UploadColumns(node models.Node) []string {
	// The upload handler stores typed metadata; configs arriving over the
	// wire decode to generic maps. Accept both.
	if metas, ok := node.Data.Config["uploadedFiles"].([]models.FileMeta); ok {
		if len(metas) > 0 {
			return metas[0].Columns
		}
		return nil
	}
	files, ok := node.Data.Config["uploadedFiles"].([]any)
	if !ok || len(files) == 0 {
		return nil
	}
	first, ok := files[0].(map[string]any)
	if !ok {
		return nil
	}
	raw, ok := first["columns"].([]any)
	if !ok {
		return nil
	}
	cols := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			cols = append(cols, s)
		}
	}
	return cols
}
