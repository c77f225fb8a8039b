package graph

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dataflow-studio/backend/internal/catalog"
	"dataflow-studio/backend/pkg/models"
)

func TestAddNode(t *testing.T) {
	c := NewCanvas()

	node, err := c.AddNode(DropPayload{Type: "custom", Label: "Upload File"}, models.Position{X: 120, Y: 80})
	require.NoError(t, err)

	assert.Regexp(t, regexp.MustCompile(`^node_1_\d+$`), node.ID)
	assert.Equal(t, "custom", node.Type)
	assert.Equal(t, "Upload File", node.Data.Label)
	assert.Equal(t, "Upload File", node.Data.TypeLabel)
	assert.Equal(t, string(catalog.KindUploadFile), node.Data.Kind)
	assert.NotNil(t, node.Data.Config)
	assert.Equal(t, node.ID, c.Selected(), "a dropped node becomes the selection")

	second, err := c.AddNode(DropPayload{Type: "custom", Label: "Bar Chart"}, models.Position{})
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^node_2_\d+$`), second.ID)
	assert.Equal(t, second.ID, c.Selected())
}

func TestAddNodeIncompleteDrop(t *testing.T) {
	c := NewCanvas()

	_, err := c.AddNode(DropPayload{Type: "custom"}, models.Position{})
	assert.ErrorIs(t, err, ErrIncompleteDrop)
	_, err = c.AddNode(DropPayload{Label: "Bar Chart"}, models.Position{})
	assert.ErrorIs(t, err, ErrIncompleteDrop)
	assert.Empty(t, c.Nodes(), "an incomplete drop must not create a node")
}

func TestAddNodeUnknownLabel(t *testing.T) {
	c := NewCanvas()
	node, err := c.AddNode(DropPayload{Type: "custom", Label: "Quantum Annealer"}, models.Position{})
	require.NoError(t, err)
	assert.Equal(t, string(catalog.KindUnknown), node.Data.Kind)
}

func TestConnect(t *testing.T) {
	c := NewCanvas()
	a, _ := c.AddNode(DropPayload{Type: "custom", Label: "Upload File"}, models.Position{})
	b, _ := c.AddNode(DropPayload{Type: "custom", Label: "Bar Chart"}, models.Position{})

	edge, err := c.Connect(a.ID, b.ID, "")
	require.NoError(t, err)
	assert.Equal(t, a.ID, edge.Source)
	assert.Equal(t, b.ID, edge.Target)
	assert.NotEmpty(t, edge.ID)

	_, err = c.Connect(a.ID, "node_missing", "")
	assert.ErrorIs(t, err, ErrNodeNotFound)
	_, err = c.Connect("node_missing", b.ID, "")
	assert.ErrorIs(t, err, ErrNodeNotFound)
	assert.Len(t, c.Edges(), 1)
}

func TestParentsLeftRoleFirst(t *testing.T) {
	c := NewCanvas()
	left, _ := c.AddNode(DropPayload{Type: "custom", Label: "Upload File"}, models.Position{})
	right, _ := c.AddNode(DropPayload{Type: "custom", Label: "Read Data"}, models.Position{})
	merge, _ := c.AddNode(DropPayload{Type: "custom", Label: "Merge/Join"}, models.Position{})

	// Connect the right side first; the left role must still win.
	_, err := c.Connect(right.ID, merge.ID, models.EdgeRoleRight)
	require.NoError(t, err)
	_, err = c.Connect(left.ID, merge.ID, models.EdgeRoleLeft)
	require.NoError(t, err)

	assert.Equal(t, []string{left.ID, right.ID}, c.Parents(merge.ID))
}

func TestParentsWithoutRolesKeepArrayOrder(t *testing.T) {
	c := NewCanvas()
	a, _ := c.AddNode(DropPayload{Type: "custom", Label: "Upload File"}, models.Position{})
	b, _ := c.AddNode(DropPayload{Type: "custom", Label: "Read Data"}, models.Position{})
	target, _ := c.AddNode(DropPayload{Type: "custom", Label: "Concatenate"}, models.Position{})

	c.Connect(a.ID, target.ID, "")
	c.Connect(b.ID, target.ID, "")

	assert.Equal(t, []string{a.ID, b.ID}, c.Parents(target.ID))
}

func TestSaveConfig(t *testing.T) {
	c := NewCanvas()
	node, _ := c.AddNode(DropPayload{Type: "custom", Label: "Bar Chart"}, models.Position{})

	updated, err := c.SaveConfig(node.ID, models.Config{"column": "region", "title": "By Region"})
	require.NoError(t, err)

	assert.Equal(t, "Bar Chart: region", updated.Data.Label)
	assert.Equal(t, "Bar Chart", updated.Data.TypeLabel, "the type label never changes")
	assert.Equal(t, "region", updated.Data.Config.String("column"))
	assert.Empty(t, c.Selected(), "saving closes the configuration panel")
}

func TestSaveConfigReplacesWholesale(t *testing.T) {
	c := NewCanvas()
	node, _ := c.AddNode(DropPayload{Type: "custom", Label: "Bar Chart"}, models.Position{})

	_, err := c.SaveConfig(node.ID, models.Config{"column": "region", "title": "By Region"})
	require.NoError(t, err)
	updated, err := c.SaveConfig(node.ID, models.Config{"column": "city"})
	require.NoError(t, err)

	// The old title must be gone: configs are replaced, not merged.
	assert.Equal(t, "", updated.Data.Config.String("title"))
	assert.Equal(t, "city", updated.Data.Config.String("column"))
}

func TestSaveConfigInvalid(t *testing.T) {
	c := NewCanvas()
	node, _ := c.AddNode(DropPayload{Type: "custom", Label: "Bar Chart"}, models.Position{})

	_, err := c.SaveConfig(node.ID, models.Config{"title": "no column"})
	assert.ErrorIs(t, err, ErrInvalidConfig)

	kept, _ := c.Node(node.ID)
	assert.Empty(t, kept.Data.Config, "a rejected config must not be stored")

	_, err = c.SaveConfig("node_missing", models.Config{})
	assert.ErrorIs(t, err, ErrNodeNotFound)
}

func TestMergeSuggestionIsAppendOnly(t *testing.T) {
	c := NewCanvas()
	existing, _ := c.AddNode(DropPayload{Type: "custom", Label: "Upload File"}, models.Position{})
	c.SaveConfig(existing.ID, models.Config{"fileName": "sales.csv"})

	suggested := []models.Node{
		{ID: "ai_1", Type: "custom", Data: models.NodeData{Label: "Group By", TypeLabel: "Group By"}},
		{ID: existing.ID, Type: "custom", Data: models.NodeData{Label: "Upload File", TypeLabel: "Upload File"}},
	}
	c.MergeSuggestion(suggested, []models.Edge{{ID: "ai_e1", Source: existing.ID, Target: "ai_1"}})

	nodes := c.Nodes()
	require.Len(t, nodes, 3, "merge appends even on id collision; nothing is replaced")
	assert.Equal(t, "sales.csv", nodes[0].Data.Label, "existing node untouched")
	assert.Equal(t, string(catalog.KindGroupBy), nodes[1].Data.Kind, "missing kinds are resolved on merge")
	assert.NotNil(t, nodes[1].Data.Config)
	assert.Len(t, c.Edges(), 1)
}

func TestLoadResetsSelection(t *testing.T) {
	c := NewCanvas()
	c.AddNode(DropPayload{Type: "custom", Label: "Upload File"}, models.Position{})
	require.NotEmpty(t, c.Selected())

	c.Load([]models.Node{{ID: "n1"}}, nil)
	assert.Empty(t, c.Selected())
	assert.Len(t, c.Nodes(), 1)
}
