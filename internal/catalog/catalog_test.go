package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindForLabelExactMatch(t *testing.T) {
	assert.Equal(t, KindUploadFile, KindForLabel("Upload File"))
	assert.Equal(t, KindGroupBy, KindForLabel("Group By"))
	assert.Equal(t, KindPieChart, KindForLabel("Pie/Donut Chart"))
	assert.Equal(t, KindKPI, KindForLabel("KPI Card"))
}

func TestKindForLabelFamilyMatch(t *testing.T) {
	// Labels the engine suggests that are not palette entries still resolve
	// to the nearest family.
	assert.Equal(t, KindPieChart, KindForLabel("Donut Chart"))
	assert.Equal(t, KindScatter, KindForLabel("Bubble Plot"))
	assert.Equal(t, KindAreaChart, KindForLabel("Stacked Area"))
	assert.Equal(t, KindLineChart, KindForLabel("Multi-Line"))
	assert.Equal(t, KindHistogram, KindForLabel("2D Histogram"))
	assert.Equal(t, KindBarChart, KindForLabel("Funnel Chart"))
	assert.Equal(t, KindFilterRows, KindForLabel("Filter Nulls"))
}

func TestKindForLabelUnknown(t *testing.T) {
	assert.Equal(t, KindUnknown, KindForLabel("Quantum Annealer"))
	assert.Equal(t, KindUnknown, KindForLabel(""))
}

func TestLabelForKindRoundTrip(t *testing.T) {
	for _, cat := range Categories {
		for _, item := range cat.Items {
			assert.Equal(t, item.Kind, KindForLabel(item.Label), "label %q", item.Label)
			assert.Equal(t, item.Label, LabelForKind(item.Kind), "kind %q", item.Kind)
		}
	}
	assert.Equal(t, "", LabelForKind(KindUnknown))
}

func TestPaletteLabelsAreUnique(t *testing.T) {
	seen := map[string]bool{}
	for _, cat := range Categories {
		for _, item := range cat.Items {
			assert.False(t, seen[item.Label], "duplicate label %q", item.Label)
			seen[item.Label] = true
		}
	}
}

func TestPredicates(t *testing.T) {
	assert.True(t, IsChart(KindBarChart))
	assert.False(t, IsChart(KindKPI))
	assert.True(t, IsConnection(KindMongoDB))
	assert.False(t, IsConnection(KindUploadFile))
	assert.True(t, IsReportNode(KindWordCloud))
	assert.False(t, IsReportNode(KindSort))
}

func TestPanelVisible(t *testing.T) {
	assert.True(t, PanelVisible("Bar Chart"))
	assert.True(t, PanelVisible("Stacked Bar Chart"), "substring match, as the engine decorates labels")
	assert.True(t, PanelVisible("KPI Card"))
	assert.False(t, PanelVisible("Filter Rows"))
	assert.False(t, PanelVisible("Upload File"))
	assert.False(t, PanelVisible(""))
}

func TestReportDenyListOverlapsAllowList(t *testing.T) {
	// "Filter Rows" contains no allow-list substring, but "Read Data" shares
	// "Data" with "Preview Data"-style labels; the deny list must cover the
	// plumbing types regardless.
	for label := range ReportDenyList {
		kind := KindForLabel(label)
		assert.NotEqual(t, KindUnknown, kind, "deny list entry %q is not a palette label", label)
	}
}
