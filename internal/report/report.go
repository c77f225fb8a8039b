// Package report turns an execution result into a dashboard document: an
// ordered list of widgets with grid spans and fully computed chart geometry,
// so renderers only have to draw.
package report

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"dataflow-studio/backend/internal/catalog"
	"dataflow-studio/backend/pkg/models"
)

// Palette is the slice color cycle for pie and donut charts.
var Palette = []string{"#3b82f6", "#10b981", "#f59e0b", "#ef4444", "#8b5cf6", "#ec4899", "#06b6d4", "#84cc16"}

const (
	defaultOrder = 99

	// Chart geometry is computed in a 0..100 viewbox with fixed padding.
	chartPad = 10.0

	maxChartRows = 50
	maxTableRows = 100
)

// WidgetKind selects how a widget is rendered.
type WidgetKind string

const (
	WidgetKPI       WidgetKind = "kpi"
	WidgetChart     WidgetKind = "chart"
	WidgetWordCloud WidgetKind = "wordcloud"
	WidgetTable     WidgetKind = "table"
)

// Report is a complete dashboard document.
type Report struct {
	Name        string    `json:"name"`
	GeneratedAt time.Time `json:"generated_at"`
	Widgets     []Widget  `json:"widgets"`
}

// Widget is one dashboard cell. Exactly one of KPI, Chart, Image and Table is
// populated, picked by Kind.
type Widget struct {
	NodeID string     `json:"node_id"`
	Type   string     `json:"type"`
	Title  string     `json:"title"`
	Kind   WidgetKind `json:"kind"`
	Span   int        `json:"span"`
	Order  int        `json:"order"`
	Rows   int        `json:"rows"`

	KPI   *KPI   `json:"kpi,omitempty"`
	Chart *Chart `json:"chart,omitempty"`
	Image string `json:"image,omitempty"`
	Table *Table `json:"table,omitempty"`
}

// KPI is a single headline number.
type KPI struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// ChartForm distinguishes the drawing primitive.
type ChartForm string

const (
	FormPie     ChartForm = "pie"
	FormDonut   ChartForm = "donut"
	FormLine    ChartForm = "line"
	FormArea    ChartForm = "area"
	FormBar     ChartForm = "bar"
	FormScatter ChartForm = "scatter"
)

// Chart carries computed geometry. Pie forms use Slices; cartesian forms use
// Points, laid out in a 0..100 square with padding already applied.
type Chart struct {
	Form   ChartForm `json:"form"`
	XKey   string    `json:"x_key"`
	YKey   string    `json:"y_key"`
	MaxY   float64   `json:"max_y,omitempty"`
	Total  float64   `json:"total,omitempty"`
	Points []Point   `json:"points,omitempty"`
	Slices []Slice   `json:"slices,omitempty"`
}

// Point is one cartesian datum with its viewbox position.
type Point struct {
	Label string  `json:"label"`
	Value float64 `json:"value"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
}

// Slice is one pie segment. The endpoints are unit-circle coordinates; a
// renderer draws M 0 0 L X1 Y1 A 1 1 0 large 1 X2 Y2 Z.
type Slice struct {
	Label    string  `json:"label"`
	Value    float64 `json:"value"`
	Fraction float64 `json:"fraction"`
	Percent  int     `json:"percent"`
	Color    string  `json:"color"`
	X1       float64 `json:"x1"`
	Y1       float64 `json:"y1"`
	X2       float64 `json:"x2"`
	Y2       float64 `json:"y2"`
	Large    bool    `json:"large"`
}

// Table is a capped tabular preview.
type Table struct {
	Columns []string         `json:"columns"`
	Rows    []map[string]any `json:"rows"`
}

// Build assembles the report for one executed flow. Outputs are taken in
// canvas node order (outputs without a live node follow, sorted by id) so the
// document is deterministic, filtered through the allow and deny lists, and
// stably sorted by each widget's dashboardOrder.
func Build(name string, result *models.ExecutionResult, nodes []models.Node) Report {
	r := Report{Name: name, GeneratedAt: time.Now(), Widgets: []Widget{}}
	if result == nil {
		return r
	}

	for _, out := range orderedOutputs(result, nodes) {
		if !allowed(out.Type) {
			continue
		}
		r.Widgets = append(r.Widgets, buildWidget(out))
	}

	sort.SliceStable(r.Widgets, func(i, j int) bool {
		return r.Widgets[i].Order < r.Widgets[j].Order
	})
	return r
}

func allowed(typ string) bool {
	if catalog.ReportDenyList[typ] {
		return false
	}
	for _, allow := range catalog.ReportAllowList {
		if strings.Contains(typ, allow) {
			return true
		}
	}
	return false
}

func orderedOutputs(result *models.ExecutionResult, nodes []models.Node) []models.NodeOutput {
	outputs := make([]models.NodeOutput, 0, len(result.NodeOutputs))
	seen := make(map[string]bool, len(result.NodeOutputs))
	for _, n := range nodes {
		if out, ok := result.NodeOutputs[n.ID]; ok {
			outputs = append(outputs, out)
			seen[n.ID] = true
		}
	}
	var rest []string
	for id := range result.NodeOutputs {
		if !seen[id] {
			rest = append(rest, id)
		}
	}
	sort.Strings(rest)
	for _, id := range rest {
		outputs = append(outputs, result.NodeOutputs[id])
	}
	return outputs
}

func buildWidget(out models.NodeOutput) Widget {
	layout, err := catalog.DecodeReportLayout(out.Config)
	if err != nil {
		layout = catalog.ReportLayout{DashboardOrder: defaultOrder}
	}
	w := Widget{
		NodeID: out.ID,
		Type:   out.Type,
		Order:  int(layout.DashboardOrder),
		Rows:   out.Rows,
	}
	w.Title = layout.Title
	if w.Title == "" {
		w.Title = out.Type
	}

	switch {
	case out.Type == "KPI Card":
		w.Kind = WidgetKPI
		w.Span = 3
		w.KPI = buildKPI(out, layout.Title)
	case out.Type == "Word Cloud":
		w.Kind = WidgetWordCloud
		w.Span = spanFor(layout)
		w.Image = out.Image
	case isChartType(out.Type):
		w.Kind = WidgetChart
		w.Span = spanFor(layout)
		w.Chart = buildChart(out)
	default:
		w.Kind = WidgetTable
		w.Span = spanFor(layout)
		rows := out.Preview
		if len(rows) > maxTableRows {
			rows = rows[:maxTableRows]
		}
		w.Table = &Table{Columns: out.Columns, Rows: rows}
	}
	return w
}

func isChartType(typ string) bool {
	for _, frag := range []string{"Chart", "Plot", "gram", "Forecast", "Map"} {
		if strings.Contains(typ, frag) {
			return true
		}
	}
	return false
}

func spanFor(layout catalog.ReportLayout) int {
	switch layout.ReportWidth {
	case "full":
		return 12
	case "third":
		return 4
	default:
		return 6
	}
}

func buildKPI(out models.NodeOutput, title string) *KPI {
	k := &KPI{Value: "0"}
	k.Label = title
	if k.Label == "" {
		k.Label = out.Config.String("label")
	}
	explicit := k.Label != ""
	if !explicit {
		k.Label = "Metric"
	}
	if len(out.Preview) == 0 {
		return k
	}

	row := out.Preview[0]
	key := out.Config.String("column")
	if key == "" || row[key] == nil {
		key = pickNumericColumn(out.Columns, row)
	}
	if key == "" {
		return k
	}
	k.Value = formatValue(row[key])
	if !explicit {
		k.Label = strings.ReplaceAll(key, "_", " ")
	}
	return k
}

// pickNumericColumn scans columns in schema order and returns the first one
// holding a numeric value, falling back to the first column.
func pickNumericColumn(columns []string, row map[string]any) string {
	for _, c := range columns {
		if _, ok := asNumber(row[c]); ok {
			return c
		}
	}
	if len(columns) > 0 {
		return columns[0]
	}
	return ""
}

func buildChart(out models.NodeOutput) *Chart {
	rows := out.Preview
	if len(rows) > maxChartRows {
		rows = rows[:maxChartRows]
	}
	if len(rows) == 0 {
		return &Chart{Form: formFor(out.Type)}
	}

	xKey := out.Config.String("column")
	if xKey == "" && len(out.Columns) > 0 {
		xKey = out.Columns[0]
	}
	yKey := out.Config.String("yAxis")
	if yKey == "" {
		yKey = pickNumericColumn(out.Columns, rows[0])
		if yKey == xKey && len(out.Columns) > 1 {
			yKey = out.Columns[1]
		}
	}

	c := &Chart{Form: formFor(out.Type), XKey: xKey, YKey: yKey}

	labels := make([]string, len(rows))
	values := make([]float64, len(rows))
	for i, row := range rows {
		labels[i] = stringify(row[xKey])
		if v, ok := asNumber(row[yKey]); ok {
			values[i] = v
		}
	}

	if c.Form == FormPie || c.Form == FormDonut {
		buildSlices(c, labels, values)
		return c
	}
	buildPoints(c, labels, values)
	return c
}

func formFor(typ string) ChartForm {
	switch {
	case strings.Contains(typ, "Donut"):
		return FormDonut
	case strings.Contains(typ, "Pie"):
		return FormPie
	case strings.Contains(typ, "Scatter"):
		return FormScatter
	case strings.Contains(typ, "Area"):
		return FormArea
	case strings.Contains(typ, "Line"), strings.Contains(typ, "Forecast"):
		return FormLine
	default:
		return FormBar
	}
}

// buildSlices lays segments end to end around the unit circle. Zero-valued
// rows are skipped entirely rather than rendered as degenerate arcs.
func buildSlices(c *Chart, labels []string, values []float64) {
	for _, v := range values {
		c.Total += v
	}
	if c.Total == 0 {
		return
	}

	cumulative := 0.0
	for i, v := range values {
		if v == 0 {
			continue
		}
		start := cumulative
		frac := v / c.Total
		cumulative += frac
		end := cumulative

		c.Slices = append(c.Slices, Slice{
			Label:    labels[i],
			Value:    v,
			Fraction: frac,
			Percent:  int(math.Round(frac * 100)),
			Color:    Palette[i%len(Palette)],
			X1:       math.Cos(2 * math.Pi * start),
			Y1:       math.Sin(2 * math.Pi * start),
			X2:       math.Cos(2 * math.Pi * end),
			Y2:       math.Sin(2 * math.Pi * end),
			Large:    frac > 0.5,
		})
	}
}

// buildPoints spreads values evenly across the x axis and normalizes y
// against the series maximum, inside the padded viewbox.
func buildPoints(c *Chart, labels []string, values []float64) {
	maxVal := 0.0
	for _, v := range values {
		maxVal = math.Max(maxVal, v)
	}
	if maxVal == 0 {
		maxVal = 1
	}
	c.MaxY = maxVal

	count := len(values)
	span := float64(count - 1)
	if span == 0 {
		span = 1
	}
	for i, v := range values {
		c.Points = append(c.Points, Point{
			Label: labels[i],
			Value: v,
			X:     (float64(i)/span)*(100-chartPad*2) + chartPad,
			Y:     (100 - chartPad) - (v/maxVal)*(100-chartPad*2),
		})
	}
}

func asNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

func stringify(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	default:
		return fmt.Sprintf("%v", s)
	}
}

// formatValue renders a KPI number with thousands separators and at most two
// decimal places; non-numeric values pass through as-is.
func formatValue(v any) string {
	raw := stringify(v)
	n, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return raw
	}
	s := strconv.FormatFloat(n, 'f', -1, 64)
	intPart, fracPart, _ := strings.Cut(s, ".")
	if len(fracPart) > 2 {
		s = strconv.FormatFloat(n, 'f', 2, 64)
		intPart, fracPart, _ = strings.Cut(s, ".")
		fracPart = strings.TrimRight(fracPart, "0")
	}
	neg := strings.HasPrefix(intPart, "-")
	digits := strings.TrimPrefix(intPart, "-")
	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	for i, d := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(d)
	}
	if fracPart != "" {
		b.WriteByte('.')
		b.WriteString(fracPart)
	}
	return b.String()
}
