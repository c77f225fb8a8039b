// Package catalog is the static registry of node types: the palette shown in
// the action sidebar, the mapping from display labels to stable kind
// identifiers, and the per-kind configuration schemas.
//
// The display label is what the engine dispatches on, but it is a poor
// programmatic discriminator; KindForLabel resolves it to a Kind exactly
// once, when a node is created, and everything downstream switches on the
// Kind.
package catalog

import "strings"

// Kind is the stable identifier for a node behavior.
type Kind string

const (
	KindReadData    Kind = "read_data"
	KindUploadFile  Kind = "upload_file"
	KindGoogleDrive Kind = "google_drive"
	KindSQLDatabase Kind = "sql_database"
	KindMongoDB     Kind = "mongodb"
	KindOneDrive    Kind = "onedrive"
	KindStream      Kind = "stream"
	KindExportCSV   Kind = "export_csv"

	KindPreview     Kind = "preview"
	KindSample      Kind = "sample"
	KindDataTypes   Kind = "dtypes"
	KindShape       Kind = "shape"
	KindCorrelation Kind = "correlation"

	KindCopy           Kind = "copy"
	KindDropDuplicates Kind = "drop_duplicates"
	KindFillNA         Kind = "fill_na"
	KindDropNA         Kind = "drop_na"
	KindReplaceValue   Kind = "replace_value"
	KindRenameColumns  Kind = "rename_columns"
	KindChangeType     Kind = "change_type"
	KindMerge          Kind = "merge"
	KindConcat         Kind = "concat"

	KindFilterRows    Kind = "filter_rows"
	KindFilterDate    Kind = "filter_date"
	KindSelectColumns Kind = "select_columns"
	KindValueCounts   Kind = "value_counts"

	KindGroupBy Kind = "group_by"
	KindPivot   Kind = "pivot"

	KindScaler          Kind = "scaler"
	KindOneHot          Kind = "onehot"
	KindCalculatedField Kind = "calc_field"

	KindSort Kind = "sort"
	KindRank Kind = "rank"

	KindKPI       Kind = "kpi"
	KindBarChart  Kind = "chart_bar"
	KindLineChart Kind = "chart_line"
	KindPieChart  Kind = "chart_pie"
	KindAreaChart Kind = "chart_area"
	KindScatter   Kind = "chart_scatter"
	KindHistogram Kind = "chart_histogram"
	KindHeatmap   Kind = "chart_heatmap"

	KindSentiment  Kind = "sentiment"
	KindNGrams     Kind = "ngram"
	KindWordCloud  Kind = "word_cloud"
	KindWordCount  Kind = "word_count"
	KindForecast   Kind = "forecast"
	KindClustering Kind = "clustering"

	KindReportPDF   Kind = "report_pdf"
	KindEmailReport Kind = "email_report"

	// KindUnknown is assigned when a label matches nothing in the catalog.
	// Unknown nodes still travel through to the engine untouched.
	KindUnknown Kind = "unknown"
)

// Item is one draggable palette entry. Kind and Label together form the
// drag payload; a drop missing either does not create a node.
type Item struct {
	Kind  Kind   `json:"type"`
	Label string `json:"label"`
	Desc  string `json:"desc"`
}

// Category groups palette items in the sidebar.
type Category struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Items []Item `json:"items"`
}

// Categories is the action sidebar contents, in display order.
var Categories = []Category{
	{
		ID:    "io",
		Title: "INPUT/OUTPUT",
		Items: []Item{
			{KindReadData, "Read Data", "Load data from source"},
			{KindUploadFile, "Upload File", "CSV or Excel"},
			{KindGoogleDrive, "Google Drive", "Import from Drive"},
			{KindSQLDatabase, "SQL Database", "Postgres, MySQL, Oracle"},
			{KindMongoDB, "MongoDB", "Local or Atlas"},
			{KindOneDrive, "OneDrive", "Connect OneDrive"},
			{KindStream, "Stream / Kafka", "Real-time Topics"},
			{KindExportCSV, "Export CSV", "Save data to file"},
		},
	},
	{
		ID:    "exploration",
		Title: "1. DATA UNDERSTANDING & EXPLORATION",
		Items: []Item{
			{KindPreview, "Preview Data", "Display sample data"},
			{KindSample, "Sample Data", "Random subset"},
			{KindDataTypes, "Get Data Types", "Show column types"},
			{KindShape, "Get Shape", "Row/Column count"},
			{KindCorrelation, "Correlation", "Correlation Matrix"},
		},
	},
	{
		ID:    "cleaning",
		Title: "2. DATA CLEANING / PREPARATION",
		Items: []Item{
			{KindCopy, "Copy Data", "Duplicate Branch"},
			{KindDropDuplicates, "Drop Duplicates", "Remove duplicate rows"},
			{KindFillNA, "Fill N/A", "Replace missing values"},
			{KindDropNA, "Drop N/A", "Remove rows with missing values"},
			{KindReplaceValue, "Replace Value", "Find and replace"},
			{KindRenameColumns, "Rename Columns", "Change column names"},
			{KindChangeType, "Change Data Type", "Convert data types"},
			{KindMerge, "Merge/Join", "Join Datasets"},
			{KindConcat, "Concatenate", "Stack Datasets"},
		},
	},
	{
		ID:    "filtering",
		Title: "3. FILTERING & SUBSETTING",
		Items: []Item{
			{KindFilterRows, "Filter Rows", "Select rows by condition"},
			{KindFilterDate, "Filter Date", "Select rows by date range"},
			{KindSelectColumns, "Select Columns", "Keep specific columns"},
			{KindValueCounts, "Value Counts", "Count unique values"},
		},
	},
	{
		ID:    "grouping",
		Title: "4. GROUPING & AGGREGATION",
		Items: []Item{
			{KindGroupBy, "Group By", "Group and aggregate"},
			{KindPivot, "Pivot Table", "Reshape data"},
		},
	},
	{
		ID:    "transformation",
		Title: "5. TRANSFORMATION / FEATURE ENG.",
		Items: []Item{
			{KindScaler, "Standard Scaler", "Normalize features"},
			{KindOneHot, "One-Hot Encoding", "Categorical to numeric"},
			{KindCalculatedField, "Calculated Field", "Create new column"},
		},
	},
	{
		ID:    "sorting",
		Title: "6. SORTING & RANKING",
		Items: []Item{
			{KindSort, "Sort Data", "Ascending/Descending"},
			{KindRank, "Rank", "Compute numerical rank"},
		},
	},
	{
		ID:    "visualization",
		Title: "7. VISUALIZATION",
		Items: []Item{
			{KindKPI, "KPI Card", "Single Metric"},
			{KindBarChart, "Bar Chart", "Compare categories"},
			{KindLineChart, "Line Chart", "Trends over time"},
			{KindPieChart, "Pie/Donut Chart", "Part-to-whole"},
			{KindAreaChart, "Area Chart", "Volume trends"},
			{KindScatter, "Scatter Plot", "Correlation"},
			{KindHistogram, "Histogram", "Distribution"},
			{KindHeatmap, "Heatmap", "Matrix intensity"},
		},
	},
	{
		ID:    "advanced",
		Title: "8. ADVANCED ANALYTICS (AI)",
		Items: []Item{
			{KindSentiment, "Sentiment Analysis", "Text positivity"},
			{KindNGrams, "N-Grams", "Bi-grams / Tri-grams"},
			{KindWordCloud, "Word Cloud", "Generate Word Cloud Image"},
			{KindWordCount, "Word Count", "Count words in text"},
			{KindForecast, "Time Forecast", "Predict future values"},
			{KindClustering, "Clustering", "K-Means Grouping"},
		},
	},
	{
		ID:    "reporting",
		Title: "9. EXPORT / REPORTING",
		Items: []Item{
			{KindReportPDF, "Generate PDF", "Create summary report"},
			{KindEmailReport, "Email Report", "Send findings"},
		},
	},
}

var labelToKind = func() map[string]Kind {
	m := make(map[string]Kind)
	for _, cat := range Categories {
		for _, item := range cat.Items {
			m[item.Label] = item.Kind
		}
	}
	return m
}()

// KindForLabel resolves a display label to its stable Kind. Exact matches
// win; otherwise label families (charts, plots, filters) resolve by
// substring, which keeps engine-suggested labels like "Donut Chart" working.
func KindForLabel(label string) Kind {
	if k, ok := labelToKind[label]; ok {
		return k
	}
	switch {
	case strings.Contains(label, "Pie") || strings.Contains(label, "Donut"):
		return KindPieChart
	case strings.Contains(label, "Scatter") || strings.Contains(label, "Plot"):
		return KindScatter
	case strings.Contains(label, "Area"):
		return KindAreaChart
	case strings.Contains(label, "Line"):
		return KindLineChart
	case strings.Contains(label, "Histogram"):
		return KindHistogram
	case strings.Contains(label, "Chart"):
		return KindBarChart
	case strings.Contains(label, "Filter"):
		return KindFilterRows
	}
	return KindUnknown
}

// LabelForKind returns the canonical display label of a kind, or "" when the
// kind is not in the palette.
func LabelForKind(kind Kind) string {
	for _, cat := range Categories {
		for _, item := range cat.Items {
			if item.Kind == kind {
				return item.Label
			}
		}
	}
	return ""
}

var chartKinds = map[Kind]bool{
	KindBarChart:  true,
	KindLineChart: true,
	KindPieChart:  true,
	KindAreaChart: true,
	KindScatter:   true,
	KindHistogram: true,
	KindHeatmap:   true,
}

// IsChart reports whether the kind renders as a chart widget.
func IsChart(kind Kind) bool { return chartKinds[kind] }

var connectionKinds = map[Kind]bool{
	KindSQLDatabase: true,
	KindMongoDB:     true,
	KindGoogleDrive: true,
	KindOneDrive:    true,
	KindStream:      true,
}

// IsConnection reports whether the kind is a connection source configured
// with host/port/credential fields.
func IsConnection(kind Kind) bool { return connectionKinds[kind] }

var reportKinds = map[Kind]bool{
	KindBarChart:    true,
	KindLineChart:   true,
	KindPieChart:    true,
	KindScatter:     true,
	KindHistogram:   true,
	KindHeatmap:     true,
	KindAreaChart:   true,
	KindKPI:         true,
	KindPreview:     true,
	KindPivot:       true,
	KindValueCounts: true,
	KindRank:        true,
	KindForecast:    true,
	KindCorrelation: true,
	KindClustering:  true,
	KindNGrams:      true,
	KindWordCount:   true,
	KindWordCloud:   true,
}

// IsReportNode reports whether nodes of this kind carry dashboard layout
// settings (order, width, custom title).
func IsReportNode(kind Kind) bool { return reportKinds[kind] }

// ReportAllowList is the set of output type labels eligible for the report
// page. Matching is by substring, mirroring how the engine labels outputs.
var ReportAllowList = []string{
	"KPI Card",
	"Bar Chart", "Line Chart", "Pie/Donut Chart", "Scatter Plot",
	"Histogram", "Heatmap", "Area Chart", "Forecast",
	"Preview Data", "Pivot Table", "Rank", "Describe Stats", "Correlation", "Clustering",
	"N-Grams", "Word Count", "Word Cloud",
}

// ReportDenyList removes plumbing types from the report even if an allow-list
// substring matched them.
var ReportDenyList = map[string]bool{
	"Read Data":      true,
	"Filter Rows":    true,
	"Select Columns": true,
	"Sort Data":      true,
	"Upload File":    true,
}

// PanelAllowList is the set of output type labels shown in the results side
// panel, matched by substring.
var PanelAllowList = []string{
	"Bar Chart", "Line Chart", "Pie/Donut Chart", "Scatter Plot",
	"Histogram", "Heatmap", "Area Chart", "KPI Card",
	"Preview Data", "Pivot Table", "Describe Stats", "Rank",
	"Correlation", "Clustering", "Value Counts", "Sentiment Analysis", "Get Data Types",
	"N-Grams", "Word Count",
}

// PanelVisible reports whether an output of this type appears in the
// results side panel. Plumbing outputs (Filter Rows, Sort Data, ...) are
// executed but not displayed.
func PanelVisible(outputType string) bool {
	for _, allowed := range PanelAllowList {
		if strings.Contains(outputType, allowed) {
			return true
		}
	}
	return false
}
