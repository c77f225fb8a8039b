package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"dataflow-studio/backend/pkg/models"
)

var validate = validator.New()

// FlexInt is an int that also accepts quoted numbers. The builder UI stores
// numeric inputs as strings, so both "100" and 100 appear in saved configs.
type FlexInt int

// UnmarshalJSON implements json.Unmarshaler.
func (f *FlexInt) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(bytes.TrimSpace(data)), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("not a number: %q", s)
	}
	*f = FlexInt(n)
	return nil
}

// ReportLayout are the dashboard settings carried by every report-worthy
// node in addition to its own fields. DecodeReportLayout extracts it and
// ValidateConfig checks it for every kind where IsReportNode holds.
type ReportLayout struct {
	DashboardOrder FlexInt `json:"dashboardOrder"`
	ReportWidth    string  `json:"reportWidth" validate:"omitempty,oneof=half full third"`
	Title          string  `json:"title"`
}

// DecodeReportLayout pulls the dashboard layout fields out of a node's
// config. An absent dashboardOrder defaults to 99, pushing unordered
// widgets behind explicitly placed ones.
func DecodeReportLayout(cfg models.Config) (ReportLayout, error) {
	layout := ReportLayout{DashboardOrder: 99}
	raw, err := json.Marshal(cfg)
	if err != nil {
		return layout, fmt.Errorf("encode config: %w", err)
	}
	if err := json.Unmarshal(raw, &layout); err != nil {
		return layout, fmt.Errorf("decode report layout: %w", err)
	}
	return layout, nil
}

// ConnectionConfig configures connection-source nodes (SQL/Mongo/Drive/
// OneDrive/Stream). Credentials are stored verbatim in the flow document;
// whether the engine encrypts them at rest is its concern, not ours.
type ConnectionConfig struct {
	Host     string `json:"host" validate:"required"`
	Port     string `json:"port"`
	Database string `json:"database"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// DropDuplicatesConfig configures a Drop Duplicates node. Keep "false" drops
// every duplicated row, matching the pandas convention the engine passes
// through.
type DropDuplicatesConfig struct {
	Keep    string   `json:"keep" validate:"omitempty,oneof=first last false"`
	Columns []string `json:"columns"`
}

// DropNAConfig configures a Drop N/A node. Subset holds at most one column
// in the current builder; the engine accepts a list.
type DropNAConfig struct {
	How    string   `json:"how" validate:"omitempty,oneof=any all"`
	Subset []string `json:"subset"`
}

// ReplaceValueConfig configures a Replace Value node.
type ReplaceValueConfig struct {
	Column   string `json:"column" validate:"required"`
	OldValue string `json:"oldValue"`
	NewValue string `json:"newValue"`
}

// RenameColumnsConfig configures a Rename Columns node.
type RenameColumnsConfig struct {
	OldName string `json:"oldName" validate:"required"`
	NewName string `json:"newName" validate:"required"`
}

// DateRange is one entry of a Filter Date node's range list.
type DateRange struct {
	Column    string `json:"column" validate:"required"`
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
}

// FilterDateConfig configures a Filter Date node.
type FilterDateConfig struct {
	DateRanges []DateRange `json:"dateRanges" validate:"dive"`
}

// FilterCondition is one entry of a Filter Rows node's condition list.
type FilterCondition struct {
	Column   string `json:"column" validate:"required"`
	Operator string `json:"operator" validate:"oneof=== != > < contains"`
	Value    string `json:"value"`
}

// FilterRowsConfig configures a Filter Rows node.
type FilterRowsConfig struct {
	Conditions []FilterCondition `json:"conditions" validate:"dive"`
}

// WordCloudConfig configures a Word Cloud node.
type WordCloudConfig struct {
	Column   string  `json:"column" validate:"required"`
	MaxWords FlexInt `json:"maxWords"`
	Height   FlexInt `json:"height"`
}

// Aggregation is one entry of a Group By node's aggregation list.
type Aggregation struct {
	Column string `json:"column" validate:"required"`
	Func   string `json:"func" validate:"oneof=count sum mean max min"`
}

// GroupByConfig configures a Group By node.
type GroupByConfig struct {
	GroupColumns []string      `json:"groupColumns" validate:"min=1"`
	Aggregations []Aggregation `json:"aggregations" validate:"dive"`
}

// PreviewConfig configures Preview Data and Sample Data nodes.
type PreviewConfig struct {
	Mode string  `json:"mode" validate:"omitempty,oneof=head tail random"`
	N    FlexInt `json:"n"`
}

// SortConfig configures Sort Data and Rank nodes; Method applies to Rank
// only.
type SortConfig struct {
	Column string `json:"column" validate:"required"`
	Order  string `json:"order" validate:"omitempty,oneof=asc desc"`
	Method string `json:"method" validate:"omitempty,oneof=average min max dense"`
}

// UploadConfig configures an Upload File node; it is written by the upload
// side-effect, not by the form.
type UploadConfig struct {
	UploadedFiles []models.FileMeta `json:"uploadedFiles"`
	SelectedFile  *models.FileMeta  `json:"selectedFile"`
}

// MergeConfig configures a Merge/Join node. Empty On joins on the index.
type MergeConfig struct {
	How string `json:"how" validate:"omitempty,oneof=inner left right outer"`
	On  string `json:"on"`
}

// ConcatConfig configures a Concatenate node.
type ConcatConfig struct {
	Axis string `json:"axis" validate:"omitempty,oneof=rows columns"`
}

// ChangeTypeConfig configures a Change Data Type node.
type ChangeTypeConfig struct {
	Column string `json:"column" validate:"required"`
	Dtype  string `json:"dtype" validate:"oneof=str int float bool datetime category"`
}

// CorrelationConfig configures a Correlation node.
type CorrelationConfig struct {
	Method  string   `json:"method" validate:"omitempty,oneof=pearson spearman kendall"`
	Columns []string `json:"columns"`
}

// FillNAConfig configures a Fill N/A node. Value is only meaningful when
// Method is "value"; empty Column targets all columns.
type FillNAConfig struct {
	Method string `json:"method" validate:"omitempty,oneof=value mean median mode min max ffill bfill"`
	Value  string `json:"value"`
	Column string `json:"column"`
}

// NGramsConfig configures an N-Grams node.
type NGramsConfig struct {
	Column string  `json:"column" validate:"required"`
	N      FlexInt `json:"n" validate:"omitempty,oneof=1 2 3"`
}

// WordCountConfig configures a Word Count node.
type WordCountConfig struct {
	Column string `json:"column" validate:"required"`
}

// PivotConfig configures a Pivot Table node. Index, Columns and Values are
// single columns each, not lists.
type PivotConfig struct {
	Index   string `json:"index" validate:"required"`
	Columns string `json:"columns" validate:"required"`
	Values  string `json:"values" validate:"required"`
	AggFunc string `json:"aggFunc" validate:"omitempty,oneof=sum mean count min max"`
}

// ValueCountsConfig configures a Value Counts node.
type ValueCountsConfig struct {
	Column string `json:"column" validate:"required"`
}

// ReadDataConfig configures a Read Data node: a previously uploaded server
// file, plus a sheet name for multi-sheet spreadsheets.
type ReadDataConfig struct {
	SelectedFile *models.FileMeta `json:"selectedFile" validate:"required"`
	SheetName    string           `json:"sheetName"`
}

// CalculatedFieldConfig configures a Calculated Field node. The expression
// is opaque to the studio and evaluated by the engine against a
// dataframe-like variable; the length cap is the only client-side guard.
type CalculatedFieldConfig struct {
	NewColumn  string `json:"newColumn" validate:"required"`
	Expression string `json:"expression" validate:"required,max=2000"`
}

// SelectColumnsConfig configures a Select Columns node.
type SelectColumnsConfig struct {
	Columns []string `json:"columns"`
}

// ChartConfig configures every chart-family node. Column is the category
// (x) axis; YAxis is absent for histograms and defaults to a count; ColorBy
// is an optional grouping column.
type ChartConfig struct {
	Title   string `json:"title"`
	Column  string `json:"column" validate:"required"`
	YAxis   string `json:"yAxis"`
	ColorBy string `json:"colorBy"`
}

// KPIConfig configures a KPI Card node. An empty Column means row count.
type KPIConfig struct {
	Column    string `json:"column"`
	Operation string `json:"operation" validate:"omitempty,oneof=count sum avg min max"`
}

// DecodeConfig converts the open config map of a node into the typed schema
// for its kind, applying defaults. Kinds without form fields (Copy, Shape,
// Export CSV, ...) return nil.
func DecodeConfig(kind Kind, cfg models.Config) (any, error) {
	var target any
	switch {
	case IsConnection(kind):
		target = &ConnectionConfig{}
	case IsChart(kind):
		target = &ChartConfig{}
	default:
		switch kind {
		case KindDropDuplicates:
			target = &DropDuplicatesConfig{Keep: "first"}
		case KindDropNA:
			target = &DropNAConfig{How: "any"}
		case KindReplaceValue:
			target = &ReplaceValueConfig{}
		case KindRenameColumns:
			target = &RenameColumnsConfig{}
		case KindFilterDate:
			target = &FilterDateConfig{}
		case KindFilterRows:
			target = &FilterRowsConfig{}
		case KindWordCloud:
			target = &WordCloudConfig{MaxWords: 100, Height: 400}
		case KindGroupBy:
			target = &GroupByConfig{}
		case KindPreview, KindSample:
			target = &PreviewConfig{Mode: "head", N: 10}
		case KindSort:
			target = &SortConfig{Order: "asc"}
		case KindRank:
			target = &SortConfig{Order: "asc", Method: "average"}
		case KindUploadFile:
			target = &UploadConfig{}
		case KindMerge:
			target = &MergeConfig{How: "inner"}
		case KindConcat:
			target = &ConcatConfig{Axis: "rows"}
		case KindChangeType:
			target = &ChangeTypeConfig{Dtype: "str"}
		case KindCorrelation:
			target = &CorrelationConfig{Method: "pearson"}
		case KindFillNA:
			target = &FillNAConfig{Method: "value"}
		case KindNGrams:
			target = &NGramsConfig{N: 2}
		case KindWordCount:
			target = &WordCountConfig{}
		case KindPivot:
			target = &PivotConfig{AggFunc: "sum"}
		case KindValueCounts:
			target = &ValueCountsConfig{}
		case KindReadData:
			target = &ReadDataConfig{}
		case KindCalculatedField:
			target = &CalculatedFieldConfig{}
		case KindSelectColumns:
			target = &SelectColumnsConfig{}
		case KindKPI:
			target = &KPIConfig{Operation: "count"}
		default:
			return nil, nil
		}
	}

	raw, err := json.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	if err := json.Unmarshal(raw, target); err != nil {
		return nil, fmt.Errorf("decode %s config: %w", kind, err)
	}
	return target, nil
}

// ValidateConfig checks a node's config map against the typed schema for its
// kind. Kinds without a schema always validate.
func ValidateConfig(kind Kind, cfg models.Config) error {
	typed, err := DecodeConfig(kind, cfg)
	if err != nil {
		return err
	}
	if typed != nil {
		if err := validate.Struct(typed); err != nil {
			return fmt.Errorf("invalid %s config: %w", kind, err)
		}
	}
	if IsReportNode(kind) {
		layout, err := DecodeReportLayout(cfg)
		if err != nil {
			return err
		}
		if err := validate.Struct(layout); err != nil {
			return fmt.Errorf("invalid %s report layout: %w", kind, err)
		}
	}
	return nil
}

// SummaryLabel derives the display summary shown on a configured node: the
// uploaded file name when present, else "<typeLabel>: <column>" when a
// column is configured, else the type label itself.
func SummaryLabel(typeLabel string, cfg models.Config) string {
	if name := cfg.String("fileName"); name != "" {
		return name
	}
	if col := cfg.String("column"); col != "" {
		return typeLabel + ": " + col
	}
	return typeLabel
}
