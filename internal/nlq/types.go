package nlq

// Department is one of the fixed business departments.
type Department string

const (
	DepartmentSales      Department = "sales"
	DepartmentFinance    Department = "finance"
	DepartmentDevRel     Department = "devrel"
	DepartmentHR         Department = "hr"
	DepartmentEvents     Department = "events"
	DepartmentCompliance Department = "compliance"
)

// Departments lists every department in tie-break order.
var Departments = []Department{
	DepartmentSales,
	DepartmentFinance,
	DepartmentDevRel,
	DepartmentHR,
	DepartmentEvents,
	DepartmentCompliance,
}

// DateKind identifies a recognized date range.
type DateKind string

const (
	DateNone      DateKind = "none"
	DateQ1        DateKind = "q1"
	DateQ2        DateKind = "q2"
	DateQ3        DateKind = "q3"
	DateQ4        DateKind = "q4"
	DateLastMonth DateKind = "last_month"
	DateThisMonth DateKind = "this_month"
	DateThisYear  DateKind = "this_year"
	DateCustom    DateKind = "custom"
)

// AggregationKind identifies how metric values are combined.
type AggregationKind string

const (
	AggregationNone   AggregationKind = "none"
	AggregationSum    AggregationKind = "sum"
	AggregationAvg    AggregationKind = "avg"
	AggregationCount  AggregationKind = "count"
	AggregationGrowth AggregationKind = "growth"
)

// ComparisonKind identifies a ranking request.
type ComparisonKind string

const (
	ComparisonNone   ComparisonKind = "none"
	ComparisonTop    ComparisonKind = "top"
	ComparisonBottom ComparisonKind = "bottom"
)

// SortDirection is an ORDER BY direction.
type SortDirection string

const (
	SortAsc  SortDirection = "ASC"
	SortDesc SortDirection = "DESC"
)

// Request is a question plus optional explicit overrides.
type Request struct {
	Question   string `json:"question" yaml:"question"`
	Department string `json:"department,omitempty" yaml:"department,omitempty"`
	DateRange  string `json:"date_range,omitempty" yaml:"date_range,omitempty"`
	Debug      bool   `json:"debug,omitempty" yaml:"debug,omitempty"`
}

// CompiledQuery is the executable result of compiling one question.
type CompiledQuery struct {
	SQL              string   `json:"sql" yaml:"sql"`
	Parameters       []any    `json:"parameters" yaml:"parameters"`
	Explanation      string   `json:"explanation" yaml:"explanation"`
	MatchedPatterns  []string `json:"matched_patterns" yaml:"matched_patterns"`
	DepartmentFilter string   `json:"department_filter,omitempty" yaml:"department_filter,omitempty"`
	DateFilter       string   `json:"date_filter" yaml:"date_filter"`
	AggregationType  string   `json:"aggregation_type" yaml:"aggregation_type"`
	Limit            int      `json:"limit" yaml:"limit"`
	Dialect          string   `json:"dialect" yaml:"dialect"`
	Diagnostics      []string `json:"diagnostics,omitempty" yaml:"diagnostics,omitempty"`
}

// extraction is the parsed intent of a question.
type extraction struct {
	department  Department
	dateRange   dateRange
	aggregation aggregation
	metrics     []string
	comparison  comparison
	limit       int

	// notes records why each field was chosen; surfaced as diagnostics.
	notes []string
}

type dateRange struct {
	kind DateKind
	// label is the human form used in explanations.
	label string
	// predicate uses ? for every bound value in params.
	predicate string
	params    []any
}

type aggregation struct {
	kind        AggregationKind
	sqlFunction string
}

type comparison struct {
	kind      ComparisonKind
	direction SortDirection
}
