package models

// SourceType selects how the query engine acquires records.
type SourceType string

const (
	SourceSQL       SourceType = "sql"
	SourceAPI       SourceType = "api"
	SourceStatic    SourceType = "static"
	SourceWebSocket SourceType = "websocket"
)

// Record is one row of acquired data.
type Record = map[string]any

// QueryConfig is the declarative data pipeline bound to a widget.
type QueryConfig struct {
	SourceType SourceType      `json:"sourceType" yaml:"sourceType"`
	Source     Source          `json:"source,omitempty" yaml:"source,omitempty"`
	Data       []Record        `json:"data,omitempty" yaml:"data,omitempty"`
	RawQuery   string          `json:"rawQuery,omitempty" yaml:"rawQuery,omitempty"`
	Query      *VisualQuery    `json:"query,omitempty" yaml:"query,omitempty"`
	Variables  map[string]any  `json:"variables,omitempty" yaml:"variables,omitempty"`
	Mapping    Mapping         `json:"mapping,omitempty" yaml:"mapping,omitempty"`
	Transforms []TransformSpec `json:"transforms,omitempty" yaml:"transforms,omitempty"`
	Refresh    RefreshConfig   `json:"refresh,omitempty" yaml:"refresh,omitempty"`
	Cache      CacheConfig     `json:"cache,omitempty" yaml:"cache,omitempty"`
}

// Source locates the backend. Endpoint is a URL for sql, api and websocket
// sources; Method, Headers and Body only apply to api sources.
type Source struct {
	Endpoint string            `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`
	Method   string            `json:"method,omitempty" yaml:"method,omitempty"`
	Headers  map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
	Body     any               `json:"body,omitempty" yaml:"body,omitempty"`
}

// VisualQuery is the AST produced by the visual query builder.
type VisualQuery struct {
	Select  []string    `json:"select,omitempty" yaml:"select,omitempty"`
	From    string      `json:"from,omitempty" yaml:"from,omitempty"`
	Where   []Condition `json:"where,omitempty" yaml:"where,omitempty"`
	GroupBy []string    `json:"groupBy,omitempty" yaml:"groupBy,omitempty"`
	OrderBy []OrderBy   `json:"orderBy,omitempty" yaml:"orderBy,omitempty"`
	Limit   int         `json:"limit,omitempty" yaml:"limit,omitempty"`
}

// Condition is one ANDed predicate. When Variable is set the value is bound
// from the query variables instead of Value.
type Condition struct {
	Field    string `json:"field" yaml:"field"`
	Operator string `json:"operator" yaml:"operator"`
	Value    any    `json:"value,omitempty" yaml:"value,omitempty"`
	Variable string `json:"variable,omitempty" yaml:"variable,omitempty"`
}

type OrderBy struct {
	Field     string `json:"field" yaml:"field"`
	Direction string `json:"direction,omitempty" yaml:"direction,omitempty"`
}

// Mapping projects transformed records onto widget roles, role -> field.
// The special value "auto" on the columns role derives table columns.
type Mapping map[string]string

type RefreshConfig struct {
	Enabled  bool     `json:"enabled" yaml:"enabled"`
	Interval Duration `json:"interval,omitempty" yaml:"interval,omitempty"`
}

type CacheConfig struct {
	Enabled bool     `json:"enabled" yaml:"enabled"`
	TTL     Duration `json:"ttl,omitempty" yaml:"ttl,omitempty"`
}

// Transform type tags.
const (
	TransformFilter    = "filter"
	TransformSort      = "sort"
	TransformAggregate = "aggregate"
	TransformCompute   = "compute"
	TransformPivot     = "pivot"
	TransformSlice     = "slice"
)

// TransformSpec is one tagged step of the transform pipeline. Only the
// fields relevant to Type are read.
type TransformSpec struct {
	Type string `json:"type" yaml:"type"`

	// filter, sort, compute
	Field    string `json:"field,omitempty" yaml:"field,omitempty"`
	Operator string `json:"operator,omitempty" yaml:"operator,omitempty"`
	Value    any    `json:"value,omitempty" yaml:"value,omitempty"`
	Order    string `json:"order,omitempty" yaml:"order,omitempty"`

	// aggregate
	GroupBy      []string      `json:"groupBy,omitempty" yaml:"groupBy,omitempty"`
	Aggregations []Aggregation `json:"aggregations,omitempty" yaml:"aggregations,omitempty"`

	// compute: Fn wins over Expression when both are set.
	Expression string           `json:"expression,omitempty" yaml:"expression,omitempty"`
	Fn         func(Record) any `json:"-" yaml:"-"`

	// pivot
	Rows    string `json:"rows,omitempty" yaml:"rows,omitempty"`
	Columns string `json:"columns,omitempty" yaml:"columns,omitempty"`
	Values  string `json:"values,omitempty" yaml:"values,omitempty"`

	// slice
	Start int  `json:"start,omitempty" yaml:"start,omitempty"`
	End   *int `json:"end,omitempty" yaml:"end,omitempty"`
}

type Aggregation struct {
	Field    string `json:"field" yaml:"field"`
	Function string `json:"function" yaml:"function"`
	As       string `json:"as,omitempty" yaml:"as,omitempty"`
}

// Alias is the output field name of the aggregation.
func (a Aggregation) Alias() string {
	if a.As != "" {
		return a.As
	}
	if a.Field == "" {
		return a.Function
	}
	return a.Function + "_" + a.Field
}
