package models

// Format is the output format of a conversion.
type Format string

const (
	FormatSQL Format = "sql"
	FormatCSV Format = "csv"
)

// Defaults applied to empty conversion options.
const (
	DefaultTableName    = "data_table"
	DefaultSQLDialect   = "postgresql"
	DefaultCSVDelimiter = ","
)

// Options is the immutable per-call configuration of one conversion.
type Options struct {
	Format       Format `json:"format" yaml:"format"`
	TableName    string `json:"tableName,omitempty" yaml:"table_name"`
	SQLDialect   string `json:"sqlDialect,omitempty" yaml:"sql_dialect"`
	CSVDelimiter string `json:"csvDelimiter,omitempty" yaml:"csv_delimiter"`
	// FlattenNested defaults to true when nil.
	FlattenNested *bool `json:"flattenNested,omitempty" yaml:"flatten_nested"`
	// Select is an optional jq expression applied to the parsed document
	// before records are extracted.
	Select string `json:"select,omitempty" yaml:"select"`
}

// WithDefaults returns a copy of o with empty fields set to their defaults.
func (o Options) WithDefaults() Options {
	if o.Format == "" {
		o.Format = FormatSQL
	}
	if o.TableName == "" {
		o.TableName = DefaultTableName
	}
	if o.SQLDialect == "" {
		o.SQLDialect = DefaultSQLDialect
	}
	if o.CSVDelimiter == "" {
		o.CSVDelimiter = DefaultCSVDelimiter
	}
	if o.FlattenNested == nil {
		o.FlattenNested = BoolPtr(true)
	}
	return o
}

// Flatten reports whether nested objects should be flattened.
func (o Options) Flatten() bool {
	return o.FlattenNested == nil || *o.FlattenNested
}

// BoolPtr returns a pointer to b.
func BoolPtr(b bool) *bool { return &b }

// Statistics summarises a conversion. TablesCreated is only set for SQL
// output and HeadersDetected only for CSV output.
type Statistics struct {
	RowsProcessed   int `json:"rowsProcessed"`
	TablesCreated   int `json:"tablesCreated,omitempty"`
	HeadersDetected int `json:"headersDetected,omitempty"`
}

// ConversionResult is the outcome of one successful conversion.
type ConversionResult struct {
	Output     string     `json:"output"`
	Format     Format     `json:"format"`
	LineCount  int        `json:"lineCount"`
	Statistics Statistics `json:"statistics"`
}
