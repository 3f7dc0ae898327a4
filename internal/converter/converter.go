// Package converter ties parsing, record extraction, column resolution and
// rendering into a single conversion call.
package converter

import (
	"context"
	"strings"

	"github.com/mcncl/jsonflat/internal/analyzer"
	"github.com/mcncl/jsonflat/internal/dialect"
	"github.com/mcncl/jsonflat/internal/errors"
	"github.com/mcncl/jsonflat/internal/extractor"
	"github.com/mcncl/jsonflat/internal/generator"
	"github.com/mcncl/jsonflat/internal/models"
	"github.com/mcncl/jsonflat/internal/parser"
	"github.com/mcncl/jsonflat/internal/query"
)

// Converter converts JSON documents to SQL or CSV. It holds no per-call
// state and is safe for concurrent use.
type Converter struct {
	engine *query.Engine
}

// New creates a Converter.
func New() *Converter {
	return &Converter{engine: query.NewEngine()}
}

var defaultConverter = New()

// Convert converts input with the default Converter.
func Convert(input string, opts models.Options) (*models.ConversionResult, error) {
	return defaultConverter.Convert(context.Background(), input, opts)
}

// ValidateOptions rejects options the renderers cannot honour. Unknown SQL
// dialects are accepted and rendered with double-quoted identifiers.
func ValidateOptions(opts models.Options) error {
	switch opts.Format {
	case models.FormatSQL:
		if strings.TrimSpace(opts.TableName) == "" {
			return errors.NewConfigError("table name cannot be empty", errors.ErrInvalidOptions)
		}
	case models.FormatCSV:
		return generator.ValidateDelimiter(opts.CSVDelimiter)
	default:
		return errors.NewConfigError("unsupported output format \""+string(opts.Format)+"\"; expected sql or csv", errors.ErrInvalidOptions)
	}
	return nil
}

// Convert parses input, optionally narrows it with opts.Select, and renders
// the extracted records in opts.Format. Empty options take their defaults.
func (c *Converter) Convert(ctx context.Context, input string, opts models.Options) (*models.ConversionResult, error) {
	opts = opts.WithDefaults()
	if err := ValidateOptions(opts); err != nil {
		return nil, err
	}

	ir, err := parser.ParseString(input)
	if err != nil {
		return nil, err
	}

	root := ir.Root
	if opts.Select != "" {
		root, err = c.engine.Select(ctx, root, opts.Select)
		if err != nil {
			return nil, err
		}
	}

	records, err := extractor.Process(root, opts.Flatten())
	if err != nil {
		return nil, err
	}

	columns, err := analyzer.ResolveColumns(records)
	if err != nil {
		return nil, err
	}

	var (
		output string
		stats  models.Statistics
	)
	switch opts.Format {
	case models.FormatSQL:
		res, err := generator.GenerateSQL(opts.TableName, dialect.Parse(opts.SQLDialect), columns, records)
		if err != nil {
			return nil, err
		}
		output = res.SQL
		stats = models.Statistics{RowsProcessed: res.RowsProcessed, TablesCreated: res.TablesCreated}
	case models.FormatCSV:
		res, err := generator.GenerateCSV(opts.CSVDelimiter, columns, records)
		if err != nil {
			return nil, err
		}
		output = res.CSV
		stats = models.Statistics{RowsProcessed: res.RowsProcessed, HeadersDetected: res.HeadersDetected}
	}

	return &models.ConversionResult{
		Output:     output,
		Format:     opts.Format,
		LineCount:  LineCount(output),
		Statistics: stats,
	}, nil
}

// LineCount is the number of pieces output splits into on "\n", so text
// ending in a newline counts one trailing empty line.
func LineCount(output string) int {
	return strings.Count(output, "\n") + 1
}

// CountRecords predicts how many records input yields with flattening
// enabled. Input that does not parse counts as zero.
func CountRecords(input string) int {
	ir, err := parser.ParseString(input)
	if err != nil {
		return 0
	}
	return extractor.CountRecords(ir.Root)
}
