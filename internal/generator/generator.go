// Package generator renders a resolved table as SQL statements or CSV text.
package generator

import (
	"strings"

	"github.com/mcncl/jsonflat/internal/analyzer"
	"github.com/mcncl/jsonflat/internal/dialect"
	"github.com/mcncl/jsonflat/internal/errors"
	"github.com/mcncl/jsonflat/internal/models"
)

// SQLResult is the rendered SQL script and its statistics.
type SQLResult struct {
	SQL           string
	TablesCreated int
	RowsProcessed int
}

// GenerateSQL renders a DROP/CREATE TABLE pair followed by one INSERT per
// object record. Records that are not objects are counted in RowsProcessed
// but produce no INSERT.
func GenerateSQL(tableName string, d dialect.Dialect, columns []string, records []models.Value) (SQLResult, error) {
	if strings.TrimSpace(tableName) == "" {
		return SQLResult{}, errors.NewConfigError("table name cannot be empty", errors.ErrInvalidOptions)
	}
	schema := analyzer.NewAnalyzer(d).Schema(tableName, columns, records)
	return RenderSQL(d, schema, records), nil
}

// RenderSQL renders records into the already inferred schema.
func RenderSQL(d dialect.Dialect, schema models.TableSchema, records []models.Value) SQLResult {
	var buf strings.Builder
	table := d.QuoteIdent(schema.Name)

	buf.WriteString("-- Table: " + schema.Name + "\n")
	buf.WriteString("DROP TABLE IF EXISTS " + table + ";\n\n")
	buf.WriteString("CREATE TABLE " + table + " (\n")

	defs := make([]string, len(schema.Columns))
	quoted := make([]string, len(schema.Columns))
	for i, col := range schema.Columns {
		quoted[i] = d.QuoteIdent(col.Name)
		defs[i] = "  " + quoted[i] + " " + string(col.Type)
	}
	buf.WriteString(strings.Join(defs, ",\n"))
	buf.WriteString("\n);\n\n")

	buf.WriteString("-- Insert data\n")
	columnList := strings.Join(quoted, ", ")
	for _, record := range records {
		if !record.IsObject() {
			continue
		}
		values := make([]string, len(schema.Columns))
		for i, col := range schema.Columns {
			val, _ := record.Object().Get(col.Name)
			values[i] = sqlLiteral(d, val)
		}
		buf.WriteString("INSERT INTO " + table + " (" + columnList + ") VALUES (" + strings.Join(values, ", ") + ");\n")
	}

	return SQLResult{
		SQL:           buf.String(),
		TablesCreated: 1,
		RowsProcessed: len(records),
	}
}

// sqlLiteral renders a value for an INSERT. A missing key arrives as the
// zero Value and renders as NULL.
func sqlLiteral(d dialect.Dialect, val models.Value) string {
	switch val.Kind() {
	case models.KindNull:
		return "NULL"
	case models.KindNumber:
		return models.FormatNumber(val.Number())
	case models.KindBool:
		return d.BoolLiteral(val.Bool())
	default:
		return dialect.QuoteString(val.Text())
	}
}
