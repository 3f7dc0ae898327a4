package analyzer

import (
	"github.com/mcncl/jsonflat/internal/dialect"
	"github.com/mcncl/jsonflat/internal/errors"
	"github.com/mcncl/jsonflat/internal/models"
)

// Analyzer resolves the table schema of a set of records for one dialect.
type Analyzer struct {
	dialect dialect.Dialect
}

// NewAnalyzer creates a new Analyzer for the given dialect.
func NewAnalyzer(d dialect.Dialect) *Analyzer {
	return &Analyzer{dialect: d}
}

// Schema builds the table schema for columns, typing each column from its
// first non-null value in records.
func (a *Analyzer) Schema(tableName string, columns []string, records []models.Value) models.TableSchema {
	return models.TableSchema{
		Name:    tableName,
		Columns: InferColumnTypes(a.dialect, columns, records),
	}
}

// ResolveColumns returns the union of the keys of every object record, in
// the order each key is first seen. Records that are not objects contribute
// nothing.
func ResolveColumns(records []models.Value) ([]string, error) {
	seen := make(map[string]struct{})
	var columns []string

	for _, record := range records {
		if !record.IsObject() {
			continue
		}
		record.Object().Range(func(key string, _ models.Value) bool {
			if _, ok := seen[key]; !ok {
				seen[key] = struct{}{}
				columns = append(columns, key)
			}
			return true
		})
	}

	if len(columns) == 0 {
		return nil, errors.NewExtractionError("no columns found in data", errors.ErrNoColumns)
	}
	return columns, nil
}

// InferColumnTypes assigns each column the type of its first non-null value.
// Later values never change a column's type; a column with no non-null value
// is TEXT.
func InferColumnTypes(d dialect.Dialect, columns []string, records []models.Value) []models.Column {
	result := make([]models.Column, len(columns))
	for i, name := range columns {
		result[i] = models.Column{Name: name, Type: models.SQLText}
		if val, ok := firstValue(name, records); ok {
			result[i].Type = sqlType(d, val)
		}
	}
	return result
}

func firstValue(column string, records []models.Value) (models.Value, bool) {
	for _, record := range records {
		if !record.IsObject() {
			continue
		}
		val, ok := record.Object().Get(column)
		if ok && !val.IsNull() {
			return val, true
		}
	}
	return models.Value{}, false
}

func sqlType(d dialect.Dialect, val models.Value) models.SQLType {
	switch val.Kind() {
	case models.KindNumber:
		if models.IsWholeNumber(val.Number()) {
			return models.SQLInteger
		}
		return models.SQLDecimal
	case models.KindBool:
		return models.SQLBoolean
	case models.KindArray, models.KindObject:
		if d.NativeJSON() {
			return models.SQLJSONB
		}
		return models.SQLText
	default:
		return models.SQLText
	}
}
