package generator

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/mcncl/jsonflat/internal/errors"
	"github.com/mcncl/jsonflat/internal/models"
)

// CSVResult is the rendered CSV text and its statistics.
type CSVResult struct {
	CSV             string
	HeadersDetected int
	RowsProcessed   int
}

// ValidateDelimiter checks that delimiter is a single character that cannot
// be confused with quoting or row breaks.
func ValidateDelimiter(delimiter string) error {
	if utf8.RuneCountInString(delimiter) != 1 {
		return errors.NewConfigError("CSV delimiter must be exactly one character, got "+strconv.Quote(delimiter), errors.ErrInvalidOptions)
	}
	switch delimiter {
	case `"`, "\n", "\r":
		return errors.NewConfigError("CSV delimiter cannot be a quote or line break", errors.ErrInvalidOptions)
	}
	return nil
}

// GenerateCSV renders a header row followed by one row per object record.
// Cells for missing keys are empty.
func GenerateCSV(delimiter string, columns []string, records []models.Value) (CSVResult, error) {
	if err := ValidateDelimiter(delimiter); err != nil {
		return CSVResult{}, err
	}

	var buf strings.Builder
	writeRow(&buf, delimiter, columns)

	cells := make([]string, len(columns))
	for _, record := range records {
		if !record.IsObject() {
			continue
		}
		for i, col := range columns {
			val, _ := record.Object().Get(col)
			cells[i] = val.Text()
		}
		writeRow(&buf, delimiter, cells)
	}

	return CSVResult{
		CSV:             buf.String(),
		HeadersDetected: len(columns),
		RowsProcessed:   len(records),
	}, nil
}

func writeRow(buf *strings.Builder, delimiter string, cells []string) {
	for i, cell := range cells {
		if i > 0 {
			buf.WriteString(delimiter)
		}
		buf.WriteString(escapeCell(cell, delimiter))
	}
	buf.WriteByte('\n')
}

// escapeCell quotes text that contains the delimiter, \n, \r or a
// double quote, doubling the quotes inside it.
func escapeCell(text, delimiter string) string {
	if !strings.Contains(text, delimiter) && !strings.ContainsAny(text, "\n\r\"") {
		return text
	}
	return `"` + strings.ReplaceAll(text, `"`, `""`) + `"`
}
