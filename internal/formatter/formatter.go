// Package formatter renders conversion summaries for the terminal.
package formatter

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/mcncl/jsonflat/internal/batch"
	"github.com/mcncl/jsonflat/internal/errors"
	"github.com/mcncl/jsonflat/internal/models"
)

// Formatter writes human readable tables or JSON summaries.
type Formatter struct {
	JSON bool
}

// NewFormatter creates a new Formatter instance
func NewFormatter(jsonOutput bool) *Formatter {
	return &Formatter{JSON: jsonOutput}
}

// statsSummary is the JSON form of a single conversion summary.
type statsSummary struct {
	Format     models.Format     `json:"format"`
	LineCount  int               `json:"lineCount"`
	Statistics models.Statistics `json:"statistics"`
}

// Statistics writes the statistics of one conversion.
func (f *Formatter) Statistics(w io.Writer, result *models.ConversionResult) error {
	if result == nil {
		return nil
	}
	if f.JSON {
		return writeJSON(w, statsSummary{
			Format:     result.Format,
			LineCount:  result.LineCount,
			Statistics: result.Statistics,
		})
	}

	t := newTable(w)
	t.AppendHeader(table.Row{"Metric", "Value"})
	t.AppendRow(table.Row{"Format", string(result.Format)})
	t.AppendRow(table.Row{"Rows processed", result.Statistics.RowsProcessed})
	switch result.Format {
	case models.FormatSQL:
		t.AppendRow(table.Row{"Tables created", result.Statistics.TablesCreated})
	case models.FormatCSV:
		t.AppendRow(table.Row{"Headers detected", result.Statistics.HeadersDetected})
	}
	t.AppendRow(table.Row{"Lines", result.LineCount})
	t.Render()
	return nil
}

// batchRow is the JSON form of one batch result.
type batchRow struct {
	Input     string `json:"input"`
	Output    string `json:"output"`
	Table     string `json:"table,omitempty"`
	Rows      int    `json:"rowsProcessed"`
	LineCount int    `json:"lineCount"`
	Error     string `json:"error,omitempty"`
}

// Batch writes one line per batch job followed by a totals footer.
func (f *Formatter) Batch(w io.Writer, results []batch.Result) error {
	rows := make([]batchRow, len(results))
	totalRows := 0
	for i, r := range results {
		rows[i] = batchRow{
			Input:     r.Job.InputPath,
			Output:    r.Job.OutputPath,
			Rows:      r.Statistics.RowsProcessed,
			LineCount: r.LineCount,
		}
		if r.Job.Options.Format == models.FormatSQL {
			rows[i].Table = r.Job.Options.TableName
		}
		if r.Err != nil {
			rows[i].Error = errors.UserFriendlyError(r.Err)
		}
		totalRows += r.Statistics.RowsProcessed
	}

	if f.JSON {
		return writeJSON(w, rows)
	}

	if len(rows) == 0 {
		_, _ = fmt.Fprintln(w, "(0 files)")
		return nil
	}

	t := newTable(w)
	t.AppendHeader(table.Row{"Input", "Output", "Table", "Rows", "Status"})
	for _, r := range rows {
		status := text.FgGreen.Sprint("ok")
		if r.Error != "" {
			status = text.FgRed.Sprint(r.Error)
		}
		t.AppendRow(table.Row{r.Input, r.Output, r.Table, r.Rows, status})
	}
	failed := len(batch.Failed(results))
	t.AppendFooter(table.Row{
		fmt.Sprintf("%d files", len(rows)), "", "", totalRows,
		fmt.Sprintf("%d failed", failed),
	})
	t.Render()
	return nil
}

func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.Style().Format.Footer = text.FormatDefault
	return t
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
