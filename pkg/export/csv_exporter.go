// Package export renders tabular report output for download.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
)

// Supported formats.
const (
	FormatCSV = "csv"
	FormatPDF = "pdf"
)

// Table is an ordered, already formatted report body.
type Table struct {
	Title   string
	Headers []string
	Rows    [][]string
}

// Renderer writes a Table in one document format.
type Renderer interface {
	ContentType() string
	Extension() string
	Render(w io.Writer, table Table) error
}

// ForFormat resolves a renderer by format name.
func ForFormat(format string) (Renderer, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", FormatCSV:
		return CSVExporter{}, nil
	case FormatPDF:
		return PDFExporter{}, nil
	default:
		return nil, fmt.Errorf("unsupported export format %q", format)
	}
}

// CSVExporter renders a header line followed by one record per row.
type CSVExporter struct{}

func (CSVExporter) ContentType() string { return "text/csv; charset=utf-8" }
func (CSVExporter) Extension() string   { return FormatCSV }

// Render writes the table. Short rows are padded to the header width.
func (CSVExporter) Render(w io.Writer, table Table) error {
	if len(table.Headers) == 0 {
		return fmt.Errorf("csv requires at least one header")
	}
	writer := csv.NewWriter(w)
	if err := writer.Write(table.Headers); err != nil {
		return fmt.Errorf("write csv headers: %w", err)
	}
	record := make([]string, len(table.Headers))
	for _, row := range table.Rows {
		for i := range record {
			record[i] = ""
			if i < len(row) {
				record[i] = row[i]
			}
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}
