package output

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strings"

	"github.com/jamesainslie/sizesnap/pkg/sizesnap/types"
	"github.com/olekukonko/tablewriter"
)

// TableFormatter renders a bordered ASCII table with a totals footer.
type TableFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *TableFormatter) Format(w *bytes.Buffer, r *Result) error {
	table := tablewriter.NewWriter(w)
	table.SetHeader(Columns)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetColumnAlignment([]int{
		tablewriter.ALIGN_LEFT, tablewriter.ALIGN_LEFT,
		tablewriter.ALIGN_RIGHT, tablewriter.ALIGN_RIGHT, tablewriter.ALIGN_RIGHT,
		tablewriter.ALIGN_RIGHT, tablewriter.ALIGN_RIGHT,
		tablewriter.ALIGN_LEFT,
	})

	for _, c := range r.Chunks {
		table.Append(c.cells(types.FormatSize))
	}

	if len(r.Chunks) > 0 {
		total := ChunkResult{Name: "TOTAL", Status: Status(fmt.Sprintf("%d failed", r.Failures))}
		rec := r.Totals()
		total.Record = &rec
		table.SetFooter(total.cells(types.FormatSize))
		table.SetFooterAlignment(tablewriter.ALIGN_RIGHT)
	}

	table.Render()
	return nil
}

func init() {
	Register("table", func() Formatter {
		return &TableFormatter{}
	})
}

var _ Formatter = (*TableFormatter)(nil)

// TSVFormatter formats output as tab-separated values with raw byte counts.
type TSVFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *TSVFormatter) Format(w *bytes.Buffer, r *Result) error {
	w.WriteString(strings.Join(Columns, "\t") + "\n")
	for _, c := range r.Chunks {
		w.WriteString(strings.Join(c.cells(rawSize), "\t") + "\n")
	}
	return nil
}

func init() {
	Register("tsv", func() Formatter {
		return &TSVFormatter{}
	})
}

var _ Formatter = (*TSVFormatter)(nil)

// CSVFormatter formats output as RFC 4180 comma-separated values with raw
// byte counts.
type CSVFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *CSVFormatter) Format(w *bytes.Buffer, r *Result) error {
	writer := csv.NewWriter(w)

	if err := writer.Write(Columns); err != nil {
		return err
	}
	for _, c := range r.Chunks {
		if err := writer.Write(c.cells(rawSize)); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

func init() {
	Register("csv", func() Formatter {
		return &CSVFormatter{}
	})
}

var _ Formatter = (*CSVFormatter)(nil)

// MarkdownFormatter formats output as a GitHub-flavored Markdown table.
type MarkdownFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *MarkdownFormatter) Format(w *bytes.Buffer, r *Result) error {
	w.WriteString("| " + strings.Join(Columns, " | ") + " |\n")

	seps := make([]string, len(Columns))
	for i := range Columns {
		if i >= 2 && i <= 6 {
			seps[i] = "---:"
		} else {
			seps[i] = "---"
		}
	}
	w.WriteString("| " + strings.Join(seps, " | ") + " |\n")

	for _, c := range r.Chunks {
		cells := c.cells(types.FormatSize)
		for i := range cells {
			cells[i] = escapeMarkdownPipe(cells[i])
		}
		w.WriteString("| " + strings.Join(cells, " | ") + " |\n")
	}
	return nil
}

func escapeMarkdownPipe(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

func init() {
	Register("markdown", func() Formatter {
		return &MarkdownFormatter{}
	})
}

var _ Formatter = (*MarkdownFormatter)(nil)
