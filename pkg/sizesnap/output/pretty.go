package output

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/jamesainslie/sizesnap/pkg/sizesnap/types"
)

// PrettyFormatter renders a styled table for terminal display.
type PrettyFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *PrettyFormatter) Format(w *bytes.Buffer, r *Result) error {
	w.WriteString(f.formatHeader(r))
	w.WriteString("\n")
	w.WriteString(f.formatTable(r))
	w.WriteString(f.formatFooter(r))
	w.WriteString("\n")

	if problems := f.formatProblems(r); problems != "" {
		w.WriteString("\n")
		w.WriteString(problems)
	}
	return nil
}

func (f *PrettyFormatter) formatHeader(r *Result) string {
	var parts []string
	if r.SnapshotPath != "" {
		parts = append(parts, LabelStyle.Render("Snapshot:")+" "+ValueStyle.Render(r.SnapshotPath))
	}
	if r.Mode != "" {
		parts = append(parts, LabelStyle.Render("Mode:")+" "+ValueStyle.Render(r.Mode))
	}
	if r.Duration > 0 {
		parts = append(parts, LabelStyle.Render("Took:")+" "+ValueStyle.Render(formatDuration(r.Duration)))
	}
	if len(parts) == 0 {
		parts = append(parts, LabelStyle.Render("sizesnap"))
	}
	return HeaderBox.Render(strings.Join(parts, "  "))
}

// formatTable aligns columns by their unstyled width, then styles cells.
func (f *PrettyFormatter) formatTable(r *Result) string {
	if len(r.Chunks) == 0 {
		return MutedStyle.Render("  No chunks measured") + "\n"
	}

	rows := make([][]string, len(r.Chunks))
	widths := make([]int, len(Columns))
	for i, h := range Columns {
		widths[i] = lipgloss.Width(h)
	}
	for i, c := range r.Chunks {
		rows[i] = c.cells(types.FormatSize)
		for j, cell := range rows[i] {
			widths[j] = max(widths[j], lipgloss.Width(cell))
		}
	}

	var sb strings.Builder
	header := make([]string, len(Columns))
	for j, h := range Columns {
		header[j] = TableHeaderStyle.Render(pad(h, widths[j], j >= 2 && j <= 6))
	}
	sb.WriteString("  " + strings.Join(header, "  ") + "\n")

	for i, row := range rows {
		cells := make([]string, len(row))
		for j, cell := range row {
			padded := pad(cell, widths[j], j >= 2 && j <= 6)
			switch {
			case j == 4:
				cells[j] = SizeStyle.Render(padded)
			case j == len(row)-1:
				cells[j] = statusStyle(r.Chunks[i].Status).Render(padded)
			default:
				cells[j] = ValueStyle.Render(padded)
			}
		}
		sb.WriteString("  " + strings.Join(cells, "  ") + "\n")
	}
	return sb.String()
}

func (f *PrettyFormatter) formatFooter(r *Result) string {
	total := r.Totals()
	parts := []string{
		LabelStyle.Render("Chunks:") + " " + ValueStyle.Render(fmt.Sprintf("%d", len(r.Chunks))),
		LabelStyle.Render("Minified:") + " " + SizeStyle.Render(types.FormatSize(total.Minified)),
		LabelStyle.Render("Gzipped:") + " " + SizeStyle.Render(types.FormatSize(total.Gzipped)),
	}
	if r.Failures > 0 {
		parts = append(parts, ErrorStyle.Render(fmt.Sprintf("%d failed", r.Failures)))
	} else {
		parts = append(parts, MutedStyle.Render("Use -o plain for unformatted output"))
	}
	return FooterBox.Render(strings.Join(parts, "  "))
}

func (f *PrettyFormatter) formatProblems(r *Result) string {
	var sb strings.Builder
	for _, c := range r.Chunks {
		switch {
		case c.Error != "":
			sb.WriteString(ErrorStyle.Render(fmt.Sprintf("  %s: %s", c.Name, c.Error)))
			sb.WriteString("\n")
		case len(c.Violations) > 0:
			sb.WriteString(ErrorStyle.Render("  " + c.Name + ":"))
			sb.WriteString("\n")
			for _, v := range c.Violations {
				sb.WriteString(WarningStyle.Render("    " + v.String()))
				sb.WriteString("\n")
			}
		}
	}
	if sb.Len() == 0 {
		return ""
	}
	return WarningStyle.Bold(true).Render("Problems:") + "\n" + sb.String()
}

func pad(s string, width int, right bool) string {
	n := width - lipgloss.Width(s)
	if n <= 0 {
		return s
	}
	if right {
		return strings.Repeat(" ", n) + s
	}
	return s + strings.Repeat(" ", n)
}

func init() {
	Register("pretty", func() Formatter {
		return &PrettyFormatter{}
	})
}

var _ Formatter = (*PrettyFormatter)(nil)
