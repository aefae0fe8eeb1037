package output

import (
	"bytes"
	"strings"
	"text/tabwriter"

	"github.com/jamesainslie/sizesnap/pkg/sizesnap/types"
)

// PlainFormatter formats output as an aligned table without styling,
// suitable for scripting and piping.
type PlainFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *PlainFormatter) Format(w *bytes.Buffer, r *Result) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	if _, err := tw.Write([]byte(strings.Join(Columns, "\t") + "\n")); err != nil {
		return err
	}
	for _, c := range r.Chunks {
		if _, err := tw.Write([]byte(strings.Join(c.cells(types.FormatSize), "\t") + "\n")); err != nil {
			return err
		}
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	for _, c := range r.Chunks {
		if c.Error != "" {
			w.WriteString("error: " + c.Name + ": " + c.Error + "\n")
		}
		for _, v := range c.Violations {
			w.WriteString("mismatch: " + c.Name + ": " + v.String() + "\n")
		}
	}
	return nil
}

func init() {
	Register("plain", func() Formatter {
		return &PlainFormatter{}
	})
}

var _ Formatter = (*PlainFormatter)(nil)
