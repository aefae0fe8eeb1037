// Package plugin implements the per-chunk contract a bundler host drives:
// measure each rendered chunk, then record it in the snapshot or verify it
// against the snapshot.
package plugin

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/jamesainslie/sizesnap/pkg/sizesnap/logging"
	"github.com/jamesainslie/sizesnap/pkg/sizesnap/measure"
	"github.com/jamesainslie/sizesnap/pkg/sizesnap/options"
	"github.com/jamesainslie/sizesnap/pkg/sizesnap/snapshot"
	"github.com/jamesainslie/sizesnap/pkg/sizesnap/types"
)

// Name identifies the plugin to the host.
const Name = "size-snapshot"

// ChunkInfo is the chunk metadata supplied by the host.
type ChunkInfo struct {
	FileName string
}

// OutputOptions are the host's output settings for the chunk.
type OutputOptions struct {
	Format string
}

// Measurer computes size records.
type Measurer interface {
	Measure(ctx context.Context, chunk types.Chunk) (*types.SizeRecord, error)
}

// Plugin measures chunks and reconciles them with a snapshot.
type Plugin struct {
	opts     options.Options
	measurer Measurer
	store    *snapshot.Store
	out      io.Writer
	log      *logging.Logger
}

// Option configures a Plugin.
type Option func(*Plugin)

// WithMeasurer replaces the default measurer.
func WithMeasurer(m Measurer) Option {
	return func(p *Plugin) { p.measurer = m }
}

// WithStore replaces the file-backed store at the configured snapshot path.
func WithStore(s *snapshot.Store) Option {
	return func(p *Plugin) { p.store = s }
}

// WithOutput redirects informational output, which defaults to stdout.
func WithOutput(w io.Writer) Option {
	return func(p *Plugin) { p.out = w }
}

// New validates the option bag once and builds the plugin. Invalid options
// fail here, before any chunk is rendered.
func New(bag map[string]any, opts ...Option) (*Plugin, error) {
	parsed, err := options.Parse(bag)
	if err != nil {
		return nil, err
	}
	return NewWithOptions(parsed, opts...), nil
}

// NewWithOptions builds the plugin from already validated options.
func NewWithOptions(o options.Options, opts ...Option) *Plugin {
	p := &Plugin{
		opts: o,
		out:  os.Stdout,
		log:  logging.Get("plugin"),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.measurer == nil {
		p.measurer = measure.New()
	}
	if p.store == nil {
		p.store = snapshot.Open(o.SnapshotPath)
	}
	return p
}

// Name returns the plugin name.
func (p *Plugin) Name() string {
	return Name
}

// Options returns the validated options.
func (p *Plugin) Options() options.Options {
	return p.opts
}

// RenderChunk measures code and either verifies it against the snapshot
// (match mode) or prints its sizes and records it (write mode).
func (p *Plugin) RenderChunk(ctx context.Context, code string, chunk ChunkInfo, out OutputOptions) error {
	c := types.Chunk{Name: chunk.FileName, Source: code, Format: out.Format}

	rec, err := p.measurer.Measure(ctx, c)
	if err != nil {
		return err
	}

	if p.opts.MatchSnapshot {
		return p.store.Match(ctx, c.Name, *rec, p.opts.Threshold)
	}

	if p.opts.PrintInfo {
		if _, err := io.WriteString(p.out, Info(c.Name, c.Format, *rec)); err != nil {
			p.log.Warn("printing size info failed", "chunk", c.Name, "error", err)
		}
	}

	if err := p.store.Write(ctx, c.Name, *rec); err != nil {
		return err
	}
	p.log.Info("chunk recorded", "chunk", c.Name, "path", p.store.Location())
	return nil
}

var sizeStyle = lipgloss.NewStyle().Bold(true)

// Info renders the write-mode summary of one chunk.
func Info(name, format string, rec types.SizeRecord) string {
	size := func(n int64) string {
		return sizeStyle.Render(types.FormatBytes(n))
	}

	var sb strings.Builder
	sb.WriteString("\n")
	fmt.Fprintf(&sb, "Computed sizes of %q with %q format\n", name, types.PrettyFormat(format))
	fmt.Fprintf(&sb, "  bundler parsing size: %s\n", size(rec.Bundled))
	fmt.Fprintf(&sb, "  browser parsing size (minified with esbuild): %s\n", size(rec.Minified))
	fmt.Fprintf(&sb, "  download size (minified and gzipped): %s\n", size(rec.Gzipped))
	if rec.Treeshaked != nil {
		fmt.Fprintf(&sb, "  treeshaked with esbuild with production NODE_ENV and minified: %s\n", size(rec.Treeshaked.Code))
		fmt.Fprintf(&sb, "    import statements size of it: %s\n", size(rec.Treeshaked.ImportStatements))
	}
	return sb.String()
}
