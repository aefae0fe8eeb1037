// Package minify adapts esbuild's transform API into the minifier used for
// size measurement.
package minify

import (
	"context"
	"fmt"
	"strings"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/jamesainslie/sizesnap/pkg/sizesnap/types"
)

// Options tunes a single minification.
type Options struct {
	// TopLevel lets the minifier rename and drop top-level bindings. It
	// treats the input as an ES module, which is more aggressive than the
	// default script-safe mode.
	TopLevel bool
}

// Minifier minifies JavaScript source text with esbuild.
// It is stateless and safe for concurrent use.
type Minifier struct {
	target api.Target
}

// New creates a Minifier targeting the latest ECMAScript version, so that no
// syntax is lowered and the output size reflects minification alone.
func New() *Minifier {
	return &Minifier{target: api.ESNext}
}

// Minify returns the minified form of src.
//
// Empty or whitespace-only input yields empty output without invoking
// esbuild. Code that esbuild cannot parse yields a *types.SyntaxError.
func (m *Minifier) Minify(ctx context.Context, src string, opts Options) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("minify: %w", err)
	}
	if strings.TrimSpace(src) == "" {
		return "", nil
	}

	format := api.FormatDefault
	if opts.TopLevel {
		format = api.FormatESModule
	}

	type outcome struct {
		code string
		err  error
	}
	done := make(chan outcome, 1)

	go func() {
		result := api.Transform(src, api.TransformOptions{
			Loader:            api.LoaderJS,
			Format:            format,
			Target:            m.target,
			Charset:           api.CharsetUTF8,
			MinifyWhitespace:  true,
			MinifyIdentifiers: true,
			MinifySyntax:      true,
			LogLevel:          api.LogLevelSilent,
		})
		if len(result.Errors) > 0 {
			done <- outcome{err: &types.SyntaxError{Stage: "minify", Messages: Messages(result.Errors)}}
			return
		}
		// esbuild terminates its output with a newline; it is not part of the code.
		done <- outcome{code: strings.TrimSuffix(string(result.Code), "\n")}
	}()

	select {
	case <-ctx.Done():
		return "", fmt.Errorf("minify: %w", ctx.Err())
	case out := <-done:
		return out.code, out.err
	}
}

// Messages renders esbuild diagnostics as "line:col: text" strings.
func Messages(msgs []api.Message) []string {
	out := make([]string, 0, len(msgs))
	for _, msg := range msgs {
		if msg.Location != nil {
			out = append(out, fmt.Sprintf("%d:%d: %s", msg.Location.Line, msg.Location.Column, msg.Text))
			continue
		}
		out = append(out, msg.Text)
	}
	return out
}
