// Package treeshake estimates how much of a chunk survives when it is
// imported for side effects only, after dead-code elimination and minification
// in a production build.
package treeshake

import (
	"context"
	"fmt"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/jamesainslie/sizesnap/pkg/sizesnap/esparse"
	"github.com/jamesainslie/sizesnap/pkg/sizesnap/logging"
	"github.com/jamesainslie/sizesnap/pkg/sizesnap/minify"
	"github.com/jamesainslie/sizesnap/pkg/sizesnap/types"
)

const namespace = "size-snapshot"

// Evaluator runs the isolated tree-shake build.
type Evaluator struct {
	minifier *minify.Minifier
	define   map[string]string
	log      *logging.Logger
}

// New creates an Evaluator that minifies with m.
func New(m *minify.Minifier) *Evaluator {
	return &Evaluator{
		minifier: m,
		define:   map[string]string{"process.env.NODE_ENV": `"production"`},
		log:      logging.Get("treeshake"),
	}
}

// Evaluate bundles code behind a side-effect-only import, minifies the
// result at top level and measures it along with its remaining top-level
// import declarations.
func (e *Evaluator) Evaluate(ctx context.Context, code string) (types.TreeshakeRecord, error) {
	bundled, err := e.bundle(ctx, code)
	if err != nil {
		return types.TreeshakeRecord{}, err
	}

	minified, err := e.minifier.Minify(ctx, bundled, minify.Options{TopLevel: true})
	if err != nil {
		return types.TreeshakeRecord{}, err
	}

	mod, err := esparse.Parse(minified)
	if err != nil {
		return types.TreeshakeRecord{}, err
	}

	return types.TreeshakeRecord{
		Code:             types.Length(minified),
		ImportStatements: mod.ImportSize(),
	}, nil
}

func (e *Evaluator) bundle(ctx context.Context, code string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("treeshake: %w", err)
	}

	graph := NewGraph(code)

	type outcome struct {
		code string
		err  error
	}
	done := make(chan outcome, 1)

	go func() {
		result := api.Build(api.BuildOptions{
			EntryPoints: []string{InputID},
			Bundle:      true,
			Write:       false,
			Format:      api.FormatESModule,
			Platform:    api.PlatformNeutral,
			Target:      api.ESNext,
			Charset:     api.CharsetUTF8,
			TreeShaking: api.TreeShakingTrue,
			Define:      e.define,
			LogLevel:    api.LogLevelSilent,
			Plugins:     []api.Plugin{virtualPlugin(graph)},
		})
		if len(result.Errors) > 0 {
			done <- outcome{err: &types.SyntaxError{Stage: "bundle", Messages: minify.Messages(result.Errors)}}
			return
		}
		done <- outcome{code: e.firstOutput(result.OutputFiles)}
	}()

	select {
	case <-ctx.Done():
		return "", fmt.Errorf("treeshake: %w", ctx.Err())
	case out := <-done:
		return out.code, out.err
	}
}

// firstOutput returns the first output file with content. A build that
// produces none yields empty code.
func (e *Evaluator) firstOutput(files []api.OutputFile) string {
	for _, f := range files {
		if len(f.Contents) > 0 {
			return string(f.Contents)
		}
	}
	e.log.Warn("bundle produced no output with code, measuring as empty", "outputs", len(files))
	return ""
}

// virtualPlugin serves the graph's reserved modules from memory and marks
// every other import external.
func virtualPlugin(g Graph) api.Plugin {
	return api.Plugin{
		Name: "size-snapshot-virtual",
		Setup: func(build api.PluginBuild) {
			build.OnResolve(api.OnResolveOptions{Filter: `.*`},
				func(args api.OnResolveArgs) (api.OnResolveResult, error) {
					if id, ok := g.Resolve(args.Path); ok {
						return api.OnResolveResult{Path: id, Namespace: namespace}, nil
					}
					return api.OnResolveResult{Path: args.Path, External: true}, nil
				})

			build.OnLoad(api.OnLoadOptions{Filter: `.*`, Namespace: namespace},
				func(args api.OnLoadArgs) (api.OnLoadResult, error) {
					contents, ok := g.Load(args.Path)
					if !ok {
						return api.OnLoadResult{}, fmt.Errorf("unknown virtual module %q", args.Path)
					}
					return api.OnLoadResult{
						Contents:   &contents,
						Loader:     api.LoaderJS,
						ResolveDir: "/",
					}, nil
				})
		},
	}
}
