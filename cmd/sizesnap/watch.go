package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/jamesainslie/sizesnap/pkg/sizesnap/config"
	"github.com/jamesainslie/sizesnap/pkg/sizesnap/discover"
	"github.com/jamesainslie/sizesnap/pkg/sizesnap/filter"
	"github.com/jamesainslie/sizesnap/pkg/sizesnap/plugin"
	"github.com/jamesainslie/sizesnap/pkg/sizesnap/types"
	"github.com/jamesainslie/sizesnap/pkg/sizesnap/watch"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var watchCmd = &cobra.Command{
	Use:   "watch [paths...]",
	Short: "Re-measure chunks whenever they change",
	Long: `Watch chunk files and measure each one again after it changes.

Each changed chunk is handled the way a bundler plugin would handle a freshly
rendered chunk: recorded into the snapshot, or with --match verified against
it. Failures are reported and watching continues. Stop with Ctrl-C.`,
	RunE: runWatch,
}

var (
	watchNoCache  bool
	watchFormat   string
	watchDebounce time.Duration
	watchOptions  string
)

func init() {
	watchCmd.Flags().BoolP("match", "m", false, "verify against the snapshot instead of writing it")
	watchCmd.Flags().Int64P("threshold", "t", 0, "bytes each size may grow in --match mode")
	watchCmd.Flags().Bool("no-info", false, "don't print computed sizes when recording")
	watchCmd.Flags().StringVar(&watchOptions, "options", "", "YAML or JSON file with plugin options")
	watchCmd.Flags().StringVarP(&watchFormat, "format", "f", "", "force the module format of every chunk")
	watchCmd.Flags().BoolVar(&watchNoCache, "no-cache", false, "bypass the measurement cache")
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", watch.DefaultDebounce, "quiet period before re-measuring")
	watchCmd.Flags().String("include", "", "only chunks matching these globs (comma-separated)")
	watchCmd.Flags().StringSlice("exclude", nil, "skip chunks matching these globs")

	rootCmd.AddCommand(watchCmd)
}

// runWatch is the watch command handler.
func runWatch(cmd *cobra.Command, args []string) error {
	_ = viper.BindPFlag("snapshot.threshold", cmd.Flags().Lookup("threshold"))
	_ = viper.BindPFlag("include", cmd.Flags().Lookup("include"))
	_ = viper.BindPFlag("exclude", cmd.Flags().Lookup("exclude"))

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	opts, err := resolveOptions(cmd, cfg, watchOptions)
	if err != nil {
		return err
	}
	f, err := filter.New(
		filter.WithInclude(parseCommaSeparated(viper.GetString("include"))...),
		filter.WithExclude(viper.GetStringSlice("exclude")...),
	)
	if err != nil {
		return err
	}

	if len(args) == 0 {
		args = []string{"."}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	r := newRunner(cfg, opts, !watchNoCache)
	defer r.Close()

	p := plugin.NewWithOptions(opts,
		plugin.WithMeasurer(r.measurer),
		plugin.WithStore(r.store),
		plugin.WithOutput(os.Stdout),
	)

	w, err := watch.New(
		watch.WithDebounce(watchDebounce),
		watch.WithFilter(func(path string) bool {
			return discoverable(path, cfg.Measure.Extensions)
		}),
		watch.WithSkipDirs(discover.DefaultSkipDirs...),
	)
	if err != nil {
		return fmt.Errorf("failed to start watcher: %w", err)
	}
	defer func() { _ = w.Close() }()

	for _, path := range args {
		expanded, err := config.ExpandPath(path)
		if err != nil {
			return fmt.Errorf("failed to expand path: %w", err)
		}
		if err := w.Watch(expanded); err != nil {
			return fmt.Errorf("failed to watch %s: %w", path, err)
		}
	}

	mode := "Recording into"
	if opts.MatchSnapshot {
		mode = "Verifying against"
	}
	printInfo("%s %s. Watching %d path(s) for changes...", mode, r.store.Location(), len(args))

	w.Run(ctx, func(changed []string) {
		cands, err := discoverChunks(ctx, cfg, args, watchFormat, f.MatchName)
		if err != nil {
			printError("%v", err)
			return
		}
		byPath := make(map[string]discover.Candidate, len(cands))
		for _, c := range cands {
			if abs, err := filepath.Abs(c.Path); err == nil {
				byPath[abs] = c
			}
		}

		for _, path := range changed {
			c, ok := byPath[path]
			if !ok {
				continue
			}
			renderChanged(ctx, p, c, opts.MatchSnapshot)
		}
	})

	if errors.Is(ctx.Err(), context.Canceled) {
		printInfo("\nStopped watching.")
	}
	return nil
}

// renderChanged feeds one changed chunk through the plugin and reports the
// outcome.
func renderChanged(ctx context.Context, p *plugin.Plugin, c discover.Candidate, match bool) {
	chunk, err := discover.Load(c)
	if err != nil {
		printError("%v", err)
		return
	}

	err = p.RenderChunk(ctx, chunk.Source, plugin.ChunkInfo{FileName: c.Name}, plugin.OutputOptions{Format: c.Format})
	switch {
	case err == nil && match:
		printInfo("ok: %s", c.Name)
	case err == nil:
		printVerbose("Recorded %s", c.Name)
	case errors.Is(err, types.ErrSnapshotMismatch), errors.Is(err, types.ErrMissingBaseline):
		printError("%v", err)
	default:
		printError("%s: %v", c.Name, err)
	}
}

// discoverable reports whether path has one of the chunk extensions.
func discoverable(path string, exts []string) bool {
	if len(exts) == 0 {
		exts = discover.DefaultExtensions
	}
	ext := filepath.Ext(path)
	for _, e := range exts {
		if e == ext {
			return true
		}
	}
	return false
}
