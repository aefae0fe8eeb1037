package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jamesainslie/sizesnap/pkg/sizesnap/output"
	"github.com/jamesainslie/sizesnap/pkg/sizesnap/snapshot"
	"github.com/jamesainslie/sizesnap/pkg/sizesnap/types"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Inspect the snapshot file",
	Long: `Inspect the sizes stored in the snapshot file.

The snapshot is a JSON object mapping chunk names to their recorded sizes.
Its location is --snapshot-path, snapshot.path in the config file, or
.size-snapshot.json in the current directory.`,
}

var snapshotShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the stored sizes",
	Long:  `Print every chunk recorded in the snapshot through an output formatter.`,
	Args:  cobra.NoArgs,
	RunE:  runSnapshotShow,
}

var snapshotDiffCmd = &cobra.Command{
	Use:   "diff [paths...]",
	Short: "Compare the snapshot against a fresh measurement",
	Long: `Measure the chunks under the given paths and compare them against the
snapshot without writing it. Unlike 'measure --match', every change is listed,
including chunks that shrank.`,
	RunE: runSnapshotDiff,
}

var snapshotPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show the snapshot file location",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		opts, err := resolveOptions(cmd, cfg, "")
		if err != nil {
			return err
		}
		fmt.Println(opts.SnapshotPath)
		return nil
	},
}

var (
	diffFormat  string
	diffNoCache bool
)

func init() {
	addOutputFlags(snapshotShowCmd)

	addOutputFlags(snapshotDiffCmd)
	snapshotDiffCmd.Flags().Int64P("threshold", "t", 0, "bytes each size may grow before a chunk is a mismatch")
	snapshotDiffCmd.Flags().StringVarP(&diffFormat, "format", "f", "", "force the module format of every chunk")
	snapshotDiffCmd.Flags().BoolVar(&diffNoCache, "no-cache", false, "bypass the measurement cache")

	snapshotCmd.AddCommand(snapshotShowCmd)
	snapshotCmd.AddCommand(snapshotDiffCmd)
	snapshotCmd.AddCommand(snapshotPathCmd)
	rootCmd.AddCommand(snapshotCmd)
}

// runSnapshotShow prints the stored snapshot.
func runSnapshotShow(cmd *cobra.Command, _ []string) error {
	bindOutputFlags(cmd)

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	opts, err := resolveOptions(cmd, cfg, "")
	if err != nil {
		return err
	}
	f, err := buildFilter()
	if err != nil {
		return fmt.Errorf("failed to build filter: %w", err)
	}
	formatter, err := buildFormatter()
	if err != nil {
		return err
	}

	store := snapshot.Open(opts.SnapshotPath)
	snap, err := store.Load(cmd.Context())
	if err != nil {
		return err
	}

	result := &output.Result{
		Chunks:       storedRows(snap),
		Mode:         "show",
		SnapshotPath: store.Location(),
	}
	result.Chunks = f.Apply(result.Chunks)

	var buf bytes.Buffer
	if err := formatter.Format(&buf, result); err != nil {
		return fmt.Errorf("failed to format output: %w", err)
	}
	fmt.Print(buf.String())
	return nil
}

// storedRows turns a snapshot into output rows. The snapshot does not keep
// the format; records with tree-shake sizes were ES modules.
func storedRows(snap snapshot.Snapshot) []output.ChunkResult {
	names := snap.Names()
	rows := make([]output.ChunkResult, len(names))
	for i, name := range names {
		rec := snap[name].Clone()
		format := ""
		if rec.Treeshaked != nil {
			format = types.FormatES
		}
		rows[i] = output.ChunkResult{Name: name, Format: format, Record: &rec, Status: output.StatusStored}
	}
	return rows
}

// runSnapshotDiff measures chunks and compares them against the snapshot.
func runSnapshotDiff(cmd *cobra.Command, args []string) error {
	bindOutputFlags(cmd)
	_ = viper.BindPFlag("snapshot.threshold", cmd.Flags().Lookup("threshold"))

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	opts, err := resolveOptions(cmd, cfg, "")
	if err != nil {
		return err
	}
	opts.MatchSnapshot = true

	f, err := buildFilter()
	if err != nil {
		return fmt.Errorf("failed to build filter: %w", err)
	}
	formatter, err := buildFormatter()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cands, err := discoverChunks(ctx, cfg, args, diffFormat, f.MatchName)
	if err != nil {
		return err
	}

	r := newRunner(cfg, opts, !diffNoCache)
	defer r.Close()

	start := time.Now()
	rows := r.measureCandidates(ctx, cands)
	if err := r.compare(ctx, rows); err != nil {
		return err
	}

	result := &output.Result{
		Chunks:       f.Apply(rows),
		Mode:         "diff",
		SnapshotPath: r.store.Location(),
		Duration:     time.Since(start),
	}
	result.Failures = countFailed(rows)

	var buf bytes.Buffer
	if err := formatter.Format(&buf, result); err != nil {
		return fmt.Errorf("failed to format output: %w", err)
	}
	if viper.GetString("output") == "pretty" || viper.GetString("output") == "plain" {
		writeChanges(&buf, result.Chunks)
	}
	fmt.Print(buf.String())
	return nil
}

func countFailed(rows []output.ChunkResult) int {
	n := 0
	for _, r := range rows {
		if r.Status.Failed() {
			n++
		}
	}
	return n
}

// writeChanges lists every field that changed, growth and shrinkage alike.
func writeChanges(buf *bytes.Buffer, rows []output.ChunkResult) {
	var sb strings.Builder
	for _, row := range rows {
		if row.Record == nil || row.Baseline == nil {
			continue
		}
		for _, d := range snapshot.Deltas(*row.Baseline, *row.Record) {
			if d.Delta == 0 {
				continue
			}
			fmt.Fprintf(&sb, "  %s %s: %s -> %s (%+d B)\n",
				row.Name, d.Field, types.FormatBytes(d.Stored), types.FormatBytes(d.Got), d.Delta)
		}
	}

	if sb.Len() == 0 {
		buf.WriteString("\nNo size changes.\n")
		return
	}
	buf.WriteString("\nChanges:\n")
	buf.WriteString(sb.String())
}
