package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jamesainslie/sizesnap/pkg/sizesnap/metrics"
	"github.com/jamesainslie/sizesnap/pkg/sizesnap/output"
	"github.com/jamesainslie/sizesnap/pkg/sizesnap/plugin"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var measureCmd = &cobra.Command{
	Use:   "measure [paths...]",
	Short: "Measure chunks and record or verify their sizes",
	Long: `Measure every chunk file under the given paths (default: the current directory).

Directories are walked for files with the configured extensions (.js, .mjs,
.cjs by default). A chunk is named by its path relative to the directory it
was found in, or by its file name when given directly.

Without --match the sizes are merged into the snapshot file. With --match
they are compared against it: a chunk fails when any size grew by more than
--threshold bytes, or when the snapshot has no entry for it.`,
	RunE: runMeasure,
}

var (
	measureNoCache     bool
	measureOptionsFile string
	measureFormat      string
	measureMetricsFile string
)

func init() {
	measureCmd.Flags().BoolP("match", "m", false, "verify against the snapshot instead of writing it")
	measureCmd.Flags().Int64P("threshold", "t", 0, "bytes each size may grow in --match mode")
	measureCmd.Flags().Bool("no-info", false, "don't print computed sizes when recording")
	measureCmd.Flags().StringVar(&measureOptionsFile, "options", "", "YAML or JSON file with plugin options")
	measureCmd.Flags().StringVarP(&measureFormat, "format", "f", "", "force the module format of every chunk (es, cjs, iife, ...)")
	measureCmd.Flags().IntP("workers", "w", 0, "chunks measured in parallel (default: measure.workers)")
	measureCmd.Flags().Duration("timeout", 0, "time limit per chunk (default: measure.timeout)")
	measureCmd.Flags().BoolVar(&measureNoCache, "no-cache", false, "bypass the measurement cache")
	measureCmd.Flags().StringVar(&measureMetricsFile, "metrics-file", "", "write Prometheus metrics to this textfile")
	addOutputFlags(measureCmd)

	rootCmd.AddCommand(measureCmd)
}

// bindMeasureFlags binds the flags that override config keys.
func bindMeasureFlags(cmd *cobra.Command) {
	bindOutputFlags(cmd)
	_ = viper.BindPFlag("snapshot.threshold", cmd.Flags().Lookup("threshold"))
	_ = viper.BindPFlag("measure.workers", cmd.Flags().Lookup("workers"))
	_ = viper.BindPFlag("measure.timeout", cmd.Flags().Lookup("timeout"))
}

// runMeasure is the measure command handler.
func runMeasure(cmd *cobra.Command, args []string) error {
	bindMeasureFlags(cmd)

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	opts, err := resolveOptions(cmd, cfg, measureOptionsFile)
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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cands, err := discoverChunks(ctx, cfg, args, measureFormat, f.MatchName)
	if err != nil {
		return err
	}
	if len(cands) == 0 {
		printInfo("No chunks found.")
		return nil
	}

	r := newRunner(cfg, opts, !measureNoCache)
	defer r.Close()

	printVerbose("Measuring %d chunks with %d workers", len(cands), cfg.Measure.Workers)
	start := time.Now()

	rows := r.measureCandidates(ctx, cands)
	if errors.Is(ctx.Err(), context.Canceled) {
		return fmt.Errorf("interrupted")
	}
	if err := r.reconcile(ctx, rows); err != nil {
		return err
	}

	result := &output.Result{
		Chunks:       rows,
		Mode:         string(r.mode()),
		SnapshotPath: r.store.Location(),
		Duration:     time.Since(start),
	}
	result.Tally()

	if !opts.MatchSnapshot && opts.PrintInfo && !getQuiet() && viper.GetString("output") == "pretty" {
		for _, row := range rows {
			if row.Record != nil {
				fmt.Print(plugin.Info(row.Name, row.Format, *row.Record))
			}
		}
		fmt.Println()
	}

	result.Chunks = f.Sort(rows)
	if f.Limit > 0 && len(result.Chunks) > f.Limit {
		result.Chunks = result.Chunks[:f.Limit]
	}

	var buf bytes.Buffer
	if err := formatter.Format(&buf, result); err != nil {
		return fmt.Errorf("failed to format output: %w", err)
	}
	fmt.Print(buf.String())

	r.recordHistory(rows)

	if measureMetricsFile != "" {
		m := metrics.New()
		result.Chunks = rows
		m.Record(result, time.Now())
		if err := m.WriteTextfile(measureMetricsFile); err != nil {
			return fmt.Errorf("failed to write metrics: %w", err)
		}
		printVerbose("Wrote metrics to %s", measureMetricsFile)
	}

	return failureSummary(rows)
}
