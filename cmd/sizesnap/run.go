package main

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/jamesainslie/sizesnap/pkg/sizesnap/cache"
	"github.com/jamesainslie/sizesnap/pkg/sizesnap/config"
	"github.com/jamesainslie/sizesnap/pkg/sizesnap/discover"
	"github.com/jamesainslie/sizesnap/pkg/sizesnap/history"
	"github.com/jamesainslie/sizesnap/pkg/sizesnap/logging"
	"github.com/jamesainslie/sizesnap/pkg/sizesnap/measure"
	"github.com/jamesainslie/sizesnap/pkg/sizesnap/options"
	"github.com/jamesainslie/sizesnap/pkg/sizesnap/output"
	"github.com/jamesainslie/sizesnap/pkg/sizesnap/snapshot"
	"github.com/jamesainslie/sizesnap/pkg/sizesnap/types"
	"github.com/spf13/cobra"
)

// runner holds what one measurement run needs: the effective options, a
// measurer (with its cache) and the snapshot store.
type runner struct {
	cfg      *config.Config
	opts     options.Options
	measurer *measure.Measurer
	store    *snapshot.Store
	cache    *cache.Cache
	log      *logging.Logger
}

// newRunner wires a runner. A cache that cannot be opened is logged and
// skipped; measurement works without it.
func newRunner(cfg *config.Config, opts options.Options, useCache bool) *runner {
	r := &runner{
		cfg:   cfg,
		opts:  opts,
		store: snapshot.Open(opts.SnapshotPath),
		log:   logging.Get("measure"),
	}

	measureOpts := []measure.Option{measure.WithTimeout(cfg.Measure.Timeout)}
	if useCache && cfg.Cache.Enabled {
		c, err := cache.Open(cfg.Cache.Path, cfg.Cache.MemoryEntries)
		if err != nil {
			r.log.Warn("cache unavailable, measuring without it", "path", cfg.Cache.Path, "error", err)
			printVerbose("Cache unavailable: %v", err)
		} else {
			r.cache = c
			measureOpts = append(measureOpts, measure.WithCache(c))
		}
	}
	r.measurer = measure.New(measureOpts...)
	return r
}

// Close releases the cache.
func (r *runner) Close() {
	if r.cache == nil {
		return
	}
	if stats, err := r.cache.Stats(); err == nil {
		r.log.Debug("cache stats", "hits", stats.Hits, "misses", stats.Misses, "entries", stats.Entries)
	}
	if err := r.cache.Close(); err != nil {
		r.log.Warn("closing cache failed", "error", err)
	}
}

func (r *runner) mode() history.Mode {
	if r.opts.MatchSnapshot {
		return history.ModeMatch
	}
	return history.ModeWrite
}

// measureCandidates loads and measures candidates in parallel. The rows come
// back in candidate order; chunks that could not be read or measured carry
// StatusFailed.
func (r *runner) measureCandidates(ctx context.Context, cands []discover.Candidate) []output.ChunkResult {
	rows := make([]output.ChunkResult, len(cands))
	chunks := make([]types.Chunk, 0, len(cands))
	index := make([]int, 0, len(cands))

	for i, c := range cands {
		rows[i] = output.ChunkResult{Name: c.Name, Format: c.Format}
		chunk, err := discover.Load(c)
		if err != nil {
			rows[i].Status = output.StatusFailed
			rows[i].Error = err.Error()
			continue
		}
		chunks = append(chunks, chunk)
		index = append(index, i)
	}

	for j, res := range r.measurer.MeasureAll(ctx, chunks, r.cfg.Measure.Workers) {
		row := &rows[index[j]]
		if res.Err != nil {
			row.Status = output.StatusFailed
			row.Error = res.Err.Error()
			r.log.Error("measurement failed", "chunk", row.Name, "error", res.Err)
			continue
		}
		row.Record = res.Record
	}
	return rows
}

// reconcile records the measured rows in the snapshot (write mode) or
// compares them against it (match mode), setting each row's status.
// Failed rows are left alone. A storage failure aborts the run.
func (r *runner) reconcile(ctx context.Context, rows []output.ChunkResult) error {
	if r.opts.MatchSnapshot {
		return r.compare(ctx, rows)
	}

	records := make(map[string]types.SizeRecord)
	for _, row := range rows {
		if row.Record != nil {
			records[row.Name] = *row.Record
		}
	}
	if len(records) > 0 {
		if err := r.store.WriteAll(ctx, records); err != nil {
			return err
		}
	}
	for i := range rows {
		if rows[i].Record != nil {
			rows[i].Status = output.StatusRecorded
		}
	}
	r.log.Info("snapshot updated", "path", r.store.Location(), "chunks", len(records))
	return nil
}

// compare checks rows against the stored snapshot without writing.
func (r *runner) compare(ctx context.Context, rows []output.ChunkResult) error {
	snap, err := r.store.Load(ctx)
	if err != nil {
		return err
	}

	for i := range rows {
		row := &rows[i]
		if row.Record == nil {
			continue
		}

		stored, ok := snap[row.Name]
		if !ok {
			row.Status = output.StatusMissing
			row.Error = (&types.MissingBaselineError{Name: row.Name, Path: r.store.Location()}).Error()
			continue
		}

		baseline := stored.Clone()
		row.Baseline = &baseline
		row.Violations = snapshot.Compare(stored, *row.Record, r.opts.Threshold)
		if len(row.Violations) > 0 {
			row.Status = output.StatusMismatch
			r.log.Warn("snapshot mismatch", "chunk", row.Name, "violations", len(row.Violations))
		} else {
			row.Status = output.StatusMatched
		}
	}
	return nil
}

// recordHistory appends the run to the history directory when enabled.
// History is best effort: failures are logged, not returned.
func (r *runner) recordHistory(rows []output.ChunkResult) {
	if !r.cfg.History.Enabled {
		return
	}
	h, err := history.New(r.cfg.History.Path)
	if err != nil {
		r.log.Warn("history unavailable", "path", r.cfg.History.Path, "error", err)
		return
	}

	records := make([]history.ChunkRecord, len(rows))
	for i, row := range rows {
		records[i] = history.ChunkRecord{Name: row.Name, Format: row.Format, Record: row.Record, Error: row.Error}
	}
	entry, err := h.Record(r.mode(), r.store.Location(), records)
	if err != nil {
		r.log.Warn("recording history failed", "error", err)
		return
	}
	printVerbose("Recorded run %s", entry.ID)
}

// resolveOptions builds the plugin options for a command: defaults, then the
// config file, then an --options file, then flags the user set explicitly.
func resolveOptions(cmd *cobra.Command, cfg *config.Config, optionsFile string) (options.Options, error) {
	base, err := options.Defaults()
	if err != nil {
		return options.Options{}, err
	}

	layer := map[string]any{
		options.KeyThreshold: cfg.Snapshot.Threshold,
		options.KeyPrintInfo: cfg.Snapshot.PrintInfo,
	}
	if cfg.Snapshot.Path != "" {
		layer[options.KeySnapshotPath] = cfg.Snapshot.Path
	}
	opts, err := options.Merge(base, layer)
	if err != nil {
		return options.Options{}, err
	}

	if optionsFile != "" {
		bag, err := options.LoadFile(optionsFile)
		if err != nil {
			return options.Options{}, err
		}
		if opts, err = options.Merge(opts, bag); err != nil {
			return options.Options{}, fmt.Errorf("%s: %w", optionsFile, err)
		}
	}

	flags := map[string]any{}
	if f := cmd.Flags().Lookup("snapshot-path"); f != nil && f.Changed {
		flags[options.KeySnapshotPath] = cfg.Snapshot.Path
	}
	if f := cmd.Flags().Lookup("threshold"); f != nil && f.Changed {
		flags[options.KeyThreshold] = cfg.Snapshot.Threshold
	}
	if f := cmd.Flags().Lookup("match"); f != nil && f.Changed {
		v, _ := cmd.Flags().GetBool("match")
		flags[options.KeyMatchSnapshot] = v
	}
	if f := cmd.Flags().Lookup("no-info"); f != nil && f.Changed {
		v, _ := cmd.Flags().GetBool("no-info")
		flags[options.KeyPrintInfo] = !v
	}
	if len(flags) == 0 {
		return opts, nil
	}
	return options.Merge(opts, flags)
}

// discoverChunks finds chunk files under paths, keeping those whose names
// pass match.
func discoverChunks(ctx context.Context, cfg *config.Config, paths []string, format string, match func(string) bool) ([]discover.Candidate, error) {
	if len(paths) == 0 {
		paths = []string{"."}
	}

	expanded := make([]string, len(paths))
	for i, p := range paths {
		e, err := config.ExpandPath(p)
		if err != nil {
			return nil, err
		}
		expanded[i] = e
	}

	cands, err := discover.Discover(ctx, expanded, discover.Options{
		Extensions:    cfg.Measure.Extensions,
		Format:        format,
		DefaultFormat: cfg.Measure.DefaultFormat,
	})
	if err != nil {
		return nil, err
	}

	kept := cands[:0]
	for _, c := range cands {
		if match == nil || match(c.Name) {
			kept = append(kept, c)
		}
	}
	return kept, nil
}

// failureSummary describes the failing rows of a run for the exit error.
// It returns nil when nothing failed.
func failureSummary(rows []output.ChunkResult) error {
	counts := map[output.Status]int{}
	failed := 0
	for _, c := range rows {
		if c.Status.Failed() {
			counts[c.Status]++
			failed++
		}
	}
	if failed == 0 {
		return nil
	}

	statuses := make([]string, 0, len(counts))
	for s := range counts {
		statuses = append(statuses, string(s))
	}
	sort.Strings(statuses)

	parts := make([]string, len(statuses))
	for i, s := range statuses {
		parts[i] = fmt.Sprintf("%d %s", counts[output.Status(s)], s)
	}
	return fmt.Errorf("%d of %d chunks failed (%s)", failed, len(rows), strings.Join(parts, ", "))
}
