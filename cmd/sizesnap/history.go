package main

import (
	"fmt"
	"strings"

	"github.com/jamesainslie/sizesnap/pkg/sizesnap/config"
	"github.com/jamesainslie/sizesnap/pkg/sizesnap/history"
	"github.com/jamesainslie/sizesnap/pkg/sizesnap/types"
	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "View measurement history",
	Long: `View the history of measure runs.

Every 'sizesnap measure' run is recorded with the sizes of each chunk, so
size trends can be followed across builds.`,
	RunE: runHistory,
}

var historyShowCmd = &cobra.Command{
	Use:   "show [id]",
	Short: "Show details of a specific run",
	Long:  `Display the per-chunk sizes of a run by its ID.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runHistoryShow,
}

var historyCleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Clean up old history entries",
	Long:  `Remove history entries older than the retention period.`,
	RunE:  runHistoryClean,
}

var (
	historyLimit int
)

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "l", 20, "maximum number of entries to show")

	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyCleanCmd)
	rootCmd.AddCommand(historyCmd)
}

// getHistory returns the history store in the configured directory.
func getHistory() (*history.History, *config.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	path := cfg.History.Path
	if path == "" {
		path = config.DefaultHistoryPath()
	}
	h, err := history.New(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize history: %w", err)
	}
	return h, cfg, nil
}

// runHistory lists recent runs.
func runHistory(cmd *cobra.Command, args []string) error {
	h, _, err := getHistory()
	if err != nil {
		return err
	}

	entries, err := h.List(historyLimit)
	if err != nil {
		return fmt.Errorf("failed to list history: %w", err)
	}

	if len(entries) == 0 {
		printInfo("No history entries found.")
		printInfo("Run 'sizesnap measure [paths]' to record a run.")
		return nil
	}

	fmt.Printf("\n%-40s  %-19s  %-6s  %-8s  %-12s\n", "ID", "TIME", "CHUNKS", "FAILURES", "GZIPPED")
	fmt.Println(strings.Repeat("-", 93))

	for _, entry := range entries {
		fmt.Printf("%-40s  %-19s  %-6d  %-8d  %-12s\n",
			truncateString(entry.ID, 40),
			entry.Timestamp.Local().Format("2006-01-02 15:04:05"),
			entry.Summary.Chunks,
			entry.Summary.Failures,
			types.FormatSize(entry.Summary.TotalGzipped),
		)
	}

	fmt.Println(strings.Repeat("-", 93))
	fmt.Printf("\nShowing %d entries. Use --limit to see more.\n", len(entries))
	fmt.Println("Use 'sizesnap history show <id>' for details on a specific run.")

	return nil
}

// runHistoryShow displays the chunks of one run.
func runHistoryShow(cmd *cobra.Command, args []string) error {
	h, _, err := getHistory()
	if err != nil {
		return err
	}

	entry, err := h.Get(args[0])
	if err != nil {
		return fmt.Errorf("failed to get entry: %w", err)
	}

	fmt.Println("\nRun Details")
	fmt.Println(strings.Repeat("=", 60))
	fmt.Printf("ID:           %s\n", entry.ID)
	fmt.Printf("Timestamp:    %s\n", entry.Timestamp.Local().Format("2006-01-02 15:04:05 MST"))
	fmt.Printf("Mode:         %s\n", entry.Mode)
	fmt.Printf("Snapshot:     %s\n", entry.SnapshotPath)
	fmt.Printf("Chunks:       %d (%d failed)\n", entry.Summary.Chunks, entry.Summary.Failures)
	fmt.Printf("Total Size:   %s\n", types.FormatSize(entry.Summary.TotalBundled))
	fmt.Printf("Gzipped:      %s\n", types.FormatSize(entry.Summary.TotalGzipped))

	if len(entry.Chunks) == 0 {
		return nil
	}

	fmt.Println("\nChunks:")
	fmt.Println(strings.Repeat("-", 60))
	fmt.Printf("%-12s  %-12s  %-12s  %s\n", "BUNDLED", "MINIFIED", "GZIPPED", "CHUNK")
	fmt.Println(strings.Repeat("-", 60))

	for _, c := range entry.Chunks {
		if c.Record == nil {
			fmt.Printf("%-12s  %-12s  %-12s  %s (%s)\n", "-", "-", "-", c.Name, truncateString(c.Error, 60))
			continue
		}
		fmt.Printf("%-12s  %-12s  %-12s  %s\n",
			types.FormatSize(c.Record.Bundled),
			types.FormatSize(c.Record.Minified),
			types.FormatSize(c.Record.Gzipped),
			c.Name,
		)
	}

	return nil
}

// runHistoryClean removes old history entries.
func runHistoryClean(cmd *cobra.Command, args []string) error {
	h, cfg, err := getHistory()
	if err != nil {
		return err
	}

	retentionDays := cfg.History.RetentionDays
	if retentionDays <= 0 {
		retentionDays = config.DefaultRetentionDays
	}

	printInfo("Cleaning history entries older than %d days...", retentionDays)

	removed, err := h.Cleanup(retentionDays)
	if err != nil {
		return fmt.Errorf("failed to clean history: %w", err)
	}

	printInfo("History cleanup complete: %d entries removed.", removed)
	return nil
}

// truncateString truncates a string to maxLen, adding "..." if truncated.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
