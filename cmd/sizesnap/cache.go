package main

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/jamesainslie/sizesnap/pkg/sizesnap/cache"
	"github.com/jamesainslie/sizesnap/pkg/sizesnap/config"
	"github.com/spf13/cobra"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the measurement cache",
	Long: `Commands for managing the sizesnap measurement cache.

Size records depend only on a chunk's format and source, so they are cached
by content hash and reused when an unchanged chunk is measured again. Cache
data is stored in the XDG cache directory (typically ~/.cache/sizesnap/records).`,
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Clear all cached records",
	Long:  `Removes all cached records. The next run measures every chunk from scratch.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cachePath := cachePath()

		if _, err := os.Stat(cachePath); os.IsNotExist(err) {
			fmt.Println("Cache is already empty.")
			return nil
		}

		c, err := cache.Open(cachePath, 0)
		if err != nil {
			return fmt.Errorf("failed to open cache: %w", err)
		}
		defer func() { _ = c.Close() }()

		if err := c.Clear(); err != nil {
			return fmt.Errorf("failed to clear cache: %w", err)
		}

		fmt.Println("Cache cleared.")
		return nil
	},
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show cache statistics",
	Long:  `Displays the cache location, the number of cached records and their size on disk.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cachePath := cachePath()

		if _, err := os.Stat(cachePath); os.IsNotExist(err) {
			fmt.Println("Cache: empty (no cache directory)")
			fmt.Printf("Cache location: %s\n", cachePath)
			return nil
		}

		c, err := cache.Open(cachePath, 0)
		if err != nil {
			return fmt.Errorf("failed to open cache: %w", err)
		}
		defer func() { _ = c.Close() }()

		stats, err := c.Stats()
		if err != nil {
			return fmt.Errorf("failed to read cache stats: %w", err)
		}

		fmt.Printf("Cache location: %s\n", cachePath)
		fmt.Printf("Cached records: %s\n", humanize.Comma(int64(stats.Entries)))
		fmt.Printf("Cache size:     %s\n", humanize.IBytes(uint64(max(stats.DiskBytes, 0))))

		return nil
	},
}

var cachePathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show cache location",
	Long:  `Prints the path to the cache directory.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(cachePath())
	},
}

func init() {
	cacheCmd.AddCommand(cacheClearCmd)
	cacheCmd.AddCommand(cacheStatsCmd)
	cacheCmd.AddCommand(cachePathCmd)
	rootCmd.AddCommand(cacheCmd)
}

// cachePath returns the configured cache directory.
func cachePath() string {
	cfg, err := loadConfig()
	if err != nil || cfg.Cache.Path == "" {
		return config.DefaultCachePath()
	}
	return cfg.Cache.Path
}
