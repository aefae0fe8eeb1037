package main

import (
	"fmt"
	"runtime"

	"github.com/jamesainslie/sizesnap/pkg/sizesnap/minify"
	"github.com/spf13/cobra"
)

// Set with -ldflags by the stavefile.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long: `Display the sizesnap version and build details.

Sizes depend on the bundled esbuild, so its version is shown too: a snapshot
recorded with one esbuild release may drift by a few bytes under another.`,
	Args: cobra.NoArgs,
	RunE: runVersion,
}

func init() {
	versionCmd.Flags().Bool("short", false, "print only the version")
	rootCmd.AddCommand(versionCmd)
}

func runVersion(cmd *cobra.Command, _ []string) error {
	if short, _ := cmd.Flags().GetBool("short"); short {
		fmt.Println(version)
		return nil
	}

	fmt.Printf("sizesnap %s\n", version)
	fmt.Printf("  commit:  %s\n", commit)
	fmt.Printf("  built:   %s\n", date)
	fmt.Printf("  esbuild: %s\n", minify.EngineVersion())
	fmt.Printf("  go:      %s\n", runtime.Version())
	fmt.Printf("  os/arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
	return nil
}

