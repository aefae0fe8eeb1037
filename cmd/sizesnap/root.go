package main

import (
	"fmt"
	"os"

	"github.com/jamesainslie/sizesnap/pkg/sizesnap/config"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	rootCmd = &cobra.Command{
		Use:   "sizesnap",
		Short: "Track the size of JavaScript bundle chunks",
		Long: `Sizesnap measures bundle chunks and keeps their sizes in a snapshot file.

Every chunk gets four numbers: its raw size, its size minified with esbuild,
its minified and gzipped size and, for ES modules, the size left after
tree-shaking every export away. Record them once, then verify future builds
against the snapshot with --match.

Examples:
  sizesnap measure dist/                 # Record every chunk under dist/
  sizesnap measure --match dist/         # Fail if any chunk grew
  sizesnap measure -t 100 --match dist/  # Tolerate 100 bytes of growth
  sizesnap watch dist/                   # Re-measure on change
  sizesnap snapshot show                 # Print the stored snapshot
  sizesnap history                       # View past runs`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: initializeLogging,
	}
)

func init() {
	cobra.OnInitialize(initConfig)

	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ~/.config/sizesnap/config.yaml)")
	rootCmd.PersistentFlags().StringP("snapshot-path", "p", "", "snapshot file (default: ./.size-snapshot.json)")
	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "minimal output")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "debug output")

	// Bind flags to viper
	_ = viper.BindPFlag("snapshot.path", rootCmd.PersistentFlags().Lookup("snapshot-path"))
	_ = viper.BindPFlag("quiet", rootCmd.PersistentFlags().Lookup("quiet"))
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
}

// initConfig reads the .env file, the config file and environment variables.
func initConfig() {
	// A .env in the working directory only fills variables that are unset.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		printVerbose("Ignoring .env: %v", err)
	}

	if err := config.Prepare(viper.GetViper(), cfgFile); err != nil {
		printError("%v", err)
	}
}

// loadConfig decodes the effective configuration: defaults, then the config
// file, then SIZESNAP_* variables, then flags.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Decode(viper.GetViper())
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// getVerbose returns true if verbose mode is enabled.
func getVerbose() bool {
	return viper.GetBool("verbose")
}

// getQuiet returns true if quiet mode is enabled.
func getQuiet() bool {
	return viper.GetBool("quiet")
}

// printVerbose prints a message if verbose mode is enabled.
func printVerbose(format string, args ...interface{}) {
	if getVerbose() && !getQuiet() {
		fmt.Fprintf(os.Stderr, "[DEBUG] "+format+"\n", args...)
	}
}

// printInfo prints a message if quiet mode is not enabled.
func printInfo(format string, args ...interface{}) {
	if !getQuiet() {
		fmt.Printf(format+"\n", args...)
	}
}

// printError prints an error message to stderr.
func printError(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
}
