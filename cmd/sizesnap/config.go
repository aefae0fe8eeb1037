package main

import (
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strings"

	"github.com/jamesainslie/sizesnap/pkg/sizesnap/config"
	"github.com/jamesainslie/sizesnap/pkg/sizesnap/options"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long: `Manage sizesnap configuration settings.

Configuration is loaded from:
  1. $XDG_CONFIG_HOME/sizesnap/config.yaml (if set)
  2. ~/.config/sizesnap/config.yaml

Environment variables can override config file settings using the SIZESNAP_ prefix,
and a .env file in the working directory is read first:
  SIZESNAP_SNAPSHOT_THRESHOLD=100
  SIZESNAP_MEASURE_WORKERS=8
  SIZESNAP_CACHE_ENABLED=false`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long:  `Display the effective configuration from all sources.`,
	RunE:  runConfigShow,
}

var configEditCmd = &cobra.Command{
	Use:   "edit",
	Short: "Edit configuration file",
	Long: `Open the configuration file in your default editor.

The editor is determined by:
  1. $VISUAL environment variable
  2. $EDITOR environment variable
  3. Falls back to 'vi'

If the config file doesn't exist, a default one will be created first.`,
	RunE: runConfigEdit,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create default configuration file",
	Long:  `Create a default configuration file if one doesn't exist.`,
	RunE:  runConfigInit,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show configuration file path",
	Long:  `Display the path to the configuration file.`,
	RunE:  runConfigPath,
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configEditCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configPathCmd)
	rootCmd.AddCommand(configCmd)
}

// runConfigShow prints the file in use, the decoded configuration, the
// snapshot options it resolves to and any SIZESNAP_ environment overrides.
func runConfigShow(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	opts, err := resolveOptions(cmd, cfg, "")
	if err != nil {
		return err
	}

	source := "(defaults, no file found)"
	if used := viper.ConfigFileUsed(); used != "" {
		if _, statErr := os.Stat(used); statErr == nil {
			source = used
		}
	}
	fmt.Printf("Config file: %s\n\n", source)

	if err := printYAMLSection("Configuration", cfg); err != nil {
		return err
	}
	if err := printYAMLSection("Snapshot options", map[string]any{
		options.KeySnapshotPath:  opts.SnapshotPath,
		options.KeyMatchSnapshot: opts.MatchSnapshot,
		options.KeyThreshold:     opts.Threshold,
		options.KeyPrintInfo:     opts.PrintInfo,
	}); err != nil {
		return err
	}

	fmt.Println("Environment overrides:")
	overrides := envOverrides(os.Environ())
	if len(overrides) == 0 {
		fmt.Println("  (none)")
	}
	for _, kv := range overrides {
		fmt.Printf("  %s\n", kv)
	}
	return nil
}

func printYAMLSection(title string, v any) error {
	out, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to render %s: %w", strings.ToLower(title), err)
	}
	fmt.Printf("%s:\n", title)
	for _, line := range strings.Split(strings.TrimRight(string(out), "\n"), "\n") {
		fmt.Printf("  %s\n", line)
	}
	fmt.Println()
	return nil
}

// envOverrides returns the SIZESNAP_* variables in env, sorted.
func envOverrides(env []string) []string {
	var out []string
	for _, kv := range env {
		if strings.HasPrefix(kv, "SIZESNAP_") {
			out = append(out, kv)
		}
	}
	sort.Strings(out)
	return out
}

// configFilePath is the --config file when given, else the XDG location.
func configFilePath() (string, error) {
	if cfgFile != "" {
		return config.ExpandPath(cfgFile)
	}
	return config.ConfigPath()
}

func editorCommand() string {
	for _, key := range []string{"VISUAL", "EDITOR"} {
		if e := os.Getenv(key); e != "" {
			return e
		}
	}
	return "vi"
}

func runConfigEdit(_ *cobra.Command, _ []string) error {
	path, err := configFilePath()
	if err != nil {
		return fmt.Errorf("failed to get config path: %w", err)
	}
	if cfgFile == "" {
		if _, err := config.WriteDefault(); err != nil {
			return fmt.Errorf("failed to create config file: %w", err)
		}
	}

	editor := editorCommand()
	printVerbose("Opening %s with %s", path, editor)

	c := exec.Command(editor, path)
	c.Stdin, c.Stdout, c.Stderr = os.Stdin, os.Stdout, os.Stderr
	if err := c.Run(); err != nil {
		return fmt.Errorf("%s: %w", editor, err)
	}
	return nil
}

func runConfigInit(_ *cobra.Command, _ []string) error {
	path, err := config.ConfigPath()
	if err != nil {
		return fmt.Errorf("failed to get config path: %w", err)
	}

	written, err := config.WriteDefault()
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	if written {
		printInfo("Created default config file: %s", path)
		return nil
	}
	printInfo("Config file already exists: %s", path)
	printInfo("Use 'sizesnap config edit' to modify it.")
	return nil
}

func runConfigPath(_ *cobra.Command, _ []string) error {
	path, err := configFilePath()
	if err != nil {
		return fmt.Errorf("failed to get config path: %w", err)
	}
	fmt.Println(path)

	switch _, err := os.Stat(path); {
	case err == nil:
		printVerbose("File exists")
	case os.IsNotExist(err):
		printVerbose("File does not exist (defaults apply)")
	}
	return nil
}
