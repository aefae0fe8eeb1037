// Package options validates the plugin option bag.
package options

import (
	"fmt"
	"math"
	"os"
	"sort"

	"github.com/go-viper/mapstructure/v2"
	"github.com/jamesainslie/sizesnap/pkg/sizesnap/snapshot"
	"github.com/jamesainslie/sizesnap/pkg/sizesnap/types"
	"gopkg.in/yaml.v3"
)

// Recognized option keys.
const (
	KeySnapshotPath  = "snapshotPath"
	KeyMatchSnapshot = "matchSnapshot"
	KeyThreshold     = "threshold"
	KeyPrintInfo     = "printInfo"
)

// Options is the validated plugin configuration.
type Options struct {
	// SnapshotPath is where the snapshot file lives.
	SnapshotPath string `mapstructure:"snapshotPath" yaml:"snapshotPath" json:"snapshotPath"`

	// MatchSnapshot switches from recording to verifying.
	MatchSnapshot bool `mapstructure:"matchSnapshot" yaml:"matchSnapshot" json:"matchSnapshot"`

	// Threshold is the per-field growth in bytes tolerated in match mode.
	Threshold int64 `mapstructure:"threshold" yaml:"threshold" json:"threshold"`

	// PrintInfo prints the computed sizes of each chunk in write mode.
	PrintInfo bool `mapstructure:"printInfo" yaml:"printInfo" json:"printInfo"`
}

// Defaults returns the options used for keys absent from the bag.
func Defaults() (Options, error) {
	path, err := snapshot.DefaultPath()
	if err != nil {
		return Options{}, err
	}
	return Options{
		SnapshotPath: path,
		PrintInfo:    true,
	}, nil
}

// Parse validates bag against the option schema and fills in defaults.
// Keys are case-sensitive. Every unknown key is reported in one
// *types.ConfigError, together with any type or range problems.
func Parse(bag map[string]any) (Options, error) {
	opts, err := Defaults()
	if err != nil {
		return Options{}, err
	}
	return Merge(opts, bag)
}

// Merge decodes bag over base.
func Merge(base Options, bag map[string]any) (Options, error) {
	opts := base
	cfgErr := &types.ConfigError{}

	if v, ok := bag[KeyThreshold]; ok {
		if f, isFloat := v.(float64); isFloat && f != math.Trunc(f) {
			cfgErr.Problems = append(cfgErr.Problems, fmt.Sprintf("threshold must be an integer, got %v", f))
			bag = without(bag, KeyThreshold)
		}
	}

	var md mapstructure.Metadata
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Metadata: &md,
		Result:   &opts,
		MatchName: func(mapKey, fieldName string) bool {
			return mapKey == fieldName
		},
	})
	if err != nil {
		return Options{}, fmt.Errorf("building option decoder: %w", err)
	}

	if err := dec.Decode(bag); err != nil {
		cfgErr.Problems = append(cfgErr.Problems, err.Error())
	}

	if len(md.Unused) > 0 {
		cfgErr.Keys = append(cfgErr.Keys, md.Unused...)
		sort.Strings(cfgErr.Keys)
	}

	if opts.Threshold < 0 {
		cfgErr.Problems = append(cfgErr.Problems, fmt.Sprintf("threshold must be non-negative, got %d", opts.Threshold))
	}
	// An empty path means "use the default", as if the key were absent.
	if opts.SnapshotPath == "" {
		opts.SnapshotPath = base.SnapshotPath
	}
	if opts.SnapshotPath == "" {
		path, err := snapshot.DefaultPath()
		if err != nil {
			return Options{}, err
		}
		opts.SnapshotPath = path
	}

	if len(cfgErr.Keys) > 0 || len(cfgErr.Problems) > 0 {
		return Options{}, cfgErr
	}
	return opts, nil
}

// ToMap renders opts as an option bag.
func (o Options) ToMap() map[string]any {
	return map[string]any{
		KeySnapshotPath:  o.SnapshotPath,
		KeyMatchSnapshot: o.MatchSnapshot,
		KeyThreshold:     o.Threshold,
		KeyPrintInfo:     o.PrintInfo,
	}
}

// LoadFile reads an option bag from a YAML or JSON file.
func LoadFile(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading options file: %w", err)
	}

	bag := map[string]any{}
	if err := yaml.Unmarshal(data, &bag); err != nil {
		return nil, &types.ConfigError{Problems: []string{fmt.Sprintf("parsing %s: %v", path, err)}}
	}
	return bag, nil
}

func without(bag map[string]any, key string) map[string]any {
	out := make(map[string]any, len(bag))
	for k, v := range bag {
		if k != key {
			out[k] = v
		}
	}
	return out
}
