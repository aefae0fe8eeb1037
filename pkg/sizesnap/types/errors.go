package types

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for each failure class. The concrete error types below
// match these with errors.Is.
var (
	// ErrConfiguration is returned when the option bag contains unknown keys
	// or values of the wrong type.
	ErrConfiguration = errors.New("invalid configuration")

	// ErrSourceSyntax is returned when the minifier, bundler or parser rejects
	// a chunk's code.
	ErrSourceSyntax = errors.New("source syntax error")

	// ErrMissingBaseline is returned in match mode when the snapshot has no
	// entry for the chunk.
	ErrMissingBaseline = errors.New("missing snapshot baseline")

	// ErrSnapshotMismatch is returned in match mode when one or more fields
	// grew beyond the threshold.
	ErrSnapshotMismatch = errors.New("snapshot mismatch")

	// ErrStorage is returned when the snapshot cannot be read, decoded or
	// written.
	ErrStorage = errors.New("snapshot storage error")
)

// ConfigError lists every unrecognized option key, plus any other problems
// found while decoding the option bag.
type ConfigError struct {
	// Keys are the unrecognized option names, in sorted order.
	Keys []string

	// Problems are type or range errors for recognized keys.
	Problems []string
}

func (e *ConfigError) Error() string {
	var parts []string

	quoted := make([]string, len(e.Keys))
	for i, k := range e.Keys {
		quoted[i] = fmt.Sprintf("%q", k)
	}
	switch len(quoted) {
	case 0:
	case 1:
		parts = append(parts, fmt.Sprintf("Option %s is invalid", quoted[0]))
	default:
		parts = append(parts, fmt.Sprintf("Options %s are invalid", strings.Join(quoted, ", ")))
	}

	parts = append(parts, e.Problems...)
	if len(parts) == 0 {
		return ErrConfiguration.Error()
	}
	return strings.Join(parts, "; ")
}

// Is matches ErrConfiguration.
func (e *ConfigError) Is(target error) bool {
	return target == ErrConfiguration
}

// SyntaxError reports that a collaborator rejected a chunk's code.
type SyntaxError struct {
	// Stage names the collaborator that failed: "minify", "bundle" or "parse".
	Stage string

	// Messages are the diagnostics reported by the collaborator.
	Messages []string
}

func (e *SyntaxError) Error() string {
	if len(e.Messages) == 0 {
		return fmt.Sprintf("%s: syntax error", e.Stage)
	}
	return fmt.Sprintf("%s: %s", e.Stage, strings.Join(e.Messages, "; "))
}

// Is matches ErrSourceSyntax.
func (e *SyntaxError) Is(target error) bool {
	return target == ErrSourceSyntax
}

// MissingBaselineError reports that match mode found no stored record for
// the chunk.
type MissingBaselineError struct {
	Name string
	Path string
}

func (e *MissingBaselineError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("no snapshot baseline for %q", e.Name)
	}
	return fmt.Sprintf("no snapshot baseline for %q in %s", e.Name, e.Path)
}

// Is matches ErrMissingBaseline.
func (e *MissingBaselineError) Is(target error) bool {
	return target == ErrMissingBaseline
}

// Violation is one field that grew beyond the threshold.
type Violation struct {
	Field     string `json:"field" yaml:"field"`
	Stored    int64  `json:"stored" yaml:"stored"`
	Got       int64  `json:"got" yaml:"got"`
	Threshold int64  `json:"threshold" yaml:"threshold"`
}

// Excess is the number of bytes by which the growth exceeds the threshold.
func (v Violation) Excess() int64 {
	return v.Got - v.Stored - v.Threshold
}

// Limit is the largest value that would have passed.
func (v Violation) Limit() int64 {
	return v.Stored + v.Threshold
}

func (v Violation) String() string {
	return fmt.Sprintf("%s: expected <= %d (stored %d + threshold %d), got %d, exceeded by %d bytes",
		v.Field, v.Limit(), v.Stored, v.Threshold, v.Got, v.Excess())
}

// MismatchError enumerates every field that exceeded the threshold.
type MismatchError struct {
	Name       string
	Violations []Violation
}

func (e *MismatchError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "size snapshot of %q does not match (%d field", e.Name, len(e.Violations))
	if len(e.Violations) != 1 {
		sb.WriteString("s")
	}
	sb.WriteString(" over threshold):")
	for _, v := range e.Violations {
		sb.WriteString("\n  ")
		sb.WriteString(v.String())
	}
	return sb.String()
}

// Is matches ErrSnapshotMismatch.
func (e *MismatchError) Is(target error) bool {
	return target == ErrSnapshotMismatch
}

// StorageError wraps a failure reading, decoding or writing the snapshot.
type StorageError struct {
	Op   string
	Path string
	Err  error
}

func (e *StorageError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("snapshot %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("snapshot %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// Is matches ErrStorage.
func (e *StorageError) Is(target error) bool {
	return target == ErrStorage
}
