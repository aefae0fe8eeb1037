// Package config provides configuration management for sizesnap.
package config

import "time"

// Default configuration values.
const (
	// DefaultThreshold is the tolerated per-field growth in match mode.
	DefaultThreshold = 0

	// DefaultTimeout bounds the measurement of one chunk.
	DefaultTimeout = 60 * time.Second

	// DefaultFormat is assumed for chunks whose format cannot be inferred.
	DefaultFormat = "es"

	// DefaultRetentionDays is how long run history is kept.
	DefaultRetentionDays = 30

	// DefaultMemoryEntries sizes the in-process record cache.
	DefaultMemoryEntries = 512
)

// DefaultExtensions are the file extensions treated as chunks.
var DefaultExtensions = []string{".js", ".mjs", ".cjs"}
