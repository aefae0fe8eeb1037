package treeshake

import "strings"

// Reserved module ids of the virtual graph.
const (
	InputID  = "/__size_snapshot_input__.js"
	BundleID = "/__size_snapshot_bundle__.js"
)

// entrySource imports the bundle for its side effects only, so every export
// of the bundle is unused and can be dropped.
var entrySource = `import {} from "` + BundleID + `";`

// Graph is the two-module virtual graph served to the bundler: an entry
// module that imports nothing from the bundle, and the bundle itself.
// It never touches the filesystem.
type Graph struct {
	code string
}

// NewGraph builds the graph around code.
func NewGraph(code string) Graph {
	return Graph{code: code}
}

// Resolve reports whether id names one of the reserved modules. Matching is
// by substring so that resolver-decorated ids still match.
func (g Graph) Resolve(id string) (string, bool) {
	switch {
	case strings.Contains(id, InputID[1:]):
		return InputID, true
	case strings.Contains(id, BundleID[1:]):
		return BundleID, true
	default:
		return "", false
	}
}

// Load returns the content of a reserved module.
func (g Graph) Load(id string) (string, bool) {
	switch {
	case strings.Contains(id, InputID[1:]):
		return entrySource, true
	case strings.Contains(id, BundleID[1:]):
		return g.code, true
	default:
		return "", false
	}
}
