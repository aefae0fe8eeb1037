package minify

import (
	"runtime/debug"
	"sync"
)

const esbuildModule = "github.com/evanw/esbuild"

var engineVersion = sync.OnceValue(func() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "unknown"
	}
	return moduleVersion(info, esbuildModule)
})

// EngineVersion is the version of the linked esbuild module, or "unknown"
// when the binary carries no build information. Minified sizes can differ
// between esbuild releases.
func EngineVersion() string {
	return engineVersion()
}

func moduleVersion(info *debug.BuildInfo, path string) string {
	for _, dep := range info.Deps {
		if dep.Path != path {
			continue
		}
		if dep.Replace != nil && dep.Replace.Version != "" {
			return dep.Replace.Version
		}
		return dep.Version
	}
	return "unknown"
}
