package minify

import (
	"runtime/debug"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestModuleVersion(t *testing.T) {
	info := &debug.BuildInfo{Deps: []*debug.Module{
		{Path: "github.com/spf13/cobra", Version: "v1.10.2"},
		{Path: esbuildModule, Version: "v0.27.2"},
	}}
	assert.Equal(t, "v0.27.2", moduleVersion(info, esbuildModule))

	info.Deps[1].Replace = &debug.Module{Path: "github.com/example/esbuild", Version: "v0.27.3-fork"}
	assert.Equal(t, "v0.27.3-fork", moduleVersion(info, esbuildModule))

	info.Deps[1].Replace = &debug.Module{Path: "../esbuild"}
	assert.Equal(t, "v0.27.2", moduleVersion(info, esbuildModule))

	assert.Equal(t, "unknown", moduleVersion(&debug.BuildInfo{}, esbuildModule))
}

func TestEngineVersion_NotEmpty(t *testing.T) {
	assert.NotEmpty(t, EngineVersion())
}
