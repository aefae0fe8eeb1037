package treeshake

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGraph_Resolve(t *testing.T) {
	g := NewGraph("export const a = 1;")

	tests := []struct {
		id     string
		want   string
		wantOK bool
	}{
		{InputID, InputID, true},
		{BundleID, BundleID, true},
		{"\x00virtual:/__size_snapshot_bundle__.js", BundleID, true},
		{"react", "", false},
		{"./local.js", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			got, ok := g.Resolve(tt.id)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGraph_Load(t *testing.T) {
	code := "export const a = 1;"
	g := NewGraph(code)

	entry, ok := g.Load(InputID)
	assert.True(t, ok)
	assert.Equal(t, `import {} from "/__size_snapshot_bundle__.js";`, entry)

	bundle, ok := g.Load(BundleID)
	assert.True(t, ok)
	assert.Equal(t, code, bundle)

	_, ok = g.Load("lodash")
	assert.False(t, ok)
}
