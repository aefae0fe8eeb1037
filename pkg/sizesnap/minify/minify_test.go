package minify

import (
	"context"
	"testing"

	"github.com/jamesainslie/sizesnap/pkg/sizesnap/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `
// a comment that should disappear
function addNumbers(first, second) {
  const result = first + second;
  return result;
}

console.log(addNumbers(1, 2));
`

func TestMinify_ShrinksSource(t *testing.T) {
	m := New()

	got, err := m.Minify(context.Background(), sample, Options{})
	require.NoError(t, err)

	assert.NotEmpty(t, got)
	assert.Less(t, len(got), len(sample))
	assert.NotContains(t, got, "a comment")
	assert.NotContains(t, got, "\n")
}

func TestMinify_Deterministic(t *testing.T) {
	m := New()
	ctx := context.Background()

	first, err := m.Minify(ctx, sample, Options{})
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		again, err := m.Minify(ctx, sample, Options{})
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestMinify_Empty(t *testing.T) {
	m := New()

	for _, src := range []string{"", "   ", "\n\t\n"} {
		got, err := m.Minify(context.Background(), src, Options{})
		require.NoError(t, err)
		assert.Empty(t, got)
	}
}

func TestMinify_TopLevel(t *testing.T) {
	m := New()
	src := `export const value = 1 + 2;`

	got, err := m.Minify(context.Background(), src, Options{TopLevel: true})
	require.NoError(t, err)
	assert.Contains(t, got, "export")
	assert.Contains(t, got, "value")
}

func TestMinify_SyntaxError(t *testing.T) {
	m := New()

	_, err := m.Minify(context.Background(), "function (", Options{})
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrSourceSyntax)

	var syntaxErr *types.SyntaxError
	require.ErrorAs(t, err, &syntaxErr)
	assert.Equal(t, "minify", syntaxErr.Stage)
	assert.NotEmpty(t, syntaxErr.Messages)
}

func TestMinify_CanceledContext(t *testing.T) {
	m := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := m.Minify(ctx, sample, Options{})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}
