package embed

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockEmbedderIsDeterministic(t *testing.T) {
	t.Parallel()
	m := NewMock(64)
	ctx := context.Background()

	a, err := m.Embed(ctx, "my favorite color is blue")
	require.NoError(t, err)
	b, err := m.Embed(ctx, "my favorite color is blue")
	require.NoError(t, err)
	c, err := m.Embed(ctx, "something else entirely")
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, m.Dimensions())
}

func TestMockEmbedderVectorsAreUnitLength(t *testing.T) {
	t.Parallel()
	m := NewMock(128)

	vec, err := m.Embed(context.Background(), "normalize me")
	require.NoError(t, err)

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, math.Sqrt(norm), 1e-5)
}
