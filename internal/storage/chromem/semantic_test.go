package chromem

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corvid-labs/hindsight/internal/core"
)

func newTestStore(t *testing.T) *SemanticStore {
	t.Helper()
	store, err := NewInMemory()
	require.NoError(t, err)
	return store
}

func TestUpsertIsIdempotentByID(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()

	vec := []float32{1, 0, 0}
	require.NoError(t, store.Upsert(ctx, core.Fragment{
		ID:        "frag-1",
		Text:      "favorite color is red",
		Embedding: vec,
	}))
	require.NoError(t, store.Upsert(ctx, core.Fragment{
		ID:        "frag-1",
		Text:      "favorite color is blue",
		Embedding: vec,
	}))

	matches, err := store.Search(ctx, vec, 10)
	require.NoError(t, err)
	require.Len(t, matches, 1, "re-upserting the same ID must not duplicate")
	assert.Equal(t, "favorite color is blue", matches[0].Fragment.Text)
}

func TestUpsertRejectsIncompleteFragments(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()

	err := store.Upsert(ctx, core.Fragment{Text: "no id", Embedding: []float32{1, 0, 0}})
	assert.ErrorIs(t, err, core.ErrStorage)

	err = store.Upsert(ctx, core.Fragment{ID: "frag-1", Text: "no embedding"})
	assert.ErrorIs(t, err, core.ErrStorage)
}

func TestSearchExcludesExpiredEvenWhenClosest(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()

	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	expired := now.Add(-time.Hour)
	require.NoError(t, store.Upsert(ctx, core.Fragment{
		ID:        "stale",
		Text:      "old address",
		Embedding: []float32{1, 0, 0},
		ExpiresAt: &expired,
	}))
	require.NoError(t, store.Upsert(ctx, core.Fragment{
		ID:        "live",
		Text:      "current address",
		Embedding: []float32{0.9, 0.43589, 0}, // close, but not the closest
	}))

	matches, err := store.Search(ctx, []float32{1, 0, 0}, 5)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "live", matches[0].Fragment.ID)
}

func TestSearchOrdersByDistanceThenRecency(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	query := []float32{1, 0, 0}

	// Two fragments with identical embeddings tie on distance; the newer
	// one must win the tie.
	require.NoError(t, store.Upsert(ctx, core.Fragment{
		ID: "older", Text: "older twin", Embedding: []float32{0.6, 0.8, 0},
		CreatedAt: base.Add(-2 * time.Hour),
	}))
	require.NoError(t, store.Upsert(ctx, core.Fragment{
		ID: "newer", Text: "newer twin", Embedding: []float32{0.6, 0.8, 0},
		CreatedAt: base.Add(-time.Hour),
	}))
	require.NoError(t, store.Upsert(ctx, core.Fragment{
		ID: "closest", Text: "closest", Embedding: []float32{1, 0, 0},
		CreatedAt: base.Add(-3 * time.Hour),
	}))

	matches, err := store.Search(ctx, query, 3)
	require.NoError(t, err)
	require.Len(t, matches, 3)

	assert.Equal(t, "closest", matches[0].Fragment.ID)
	assert.Equal(t, "newer", matches[1].Fragment.ID)
	assert.Equal(t, "older", matches[2].Fragment.ID)

	for i := 1; i < len(matches); i++ {
		assert.LessOrEqual(t, matches[i-1].Distance, matches[i].Distance)
	}
}

func TestSearchHonorsK(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()

	vecs := [][]float32{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}, {0.6, 0.8, 0}}
	for i, v := range vecs {
		require.NoError(t, store.Upsert(ctx, core.Fragment{
			ID:        string(rune('a' + i)),
			Text:      "fragment",
			Embedding: v,
		}))
	}

	matches, err := store.Search(ctx, []float32{1, 0, 0}, 2)
	require.NoError(t, err)
	assert.Len(t, matches, 2)
}

func TestSearchEmptyStore(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)

	matches, err := store.Search(context.Background(), []float32{1, 0, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, matches)
}
