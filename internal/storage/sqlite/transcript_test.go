package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corvid-labs/hindsight/internal/core"
)

func newTestRepo(t *testing.T) *TranscriptRepo {
	t.Helper()
	ctx := context.Background()

	db, err := NewDB(ctx, filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return NewTranscriptRepo(db)
}

func appendTurn(t *testing.T, repo *TranscriptRepo, sessionID, role, content string, at time.Time) int64 {
	t.Helper()
	id, err := repo.Append(context.Background(), core.Turn{
		SessionID: sessionID,
		Role:      role,
		Content:   content,
		CreatedAt: at,
	})
	require.NoError(t, err)
	return id
}

func TestTranscriptAppendAssignsMonotonicIDs(t *testing.T) {
	t.Parallel()
	repo := newTestRepo(t)

	base := time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC)
	first := appendTurn(t, repo, "s1", core.RoleUser, "hello", base)
	second := appendTurn(t, repo, "s1", core.RoleAssistant, "hi", base.Add(time.Second))

	assert.Greater(t, second, first)
}

func TestRecentBySessionOrdering(t *testing.T) {
	t.Parallel()
	repo := newTestRepo(t)
	ctx := context.Background()

	base := time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		role := core.RoleUser
		if i%2 == 1 {
			role = core.RoleAssistant
		}
		appendTurn(t, repo, "s1", role, "msg", base.Add(time.Duration(i)*time.Minute))
	}
	// Another session must not leak in.
	appendTurn(t, repo, "s2", core.RoleUser, "other", base)

	turns, err := repo.RecentBySession(ctx, "s1", 3)
	require.NoError(t, err)
	require.Len(t, turns, 3)

	for i := 1; i < len(turns); i++ {
		assert.True(t, turns[i].CreatedAt.After(turns[i-1].CreatedAt),
			"turns must be strictly ascending by timestamp")
	}
	for _, turn := range turns {
		assert.Equal(t, "s1", turn.SessionID)
	}
}

func TestQueryByTimeRangeInclusive(t *testing.T) {
	t.Parallel()
	repo := newTestRepo(t)
	ctx := context.Background()

	base := time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC)
	appendTurn(t, repo, "s1", core.RoleUser, "before", base.Add(-time.Hour))
	appendTurn(t, repo, "s1", core.RoleUser, "start", base)
	appendTurn(t, repo, "s1", core.RoleAssistant, "middle", base.Add(30*time.Minute))
	appendTurn(t, repo, "s1", core.RoleUser, "end", base.Add(time.Hour))
	appendTurn(t, repo, "s1", core.RoleUser, "after", base.Add(2*time.Hour))

	turns, err := repo.QueryByTimeRange(ctx, "s1", base, base.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, turns, 3)
	assert.Equal(t, "start", turns[0].Content)
	assert.Equal(t, "end", turns[2].Content)
}

func TestQueryByTimeRangeEmptyIsNotError(t *testing.T) {
	t.Parallel()
	repo := newTestRepo(t)

	turns, err := repo.QueryByTimeRange(context.Background(), "missing",
		time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Empty(t, turns)
}

func TestQueryByPredicate(t *testing.T) {
	t.Parallel()
	repo := newTestRepo(t)
	ctx := context.Background()

	base := time.Date(2025, 6, 9, 0, 0, 0, 0, time.UTC) // yesterday relative to the 10th
	appendTurn(t, repo, "s1", core.RoleUser, "we talked about deploys", base.Add(10*time.Hour))
	appendTurn(t, repo, "s1", core.RoleAssistant, "deploys went fine", base.Add(10*time.Hour).Add(time.Minute))
	appendTurn(t, repo, "s1", core.RoleUser, "unrelated chatter", base.Add(11*time.Hour))
	appendTurn(t, repo, "s1", core.RoleUser, "too late", base.Add(25*time.Hour))

	t.Run("range only returns the calendar day", func(t *testing.T) {
		turns, err := repo.QueryByPredicate(ctx, "s1", core.Predicate{
			Start: base,
			End:   base.Add(24*time.Hour - time.Millisecond),
			Limit: 50,
		})
		require.NoError(t, err)
		assert.Len(t, turns, 3)
	})

	t.Run("keyword narrows the range", func(t *testing.T) {
		turns, err := repo.QueryByPredicate(ctx, "s1", core.Predicate{
			Start:   base,
			End:     base.Add(24*time.Hour - time.Millisecond),
			Keyword: "deploys",
			Limit:   50,
		})
		require.NoError(t, err)
		require.Len(t, turns, 2)
		assert.Equal(t, "we talked about deploys", turns[0].Content)
	})

	t.Run("wildcards in keyword are literal", func(t *testing.T) {
		turns, err := repo.QueryByPredicate(ctx, "s1", core.Predicate{
			Start:   base,
			End:     base.Add(24 * time.Hour),
			Keyword: "%",
			Limit:   50,
		})
		require.NoError(t, err)
		assert.Empty(t, turns)
	})

	t.Run("malformed predicate is rejected", func(t *testing.T) {
		_, err := repo.QueryByPredicate(ctx, "s1", core.Predicate{Limit: 10})
		require.Error(t, err)
		assert.True(t, errors.Is(err, core.ErrInvalidQuery))
	})
}
