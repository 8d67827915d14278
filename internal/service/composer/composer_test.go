package composer

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corvid-labs/hindsight/internal/core"
)

func turn(id int64, role, content string, at time.Time) core.Turn {
	return core.Turn{ID: id, SessionID: "s1", Role: role, Content: content, CreatedAt: at}
}

func TestComposeIncludesEverythingUnderBudget(t *testing.T) {
	t.Parallel()

	base := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	recent := []core.Turn{
		turn(1, core.RoleUser, "hello", base),
		turn(2, core.RoleAssistant, "hi there", base.Add(time.Second)),
	}
	retrieved := core.RetrievalContext{
		TemporalTurns: []core.Turn{
			turn(90, core.RoleUser, "we talked about the Oslo trip", base.Add(-48*time.Hour)),
		},
		SemanticMatches: []core.SemanticMatch{
			{Fragment: core.Fragment{Text: "User's favorite color is blue", Category: "preference"}},
		},
	}

	c := New(3000)
	prompt := c.Compose("You are a helpful assistant.", "what's my favorite color?", recent, retrieved)

	assert.Contains(t, prompt.System, "You are a helpful assistant.")
	assert.Contains(t, prompt.System, "RELEVANT MEMORY:")
	assert.Contains(t, prompt.System, "- [preference] User's favorite color is blue")
	assert.Contains(t, prompt.System, "EARLIER IN THE CONVERSATION:")
	assert.Contains(t, prompt.System, "we talked about the Oslo trip")

	require.Len(t, prompt.Messages, 3)
	assert.Equal(t, "hello", prompt.Messages[0].Content)
	assert.Equal(t, "hi there", prompt.Messages[1].Content)
	assert.Equal(t, core.RoleUser, prompt.Messages[2].Role)
	assert.Equal(t, "what's my favorite color?", prompt.Messages[2].Content)
}

func TestComposeCurrentUtteranceSurvivesZeroBudget(t *testing.T) {
	t.Parallel()

	recent := []core.Turn{turn(1, core.RoleUser, "some earlier message", time.Now())}
	retrieved := core.RetrievalContext{
		SemanticMatches: []core.SemanticMatch{{Fragment: core.Fragment{Text: "a fact"}}},
	}

	c := New(1)
	prompt := c.Compose("system", "the current question", recent, retrieved)

	require.Len(t, prompt.Messages, 1)
	assert.Equal(t, "the current question", prompt.Messages[0].Content)
	assert.Equal(t, "system", prompt.System)
}

func TestComposeDropsOldestRecentFirst(t *testing.T) {
	t.Parallel()

	base := time.Now()
	recent := []core.Turn{
		turn(1, core.RoleUser, strings.Repeat("old old old ", 50), base),
		turn(2, core.RoleAssistant, "short reply", base.Add(time.Second)),
	}

	budget := countTokens("sys") + countTokens("q") + countTokens("short reply") + 2
	c := New(budget)
	prompt := c.Compose("sys", "q", recent, core.RetrievalContext{})

	require.Len(t, prompt.Messages, 2)
	assert.Equal(t, "short reply", prompt.Messages[0].Content)
	assert.Equal(t, "q", prompt.Messages[1].Content)
}

func TestComposeRecentOutranksRecall(t *testing.T) {
	t.Parallel()

	base := time.Now()
	recent := []core.Turn{turn(1, core.RoleUser, "recent message", base)}
	retrieved := core.RetrievalContext{
		TemporalTurns:   []core.Turn{turn(90, core.RoleUser, "temporal recall", base.Add(-time.Hour))},
		SemanticMatches: []core.SemanticMatch{{Fragment: core.Fragment{Text: "semantic recall"}}},
	}

	budget := countTokens("sys") + countTokens("q") + countTokens("recent message") + 1
	c := New(budget)
	prompt := c.Compose("sys", "q", recent, retrieved)

	require.Len(t, prompt.Messages, 2)
	assert.Equal(t, "recent message", prompt.Messages[0].Content)
	assert.NotContains(t, prompt.System, "temporal recall")
	assert.NotContains(t, prompt.System, "semantic recall")
}

func TestComposeSemanticDroppedByOrder(t *testing.T) {
	t.Parallel()

	retrieved := core.RetrievalContext{
		SemanticMatches: []core.SemanticMatch{
			{Fragment: core.Fragment{Text: "closest fact"}, Distance: 0.1},
			{Fragment: core.Fragment{Text: "farther fact"}, Distance: 0.9},
		},
	}

	budget := countTokens("sys") + countTokens("q") + countTokens("- closest fact") + 1
	c := New(budget)
	prompt := c.Compose("sys", "q", nil, retrieved)

	assert.Contains(t, prompt.System, "closest fact")
	assert.NotContains(t, prompt.System, "farther fact")
}

func TestComposeDedupesTemporalAgainstRecent(t *testing.T) {
	t.Parallel()

	base := time.Now()
	shared := turn(5, core.RoleUser, "the overlapping turn", base)
	recent := []core.Turn{shared}
	retrieved := core.RetrievalContext{
		TemporalTurns: []core.Turn{shared, turn(3, core.RoleAssistant, "older distinct turn", base.Add(-time.Hour))},
	}

	c := New(3000)
	prompt := c.Compose("sys", "q", recent, retrieved)

	assert.Equal(t, 1, strings.Count(prompt.System+prompt.Messages[0].Content, "the overlapping turn"))
	assert.Contains(t, prompt.System, "older distinct turn")
}
