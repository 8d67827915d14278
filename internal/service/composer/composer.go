package composer

import (
	"fmt"
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"

	"github.com/corvid-labs/hindsight/internal/core"
)

var (
	tk     *tiktoken.Tiktoken
	tkOnce sync.Once
)

func getTokenizer() *tiktoken.Tiktoken {
	tkOnce.Do(func() {
		var err error
		tk, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			panic("failed to load tiktoken: " + err.Error())
		}
	})
	return tk
}

func countTokens(text string) int {
	if text == "" {
		return 0
	}
	return len(getTokenizer().Encode(text, nil, nil))
}

// Composer fuses the system prompt, recalled memory and recent history into a
// single bounded request. The current utterance and the base system prompt
// are never truncated; everything else competes for the remaining budget in
// priority order: recent turns, then temporal recall, then semantic recall.
type Composer struct {
	budget int
}

func New(budget int) *Composer {
	return &Composer{budget: budget}
}

// Prompt is the final shape handed to the generation provider.
type Prompt struct {
	System   string
	Messages []core.Message
}

func (c *Composer) Compose(systemPrompt, userText string, recent []core.Turn, retrieved core.RetrievalContext) Prompt {
	// Mandatory parts are charged first; recall only gets what is left.
	remaining := c.budget - countTokens(systemPrompt) - countTokens(userText)

	keptRecent, remaining := takeNewest(recent, remaining)

	temporal := dedupeTurns(retrieved.TemporalTurns, keptRecent)
	keptTemporal, remaining := takeNewest(temporal, remaining)

	var facts []string
	for _, match := range retrieved.SemanticMatches {
		line := formatFact(match.Fragment)
		cost := countTokens(line)
		if cost > remaining {
			break
		}
		facts = append(facts, line)
		remaining -= cost
	}

	system := buildSystem(systemPrompt, keptTemporal, facts)

	messages := make([]core.Message, 0, len(keptRecent)+1)
	for _, turn := range keptRecent {
		messages = append(messages, core.Message{Role: turn.Role, Content: turn.Content})
	}
	messages = append(messages, core.Message{Role: core.RoleUser, Content: userText})

	return Prompt{System: system, Messages: messages}
}

// takeNewest keeps as many of the newest turns as the budget allows and
// returns them in chronological order.
func takeNewest(turns []core.Turn, budget int) ([]core.Turn, int) {
	var kept []core.Turn
	for i := len(turns) - 1; i >= 0; i-- {
		cost := countTokens(turns[i].Content)
		if cost > budget {
			break
		}
		kept = append(kept, turns[i])
		budget -= cost
	}

	// Reverse back to oldest-first.
	for i, j := 0, len(kept)-1; i < j; i, j = i+1, j-1 {
		kept[i], kept[j] = kept[j], kept[i]
	}
	return kept, budget
}

// dedupeTurns drops temporal recall that already appears in the recent
// window, so the model never sees the same turn twice.
func dedupeTurns(turns, recent []core.Turn) []core.Turn {
	if len(turns) == 0 {
		return nil
	}

	seen := make(map[int64]struct{}, len(recent))
	for _, turn := range recent {
		seen[turn.ID] = struct{}{}
	}

	var out []core.Turn
	for _, turn := range turns {
		if _, ok := seen[turn.ID]; ok {
			continue
		}
		out = append(out, turn)
	}
	return out
}

func formatFact(f core.Fragment) string {
	if f.Category != "" {
		return fmt.Sprintf("- [%s] %s", f.Category, f.Text)
	}
	return "- " + f.Text
}

func buildSystem(base string, temporal []core.Turn, facts []string) string {
	var b strings.Builder
	b.WriteString(base)

	if len(facts) > 0 {
		b.WriteString("\n\nRELEVANT MEMORY:\n")
		b.WriteString(strings.Join(facts, "\n"))
	}

	if len(temporal) > 0 {
		b.WriteString("\n\nEARLIER IN THE CONVERSATION:\n")
		for _, turn := range temporal {
			fmt.Fprintf(&b, "[%s] %s: %s\n", turn.CreatedAt.Format("2006-01-02 15:04"), turn.Role, turn.Content)
		}
	}

	return b.String()
}
