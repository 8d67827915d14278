package memorize

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/corvid-labs/hindsight/internal/core"
	"github.com/corvid-labs/hindsight/pkg/log"
	"github.com/corvid-labs/hindsight/pkg/retry"
)

// fragmentNamespace makes fragment IDs a pure function of the extracted text,
// so repeated memorization passes upsert instead of duplicating.
var fragmentNamespace = uuid.MustParse("5f2b6c3a-8d14-4f6e-9f14-66a4c1f0b9d7")

// Agent extracts durable facts from a completed exchange and commits the ones
// worth keeping to the semantic store. It runs off the critical path; callers
// detach it and treat every failure as log-and-forget.
type Agent struct {
	ai        core.Completer
	embedder  core.Embedder
	store     core.SemanticStore
	retrier   *retry.Retrier
	threshold float64
	timeout   time.Duration
	now       func() time.Time
}

func NewAgent(ai core.Completer, embedder core.Embedder, store core.SemanticStore, threshold float64, timeout time.Duration) *Agent {
	return &Agent{
		ai:        ai,
		embedder:  embedder,
		store:     store,
		retrier:   retry.NewDefaultRetrier(),
		threshold: threshold,
		timeout:   timeout,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Memorize runs one extraction pass over the latest exchange. Returns the
// number of fragments stored; an empty pass is valid and common.
func (a *Agent) Memorize(ctx context.Context, sessionID, userText, assistantText string, known []core.SemanticMatch) (int, error) {
	logger := log.FromCtx(ctx)

	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	raw, err := a.ai.Complete(ctx, systemPrompt, []core.Message{
		{Role: core.RoleUser, Content: buildExtractionPrompt(userText, assistantText, known)},
	})
	if err != nil {
		return 0, fmt.Errorf("extraction call: %w", err)
	}

	candidates, err := parseCandidates(raw)
	if err != nil {
		return 0, err
	}

	stored := 0
	for _, c := range candidates {
		if c.Fact == "" {
			continue
		}
		if c.Importance < a.threshold {
			logger.Debug().Str("fact", c.Fact).Float64("importance", c.Importance).Msg("candidate below importance threshold, dropped")
			continue
		}
		if err := a.saveFragment(ctx, sessionID, c); err != nil {
			return stored, fmt.Errorf("save fragment %q: %w", c.Fact, err)
		}
		logger.Info().Str("category", c.Category).Float64("importance", c.Importance).Msg("fragment memorized")
		stored++
	}
	return stored, nil
}

func (a *Agent) saveFragment(ctx context.Context, sessionID string, c candidate) error {
	var embedding []float32
	err := a.retrier.Do(ctx, func(ctx context.Context) error {
		var embedErr error
		embedding, embedErr = a.embedder.Embed(ctx, c.Fact)
		return embedErr
	})
	if err != nil {
		return fmt.Errorf("embed: %w", err)
	}

	now := a.now()
	fragment := core.Fragment{
		ID:         uuid.NewSHA1(fragmentNamespace, []byte(c.Fact)).String(),
		Text:       c.Fact,
		Embedding:  embedding,
		Importance: clamp01(c.Importance),
		Category:   c.Category,
		SessionID:  sessionID,
		CreatedAt:  now,
	}
	if c.TTLDays > 0 {
		expires := now.AddDate(0, 0, c.TTLDays)
		fragment.ExpiresAt = &expires
	}

	return a.store.Upsert(ctx, fragment)
}

type candidate struct {
	Fact       string  `json:"fact"`
	Category   string  `json:"category"`
	Importance float64 `json:"importance"`
	TTLDays    int     `json:"ttl_days"`
}

func parseCandidates(content string) ([]candidate, error) {
	jsonStr := extractJSONArray(content)
	if jsonStr == "" {
		return nil, fmt.Errorf("%w: no JSON array found in response", core.ErrSchemaValidation)
	}

	var candidates []candidate
	if err := json.Unmarshal([]byte(jsonStr), &candidates); err != nil {
		return nil, fmt.Errorf("%w: unmarshal candidates: %v", core.ErrSchemaValidation, err)
	}
	return candidates, nil
}

func extractJSONArray(content string) string {
	start := strings.Index(content, "[")
	if start == -1 {
		return ""
	}
	end := strings.LastIndex(content[start:], "]")
	if end == -1 {
		return ""
	}
	return content[start : start+end+1]
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

const systemPrompt = "You are a memorization agent. You decide what, if anything, from a conversation is worth remembering long-term. Output only valid JSON."

func buildExtractionPrompt(userText, assistantText string, known []core.SemanticMatch) string {
	var b strings.Builder

	b.WriteString(`Extract durable facts worth remembering from the exchange below. Output format: JSON array of objects {"fact", "category", "importance", "ttl_days"}.

Rules:
1. Categories: [preference, user_fact, project, instruction].
2. "importance" is 0.0-1.0: how central the fact is to the user's identity, preferences or ongoing work. Greetings and small talk score near 0.
3. "ttl_days" is how long the fact stays relevant: 0 means durable, a positive number means it expires ("my flight is on Friday" is transient).
4. Facts must be self-contained (replace "he" with "User").
5. An empty array [] is a correct answer when nothing is worth remembering.
`)

	if len(known) > 0 {
		b.WriteString("\nAlready remembered (do not re-extract):\n")
		for _, match := range known {
			b.WriteString("- ")
			b.WriteString(match.Fragment.Text)
			b.WriteByte('\n')
		}
	}

	b.WriteString("\nExchange:\nUSER: ")
	b.WriteString(userText)
	b.WriteString("\nASSISTANT: ")
	b.WriteString(assistantText)
	b.WriteByte('\n')

	return b.String()
}
