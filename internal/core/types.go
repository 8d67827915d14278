package core

import "time"

const (
	Name    = "Hindsight"
	Version = "0.1.0"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Message is a single prompt message sent to a completion provider.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Turn is one utterance in a conversation, owned by the transcript store.
// Turns are immutable once written.
type Turn struct {
	ID        int64     `json:"id"`
	SessionID string    `json:"session_id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Fragment is a unit of extracted knowledge in the semantic store.
// A nil ExpiresAt means the fragment never goes stale.
type Fragment struct {
	ID         string     `json:"id"`
	Text       string     `json:"text"`
	Embedding  []float32  `json:"-"`
	Importance float64    `json:"importance"`
	Category   string     `json:"category"`
	SessionID  string     `json:"session_id"`
	CreatedAt  time.Time  `json:"created_at"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
}

// Stale reports whether the fragment's expiry has passed at the given time.
func (f Fragment) Stale(now time.Time) bool {
	return f.ExpiresAt != nil && f.ExpiresAt.Before(now)
}

// SemanticMatch pairs a retrieved fragment with its vector distance
// (lower is closer).
type SemanticMatch struct {
	Fragment Fragment `json:"fragment"`
	Distance float32  `json:"distance"`
}

// RetrievalContext is the per-turn aggregate of everything retrieved for a
// single prompt. It is built by the orchestrator, consumed by the composer
// and echoed back to the caller; it is never persisted.
type RetrievalContext struct {
	TemporalTurns   []Turn          `json:"temporal_turns"`
	SemanticMatches []SemanticMatch `json:"semantic_matches"`
}

// TurnResult is what a consumer of the core receives for one handled turn.
type TurnResult struct {
	ResponseText string           `json:"response_text"`
	Retrieved    RetrievalContext `json:"retrieved"`
}
