package core

import (
	"context"
	"time"
)

// TranscriptStore owns Turn records: an ordered, append-only log per session.
type TranscriptStore interface {
	// Append durably persists a turn and returns its monotonic identifier.
	// Fails with ErrStorage when the medium is unavailable.
	Append(ctx context.Context, turn Turn) (int64, error)

	// QueryByTimeRange returns turns with created_at in [start, end],
	// ordered by timestamp ascending. A miss is an empty slice, not an error.
	QueryByTimeRange(ctx context.Context, sessionID string, start, end time.Time) ([]Turn, error)

	// RecentBySession returns the most recent limit turns, oldest first for
	// prompt assembly.
	RecentBySession(ctx context.Context, sessionID string, limit int) ([]Turn, error)

	// QueryByPredicate executes a validated structured predicate. Malformed
	// predicates are rejected with ErrInvalidQuery before touching the medium.
	QueryByPredicate(ctx context.Context, sessionID string, p Predicate) ([]Turn, error)
}

// SemanticStore owns MemoryFragments and answers nearest-neighbour queries.
type SemanticStore interface {
	// Upsert is idempotent by fragment ID: re-writing an existing ID
	// replaces the stored fragment.
	Upsert(ctx context.Context, fragment Fragment) error

	// Search returns up to k matches by ascending distance. Fragments whose
	// expiry has passed are excluded at read time regardless of distance;
	// equal distances are broken by more recent creation first.
	Search(ctx context.Context, embedding []float32, k int) ([]SemanticMatch, error)
}
