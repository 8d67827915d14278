package core

import (
	"fmt"
	"time"
)

const (
	PredicateMaxLimit      = 100
	predicateMaxKeywordLen = 128
)

// Predicate is the closed, parameterized query form produced by the temporal
// agent. It is the only shape the transcript store accepts for agent-driven
// lookups; free text never reaches storage.
type Predicate struct {
	Start   time.Time `json:"start"`
	End     time.Time `json:"end"`
	Keyword string    `json:"keyword,omitempty"`
	Limit   int       `json:"limit"`
}

// Validate rejects malformed predicates with ErrInvalidQuery.
func (p Predicate) Validate() error {
	if p.Start.IsZero() || p.End.IsZero() {
		return fmt.Errorf("%w: missing time bounds", ErrInvalidQuery)
	}
	if p.End.Before(p.Start) {
		return fmt.Errorf("%w: end %s before start %s", ErrInvalidQuery, p.End.Format(time.RFC3339), p.Start.Format(time.RFC3339))
	}
	if p.Limit < 1 || p.Limit > PredicateMaxLimit {
		return fmt.Errorf("%w: limit %d out of range [1,%d]", ErrInvalidQuery, p.Limit, PredicateMaxLimit)
	}
	if len(p.Keyword) > predicateMaxKeywordLen {
		return fmt.Errorf("%w: keyword longer than %d bytes", ErrInvalidQuery, predicateMaxKeywordLen)
	}
	return nil
}
