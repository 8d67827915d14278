package core

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestPredicateValidate(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		p       Predicate
		wantErr bool
	}{
		{
			name: "valid range",
			p:    Predicate{Start: now.Add(-24 * time.Hour), End: now, Limit: 10},
		},
		{
			name: "valid with keyword",
			p:    Predicate{Start: now.Add(-time.Hour), End: now, Keyword: "deploy", Limit: 1},
		},
		{
			name:    "zero start",
			p:       Predicate{End: now, Limit: 10},
			wantErr: true,
		},
		{
			name:    "zero end",
			p:       Predicate{Start: now, Limit: 10},
			wantErr: true,
		},
		{
			name:    "inverted range",
			p:       Predicate{Start: now, End: now.Add(-time.Hour), Limit: 10},
			wantErr: true,
		},
		{
			name:    "limit zero",
			p:       Predicate{Start: now.Add(-time.Hour), End: now, Limit: 0},
			wantErr: true,
		},
		{
			name:    "limit too large",
			p:       Predicate{Start: now.Add(-time.Hour), End: now, Limit: PredicateMaxLimit + 1},
			wantErr: true,
		},
		{
			name:    "oversized keyword",
			p:       Predicate{Start: now.Add(-time.Hour), End: now, Keyword: strings.Repeat("x", 200), Limit: 10},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.p.Validate()
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidQuery) {
					t.Fatalf("Validate() = %v, want ErrInvalidQuery", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Validate() = %v, want nil", err)
			}
		})
	}
}

func TestFragmentStale(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Minute)
	future := now.Add(time.Minute)

	if (Fragment{}).Stale(now) {
		t.Error("fragment without expiry must never be stale")
	}
	if !(Fragment{ExpiresAt: &past}).Stale(now) {
		t.Error("fragment with past expiry must be stale")
	}
	if (Fragment{ExpiresAt: &future}).Stale(now) {
		t.Error("fragment with future expiry must not be stale")
	}
}
