package chromem

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	chromem "github.com/philippgille/chromem-go"

	"github.com/corvid-labs/hindsight/internal/core"
	"github.com/corvid-labs/hindsight/pkg/log"
)

const collectionName = "fragments"

// overfetchFactor widens the raw KNN query so the read-time expiry filter
// still leaves up to k live results.
const overfetchFactor = 3

// SemanticStore keeps memory fragments in an embedded chromem-go collection.
// Embeddings are provided by the caller; the collection has no embedding
// function of its own.
type SemanticStore struct {
	collection *chromem.Collection
	now        func() time.Time
}

// New opens a persistent store rooted at path.
func New(path string) (*SemanticStore, error) {
	db, err := chromem.NewPersistentDB(path, false)
	if err != nil {
		return nil, fmt.Errorf("open semantic db: %w", err)
	}
	return newStore(db)
}

// NewInMemory is used by tests and ephemeral deployments.
func NewInMemory() (*SemanticStore, error) {
	return newStore(chromem.NewDB())
}

func newStore(db *chromem.DB) (*SemanticStore, error) {
	col, err := db.GetOrCreateCollection(collectionName, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("create collection: %w", err)
	}
	return &SemanticStore{collection: col, now: func() time.Time { return time.Now().UTC() }}, nil
}

// Upsert is idempotent by fragment ID: re-adding an existing ID replaces the
// stored document.
func (s *SemanticStore) Upsert(ctx context.Context, fragment core.Fragment) error {
	if fragment.ID == "" {
		return fmt.Errorf("%w: fragment without id", core.ErrStorage)
	}
	if len(fragment.Embedding) == 0 {
		return fmt.Errorf("%w: fragment %s without embedding", core.ErrStorage, fragment.ID)
	}
	if fragment.CreatedAt.IsZero() {
		fragment.CreatedAt = s.now()
	}

	metadata := map[string]string{
		"created_at": fragment.CreatedAt.UTC().Format(time.RFC3339Nano),
		"importance": strconv.FormatFloat(fragment.Importance, 'f', -1, 64),
		"session_id": fragment.SessionID,
		"category":   fragment.Category,
	}
	if fragment.ExpiresAt != nil {
		metadata["expires_at"] = fragment.ExpiresAt.UTC().Format(time.RFC3339Nano)
	}

	doc := chromem.Document{
		ID:        fragment.ID,
		Content:   fragment.Text,
		Embedding: fragment.Embedding,
		Metadata:  metadata,
	}

	if err := s.collection.AddDocument(ctx, doc); err != nil {
		return fmt.Errorf("%w: add document: %v", core.ErrStorage, err)
	}
	return nil
}

// Search returns up to k live fragments by ascending distance. Stale
// fragments are dropped at read time regardless of how close they are;
// distance ties go to the more recently created fragment.
func (s *SemanticStore) Search(ctx context.Context, embedding []float32, k int) ([]core.SemanticMatch, error) {
	if k <= 0 {
		return nil, nil
	}

	total := s.collection.Count()
	if total == 0 {
		return nil, nil
	}

	// chromem rejects nResults larger than the collection size.
	n := k * overfetchFactor
	if n > total {
		n = total
	}

	results, err := s.collection.QueryEmbedding(ctx, embedding, n, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: query embedding: %v", core.ErrStorage, err)
	}

	now := s.now()
	matches := make([]core.SemanticMatch, 0, len(results))
	for _, res := range results {
		fragment, err := fragmentFromResult(res)
		if err != nil {
			log.FromCtx(ctx).Warn().Err(err).Str("id", res.ID).Msg("skipping undecodable fragment")
			continue
		}
		if fragment.Stale(now) {
			continue
		}
		matches = append(matches, core.SemanticMatch{
			Fragment: fragment,
			Distance: 1 - res.Similarity,
		})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Distance != matches[j].Distance {
			return matches[i].Distance < matches[j].Distance
		}
		return matches[i].Fragment.CreatedAt.After(matches[j].Fragment.CreatedAt)
	})

	if len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}

func fragmentFromResult(res chromem.Result) (core.Fragment, error) {
	fragment := core.Fragment{
		ID:        res.ID,
		Text:      res.Content,
		Embedding: res.Embedding,
		SessionID: res.Metadata["session_id"],
		Category:  res.Metadata["category"],
	}

	createdAt, err := time.Parse(time.RFC3339Nano, res.Metadata["created_at"])
	if err != nil {
		return core.Fragment{}, fmt.Errorf("parse created_at: %w", err)
	}
	fragment.CreatedAt = createdAt

	if raw := res.Metadata["importance"]; raw != "" {
		importance, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return core.Fragment{}, fmt.Errorf("parse importance: %w", err)
		}
		fragment.Importance = importance
	}

	if raw := res.Metadata["expires_at"]; raw != "" {
		expiresAt, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return core.Fragment{}, fmt.Errorf("parse expires_at: %w", err)
		}
		fragment.ExpiresAt = &expiresAt
	}

	return fragment, nil
}
