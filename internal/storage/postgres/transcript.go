package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/corvid-labs/hindsight/internal/core"
)

// TranscriptStore persists conversation turns in PostgreSQL. It is selected
// over the embedded SQLite store when a database URL is configured.
type TranscriptStore struct {
	pool *pgxpool.Pool
}

func New(ctx context.Context, databaseURL string) (*TranscriptStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("%w: connect postgres: %v", core.ErrStorage, err)
	}

	if err := initSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	return &TranscriptStore{pool: pool}, nil
}

func initSchema(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS turns (
			id BIGSERIAL PRIMARY KEY,
			session_id TEXT NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`,
		`CREATE INDEX IF NOT EXISTS idx_turns_session_created ON turns (session_id, created_at);`,
	}

	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("%w: init schema failed on %q: %v", core.ErrStorage, stmt, err)
		}
	}
	return nil
}

func (s *TranscriptStore) Append(ctx context.Context, turn core.Turn) (int64, error) {
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now().UTC()
	}

	var id int64
	err := s.pool.QueryRow(ctx,
		`INSERT INTO turns (session_id, role, content, created_at)
		 VALUES ($1, $2, $3, $4) RETURNING id`,
		turn.SessionID, turn.Role, turn.Content, turn.CreatedAt,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("%w: insert turn: %v", core.ErrStorage, err)
	}
	return id, nil
}

func (s *TranscriptStore) QueryByTimeRange(ctx context.Context, sessionID string, start, end time.Time) ([]core.Turn, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, session_id, role, content, created_at
		 FROM turns
		 WHERE session_id=$1 AND created_at >= $2 AND created_at <= $3
		 ORDER BY created_at ASC, id ASC`,
		sessionID, start, end,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: query time range: %v", core.ErrStorage, err)
	}
	defer rows.Close()

	return scanTurns(rows)
}

func (s *TranscriptStore) RecentBySession(ctx context.Context, sessionID string, limit int) ([]core.Turn, error) {
	if limit <= 0 {
		limit = 10
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, session_id, role, content, created_at
		 FROM turns WHERE session_id=$1 ORDER BY created_at DESC, id DESC LIMIT $2`,
		sessionID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: query recent: %v", core.ErrStorage, err)
	}
	defer rows.Close()

	turns, err := scanTurns(rows)
	if err != nil {
		return nil, err
	}

	// Reverse into chronological order for prompt coherence.
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
	return turns, nil
}

func (s *TranscriptStore) QueryByPredicate(ctx context.Context, sessionID string, p core.Predicate) ([]core.Turn, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	query := `SELECT id, session_id, role, content, created_at
		FROM turns
		WHERE session_id=$1 AND created_at >= $2 AND created_at <= $3`
	args := []any{sessionID, p.Start, p.End}

	if p.Keyword != "" {
		query += ` AND content ILIKE '%' || $4 || '%'`
		args = append(args, escapeLike(p.Keyword))
	}

	query += fmt.Sprintf(` ORDER BY created_at ASC, id ASC LIMIT %d`, p.Limit)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: query predicate: %v", core.ErrStorage, err)
	}
	defer rows.Close()

	return scanTurns(rows)
}

func (s *TranscriptStore) Close() error {
	s.pool.Close()
	return nil
}

type pgxRows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanTurns(rows pgxRows) ([]core.Turn, error) {
	var turns []core.Turn
	for rows.Next() {
		var t core.Turn
		if err := rows.Scan(&t.ID, &t.SessionID, &t.Role, &t.Content, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("%w: scan turn: %v", core.ErrStorage, err)
		}
		t.CreatedAt = t.CreatedAt.UTC()
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate turns: %v", core.ErrStorage, err)
	}
	return turns, nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
