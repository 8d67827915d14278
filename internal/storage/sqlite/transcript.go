package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/corvid-labs/hindsight/internal/core"
	"github.com/corvid-labs/hindsight/pkg/log"
)

// TranscriptRepo is the SQLite-backed transcript store. Timestamps are kept
// as unix milliseconds so range queries stay exact across timezones.
type TranscriptRepo struct {
	db *sql.DB
}

func NewTranscriptRepo(db *sql.DB) *TranscriptRepo {
	return &TranscriptRepo{db: db}
}

func (r *TranscriptRepo) Append(ctx context.Context, turn core.Turn) (int64, error) {
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now().UTC()
	}

	query := `INSERT INTO turns (session_id, role, content, created_at) VALUES (?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, query, turn.SessionID, turn.Role, turn.Content, turn.CreatedAt.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("%w: insert turn: %v", core.ErrStorage, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("%w: last insert id: %v", core.ErrStorage, err)
	}
	return id, nil
}

func (r *TranscriptRepo) QueryByTimeRange(ctx context.Context, sessionID string, start, end time.Time) ([]core.Turn, error) {
	query := `SELECT id, session_id, role, content, created_at
		FROM turns
		WHERE session_id = ? AND created_at >= ? AND created_at <= ?
		ORDER BY created_at ASC, id ASC`

	rows, err := r.db.QueryContext(ctx, query, sessionID, start.UnixMilli(), end.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("%w: query time range: %v", core.ErrStorage, err)
	}
	defer rows.Close()

	return scanTurns(rows)
}

func (r *TranscriptRepo) RecentBySession(ctx context.Context, sessionID string, limit int) ([]core.Turn, error) {
	// Fetch the LAST 'limit' turns by ordering DESC
	query := `SELECT id, session_id, role, content, created_at
		FROM turns
		WHERE session_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?`

	rows, err := r.db.QueryContext(ctx, query, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: query recent: %v", core.ErrStorage, err)
	}
	defer rows.Close()

	turns, err := scanTurns(rows)
	if err != nil {
		return nil, err
	}

	// Reverse back to chronological order for prompt assembly.
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}

	log.FromCtx(ctx).Debug().Int("count", len(turns)).Msg("loaded recent turns")
	return turns, nil
}

func (r *TranscriptRepo) QueryByPredicate(ctx context.Context, sessionID string, p core.Predicate) ([]core.Turn, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	query := `SELECT id, session_id, role, content, created_at
		FROM turns
		WHERE session_id = ? AND created_at >= ? AND created_at <= ?`
	args := []any{sessionID, p.Start.UnixMilli(), p.End.UnixMilli()}

	if p.Keyword != "" {
		query += ` AND content LIKE ? ESCAPE '\'`
		args = append(args, "%"+escapeLike(p.Keyword)+"%")
	}

	query += ` ORDER BY created_at ASC, id ASC LIMIT ?`
	args = append(args, p.Limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: query predicate: %v", core.ErrStorage, err)
	}
	defer rows.Close()

	return scanTurns(rows)
}

func scanTurns(rows *sql.Rows) ([]core.Turn, error) {
	var turns []core.Turn
	for rows.Next() {
		var t core.Turn
		var createdMilli int64
		if err := rows.Scan(&t.ID, &t.SessionID, &t.Role, &t.Content, &createdMilli); err != nil {
			return nil, fmt.Errorf("%w: scan turn: %v", core.ErrStorage, err)
		}
		t.CreatedAt = time.UnixMilli(createdMilli).UTC()
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate turns: %v", core.ErrStorage, err)
	}
	return turns, nil
}

// escapeLike neutralizes LIKE wildcards in a keyword so the predicate stays a
// plain substring match.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
