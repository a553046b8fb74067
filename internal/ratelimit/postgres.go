package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB is the subset of *pgxpool.Pool used by PostgresStore.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const createTableSQL = `
CREATE TABLE IF NOT EXISTS rate_limit_windows (
    client_key      TEXT PRIMARY KEY,
    window_start_ms BIGINT  NOT NULL,
    hits            INTEGER NOT NULL
)`

// hitSQL opens or advances a window in one statement. hits is capped at
// max+1 so a denied client cannot grow the counter.
const hitSQL = `
INSERT INTO rate_limit_windows (client_key, window_start_ms, hits)
VALUES ($1, $2, 1)
ON CONFLICT (client_key) DO UPDATE SET
    window_start_ms = CASE
        WHEN $2 - rate_limit_windows.window_start_ms > $3 THEN $2
        ELSE rate_limit_windows.window_start_ms
    END,
    hits = CASE
        WHEN $2 - rate_limit_windows.window_start_ms > $3 THEN 1
        ELSE LEAST(rate_limit_windows.hits + 1, $4 + 1)
    END
RETURNING hits`

const pruneSQL = `DELETE FROM rate_limit_windows WHERE $1 - window_start_ms > $2`

// PostgresStore shares counters between server instances.
type PostgresStore struct {
	db     DB
	policy Policy
}

// NewPostgresStore wraps db. Call EnsureSchema once at startup.
func NewPostgresStore(db DB, policy Policy) *PostgresStore {
	return &PostgresStore{db: db, policy: policy}
}

// EnsureSchema creates the counter table if it does not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, createTableSQL); err != nil {
		return fmt.Errorf("create rate limit table: %w", err)
	}
	return nil
}

// Allow implements Store.
func (s *PostgresStore) Allow(ctx context.Context, key string, now time.Time) (bool, error) {
	var hits int
	err := s.db.QueryRow(ctx, hitSQL,
		key,
		now.UnixMilli(),
		s.policy.Window.Milliseconds(),
		s.policy.Max,
	).Scan(&hits)
	if err != nil {
		return false, fmt.Errorf("record hit: %w", err)
	}
	return hits <= s.policy.Max, nil
}

// Prune implements Store.
func (s *PostgresStore) Prune(ctx context.Context, now time.Time) (int64, error) {
	tag, err := s.db.Exec(ctx, pruneSQL, now.UnixMilli(), s.policy.Window.Milliseconds())
	if err != nil {
		return 0, fmt.Errorf("prune rate limits: %w", err)
	}
	return tag.RowsAffected(), nil
}
