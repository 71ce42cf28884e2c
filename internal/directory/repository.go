package directory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository is the PostgreSQL-backed Store.
type Repository struct {
	pool   *pgxpool.Pool
	window time.Duration
}

// NewRepository creates a directory repository. window is the registration
// token validity window.
func NewRepository(pool *pgxpool.Pool, window time.Duration) *Repository {
	return &Repository{pool: pool, window: window}
}

// Get returns the user or (nil, nil) when absent.
func (r *Repository) Get(ctx context.Context, id string) (*User, error) {
	const q = `SELECT id, timezone, pending_token, pending_since FROM users WHERE id = $1`
	var u User
	err := r.pool.QueryRow(ctx, q, id).Scan(&u.ID, &u.Timezone, &u.PendingToken, &u.PendingSince)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}

// UpsertRegistrationToken creates or refreshes the pending registration row.
func (r *Repository) UpsertRegistrationToken(ctx context.Context, id string, token int64, now time.Time) error {
	const q = `INSERT INTO users (id, timezone, pending_token, pending_since)
		VALUES ($1, '', $2, $3)
		ON CONFLICT (id) DO UPDATE SET pending_token = EXCLUDED.pending_token, pending_since = EXCLUDED.pending_since`
	if _, err := r.pool.Exec(ctx, q, id, token, now); err != nil {
		return fmt.Errorf("upsert registration token: %w", err)
	}
	return nil
}

// LiveTokens returns tokens whose validity window has not lapsed.
func (r *Repository) LiveTokens(ctx context.Context, now time.Time) (map[int64]struct{}, error) {
	const q = `SELECT pending_token FROM users WHERE pending_token IS NOT NULL AND pending_since > $1`
	rows, err := r.pool.Query(ctx, q, now.Add(-r.window))
	if err != nil {
		return nil, fmt.Errorf("live tokens: %w", err)
	}
	defer rows.Close()

	live := make(map[int64]struct{})
	for rows.Next() {
		var token int64
		if err := rows.Scan(&token); err != nil {
			return nil, fmt.Errorf("scan token: %w", err)
		}
		live[token] = struct{}{}
	}
	return live, rows.Err()
}

// SetTimezoneByToken confirms a registration: the external web endpoint
// calls this with the link token and the browser-detected zone. The token
// is consumed on success so it stops counting against the live set.
func (r *Repository) SetTimezoneByToken(ctx context.Context, token int64, zone string, now time.Time) (string, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return "", fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	var (
		id    string
		since *time.Time
	)
	err = tx.QueryRow(ctx, `SELECT id, pending_since FROM users WHERE pending_token = $1`, token).Scan(&id, &since)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("lookup token: %w", err)
	}
	if since == nil || now.Sub(*since) > r.window {
		return "", ErrExpired
	}

	const update = `UPDATE users SET timezone = $1, pending_token = NULL, pending_since = NULL WHERE id = $2`
	if _, err := tx.Exec(ctx, update, zone, id); err != nil {
		return "", fmt.Errorf("set timezone: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	return id, nil
}

// Delete removes the user's row.
func (r *Repository) Delete(ctx context.Context, id string) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return nil
}
