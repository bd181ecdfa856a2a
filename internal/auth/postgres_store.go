package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresStore keeps API keys in the api_keys table. Raw keys are never
// stored; every lookup goes through HashKey.
type PostgresStore struct {
	db DB
}

func NewPostgresStore(db DB) Store {
	return &PostgresStore{db: db}
}

const keyColumns = `id, user_id, key_hash, rate_limit, active, created_at`

func scanKey(row pgx.Row) (*APIKey, error) {
	var k APIKey
	if err := row.Scan(&k.ID, &k.UserID, &k.KeyHash, &k.RateLimit, &k.Active, &k.CreatedAt); err != nil {
		return nil, err
	}
	return &k, nil
}

func (s *PostgresStore) GetByKey(ctx context.Context, key string) (*APIKey, error) {
	k, err := scanKey(s.db.QueryRow(ctx,
		`SELECT `+keyColumns+` FROM api_keys WHERE key_hash = $1 AND active`,
		HashKey(key),
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get api key: %w", err)
	}
	return k, nil
}

// ListByUser returns every key owned by userID, revoked ones included,
// newest first.
func (s *PostgresStore) ListByUser(ctx context.Context, userID string) ([]*APIKey, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+keyColumns+` FROM api_keys WHERE user_id = $1 ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list api keys: %w", err)
	}
	defer rows.Close()

	var keys []*APIKey
	for rows.Next() {
		k, err := scanKey(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan api key: %w", err)
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating api keys: %w", err)
	}
	return keys, nil
}

// Create inserts apiKey and fills its ID and CreatedAt. A hash that is
// already registered yields ErrKeyExists.
func (s *PostgresStore) Create(ctx context.Context, apiKey *APIKey) error {
	switch {
	case apiKey.KeyHash == "":
		return fmt.Errorf("key_hash is required")
	case apiKey.UserID == "":
		return fmt.Errorf("user_id is required")
	case apiKey.RateLimit < 0:
		return fmt.Errorf("rate_limit must not be negative")
	}

	err := s.db.QueryRow(ctx, `
		INSERT INTO api_keys (user_id, key_hash, rate_limit, active)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (key_hash) DO NOTHING
		RETURNING id, created_at`,
		apiKey.UserID, apiKey.KeyHash, apiKey.RateLimit, apiKey.Active,
	).Scan(&apiKey.ID, &apiKey.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrKeyExists
	}
	if err != nil {
		return fmt.Errorf("failed to create api key: %w", err)
	}
	return nil
}

// Revoke deactivates one of userID's active keys and returns its hash so
// the caller can evict the cached copy. Keys owned by someone else are
// reported as ErrKeyNotFound.
func (s *PostgresStore) Revoke(ctx context.Context, userID, keyID string) (string, error) {
	var keyHash string
	err := s.db.QueryRow(ctx, `
		UPDATE api_keys SET active = false
		WHERE id = $1 AND user_id = $2 AND active
		RETURNING key_hash`,
		keyID, userID,
	).Scan(&keyHash)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrKeyNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to revoke api key: %w", err)
	}
	return keyHash, nil
}
