package pgstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/nextlevelbuilder/wopr/internal/store"
)

// ApiKeyStore is the Postgres-backed store.ApiKeyStore, identical in shape
// to sqlitestore.ApiKeyStore but against a shared database for managed-mode
// deployments (spec §6.4).
type ApiKeyStore struct {
	db *sql.DB
}

func NewApiKeyStore(db *sql.DB) *ApiKeyStore { return &ApiKeyStore{db: db} }

func (s *ApiKeyStore) Create(ctx context.Context, key store.ApiKey) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO api_keys (id, name, scope, prefix, hashed_secret, salt, created_at, revoked)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		key.ID, key.Name, string(key.Scope), key.Prefix, key.HashedSecret, key.Salt, key.CreatedAt, key.Revoked,
	)
	if err != nil {
		return fmt.Errorf("create api key: %w", err)
	}
	return nil
}

func (s *ApiKeyStore) Get(ctx context.Context, id string) (*store.ApiKey, bool, error) {
	return s.queryOne(ctx, "SELECT id, name, scope, prefix, hashed_secret, salt, created_at, last_used_at, revoked FROM api_keys WHERE id = $1", id)
}

func (s *ApiKeyStore) GetByPrefix(ctx context.Context, prefix string) (*store.ApiKey, bool, error) {
	return s.queryOne(ctx, "SELECT id, name, scope, prefix, hashed_secret, salt, created_at, last_used_at, revoked FROM api_keys WHERE prefix = $1", prefix)
}

func (s *ApiKeyStore) queryOne(ctx context.Context, query, arg string) (*store.ApiKey, bool, error) {
	row := s.db.QueryRowContext(ctx, query, arg)
	key, err := scanApiKey(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("query api key: %w", err)
	}
	return key, true, nil
}

func (s *ApiKeyStore) List(ctx context.Context) ([]store.ApiKey, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, scope, prefix, hashed_secret, salt, created_at, last_used_at, revoked FROM api_keys ORDER BY created_at")
	if err != nil {
		return nil, fmt.Errorf("list api keys: %w", err)
	}
	defer rows.Close()

	var out []store.ApiKey
	for rows.Next() {
		key, err := scanApiKey(rows)
		if err != nil {
			return nil, fmt.Errorf("scan api key: %w", err)
		}
		out = append(out, *key)
	}
	return out, rows.Err()
}

func (s *ApiKeyStore) Revoke(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "UPDATE api_keys SET revoked = TRUE WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("revoke api key: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return store.ErrApiKeyNotFound
	}
	return nil
}

func (s *ApiKeyStore) TouchLastUsed(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, "UPDATE api_keys SET last_used_at = now() WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("touch last used: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanApiKey(row rowScanner) (*store.ApiKey, error) {
	var key store.ApiKey
	var scope string
	if err := row.Scan(&key.ID, &key.Name, &scope, &key.Prefix, &key.HashedSecret, &key.Salt,
		&key.CreatedAt, &key.LastUsedAt, &key.Revoked); err != nil {
		return nil, err
	}
	key.Scope = store.ApiKeyScope(scope)
	return &key, nil
}
