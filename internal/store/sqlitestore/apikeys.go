// Package sqlitestore implements C1's ApiKeyStore against auth.sqlite
// (spec §6.4), the one document that genuinely benefits from indexed
// lookup (GetByPrefix on every bearer-auth request). Grounded on
// rakunlabs-at's internal/store/sqlite3 package: modernc.org/sqlite driver,
// WAL mode, single-writer connection pool.
package sqlitestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/nextlevelbuilder/wopr/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS api_keys (
	id             TEXT PRIMARY KEY,
	name           TEXT NOT NULL,
	scope          TEXT NOT NULL,
	prefix         TEXT NOT NULL UNIQUE,
	hashed_secret  TEXT NOT NULL,
	salt           TEXT NOT NULL,
	created_at     TEXT NOT NULL,
	last_used_at   TEXT,
	revoked        INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_api_keys_prefix ON api_keys(prefix);
`

// ApiKeyStore is the sqlite-backed store.ApiKeyStore implementation.
type ApiKeyStore struct {
	db *sql.DB
}

// Open creates (or reuses) the sqlite database at path and ensures the
// schema exists.
func Open(ctx context.Context, path string) (*ApiKeyStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open auth sqlite: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping auth sqlite: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &ApiKeyStore{db: db}, nil
}

func (s *ApiKeyStore) Close() error { return s.db.Close() }

func (s *ApiKeyStore) Create(ctx context.Context, key store.ApiKey) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO api_keys (id, name, scope, prefix, hashed_secret, salt, created_at, revoked)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		key.ID, key.Name, string(key.Scope), key.Prefix, key.HashedSecret, key.Salt,
		key.CreatedAt.UTC().Format(time.RFC3339Nano), boolToInt(key.Revoked),
	)
	if err != nil {
		return fmt.Errorf("create api key: %w", err)
	}
	return nil
}

func (s *ApiKeyStore) Get(ctx context.Context, id string) (*store.ApiKey, bool, error) {
	return s.queryOne(ctx, "SELECT id, name, scope, prefix, hashed_secret, salt, created_at, last_used_at, revoked FROM api_keys WHERE id = ?", id)
}

func (s *ApiKeyStore) GetByPrefix(ctx context.Context, prefix string) (*store.ApiKey, bool, error) {
	return s.queryOne(ctx, "SELECT id, name, scope, prefix, hashed_secret, salt, created_at, last_used_at, revoked FROM api_keys WHERE prefix = ?", prefix)
}

func (s *ApiKeyStore) queryOne(ctx context.Context, query string, arg string) (*store.ApiKey, bool, error) {
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
	res, err := s.db.ExecContext(ctx, "UPDATE api_keys SET revoked = 1 WHERE id = ?", id)
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
	_, err := s.db.ExecContext(ctx, "UPDATE api_keys SET last_used_at = ? WHERE id = ?",
		time.Now().UTC().Format(time.RFC3339Nano), id)
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
	var createdAt string
	var lastUsedAt sql.NullString
	var revoked int

	if err := row.Scan(&key.ID, &key.Name, &scope, &key.Prefix, &key.HashedSecret, &key.Salt,
		&createdAt, &lastUsedAt, &revoked); err != nil {
		return nil, err
	}
	key.Scope = store.ApiKeyScope(scope)
	key.Revoked = revoked != 0
	if ts, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
		key.CreatedAt = ts
	}
	if lastUsedAt.Valid {
		if ts, err := time.Parse(time.RFC3339Nano, lastUsedAt.String); err == nil {
			key.LastUsedAt = &ts
		}
	}
	return &key, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
