package sqlitestore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/nextlevelbuilder/wopr/internal/store"
)

func openTestStore(t *testing.T) *ApiKeyStore {
	t.Helper()
	path := filepath.Join(t.TempDir(), "auth.sqlite")
	s, err := Open(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestApiKeyStore_CreateGetByPrefix(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	secret, prefix, salt, err := GenerateSecret()
	if err != nil {
		t.Fatal(err)
	}
	key := store.ApiKey{
		ID:           "k1",
		Name:         "ci",
		Scope:        store.ScopeFull,
		Prefix:       prefix,
		HashedSecret: HashSecret(secret, salt),
		Salt:         salt,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.Create(ctx, key); err != nil {
		t.Fatal(err)
	}

	got, found, err := s.GetByPrefix(ctx, prefix)
	if err != nil {
		t.Fatal(err)
	}
	if !found {
		t.Fatal("expected key to be found by prefix")
	}
	if !VerifySecret(secret, got.Salt, got.HashedSecret) {
		t.Fatal("expected secret to verify against stored hash")
	}
	if VerifySecret("wrong-secret", got.Salt, got.HashedSecret) {
		t.Fatal("expected wrong secret to fail verification")
	}
}

func TestApiKeyStore_RevokeUnknownReturnsError(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	if err := s.Revoke(ctx, "ghost"); err != store.ErrApiKeyNotFound {
		t.Fatalf("expected ErrApiKeyNotFound, got %v", err)
	}
}

func TestApiKeyStore_RevokeAndList(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	if err := s.Create(ctx, store.ApiKey{ID: "k2", Name: "local", Scope: store.ScopeReadOnly, Prefix: "abcd1234", HashedSecret: "h", Salt: "s", CreatedAt: time.Now().UTC()}); err != nil {
		t.Fatal(err)
	}
	if err := s.Revoke(ctx, "k2"); err != nil {
		t.Fatal(err)
	}

	list, err := s.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || !list[0].Revoked {
		t.Fatalf("expected single revoked key, got %+v", list)
	}
}

func TestApiKeyStore_TouchLastUsed(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	if err := s.Create(ctx, store.ApiKey{ID: "k3", Name: "touch", Scope: store.ScopeFull, Prefix: "efgh5678", HashedSecret: "h", Salt: "s", CreatedAt: time.Now().UTC()}); err != nil {
		t.Fatal(err)
	}
	if err := s.TouchLastUsed(ctx, "k3"); err != nil {
		t.Fatal(err)
	}
	got, found, err := s.Get(ctx, "k3")
	if err != nil {
		t.Fatal(err)
	}
	if !found || got.LastUsedAt == nil {
		t.Fatal("expected LastUsedAt to be set")
	}
}
