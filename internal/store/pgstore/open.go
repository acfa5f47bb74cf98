package pgstore

import (
	"context"
	"fmt"

	"github.com/nextlevelbuilder/wopr/internal/store"
)

// Backend opens the managed-mode single shared Postgres database (spec
// §6.4 "managed mode"), implementing store.Opener. Schema migrations are
// applied here rather than left to a separate `wopr migrate` step so
// `wopr serve` against a fresh database works without an extra command.
type Backend struct{}

func (Backend) Open(ctx context.Context, cfg store.BackendConfig) (*store.Stores, error) {
	if cfg.MigrationDir != "" {
		if err := Migrate(cfg.PostgresDSN, cfg.MigrationDir); err != nil {
			return nil, fmt.Errorf("apply migrations: %w", err)
		}
	}

	db, err := OpenDB(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, err
	}

	return &store.Stores{
		Sessions: NewSessionStore(db),
		Cron:     NewCronStore(db),
		Identity: NewIdentityStore(db),
		Peers:    NewPeerStore(db),
		ApiKeys:  NewApiKeyStore(db),
		Memory:   NewMemoryStore(db),
	}, nil
}
