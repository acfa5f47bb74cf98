package filestore

import (
	"context"
	"fmt"

	"github.com/nextlevelbuilder/wopr/internal/store"
	"github.com/nextlevelbuilder/wopr/internal/store/sqlitestore"
)

// Backend opens the default file-JSON-plus-auth.sqlite combination (spec
// §6.4), implementing store.Opener.
type Backend struct{}

func (Backend) Open(ctx context.Context, cfg store.BackendConfig) (*store.Stores, error) {
	sessions, err := NewSessionStore(cfg.Home)
	if err != nil {
		return nil, fmt.Errorf("open session store: %w", err)
	}
	cron, err := NewCronStore(cfg.Home)
	if err != nil {
		return nil, fmt.Errorf("open cron store: %w", err)
	}
	peers, err := NewPeerStore(cfg.Home)
	if err != nil {
		return nil, fmt.Errorf("open peer store: %w", err)
	}
	apiKeys, err := sqlitestore.Open(ctx, cfg.AuthSqlite)
	if err != nil {
		return nil, fmt.Errorf("open api key store: %w", err)
	}

	return &store.Stores{
		Sessions: sessions,
		Cron:     cron,
		Identity: NewIdentityStore(cfg.IdentityDir),
		Peers:    peers,
		ApiKeys:  apiKeys,
		Memory:   NewMemoryStore(cfg.Home),
	}, nil
}
