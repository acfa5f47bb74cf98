package store

import (
	"context"
	"fmt"
)

// BackendConfig selects and configures C1's storage backend (spec §6.4).
// The default is the JSON filestore plus a local auth.sqlite; managed mode
// swaps both for a single shared Postgres database.
type BackendConfig struct {
	Home         string
	IdentityDir  string
	AuthSqlite   string
	Managed      bool
	PostgresDSN  string
	MigrationDir string
}

// Opener is implemented by filestore.Backend and pgstore.Backend, one of
// which cmd/serve.go selects, so this package need not import database
// drivers directly.
type Opener interface {
	Open(ctx context.Context, cfg BackendConfig) (*Stores, error)
}

// ValidateBackendConfig is a cheap fail-fast check run before attempting to
// open any backend.
func ValidateBackendConfig(cfg BackendConfig) error {
	if cfg.Managed && cfg.PostgresDSN == "" {
		return fmt.Errorf("managed mode requires a postgres DSN")
	}
	if !cfg.Managed && cfg.Home == "" {
		return fmt.Errorf("file-backed mode requires a home directory")
	}
	return nil
}
