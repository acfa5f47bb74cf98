package filestore

import (
	"path/filepath"
	"sync"

	"github.com/nextlevelbuilder/wopr/internal/store"
)

// IdentityStore persists the single daemon Identity to identity.json under
// GLOBAL_IDENTITY_DIR (spec §6.4), separate from the per-profile WOPR_HOME
// tree so multiple profiles can share one identity.
type IdentityStore struct {
	mu   sync.Mutex
	dir  string
}

func NewIdentityStore(dir string) *IdentityStore {
	return &IdentityStore{dir: dir}
}

func (s *IdentityStore) path() string { return filepath.Join(s.dir, "identity.json") }

func (s *IdentityStore) Load() (*store.Identity, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var identity store.Identity
	found, err := readJSON(s.path(), &identity)
	if err != nil || !found {
		return nil, found, err
	}
	return &identity, true, nil
}

func (s *IdentityStore) Save(identity store.Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return writeAtomic(s.path(), identity)
}
