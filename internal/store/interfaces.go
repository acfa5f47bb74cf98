package store

import "context"

// SessionStore manages Session and ConversationEntry persistence.
// Adapted from goclaw's internal/store.SessionStore interface.
type SessionStore interface {
	// CreateSession is idempotent on name: the first creator's Created
	// timestamp is preserved across later calls (spec §3).
	CreateSession(name string) (*Session, error)
	Get(name string) (*Session, bool)
	SetProviderBinding(name string, binding *ProviderBinding) error
	SetContext(name, context string) error
	// DeleteSession removes the session, its conversation log, and its
	// provider binding. Returns the final log for the session:destroy event.
	DeleteSession(name, reason string) ([]ConversationEntry, error)
	List() []Session

	// AppendEntry auto-creates the session if absent (spec §3).
	AppendEntry(session string, entry ConversationEntry) error
	// ReadLog returns entries in ts order; tailLimit<=0 means all.
	ReadLog(session string, tailLimit int) ([]ConversationEntry, error)
}

// CronStore manages CronJob and CronHistoryEntry persistence.
type CronStore interface {
	CreateJob(job CronJob) error
	DeleteJob(name string) error
	GetJob(name string) (*CronJob, bool)
	ListJobs() []CronJob
	AppendHistory(entry CronHistoryEntry, capacity int) error
	ListHistory() []CronHistoryEntry
}

// IdentityStore manages the single daemon Identity.
type IdentityStore interface {
	Load() (*Identity, bool, error)
	Save(identity Identity) error
}

// PeerStore manages known P2P peers and access grants.
type PeerStore interface {
	UpsertPeer(peer Peer) error
	GetPeer(pubKey string) (*Peer, bool)
	ListPeers() []Peer

	CreateGrant(grant AccessGrant) error
	GetGrant(id string) (*AccessGrant, bool)
	ListGrants() []AccessGrant
	DeleteGrant(id string) error
}

// ApiKeyStore manages API key credentials (spec §3, backed by auth.sqlite).
type ApiKeyStore interface {
	Create(ctx context.Context, key ApiKey) error
	Get(ctx context.Context, id string) (*ApiKey, bool, error)
	GetByPrefix(ctx context.Context, prefix string) (*ApiKey, bool, error)
	List(ctx context.Context) ([]ApiKey, error)
	Revoke(ctx context.Context, id string) error
	TouchLastUsed(ctx context.Context, id string) error
}

// MemoryMatch is one hit from MemoryStore.Search.
type MemoryMatch struct {
	Name    string `json:"name"`
	Snippet string `json:"snippet"`
}

// MemoryStore manages the per-session `sessions/<name>/memory/*.md` files
// spec §6.4 names literally: free-form markdown notes plus the two
// well-known documents (`identity.md`, `soul.md`) identity_get/soul_get
// and their *_update counterparts operate on.
type MemoryStore interface {
	Read(session, name string) (string, bool, error)
	Write(session, name, content string) error
	List(session string) ([]string, error)
	Search(session, query string) ([]MemoryMatch, error)
}

// Stores is the top-level container for all storage backends, mirroring
// goclaw's internal/store.Stores aggregate.
type Stores struct {
	Sessions SessionStore
	Cron     CronStore
	Identity IdentityStore
	Peers    PeerStore
	ApiKeys  ApiKeyStore
	Memory   MemoryStore
}
