package pgstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/nextlevelbuilder/wopr/internal/store"
)

// IdentityStore is the Postgres-backed store.IdentityStore for managed
// mode, where the single-row identity table takes the place of
// filestore's identity.json.
type IdentityStore struct {
	db *sql.DB
}

func NewIdentityStore(db *sql.DB) *IdentityStore { return &IdentityStore{db: db} }

func (s *IdentityStore) Load() (*store.Identity, bool, error) {
	ctx := context.Background()
	var identity store.Identity
	var rotatedFrom sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT sign_pub, sign_priv, encrypt_pub, encrypt_priv, created_at, rotated_from, rotated_at FROM identity WHERE id = 1`,
	).Scan(&identity.SignPub, &identity.SignPriv, &identity.EncryptPub, &identity.EncryptPriv,
		&identity.Created, &rotatedFrom, &identity.RotatedAt)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("load identity: %w", err)
	}
	identity.RotatedFrom = rotatedFrom.String
	return &identity, true, nil
}

func (s *IdentityStore) Save(identity store.Identity) error {
	ctx := context.Background()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO identity (id, sign_pub, sign_priv, encrypt_pub, encrypt_priv, created_at, rotated_from, rotated_at)
		 VALUES (1, $1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (id) DO UPDATE SET
		   sign_pub = EXCLUDED.sign_pub, sign_priv = EXCLUDED.sign_priv,
		   encrypt_pub = EXCLUDED.encrypt_pub, encrypt_priv = EXCLUDED.encrypt_priv,
		   created_at = EXCLUDED.created_at, rotated_from = EXCLUDED.rotated_from, rotated_at = EXCLUDED.rotated_at`,
		identity.SignPub, identity.SignPriv, identity.EncryptPub, identity.EncryptPriv,
		identity.Created, identity.RotatedFrom, identity.RotatedAt,
	)
	if err != nil {
		return fmt.Errorf("save identity: %w", err)
	}
	return nil
}

// PeerStore is the Postgres-backed store.PeerStore for managed mode.
type PeerStore struct {
	db *sql.DB
}

func NewPeerStore(db *sql.DB) *PeerStore { return &PeerStore{db: db} }

func (p *PeerStore) UpsertPeer(peer store.Peer) error {
	ctx := context.Background()
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO peers (public_key, label, trust_level, added_at) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (public_key) DO UPDATE SET label = EXCLUDED.label, trust_level = EXCLUDED.trust_level`,
		peer.PublicKey, peer.Label, peer.TrustLevel, peer.AddedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert peer: %w", err)
	}
	return nil
}

func (p *PeerStore) GetPeer(pubKey string) (*store.Peer, bool) {
	ctx := context.Background()
	var peer store.Peer
	var label sql.NullString
	err := p.db.QueryRowContext(ctx,
		"SELECT public_key, label, trust_level, added_at FROM peers WHERE public_key = $1", pubKey,
	).Scan(&peer.PublicKey, &label, &peer.TrustLevel, &peer.AddedAt)
	if err != nil {
		return nil, false
	}
	peer.Label = label.String
	return &peer, true
}

func (p *PeerStore) ListPeers() []store.Peer {
	ctx := context.Background()
	rows, err := p.db.QueryContext(ctx, "SELECT public_key, label, trust_level, added_at FROM peers ORDER BY public_key")
	if err != nil {
		return nil
	}
	defer rows.Close()

	var out []store.Peer
	for rows.Next() {
		var peer store.Peer
		var label sql.NullString
		if err := rows.Scan(&peer.PublicKey, &label, &peer.TrustLevel, &peer.AddedAt); err != nil {
			continue
		}
		peer.Label = label.String
		out = append(out, peer)
	}
	return out
}

func (p *PeerStore) CreateGrant(grant store.AccessGrant) error {
	ctx := context.Background()
	capsJSON, err := json.Marshal(grant.Capabilities)
	if err != nil {
		return fmt.Errorf("marshal capabilities: %w", err)
	}
	_, err = p.db.ExecContext(ctx,
		`INSERT INTO access_grants (id, public_key, api_key_id, trust_level, capabilities, expires_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (id) DO UPDATE SET
		   public_key = EXCLUDED.public_key, api_key_id = EXCLUDED.api_key_id,
		   trust_level = EXCLUDED.trust_level, capabilities = EXCLUDED.capabilities, expires_at = EXCLUDED.expires_at`,
		grant.ID, grant.PublicKey, grant.ApiKeyID, grant.TrustLevel, capsJSON, grant.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("create grant: %w", err)
	}
	return nil
}

func (p *PeerStore) GetGrant(id string) (*store.AccessGrant, bool) {
	ctx := context.Background()
	var grant store.AccessGrant
	var capsJSON []byte
	var pubKey, apiKeyID sql.NullString
	err := p.db.QueryRowContext(ctx,
		"SELECT id, public_key, api_key_id, trust_level, capabilities, expires_at FROM access_grants WHERE id = $1", id,
	).Scan(&grant.ID, &pubKey, &apiKeyID, &grant.TrustLevel, &capsJSON, &grant.ExpiresAt)
	if err != nil {
		return nil, false
	}
	grant.PublicKey, grant.ApiKeyID = pubKey.String, apiKeyID.String
	json.Unmarshal(capsJSON, &grant.Capabilities)
	return &grant, true
}

func (p *PeerStore) ListGrants() []store.AccessGrant {
	ctx := context.Background()
	rows, err := p.db.QueryContext(ctx, "SELECT id, public_key, api_key_id, trust_level, capabilities, expires_at FROM access_grants ORDER BY id")
	if err != nil {
		return nil
	}
	defer rows.Close()

	var out []store.AccessGrant
	for rows.Next() {
		var grant store.AccessGrant
		var capsJSON []byte
		var pubKey, apiKeyID sql.NullString
		if err := rows.Scan(&grant.ID, &pubKey, &apiKeyID, &grant.TrustLevel, &capsJSON, &grant.ExpiresAt); err != nil {
			continue
		}
		grant.PublicKey, grant.ApiKeyID = pubKey.String, apiKeyID.String
		json.Unmarshal(capsJSON, &grant.Capabilities)
		out = append(out, grant)
	}
	return out
}

func (p *PeerStore) DeleteGrant(id string) error {
	ctx := context.Background()
	_, err := p.db.ExecContext(ctx, "DELETE FROM access_grants WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete grant: %w", err)
	}
	return nil
}
