// Package identity manages the daemon's single P2P keypair: an ed25519
// signing key (envelope authentication, spec §6.3) and an X25519
// encryption key (nacl/box payload sealing). Grounded on goclaw's
// bootstrap-time key generation pattern (internal/bootstrap) adapted to
// WOPR's rotation semantics (spec §3, §7 supplement).
package identity

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/crypto/nacl/box"

	"github.com/nextlevelbuilder/wopr/internal/bus"
	"github.com/nextlevelbuilder/wopr/internal/store"
)

// Manager owns the daemon's Identity record and its rotation history.
type Manager struct {
	mu      sync.RWMutex
	store   store.IdentityStore
	bus     bus.EventPublisher
	current store.Identity
}

// New loads the existing identity from store, generating one if absent.
func New(ctx context.Context, identityStore store.IdentityStore, publisher bus.EventPublisher) (*Manager, error) {
	m := &Manager{store: identityStore, bus: publisher}

	loaded, found, err := identityStore.Load()
	if err != nil {
		return nil, fmt.Errorf("load identity: %w", err)
	}
	if found {
		m.current = *loaded
		return m, nil
	}

	fresh, err := generate("")
	if err != nil {
		return nil, fmt.Errorf("generate identity: %w", err)
	}
	if err := identityStore.Save(fresh); err != nil {
		return nil, fmt.Errorf("save identity: %w", err)
	}
	m.current = fresh
	slog.Info("identity.created", "signPub", fresh.SignPub)
	return m, nil
}

// Current returns a copy of the active identity.
func (m *Manager) Current() store.Identity {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Rotate generates a new keypair, retaining a pointer back to the prior
// signing key so peers mid-handshake can be given a grace window (spec
// §4.2 P2PSecurityConfig.KeyRotationGraceHours).
func (m *Manager) Rotate(ctx context.Context) (store.Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	fresh, err := generate(m.current.SignPub)
	if err != nil {
		return store.Identity{}, fmt.Errorf("generate rotated identity: %w", err)
	}
	if err := m.store.Save(fresh); err != nil {
		return store.Identity{}, fmt.Errorf("save rotated identity: %w", err)
	}
	previous := m.current
	m.current = fresh

	if m.bus != nil {
		m.bus.Publish(bus.Event{Name: bus.EventIdentityRotated, Payload: map[string]string{
			"previousSignPub": previous.SignPub,
			"signPub":         fresh.SignPub,
		}})
	}
	slog.Info("identity.rotated", "previousSignPub", previous.SignPub, "signPub", fresh.SignPub)
	return fresh, nil
}

func generate(rotatedFrom string) (store.Identity, error) {
	signPub, signPriv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return store.Identity{}, fmt.Errorf("generate signing key: %w", err)
	}
	encPub, encPriv, err := box.GenerateKey(rand.Reader)
	if err != nil {
		return store.Identity{}, fmt.Errorf("generate encryption key: %w", err)
	}

	identity := store.Identity{
		SignPub:     base64.StdEncoding.EncodeToString(signPub),
		SignPriv:    base64.StdEncoding.EncodeToString(signPriv),
		EncryptPub:  base64.StdEncoding.EncodeToString(encPub[:]),
		EncryptPriv: base64.StdEncoding.EncodeToString(encPriv[:]),
		Created:     time.Now().UTC(),
	}
	if rotatedFrom != "" {
		identity.RotatedFrom = rotatedFrom
		now := time.Now().UTC()
		identity.RotatedAt = &now
	}
	return identity, nil
}

// DecodeSigningKey parses an Identity's stored signing keys back into raw
// ed25519 key material for envelope signing (internal/p2p).
func DecodeSigningKey(identity store.Identity) (pub ed25519.PublicKey, priv ed25519.PrivateKey, err error) {
	pubBytes, err := base64.StdEncoding.DecodeString(identity.SignPub)
	if err != nil {
		return nil, nil, fmt.Errorf("decode sign pub: %w", err)
	}
	privBytes, err := base64.StdEncoding.DecodeString(identity.SignPriv)
	if err != nil {
		return nil, nil, fmt.Errorf("decode sign priv: %w", err)
	}
	return ed25519.PublicKey(pubBytes), ed25519.PrivateKey(privBytes), nil
}

// DecodeEncryptionKey parses an Identity's stored X25519 keys for nacl/box.
func DecodeEncryptionKey(identity store.Identity) (pub, priv *[32]byte, err error) {
	pubBytes, err := base64.StdEncoding.DecodeString(identity.EncryptPub)
	if err != nil {
		return nil, nil, fmt.Errorf("decode encrypt pub: %w", err)
	}
	privBytes, err := base64.StdEncoding.DecodeString(identity.EncryptPriv)
	if err != nil {
		return nil, nil, fmt.Errorf("decode encrypt priv: %w", err)
	}
	if len(pubBytes) != 32 || len(privBytes) != 32 {
		return nil, nil, fmt.Errorf("encryption key must be 32 bytes")
	}
	var pubArr, privArr [32]byte
	copy(pubArr[:], pubBytes)
	copy(privArr[:], privBytes)
	return &pubArr, &privArr, nil
}
