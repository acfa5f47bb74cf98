package filestore

import (
	"testing"
	"time"

	"github.com/nextlevelbuilder/wopr/internal/store"
)

func TestPeerStore_UpsertAndGetPeer(t *testing.T) {
	dir := t.TempDir()
	p, err := NewPeerStore(dir)
	if err != nil {
		t.Fatal(err)
	}

	peer := store.Peer{PublicKey: "pk1", Label: "laptop", TrustLevel: "trusted", AddedAt: time.Now()}
	if err := p.UpsertPeer(peer); err != nil {
		t.Fatal(err)
	}

	got, ok := p.GetPeer("pk1")
	if !ok {
		t.Fatal("expected peer to exist")
	}
	if got.Label != "laptop" {
		t.Errorf("label mismatch: %q", got.Label)
	}
}

func TestPeerStore_GrantLifecycle(t *testing.T) {
	dir := t.TempDir()
	p, err := NewPeerStore(dir)
	if err != nil {
		t.Fatal(err)
	}

	grant := store.AccessGrant{ID: "g1", PublicKey: "pk1", TrustLevel: "semi-trusted", Capabilities: []string{"read"}}
	if err := p.CreateGrant(grant); err != nil {
		t.Fatal(err)
	}
	if _, ok := p.GetGrant("g1"); !ok {
		t.Fatal("expected grant to exist")
	}
	if err := p.DeleteGrant("g1"); err != nil {
		t.Fatal(err)
	}
	if _, ok := p.GetGrant("g1"); ok {
		t.Fatal("expected grant to be gone after delete")
	}
}

func TestPeerStore_PersistsAcrossReload(t *testing.T) {
	dir := t.TempDir()
	p, err := NewPeerStore(dir)
	if err != nil {
		t.Fatal(err)
	}
	if err := p.UpsertPeer(store.Peer{PublicKey: "pk2", TrustLevel: "owner", AddedAt: time.Now()}); err != nil {
		t.Fatal(err)
	}
	if err := p.CreateGrant(store.AccessGrant{ID: "g2", PublicKey: "pk2", TrustLevel: "owner"}); err != nil {
		t.Fatal(err)
	}

	reloaded, err := NewPeerStore(dir)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := reloaded.GetPeer("pk2"); !ok {
		t.Fatal("expected peer to survive reload")
	}
	if _, ok := reloaded.GetGrant("g2"); !ok {
		t.Fatal("expected grant to survive reload")
	}
}
