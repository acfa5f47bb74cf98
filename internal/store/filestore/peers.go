package filestore

import (
	"path/filepath"
	"sort"
	"sync"

	"github.com/nextlevelbuilder/wopr/internal/store"
)

// PeerStore persists known P2P peers (peers.json) and access grants
// (access.json) — the two small documents that back C2's trust derivation
// for P2P sources (spec §3, §4.1).
type PeerStore struct {
	mu     sync.Mutex
	home   string
	peers  map[string]store.Peer
	grants map[string]store.AccessGrant
}

func NewPeerStore(home string) (*PeerStore, error) {
	p := &PeerStore{home: home, peers: make(map[string]store.Peer), grants: make(map[string]store.AccessGrant)}
	var peers []store.Peer
	if _, err := readJSON(p.peersPath(), &peers); err != nil {
		return nil, err
	}
	for _, peer := range peers {
		p.peers[peer.PublicKey] = peer
	}
	var grants []store.AccessGrant
	if _, err := readJSON(p.grantsPath(), &grants); err != nil {
		return nil, err
	}
	for _, g := range grants {
		p.grants[g.ID] = g
	}
	return p, nil
}

func (p *PeerStore) peersPath() string  { return filepath.Join(p.home, "peers.json") }
func (p *PeerStore) grantsPath() string { return filepath.Join(p.home, "access.json") }

func (p *PeerStore) persistPeersLocked() error {
	list := make([]store.Peer, 0, len(p.peers))
	for _, peer := range p.peers {
		list = append(list, peer)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].PublicKey < list[j].PublicKey })
	return writeAtomic(p.peersPath(), list)
}

func (p *PeerStore) persistGrantsLocked() error {
	list := make([]store.AccessGrant, 0, len(p.grants))
	for _, g := range p.grants {
		list = append(list, g)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return writeAtomic(p.grantsPath(), list)
}

func (p *PeerStore) UpsertPeer(peer store.Peer) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.peers[peer.PublicKey] = peer
	return p.persistPeersLocked()
}

func (p *PeerStore) GetPeer(pubKey string) (*store.Peer, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	peer, ok := p.peers[pubKey]
	if !ok {
		return nil, false
	}
	clone := peer
	return &clone, true
}

func (p *PeerStore) ListPeers() []store.Peer {
	p.mu.Lock()
	defer p.mu.Unlock()
	list := make([]store.Peer, 0, len(p.peers))
	for _, peer := range p.peers {
		list = append(list, peer)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].PublicKey < list[j].PublicKey })
	return list
}

func (p *PeerStore) CreateGrant(grant store.AccessGrant) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.grants[grant.ID] = grant
	return p.persistGrantsLocked()
}

func (p *PeerStore) GetGrant(id string) (*store.AccessGrant, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	grant, ok := p.grants[id]
	if !ok {
		return nil, false
	}
	clone := grant
	return &clone, true
}

func (p *PeerStore) ListGrants() []store.AccessGrant {
	p.mu.Lock()
	defer p.mu.Unlock()
	list := make([]store.AccessGrant, 0, len(p.grants))
	for _, g := range p.grants {
		list = append(list, g)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list
}

func (p *PeerStore) DeleteGrant(id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.grants, id)
	return p.persistGrantsLocked()
}
