package p2p

import (
	"encoding/base64"
	"fmt"

	"github.com/nextlevelbuilder/wopr/internal/identity"
	"github.com/nextlevelbuilder/wopr/internal/security"
	"github.com/nextlevelbuilder/wopr/internal/store"
)

// InboundInject is a verified+decrypted "inject" envelope's payload,
// ready to hand to the dispatch engine.
type InboundInject struct {
	Session string `json:"session"`
	Message string `json:"message"`
}

// Processor verifies, decrypts, and rate-limits inbound P2P envelopes
// before handing their payload to the rest of the daemon. It owns no
// transport: the discovery listener (out of scope, spec §8) is expected
// to read framed bytes off the wire and call HandleEnvelope per frame.
type Processor struct {
	identity *identity.Manager
	peers    store.PeerStore
	replay   *ReplayCache
	limiter  *RateLimiter
}

func NewProcessor(idMgr *identity.Manager, peers store.PeerStore) *Processor {
	return &Processor{
		identity: idMgr,
		peers:    peers,
		replay:   NewReplayCache(),
		limiter:  NewRateLimiter(),
	}
}

// HandleEnvelope verifies e's signature, freshness, and replay status,
// applies the per-kind rate bucket for e.From, and — for "inject" —
// decrypts the payload and returns both the decoded inject and the
// InjectionSource the security kernel should evaluate it under.
func (p *Processor) HandleEnvelope(e Envelope) (*InboundInject, security.InjectionSource, error) {
	source := security.InjectionSource{
		Type:     security.SourceP2P,
		Identity: security.Identity{PublicKey: e.From},
	}

	kind := kindFor(e.Type)
	if !p.limiter.Allow(e.From, kind) {
		return nil, source, fmt.Errorf("p2p: rate limited (%s)", kind)
	}

	if err := VerifyFresh(e, p.replay); err != nil {
		p.limiter.Allow(e.From, BucketInvalid)
		return nil, source, err
	}

	if e.Type != TypeInject {
		return nil, source, nil
	}

	_, priv, err := identity.DecodeEncryptionKey(p.identity.Current())
	if err != nil {
		return nil, source, fmt.Errorf("p2p: decode local encryption key: %w", err)
	}
	plaintext, err := Open(e.Payload, priv)
	if err != nil {
		return nil, source, fmt.Errorf("p2p: open inject payload: %w", err)
	}

	inj, err := decodeInject(plaintext)
	if err != nil {
		return nil, source, err
	}
	return inj, source, nil
}

// SealInject encrypts an InboundInject for peerEncryptPub (base64 X25519) and
// wraps it in a signed TypeInject envelope ready to send.
func (p *Processor) SealInject(peerEncryptPub string, inj InboundInject) (Envelope, error) {
	pub, err := decodeBoxKey(peerEncryptPub)
	if err != nil {
		return Envelope{}, err
	}
	plaintext, err := encodeInject(inj)
	if err != nil {
		return Envelope{}, err
	}
	sealed, err := Seal(plaintext, pub)
	if err != nil {
		return Envelope{}, err
	}

	signPub, signPriv, err := identity.DecodeSigningKey(p.identity.Current())
	if err != nil {
		return Envelope{}, err
	}
	nonce, err := randomNonce()
	if err != nil {
		return Envelope{}, err
	}
	env := Envelope{Type: TypeInject, Nonce: nonce, Payload: sealed}
	return Sign(env, signPub, signPriv), nil
}

func kindFor(t EnvelopeType) BucketKind {
	switch t {
	case TypeHello, TypeHelloAck:
		return BucketConnections
	case TypeClaim:
		return BucketClaims
	case TypeInject:
		return BucketInjects
	default:
		return BucketInvalid
	}
}

func decodeBoxKey(b64 string) (*[32]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, fmt.Errorf("p2p: decode peer encryption key: %w", err)
	}
	if len(raw) != 32 {
		return nil, fmt.Errorf("p2p: peer encryption key must be 32 bytes")
	}
	var out [32]byte
	copy(out[:], raw)
	return &out, nil
}
