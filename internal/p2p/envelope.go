// Package p2p implements the wire-format half of WOPR's C2-adjacent P2P
// surface (spec §6.3): signed envelopes, X25519 ephemeral payload sealing,
// replay protection, and per-source rate buckets. The actual discovery
// transport (the network listener peers dial into) is out of scope (spec
// §8 Non-goals); this package only implements the envelope codec and the
// verification step a security.Kernel derivation depends on. Grounded on
// goclaw's internal/identity bootstrap-time keypair shape, generalized
// from goclaw's single signing identity onto WOPR's sign+verify envelope
// flow.
package p2p

import (
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"
)

// EnvelopeVersion is the current wire version (spec §6.3: "{v:int, ...}").
const EnvelopeVersion = 1

// EnvelopeType enumerates spec §6.3's fixed envelope type set.
type EnvelopeType string

const (
	TypeHello        EnvelopeType = "hello"
	TypeHelloAck     EnvelopeType = "hello-ack"
	TypeInject       EnvelopeType = "inject"
	TypeClaim        EnvelopeType = "claim"
	TypeAck          EnvelopeType = "ack"
	TypeReject       EnvelopeType = "reject"
	TypeKeyRotation  EnvelopeType = "key-rotation"
)

// Envelope is the signed, versioned wire frame spec §6.3 names verbatim.
// Payload is the encrypted body (see crypto.go); Sig covers every other
// field so a tampered nonce, timestamp, or payload invalidates the
// envelope.
type Envelope struct {
	V       int          `json:"v"`
	Type    EnvelopeType `json:"type"`
	From    string       `json:"from"` // base64 ed25519 public key
	Nonce   string       `json:"nonce"`
	Ts      int64        `json:"ts"` // unix millis
	Payload string       `json:"payload,omitempty"` // base64 sealed box
	Sig     string       `json:"sig"`
}

// signingBytes returns the canonical byte sequence Sig is computed over:
// every field except Sig itself, in a fixed order so signer and verifier
// never disagree on encoding.
func (e Envelope) signingBytes() []byte {
	return []byte(fmt.Sprintf("%d|%s|%s|%s|%d|%s", e.V, e.Type, e.From, e.Nonce, e.Ts, e.Payload))
}

// Sign fills From, Ts (if zero), and Sig in place using the caller's
// ed25519 keypair.
func Sign(e Envelope, pub ed25519.PublicKey, priv ed25519.PrivateKey) Envelope {
	if e.V == 0 {
		e.V = EnvelopeVersion
	}
	if e.Ts == 0 {
		e.Ts = time.Now().UnixMilli()
	}
	e.From = base64.StdEncoding.EncodeToString(pub)
	sig := ed25519.Sign(priv, e.signingBytes())
	e.Sig = base64.StdEncoding.EncodeToString(sig)
	return e
}

// Verify checks an envelope's signature against its own claimed From
// public key. It does not check freshness or replay — callers combine
// this with a ReplayCache and a maxSkew check (see VerifyFresh).
func Verify(e Envelope) error {
	fromKey, err := base64.StdEncoding.DecodeString(e.From)
	if err != nil {
		return fmt.Errorf("p2p: invalid from key encoding: %w", err)
	}
	if len(fromKey) != ed25519.PublicKeySize {
		return fmt.Errorf("p2p: from key has wrong length %d", len(fromKey))
	}
	sig, err := base64.StdEncoding.DecodeString(e.Sig)
	if err != nil {
		return fmt.Errorf("p2p: invalid signature encoding: %w", err)
	}
	if !ed25519.Verify(ed25519.PublicKey(fromKey), e.signingBytes(), sig) {
		return fmt.Errorf("p2p: signature verification failed")
	}
	return nil
}

// maxClockSkew bounds how far an envelope's ts may drift from local time
// before it is rejected as stale or from-the-future.
const maxClockSkew = 5 * time.Minute

// VerifyFresh runs a clock-skew bound, then Verify, then a replay check
// against cache, in that order (cheapest check first).
func VerifyFresh(e Envelope, cache *ReplayCache) error {
	skew := time.Since(time.UnixMilli(e.Ts))
	if skew < -maxClockSkew || skew > maxClockSkew {
		return fmt.Errorf("p2p: envelope timestamp outside allowed skew")
	}
	if err := Verify(e); err != nil {
		return err
	}
	if !cache.CheckAndRecord(e.From, e.Nonce) {
		return fmt.Errorf("p2p: replayed envelope (from=%s nonce=%s)", e.From, e.Nonce)
	}
	return nil
}

// Marshal/Unmarshal are thin json wrappers kept here so callers never
// import encoding/json directly for envelope traffic.
func Marshal(e Envelope) ([]byte, error) { return json.Marshal(e) }

func Unmarshal(data []byte) (Envelope, error) {
	var e Envelope
	if err := json.Unmarshal(data, &e); err != nil {
		return Envelope{}, fmt.Errorf("p2p: decode envelope: %w", err)
	}
	return e, nil
}
