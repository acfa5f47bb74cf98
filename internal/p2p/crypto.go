package p2p

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"golang.org/x/crypto/nacl/box"
)

// Seal encrypts plaintext for recipientPub using a fresh ephemeral X25519
// keypair (forward secrecy: the ephemeral private key is discarded after
// this call returns), per spec §6.3. The returned string is
// base64(ephemeralPub || nonce || ciphertext).
func Seal(plaintext []byte, recipientPub *[32]byte) (string, error) {
	ephPub, ephPriv, err := box.GenerateKey(rand.Reader)
	if err != nil {
		return "", fmt.Errorf("p2p: generate ephemeral key: %w", err)
	}

	var nonce [24]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return "", fmt.Errorf("p2p: generate nonce: %w", err)
	}

	sealed := box.Seal(nil, plaintext, &nonce, recipientPub, ephPriv)

	out := make([]byte, 0, 32+24+len(sealed))
	out = append(out, ephPub[:]...)
	out = append(out, nonce[:]...)
	out = append(out, sealed...)
	return base64.StdEncoding.EncodeToString(out), nil
}

// Open decrypts a Seal-produced payload using the recipient's own X25519
// private key.
func Open(payload string, recipientPriv *[32]byte) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("p2p: decode payload: %w", err)
	}
	if len(raw) < 32+24 {
		return nil, fmt.Errorf("p2p: payload too short")
	}

	var ephPub [32]byte
	copy(ephPub[:], raw[:32])
	var nonce [24]byte
	copy(nonce[:], raw[32:56])
	ciphertext := raw[56:]

	plaintext, ok := box.Open(nil, ciphertext, &nonce, &ephPub, recipientPriv)
	if !ok {
		return nil, fmt.Errorf("p2p: decryption failed")
	}
	return plaintext, nil
}
