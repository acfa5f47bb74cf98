package sqlitestore

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"
)

// GenerateSecret returns a random API key secret plus its storage prefix
// (the first 8 hex chars, safe to log and index on) and salt. The caller is
// responsible for presenting fullSecret to the user exactly once.
func GenerateSecret() (fullSecret, prefix, salt string, err error) {
	raw := make([]byte, 32)
	if _, err = rand.Read(raw); err != nil {
		return "", "", "", fmt.Errorf("generate secret: %w", err)
	}
	fullSecret = base64.RawURLEncoding.EncodeToString(raw)
	prefix = fullSecret[:8]

	saltBytes := make([]byte, 16)
	if _, err = rand.Read(saltBytes); err != nil {
		return "", "", "", fmt.Errorf("generate salt: %w", err)
	}
	salt = hex.EncodeToString(saltBytes)
	return fullSecret, prefix, salt, nil
}

// HashSecret derives a storable digest from a secret and its salt.
func HashSecret(secret, salt string) string {
	h := sha256.Sum256([]byte(salt + secret))
	return hex.EncodeToString(h[:])
}

// VerifySecret compares a presented secret against a stored hash in
// constant time.
func VerifySecret(secret, salt, hashed string) bool {
	candidate := HashSecret(secret, salt)
	return subtle.ConstantTimeCompare([]byte(candidate), []byte(hashed)) == 1
}
