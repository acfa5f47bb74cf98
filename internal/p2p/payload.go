package p2p

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
)

func decodeInject(plaintext []byte) (*InboundInject, error) {
	var inj InboundInject
	if err := json.Unmarshal(plaintext, &inj); err != nil {
		return nil, fmt.Errorf("p2p: decode inject payload: %w", err)
	}
	return &inj, nil
}

func encodeInject(inj InboundInject) ([]byte, error) {
	return json.Marshal(inj)
}

func randomNonce() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("p2p: generate nonce: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
