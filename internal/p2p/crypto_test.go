package p2p

import (
	"crypto/rand"

	"golang.org/x/crypto/nacl/box"
)

func generateBoxKeypairForTest() (*[32]byte, *[32]byte, error) {
	return box.GenerateKey(rand.Reader)
}
