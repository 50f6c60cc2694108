// Package identity derives the node keypair and peer ID.
package identity

import (
	"crypto/ed25519"
	"crypto/rand"
	"fmt"

	"github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/peer"
)

type Identity struct {
	PrivKey crypto.PrivKey
	ID      peer.ID
}

// Derive returns a deterministic identity when seed is set and a fresh random
// one otherwise. The seed becomes the first byte of an otherwise zero
// ed25519 seed.
func Derive(seed *uint8) (Identity, error) {
	var priv crypto.PrivKey
	var err error

	if seed != nil {
		priv, err = fromSeed(*seed)
	} else {
		priv, _, err = crypto.GenerateEd25519Key(rand.Reader)
	}
	if err != nil {
		return Identity{}, fmt.Errorf("generating keypair: %w", err)
	}

	id, err := peer.IDFromPrivateKey(priv)
	if err != nil {
		return Identity{}, fmt.Errorf("deriving peer id: %w", err)
	}

	return Identity{PrivKey: priv, ID: id}, nil
}

func fromSeed(seed uint8) (crypto.PrivKey, error) {
	var material [ed25519.SeedSize]byte
	material[0] = seed

	key := ed25519.NewKeyFromSeed(material[:])
	return crypto.UnmarshalEd25519PrivateKey(key)
}
