package core

import (
	"crypto/ed25519"
	crand "crypto/rand"
	"encoding/hex"
	"fmt"
)

// Keypair is an Ed25519 signing keypair, the scheme spec.md's data model
// requires (32-byte public key, 64-byte signature).
type Keypair struct {
	Public  ed25519.PublicKey
	Private ed25519.PrivateKey
}

// NewKeypair generates a fresh random Ed25519 keypair, used by the
// `keygen` CLI subcommand.
func NewKeypair() (*Keypair, error) {
	pub, priv, err := ed25519.GenerateKey(crand.Reader)
	if err != nil {
		return nil, fmt.Errorf("core: keygen: %w", err)
	}
	return &Keypair{Public: pub, Private: priv}, nil
}

// PublicHex returns the hex-encoded public key.
func (k *Keypair) PublicHex() string { return hex.EncodeToString(k.Public) }

// PrivateHex returns the hex-encoded private key. Callers emitting this to
// stdout (per the keygen CLI contract) are responsible for its handling
// thereafter; the core does not persist key material.
func (k *Keypair) PrivateHex() string { return hex.EncodeToString(k.Private) }

// SignTransfer is a convenience helper building and signing a Transfer
// transaction from this keypair's identity.
func (k *Keypair) SignTransfer(from string, nonce, gasPrice uint64, to string, amount uint64) (*Transaction, error) {
	tx := &Transaction{From: from, Nonce: nonce, GasPrice: gasPrice, Kind: TxTransfer, To: to, Amount: amount}
	if err := tx.Sign(k.Private); err != nil {
		return nil, err
	}
	return tx, nil
}
