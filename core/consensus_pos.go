package core

import (
	"crypto/sha256"
	"encoding/hex"
)

// PoSEngine selects a proposer deterministically from a static
// validator→stake map by largest stake (ties broken by the lexicographically
// smallest validator name, so Produce and Validate always pick the same
// proposer). Validator-set updates
// from block content are out of scope: the map is injected at construction
// and never mutated by Produce/Validate.
type PoSEngine struct {
	Stakes map[string]uint64
}

// NewPoSEngine constructs a PoS engine (also used for the "poa" config
// value, which builds the same stake map as "pos"; there is no separate
// single-authority validator set).
func NewPoSEngine(stakes map[string]uint64) *PoSEngine {
	return &PoSEngine{Stakes: stakes}
}

// proposer returns the highest-stake validator; among equal stakes the
// lexicographically smallest name wins, independent of map iteration order.
func (e *PoSEngine) proposer() string {
	var best string
	var bestStake uint64
	first := true
	for v, s := range e.Stakes {
		if first || s > bestStake || (s == bestStake && v < best) {
			best, bestStake, first = v, s, false
		}
	}
	return best
}

func (e *PoSEngine) hash(txs []*Transaction, previousHash string, proposer string, postRoot Hash) [32]byte {
	h := sha256.New()
	h.Write(canonicalTxBytes(txs))
	h.Write([]byte(previousHash))
	h.Write([]byte(proposer))
	h.Write(postRoot[:])
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// Produce always finds a validator (the injected map is assumed non-empty
// by construction); nonce is always 0 for PoS blocks.
func (e *PoSEngine) Produce(txs []*Transaction, previousHash string, postRoot Hash) *Block {
	proposer := e.proposer()
	digest := e.hash(txs, previousHash, proposer, postRoot)
	return &Block{
		Transactions:  txs,
		PreviousHash:  previousHash,
		Nonce:         0,
		Hash:          hex.EncodeToString(digest[:]),
		PostStateRoot: postRoot,
	}
}

// Validate recomputes under the same rule using the current proposer
// selection and the caller-supplied expected post-root.
func (e *PoSEngine) Validate(b *Block, preRoot, actualPostRoot Hash) bool {
	proposer := e.proposer()
	digest := e.hash(b.Transactions, b.PreviousHash, proposer, actualPostRoot)
	if hex.EncodeToString(digest[:]) != b.Hash {
		return false
	}
	return b.PostStateRoot == actualPostRoot
}

var _ Engine = (*PoSEngine)(nil)
