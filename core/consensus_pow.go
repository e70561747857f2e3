package core

import "encoding/hex"

// PoWEngine searches nonces from zero upward until the block hash's
// hex-encoded prefix has the configured number of leading '0' characters
// (reference difficulty: 16 bits, i.e. a 4-character hex prefix).
type PoWEngine struct {
	// DifficultyBits is the number of leading zero bits required; the hex
	// prefix length checked is DifficultyBits/4 (reference: 16 → "0000").
	DifficultyBits int
}

// NewPoWEngine constructs a PoW engine for the given leading-zero bit
// target.
func NewPoWEngine(difficultyBits int) *PoWEngine {
	if difficultyBits <= 0 {
		difficultyBits = 16
	}
	return &PoWEngine{DifficultyBits: difficultyBits}
}

func (e *PoWEngine) prefixLen() int { return e.DifficultyBits / 4 }

// Produce never fails: it loops nonces until the difficulty target is met.
func (e *PoWEngine) Produce(txs []*Transaction, previousHash string, postRoot Hash) *Block {
	prefix := e.prefixLen()
	var nonce uint64
	var digest [32]byte
	for {
		digest = hashInput(txs, previousHash, nonceLE(nonce), postRoot)
		if hexPrefixZeros(digest, prefix) {
			break
		}
		nonce++
	}
	return &Block{
		Transactions:  txs,
		PreviousHash:  previousHash,
		Nonce:         nonce,
		Hash:          hex.EncodeToString(digest[:]),
		PostStateRoot: postRoot,
	}
}

// Validate recomputes the hash from the block's own nonce and the expected
// post-root supplied by the caller (not the block's own PostStateRoot
// field, which may have been tampered with).
func (e *PoWEngine) Validate(b *Block, preRoot, actualPostRoot Hash) bool {
	digest := hashInput(b.Transactions, b.PreviousHash, nonceLE(b.Nonce), actualPostRoot)
	if !hexPrefixZeros(digest, e.prefixLen()) {
		return false
	}
	if hex.EncodeToString(digest[:]) != b.Hash {
		return false
	}
	return b.PostStateRoot == actualPostRoot
}

var _ Engine = (*PoWEngine)(nil)
