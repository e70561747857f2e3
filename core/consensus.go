package core

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
)

// Engine is the polymorphic consensus interface: produce binds a
// transaction batch, the parent block hash and the post-state root into a
// hash-linked block (the caller sets PreStateRoot afterwards);
// validate recomputes the expected hash and checks it against a received
// block. Engine selection is a construction-time decision (consensus.engine
// config), not runtime dispatch over an open type hierarchy.
type Engine interface {
	Produce(txs []*Transaction, previousHash string, postRoot Hash) *Block
	Validate(b *Block, preRoot, actualPostRoot Hash) bool
}

// hashInput builds the common H(txs ‖ previous_hash ‖ extra ‖ post_root)
// input shared by both engines, using the canonical (non-debug-formatted)
// transaction encoding.
func hashInput(txs []*Transaction, previousHash string, extra []byte, postRoot Hash) [32]byte {
	h := sha256.New()
	h.Write(canonicalTxBytes(txs))
	h.Write([]byte(previousHash))
	h.Write(extra)
	h.Write(postRoot[:])
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

func nonceLE(n uint64) []byte {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], n)
	return b[:]
}

func hexPrefixZeros(digest [32]byte, n int) bool {
	s := hex.EncodeToString(digest[:])
	if n > len(s) {
		n = len(s)
	}
	for i := 0; i < n; i++ {
		if s[i] != '0' {
			return false
		}
	}
	return true
}
