package core

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
)

// Hash is a 32-byte digest, hex-encoded at the edges (wire, storage keys).
type Hash [32]byte

func (h Hash) Hex() string   { return hex.EncodeToString(h[:]) }
func (h Hash) String() string { return h.Hex() }

// TxKind discriminates the Transaction payload union.
type TxKind uint8

const (
	TxTransfer TxKind = iota + 1
	TxContractDeploy
	TxContractCall
	TxStake
	TxUnstake
)

func (k TxKind) String() string {
	switch k {
	case TxTransfer:
		return "transfer"
	case TxContractDeploy:
		return "contract_deploy"
	case TxContractCall:
		return "contract_call"
	case TxStake:
		return "stake"
	case TxUnstake:
		return "unstake"
	default:
		return "unknown"
	}
}

// Transaction is the core admitted unit of work. Payload is a tagged union:
// only the fields relevant to Kind are populated.
type Transaction struct {
	From      string `json:"from"`
	Nonce     uint64 `json:"nonce"`
	GasPrice  uint64 `json:"gas_price"`
	Kind      TxKind `json:"kind"`

	// Transfer
	To     string `json:"to,omitempty"`
	Amount uint64 `json:"amount,omitempty"`

	// ContractDeploy
	Code     []byte `json:"code,omitempty"`
	GasLimit uint64 `json:"gas_limit,omitempty"`

	// ContractCall
	Address string `json:"address,omitempty"`
	Fn      string `json:"fn,omitempty"`
	Args    []byte `json:"args,omitempty"`

	// Stake / Unstake reuse Amount.

	Signature []byte `json:"signature,omitempty"`
	PublicKey []byte `json:"public_key,omitempty"`
}

// canonicalBytes produces a stable, length-prefixed encoding of the
// transaction with the signature field zeroed, used both for hashing
// (identity) and for signing/verification.
func (tx *Transaction) canonicalBytes() []byte {
	buf := make([]byte, 0, 128)
	buf = appendLP(buf, []byte(tx.From))
	buf = appendU64(buf, tx.Nonce)
	buf = appendU64(buf, tx.GasPrice)
	buf = append(buf, byte(tx.Kind))
	buf = appendLP(buf, []byte(tx.To))
	buf = appendU64(buf, tx.Amount)
	buf = appendLP(buf, tx.Code)
	buf = appendU64(buf, tx.GasLimit)
	buf = appendLP(buf, []byte(tx.Address))
	buf = appendLP(buf, []byte(tx.Fn))
	buf = appendLP(buf, tx.Args)
	buf = appendLP(buf, tx.PublicKey)
	return buf
}

func appendU64(buf []byte, v uint64) []byte {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	return append(buf, b[:]...)
}

func appendLP(buf []byte, v []byte) []byte {
	var lb [4]byte
	binary.LittleEndian.PutUint32(lb[:], uint32(len(v)))
	buf = append(buf, lb[:]...)
	return append(buf, v...)
}

// Hash returns the transaction identity: SHA-256 of the canonical encoding
// (IDHex gives its hex form).
func (tx *Transaction) Hash() Hash {
	return sha256.Sum256(tx.canonicalBytes())
}

// IDHex returns the hex-encoded transaction identity.
func (tx *Transaction) IDHex() string {
	h := tx.Hash()
	return h.Hex()
}

// Sign computes tx.Hash() (with Signature implicitly zeroed, since it is
// excluded from canonicalBytes) and sets Signature/PublicKey from priv.
func (tx *Transaction) Sign(priv ed25519.PrivateKey) error {
	if len(priv) != ed25519.PrivateKeySize {
		return fmt.Errorf("core: malformed private key")
	}
	pub := priv.Public().(ed25519.PublicKey)
	tx.PublicKey = append([]byte(nil), pub...)
	h := tx.Hash()
	tx.Signature = ed25519.Sign(priv, h[:])
	return nil
}

// VerifySignature checks tx.Signature against the hash of the transaction
// with Signature conceptually cleared (Signature never enters canonicalBytes)
// using tx.PublicKey. An empty signature/public-key pair bypasses the check
// (bootstrap transactions) and returns nil.
func (tx *Transaction) VerifySignature() error {
	if len(tx.Signature) == 0 && len(tx.PublicKey) == 0 {
		return nil
	}
	if len(tx.Signature) != ed25519.SignatureSize || len(tx.PublicKey) != ed25519.PublicKeySize {
		return fmt.Errorf("core: %w: malformed signature or public key", ErrBadSignature)
	}
	h := tx.Hash()
	if !ed25519.Verify(ed25519.PublicKey(tx.PublicKey), h[:], tx.Signature) {
		return fmt.Errorf("core: %w", ErrBadSignature)
	}
	return nil
}

// Block is a hash-linked batch of transactions committing a state
// transition from PreStateRoot to PostStateRoot.
type Block struct {
	Transactions  []*Transaction `json:"transactions"`
	PreviousHash  string         `json:"previous_hash"`
	Nonce         uint64         `json:"nonce"`
	Hash          string         `json:"hash"`
	PreStateRoot  Hash           `json:"pre_state_root"`
	PostStateRoot Hash           `json:"post_state_root"`
}

// Clone returns a deep copy of tx: byte slices are copied rather than
// aliased, so a caller mutating the returned transaction cannot corrupt the
// original (used by read paths that hand out stored entries, e.g. the
// indexer).
func (tx *Transaction) Clone() *Transaction {
	if tx == nil {
		return nil
	}
	c := *tx
	c.Code = append([]byte(nil), tx.Code...)
	c.Args = append([]byte(nil), tx.Args...)
	c.Signature = append([]byte(nil), tx.Signature...)
	c.PublicKey = append([]byte(nil), tx.PublicKey...)
	return &c
}

// Clone returns a deep copy of b: its transaction slice is copied and each
// transaction is itself cloned, so a caller mutating the returned block
// cannot corrupt the original (used by read paths that hand out stored
// entries, e.g. the indexer).
func (b *Block) Clone() *Block {
	if b == nil {
		return nil
	}
	c := *b
	c.Transactions = make([]*Transaction, len(b.Transactions))
	for i, tx := range b.Transactions {
		c.Transactions[i] = tx.Clone()
	}
	return &c
}

// canonicalTxBytes deterministically encodes a transaction sequence for
// inclusion in a consensus hash input, replacing the debug-formatted string
// serialization the reference implementation used.
func canonicalTxBytes(txs []*Transaction) []byte {
	buf := make([]byte, 0, 64*len(txs))
	for _, tx := range txs {
		h := tx.Hash()
		buf = append(buf, h[:]...)
	}
	return buf
}
