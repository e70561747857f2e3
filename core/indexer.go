package core

import "sync"

// blockEntry is the indexed record for a block.
type blockEntry struct {
	block     *Block
	number    uint64
	timestamp int64
}

// txLocation locates a transaction within an indexed block.
type txLocation struct {
	tx        *Transaction
	blockHash string
	number    uint64
	index     int
}

// Indexer holds three in-memory maps, each behind its own mutex: hash→block,
// number→hash, tx-hash→location. It is not durable; on restart the chain is
// re-indexed from its persistent source, out of scope here.
type Indexer struct {
	blocksMu sync.RWMutex
	blocks   map[string]blockEntry

	byNumberMu sync.RWMutex
	byNumber   map[uint64]string

	txMu sync.RWMutex
	txs  map[Hash]txLocation
}

// NewIndexer returns an empty indexer.
func NewIndexer() *Indexer {
	return &Indexer{
		blocks:   make(map[string]blockEntry),
		byNumber: make(map[uint64]string),
		txs:      make(map[Hash]txLocation),
	}
}

// IndexBlock inserts block into all three maps; receiving the same block
// hash twice is idempotent (the second call overwrites with identical
// content, leaving exactly one entry).
func (idx *Indexer) IndexBlock(b *Block, number uint64, timestamp int64) {
	idx.blocksMu.Lock()
	idx.blocks[b.Hash] = blockEntry{block: b, number: number, timestamp: timestamp}
	idx.blocksMu.Unlock()

	idx.byNumberMu.Lock()
	idx.byNumber[number] = b.Hash
	idx.byNumberMu.Unlock()

	idx.txMu.Lock()
	for i, tx := range b.Transactions {
		idx.txs[tx.Hash()] = txLocation{tx: tx, blockHash: b.Hash, number: number, index: i}
	}
	idx.txMu.Unlock()
}

// BlockByHash returns a cloned block entry, or ErrNotFound.
func (idx *Indexer) BlockByHash(hash string) (*Block, uint64, int64, error) {
	idx.blocksMu.RLock()
	defer idx.blocksMu.RUnlock()
	e, ok := idx.blocks[hash]
	if !ok {
		return nil, 0, 0, ErrNotFound
	}
	return e.block.Clone(), e.number, e.timestamp, nil
}

// BlockByNumber resolves a block number to its block.
func (idx *Indexer) BlockByNumber(number uint64) (*Block, error) {
	idx.byNumberMu.RLock()
	hash, ok := idx.byNumber[number]
	idx.byNumberMu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	b, _, _, err := idx.BlockByHash(hash)
	return b, err
}

// TxLocation resolves a transaction hash to its (tx, block hash, number,
// index-in-block).
func (idx *Indexer) TxLocation(h Hash) (*Transaction, string, uint64, int, error) {
	idx.txMu.RLock()
	defer idx.txMu.RUnlock()
	loc, ok := idx.txs[h]
	if !ok {
		return nil, "", 0, 0, ErrNotFound
	}
	return loc.tx.Clone(), loc.blockHash, loc.number, loc.index, nil
}

// Height returns the highest indexed block number and whether any block has
// been indexed yet.
func (idx *Indexer) Height() (uint64, bool) {
	idx.byNumberMu.RLock()
	defer idx.byNumberMu.RUnlock()
	var max uint64
	found := false
	for n := range idx.byNumber {
		if !found || n > max {
			max, found = n, true
		}
	}
	return max, found
}
