package core

import (
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"
)

const (
	defaultMempoolCapacity = 1000
	flatGasPerTx           = 21000
)

// Mempool is a capacity-bounded, insertion-ordered set of admitted
// transactions enforcing signature validity, per-sender strictly-increasing
// nonces, and de-duplication by transaction hash. A single mutex guards the
// pending queue, hash set and nonce map together, so each public operation
// is atomic.
type Mempool struct {
	capacity int
	logger   *log.Logger

	mu          sync.Mutex
	pending     []*Transaction
	lookup      map[Hash]struct{}
	highestSeen map[string]uint64
}

// NewMempool returns an empty mempool. capacity <= 0 selects the default
// (1000).
func NewMempool(capacity int, logger *log.Logger) *Mempool {
	if capacity <= 0 {
		capacity = defaultMempoolCapacity
	}
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Mempool{
		capacity:    capacity,
		logger:      logger,
		lookup:      make(map[Hash]struct{}),
		highestSeen: make(map[string]uint64),
	}
}

// Add validates and admits tx per the five-step admission contract,
// returning its identity hash on success.
func (m *Mempool) Add(tx *Transaction) (Hash, error) {
	if err := tx.VerifySignature(); err != nil {
		return Hash{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if hi, ok := m.highestSeen[tx.From]; ok && tx.Nonce <= hi {
		return Hash{}, fmt.Errorf("core: %w: tx nonce %d <= highest seen %d for %s", ErrBadNonce, tx.Nonce, hi, tx.From)
	}

	h := tx.Hash()
	if _, exists := m.lookup[h]; exists {
		return Hash{}, fmt.Errorf("core: %w: %s", ErrDuplicate, h.Hex())
	}

	if len(m.pending) >= m.capacity {
		return Hash{}, fmt.Errorf("core: %w: capacity %d", ErrFull, m.capacity)
	}

	m.pending = append(m.pending, tx)
	m.lookup[h] = struct{}{}
	m.highestSeen[tx.From] = tx.Nonce
	return h, nil
}

// Peek returns a snapshot of the pending queue without removing anything,
// the cheap check the producer loop uses before committing to a Take.
func (m *Mempool) Peek() []*Transaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Transaction, len(m.pending))
	copy(out, m.pending)
	return out
}

// Take removes up to n transactions from the head of the pending queue and
// returns them, in FIFO admission order.
func (m *Mempool) Take(n int) []*Transaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n <= 0 || n > len(m.pending) {
		n = len(m.pending)
	}
	out := make([]*Transaction, n)
	copy(out, m.pending[:n])
	for _, tx := range out {
		delete(m.lookup, tx.Hash())
	}
	m.pending = m.pending[n:]
	return out
}

// FinalizeBlock records, for each included tx, that sender's nonce as the
// new high-water mark: the admission check (nonce > highest_seen) then
// rejects a resubmitted tx.Nonce and admits tx.Nonce+1, matching the
// finalize-then-replay scenario.
func (m *Mempool) FinalizeBlock(txs []*Transaction) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, tx := range txs {
		m.highestSeen[tx.From] = tx.Nonce
	}
}

// Remove evicts a pending transaction by identity hash, if present.
func (m *Mempool) Remove(h Hash) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.lookup[h]; !ok {
		return
	}
	delete(m.lookup, h)
	for i, tx := range m.pending {
		if tx.Hash() == h {
			m.pending = append(m.pending[:i], m.pending[i+1:]...)
			break
		}
	}
}

// Stats is the count/gas/capacity/utilization report for stats().
type Stats struct {
	Count       int
	TotalGas    uint64
	Capacity    int
	Utilization float64
}

// Stats reports the current pool occupancy.
func (m *Mempool) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := len(m.pending)
	return Stats{
		Count:       n,
		TotalGas:    uint64(n) * flatGasPerTx,
		Capacity:    m.capacity,
		Utilization: float64(n) / float64(m.capacity),
	}
}
