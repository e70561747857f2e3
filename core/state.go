package core

import (
	"encoding/binary"
	"fmt"

	log "github.com/sirupsen/logrus"
)

// Account is the balance half of the (balance, nonce) pair spec.md's data
// model names; the nonce half lives in the mempool's highest_seen/
// next_expected map (§3), not in per-account durable state, matching the
// KV layout (§6): values are plain little-endian u64 balances.
type Account struct {
	Balance uint64
}

func encodeAccount(a Account) []byte {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, a.Balance)
	return buf
}

func decodeAccount(b []byte) Account {
	if len(b) < 8 {
		return Account{}
	}
	return Account{Balance: binary.LittleEndian.Uint64(b)}
}

// ContractRunner is the host-ABI call contract forwarded ContractDeploy and
// ContractCall payloads. It is an external collaborator: the state
// processor never mutates state directly for these payload kinds.
type ContractRunner interface {
	Deploy(from string, code []byte, gasLimit uint64) (string, error)
	Call(from, address, fn string, args []byte, gasLimit uint64) ([]byte, error)
}

// StateProcessor applies transactions to a (KV, trie) pair, supporting
// simulate (over a snapshot + cloned trie, pure) and commit (over the live
// pair).
type StateProcessor struct {
	kv       *KVStore
	trie     *Trie
	runner   ContractRunner
	logger   *log.Logger
}

// NewStateProcessor binds a live KV store and trie. runner may be nil, in
// which case Contract* payloads are no-ops.
func NewStateProcessor(kv *KVStore, trie *Trie, runner ContractRunner, logger *log.Logger) *StateProcessor {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &StateProcessor{kv: kv, trie: trie, runner: runner, logger: logger}
}

// SetContractRunner binds the ContractRunner collaborator after
// construction, used when the runner itself needs a reference back to this
// processor (e.g. a WASM host ABI's get_balance call).
func (sp *StateProcessor) SetContractRunner(runner ContractRunner) {
	sp.runner = runner
}

// kvReader abstracts KVStore and Snapshot for read access during apply.
type kvReader interface {
	Get(key string) ([]byte, bool, error)
}

// kvWriter abstracts KVStore for write access during apply; a simulate pass
// never reaches this interface (it only ever writes into the working trie
// and a local overlay, never back into the KV).
type kvWriter interface {
	kvReader
	Put(key string, value []byte) error
}

func readAccount(r kvReader, name string) (Account, error) {
	v, ok, err := r.Get(name)
	if err != nil {
		return Account{}, err
	}
	if !ok {
		return Account{}, nil
	}
	return decodeAccount(v), nil
}

// applyOverlay applies txs against an in-memory overlay seeded from a
// reader, and the given trie, never touching the live KV. Used by Simulate.
func applyOverlay(r kvReader, t *Trie, txs []*Transaction, runner ContractRunner) (Hash, error) {
	overlay := map[string]Account{}
	get := func(name string) (Account, error) {
		if a, ok := overlay[name]; ok {
			return a, nil
		}
		return readAccount(r, name)
	}
	for _, tx := range txs {
		if err := applyOne(tx, get, func(name string, a Account) { overlay[name] = a }, t, runner); err != nil {
			return Hash{}, err
		}
	}
	return t.RootHash(), nil
}

// applyOne applies a single transaction's payload per §4.3 semantics.
// Insufficient-balance Transfers/Stakes are silently skipped at the state
// level (rejection is an admission-time concern, not a state-processor one).
func applyOne(tx *Transaction, get func(string) (Account, error), put func(string, Account), t *Trie, runner ContractRunner) error {
	switch tx.Kind {
	case TxTransfer:
		from, err := get(tx.From)
		if err != nil {
			return err
		}
		if from.Balance < tx.Amount {
			return nil
		}
		if tx.To == tx.From {
			return nil
		}
		to, err := get(tx.To)
		if err != nil {
			return err
		}
		from.Balance -= tx.Amount
		to.Balance += tx.Amount
		put(tx.From, from)
		if tx.To != tx.From {
			put(tx.To, to)
		}
		t.Insert([]byte(tx.From), encodeAccount(from))
		if tx.To != tx.From {
			t.Insert([]byte(tx.To), encodeAccount(to))
		}
	case TxStake:
		from, err := get(tx.From)
		if err != nil {
			return err
		}
		if from.Balance < tx.Amount {
			return nil
		}
		from.Balance -= tx.Amount
		put(tx.From, from)
		t.Insert([]byte(tx.From), encodeAccount(from))
	case TxUnstake:
		from, err := get(tx.From)
		if err != nil {
			return err
		}
		from.Balance += tx.Amount
		put(tx.From, from)
		t.Insert([]byte(tx.From), encodeAccount(from))
	case TxContractDeploy:
		if runner != nil {
			if _, err := runner.Deploy(tx.From, tx.Code, tx.GasLimit); err != nil {
				return fmt.Errorf("core: contract deploy: %w", err)
			}
		}
	case TxContractCall:
		if runner != nil {
			if _, err := runner.Call(tx.From, tx.Address, tx.Fn, tx.Args, tx.GasLimit); err != nil {
				return fmt.Errorf("core: contract call: %w", err)
			}
		}
	}
	return nil
}

// Simulate computes the post-state root of applying txs over a KV
// read-snapshot and a cloned trie, touching neither the live KV nor the
// live trie.
func (sp *StateProcessor) Simulate(txs []*Transaction) (Hash, error) {
	snap, err := sp.kv.Snapshot()
	if err != nil {
		return Hash{}, err
	}
	defer snap.Close()
	clone := sp.trie.Clone()
	return applyOverlay(snap, clone, txs, sp.runner)
}

// Commit applies block.Transactions to the live KV and live trie, returning
// the resulting root.
func (sp *StateProcessor) Commit(block *Block) (Hash, error) {
	for _, tx := range block.Transactions {
		get := func(name string) (Account, error) { return readAccount(sp.kv, name) }
		var putErr error
		put := func(name string, a Account) {
			if putErr != nil {
				return
			}
			putErr = sp.kv.Put(name, encodeAccount(a))
		}
		if err := applyOne(tx, get, put, sp.trie, sp.runner); err != nil {
			return Hash{}, err
		}
		if putErr != nil {
			return Hash{}, putErr
		}
	}
	return sp.trie.RootHash(), nil
}

// BalanceOf returns the live balance for name (0 if unset).
func (sp *StateProcessor) BalanceOf(name string) (uint64, error) {
	a, err := readAccount(sp.kv, name)
	if err != nil {
		return 0, err
	}
	return a.Balance, nil
}

// PrimeAccounts seeds the KV and trie from a name→balance map, used at
// startup from state.accounts config.
func (sp *StateProcessor) PrimeAccounts(balances map[string]uint64) error {
	for name, bal := range balances {
		a := Account{Balance: bal}
		if err := sp.kv.Put(name, encodeAccount(a)); err != nil {
			return err
		}
		sp.trie.Insert([]byte(name), encodeAccount(a))
	}
	return nil
}

// RebuildTrieFromKV reinserts every (account, balance) entry from the KV
// into the trie, used at startup since only the KV is durable.
func (sp *StateProcessor) RebuildTrieFromKV() error {
	return sp.kv.Each(func(key string, value []byte) error {
		if key == ChainHeadKey {
			return nil
		}
		sp.trie.Insert([]byte(key), value)
		return nil
	})
}

// RootHash returns the live trie's current root.
func (sp *StateProcessor) RootHash() Hash {
	return sp.trie.RootHash()
}
