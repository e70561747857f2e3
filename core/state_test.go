package core

import (
	"path/filepath"
	"testing"
)

func newTestState(t *testing.T) (*StateProcessor, *KVStore) {
	t.Helper()
	kv, err := OpenKVStore(filepath.Join(t.TempDir(), "state.db"), nil)
	if err != nil {
		t.Fatalf("open kv: %v", err)
	}
	t.Cleanup(func() { kv.Close() })
	trie := NewTrie()
	sp := NewStateProcessor(kv, trie, nil, nil)
	return sp, kv
}

func TestSimulateDeterminism(t *testing.T) {
	sp, _ := newTestState(t)
	if err := sp.PrimeAccounts(map[string]uint64{"alice": 100, "bob": 0}); err != nil {
		t.Fatal(err)
	}
	txs := []*Transaction{{From: "alice", To: "bob", Amount: 40, Kind: TxTransfer}}

	r1, err := sp.Simulate(txs)
	if err != nil {
		t.Fatal(err)
	}
	r2, err := sp.Simulate(txs)
	if err != nil {
		t.Fatal(err)
	}
	if r1 != r2 {
		t.Fatalf("simulate not deterministic: %x != %x", r1, r2)
	}

	preBal, _ := sp.BalanceOf("alice")
	if preBal != 100 {
		t.Fatalf("simulate must not mutate live state, alice balance = %d", preBal)
	}

	committed, err := sp.Commit(&Block{Transactions: txs})
	if err != nil {
		t.Fatal(err)
	}
	if committed != r1 {
		t.Fatalf("commit root %x != simulated root %x", committed, r1)
	}
}

func TestTransferSemantics(t *testing.T) {
	sp, _ := newTestState(t)
	if err := sp.PrimeAccounts(map[string]uint64{"alice": 100, "bob": 0}); err != nil {
		t.Fatal(err)
	}

	insufficient := []*Transaction{{From: "alice", To: "bob", Amount: 1000, Kind: TxTransfer}}
	if _, err := sp.Commit(&Block{Transactions: insufficient}); err != nil {
		t.Fatal(err)
	}
	aliceBal, _ := sp.BalanceOf("alice")
	bobBal, _ := sp.BalanceOf("bob")
	if aliceBal != 100 || bobBal != 0 {
		t.Fatalf("insufficient-balance transfer must leave balances unchanged, got alice=%d bob=%d", aliceBal, bobBal)
	}

	sufficient := []*Transaction{{From: "alice", To: "bob", Amount: 50, Kind: TxTransfer}}
	if _, err := sp.Commit(&Block{Transactions: sufficient}); err != nil {
		t.Fatal(err)
	}
	aliceBal, _ = sp.BalanceOf("alice")
	bobBal, _ = sp.BalanceOf("bob")
	if aliceBal != 50 || bobBal != 50 {
		t.Fatalf("want alice=50 bob=50, got alice=%d bob=%d", aliceBal, bobBal)
	}
}

func TestTransferToSelfIsNoOpButValid(t *testing.T) {
	sp, _ := newTestState(t)
	if err := sp.PrimeAccounts(map[string]uint64{"alice": 100}); err != nil {
		t.Fatal(err)
	}
	txs := []*Transaction{{From: "alice", To: "alice", Amount: 10, Kind: TxTransfer}}
	if _, err := sp.Commit(&Block{Transactions: txs}); err != nil {
		t.Fatal(err)
	}
	bal, _ := sp.BalanceOf("alice")
	if bal != 100 {
		t.Fatalf("self-transfer should be a no-op, got balance %d", bal)
	}
}

func TestGenesisAndTransferScenario(t *testing.T) {
	sp, _ := newTestState(t)
	if err := sp.PrimeAccounts(map[string]uint64{"Alice": 100, "Charlie": 100}); err != nil {
		t.Fatal(err)
	}
	pre := sp.RootHash()

	txs := []*Transaction{{From: "Alice", To: "Bob", Amount: 50, Kind: TxTransfer}}
	post, err := sp.Simulate(txs)
	if err != nil {
		t.Fatal(err)
	}

	committed, err := sp.Commit(&Block{Transactions: txs, PreStateRoot: pre, PostStateRoot: post})
	if err != nil {
		t.Fatal(err)
	}
	if committed != post {
		t.Fatalf("post_state_root mismatch: commit=%x simulate=%x", committed, post)
	}

	alice, _ := sp.BalanceOf("Alice")
	bob, _ := sp.BalanceOf("Bob")
	charlie, _ := sp.BalanceOf("Charlie")
	if alice != 50 || bob != 50 || charlie != 100 {
		t.Fatalf("want alice=50 bob=50 charlie=100, got alice=%d bob=%d charlie=%d", alice, bob, charlie)
	}
}
