package core

import (
	"crypto/ed25519"
	"errors"
	"testing"
)

func TestTransactionSignAndVerify(t *testing.T) {
	_, priv, _ := ed25519.GenerateKey(nil)
	tx := &Transaction{From: "alice", Nonce: 0, Kind: TxTransfer, To: "bob", Amount: 10}
	if err := tx.Sign(priv); err != nil {
		t.Fatal(err)
	}
	if err := tx.VerifySignature(); err != nil {
		t.Fatalf("untouched signed tx should verify: %v", err)
	}
}

func TestTransactionBootstrapBypass(t *testing.T) {
	tx := &Transaction{From: "alice", Nonce: 0, Kind: TxTransfer, To: "bob", Amount: 10}
	if err := tx.VerifySignature(); err != nil {
		t.Fatalf("empty signature/public key should bypass verification: %v", err)
	}
}

func TestTransactionTamperedSignatureFails(t *testing.T) {
	_, priv, _ := ed25519.GenerateKey(nil)
	tx := &Transaction{From: "alice", Nonce: 0, Kind: TxTransfer, To: "bob", Amount: 10}
	if err := tx.Sign(priv); err != nil {
		t.Fatal(err)
	}
	tx.Signature[0] ^= 0xff
	if err := tx.VerifySignature(); !errors.Is(err, ErrBadSignature) {
		t.Fatalf("want ErrBadSignature, got %v", err)
	}
}

func TestTransactionIdentityStableUnderFieldOrder(t *testing.T) {
	tx1 := &Transaction{From: "alice", Nonce: 1, GasPrice: 5, Kind: TxTransfer, To: "bob", Amount: 10}
	tx2 := &Transaction{Amount: 10, To: "bob", Kind: TxTransfer, GasPrice: 5, Nonce: 1, From: "alice"}
	if tx1.Hash() != tx2.Hash() {
		t.Fatalf("identical transactions must hash equal")
	}
	tx2.Amount = 11
	if tx1.Hash() == tx2.Hash() {
		t.Fatalf("differing payloads must hash differently")
	}
}
