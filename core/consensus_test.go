package core

import "testing"

func sampleTxs() []*Transaction {
	return []*Transaction{{From: "alice", To: "bob", Amount: 10, Kind: TxTransfer}}
}

func TestPoWRoundTrip(t *testing.T) {
	engine := NewPoWEngine(16)
	post := Hash{1, 2, 3}
	block := engine.Produce(sampleTxs(), "GENESIS", post)

	if !engine.Validate(block, Hash{}, post) {
		t.Fatalf("produced block should validate")
	}
	for i := 0; i < engine.prefixLen(); i++ {
		if block.Hash[i] != '0' {
			t.Fatalf("block hash %s missing leading-zero prefix of length %d", block.Hash, engine.prefixLen())
		}
	}

	tampered := *block
	tampered.Nonce++
	if engine.Validate(&tampered, Hash{}, post) {
		t.Fatalf("tampered nonce should fail validation")
	}

	tamperedRoot := *block
	if engine.Validate(&tamperedRoot, Hash{}, Hash{9, 9, 9}) {
		t.Fatalf("mismatched post root should fail validation")
	}

	tamperedPrev := *block
	tamperedPrev.PreviousHash = "other"
	if engine.Validate(&tamperedPrev, Hash{}, post) {
		t.Fatalf("tampered previous_hash should fail validation")
	}
}

func TestPoSRoundTrip(t *testing.T) {
	engine := NewPoSEngine(map[string]uint64{"v1": 10, "v2": 50, "v3": 20})
	post := Hash{4, 5, 6}
	block := engine.Produce(sampleTxs(), "GENESIS", post)

	if !engine.Validate(block, Hash{}, post) {
		t.Fatalf("produced block should validate")
	}
	if engine.proposer() != "v2" {
		t.Fatalf("want highest-stake validator v2, got %s", engine.proposer())
	}

	tampered := *block
	tampered.PreviousHash = "other"
	if engine.Validate(&tampered, Hash{}, post) {
		t.Fatalf("tampered previous_hash should fail validation")
	}
}
