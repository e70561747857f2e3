package core

import (
	"path/filepath"
	"testing"
)

func TestKVStorePutGetDelete(t *testing.T) {
	kv, err := OpenKVStore(filepath.Join(t.TempDir(), "kv.db"), nil)
	if err != nil {
		t.Fatal(err)
	}
	defer kv.Close()

	if _, ok, _ := kv.Get("alice"); ok {
		t.Fatalf("unset key should not be found")
	}
	if err := kv.Put("alice", []byte{1, 2, 3}); err != nil {
		t.Fatal(err)
	}
	v, ok, err := kv.Get("alice")
	if err != nil || !ok {
		t.Fatalf("get after put: ok=%v err=%v", ok, err)
	}
	if len(v) != 3 || v[0] != 1 {
		t.Fatalf("unexpected value %v", v)
	}
	if err := kv.Delete("alice"); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := kv.Get("alice"); ok {
		t.Fatalf("deleted key should not be found")
	}
}

func TestKVStoreSnapshotIsolation(t *testing.T) {
	kv, err := OpenKVStore(filepath.Join(t.TempDir(), "kv.db"), nil)
	if err != nil {
		t.Fatal(err)
	}
	defer kv.Close()

	if err := kv.Put("alice", []byte{1}); err != nil {
		t.Fatal(err)
	}
	snap, err := kv.Snapshot()
	if err != nil {
		t.Fatal(err)
	}
	defer snap.Close()

	if err := kv.Put("alice", []byte{2}); err != nil {
		t.Fatal(err)
	}

	v, ok, err := snap.Get("alice")
	if err != nil || !ok || v[0] != 1 {
		t.Fatalf("snapshot should observe pre-write value, got %v ok=%v err=%v", v, ok, err)
	}
}
