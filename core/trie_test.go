package core

import "testing"

func TestTrieRootDeterministicRegardlessOfInsertionOrder(t *testing.T) {
	t1 := NewTrie()
	t1.Insert([]byte("alice"), []byte{1})
	t1.Insert([]byte("bob"), []byte{2})
	t1.Insert([]byte("albert"), []byte{3})

	t2 := NewTrie()
	t2.Insert([]byte("albert"), []byte{3})
	t2.Insert([]byte("bob"), []byte{2})
	t2.Insert([]byte("alice"), []byte{1})

	if t1.RootHash() != t2.RootHash() {
		t.Fatalf("root hash depends on insertion order")
	}
}

func TestTrieCloneIsIndependentlyMutable(t *testing.T) {
	orig := NewTrie()
	orig.Insert([]byte("alice"), []byte{1})
	origRoot := orig.RootHash()

	clone := orig.Clone()
	clone.Insert([]byte("bob"), []byte{2})

	if orig.RootHash() != origRoot {
		t.Fatalf("mutating the clone must not affect the original")
	}
	if clone.RootHash() == origRoot {
		t.Fatalf("clone should diverge after mutation")
	}

	v, ok := orig.Get([]byte("bob"))
	if ok {
		t.Fatalf("original trie must not observe clone's mutation, got %v", v)
	}
}

func TestTrieGetRoundTrip(t *testing.T) {
	tr := NewTrie()
	tr.Insert([]byte("key1"), []byte("value1"))
	tr.Insert([]byte("key2"), []byte("value2"))

	v, ok := tr.Get([]byte("key1"))
	if !ok || string(v) != "value1" {
		t.Fatalf("want value1, got %q ok=%v", v, ok)
	}
	if _, ok := tr.Get([]byte("missing")); ok {
		t.Fatalf("missing key should not be found")
	}
}
