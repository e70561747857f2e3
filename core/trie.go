package core

import (
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/crypto/sha3"
)

// nibbles splits a byte key into its hex nibble sequence, the key encoding
// the standard Ethereum-style radix trie operates over.
func nibbles(key []byte) []byte {
	out := make([]byte, 0, len(key)*2)
	for _, b := range key {
		out = append(out, b>>4, b&0x0f)
	}
	return out
}

type nodeKind uint8

const (
	nodeLeaf nodeKind = iota
	nodeExtension
	nodeBranch
)

// node is a single MPT node. Only the fields relevant to Kind are populated.
// Nodes are treated as immutable once hashed; mutation produces a new node
// (copy-on-write), letting clone() share unmodified subtrees.
type node struct {
	kind nodeKind

	// leaf / extension
	path  []byte
	value []byte // leaf: stored value. extension: unused.
	child *node  // extension: next node.

	// branch
	children [16]*node
	branchV  []byte // optional value terminating at this branch
}

func (n *node) clone() *node {
	if n == nil {
		return nil
	}
	c := *n
	return &c
}

// Trie is an authenticated map from variable-length byte keys to byte
// values: the standard branch(16-way+value)/extension(shared-nibble
// run)/leaf radix trie, node-hashed with SHA3-256. An LRU cache memoizes
// node hashes across clone()s so a mostly-unchanged trie doesn't
// re-hash unchanged subtrees on every root_hash() call.
type Trie struct {
	mu    sync.Mutex
	root  *node
	cache *lru.Cache[string, []byte]
}

// NewTrie returns an empty trie.
func NewTrie() *Trie {
	c, _ := lru.New[string, []byte](4096)
	return &Trie{cache: c}
}

// Insert sets key→value, replacing any prior value for key.
func (t *Trie) Insert(key, value []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.root = insert(t.root, nibbles(key), value)
}

// Get returns the value stored at key, if any.
func (t *Trie) Get(key []byte) ([]byte, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return get(t.root, nibbles(key))
}

// Clone returns an independently mutable copy of the trie. The copy shares
// unmodified subtrees with the original (copy-on-write): only nodes on a
// path later mutated are ever copied. The node-encoding cache is shared with
// the parent (it is itself safe for concurrent use, keyed by node pointer,
// and nodes are never mutated in place) so a clone that changes only a
// handful of keys still gets cache hits for every subtree it didn't touch,
// instead of re-hashing the whole reachable node set from scratch.
func (t *Trie) Clone() *Trie {
	t.mu.Lock()
	defer t.mu.Unlock()
	return &Trie{root: t.root, cache: t.cache}
}

// RootHash returns the 32-byte SHA3-256 root commitment of the trie's
// current content. Deterministic in key-set content, independent of
// insertion order.
func (t *Trie) RootHash() Hash {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.root == nil {
		return sha3.Sum256(nil)
	}
	return Hash(sha3.Sum256(t.encode(t.root)))
}

func get(n *node, path []byte) ([]byte, bool) {
	if n == nil {
		return nil, false
	}
	switch n.kind {
	case nodeLeaf:
		if nibbleEqual(n.path, path) {
			return n.value, true
		}
		return nil, false
	case nodeExtension:
		if len(path) < len(n.path) || !nibbleEqual(n.path, path[:len(n.path)]) {
			return nil, false
		}
		return get(n.child, path[len(n.path):])
	case nodeBranch:
		if len(path) == 0 {
			if n.branchV != nil {
				return n.branchV, true
			}
			return nil, false
		}
		return get(n.children[path[0]], path[1:])
	}
	return nil, false
}

func insert(n *node, path []byte, value []byte) *node {
	if n == nil {
		return &node{kind: nodeLeaf, path: append([]byte(nil), path...), value: value}
	}
	switch n.kind {
	case nodeLeaf:
		return insertIntoLeaf(n, path, value)
	case nodeExtension:
		return insertIntoExtension(n, path, value)
	case nodeBranch:
		return insertIntoBranch(n, path, value)
	}
	return n
}

func insertIntoLeaf(n *node, path []byte, value []byte) *node {
	if nibbleEqual(n.path, path) {
		return &node{kind: nodeLeaf, path: n.path, value: value}
	}
	common := commonPrefixLen(n.path, path)
	branch := &node{kind: nodeBranch}
	placeLeafRemainder(branch, n.path[common:], n.value)
	placeLeafRemainder(branch, path[common:], value)
	return wrapExtension(path[:common], branch)
}

func placeLeafRemainder(branch *node, rem []byte, value []byte) {
	if len(rem) == 0 {
		branch.branchV = value
		return
	}
	idx := rem[0]
	leaf := &node{kind: nodeLeaf, path: append([]byte(nil), rem[1:]...), value: value}
	if existing := branch.children[idx]; existing != nil {
		branch.children[idx] = insert(existing, rem[1:], value)
		return
	}
	branch.children[idx] = leaf
}

func insertIntoExtension(n *node, path []byte, value []byte) *node {
	common := commonPrefixLen(n.path, path)
	if common == len(n.path) {
		newChild := insert(n.child, path[common:], value)
		return wrapExtension(n.path, newChild)
	}
	branch := &node{kind: nodeBranch}
	placeExtensionRemainder(branch, n.path[common:], n.child)
	placeLeafRemainder(branch, path[common:], value)
	return wrapExtension(path[:common], branch)
}

func placeExtensionRemainder(branch *node, rem []byte, child *node) {
	if len(rem) == 0 {
		for i := 0; i < 16; i++ {
			branch.children[i] = child.children[i]
		}
		branch.branchV = child.branchV
		return
	}
	idx := rem[0]
	branch.children[idx] = wrapExtension(rem[1:], child)
}

func insertIntoBranch(n *node, path []byte, value []byte) *node {
	b := n.clone()
	if len(path) == 0 {
		b.branchV = value
		return b
	}
	idx := path[0]
	b.children[idx] = insert(b.children[idx], path[1:], value)
	return b
}

// wrapExtension builds an extension node over prefix→child, collapsing to
// child directly when prefix is empty.
func wrapExtension(prefix []byte, child *node) *node {
	if len(prefix) == 0 {
		return child
	}
	return &node{kind: nodeExtension, path: append([]byte(nil), prefix...), child: child}
}

func nibbleEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func commonPrefixLen(a, b []byte) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	i := 0
	for i < n && a[i] == b[i] {
		i++
	}
	return i
}

// encode produces the canonical structural encoding of a node; child
// hashes come from hashOf, whose LRU cache (keyed by node pointer) makes
// repeated hashing of unchanged subtrees across clones cheap.
func (t *Trie) encode(n *node) []byte {
	if n == nil {
		return nil
	}
	switch n.kind {
	case nodeLeaf:
		buf := append([]byte{byte(nodeLeaf)}, n.path...)
		buf = append(buf, 0xff)
		buf = append(buf, n.value...)
		return buf
	case nodeExtension:
		buf := append([]byte{byte(nodeExtension)}, n.path...)
		buf = append(buf, 0xff)
		buf = append(buf, t.hashOf(n.child)...)
		return buf
	case nodeBranch:
		buf := []byte{byte(nodeBranch)}
		for i := 0; i < 16; i++ {
			buf = append(buf, t.hashOf(n.children[i])...)
		}
		buf = append(buf, 0xff)
		buf = append(buf, n.branchV...)
		return buf
	}
	return nil
}

// hashOf returns the SHA3-256 hash of a child subtree's canonical encoding,
// using the LRU cache when the child pointer was already hashed.
func (t *Trie) hashOf(n *node) []byte {
	if n == nil {
		return make([]byte, 32)
	}
	key := nodePtrKey(n)
	if v, ok := t.cache.Get(key); ok {
		return v
	}
	h := sha3.Sum256(t.encode(n))
	t.cache.Add(key, h[:])
	return h[:]
}

// nodePtrKey derives a stable cache key from a node's address. Nodes are
// never mutated in place (insert always returns a fresh node on the
// modified path), so pointer identity is a valid proxy for content identity.
func nodePtrKey(n *node) string {
	return fmt.Sprintf("%p", n)
}
