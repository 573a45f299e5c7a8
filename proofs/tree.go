// tree.go defines the tree reconstructed by executing a proof. Each node
// owns at most one left and one right subtree exclusively; the whole tree is
// acyclic and discarded after inspection unless the caller keeps it to
// harvest revealed key-value pairs.
package proofs

import "github.com/ItsFunny/merk/tree"

// ProofTree is a node of the tree reconstructed from a proof: the
// originating proof Node plus owned child subtrees.
type ProofTree struct {
	Node  Node
	Left  *ProofTree
	Right *ProofTree

	hash   tree.Hash
	hashed bool
}

// Child returns the left or right subtree, or nil if absent.
func (t *ProofTree) Child(left bool) *ProofTree {
	if left {
		return t.Left
	}
	return t.Right
}

// Hash returns the node's derived hash: a HashNode's digest is used as-is,
// while KV and KVHash nodes combine their pair hash with the hashes of the
// present children (absent children contribute NullHash). The result is
// memoized; the subtree must not be mutated afterwards.
func (t *ProofTree) Hash() tree.Hash {
	if t.hashed {
		return t.hash
	}
	switch n := t.Node.(type) {
	case HashNode:
		t.hash = n.Hash
	case KVHashNode:
		t.hash = tree.NodeHash(n.Hash, childHash(t.Left), childHash(t.Right))
	case KVNode:
		t.hash = tree.NodeHash(tree.KVHash(n.Key, n.Value), childHash(t.Left), childHash(t.Right))
	}
	t.hashed = true
	return t.hash
}

func childHash(c *ProofTree) tree.Hash {
	if c == nil {
		return tree.NullHash
	}
	return c.Hash()
}

// Visit calls fn for this node and every descendant, children after their
// parent, left before right.
func (t *ProofTree) Visit(fn func(Node)) {
	fn(t.Node)
	if t.Left != nil {
		t.Left.Visit(fn)
	}
	if t.Right != nil {
		t.Right.Visit(fn)
	}
}

// KeyValues returns the revealed key-value pairs in the subtree in ascending
// key order (in-order traversal). Abridged nodes contribute nothing.
func (t *ProofTree) KeyValues() []tree.KV {
	var pairs []tree.KV
	var walk func(*ProofTree)
	walk = func(t *ProofTree) {
		if t == nil {
			return
		}
		walk(t.Left)
		if kv, ok := t.Node.(KVNode); ok {
			pairs = append(pairs, tree.KV{Key: kv.Key, Value: kv.Value})
		}
		walk(t.Right)
	}
	walk(t)
	return pairs
}
