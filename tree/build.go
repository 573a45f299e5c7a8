// build.go constructs balanced trees from sorted key-value pairs. Insertion
// and rebalancing are out of scope for this package, so this is the way
// fixtures and freshly restored trees come into existence.
package tree

// KV is a key-value pair used when building trees.
type KV struct {
	Key   []byte
	Value []byte
}

// Build constructs a height-balanced tree from pairs sorted by key, choosing
// the midpoint of each range as the subtree root, and commits it. Returns
// nil for an empty slice.
func Build(pairs []KV) *Tree {
	t := build(pairs)
	if t != nil {
		t.Commit()
	}
	return t
}

func build(pairs []KV) *Tree {
	if len(pairs) == 0 {
		return nil
	}
	mid := len(pairs) / 2
	t := New(pairs[mid].Key, pairs[mid].Value)
	if left := build(pairs[:mid]); left != nil {
		t.Attach(true, left)
	}
	if right := build(pairs[mid+1:]); right != nil {
		t.Attach(false, right)
	}
	return t
}
