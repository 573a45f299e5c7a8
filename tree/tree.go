// Package tree implements the node model of a Merkle AVL key-value tree:
// nodes holding a key-value pair and up to two child links, content hashing,
// a storage encoding, and a fallible walker for traversing trees whose
// children may need to be fetched from a backing store.
//
// The package only reads and hashes trees; insertion and rebalancing are out
// of scope and trees are built either by decoding stored nodes or with Build.
package tree

// Link references a child subtree by its root node's key, hash and height.
// A link may additionally carry the child in memory (for trees built with
// Attach); persisted links are reference-only and are resolved via a Source.
type Link struct {
	Key    []byte
	Hash   Hash
	Height int

	tree *Tree // attached in-memory child, nil for reference-only links
}

// Tree returns the attached in-memory child, or nil if the link is
// reference-only and must be fetched.
func (l *Link) Tree() *Tree { return l.tree }

// Tree is a single node of the Merkle AVL tree together with links to its
// child subtrees.
type Tree struct {
	key    []byte
	value  []byte
	kvHash Hash
	left   *Link
	right  *Link

	hash     Hash
	hashed   bool
	height   int
	heighted bool
}

// New creates a childless tree node for the given key-value pair.
func New(key, value []byte) *Tree {
	return &Tree{
		key:    key,
		value:  value,
		kvHash: KVHash(key, value),
	}
}

// Key returns the node's key.
func (t *Tree) Key() []byte { return t.key }

// Value returns the node's value.
func (t *Tree) Value() []byte { return t.value }

// KVHash returns the hash committing to the node's key-value pair.
func (t *Tree) KVHash() Hash { return t.kvHash }

// Link returns the node's left or right child link, or nil if the child is
// absent.
func (t *Tree) Link(left bool) *Link {
	if left {
		return t.left
	}
	return t.right
}

// Attach adds a child subtree on the given side and returns the node for
// chaining. It panics if the slot is already occupied: callers build each
// tree exactly once.
func (t *Tree) Attach(left bool, child *Tree) *Tree {
	if t.Link(left) != nil {
		panic("tree: child slot already occupied")
	}
	if child == nil {
		return t
	}
	link := &Link{Key: child.key, tree: child}
	if left {
		t.left = link
	} else {
		t.right = link
	}
	t.invalidate()
	return t
}

// Commit finalizes an in-memory tree built with Attach: it computes hashes
// and heights bottom-up and fills in every link's reference fields. A
// committed tree can be persisted and walked without further computation.
func (t *Tree) Commit() {
	for _, link := range []*Link{t.left, t.right} {
		if link == nil {
			continue
		}
		if link.tree != nil {
			link.tree.Commit()
			link.Hash = link.tree.Hash()
			link.Height = link.tree.Height()
		}
	}
	t.invalidate()
	t.Hash()
	t.Height()
}

// Hash returns the node's hash: its key-value hash combined with the hashes
// of both child links (NullHash for absent children). The result is cached;
// links must be final (committed or decoded) before the first call.
func (t *Tree) Hash() Hash {
	if !t.hashed {
		t.hash = NodeHash(t.kvHash, linkHash(t.left), linkHash(t.right))
		t.hashed = true
	}
	return t.hash
}

// Height returns the height of the subtree rooted at this node. A childless
// node has height 1.
func (t *Tree) Height() int {
	if !t.heighted {
		h := 0
		if t.left != nil && t.left.Height > h {
			h = t.left.Height
		}
		if t.right != nil && t.right.Height > h {
			h = t.right.Height
		}
		t.height = h + 1
		t.heighted = true
	}
	return t.height
}

func (t *Tree) invalidate() {
	t.hashed = false
	t.heighted = false
}

func linkHash(l *Link) Hash {
	if l == nil {
		return NullHash
	}
	return l.Hash
}
