// walk.go implements fallible tree traversal. Children of a persisted tree
// are reference-only links; walking to one goes through a Source, whose
// fetch may fail. Every step therefore returns an explicit error that the
// caller must handle before descending further.
package tree

import "fmt"

// Source resolves a child link to its tree node, typically by reading and
// decoding a stored node. Fetch errors propagate verbatim to walkers.
type Source interface {
	Fetch(link *Link) (*Tree, error)
}

// Walker pairs a tree node with the Source used to resolve its children.
// Walkers are cheap values; each Walk returns a new walker over the child.
type Walker struct {
	tree   *Tree
	source Source
}

// NewWalker creates a walker over the given node.
func NewWalker(t *Tree, source Source) *Walker {
	return &Walker{tree: t, source: source}
}

// Tree returns the node this walker is positioned on.
func (w *Walker) Tree() *Tree { return w.tree }

// Walk descends to the left or right child. It returns nil if the child is
// absent, and an error if the child had to be fetched and the fetch failed.
func (w *Walker) Walk(left bool) (*Walker, error) {
	link := w.tree.Link(left)
	if link == nil {
		return nil, nil
	}
	child := link.Tree()
	if child == nil {
		fetched, err := w.source.Fetch(link)
		if err != nil {
			return nil, fmt.Errorf("tree: walk to child %x: %w", link.Key, err)
		}
		child = fetched
	}
	return &Walker{tree: child, source: w.source}, nil
}
