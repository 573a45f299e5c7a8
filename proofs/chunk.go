// chunk.go implements chunked proofs: a tree is split into a trunk (a
// depth-bounded structural skeleton that also commits to the tree's height)
// and leaf chunks (complete subtrees over contiguous key ranges), which
// together reconstruct the full tree while letting every chunk be verified
// the moment it arrives.
//
// The trunk reveals nodes down to half the tree's height. The leftmost path
// below that boundary is committed with KVHash nodes (the height proof);
// every other subtree hanging off the trunk is committed with an opaque Hash
// node, which becomes the expected hash for a later leaf chunk.
package proofs

import (
	"bytes"
	"fmt"
	"math"

	"github.com/ItsFunny/merk/tree"
)

// minTrunkHeight is the smallest trunk depth worth abridging. Trees whose
// trunk height would be smaller are sent as a single complete chunk: all
// nodes revealed as KV, no leaf chunks to follow.
const minTrunkHeight = 2

// CreateTrunkProof walks the tree and produces its trunk proof. complete
// reports that the proof contains the entire tree (short trees), in which
// case no leaf chunks are needed.
//
// Fetch failures from the walker propagate; generation has no other failure
// mode.
func CreateTrunkProof(w *tree.Walker) (ops []Op, complete bool, err error) {
	trunkHeight, err := traverseForHeightProof(w, &ops, 1)
	if err != nil {
		return nil, false, err
	}

	if trunkHeight < minTrunkHeight {
		ops = ops[:0]
		if err := traverseForTrunk(w, &ops, math.MaxInt, true); err != nil {
			return nil, false, err
		}
		return ops, true, nil
	}

	if err := traverseForTrunk(w, &ops, trunkHeight, true); err != nil {
		return nil, false, err
	}
	return ops, false, nil
}

// traverseForHeightProof walks straight down the left-child chain, emitting
// (deepest first) a KVHash commitment for every spine node below the trunk
// boundary, each with its right subtree abridged to a Hash node. The deepest
// node's depth fixes the trunk height at half the spine length.
func traverseForHeightProof(w *tree.Walker, proof *[]Op, depth int) (int, error) {
	left, err := w.Walk(true)
	if err != nil {
		return 0, err
	}

	trunkHeight := depth / 2
	if left != nil {
		if trunkHeight, err = traverseForHeightProof(left, proof, depth+1); err != nil {
			return 0, err
		}
	}

	if depth > trunkHeight {
		*proof = append(*proof, Push(KVHashNode{Hash: w.Tree().KVHash()}))
		if left != nil {
			*proof = append(*proof, Parent())
		}
		if right := w.Tree().Link(false); right != nil {
			*proof = append(*proof, Push(HashNode{Hash: right.Hash}), Child())
		}
	}

	return trunkHeight, nil
}

// traverseForTrunk emits the trunk body: full binary recursion revealing KV
// nodes down to the frontier. Frontier nodes become Hash commitments, except
// on the leftmost path where the height proof has already committed them.
func traverseForTrunk(w *tree.Walker, proof *[]Op, remainingDepth int, isLeftmost bool) error {
	if remainingDepth == 0 {
		if isLeftmost {
			return nil
		}
		*proof = append(*proof, Push(HashNode{Hash: w.Tree().Hash()}))
		return nil
	}

	left, err := w.Walk(true)
	if err != nil {
		return err
	}
	if left != nil {
		if err := traverseForTrunk(left, proof, remainingDepth-1, isLeftmost); err != nil {
			return err
		}
	}

	t := w.Tree()
	*proof = append(*proof, Push(KVNode{Key: t.Key(), Value: t.Value()}))
	if left != nil {
		*proof = append(*proof, Parent())
	}

	right, err := w.Walk(false)
	if err != nil {
		return err
	}
	if right != nil {
		if err := traverseForTrunk(right, proof, remainingDepth-1, false); err != nil {
			return err
		}
		*proof = append(*proof, Child())
	}

	return nil
}

// Cursor is a forward iterator over persisted tree nodes in ascending key
// order, positioned by the caller before first use. Key and Value return
// buffers owned by the cursor, valid only until Next.
//
// GetNextChunk relies on an invariant of the backing encoding that is
// assumed rather than checked: a node's left subtree is enumerated, in key
// order, strictly before the node's own entry, and its right subtree
// strictly after. A store violating this produces an incorrect chunk, not an
// error.
type Cursor interface {
	Valid() bool
	Key() []byte
	Value() []byte
	Next()
}

// GetNextChunk builds the op sequence for the complete subtree spanning the
// keys from the cursor's position up to (but excluding) endKey, or to
// exhaustion if endKey is nil. The cursor is advanced past every consumed
// entry and past the endKey entry itself if one matched, so calls can be
// chained back-to-back.
//
// The chunk cannot be built by tree-shaped recursion, since the cursor moves
// in sorted-key order. Instead each node's KV is pushed as it streams by; a
// left link resolves to an immediate Parent (its subtree was fully emitted
// already), while right links are held on a pending stack and closed with
// Child ops once the scan passes beyond them.
func GetNextChunk(cur Cursor, endKey []byte) ([]Op, error) {
	chunk := make([]Op, 0, 512)
	pending := make([][]byte, 0, 32)

	for cur.Valid() {
		key := cur.Key()
		if endKey != nil && bytes.Equal(key, endKey) {
			break
		}

		node, err := tree.DecodeNode(key, cur.Value())
		if err != nil {
			return nil, fmt.Errorf("proofs: chunk node %x: %w", key, err)
		}

		chunk = append(chunk, Push(KVNode{Key: node.Key(), Value: node.Value()}))
		if node.Link(true) != nil {
			chunk = append(chunk, Parent())
		}

		if right := node.Link(false); right != nil {
			pending = append(pending, append([]byte(nil), right.Key...))
		} else {
			for len(pending) > 0 {
				if bytes.Compare(node.Key(), pending[len(pending)-1]) < 0 {
					break
				}
				pending = pending[:len(pending)-1]
				chunk = append(chunk, Child())
			}
		}

		cur.Next()
	}

	// Skip the endKey entry so the next chunk starts exactly past it.
	if cur.Valid() {
		cur.Next()
	}

	return chunk, nil
}

// VerifyTrunk executes a trunk proof and checks its structure: the height
// proof along the left-child chain must be free of opaque Hash nodes, and
// the trunk must be complete down to half the proven height, with KV nodes
// above the frontier and the correct abridged kind at it. Short trunks
// (below the minimum trunk height) must instead reveal the entire tree as KV
// nodes.
//
// Returns the reconstructed tree and the proven height. The caller is
// expected to compare the height and root hash against independently known
// values and to request a leaf chunk for each Hash frontier node.
func VerifyTrunk(ops OpStream) (*ProofTree, int, error) {
	kvOnly := true
	t, err := Execute(ops, false, func(n Node) error {
		if _, ok := n.(KVNode); !ok {
			kvOnly = false
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}

	height, err := verifyHeightProof(t)
	if err != nil {
		return nil, 0, err
	}

	trunkHeight := height / 2
	if trunkHeight < minTrunkHeight {
		if !kvOnly {
			return nil, 0, fmt.Errorf("%w: short trunk must reveal every node", ErrUnexpectedNode)
		}
	} else if err := verifyCompleteness(t, trunkHeight, true); err != nil {
		return nil, 0, err
	}

	return t, height, nil
}

// verifyHeightProof measures the left-child chain. Opaque Hash nodes are
// illegal on the spine: they could hide arbitrary extra depth.
func verifyHeightProof(t *ProofTree) (int, error) {
	child := t.Child(true)
	if child == nil {
		return 1, nil
	}
	if _, ok := child.Node.(HashNode); ok {
		return 0, fmt.Errorf("%w: height proof must contain only KV and KVHash nodes", ErrUnexpectedNode)
	}
	height, err := verifyHeightProof(child)
	if err != nil {
		return 0, err
	}
	return height + 1, nil
}

// verifyCompleteness descends both children to the trunk frontier: every
// node above it must be a KV node with both children present; at the
// frontier, the node reached by always going left must be KVHash (the height
// proof's commitment) and every other node must be an opaque Hash.
func verifyCompleteness(t *ProofTree, remainingDepth int, leftmost bool) error {
	if remainingDepth > 0 {
		if _, ok := t.Node.(KVNode); !ok {
			return fmt.Errorf("%w: trunk inner nodes must contain keys and values", ErrUnexpectedNode)
		}
		for _, side := range []bool{true, false} {
			child := t.Child(side)
			if child == nil {
				return ErrIncompleteTrunk
			}
			if err := verifyCompleteness(child, remainingDepth-1, side && leftmost); err != nil {
				return err
			}
		}
		return nil
	}

	if leftmost {
		if _, ok := t.Node.(KVHashNode); !ok {
			return fmt.Errorf("%w: leftmost trunk frontier node must be a KVHash node", ErrUnexpectedNode)
		}
		return nil
	}
	if _, ok := t.Node.(HashNode); !ok {
		return fmt.Errorf("%w: trunk frontier nodes must be Hash nodes", ErrUnexpectedNode)
	}
	return nil
}

// VerifyLeaf executes a leaf chunk, requiring every node to be fully
// revealed, and checks the reconstructed root hash against the expected
// value (normally taken from a Hash frontier node of an already verified
// trunk). Returns the reconstructed subtree; traversing it yields every
// key-value pair in the chunk.
func VerifyLeaf(ops OpStream, expected tree.Hash) (*ProofTree, error) {
	t, err := Execute(ops, false, func(n Node) error {
		if _, ok := n.(KVNode); !ok {
			return fmt.Errorf("%w: leaf chunks must contain only KV nodes", ErrUnexpectedNode)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if actual := t.Hash(); actual != expected {
		return nil, &HashMismatchError{Expected: expected, Actual: actual}
	}
	return t, nil
}

// LeafHashes returns the expected root hash of every leaf chunk a verified
// trunk calls for, in chunk order. Walking the trunk in key order, each
// abridged subtree (the height-proof spine on the far left, Hash frontier
// nodes everywhere else) spans exactly the key range of one leaf chunk.
//
// A complete trunk (all KV) yields no hashes: there is nothing left to
// fetch.
func LeafHashes(t *ProofTree) []tree.Hash {
	var hashes []tree.Hash
	var walk func(*ProofTree)
	walk = func(t *ProofTree) {
		if _, ok := t.Node.(KVNode); !ok {
			hashes = append(hashes, t.Hash())
			return
		}
		if left := t.Child(true); left != nil {
			walk(left)
		}
		if right := t.Child(false); right != nil {
			walk(right)
		}
	}
	walk(t)
	return hashes
}
