// Package proofs implements merk's proof instruction model and the chunked
// proofs built on it: a stack-machine op vocabulary (Push/Parent/Child over
// Hash/KVHash/KV nodes), an executor that folds an op sequence into a
// reconstructed tree, a byte-exact wire codec, and the trunk and leaf chunk
// generators and verifiers used for peer-to-peer state synchronization.
package proofs

import (
	"io"

	"github.com/ItsFunny/merk/tree"
)

// Node is one proof assertion about a subtree. It is a tagged union with
// three variants: HashNode, KVHashNode and KVNode.
type Node interface {
	proofNode()
}

// HashNode is an opaque commitment to a subtree; the digest is used as-is as
// the subtree's hash contribution and nothing underneath is revealed.
type HashNode struct {
	Hash tree.Hash
}

// KVHashNode commits to the hash of a single key-value pair, hiding the key
// and value. It appears only on trunk height-proof spines.
type KVHashNode struct {
	Hash tree.Hash
}

// KVNode fully reveals a key-value pair; consumers recompute its hash
// contribution from the bytes.
type KVNode struct {
	Key   []byte
	Value []byte
}

func (HashNode) proofNode()   {}
func (KVHashNode) proofNode() {}
func (KVNode) proofNode()     {}

// OpType identifies a proof instruction.
type OpType byte

const (
	// OpPush pushes a new singleton subtree carrying the op's node.
	OpPush OpType = iota + 1
	// OpParent pops a parent, then a child, and attaches the child on the
	// parent's left.
	OpParent
	// OpChild pops a child, then a parent, and attaches the child on the
	// parent's right.
	OpChild
)

// Op is a single instruction in a proof. Node is set only for OpPush.
type Op struct {
	Type OpType
	Node Node
}

// Push returns a push op carrying the given node.
func Push(n Node) Op { return Op{Type: OpPush, Node: n} }

// Parent returns a parent-attach op.
func Parent() Op { return Op{Type: OpParent} }

// Child returns a child-attach op.
func Child() Op { return Op{Type: OpChild} }

// OpStream yields proof ops one at a time, ending with io.EOF. Errors from
// the underlying source (for example wire decoding) surface inline and abort
// execution.
type OpStream interface {
	Next() (Op, error)
}

type sliceStream struct {
	ops []Op
	pos int
}

// NewOpStream returns an OpStream over an op slice.
func NewOpStream(ops []Op) OpStream {
	return &sliceStream{ops: ops}
}

func (s *sliceStream) Next() (Op, error) {
	if s.pos >= len(s.ops) {
		return Op{}, io.EOF
	}
	op := s.ops[s.pos]
	s.pos++
	return op, nil
}
