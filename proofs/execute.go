// execute.go implements the proof stack machine: ops are folded bottom-up
// into a ProofTree, validating every pushed node through a caller-supplied
// callback and failing fast on the first malformed instruction.
package proofs

import (
	"errors"
	"fmt"
	"io"

	"github.com/ItsFunny/merk/tree"
)

// Proof execution and verification errors.
var (
	// ErrMalformedProof is returned on stack underflow, double child
	// attachment, or when execution does not end with exactly one stack item.
	ErrMalformedProof = errors.New("proofs: malformed proof")

	// ErrUnexpectedNode is returned when a node kind is not legal at its
	// position: an abridged node in a leaf chunk, a Hash node on a height
	// proof spine, or a wrong trunk frontier kind.
	ErrUnexpectedNode = errors.New("proofs: unexpected node kind")

	// ErrIncompleteTrunk is returned when a trunk proof is missing a node
	// above the frontier.
	ErrIncompleteTrunk = errors.New("proofs: trunk is missing expected nodes")
)

// HashMismatchError is returned when a leaf chunk's reconstructed root hash
// differs from the expected hash supplied by the caller.
type HashMismatchError struct {
	Expected tree.Hash
	Actual   tree.Hash
}

func (e *HashMismatchError) Error() string {
	return fmt.Sprintf("proofs: leaf chunk hash mismatch: expected %x, got %x", e.Expected, e.Actual)
}

// Execute runs an op sequence through the stack machine and returns the
// reconstructed tree. validate is invoked on every pushed node and its error
// aborts execution. With collapse set, each attached subtree is folded into
// its hash commitment, keeping only the digest.
//
// Errors from the stream, from validation, and from malformed stack usage
// all abort immediately; execution must leave exactly one stack item.
func Execute(ops OpStream, collapse bool, validate func(Node) error) (*ProofTree, error) {
	var stack []*ProofTree

	pop := func() *ProofTree {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		return top
	}

	for {
		op, err := ops.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		switch op.Type {
		case OpPush:
			if op.Node == nil {
				return nil, fmt.Errorf("%w: push without node", ErrMalformedProof)
			}
			if err := validate(op.Node); err != nil {
				return nil, err
			}
			stack = append(stack, &ProofTree{Node: op.Node})

		case OpParent, OpChild:
			if len(stack) < 2 {
				return nil, fmt.Errorf("%w: attach op with %d stack items", ErrMalformedProof, len(stack))
			}
			var parent, child *ProofTree
			left := op.Type == OpParent
			if left {
				parent, child = pop(), pop()
			} else {
				child, parent = pop(), pop()
			}
			if parent.Child(left) != nil {
				return nil, fmt.Errorf("%w: node already has a child on that side", ErrMalformedProof)
			}
			if collapse {
				child = &ProofTree{Node: HashNode{Hash: child.Hash()}}
			}
			if left {
				parent.Left = child
			} else {
				parent.Right = child
			}
			stack = append(stack, parent)

		default:
			return nil, fmt.Errorf("%w: unknown op type %d", ErrMalformedProof, op.Type)
		}
	}

	if len(stack) != 1 {
		return nil, fmt.Errorf("%w: execution ended with %d stack items, want 1", ErrMalformedProof, len(stack))
	}
	return stack[0], nil
}
