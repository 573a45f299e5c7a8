// hash.go defines the digest type and the two hash combinators used by the
// tree: the key-value hash committing to a single pair, and the node hash
// combining a key-value hash with the hashes of both child subtrees.
package tree

import (
	"encoding/binary"

	"golang.org/x/crypto/sha3"
)

// HashLength is the byte length of all digests in the tree.
const HashLength = 32

// Hash is a Keccak-256 digest of a node or key-value pair.
type Hash [HashLength]byte

// NullHash is the hash contribution of an absent child subtree.
var NullHash = Hash{}

// Bytes returns the hash as a byte slice.
func (h Hash) Bytes() []byte { return h[:] }

// BytesToHash converts a byte slice to a Hash, truncating or zero-padding
// as needed.
func BytesToHash(b []byte) Hash {
	var h Hash
	copy(h[:], b)
	return h
}

// KVHash commits to a single key-value pair. The key is length-prefixed so
// that (key, value) boundaries are unambiguous.
func KVHash(key, value []byte) Hash {
	var lenBuf [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(lenBuf[:], uint64(len(key)))

	h := sha3.NewLegacyKeccak256()
	h.Write(lenBuf[:n])
	h.Write(key)
	h.Write(value)

	var out Hash
	h.Sum(out[:0])
	return out
}

// NodeHash combines a node's key-value hash with the hashes of its child
// subtrees. Absent children are passed as NullHash.
func NodeHash(kv, left, right Hash) Hash {
	h := sha3.NewLegacyKeccak256()
	h.Write(kv[:])
	h.Write(left[:])
	h.Write(right[:])

	var out Hash
	h.Sum(out[:0])
	return out
}
