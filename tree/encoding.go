// encoding.go implements the storage encoding of a tree node. A node is
// persisted under its own key; the stored bytes carry the child links
// followed by the node's value:
//
//	flags      1 byte, bit 0 = has left link, bit 1 = has right link
//	per link   uvarint key length | key | 32-byte hash | uvarint height
//	value      remaining bytes
//
// The encoding is positional, so decode failures are reported as soon as a
// frame cannot be read in full.
package tree

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrCorruptNode is returned when a stored node's encoding cannot be decoded.
var ErrCorruptNode = errors.New("tree: corrupt node encoding")

const (
	flagHasLeft  = 1 << 0
	flagHasRight = 1 << 1
)

// EncodeNode serializes a committed node's links and value for storage. The
// node's own key is not included; it is the storage key.
func EncodeNode(t *Tree) []byte {
	var flags byte
	if t.left != nil {
		flags |= flagHasLeft
	}
	if t.right != nil {
		flags |= flagHasRight
	}

	buf := make([]byte, 1, 1+2*(HashLength+2*binary.MaxVarintLen64)+len(t.value))
	buf[0] = flags
	buf = appendLink(buf, t.left)
	buf = appendLink(buf, t.right)
	return append(buf, t.value...)
}

func appendLink(buf []byte, l *Link) []byte {
	if l == nil {
		return buf
	}
	buf = binary.AppendUvarint(buf, uint64(len(l.Key)))
	buf = append(buf, l.Key...)
	buf = append(buf, l.Hash[:]...)
	return binary.AppendUvarint(buf, uint64(l.Height))
}

// DecodeNode decodes a stored node. The returned tree carries reference-only
// links; children are resolved through a Source when walked.
func DecodeNode(key, data []byte) (*Tree, error) {
	if len(data) < 1 {
		return nil, fmt.Errorf("%w: missing flags byte", ErrCorruptNode)
	}
	flags, rest := data[0], data[1:]

	var left, right *Link
	var err error
	if flags&flagHasLeft != 0 {
		if left, rest, err = readLink(rest); err != nil {
			return nil, err
		}
	}
	if flags&flagHasRight != 0 {
		if right, rest, err = readLink(rest); err != nil {
			return nil, err
		}
	}

	t := New(copyBytes(key), copyBytes(rest))
	t.left = left
	t.right = right
	return t, nil
}

func readLink(data []byte) (*Link, []byte, error) {
	keyLen, n := binary.Uvarint(data)
	if n <= 0 {
		return nil, nil, fmt.Errorf("%w: bad link key length", ErrCorruptNode)
	}
	data = data[n:]
	if keyLen > uint64(len(data)) || uint64(len(data))-keyLen < HashLength {
		return nil, nil, fmt.Errorf("%w: truncated link", ErrCorruptNode)
	}

	link := &Link{Key: copyBytes(data[:keyLen])}
	data = data[keyLen:]
	copy(link.Hash[:], data[:HashLength])
	data = data[HashLength:]

	height, n := binary.Uvarint(data)
	if n <= 0 {
		return nil, nil, fmt.Errorf("%w: bad link height", ErrCorruptNode)
	}
	link.Height = int(height)
	return link, data[n:], nil
}

func copyBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	cp := make([]byte, len(b))
	copy(cp, b)
	return cp
}
