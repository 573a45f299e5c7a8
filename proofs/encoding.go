// encoding.go implements the wire format for op sequences. A chunk is the
// exact byte artifact exchanged between synchronizing peers, so the framing
// is strict: every op is a tag byte followed by a fixed or length-prefixed
// payload, and a decoder rejects truncated or unknown frames.
//
//	0x01  Push(Hash)    32-byte digest
//	0x02  Push(KVHash)  32-byte digest
//	0x03  Push(KV)      uvarint key length | key | uvarint value length | value
//	0x10  Parent        no payload
//	0x11  Child         no payload
package proofs

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/ItsFunny/merk/tree"
)

// ErrInvalidEncoding is returned when an encoded op sequence cannot be
// decoded.
var ErrInvalidEncoding = errors.New("proofs: invalid op encoding")

const (
	tagPushHash   byte = 0x01
	tagPushKVHash byte = 0x02
	tagPushKV     byte = 0x03
	tagParent     byte = 0x10
	tagChild      byte = 0x11
)

// EncodeOps serializes an op sequence to its wire form.
func EncodeOps(ops []Op) []byte {
	var buf []byte
	for _, op := range ops {
		switch op.Type {
		case OpPush:
			switch n := op.Node.(type) {
			case HashNode:
				buf = append(buf, tagPushHash)
				buf = append(buf, n.Hash[:]...)
			case KVHashNode:
				buf = append(buf, tagPushKVHash)
				buf = append(buf, n.Hash[:]...)
			case KVNode:
				buf = append(buf, tagPushKV)
				buf = binary.AppendUvarint(buf, uint64(len(n.Key)))
				buf = append(buf, n.Key...)
				buf = binary.AppendUvarint(buf, uint64(len(n.Value)))
				buf = append(buf, n.Value...)
			}
		case OpParent:
			buf = append(buf, tagParent)
		case OpChild:
			buf = append(buf, tagChild)
		}
	}
	return buf
}

// Decoder decodes a wire-encoded op sequence. It implements OpStream, so a
// received chunk can be fed to a verifier directly; decoding errors surface
// through the stream and abort execution.
type Decoder struct {
	data []byte
	pos  int
}

// NewDecoder creates a Decoder over the given encoded bytes.
func NewDecoder(data []byte) *Decoder {
	return &Decoder{data: data}
}

// Next decodes and returns the next op, or io.EOF at a clean end of input.
func (d *Decoder) Next() (Op, error) {
	if d.pos >= len(d.data) {
		return Op{}, io.EOF
	}
	tag := d.data[d.pos]
	d.pos++

	switch tag {
	case tagParent:
		return Parent(), nil
	case tagChild:
		return Child(), nil
	case tagPushHash, tagPushKVHash:
		digest, err := d.read(tree.HashLength)
		if err != nil {
			return Op{}, err
		}
		h := tree.BytesToHash(digest)
		if tag == tagPushHash {
			return Push(HashNode{Hash: h}), nil
		}
		return Push(KVHashNode{Hash: h}), nil
	case tagPushKV:
		key, err := d.readFramed()
		if err != nil {
			return Op{}, err
		}
		value, err := d.readFramed()
		if err != nil {
			return Op{}, err
		}
		return Push(KVNode{Key: key, Value: value}), nil
	default:
		return Op{}, fmt.Errorf("%w: unknown op tag 0x%02x", ErrInvalidEncoding, tag)
	}
}

func (d *Decoder) read(n int) ([]byte, error) {
	if len(d.data)-d.pos < n {
		return nil, fmt.Errorf("%w: truncated op", ErrInvalidEncoding)
	}
	out := make([]byte, n)
	copy(out, d.data[d.pos:])
	d.pos += n
	return out, nil
}

func (d *Decoder) readFramed() ([]byte, error) {
	length, n := binary.Uvarint(d.data[d.pos:])
	if n <= 0 {
		return nil, fmt.Errorf("%w: bad length prefix", ErrInvalidEncoding)
	}
	d.pos += n
	if length > uint64(len(d.data)-d.pos) {
		return nil, fmt.Errorf("%w: truncated op", ErrInvalidEncoding)
	}
	return d.read(int(length))
}
