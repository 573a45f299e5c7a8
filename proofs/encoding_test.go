package proofs

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/ItsFunny/merk/tree"
)

func decodeAll(t *testing.T, data []byte) []Op {
	t.Helper()
	var ops []Op
	d := NewDecoder(data)
	for {
		op, err := d.Next()
		if err == io.EOF {
			return ops
		}
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		ops = append(ops, op)
	}
}

func TestEncodeDecodeRoundtrip(t *testing.T) {
	ops := []Op{
		Push(KVNode{Key: []byte("key"), Value: []byte("value")}),
		Push(KVHashNode{Hash: tree.KVHash([]byte("k"), []byte("v"))}),
		Parent(),
		Push(HashNode{Hash: tree.Hash{0xaa, 0xbb}}),
		Child(),
	}

	decoded := decodeAll(t, EncodeOps(ops))
	if len(decoded) != len(ops) {
		t.Fatalf("decoded %d ops, want %d", len(decoded), len(ops))
	}
	for i := range ops {
		if decoded[i].Type != ops[i].Type {
			t.Fatalf("op %d type = %d, want %d", i, decoded[i].Type, ops[i].Type)
		}
	}
	kv := decoded[0].Node.(KVNode)
	if !bytes.Equal(kv.Key, []byte("key")) || !bytes.Equal(kv.Value, []byte("value")) {
		t.Fatalf("decoded KV = %+v", kv)
	}
	if decoded[3].Node.(HashNode).Hash != (tree.Hash{0xaa, 0xbb}) {
		t.Fatal("decoded hash digest mismatch")
	}

	// Re-encoding must be bit-exact.
	if !bytes.Equal(EncodeOps(decoded), EncodeOps(ops)) {
		t.Fatal("re-encoding is not byte identical")
	}
}

func TestEncodeEmptyKVFrames(t *testing.T) {
	ops := []Op{Push(KVNode{Key: nil, Value: nil})}
	decoded := decodeAll(t, EncodeOps(ops))
	kv := decoded[0].Node.(KVNode)
	if len(kv.Key) != 0 || len(kv.Value) != 0 {
		t.Fatalf("decoded KV = %+v, want empty frames", kv)
	}
}

func TestDecoderUnknownTag(t *testing.T) {
	_, err := NewDecoder([]byte{0x7f}).Next()
	if !errors.Is(err, ErrInvalidEncoding) {
		t.Fatalf("err = %v, want ErrInvalidEncoding", err)
	}
}

func TestDecoderTruncated(t *testing.T) {
	full := EncodeOps([]Op{Push(KVNode{Key: []byte("key"), Value: []byte("value")})})
	for cut := 1; cut < len(full); cut++ {
		d := NewDecoder(full[:cut])
		_, err := d.Next()
		if !errors.Is(err, ErrInvalidEncoding) {
			t.Fatalf("cut %d: err = %v, want ErrInvalidEncoding", cut, err)
		}
	}

	digest := EncodeOps([]Op{Push(HashNode{Hash: tree.Hash{1}})})
	_, err := NewDecoder(digest[:10]).Next()
	if !errors.Is(err, ErrInvalidEncoding) {
		t.Fatalf("err = %v, want ErrInvalidEncoding", err)
	}
}

func TestDecoderFeedsVerifier(t *testing.T) {
	// A verifier consumes a received chunk straight from its wire form.
	pairs := make([]tree.KV, 7)
	for i := range pairs {
		pairs[i] = tree.KV{Key: []byte{byte(i)}, Value: []byte{byte(i)}}
	}
	root := tree.Build(pairs)

	ops, err := GetNextChunk(newMemCursor(root), nil)
	if err != nil {
		t.Fatalf("GetNextChunk: %v", err)
	}

	chunk, err := VerifyLeaf(NewDecoder(EncodeOps(ops)), root.Hash())
	if err != nil {
		t.Fatalf("VerifyLeaf: %v", err)
	}
	if counts := countNodeTypes(chunk); counts.kv != 7 {
		t.Fatalf("counts = %+v, want kv=7", counts)
	}
}

func TestDecoderStreamErrorAbortsExecution(t *testing.T) {
	data := EncodeOps([]Op{
		Push(KVNode{Key: []byte("a"), Value: nil}),
		Push(KVNode{Key: []byte("b"), Value: nil}),
		Parent(),
	})
	// Corrupt the tail so the last op fails to decode mid-execution.
	data = append(data[:len(data)-1], 0x7f)

	_, err := Execute(NewDecoder(data), false, acceptAll)
	if !errors.Is(err, ErrInvalidEncoding) {
		t.Fatalf("err = %v, want ErrInvalidEncoding", err)
	}
}
