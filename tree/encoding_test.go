package tree

import (
	"bytes"
	"errors"
	"testing"
)

func TestEncodeDecodeLeaf(t *testing.T) {
	leaf := New([]byte("key"), []byte("value"))
	leaf.Commit()

	decoded, err := DecodeNode([]byte("key"), EncodeNode(leaf))
	if err != nil {
		t.Fatalf("DecodeNode: %v", err)
	}
	if !bytes.Equal(decoded.Value(), []byte("value")) {
		t.Fatalf("value = %q", decoded.Value())
	}
	if decoded.Link(true) != nil || decoded.Link(false) != nil {
		t.Fatal("leaf should decode without links")
	}
	if decoded.Hash() != leaf.Hash() {
		t.Fatal("decoded node hash should match original")
	}
}

func TestEncodeDecodeWithLinks(t *testing.T) {
	root := New([]byte("b"), []byte("2")).
		Attach(true, New([]byte("a"), []byte("1"))).
		Attach(false, New([]byte("c"), []byte("3")))
	root.Commit()

	decoded, err := DecodeNode(root.Key(), EncodeNode(root))
	if err != nil {
		t.Fatalf("DecodeNode: %v", err)
	}

	for _, side := range []bool{true, false} {
		orig, got := root.Link(side), decoded.Link(side)
		if got == nil {
			t.Fatalf("side %v: link missing", side)
		}
		if !bytes.Equal(got.Key, orig.Key) || got.Hash != orig.Hash || got.Height != orig.Height {
			t.Fatalf("side %v: link = %+v, want %+v", side, got, orig)
		}
		if got.Tree() != nil {
			t.Fatalf("side %v: decoded link should be reference-only", side)
		}
	}
	if decoded.Hash() != root.Hash() {
		t.Fatal("decoded node hash should match original")
	}
	if decoded.Height() != root.Height() {
		t.Fatal("decoded height should match original")
	}
}

func TestEncodeDecodeSingleLink(t *testing.T) {
	root := New([]byte("b"), nil).Attach(false, New([]byte("c"), nil))
	root.Commit()

	decoded, err := DecodeNode(root.Key(), EncodeNode(root))
	if err != nil {
		t.Fatalf("DecodeNode: %v", err)
	}
	if decoded.Link(true) != nil {
		t.Fatal("left link should be absent")
	}
	if decoded.Link(false) == nil {
		t.Fatal("right link should be present")
	}
	if len(decoded.Value()) != 0 {
		t.Fatalf("value = %q, want empty", decoded.Value())
	}
}

func TestDecodeCorrupt(t *testing.T) {
	root := New([]byte("b"), []byte("2")).Attach(true, New([]byte("a"), []byte("1")))
	root.Commit()
	full := EncodeNode(root)

	for _, data := range [][]byte{
		nil,
		full[:1],
		full[:len(full)-len(root.Value())-1],
	} {
		if _, err := DecodeNode([]byte("b"), data); !errors.Is(err, ErrCorruptNode) {
			t.Fatalf("data len %d: err = %v, want ErrCorruptNode", len(data), err)
		}
	}
}

func TestDecodeCopiesInput(t *testing.T) {
	leaf := New([]byte("key"), []byte("value"))
	leaf.Commit()
	data := EncodeNode(leaf)

	decoded, err := DecodeNode([]byte("key"), data)
	if err != nil {
		t.Fatalf("DecodeNode: %v", err)
	}
	for i := range data {
		data[i] = 0xff
	}
	if !bytes.Equal(decoded.Value(), []byte("value")) {
		t.Fatal("decoded node should not alias the input buffer")
	}
}
