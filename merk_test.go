package merk

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ItsFunny/merk/tree"
)

func buildPairs(n int) []tree.KV {
	pairs := make([]tree.KV, n)
	for i := range pairs {
		pairs[i] = tree.KV{
			Key:   []byte{byte(i)},
			Value: []byte(fmt.Sprintf("value-%d", i)),
		}
	}
	return pairs
}

func openStore(t *testing.T, path string) *Merk {
	t.Helper()
	m, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { m.Close() })
	return m
}

func TestOpenEmpty(t *testing.T) {
	m := openStore(t, t.TempDir())

	require.Nil(t, m.Tree())
	require.Equal(t, tree.NullHash, m.RootHash())

	_, err := m.Walker()
	require.ErrorIs(t, err, ErrEmptyTree)
}

func TestCommitAndReopen(t *testing.T) {
	path := t.TempDir()
	root := tree.Build(buildPairs(31))

	m := openStore(t, path)
	require.NoError(t, m.CommitTree(root))
	want := m.RootHash()
	require.NotEqual(t, tree.NullHash, want)
	require.NoError(t, m.Close())

	reopened := openStore(t, path)
	require.Equal(t, want, reopened.RootHash())
	require.Equal(t, 5, reopened.Tree().Height())
	require.Equal(t, []byte{15}, reopened.Tree().Key())
}

func TestCommitNil(t *testing.T) {
	m := openStore(t, t.TempDir())
	require.ErrorIs(t, m.CommitTree(nil), ErrEmptyTree)
}

func TestCommitReplacesNodes(t *testing.T) {
	m := openStore(t, t.TempDir())
	require.NoError(t, m.CommitTree(tree.Build(buildPairs(31))))
	require.NoError(t, m.CommitTree(tree.Build(buildPairs(3))))

	c := m.NewCursor()
	defer c.Release()
	count := 0
	for ; c.Valid(); c.Next() {
		count++
	}
	require.Equal(t, 3, count, "old node entries should be cleared on commit")
}

func TestWalkerFetchesFromStore(t *testing.T) {
	path := t.TempDir()
	m := openStore(t, path)
	require.NoError(t, m.CommitTree(tree.Build(buildPairs(31))))
	require.NoError(t, m.Close())

	// A reloaded root holds reference-only links, so every descent goes
	// through Fetch.
	reopened := openStore(t, path)
	w, err := reopened.Walker()
	require.NoError(t, err)

	for _, side := range []bool{true, false} {
		child, err := w.Walk(side)
		require.NoError(t, err)
		require.NotNil(t, child)
		require.Equal(t, w.Tree().Link(side).Hash, child.Tree().Hash())
	}
}

func TestFetchIntegrity(t *testing.T) {
	path := t.TempDir()
	m := openStore(t, path)
	require.NoError(t, m.CommitTree(tree.Build(buildPairs(31))))

	// Overwrite the left child's entry with a validly encoded but different
	// node, then force a fetch of it.
	leftKey := m.Tree().Link(true).Key
	bogus := tree.New(leftKey, []byte("tampered"))
	bogus.Commit()
	require.NoError(t, m.db.Put(nodeKey(leftKey), tree.EncodeNode(bogus), nil))
	require.NoError(t, m.Close())

	reopened := openStore(t, path)
	w, err := reopened.Walker()
	require.NoError(t, err)
	_, err = w.Walk(true)
	require.ErrorIs(t, err, ErrHashIntegrity)
}

func TestCursorOrder(t *testing.T) {
	m := openStore(t, t.TempDir())
	pairs := buildPairs(31)
	require.NoError(t, m.CommitTree(tree.Build(pairs)))

	c := m.NewCursor()
	defer c.Release()

	var seen int
	for ; c.Valid(); c.Next() {
		require.Less(t, seen, len(pairs))
		require.Equal(t, pairs[seen].Key, c.Key())

		node, err := tree.DecodeNode(c.Key(), c.Value())
		require.NoError(t, err)
		require.True(t, bytes.Equal(pairs[seen].Value, node.Value()))
		seen++
	}
	require.Equal(t, len(pairs), seen)
}

func TestCursorExhausted(t *testing.T) {
	m := openStore(t, t.TempDir())
	require.NoError(t, m.CommitTree(tree.Build(buildPairs(1))))

	c := m.NewCursor()
	defer c.Release()
	require.True(t, c.Valid())
	c.Next()
	require.False(t, c.Valid())
	require.Nil(t, c.Key())
	require.Nil(t, c.Value())
}
