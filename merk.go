// Package merk is a Merkle AVL key-value store with chunked proofs for
// peer-to-peer state synchronization. The root package implements the
// persistent node store on top of goleveldb: nodes are persisted under their
// tree key, so iterating the store enumerates them in tree key order, which
// is exactly the order the leaf-chunk builder in the proofs package relies
// on.
package merk

import (
	"errors"
	"fmt"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/iterator"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/util"

	"github.com/ItsFunny/merk/log"
	"github.com/ItsFunny/merk/tree"
)

// Store errors.
var (
	// ErrEmptyTree is returned by operations that require a committed tree
	// on a store that has none.
	ErrEmptyTree = errors.New("merk: store has no tree")

	// ErrHashIntegrity is returned when a fetched node does not hash to the
	// value its parent link committed to.
	ErrHashIntegrity = errors.New("merk: fetched node hash mismatch")
)

// Storage key schema. Node entries share a prefix so that iterating them
// yields tree keys in order; the root pointer lives outside that range.
var (
	nodeKeyPrefix  = []byte("n")
	rootPointerKey = []byte("r")
)

func nodeKey(key []byte) []byte {
	return append(append(make([]byte, 0, len(nodeKeyPrefix)+len(key)), nodeKeyPrefix...), key...)
}

// Merk is a persistent tree store. It holds the root node in memory and
// resolves everything below it from the database on demand, which makes it a
// tree.Source for walkers.
type Merk struct {
	db   *leveldb.DB
	lg   *log.Logger
	root *tree.Tree
}

// Open opens (creating if necessary) a store at the given path and loads its
// root node if one was committed.
func Open(path string) (*Merk, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("merk: open %s: %w", path, err)
	}

	m := &Merk{db: db, lg: log.Default().Module("merk")}
	if err := m.loadRoot(); err != nil {
		db.Close()
		return nil, err
	}
	return m, nil
}

func (m *Merk) loadRoot() error {
	rootKey, err := m.db.Get(rootPointerKey, nil)
	if err == leveldb.ErrNotFound {
		return nil
	}
	if err != nil {
		return fmt.Errorf("merk: read root pointer: %w", err)
	}

	data, err := m.db.Get(nodeKey(rootKey), nil)
	if err != nil {
		return fmt.Errorf("merk: read root node %x: %w", rootKey, err)
	}
	root, err := tree.DecodeNode(rootKey, data)
	if err != nil {
		return err
	}
	m.root = root
	m.lg.Info("loaded tree", "root", fmt.Sprintf("%x", rootKey), "height", root.Height())
	return nil
}

// Close releases the underlying database.
func (m *Merk) Close() error {
	return m.db.Close()
}

// Tree returns the store's root node, or nil if no tree has been committed.
func (m *Merk) Tree() *tree.Tree { return m.root }

// RootHash returns the root node's hash, or tree.NullHash for an empty
// store.
func (m *Merk) RootHash() tree.Hash {
	if m.root == nil {
		return tree.NullHash
	}
	return m.root.Hash()
}

// CommitTree persists a committed tree: every node is written under its tree
// key and the root pointer is updated, in a single synced batch. The store's
// previous node entries are replaced wholesale.
func (m *Merk) CommitTree(t *tree.Tree) error {
	if t == nil {
		return ErrEmptyTree
	}
	t.Commit()

	batch := new(leveldb.Batch)
	it := m.db.NewIterator(util.BytesPrefix(nodeKeyPrefix), nil)
	for it.Next() {
		batch.Delete(append([]byte(nil), it.Key()...))
	}
	it.Release()
	if err := it.Error(); err != nil {
		return fmt.Errorf("merk: clear nodes: %w", err)
	}

	count := 0
	var persist func(t *tree.Tree)
	persist = func(t *tree.Tree) {
		batch.Put(nodeKey(t.Key()), tree.EncodeNode(t))
		count++
		for _, side := range []bool{true, false} {
			if link := t.Link(side); link != nil && link.Tree() != nil {
				persist(link.Tree())
			}
		}
	}
	persist(t)
	batch.Put(rootPointerKey, t.Key())

	if err := m.db.Write(batch, &opt.WriteOptions{Sync: true}); err != nil {
		return fmt.Errorf("merk: commit: %w", err)
	}
	m.root = t
	m.lg.Info("committed tree", "nodes", count, "height", t.Height())
	return nil
}

// Fetch resolves a child link by reading and decoding its node, checking the
// decoded node against the link's hash commitment. It implements
// tree.Source.
func (m *Merk) Fetch(link *tree.Link) (*tree.Tree, error) {
	data, err := m.db.Get(nodeKey(link.Key), nil)
	if err != nil {
		return nil, fmt.Errorf("merk: fetch node %x: %w", link.Key, err)
	}
	t, err := tree.DecodeNode(link.Key, data)
	if err != nil {
		return nil, err
	}
	if t.Hash() != link.Hash {
		return nil, fmt.Errorf("%w: node %x", ErrHashIntegrity, link.Key)
	}
	return t, nil
}

// Walker returns a walker over the store's tree, resolving children from the
// database. Returns ErrEmptyTree for an empty store.
func (m *Merk) Walker() (*tree.Walker, error) {
	if m.root == nil {
		return nil, ErrEmptyTree
	}
	return tree.NewWalker(m.root, m), nil
}

// Cursor iterates the store's node entries in ascending tree key order. It
// implements proofs.Cursor: the schema prefix is stripped and buffers are
// copied out of the underlying iterator.
type Cursor struct {
	it    iterator.Iterator
	valid bool
	key   []byte
	value []byte
}

// NewCursor returns a cursor positioned at the store's first node entry.
func (m *Merk) NewCursor() *Cursor {
	c := &Cursor{it: m.db.NewIterator(util.BytesPrefix(nodeKeyPrefix), nil)}
	c.update(c.it.First())
	return c
}

func (c *Cursor) update(valid bool) {
	c.valid = valid
	if !valid {
		c.key, c.value = nil, nil
		return
	}
	c.key = append(c.key[:0], c.it.Key()[len(nodeKeyPrefix):]...)
	c.value = append(c.value[:0], c.it.Value()...)
}

// Valid reports whether the cursor is positioned on a node entry.
func (c *Cursor) Valid() bool { return c.valid }

// Key returns the current entry's tree key. The buffer is owned by the
// cursor and valid until the next advance.
func (c *Cursor) Key() []byte { return c.key }

// Value returns the current entry's encoded node, under the same ownership
// rules as Key.
func (c *Cursor) Value() []byte { return c.value }

// Next advances to the following node entry.
func (c *Cursor) Next() { c.update(c.it.Next()) }

// Release frees the underlying iterator.
func (c *Cursor) Release() { c.it.Release() }
