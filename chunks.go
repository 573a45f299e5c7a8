// chunks.go implements the server side of chunked synchronization: a
// producer that hands out a store's chunks in order, chunk 0 being the trunk
// proof and every following chunk a leaf chunk bounded by the trunk's
// revealed keys. The single shared cursor makes production one pass over the
// store, which is also why chunks must be requested sequentially.
package merk

import (
	"errors"
	"fmt"

	"github.com/ItsFunny/merk/log"
	"github.com/ItsFunny/merk/proofs"
)

// ErrNonSequentialChunk is returned when chunks are requested out of order.
var ErrNonSequentialChunk = errors.New("merk: chunks must be requested sequentially")

// ChunkProducer generates the chunks of a store's tree on demand. The
// boundaries between leaf chunks are the keys of the KV nodes revealed in
// the trunk, in key order; the entry at each boundary key belongs to the
// trunk and is skipped between chunks.
type ChunkProducer struct {
	trunk      []proofs.Op
	boundaries [][]byte
	cursor     *Cursor
	index      int
	lg         *log.Logger
}

// NewChunkProducer creates a producer over the store's current tree.
// Returns ErrEmptyTree for an empty store.
func (m *Merk) NewChunkProducer() (*ChunkProducer, error) {
	walker, err := m.Walker()
	if err != nil {
		return nil, err
	}

	trunk, complete, err := proofs.CreateTrunkProof(walker)
	if err != nil {
		return nil, err
	}

	var boundaries [][]byte
	if !complete {
		for _, op := range trunk {
			if kv, ok := op.Node.(proofs.KVNode); ok && op.Type == proofs.OpPush {
				boundaries = append(boundaries, kv.Key)
			}
		}
	}

	return &ChunkProducer{
		trunk:      trunk,
		boundaries: boundaries,
		cursor:     m.NewCursor(),
		lg:         m.lg.Module("chunks"),
	}, nil
}

// Len returns the total number of chunks: the trunk plus one leaf chunk per
// boundary gap. A complete trunk is the only chunk.
func (p *ChunkProducer) Len() int {
	if len(p.boundaries) == 0 {
		return 1
	}
	return len(p.boundaries) + 2
}

// Index returns the index of the next chunk to be produced.
func (p *ChunkProducer) Index() int { return p.index }

// Chunk returns the chunk at the given index. Chunks must be requested in
// order starting from 0; the underlying cursor only moves forward.
func (p *ChunkProducer) Chunk(index int) ([]proofs.Op, error) {
	if index != p.index {
		return nil, fmt.Errorf("%w: requested %d, expected %d", ErrNonSequentialChunk, index, p.index)
	}
	if index >= p.Len() {
		return nil, fmt.Errorf("merk: chunk index %d out of range", index)
	}
	p.index++

	if index == 0 {
		p.lg.Debug("produced trunk chunk", "ops", len(p.trunk), "leaves", p.Len()-1)
		return p.trunk, nil
	}

	var endKey []byte
	if index-1 < len(p.boundaries) {
		endKey = p.boundaries[index-1]
	}
	chunk, err := proofs.GetNextChunk(p.cursor, endKey)
	if err != nil {
		return nil, err
	}
	p.lg.Debug("produced leaf chunk", "index", index, "ops", len(chunk))
	return chunk, nil
}

// Next returns the next chunk in sequence.
func (p *ChunkProducer) Next() ([]proofs.Op, error) {
	return p.Chunk(p.index)
}

// Close releases the producer's cursor.
func (p *ChunkProducer) Close() {
	p.cursor.Release()
}
