// (c) 2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package trie

import (
	"sync"

	"github.com/cockroachdb/pebble"
	"github.com/ethereum/go-ethereum/common"
)

// NodeStore is the content-addressed backing store for trie nodes: point
// reads by Keccak hash, and bulk batched writes on commit. The trie never
// writes during lookup.
type NodeStore interface {
	Get(hash common.Hash) ([]byte, bool)
	NewBatch() NodeBatch
}

// NodeBatch accumulates dirty nodes for a single commit.
type NodeBatch interface {
	Put(hash common.Hash, enc []byte)
	Commit() error
}

// MemNodeStore is an in-memory NodeStore, used by tests and by the
// execution-witness guest state where nodes never need to outlive the
// process.
type MemNodeStore struct {
	mu    sync.RWMutex
	nodes map[common.Hash][]byte
}

func NewMemNodeStore() *MemNodeStore {
	return &MemNodeStore{nodes: make(map[common.Hash][]byte)}
}

func (m *MemNodeStore) Get(hash common.Hash) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	enc, ok := m.nodes[hash]
	return enc, ok
}

func (m *MemNodeStore) NewBatch() NodeBatch {
	return &memBatch{store: m}
}

type memBatch struct {
	store *MemNodeStore
	pairs []kv
}

type kv struct {
	hash common.Hash
	enc  []byte
}

func (b *memBatch) Put(hash common.Hash, enc []byte) {
	b.pairs = append(b.pairs, kv{hash, enc})
}

func (b *memBatch) Commit() error {
	b.store.mu.Lock()
	defer b.store.mu.Unlock()
	for _, p := range b.pairs {
		b.store.nodes[p.hash] = p.enc
	}
	return nil
}

// nodesKeyPrefix namespaces trie node keys within the shared pebble
// keyspace (the same engine backs the rollup store, see l2/rollupstore).
var nodesKeyPrefix = []byte("tn:")

// PebbleNodeStore persists trie nodes in a cockroachdb/pebble instance —
// the embedded KV engine chosen for this module's default Store/NodeStore
// backing (see SPEC_FULL.md domain stack).
type PebbleNodeStore struct {
	db *pebble.DB
}

func NewPebbleNodeStore(db *pebble.DB) *PebbleNodeStore {
	return &PebbleNodeStore{db: db}
}

func nodeKey(hash common.Hash) []byte {
	return append(append([]byte{}, nodesKeyPrefix...), hash.Bytes()...)
}

func (p *PebbleNodeStore) Get(hash common.Hash) ([]byte, bool) {
	v, closer, err := p.db.Get(nodeKey(hash))
	if err != nil {
		return nil, false
	}
	out := make([]byte, len(v))
	copy(out, v)
	closer.Close()
	return out, true
}

func (p *PebbleNodeStore) NewBatch() NodeBatch {
	return &pebbleBatch{batch: p.db.NewBatch()}
}

type pebbleBatch struct {
	batch *pebble.Batch
}

func (b *pebbleBatch) Put(hash common.Hash, enc []byte) {
	_ = b.batch.Set(nodeKey(hash), enc, nil)
}

func (b *pebbleBatch) Commit() error {
	return b.batch.Commit(pebble.Sync)
}
