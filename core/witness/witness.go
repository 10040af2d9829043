// (c) 2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package witness implements stateless execution witnesses: a
// self-contained bundle of trie nodes, ancestor headers, and code that lets
// an EVM re-execute a block range without a live Store, for zkVM/TEE guest
// execution.
package witness

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/luxfi/evmcore/core/types"
	"github.com/luxfi/evmcore/trie"
)

// ExecutionWitness is the wire-format bundle shipped to a stateless
// executor: enough trie nodes, headers, and code to answer every state
// query the referenced block range's execution will make.
type ExecutionWitness struct {
	FirstBlockNumber  uint64
	StateTrieRootNode []byte // RLP of the root node (embedded or resolvable via Keys)
	Keys              [][]byte // additional trie node RLPs, indexed by their own hash
	StorageTrieRoots  map[common.Address][]byte
	AncestorHeaders   []*types.Header
	CodesHashed       map[common.Hash][]byte
}

// AccountUpdate is one pending account mutation applied after block
// execution, either a full replacement or a removal.
type AccountUpdate struct {
	Address      common.Address
	Removed      bool
	Account      *types.StateAccount
	StorageDiffs map[common.Hash]common.Hash // key -> new value; zero value deletes
}

// GuestProgramState is the rebuilt, in-memory view an EVM runs against when
// fed an ExecutionWitness: no external Store is consulted.
type GuestProgramState struct {
	store *trie.MemNodeStore
	state *trie.Trie

	storageTries      map[common.Address]*trie.Trie
	verifiedStorage    map[common.Address]bool
	accountKeccakCache map[common.Address]common.Hash

	blockHeaders map[uint64]*types.Header
	blockHashes  map[uint64]common.Hash

	codes map[common.Hash][]byte

	parentStateRoot common.Hash
}

// ErrUnverifiableStorageTrie is returned when a storage trie's hash does
// not match the account's recorded storage root: a hard error, since an
// incorrect substitution here would silently corrupt execution.
type ErrUnverifiableStorageTrie struct {
	Address common.Address
}

func (e *ErrUnverifiableStorageTrie) Error() string {
	return fmt.Sprintf("witness: storage trie for %s does not verify against account storage root", e.Address)
}

// ErrFirstInvalidBlockHash reports the first ancestor header whose
// parent_hash does not match the hash of the preceding header in the
// supplied chain.
type ErrFirstInvalidBlockHash struct {
	BlockNumber uint64
}

func (e *ErrFirstInvalidBlockHash) Error() string {
	return fmt.Sprintf("witness: block %d's parent_hash does not match the hash of the preceding header", e.BlockNumber)
}

// Build rebuilds a GuestProgramState from w: seeds the state trie, indexes
// ancestor headers (validating hash-chain continuity), and verifies the
// state trie's hash matches the state_root of the block preceding
// FirstBlockNumber.
func Build(w *ExecutionWitness) (*GuestProgramState, error) {
	store := trie.NewMemNodeStore()
	batch := store.NewBatch()
	for _, enc := range w.Keys {
		h := trie.HashOfEncodedNode(enc)
		batch.Put(h, enc)
	}
	if err := batch.Commit(); err != nil {
		return nil, err
	}

	stateTrie, err := trie.NewFromRootNodeRLP(store, w.StateTrieRootNode)
	if err != nil {
		return nil, fmt.Errorf("witness: decode state trie root: %w", err)
	}

	g := &GuestProgramState{
		store:              store,
		state:              stateTrie,
		storageTries:       make(map[common.Address]*trie.Trie),
		verifiedStorage:    make(map[common.Address]bool),
		accountKeccakCache: make(map[common.Address]common.Hash),
		blockHeaders:       make(map[uint64]*types.Header),
		blockHashes:        make(map[uint64]common.Hash),
		codes:              w.CodesHashed,
	}
	if g.codes == nil {
		g.codes = make(map[common.Hash][]byte)
	}

	if err := g.initializeBlockHeaderHashes(w.AncestorHeaders); err != nil {
		return nil, err
	}

	// Block 0 has no parent: the seeded state trie IS the genesis state,
	// so there is nothing external to check it against.
	if w.FirstBlockNumber == 0 {
		g.parentStateRoot = g.state.HashNoCommit()
	} else {
		parent, ok := g.blockHeaders[w.FirstBlockNumber-1]
		if !ok {
			return nil, fmt.Errorf("witness: missing parent header for block %d", w.FirstBlockNumber)
		}
		if g.state.HashNoCommit() != parent.Root {
			return nil, fmt.Errorf("witness: seeded state trie hash does not match parent state root")
		}
		g.parentStateRoot = parent.Root
	}

	for addr, enc := range w.StorageTrieRoots {
		t, err := trie.NewFromRootNodeRLP(store, enc)
		if err != nil {
			return nil, fmt.Errorf("witness: decode storage trie for %s: %w", addr, err)
		}
		g.storageTries[addr] = t
	}

	return g, nil
}

// initializeBlockHeaderHashes indexes headers by number and hash,
// enforcing parent-hash continuity. The first window where
// next.ParentHash != hash(curr) identifies the offending block.
func (g *GuestProgramState) initializeBlockHeaderHashes(headers []*types.Header) error {
	for i, h := range headers {
		hash := h.Hash()
		if existing, ok := g.blockHashes[h.Number.Uint64()]; ok && existing != hash {
			return fmt.Errorf("witness: conflicting recomputed hash for block %d", h.Number.Uint64())
		}
		g.blockHeaders[h.Number.Uint64()] = h
		g.blockHashes[h.Number.Uint64()] = hash
		if i > 0 {
			prev := headers[i-1]
			if h.ParentHash != prev.Hash() {
				return &ErrFirstInvalidBlockHash{BlockNumber: h.Number.Uint64()}
			}
		}
	}
	return nil
}

// GetAccountState returns the account at addr, or nil if absent.
func (g *GuestProgramState) GetAccountState(addr common.Address) (*types.StateAccount, error) {
	enc, err := g.state.Get(addr.Bytes())
	if err != nil {
		return nil, err
	}
	if enc == nil {
		return nil, nil
	}
	return types.DecodeAccount(enc)
}

// GetStorageSlot returns the value at key in addr's storage trie,
// verifying the trie against the account's recorded storage root exactly
// once per address (memoized).
func (g *GuestProgramState) GetStorageSlot(addr common.Address, key common.Hash) (common.Hash, error) {
	t, ok := g.storageTries[addr]
	if !ok {
		// No storage trie in the witness is only sound for an account whose
		// storage is empty; anything else cannot be verified.
		acc, err := g.GetAccountState(addr)
		if err != nil {
			return common.Hash{}, err
		}
		if acc != nil && acc.StorageRoot != trie.EmptyRootHash {
			return common.Hash{}, &ErrUnverifiableStorageTrie{Address: addr}
		}
		return common.Hash{}, nil
	}
	if !g.verifiedStorage[addr] {
		acc, err := g.GetAccountState(addr)
		if err != nil {
			return common.Hash{}, err
		}
		if acc == nil || t.HashNoCommit() != acc.StorageRoot {
			return common.Hash{}, &ErrUnverifiableStorageTrie{Address: addr}
		}
		g.verifiedStorage[addr] = true
	}
	v, err := t.Get(key.Bytes())
	if err != nil {
		return common.Hash{}, err
	}
	if v == nil {
		return common.Hash{}, nil
	}
	return common.BytesToHash(v), nil
}

// GetBlockHash looks up a cached ancestor block hash by number.
func (g *GuestProgramState) GetBlockHash(number uint64) (common.Hash, error) {
	h, ok := g.blockHashes[number]
	if !ok {
		return common.Hash{}, fmt.Errorf("witness: no header for block %d", number)
	}
	return h, nil
}

// GetAccountCode returns the code for hash. A missing entry returns an
// empty slice rather than an error: witnesses may be pruned of code for
// paths the execution does not actually touch, and an incorrect
// substitution is still caught by the final state-root check.
func (g *GuestProgramState) GetAccountCode(hash common.Hash) []byte {
	if hash == types.EmptyCodeHash {
		return nil
	}
	return g.codes[hash]
}

// ApplyAccountUpdates applies a batch of post-execution account/storage
// mutations. Per update, storage insertions/changes are applied before
// zero-value deletions, since deleting first could collapse a branch node
// that a subsequent insert still needs to route through.
func (g *GuestProgramState) ApplyAccountUpdates(updates []AccountUpdate) (common.Hash, error) {
	for _, u := range updates {
		if u.Removed {
			if _, err := g.state.Remove(u.Address.Bytes()); err != nil {
				return common.Hash{}, err
			}
			delete(g.storageTries, u.Address)
			continue
		}

		t, ok := g.storageTries[u.Address]
		if !ok {
			t = trie.New(g.store)
			g.storageTries[u.Address] = t
		}

		var inserts, deletes []common.Hash
		for k, v := range u.StorageDiffs {
			if v == (common.Hash{}) {
				deletes = append(deletes, k)
			} else {
				inserts = append(inserts, k)
			}
		}
		for _, k := range inserts {
			if _, err := t.Insert(k.Bytes(), u.StorageDiffs[k].Bytes()); err != nil {
				return common.Hash{}, err
			}
		}
		for _, k := range deletes {
			if _, err := t.Remove(k.Bytes()); err != nil {
				return common.Hash{}, err
			}
		}

		u.Account.StorageRoot = t.HashNoCommit()
		enc, err := u.Account.Encode()
		if err != nil {
			return common.Hash{}, err
		}
		if _, err := g.state.Insert(u.Address.Bytes(), enc); err != nil {
			return common.Hash{}, err
		}
	}
	return g.state.HashNoCommit(), nil
}
