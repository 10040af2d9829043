// (c) 2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package state implements world state as a Merkle-Patricia trie of
// accounts, each of which may itself own a storage trie. It is the
// concrete backend behind the capability.StateReader/StateWriter
// interfaces used during block execution and witness construction.
package state

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/luxfi/evmcore/core/types"
	"github.com/luxfi/evmcore/trie"
)

// CodeStore is the minimal byte-keyed capability StateDB needs to persist
// contract code, content-addressed by Keccak256(code). It is satisfied by
// capability.Store (a single-key/value Get/NewBatch pair is all that's
// used here).
type CodeStore interface {
	Get(ctx context.Context, key []byte) ([]byte, error)
	NewBatch() interface {
		Put(key, value []byte)
		Commit(ctx context.Context) error
	}
}

// codeKeyPrefix namespaces contract code within the shared code store so it
// does not collide with any other table sharing the same backing engine.
var codeKeyPrefix = []byte("code:")

func codeKey(hash common.Hash) []byte {
	return append(append([]byte{}, codeKeyPrefix...), hash.Bytes()...)
}

// StateDB is the world-state accessor: an account trie keyed by the raw
// 20-byte address, each leaf an RLP-encoded StateAccount, plus one storage
// trie per account keyed by the raw 32-byte slot. Neither key is hashed
// with Keccak256 before it is inserted.
type StateDB struct {
	store trie.NodeStore
	code  CodeStore
	accs  *trie.Trie

	mu      sync.Mutex
	storage map[common.Address]*trie.Trie
}

// New opens the account trie rooted at root. An empty root (trie.EmptyRootHash)
// yields a fresh, empty world state. code may be nil if the caller never
// touches contract code (e.g. pure account/storage tests).
func New(store trie.NodeStore, code CodeStore, root common.Hash) (*StateDB, error) {
	return &StateDB{
		store:   store,
		code:    code,
		accs:    trie.NewFromRoot(store, root),
		storage: make(map[common.Address]*trie.Trie),
	}, nil
}

func accountKey(addr common.Address) []byte {
	return addr.Bytes()
}

// GetAccount returns the account at addr, or nil if it does not exist.
func (s *StateDB) GetAccount(addr common.Address) (*types.StateAccount, error) {
	enc, err := s.accs.Get(accountKey(addr))
	if err != nil {
		return nil, err
	}
	if enc == nil {
		return nil, nil
	}
	return types.DecodeAccount(enc)
}

// PutAccount writes account at addr, creating or replacing it.
func (s *StateDB) PutAccount(addr common.Address, account *types.StateAccount) error {
	enc, err := account.Encode()
	if err != nil {
		return err
	}
	_, err = s.accs.Insert(accountKey(addr), enc)
	return err
}

// DeleteAccount removes the account at addr, per EIP-161 self-destruct /
// empty-account pruning.
func (s *StateDB) DeleteAccount(addr common.Address) error {
	_, err := s.accs.Remove(accountKey(addr))
	s.mu.Lock()
	delete(s.storage, addr)
	s.mu.Unlock()
	return err
}

func storageSlotKey(key common.Hash) []byte {
	return key.Bytes()
}

func (s *StateDB) storageTrie(addr common.Address) (*trie.Trie, error) {
	s.mu.Lock()
	if t, ok := s.storage[addr]; ok {
		s.mu.Unlock()
		return t, nil
	}
	s.mu.Unlock()

	acc, err := s.GetAccount(addr)
	if err != nil {
		return nil, err
	}
	root := trie.EmptyRootHash
	if acc != nil {
		root = acc.StorageRoot
	}
	t := trie.NewFromRoot(s.store, root)
	s.mu.Lock()
	s.storage[addr] = t
	s.mu.Unlock()
	return t, nil
}

// GetStorage returns the value stored at key under addr's storage trie,
// the zero hash if unset.
func (s *StateDB) GetStorage(addr common.Address, key common.Hash) (common.Hash, error) {
	t, err := s.storageTrie(addr)
	if err != nil {
		return common.Hash{}, err
	}
	v, err := t.Get(storageSlotKey(key))
	if err != nil {
		return common.Hash{}, err
	}
	if v == nil {
		return common.Hash{}, nil
	}
	return common.BytesToHash(v), nil
}

// PutStorage sets key to value under addr's storage trie and updates the
// account's StorageRoot to match. Writing the zero value deletes the key,
// matching Ethereum's sparse storage-trie semantics.
func (s *StateDB) PutStorage(addr common.Address, key, value common.Hash) error {
	t, err := s.storageTrie(addr)
	if err != nil {
		return err
	}
	var newRoot common.Hash
	if value == (common.Hash{}) {
		newRoot, err = t.Remove(storageSlotKey(key))
	} else {
		newRoot, err = t.Insert(storageSlotKey(key), value.Bytes())
	}
	if err != nil {
		return err
	}
	acc, err := s.GetAccount(addr)
	if err != nil {
		return err
	}
	if acc == nil {
		acc = types.NewEmptyAccount()
	}
	acc.StorageRoot = newRoot
	return s.PutAccount(addr, acc)
}

// GetCode returns the contract code with the given hash, or nil if absent.
func (s *StateDB) GetCode(codeHash common.Hash) ([]byte, error) {
	if codeHash == types.EmptyCodeHash || s.code == nil {
		return nil, nil
	}
	return s.code.Get(context.Background(), codeKey(codeHash))
}

// PutCode stores code content-addressed by its Keccak256 hash.
func (s *StateDB) PutCode(codeHash common.Hash, code []byte) error {
	if s.code == nil {
		return nil
	}
	b := s.code.NewBatch()
	b.Put(codeKey(codeHash), code)
	return b.Commit(context.Background())
}

// Commit flushes every dirty account and storage trie node to the backing
// NodeStore and returns the new account-trie root.
func (s *StateDB) Commit() (common.Hash, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.storage {
		if _, err := t.Commit(); err != nil {
			return common.Hash{}, err
		}
	}
	return s.accs.Commit()
}

// Root returns the current (uncommitted) account-trie root hash.
func (s *StateDB) Root() common.Hash {
	return s.accs.HashNoCommit()
}
