// (c) 2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package types

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"
	"golang.org/x/crypto/sha3"
)

// EmptyCodeHash is Keccak256(nil), the code hash of an account with no code.
var EmptyCodeHash = keccak256Hash(nil)

// EmptyRootHash is Keccak256(RLP("")), the storage root of an account with
// an empty storage trie.
var EmptyRootHash = keccak256Hash([]byte{0x80})

func keccak256Hash(b []byte) common.Hash {
	h := sha3.NewLegacyKeccak256()
	h.Write(b)
	var out common.Hash
	h.Sum(out[:0])
	return out
}

// StateAccount is the consensus encoding of an account as stored at a leaf
// of the state trie: [nonce, balance, storage_root, code_hash].
type StateAccount struct {
	Nonce       uint64
	Balance     *big.Int
	StorageRoot common.Hash
	CodeHash    []byte
}

// NewEmptyAccount returns the zero-value account (nonce 0, balance 0, empty
// storage trie, empty code) that every address implicitly has until first
// touched.
func NewEmptyAccount() *StateAccount {
	return &StateAccount{
		Balance:     new(big.Int),
		StorageRoot: EmptyRootHash,
		CodeHash:    EmptyCodeHash.Bytes(),
	}
}

// IsEmpty reports whether the account satisfies EIP-161 "empty account"
// semantics: zero nonce, zero balance, no code.
func (a *StateAccount) IsEmpty() bool {
	return a.Nonce == 0 && a.Balance.Sign() == 0 && common.BytesToHash(a.CodeHash) == EmptyCodeHash
}

// Encode returns the RLP encoding stored at the account's trie leaf.
func (a *StateAccount) Encode() ([]byte, error) {
	return rlp.EncodeToBytes([]interface{}{a.Nonce, a.Balance, a.StorageRoot, a.CodeHash})
}

// DecodeAccount parses the RLP-encoded leaf value of a state trie account.
func DecodeAccount(enc []byte) (*StateAccount, error) {
	var raw struct {
		Nonce       uint64
		Balance     *big.Int
		StorageRoot common.Hash
		CodeHash    []byte
	}
	if err := rlp.DecodeBytes(enc, &raw); err != nil {
		return nil, err
	}
	return &StateAccount{
		Nonce:       raw.Nonce,
		Balance:     raw.Balance,
		StorageRoot: raw.StorageRoot,
		CodeHash:    raw.CodeHash,
	}, nil
}
