// (c) 2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package capability defines the narrow interfaces through which the
// execution core reaches out to the host environment: persistence,
// cryptography, EVM execution, wall-clock time, and network broadcast.
// Every concrete backend (pebble-backed store, native crypto, a real EVM,
// libp2p gossip) is wired in behind these interfaces so the core packages
// never import a storage engine or a cryptography library directly.
package capability

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/luxfi/evmcore/core/types"
)

// Store is the key/value persistence capability. Implementations must
// provide atomic batch semantics: either every Put/Delete in a Batch is
// durable after Commit, or none are.
type Store interface {
	Get(ctx context.Context, key []byte) ([]byte, error)
	Has(ctx context.Context, key []byte) (bool, error)
	NewBatch() Batch
	NewIterator(ctx context.Context, prefix []byte) (Iterator, error)
	Close() error
}

// Batch accumulates writes for atomic application.
type Batch interface {
	Put(key, value []byte)
	Delete(key []byte)
	Commit(ctx context.Context) error
	Reset()
}

// Iterator walks keys under a prefix in lexicographic order.
type Iterator interface {
	Next() bool
	Key() []byte
	Value() []byte
	Error() error
	Close() error
}

// Crypto is the cryptographic primitives capability: hashing, signature
// recovery, and the precompile-grade primitives the witness and EVM layers
// need (pairings, KZG, hash functions used by precompiles).
type Crypto interface {
	Keccak256(data ...[]byte) common.Hash

	// RecoverSender recovers the signing address from a transaction
	// signing hash and an Ethereum-style (v, r, s) signature. v is the
	// recovery id already normalized to {0, 1}.
	RecoverSender(sigHash common.Hash, v byte, r, s *big.Int) (common.Address, error)

	// VerifySecp256r1 verifies an EIP-7212 P256 signature.
	VerifySecp256r1(hash []byte, r, s, x, y *big.Int) bool

	// Ripemd160 and Blake2F back the corresponding precompiles.
	Ripemd160(data []byte) []byte
	Blake2F(rounds uint32, h [8]uint64, m [16]uint64, t [2]uint64, final bool) [8]uint64

	// Bn256Add/Bn256ScalarMul/Bn256Pairing back the alt_bn128 precompiles.
	Bn256Add(x1, y1, x2, y2 *big.Int) (*big.Int, *big.Int, error)
	Bn256ScalarMul(x1, y1 *big.Int, scalar *big.Int) (*big.Int, *big.Int, error)
	Bn256Pairing(pairs []Bn254Pair) (bool, error)

	// KZGVerify backs the point-evaluation precompile (EIP-4844).
	KZGVerify(commitment, z, y [48]byte, proof [48]byte) error
}

// Bn254Pair is one (G1, G2) operand pair for the alt_bn128 pairing-check
// precompile. G2's coordinates follow the EVM wire encoding order
// (x_im, x_re, y_im, y_re), i.e. each field element's imaginary part
// precedes its real part.
type Bn254Pair struct {
	G1X, G1Y                   *big.Int
	G2XIm, G2XRe, G2YIm, G2YRe *big.Int
}

// Evm executes a single block against a prepared world state.
type Evm interface {
	// ExecuteBlock runs every transaction in block, reading world state
	// through state and writing updates through writer, returning the
	// resulting receipts and the new state root. It must be deterministic and side-effect free
	// beyond the StateReader/StateWriter it is given.
	ExecuteBlock(ctx context.Context, block *types.Block, state StateReader, writer StateWriter) (*ExecutionResult, error)
}

// ExecutionResult is the outcome of running a block through the Evm
// capability.
type ExecutionResult struct {
	Receipts    types.Receipts
	GasUsed     uint64
	StateRoot   common.Hash
	BlobGasUsed uint64

	// Requests holds each EIP-7685 request the block produced, type-prefixed
	// and ABI-packed per its request type, in execution order. Nil on
	// pre-Prague chains.
	Requests [][]byte
}

// StateReader exposes read access to world state during execution and
// witness construction.
type StateReader interface {
	GetAccount(addr common.Address) (*types.StateAccount, error)
	GetStorage(addr common.Address, key common.Hash) (common.Hash, error)
	GetCode(codeHash common.Hash) ([]byte, error)
	GetBlockHash(number uint64) (common.Hash, error)
}

// StateWriter exposes write access for account/storage updates produced
// during execution.
type StateWriter interface {
	PutAccount(addr common.Address, account *types.StateAccount) error
	DeleteAccount(addr common.Address) error
	PutStorage(addr common.Address, key, value common.Hash) error
	PutCode(codeHash common.Hash, code []byte) error
}

// Clock supplies wall-clock time, indirected so tests can inject a fake.
type Clock interface {
	Now() int64 // unix seconds
}

// Network is the broadcast capability used to gossip newly admitted
// transactions and blocks to peers.
type Network interface {
	BroadcastTx(ctx context.Context, tx *types.Transaction) error
	BroadcastBlock(ctx context.Context, block *types.Block) error
}
