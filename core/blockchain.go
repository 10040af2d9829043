// (c) 2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package core implements the block-processing orchestrator: the single
// place that ties header validation, EVM execution, and state persistence
// together into AddBlock/AddBlocksInBatch.
package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"

	"github.com/luxfi/evmcore/capability"
	"github.com/luxfi/evmcore/consensus"
	"github.com/luxfi/evmcore/core/types"
	"github.com/luxfi/evmcore/log"
	"github.com/luxfi/evmcore/metrics"
	"github.com/luxfi/evmcore/params"
	"github.com/luxfi/evmcore/trie"
)

// ErrParentNotFound is returned when a block's parent header cannot be
// located. The caller may stage the block and retry once the parent
// arrives (e.g. via sync), so this is recoverable rather than fatal.
var ErrParentNotFound = errors.New("core: parent header not found")

// ErrParentStateNotFound indicates the parent header exists but its state
// root cannot be opened, which is not recoverable for the current request.
var ErrParentStateNotFound = errors.New("core: parent state not found")

// Store is the persistence surface the orchestrator needs beyond raw world
// state: header/block/receipt storage and the canonical chain index.
type Store interface {
	GetHeaderByHash(hash common.Hash) (*types.Header, error)
	GetHeaderByNumber(number uint64) (*types.Header, error)
	PutPendingBlock(block *types.Block) error
	PutBlock(block *types.Block) error
	PutReceipts(blockHash common.Hash, receipts types.Receipts) error
	PutCanonicalHash(number uint64, hash common.Hash) error
	LatestBlockNumber() (uint64, error)
}

// StateOpener opens a StateReader/StateWriter pair rooted at a given state
// root, e.g. core/state.New wrapped to additionally satisfy GetBlockHash.
type StateOpener interface {
	OpenState(root common.Hash) (StateView, error)
}

// StateView is a state handle that can both serve execution reads/writes
// and be committed to a new root.
type StateView interface {
	capability.StateReader
	capability.StateWriter
	// Root returns the account-trie root reflecting every write applied so
	// far, without persisting anything, so a block's state root can be
	// checked before its state is committed.
	Root() common.Hash
	Commit() (common.Hash, error)
}

// InvalidBlockKind identifies which validation check failed, matching the
// taxonomy callers switch on.
type InvalidBlockKind string

const (
	KindHeaderFields               InvalidBlockKind = "HeaderFields"
	KindStateRootMismatch          InvalidBlockKind = "StateRootMismatch"
	KindReceiptsRootMismatch       InvalidBlockKind = "ReceiptsRootMismatch"
	KindRequestsHashMismatch       InvalidBlockKind = "RequestsHashMismatch"
	KindGasUsedMismatch            InvalidBlockKind = "GasUsedMismatch"
	KindBlobGasUsedMismatch        InvalidBlockKind = "BlobGasUsedMismatch"
	KindExceededMaxBlobGasPerBlock InvalidBlockKind = "ExceededMaxBlobGasPerBlock"
)

// InvalidBlockError is the typed validation-failure taxonomy: terminal for
// the offending block and, in batch mode, for every block after it.
type InvalidBlockError struct {
	Kind  InvalidBlockKind
	Block common.Hash
	Msg   string
}

func (e *InvalidBlockError) Error() string {
	return fmt.Sprintf("invalid block %s: %s: %s", e.Block, e.Kind, e.Msg)
}

// BatchBlockProcessingFailure describes where AddBlocksInBatch stopped, so
// the caller can roll the chain head back to the last good block.
type BatchBlockProcessingFailure struct {
	FailedBlockHash common.Hash
	LastValidHash   common.Hash
}

func (f *BatchBlockProcessingFailure) Error() string {
	return fmt.Sprintf("batch processing failed at block %s, last valid %s", f.FailedBlockHash, f.LastValidHash)
}

// Blockchain is the block-processing orchestrator. It serializes block
// application: only one AddBlock/AddBlocksInBatch call may be in flight at
// a time, since the EVM's state view is not safe for concurrent mutation.
type Blockchain struct {
	config *params.ChainConfig
	store  Store
	states StateOpener
	evm    capability.Evm
	logger log.Logger

	mu sync.Mutex

	// synced is a one-way latch: once true it never reverts to false.
	synced atomic.Bool

	metrics *metrics.Metrics
}

// New constructs a Blockchain over the given store, state opener, and EVM
// backend.
func New(config *params.ChainConfig, store Store, states StateOpener, evm capability.Evm, logger log.Logger) *Blockchain {
	return &Blockchain{config: config, store: store, states: states, evm: evm, logger: logger}
}

// SetMetrics attaches a metrics collector; nil-safe to skip if unset.
func (bc *Blockchain) SetMetrics(m *metrics.Metrics) {
	bc.mu.Lock()
	defer bc.mu.Unlock()
	bc.metrics = m
}

// IsSynced reports whether the initial historical sync has completed.
func (bc *Blockchain) IsSynced() bool { return bc.synced.Load() }

// SetSynced flips the one-way sync latch. Calling it more than once, or
// after it is already true, is a no-op.
func (bc *Blockchain) SetSynced() { bc.synced.Store(true) }

// ValidateBlock checks block's header against parent and enforces the
// blob-gas accounting rules, without executing any transaction.
func (bc *Blockchain) ValidateBlock(block *types.Block, parent *types.Header, maxBlobsPerBlock uint64) error {
	header := block.Header()
	if err := consensus.VerifyHeader(bc.config, header, parent); err != nil {
		return &InvalidBlockError{Kind: KindHeaderFields, Block: block.Hash(), Msg: err.Error()}
	}

	rules := bc.config.RulesAt(header.Number, header.Time)
	var blobCount uint64
	for _, tx := range block.Transactions() {
		if tx.Type == types.BlobTxType {
			blobCount += uint64(len(tx.BlobHashes))
		}
	}
	blobGas := blobCount * types.GasPerBlob
	if rules.IsCancun {
		if header.BlobGasUsed == nil {
			return &InvalidBlockError{Kind: KindBlobGasUsedMismatch, Block: block.Hash(), Msg: "missing blobGasUsed on Cancun+ header"}
		}
		if *header.BlobGasUsed != blobGas {
			return &InvalidBlockError{Kind: KindBlobGasUsedMismatch, Block: block.Hash(), Msg: fmt.Sprintf("have %d want %d", *header.BlobGasUsed, blobGas)}
		}
		if maxBlobsPerBlock > 0 && blobGas > maxBlobsPerBlock*types.GasPerBlob {
			return &InvalidBlockError{Kind: KindExceededMaxBlobGasPerBlock, Block: block.Hash(), Msg: fmt.Sprintf("%d exceeds max %d", blobGas, maxBlobsPerBlock*types.GasPerBlob)}
		}
	} else if blobCount != 0 {
		return &InvalidBlockError{Kind: KindBlobGasUsedMismatch, Block: block.Hash(), Msg: "blob transactions before Cancun"}
	}
	return nil
}

// AddBlock validates, executes, and persists a single block on top of its
// parent. The block is staged into pending storage before parent
// resolution is attempted, so a missing parent can be retried later
// without losing the block.
func (bc *Blockchain) AddBlock(ctx context.Context, block *types.Block, maxBlobsPerBlock uint64) error {
	bc.mu.Lock()
	defer bc.mu.Unlock()

	if err := bc.store.PutPendingBlock(block); err != nil {
		return fmt.Errorf("stage pending block: %w", err)
	}

	parent, err := bc.store.GetHeaderByHash(block.ParentHash())
	if err != nil {
		return fmt.Errorf("%w: %s", ErrParentNotFound, block.ParentHash())
	}
	if parent == nil {
		return ErrParentNotFound
	}

	if err := bc.ValidateBlock(block, parent, maxBlobsPerBlock); err != nil {
		return err
	}

	state, err := bc.states.OpenState(parent.Root)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrParentStateNotFound, err)
	}

	execStart := time.Now()
	result, err := bc.evm.ExecuteBlock(ctx, block, state, state)
	if bc.metrics != nil {
		bc.metrics.BlockExecutionTime.Observe(time.Since(execStart).Seconds())
	}
	if err != nil {
		return fmt.Errorf("execute block %s: %w", block.Hash(), err)
	}

	if err := bc.validateExecutionResult(block, result); err != nil {
		return err
	}
	if err := checkStateRoot(block, state); err != nil {
		return err
	}

	newRoot, err := state.Commit()
	if err != nil {
		return fmt.Errorf("commit state: %w", err)
	}
	if newRoot != block.Root() {
		return fmt.Errorf("internal: committed root %s diverges from pre-commit root %s", newRoot, block.Root())
	}

	if err := bc.store.PutBlock(block); err != nil {
		return fmt.Errorf("store block: %w", err)
	}
	if err := bc.store.PutReceipts(block.Hash(), result.Receipts); err != nil {
		return fmt.Errorf("store receipts: %w", err)
	}
	if err := bc.store.PutCanonicalHash(block.NumberU64(), block.Hash()); err != nil {
		return fmt.Errorf("store canonical hash: %w", err)
	}

	if bc.metrics != nil {
		bc.metrics.BlocksAdded.Inc()
	}
	bc.logger.Info("added block", "number", block.NumberU64(), "hash", block.Hash(), "txs", len(block.Transactions()))
	return nil
}

func (bc *Blockchain) validateExecutionResult(block *types.Block, result *capability.ExecutionResult) error {
	header := block.Header()
	receiptsRoot := computeReceiptsRoot(result.Receipts)
	if receiptsRoot != header.ReceiptHash {
		return &InvalidBlockError{Kind: KindReceiptsRootMismatch, Block: block.Hash(), Msg: fmt.Sprintf("have %s want %s", receiptsRoot, header.ReceiptHash)}
	}
	var cumulative uint64
	for _, r := range result.Receipts {
		if r.CumulativeGasUsed > cumulative {
			cumulative = r.CumulativeGasUsed
		}
	}
	if cumulative != header.GasUsed {
		return &InvalidBlockError{Kind: KindGasUsedMismatch, Block: block.Hash(), Msg: fmt.Sprintf("have %d want %d", cumulative, header.GasUsed)}
	}
	rules := bc.config.RulesAt(header.Number, header.Time)
	if rules.IsPrague {
		wantHash := types.CalcRequestsHash(result.Requests)
		if header.RequestsHash == nil {
			return &InvalidBlockError{Kind: KindRequestsHashMismatch, Block: block.Hash(), Msg: "missing requestsHash on Prague+ block"}
		}
		if *header.RequestsHash != wantHash {
			return &InvalidBlockError{Kind: KindRequestsHashMismatch, Block: block.Hash(), Msg: fmt.Sprintf("have %s want %s", *header.RequestsHash, wantHash)}
		}
	}
	return nil
}

// checkStateRoot compares state's current (uncommitted) root against
// block's declared root, so a divergence is attributed to block itself
// rather than surfacing later as a commit-time mismatch on a different
// block.
func checkStateRoot(block *types.Block, state StateView) error {
	got := state.Root()
	if got != block.Root() {
		return &InvalidBlockError{Kind: KindStateRootMismatch, Block: block.Hash(), Msg: fmt.Sprintf("have %s want %s", got, block.Root())}
	}
	return nil
}

// computeReceiptsRoot builds the receipts trie over RLP(index) ->
// receipt.MarshalBinary(), matching Ethereum's receipts-root construction,
// using a throwaway in-memory trie since only the root hash is needed.
func computeReceiptsRoot(receipts types.Receipts) common.Hash {
	if len(receipts) == 0 {
		return trie.EmptyRootHash
	}
	t := trie.New(trie.NewMemNodeStore())
	for i, r := range receipts {
		enc, err := r.MarshalBinary()
		if err != nil {
			continue
		}
		key, err := rlp.EncodeToBytes(uint(i))
		if err != nil {
			continue
		}
		if _, err := t.Insert(key, enc); err != nil {
			continue
		}
	}
	return t.HashNoCommit()
}

// AddBlocksInBatch applies blocks sequentially, sharing one EVM instance
// and state view across the whole batch and persisting only the final
// state root. On failure it returns the original AddBlock-style error
// alongside a BatchBlockProcessingFailure describing where to roll back
// to.
func (bc *Blockchain) AddBlocksInBatch(ctx context.Context, blocks []*types.Block, maxBlobsPerBlock uint64) (err error, failure *BatchBlockProcessingFailure) {
	if len(blocks) == 0 {
		return nil, nil
	}

	bc.mu.Lock()
	defer bc.mu.Unlock()
	defer func() {
		if bc.metrics != nil && failure != nil {
			bc.metrics.BatchFailures.Inc()
		}
	}()

	parent, err := bc.store.GetHeaderByHash(blocks[0].ParentHash())
	if err != nil || parent == nil {
		return ErrParentNotFound, nil
	}
	lastValid := parent.Hash()

	state, err := bc.states.OpenState(parent.Root)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrParentStateNotFound, err), nil
	}

	blockHashes := make(map[uint64]common.Hash, len(blocks))
	cachedState := &blockHashCachingState{StateView: state, cache: blockHashes}

	for i, block := range blocks {
		if block.ParentHash() != parent.Hash() {
			return fmt.Errorf("batch: block %d parent mismatch", i), &BatchBlockProcessingFailure{
				FailedBlockHash: block.Hash(),
				LastValidHash:   lastValid,
			}
		}
		if err := bc.ValidateBlock(block, parent, maxBlobsPerBlock); err != nil {
			return err, &BatchBlockProcessingFailure{FailedBlockHash: block.Hash(), LastValidHash: lastValid}
		}

		execStart := time.Now()
		result, err := bc.evm.ExecuteBlock(ctx, block, cachedState, cachedState)
		if bc.metrics != nil {
			bc.metrics.BlockExecutionTime.Observe(time.Since(execStart).Seconds())
		}
		if err != nil {
			return fmt.Errorf("execute block %s: %w", block.Hash(), err), &BatchBlockProcessingFailure{
				FailedBlockHash: block.Hash(),
				LastValidHash:   lastValid,
			}
		}
		if err := bc.validateExecutionResult(block, result); err != nil {
			return err, &BatchBlockProcessingFailure{FailedBlockHash: block.Hash(), LastValidHash: lastValid}
		}
		if err := checkStateRoot(block, cachedState); err != nil {
			return err, &BatchBlockProcessingFailure{FailedBlockHash: block.Hash(), LastValidHash: lastValid}
		}

		blockHashes[block.NumberU64()] = block.Hash()
		if err := bc.store.PutBlock(block); err != nil {
			return err, &BatchBlockProcessingFailure{FailedBlockHash: block.Hash(), LastValidHash: lastValid}
		}
		if err := bc.store.PutReceipts(block.Hash(), result.Receipts); err != nil {
			return err, &BatchBlockProcessingFailure{FailedBlockHash: block.Hash(), LastValidHash: lastValid}
		}
		if err := bc.store.PutCanonicalHash(block.NumberU64(), block.Hash()); err != nil {
			return err, &BatchBlockProcessingFailure{FailedBlockHash: block.Hash(), LastValidHash: lastValid}
		}

		if bc.metrics != nil {
			bc.metrics.BlocksAdded.Inc()
		}
		parent = block.Header()
		lastValid = block.Hash()
	}

	newRoot, err := state.Commit()
	if err != nil {
		return fmt.Errorf("commit batch state: %w", err), &BatchBlockProcessingFailure{
			FailedBlockHash: blocks[len(blocks)-1].Hash(),
			LastValidHash:   lastValid,
		}
	}
	last := blocks[len(blocks)-1]
	if newRoot != last.Root() {
		return fmt.Errorf("internal: committed batch root %s diverges from pre-commit root %s", newRoot, last.Root()),
			&BatchBlockProcessingFailure{FailedBlockHash: last.Hash(), LastValidHash: lastValid}
	}

	bc.logger.Info("added block batch", "count", len(blocks), "last", last.NumberU64())
	return nil, nil
}

// blockHashCachingState wraps a StateView so BLOCKHASH lookups for blocks
// already processed earlier in the same batch resolve from memory instead
// of round-tripping to Store.
type blockHashCachingState struct {
	StateView
	cache map[uint64]common.Hash
}

func (s *blockHashCachingState) GetBlockHash(number uint64) (common.Hash, error) {
	if h, ok := s.cache[number]; ok {
		return h, nil
	}
	return s.StateView.GetBlockHash(number)
}
