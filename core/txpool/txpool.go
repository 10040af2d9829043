// (c) 2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package txpool implements the transaction mempool: admission validation,
// per-sender nonce ordering, replacement, and blob sidecar bookkeeping.
package txpool

import (
	"errors"
	"math/big"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/prque"
	"github.com/ethereum/go-ethereum/event"

	"github.com/luxfi/evmcore/capability"
	"github.com/luxfi/evmcore/core/types"
	"github.com/luxfi/evmcore/metrics"
	"github.com/luxfi/evmcore/params"
)

var (
	ErrTxTooLarge          = errors.New("txpool: transaction exceeds size cap")
	ErrInvalidChainID      = errors.New("txpool: invalid chain id")
	ErrInvalidSignature    = errors.New("txpool: invalid signature")
	ErrInitcodeTooLarge    = errors.New("txpool: initcode exceeds max size")
	ErrGasLimitTooHigh     = errors.New("txpool: gas limit exceeds block gas limit")
	ErrTipAboveFeeCap      = errors.New("txpool: max priority fee above max fee")
	ErrIntrinsicGas        = errors.New("txpool: intrinsic gas exceeds gas limit")
	ErrBlobFeeTooLow       = errors.New("txpool: max fee per blob gas below minimum")
	ErrBlobCountOutOfRange = errors.New("txpool: blob count out of range")
	ErrBlobKZGInvalid      = errors.New("txpool: blob KZG commitment does not verify")
	ErrMissingBlobSidecar  = errors.New("txpool: blob transaction submitted without sidecar")
	ErrUnknownSender       = errors.New("txpool: sender account does not exist")
	ErrNonceTooLow         = errors.New("txpool: nonce below account nonce")
	ErrInsufficientFunds   = errors.New("txpool: balance below transaction cost")
	ErrReplaceUnderpriced  = errors.New("txpool: replacement transaction underpriced")
	ErrAlreadyKnown        = errors.New("txpool: transaction already known")

	// MaxInitcodeSize is the EIP-3860 initcode size cap, active from
	// Shanghai onward.
	MaxInitcodeSize = 2 * 24576

	// MinBaseFeePerBlobGas is the EIP-4844 floor for blob fee bids.
	MinBaseFeePerBlobGas = big.NewInt(1)

	// DefaultMaxTxSize bounds the RLP-encoded size of an admitted
	// transaction.
	DefaultMaxTxSize = 128 * 1024

	// DefaultReplacementFactorPercent is the minimum percentage bump a
	// replacement transaction must pay over the one it replaces.
	DefaultReplacementFactorPercent = 10
)

// AccountReader is the subset of world state the pool needs to validate
// admission: nonce and balance lookups.
type AccountReader interface {
	GetAccount(addr common.Address) (*types.StateAccount, error)
}

// BlobSidecar carries the KZG commitments/proofs accompanying a blob
// transaction, submitted alongside it and required for admission.
type BlobSidecar struct {
	Commitments [][48]byte
	Proofs      [][48]byte
	Blobs       [][]byte
}

// Config parameterizes pool admission and eviction behavior.
type Config struct {
	MaxTxSize                int
	ReplacementFactorPercent uint64
	MaxBlobsPerBlock         int
	GlobalSlots              int
}

// DefaultConfig returns sane defaults matching the spec's stated typical
// values.
func DefaultConfig() Config {
	return Config{
		MaxTxSize:                DefaultMaxTxSize,
		ReplacementFactorPercent: DefaultReplacementFactorPercent,
		MaxBlobsPerBlock:         6,
		GlobalSlots:              4096,
	}
}

type poolTx struct {
	tx     *types.Transaction
	sender common.Address
	sidecar *BlobSidecar
}

// TxPool is the shared, concurrency-safe mempool. A single logical
// operation (insert, remove, replace, drain-by-sender) holds pool.mu for
// its duration; block building takes a snapshot under the same lock so
// readers never observe a torn insert.
type TxPool struct {
	mu sync.RWMutex

	cfg     Config
	config  *params.ChainConfig
	crypto  capability.Crypto
	state   AccountReader

	byHash   map[common.Hash]*poolTx
	bySender map[common.Address]map[uint64]*poolTx // sender -> nonce -> tx

	newTxFeed event.Feed

	metrics *metrics.Metrics
}

// SetMetrics attaches a metrics collector; nil-safe, and cheap to skip
// when unset (the hot path checks a single pointer).
func (p *TxPool) SetMetrics(m *metrics.Metrics) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.metrics = m
}

// New constructs an empty pool bound to config and chain config, using
// crypto for sender recovery/KZG verification and state for balance/nonce
// admission checks.
func New(cfg Config, chainConfig *params.ChainConfig, crypto capability.Crypto, state AccountReader) *TxPool {
	return &TxPool{
		cfg:      cfg,
		config:   chainConfig,
		crypto:   crypto,
		state:    state,
		byHash:   make(map[common.Hash]*poolTx),
		bySender: make(map[common.Address]map[uint64]*poolTx),
	}
}

// SubscribeNewTxsEvent lets callers (e.g. the Network capability) receive
// newly admitted transactions for gossip.
func (p *TxPool) SubscribeNewTxsEvent(ch chan<- []*types.Transaction) event.Subscription {
	return p.newTxFeed.Subscribe(ch)
}

// Has reports whether hash is already known to the pool.
func (p *TxPool) Has(hash common.Hash) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.byHash[hash]
	return ok
}

// Get returns the pooled transaction for hash, or nil.
func (p *TxPool) Get(hash common.Hash) *types.Transaction {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if t, ok := p.byHash[hash]; ok {
		return t.tx
	}
	return nil
}

// Add validates and admits tx (with an optional blob sidecar) against the
// pipeline in spec order, returning the first validation error encountered.
// PrivilegedL2 transactions short-circuit signature validation: their
// sender is carried directly on the envelope, trusted because only the L1
// watcher constructs them.
func (p *TxPool) Add(tx *types.Transaction, sidecar *BlobSidecar, header *types.Header, isShanghaiActive bool) (err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	defer func() {
		if p.metrics == nil {
			return
		}
		if err != nil {
			p.metrics.TxPoolRejected.WithLabelValues(err.Error()).Inc()
			return
		}
		p.metrics.TxPoolAdded.Inc()
		p.metrics.TxPoolSize.Set(float64(len(p.byHash)))
	}()

	hash := tx.Hash()
	if _, ok := p.byHash[hash]; ok {
		return ErrAlreadyKnown
	}

	enc, err := encodedSize(tx)
	if err != nil {
		return err
	}
	if enc > p.cfg.MaxTxSize {
		return ErrTxTooLarge
	}

	var sender common.Address
	if tx.Type == types.PrivilegedL2TxType {
		sender = tx.PrivilegedFrom
	} else {
		if tx.ChainID != nil && p.config.ChainID != nil && tx.ChainID.Cmp(p.config.ChainID) != 0 {
			return ErrInvalidChainID
		}
		sender, err = tx.Sender(p.crypto)
		if err != nil {
			return ErrInvalidSignature
		}
	}

	if isShanghaiActive && tx.IsContractCreation() && len(tx.Data) > MaxInitcodeSize {
		return ErrInitcodeTooLarge
	}
	if tx.Gas > header.GasLimit {
		return ErrGasLimitTooHigh
	}
	if tx.GasFeeCap != nil && tx.GasTipCap.Cmp(tx.GasFeeCap) > 0 {
		return ErrTipAboveFeeCap
	}
	intrinsic, err := tx.IntrinsicGas(isShanghaiActive, tx.IsContractCreation())
	if err != nil {
		return err
	}
	if intrinsic > tx.Gas {
		return ErrIntrinsicGas
	}
	if tx.Type == types.BlobTxType {
		if tx.BlobFeeCap.Cmp(MinBaseFeePerBlobGas) < 0 {
			return ErrBlobFeeTooLow
		}
		if len(tx.BlobHashes) < 1 || len(tx.BlobHashes) > p.cfg.MaxBlobsPerBlock {
			return ErrBlobCountOutOfRange
		}
		if sidecar == nil || len(sidecar.Commitments) != len(tx.BlobHashes) {
			return ErrMissingBlobSidecar
		}
		for i, commitment := range sidecar.Commitments {
			if err := p.crypto.KZGVerify(commitment, [48]byte{}, [48]byte{}, sidecar.Proofs[i]); err != nil {
				return ErrBlobKZGInvalid
			}
		}
	}

	if tx.Type != types.PrivilegedL2TxType {
		acc, err := p.state.GetAccount(sender)
		if err != nil {
			return err
		}
		if acc == nil {
			return ErrUnknownSender
		}
		if tx.Nonce < acc.Nonce {
			return ErrNonceTooLow
		}
		if acc.Balance.Cmp(tx.Cost()) < 0 {
			return ErrInsufficientFunds
		}
	}

	pt := &poolTx{tx: tx, sender: sender, sidecar: sidecar}
	if existing, ok := p.byNonceLocked(sender, tx.Nonce); ok {
		if !p.outpricesLocked(tx, existing.tx) {
			return ErrReplaceUnderpriced
		}
		delete(p.byHash, existing.tx.Hash())
		if p.metrics != nil {
			p.metrics.TxPoolReplaced.Inc()
		}
	}

	p.byHash[hash] = pt
	if p.bySender[sender] == nil {
		p.bySender[sender] = make(map[uint64]*poolTx)
	}
	p.bySender[sender][tx.Nonce] = pt

	p.newTxFeed.Send([]*types.Transaction{tx})
	return nil
}

func (p *TxPool) byNonceLocked(sender common.Address, nonce uint64) (*poolTx, bool) {
	m, ok := p.bySender[sender]
	if !ok {
		return nil, false
	}
	t, ok := m[nonce]
	return t, ok
}

// outpricesLocked reports whether candidate exceeds incumbent's fee fields
// by at least the configured replacement factor.
func (p *TxPool) outpricesLocked(candidate, incumbent *types.Transaction) bool {
	factor := big.NewInt(int64(p.cfg.ReplacementFactorPercent))
	hundred := big.NewInt(100)
	threshold := func(v *big.Int) *big.Int {
		bump := new(big.Int).Mul(v, factor)
		bump.Div(bump, hundred)
		return new(big.Int).Add(v, bump)
	}
	if candidate.GasTipCap.Cmp(threshold(incumbent.GasTipCap)) < 0 {
		return false
	}
	if incumbent.GasFeeCap != nil {
		if candidate.GasFeeCap == nil || candidate.GasFeeCap.Cmp(threshold(incumbent.GasFeeCap)) < 0 {
			return false
		}
	}
	return true
}

// Remove deletes hash from the pool, e.g. after a block including it
// commits.
func (p *TxPool) Remove(hash common.Hash) {
	p.mu.Lock()
	defer p.mu.Unlock()
	pt, ok := p.byHash[hash]
	if !ok {
		return
	}
	delete(p.byHash, hash)
	if m, ok := p.bySender[pt.sender]; ok {
		delete(m, pt.tx.Nonce)
		if len(m) == 0 {
			delete(p.bySender, pt.sender)
		}
	}
	if p.metrics != nil {
		p.metrics.TxPoolSize.Set(float64(len(p.byHash)))
	}
}

// Pending returns a nonce-ordered snapshot per sender, suitable for block
// building. The snapshot is consistent as of the call (taken under the
// pool's read lock) but is a copy, so callers may iterate without holding
// the pool.
func (p *TxPool) Pending() map[common.Address][]*types.Transaction {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make(map[common.Address][]*types.Transaction, len(p.bySender))
	for sender, m := range p.bySender {
		nonces := make([]uint64, 0, len(m))
		for n := range m {
			nonces = append(nonces, n)
		}
		sort.Slice(nonces, func(i, j int) bool { return nonces[i] < nonces[j] })
		list := make([]*types.Transaction, 0, len(nonces))
		for _, n := range nonces {
			list = append(list, m[n].tx)
		}
		out[sender] = list
	}
	return out
}

// Len returns the total number of pooled transactions.
func (p *TxPool) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.byHash)
}

// EvictLowestPriority drops transactions, lowest effective tip first,
// until the pool holds at most p.cfg.GlobalSlots entries. It is called
// periodically rather than on every Add to keep admission cheap.
func (p *TxPool) EvictLowestPriority(baseFee *big.Int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.byHash) <= p.cfg.GlobalSlots {
		return
	}
	pq := prque.New[int64, *poolTx](nil)
	for _, pt := range p.byHash {
		tip := pt.tx.EffectiveGasTip(baseFee)
		pq.Push(pt, -tip.Int64())
	}
	for len(p.byHash) > p.cfg.GlobalSlots && !pq.Empty() {
		pt, _ := pq.Pop()
		delete(p.byHash, pt.tx.Hash())
		if m, ok := p.bySender[pt.sender]; ok {
			delete(m, pt.tx.Nonce)
			if len(m) == 0 {
				delete(p.bySender, pt.sender)
			}
		}
	}
}

func encodedSize(tx *types.Transaction) (int, error) {
	// A conservative, allocation-free approximation of the RLP-encoded
	// size: exact enough for the size cap, which only needs to reject
	// pathologically large payloads.
	return 64 + len(tx.Data) + len(tx.AccessList)*64 + len(tx.BlobHashes)*32, nil
}
