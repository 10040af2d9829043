// (c) 2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package watcher implements the L1 watcher: a cooperative, interval-driven
// task that ingests privileged transactions and cross-L2 messages from an
// L1 bridge contract's logs into the local mempool.
package watcher

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/luxfi/evmcore/core/types"
	"github.com/luxfi/evmcore/log"
	"github.com/luxfi/evmcore/metrics"
)

// L1Client is the subset of chain access the watcher needs from L1.
type L1Client interface {
	HeadBlockNumber(ctx context.Context) (uint64, error)
	GetLogs(ctx context.Context, fromBlock, toBlock uint64, address common.Address, topics []common.Hash) ([]Log, error)
	PendingBridgeMessages(ctx context.Context, chainID uint64) (map[common.Hash]struct{}, error)
}

// Log is a minimal decoded L1 log entry carrying a privileged-transaction
// template.
type Log struct {
	BlockNumber uint64
	ChainID     uint64 // 0 for L1-originated, else the source L2's chain id for cross-L2 messages
	L1Nonce     uint64
	From        common.Address
	To          *common.Address
	Value       *big.Int
	Data        []byte
}

// Pool is the subset of the mempool the watcher submits into.
type Pool interface {
	Add(tx *types.Transaction, sidecar interface{}, header *types.Header, isShanghaiActive bool) error
}

// HeaderSource supplies the current L2 head header (for gas price and
// fork-gating context) and gas price.
type HeaderSource interface {
	CurrentHeader() *types.Header
	SuggestedGasPrice() uint64
}

// Config parameterizes watcher cadence and batching.
type Config struct {
	ChainID       *big.Int
	BridgeAddress common.Address
	Topics        []common.Hash
	L1BlockDelay  uint64 // confirmations required before a block is "safe"
	MaxBlockStep  uint64
	TickInterval  time.Duration
	ResolvedCacheSize int
}

// Watcher runs the L1-ingestion tick loop as a single-owner goroutine; all
// mutable watermark state is only ever touched from that goroutine, so no
// locking is needed around lastFetchedL1/lastFetchedL2.
type Watcher struct {
	cfg    Config
	client L1Client
	pool   Pool
	heads  HeaderSource
	logger log.Logger

	lastFetchedL1 uint64
	lastFetchedL2 map[uint64]uint64

	// resolved records hashes already checked against a pending set. A hash
	// found absent on an earlier tick and absent again is dropped without
	// stopping its chain a second time; the pending sets themselves are
	// still fetched once per chain on every tick.
	resolved *lru.Cache[common.Hash, bool]

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}

	metrics *metrics.Metrics
}

// SetMetrics attaches a metrics collector; safe to call before Run.
func (w *Watcher) SetMetrics(m *metrics.Metrics) { w.metrics = m }

// New constructs a Watcher seeded from persisted watermarks (zero if this
// is the first run).
func New(cfg Config, client L1Client, pool Pool, heads HeaderSource, logger log.Logger, initialL1 uint64, initialL2 map[uint64]uint64) (*Watcher, error) {
	cache, err := lru.New[common.Hash, bool](cacheSizeOrDefault(cfg.ResolvedCacheSize))
	if err != nil {
		return nil, err
	}
	if initialL2 == nil {
		initialL2 = make(map[uint64]uint64)
	}
	return &Watcher{
		cfg:           cfg,
		client:        client,
		pool:          pool,
		heads:         heads,
		logger:        logger,
		lastFetchedL1: initialL1,
		lastFetchedL2: initialL2,
		resolved:      cache,
		stopCh:        make(chan struct{}),
		doneCh:        make(chan struct{}),
	}, nil
}

func cacheSizeOrDefault(n int) int {
	if n <= 0 {
		return 4096
	}
	return n
}

// Run executes the tick loop until ctx is cancelled or Stop is called. On
// cancellation the watcher finishes its current tick and does not
// re-schedule — it is a cooperative task, not a preemptible one.
func (w *Watcher) Run(ctx context.Context) {
	defer close(w.doneCh)
	ticker := time.NewTicker(w.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-ticker.C:
			if err := w.tick(ctx); err != nil {
				w.logger.Warn("l1 watcher tick failed", "error", err)
			}
		}
	}
}

// Stop signals the loop to exit after its current tick and blocks until it
// has done so.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() { close(w.stopCh) })
	<-w.doneCh
}

func (w *Watcher) tick(ctx context.Context) error {
	head, err := w.client.HeadBlockNumber(ctx)
	if err != nil {
		return fmt.Errorf("l1 watcher: head block number: %w", err)
	}
	if w.metrics != nil {
		w.metrics.L1WatcherHeadBlock.Set(float64(head))
	}
	if head < w.cfg.L1BlockDelay {
		return nil
	}
	latestSafe := head - w.cfg.L1BlockDelay
	if w.lastFetchedL1 >= latestSafe {
		return nil
	}

	end := w.lastFetchedL1 + w.cfg.MaxBlockStep
	if end > latestSafe {
		end = latestSafe
	}

	logs, err := w.client.GetLogs(ctx, w.lastFetchedL1+1, end, w.cfg.BridgeAddress, w.cfg.Topics)
	if err != nil {
		return fmt.Errorf("l1 watcher: get logs: %w", err)
	}

	result, err := w.ingest(ctx, logs)
	if err != nil {
		return err
	}

	// If any chain's cross-L2 acceptance stopped mid-tick, the L1 watermark
	// must not advance past the block preceding the earliest stop: those
	// logs (and anything after them, for any chain) still need to be
	// re-fetched and retried next tick.
	newL1 := end
	if result.stopAtBlock != 0 && result.stopAtBlock-1 < newL1 {
		newL1 = result.stopAtBlock - 1
	}
	if newL1 > w.lastFetchedL1 {
		w.lastFetchedL1 = newL1
	}
	for chainID, block := range result.maxProcessedByChain {
		if block > w.lastFetchedL2[chainID] {
			w.lastFetchedL2[chainID] = block
		}
	}
	if w.metrics != nil {
		w.metrics.L1WatcherLastFetched.Set(float64(w.lastFetchedL1))
	}
	return nil
}

// ingestResult reports how far ingest got through a tick's logs: the
// earliest L1 block number, if any, where a chain's cross-L2 acceptance
// stopped, and the highest per-chain block number fully resolved (accepted,
// or confirmed rejected) so lastFetchedL2 can be advanced.
type ingestResult struct {
	stopAtBlock         uint64 // 0 means no chain stopped this tick
	maxProcessedByChain map[uint64]uint64
}

// ingest translates, deduplicates, and submits the logs fetched this tick.
// Logs are processed in block order. For a cross-L2 message (ChainID != 0)
// whose hash fails the source chain's pending-set inclusion check,
// acceptance for that chain alone stops for the remainder of this tick:
// its later logs are skipped here and retried on a future tick, while other
// chains' logs in the same tick continue to be processed. The caller holds
// lastFetchedL1 back to the stopped block so the skipped logs are
// refetched; lastFetchedL2 lets a chain that is not stopped skip logs it
// already ingested on a prior tick once the L1 watermark catches up.
func (w *Watcher) ingest(ctx context.Context, logs []Log) (ingestResult, error) {
	pendingByChain := make(map[uint64]map[common.Hash]struct{})
	stoppedChains := make(map[uint64]bool)
	result := ingestResult{maxProcessedByChain: make(map[uint64]uint64)}

	markProcessed := func(l Log) {
		if l.ChainID == 0 {
			return
		}
		if l.BlockNumber > result.maxProcessedByChain[l.ChainID] {
			result.maxProcessedByChain[l.ChainID] = l.BlockNumber
		}
	}

	for _, l := range logs {
		if l.ChainID != 0 {
			if l.BlockNumber <= w.lastFetchedL2[l.ChainID] {
				continue // already ingested for this chain on a prior tick
			}
			if stoppedChains[l.ChainID] {
				continue // this chain stopped earlier in this tick; retry next tick
			}
		}

		tx := w.translate(l)
		// The pending-set identity covers only the log's own fields, not the
		// chain id and gas that translate fills in locally.
		hash := (&types.Transaction{Type: types.PrivilegedL2TxType, PrivilegedFrom: l.From, PrivilegedL1Nonce: l.L1Nonce, To: l.To, Value: l.Value, Data: l.Data}).Hash()

		pending, ok := pendingByChain[l.ChainID]
		if !ok {
			p, err := w.client.PendingBridgeMessages(ctx, l.ChainID)
			if err != nil {
				return ingestResult{}, fmt.Errorf("l1 watcher: pending messages for chain %d: %w", l.ChainID, err)
			}
			pending = p
			pendingByChain[l.ChainID] = pending
		}

		if _, inPending := pending[hash]; !inPending {
			if cached, ok := w.resolved.Get(hash); ok && !cached {
				markProcessed(l) // previously confirmed absent from the pending set
				continue
			}
			w.resolved.Add(hash, false)
			if w.metrics != nil {
				w.metrics.L1MessagesRejected.Inc()
			}
			if l.ChainID != 0 {
				stoppedChains[l.ChainID] = true
				if result.stopAtBlock == 0 || l.BlockNumber < result.stopAtBlock {
					result.stopAtBlock = l.BlockNumber
				}
				if w.metrics != nil {
					w.metrics.CrossL2BatchesStopped.Inc()
				}
			}
			continue
		}
		w.resolved.Add(hash, true)

		header := w.heads.CurrentHeader()
		if err := w.pool.Add(tx, nil, header, true); err != nil {
			w.logger.Warn("l1 watcher: privileged tx rejected by pool", "hash", hash, "error", err)
			if w.metrics != nil {
				w.metrics.L1MessagesRejected.Inc()
			}
			markProcessed(l)
			continue
		}
		markProcessed(l)
		if w.metrics != nil {
			w.metrics.L1MessagesIngested.Inc()
		}
	}
	return result, nil
}

func (w *Watcher) translate(l Log) *types.Transaction {
	gas := w.heads.SuggestedGasPrice()
	return &types.Transaction{
		Type:              types.PrivilegedL2TxType,
		ChainID:           w.cfg.ChainID,
		PrivilegedFrom:    l.From,
		PrivilegedL1Nonce: l.L1Nonce,
		To:                l.To,
		Value:             l.Value,
		Data:              l.Data,
		Gas:               gas,
	}
}
