// (c) 2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package metrics collects operational counters and gauges for the
// execution core: mempool occupancy, trie commit latency, and L1 watcher
// progress. It registers directly against a prometheus.Registry, the same
// pattern the rest of the Lux stack uses to expose metrics (see
// metrics_adapter.go in the wider codebase, which wraps a
// *prometheus.Registry for luxmetric consumers).
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles every gauge/counter/histogram this module registers.
// Callers needing only a subset still pay for all of them since Prometheus
// collectors are cheap to hold idle.
type Metrics struct {
	registry *prometheus.Registry

	TxPoolSize        prometheus.Gauge
	TxPoolPendingSize *prometheus.GaugeVec
	TxPoolAdded       prometheus.Counter
	TxPoolRejected    *prometheus.CounterVec
	TxPoolReplaced    prometheus.Counter

	TrieCommitLatency prometheus.Histogram
	TrieNodeCount     prometheus.Gauge

	BlocksAdded        prometheus.Counter
	BlockExecutionTime prometheus.Histogram
	BatchFailures      prometheus.Counter

	L1WatcherHeadBlock    prometheus.Gauge
	L1WatcherLastFetched  prometheus.Gauge
	L1MessagesIngested    prometheus.Counter
	L1MessagesRejected    prometheus.Counter
	CrossL2BatchesStopped prometheus.Counter
}

// New builds and registers every collector against reg. If reg is nil, a
// fresh private registry is created so callers that don't care about
// exposition can still use the typed fields without touching the global
// default registry.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	m := &Metrics{
		registry: reg,

		TxPoolSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "evmcore", Subsystem: "txpool", Name: "size",
			Help: "Number of transactions currently held in the pool.",
		}),
		TxPoolPendingSize: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "evmcore", Subsystem: "txpool", Name: "pending_size",
			Help: "Number of pending (nonce-contiguous) transactions per sender.",
		}, []string{"sender"}),
		TxPoolAdded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "evmcore", Subsystem: "txpool", Name: "added_total",
			Help: "Total transactions accepted into the pool.",
		}),
		TxPoolRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "evmcore", Subsystem: "txpool", Name: "rejected_total",
			Help: "Total transactions rejected during admission, by reason.",
		}, []string{"reason"}),
		TxPoolReplaced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "evmcore", Subsystem: "txpool", Name: "replaced_total",
			Help: "Total transactions replaced by a higher-fee transaction from the same sender.",
		}),

		TrieCommitLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "evmcore", Subsystem: "trie", Name: "commit_seconds",
			Help:    "Time to commit dirty trie nodes to the backing store.",
			Buckets: prometheus.DefBuckets,
		}),
		TrieNodeCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "evmcore", Subsystem: "trie", Name: "node_count",
			Help: "Approximate number of distinct trie nodes written since startup.",
		}),

		BlocksAdded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "evmcore", Subsystem: "chain", Name: "blocks_added_total",
			Help: "Total blocks successfully applied via AddBlock/AddBlocksInBatch.",
		}),
		BlockExecutionTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "evmcore", Subsystem: "chain", Name: "block_execution_seconds",
			Help:    "Wall-clock time spent executing a single block.",
			Buckets: prometheus.DefBuckets,
		}),
		BatchFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "evmcore", Subsystem: "chain", Name: "batch_failures_total",
			Help: "Total AddBlocksInBatch calls that returned a BatchBlockProcessingFailure.",
		}),

		L1WatcherHeadBlock: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "evmcore", Subsystem: "l1_watcher", Name: "head_block",
			Help: "Most recently observed L1 head block number.",
		}),
		L1WatcherLastFetched: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "evmcore", Subsystem: "l1_watcher", Name: "last_fetched_block",
			Help: "Last L1 block number whose logs were fetched and ingested.",
		}),
		L1MessagesIngested: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "evmcore", Subsystem: "l1_watcher", Name: "messages_ingested_total",
			Help: "Total bridge messages translated and submitted to the pool.",
		}),
		L1MessagesRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "evmcore", Subsystem: "l1_watcher", Name: "messages_rejected_total",
			Help: "Total bridge messages dropped: not in the pending set or rejected by the pool.",
		}),
		CrossL2BatchesStopped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "evmcore", Subsystem: "l1_watcher", Name: "cross_l2_batches_stopped_total",
			Help: "Total ingest batches terminated early by an unverified cross-L2 message hash.",
		}),
	}

	reg.MustRegister(
		m.TxPoolSize, m.TxPoolPendingSize, m.TxPoolAdded, m.TxPoolRejected, m.TxPoolReplaced,
		m.TrieCommitLatency, m.TrieNodeCount,
		m.BlocksAdded, m.BlockExecutionTime, m.BatchFailures,
		m.L1WatcherHeadBlock, m.L1WatcherLastFetched, m.L1MessagesIngested, m.L1MessagesRejected, m.CrossL2BatchesStopped,
	)
	return m
}

// Registry returns the underlying prometheus.Registry for exposition via
// an HTTP handler (promhttp.HandlerFor).
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }
