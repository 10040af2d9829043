// (c) 2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package rollupstore persists the batch-indexed tables an L2 rollup needs:
// block-to-batch mapping, per-batch message/privileged-tx/state-root
// records, blob bundles, and L1 commit/verify transaction receipts. It is
// backed by cockroachdb/pebble, the same embedded engine used for trie
// nodes, so a single process can share one on-disk database across both.
package rollupstore

import (
	"encoding/binary"
	"errors"

	"github.com/cockroachdb/pebble"
	"github.com/ethereum/go-ethereum/common"
)

var ErrNotFound = errors.New("rollupstore: key not found")

// Table key prefixes, namespacing the shared pebble keyspace.
var (
	prefixBlocks         = []byte("b:")
	prefixMessages       = []byte("m:")
	prefixPrivilegedTxs  = []byte("p:")
	prefixStateRoots     = []byte("s:")
	prefixBlobBundles    = []byte("x:")
	prefixAccountUpdates = []byte("a:")
	prefixCommitTxs      = []byte("c:")
	prefixVerifyTxs      = []byte("v:")
	prefixBatchProofs    = []byte("q:")
	keyOperationCount    = []byte("singleton:operation_count")
	keyLatestSent        = []byte("singleton:latest_sent")
)

func be64(n uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, n)
	return b
}

func keyWithUint64(prefix []byte, n uint64) []byte {
	return append(append([]byte{}, prefix...), be64(n)...)
}

func keyWithTwoUint64(prefix []byte, a, b uint64) []byte {
	k := append(append([]byte{}, prefix...), be64(a)...)
	return append(k, be64(b)...)
}

// OperationCount is the singleton running-total record.
type OperationCount struct {
	TxCount     uint64
	PrivTxCount uint64
	MsgCount    uint64
}

func (o OperationCount) encode() []byte {
	b := make([]byte, 24)
	binary.BigEndian.PutUint64(b[0:8], o.TxCount)
	binary.BigEndian.PutUint64(b[8:16], o.PrivTxCount)
	binary.BigEndian.PutUint64(b[16:24], o.MsgCount)
	return b
}

func decodeOperationCount(b []byte) OperationCount {
	return OperationCount{
		TxCount:     binary.BigEndian.Uint64(b[0:8]),
		PrivTxCount: binary.BigEndian.Uint64(b[8:16]),
		MsgCount:    binary.BigEndian.Uint64(b[16:24]),
	}
}

// SealedBatch is the full set of rows a single seal_batch call writes
// atomically.
type SealedBatch struct {
	BatchNumber          uint64
	BlockNumbers         []uint64
	MessageHashes        []common.Hash
	PrivilegedTxsHash    common.Hash
	BlobBundles          [][]byte
	StateRoot            common.Hash
	CommitTxHash         *common.Hash
	VerifyTxHash         *common.Hash
	AccountUpdatesByBlock map[uint64][]byte
}

// Store wraps a pebble database with the rollup's table layout. Exactly
// one writer is expected; pebble's write-ahead log lets readers proceed
// concurrently with writes (callers simply use additional Store handles
// opened read-only, or the same handle for reads, which is safe since
// pebble itself serializes writes).
type Store struct {
	db *pebble.DB
}

func New(db *pebble.DB) *Store {
	return &Store{db: db}
}

func (s *Store) get(key []byte) ([]byte, error) {
	v, closer, err := s.db.Get(key)
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, closer.Close()
}

// BatchForBlock returns the batch number a block belongs to.
func (s *Store) BatchForBlock(blockNumber uint64) (uint64, error) {
	v, err := s.get(keyWithUint64(prefixBlocks, blockNumber))
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(v), nil
}

// StateRoot returns the state root recorded for batch.
func (s *Store) StateRoot(batch uint64) (common.Hash, error) {
	v, err := s.get(keyWithUint64(prefixStateRoots, batch))
	if err != nil {
		return common.Hash{}, err
	}
	return common.BytesToHash(v), nil
}

// PrivilegedTransactionsHash returns the aggregate hash recorded for batch.
func (s *Store) PrivilegedTransactionsHash(batch uint64) (common.Hash, error) {
	v, err := s.get(keyWithUint64(prefixPrivilegedTxs, batch))
	if err != nil {
		return common.Hash{}, err
	}
	return common.BytesToHash(v), nil
}

// MessageHash returns the message hash at (batch, idx).
func (s *Store) MessageHash(batch uint64, idx uint64) (common.Hash, error) {
	v, err := s.get(keyWithTwoUint64(prefixMessages, batch, idx))
	if err != nil {
		return common.Hash{}, err
	}
	return common.BytesToHash(v), nil
}

// BlobBundle returns the blob at (batch, idx).
func (s *Store) BlobBundle(batch, idx uint64) ([]byte, error) {
	return s.get(keyWithTwoUint64(prefixBlobBundles, batch, idx))
}

// AccountUpdates returns the serialized updates for blockNumber.
func (s *Store) AccountUpdates(blockNumber uint64) ([]byte, error) {
	return s.get(keyWithUint64(prefixAccountUpdates, blockNumber))
}

// CommitTx/VerifyTx return the L1 transaction hash recorded for batch.
func (s *Store) CommitTx(batch uint64) (common.Hash, error) {
	v, err := s.get(keyWithUint64(prefixCommitTxs, batch))
	if err != nil {
		return common.Hash{}, err
	}
	return common.BytesToHash(v), nil
}

func (s *Store) VerifyTx(batch uint64) (common.Hash, error) {
	v, err := s.get(keyWithUint64(prefixVerifyTxs, batch))
	if err != nil {
		return common.Hash{}, err
	}
	return common.BytesToHash(v), nil
}

// BatchProof returns the serialized proof for (batch, proverType).
func (s *Store) BatchProof(batch uint64, proverType string) ([]byte, error) {
	key := append(keyWithUint64(prefixBatchProofs, batch), []byte(proverType)...)
	return s.get(key)
}

func (s *Store) PutBatchProof(batch uint64, proverType string, proof []byte) error {
	key := append(keyWithUint64(prefixBatchProofs, batch), []byte(proverType)...)
	return s.db.Set(key, proof, pebble.Sync)
}

// OperationCount returns the singleton running-total record.
func (s *Store) OperationCount() (OperationCount, error) {
	v, err := s.get(keyOperationCount)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return OperationCount{}, nil
		}
		return OperationCount{}, err
	}
	return decodeOperationCount(v), nil
}

// LatestSent returns the last batch number whose proof was sent.
func (s *Store) LatestSent() (uint64, error) {
	v, err := s.get(keyLatestSent)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return binary.BigEndian.Uint64(v), nil
}

func (s *Store) SetLatestSent(batch uint64) error {
	return s.db.Set(keyLatestSent, be64(batch), pebble.Sync)
}

// SealBatch writes every row of b in a single pebble batch, so a crash
// mid-seal leaves either the full batch recorded or nothing at all.
func (s *Store) SealBatch(b SealedBatch) error {
	wb := s.db.NewBatch()
	defer wb.Close()

	for _, blockNumber := range b.BlockNumbers {
		if err := wb.Set(keyWithUint64(prefixBlocks, blockNumber), be64(b.BatchNumber), nil); err != nil {
			return err
		}
	}
	for idx, mh := range b.MessageHashes {
		if err := wb.Set(keyWithTwoUint64(prefixMessages, b.BatchNumber, uint64(idx)), mh.Bytes(), nil); err != nil {
			return err
		}
	}
	if err := wb.Set(keyWithUint64(prefixPrivilegedTxs, b.BatchNumber), b.PrivilegedTxsHash.Bytes(), nil); err != nil {
		return err
	}
	for idx, blob := range b.BlobBundles {
		if err := wb.Set(keyWithTwoUint64(prefixBlobBundles, b.BatchNumber, uint64(idx)), blob, nil); err != nil {
			return err
		}
	}
	if err := wb.Set(keyWithUint64(prefixStateRoots, b.BatchNumber), b.StateRoot.Bytes(), nil); err != nil {
		return err
	}
	if b.CommitTxHash != nil {
		if err := wb.Set(keyWithUint64(prefixCommitTxs, b.BatchNumber), b.CommitTxHash.Bytes(), nil); err != nil {
			return err
		}
	}
	if b.VerifyTxHash != nil {
		if err := wb.Set(keyWithUint64(prefixVerifyTxs, b.BatchNumber), b.VerifyTxHash.Bytes(), nil); err != nil {
			return err
		}
	}
	for blockNumber, updates := range b.AccountUpdatesByBlock {
		if err := wb.Set(keyWithUint64(prefixAccountUpdates, blockNumber), updates, nil); err != nil {
			return err
		}
	}

	count, err := s.OperationCount()
	if err != nil {
		return err
	}
	count.TxCount += uint64(len(b.AccountUpdatesByBlock))
	count.MsgCount += uint64(len(b.MessageHashes))
	if err := wb.Set(keyOperationCount, count.encode(), nil); err != nil {
		return err
	}

	return wb.Commit(pebble.Sync)
}

// RevertToBatch atomically deletes the rows of batches n+1 through maxBatch
// from every per-batch table, and every block-to-batch row whose batch
// number is greater than n.
func (s *Store) RevertToBatch(n uint64, maxBatch uint64) error {
	wb := s.db.NewBatch()
	defer wb.Close()

	iter, err := s.db.NewIter(&pebble.IterOptions{LowerBound: prefixBlocks, UpperBound: []byte("b;")})
	if err != nil {
		return err
	}
	for iter.First(); iter.Valid(); iter.Next() {
		if binary.BigEndian.Uint64(iter.Value()) > n {
			if err := wb.Delete(append([]byte{}, iter.Key()...), nil); err != nil {
				_ = iter.Close()
				return err
			}
		}
	}
	if err := iter.Close(); err != nil {
		return err
	}

	for batch := n + 1; batch <= maxBatch; batch++ {
		for _, prefix := range [][]byte{prefixPrivilegedTxs, prefixStateRoots, prefixCommitTxs, prefixVerifyTxs} {
			if err := wb.Delete(keyWithUint64(prefix, batch), nil); err != nil {
				return err
			}
		}
		if err := wb.DeleteRange(keyWithUint64(prefixMessages, batch), keyWithUint64(prefixMessages, batch+1), nil); err != nil {
			return err
		}
		if err := wb.DeleteRange(keyWithUint64(prefixBlobBundles, batch), keyWithUint64(prefixBlobBundles, batch+1), nil); err != nil {
			return err
		}
		if err := wb.DeleteRange(keyWithUint64(prefixBatchProofs, batch), keyWithUint64(prefixBatchProofs, batch+1), nil); err != nil {
			return err
		}
	}
	return wb.Commit(pebble.Sync)
}

// Close closes the underlying pebble database.
func (s *Store) Close() error {
	return s.db.Close()
}
