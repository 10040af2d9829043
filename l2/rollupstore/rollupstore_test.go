// (c) 2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package rollupstore

import (
	"testing"

	"github.com/cockroachdb/pebble"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := pebble.Open(t.TempDir(), &pebble.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return New(db)
}

func TestSealBatchThenReadRows(t *testing.T) {
	s := newTestStore(t)
	commitHash := common.HexToHash("0xc1")
	sealed := SealedBatch{
		BatchNumber:       1,
		BlockNumbers:      []uint64{10, 11},
		MessageHashes:     []common.Hash{common.HexToHash("0x1"), common.HexToHash("0x2")},
		PrivilegedTxsHash: common.HexToHash("0xaa"),
		BlobBundles:       [][]byte{[]byte("blob0")},
		StateRoot:         common.HexToHash("0xbeef"),
		CommitTxHash:      &commitHash,
		AccountUpdatesByBlock: map[uint64][]byte{
			10: []byte("updates-10"),
			11: []byte("updates-11"),
		},
	}
	require.NoError(t, s.SealBatch(sealed))

	batch, err := s.BatchForBlock(10)
	require.NoError(t, err)
	require.Equal(t, uint64(1), batch)

	root, err := s.StateRoot(1)
	require.NoError(t, err)
	require.Equal(t, sealed.StateRoot, root)

	mh, err := s.MessageHash(1, 0)
	require.NoError(t, err)
	require.Equal(t, sealed.MessageHashes[0], mh)

	commit, err := s.CommitTx(1)
	require.NoError(t, err)
	require.Equal(t, commitHash, commit)

	updates, err := s.AccountUpdates(11)
	require.NoError(t, err)
	require.Equal(t, []byte("updates-11"), updates)
}

func TestSealBatchUpdatesOperationCount(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.SealBatch(SealedBatch{
		BatchNumber:   1,
		MessageHashes: []common.Hash{common.HexToHash("0x1")},
		AccountUpdatesByBlock: map[uint64][]byte{
			5: []byte("u"),
		},
	}))
	count, err := s.OperationCount()
	require.NoError(t, err)
	require.Equal(t, uint64(1), count.TxCount)
	require.Equal(t, uint64(1), count.MsgCount)
}

func TestRevertToBatchDeletesLaterRows(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.SealBatch(SealedBatch{
		BatchNumber:       1,
		MessageHashes:     []common.Hash{common.HexToHash("0x1")},
		PrivilegedTxsHash: common.HexToHash("0xaa"),
		StateRoot:         common.HexToHash("0x01"),
	}))
	require.NoError(t, s.SealBatch(SealedBatch{
		BatchNumber:       2,
		MessageHashes:     []common.Hash{common.HexToHash("0x2")},
		PrivilegedTxsHash: common.HexToHash("0xbb"),
		StateRoot:         common.HexToHash("0x02"),
	}))

	require.NoError(t, s.RevertToBatch(1, 2))

	_, err := s.StateRoot(2)
	require.ErrorIs(t, err, ErrNotFound)

	root, err := s.StateRoot(1)
	require.NoError(t, err)
	require.Equal(t, common.HexToHash("0x01"), root)
}

func TestLatestSentRoundTrip(t *testing.T) {
	s := newTestStore(t)
	n, err := s.LatestSent()
	require.NoError(t, err)
	require.Equal(t, uint64(0), n)

	require.NoError(t, s.SetLatestSent(7))
	n, err = s.LatestSent()
	require.NoError(t, err)
	require.Equal(t, uint64(7), n)
}

func TestBatchProofRoundTrip(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.PutBatchProof(3, "groth16", []byte("proofbytes")))
	proof, err := s.BatchProof(3, "groth16")
	require.NoError(t, err)
	require.Equal(t, []byte("proofbytes"), proof)
}
