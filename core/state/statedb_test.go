// (c) 2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package state

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/evmcore/core/types"
	"github.com/luxfi/evmcore/trie"
)

func TestPutGetAccountRoundTrip(t *testing.T) {
	store := trie.NewMemNodeStore()
	sdb, err := New(store, nil, trie.EmptyRootHash)
	require.NoError(t, err)

	addr := common.HexToAddress("0x1111111111111111111111111111111111111111")
	acc := types.NewEmptyAccount()
	acc.Balance = big.NewInt(42)
	acc.Nonce = 3

	require.NoError(t, sdb.PutAccount(addr, acc))
	got, err := sdb.GetAccount(addr)
	require.NoError(t, err)
	require.Equal(t, uint64(3), got.Nonce)
	require.Equal(t, big.NewInt(42), got.Balance)
}

func TestGetAccountMissingReturnsNil(t *testing.T) {
	sdb, err := New(trie.NewMemNodeStore(), nil, trie.EmptyRootHash)
	require.NoError(t, err)
	acc, err := sdb.GetAccount(common.HexToAddress("0x2222222222222222222222222222222222222222"))
	require.NoError(t, err)
	require.Nil(t, acc)
}

func TestStorageRoundTripUpdatesAccountRoot(t *testing.T) {
	sdb, err := New(trie.NewMemNodeStore(), nil, trie.EmptyRootHash)
	require.NoError(t, err)
	addr := common.HexToAddress("0x3333333333333333333333333333333333333333")
	key := common.HexToHash("0x01")
	val := common.HexToHash("0x2a")

	require.NoError(t, sdb.PutStorage(addr, key, val))
	got, err := sdb.GetStorage(addr, key)
	require.NoError(t, err)
	require.Equal(t, val, got)

	acc, err := sdb.GetAccount(addr)
	require.NoError(t, err)
	require.NotEqual(t, trie.EmptyRootHash, acc.StorageRoot)
}

func TestStorageZeroValueDeletesSlot(t *testing.T) {
	sdb, err := New(trie.NewMemNodeStore(), nil, trie.EmptyRootHash)
	require.NoError(t, err)
	addr := common.HexToAddress("0x4444444444444444444444444444444444444444")
	key := common.HexToHash("0x01")
	require.NoError(t, sdb.PutStorage(addr, key, common.HexToHash("0x2a")))
	require.NoError(t, sdb.PutStorage(addr, key, common.Hash{}))

	acc, err := sdb.GetAccount(addr)
	require.NoError(t, err)
	require.Equal(t, trie.EmptyRootHash, acc.StorageRoot)
}

func TestCommitThenReopenSeesSameState(t *testing.T) {
	store := trie.NewMemNodeStore()
	sdb, err := New(store, nil, trie.EmptyRootHash)
	require.NoError(t, err)
	addr := common.HexToAddress("0x5555555555555555555555555555555555555555")
	acc := types.NewEmptyAccount()
	acc.Balance = big.NewInt(7)
	require.NoError(t, sdb.PutAccount(addr, acc))

	root, err := sdb.Commit()
	require.NoError(t, err)

	reopened, err := New(store, nil, root)
	require.NoError(t, err)
	got, err := reopened.GetAccount(addr)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(7), got.Balance)
}
