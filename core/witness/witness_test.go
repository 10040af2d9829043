// (c) 2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package witness

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/evmcore/core/types"
	"github.com/luxfi/evmcore/trie"
)

func buildAccountTrieWitness(t *testing.T, addr common.Address, acc *types.StateAccount) (*ExecutionWitness, common.Hash) {
	t.Helper()
	store := trie.NewMemNodeStore()
	tr := trie.New(store)
	enc, err := acc.Encode()
	require.NoError(t, err)
	root, err := tr.Insert(addr.Bytes(), enc)
	require.NoError(t, err)

	proof, err := tr.Prove(addr.Bytes())
	require.NoError(t, err)
	require.NotEmpty(t, proof)

	return &ExecutionWitness{
		FirstBlockNumber:  2,
		StateTrieRootNode: proof[0],
		Keys:              proof[1:],
		StorageTrieRoots:  map[common.Address][]byte{},
		CodesHashed:       map[common.Hash][]byte{},
	}, root
}

func TestBuildRebuildsAccountState(t *testing.T) {
	addr := common.HexToAddress("0x1111111111111111111111111111111111111111")
	acc := types.NewEmptyAccount()
	acc.Balance = big.NewInt(77)

	w, root := buildAccountTrieWitness(t, addr, acc)
	parent := &types.Header{Number: big.NewInt(1), Root: root}
	w.AncestorHeaders = []*types.Header{parent}

	g, err := Build(w)
	require.NoError(t, err)

	got, err := g.GetAccountState(addr)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(77), got.Balance)
}

func TestBuildRejectsMismatchedParentRoot(t *testing.T) {
	addr := common.HexToAddress("0x2222222222222222222222222222222222222222")
	acc := types.NewEmptyAccount()
	w, _ := buildAccountTrieWitness(t, addr, acc)
	parent := &types.Header{Number: big.NewInt(1), Root: common.HexToHash("0xdead")}
	w.AncestorHeaders = []*types.Header{parent}

	_, err := Build(w)
	require.Error(t, err)
}

func TestMissingAccountCodeReturnsEmptyNotError(t *testing.T) {
	addr := common.HexToAddress("0x3333333333333333333333333333333333333333")
	acc := types.NewEmptyAccount()
	w, root := buildAccountTrieWitness(t, addr, acc)
	w.AncestorHeaders = []*types.Header{{Number: big.NewInt(1), Root: root}}

	g, err := Build(w)
	require.NoError(t, err)
	require.Empty(t, g.GetAccountCode(common.HexToHash("0xbeef")))
}

func TestBuildAcceptsGenesisWitnessWithNoParent(t *testing.T) {
	addr := common.HexToAddress("0x6666666666666666666666666666666666666666")
	acc := types.NewEmptyAccount()
	acc.Balance = big.NewInt(42)
	w, _ := buildAccountTrieWitness(t, addr, acc)
	w.FirstBlockNumber = 0
	w.AncestorHeaders = nil

	g, err := Build(w)
	require.NoError(t, err)

	got, err := g.GetAccountState(addr)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(42), got.Balance)
}

func TestFirstInvalidBlockHashDetected(t *testing.T) {
	addr := common.HexToAddress("0x4444444444444444444444444444444444444444")
	acc := types.NewEmptyAccount()
	w, root := buildAccountTrieWitness(t, addr, acc)

	good := &types.Header{Number: big.NewInt(1), Root: root}
	bad := &types.Header{Number: big.NewInt(2), Root: root, ParentHash: common.HexToHash("0xbad0")}
	w.AncestorHeaders = []*types.Header{good, bad}
	w.FirstBlockNumber = 3

	_, err := Build(w)
	require.Error(t, err)
	var target *ErrFirstInvalidBlockHash
	require.ErrorAs(t, err, &target)
	require.Equal(t, uint64(2), target.BlockNumber)
}

func TestApplyAccountUpdatesWritesAccountAndStorage(t *testing.T) {
	addr := common.HexToAddress("0x5555555555555555555555555555555555555555")
	acc := types.NewEmptyAccount()
	w, root := buildAccountTrieWitness(t, addr, acc)
	w.AncestorHeaders = []*types.Header{{Number: big.NewInt(1), Root: root}}

	g, err := Build(w)
	require.NoError(t, err)

	updated := types.NewEmptyAccount()
	updated.Nonce = 1
	newRoot, err := g.ApplyAccountUpdates([]AccountUpdate{
		{
			Address: addr,
			Account: updated,
			StorageDiffs: map[common.Hash]common.Hash{
				common.HexToHash("0x01"): common.HexToHash("0x2a"),
			},
		},
	})
	require.NoError(t, err)
	require.NotEqual(t, common.Hash{}, newRoot)

	got, err := g.GetAccountState(addr)
	require.NoError(t, err)
	require.Equal(t, uint64(1), got.Nonce)
	require.NotEqual(t, trie.EmptyRootHash, got.StorageRoot)
}
