// (c) 2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package trie

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

func TestEmptyTrieHash(t *testing.T) {
	tr := New(NewMemNodeStore())
	require.Equal(t, EmptyRootHash, tr.HashNoCommit())
}

// TestKnownVector reproduces the canonical Ethereum trie test vector: after
// inserting {do:verb, dog:puppy, doge:coin, horse:stallion} the trie root
// must equal the well-known constant shared across Ethereum client test
// suites.
func TestKnownVector(t *testing.T) {
	tr := New(NewMemNodeStore())
	entries := []struct{ k, v string }{
		{"do", "verb"},
		{"dog", "puppy"},
		{"doge", "coin"},
		{"horse", "stallion"},
	}
	var root common.Hash
	var err error
	for _, e := range entries {
		root, err = tr.Insert([]byte(e.k), []byte(e.v))
		require.NoError(t, err)
	}
	want := common.HexToHash("0x5991bb8c6514148a29db676a14ac506cd2cd5775ace63c30a4fe457715e9ac84")
	require.Equal(t, want, root)

	for _, e := range entries {
		got, err := tr.Get([]byte(e.k))
		require.NoError(t, err)
		require.Equal(t, e.v, string(got))
	}
}

func TestInsertRemoveEmptiesTrie(t *testing.T) {
	tr := New(NewMemNodeStore())
	_, err := tr.Insert([]byte("key"), []byte("value"))
	require.NoError(t, err)
	root, err := tr.Remove([]byte("key"))
	require.NoError(t, err)
	require.Equal(t, EmptyRootHash, root)
}

func TestInsertEmptyValueIsRemove(t *testing.T) {
	tr := New(NewMemNodeStore())
	_, err := tr.Insert([]byte("key"), []byte("value"))
	require.NoError(t, err)
	root, err := tr.Insert([]byte("key"), []byte{})
	require.NoError(t, err)
	require.Equal(t, EmptyRootHash, root)
}

func TestDeterminismAcrossInsertOrder(t *testing.T) {
	pairs := map[string]string{
		"alpha": "1", "alphabet": "2", "beta": "3", "b": "4", "bee": "5",
	}
	keys := make([]string, 0, len(pairs))
	for k := range pairs {
		keys = append(keys, k)
	}

	buildRoot := func(order []string) common.Hash {
		tr := New(NewMemNodeStore())
		var root common.Hash
		for _, k := range order {
			var err error
			root, err = tr.Insert([]byte(k), []byte(pairs[k]))
			require.NoError(t, err)
		}
		return root
	}

	rootA := buildRoot(keys)
	reversed := make([]string, len(keys))
	for i, k := range keys {
		reversed[len(keys)-1-i] = k
	}
	rootB := buildRoot(reversed)
	require.Equal(t, rootA, rootB)
}

func TestCommitThenReopenMatchesHash(t *testing.T) {
	store := NewMemNodeStore()
	tr := New(store)
	var root common.Hash
	for _, kv := range [][2]string{{"aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", "1"}, {"aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaab", "2"}} {
		var err error
		root, err = tr.Insert([]byte(kv[0]), []byte(kv[1]))
		require.NoError(t, err)
	}
	committed, err := tr.Commit()
	require.NoError(t, err)
	require.Equal(t, root, committed)

	reopened := NewFromRoot(store, committed)
	v, err := reopened.Get([]byte("aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"))
	require.NoError(t, err)
	require.Equal(t, "1", string(v))
	require.Equal(t, committed, reopened.HashNoCommit())
}

func TestProveReturnsNodePath(t *testing.T) {
	tr := New(NewMemNodeStore())
	_, err := tr.Insert([]byte("do"), []byte("verb"))
	require.NoError(t, err)
	_, err = tr.Insert([]byte("dog"), []byte("puppy"))
	require.NoError(t, err)

	proof, err := tr.Prove([]byte("dog"))
	require.NoError(t, err)
	require.NotEmpty(t, proof)
}

func TestMissingNodeErrorSurfaced(t *testing.T) {
	store := NewMemNodeStore()
	tr := New(store)
	_, err := tr.Insert([]byte("aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"), []byte("1"))
	require.NoError(t, err)
	root, err := tr.Commit()
	require.NoError(t, err)

	emptyStore := NewMemNodeStore()
	reopened := NewFromRoot(emptyStore, root)
	_, err = reopened.Get([]byte("aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"))
	require.Error(t, err)
	var missing *MissingNodeError
	require.ErrorAs(t, err, &missing)
}
