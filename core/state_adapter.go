// (c) 2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package core

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/luxfi/evmcore/core/state"
	"github.com/luxfi/evmcore/trie"
)

// HeaderByNumber resolves the canonical block hash for a block number
// (nil when none is known), backing
// BLOCKHASH lookups for blocks outside the current batch's in-memory
// cache.
type HeaderByNumber func(number uint64) (*common.Hash, error)

// stateOpener adapts core/state.StateDB, which knows nothing of the chain
// index, into the StateOpener/StateView shape Blockchain needs (which
// additionally requires GetBlockHash).
type stateOpener struct {
	store   trie.NodeStore
	code    state.CodeStore
	headers HeaderByNumber
}

// NewStateOpener builds a StateOpener backed by a trie node store, a code
// store, and a canonical-hash lookup for BLOCKHASH.
func NewStateOpener(store trie.NodeStore, code state.CodeStore, headers HeaderByNumber) StateOpener {
	return &stateOpener{store: store, code: code, headers: headers}
}

func (o *stateOpener) OpenState(root common.Hash) (StateView, error) {
	db, err := state.New(o.store, o.code, root)
	if err != nil {
		return nil, err
	}
	return &stateDBView{StateDB: db, headers: o.headers}, nil
}

// stateDBView adds GetBlockHash to state.StateDB so it satisfies
// capability.StateReader in full.
type stateDBView struct {
	*state.StateDB
	headers HeaderByNumber
}

func (v *stateDBView) GetBlockHash(number uint64) (common.Hash, error) {
	h, err := v.headers(number)
	if err != nil {
		return common.Hash{}, err
	}
	if h == nil {
		return common.Hash{}, nil
	}
	return *h, nil
}
