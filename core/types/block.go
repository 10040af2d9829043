// (c) 2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package types

import "github.com/ethereum/go-ethereum/common"

// Body is the non-header portion of a block. Ommers are carried for
// pre-merge wire compatibility; this core never produces non-empty ommer
// lists since it targets proof-of-stake / rollup chains.
type Body struct {
	Transactions []*Transaction
	Ommers       []*Header
	Withdrawals  Withdrawals
}

// Block pairs a header with its body. Block itself is never mutated in
// place once constructed; callers that need to change a field build a new
// Block from a copied Header.
type Block struct {
	header *Header
	body   Body

	// cachedHash memoizes header.Hash() since it is read on nearly every
	// hot path (pool lookups, store keys, witness construction).
	cachedHash *common.Hash
}

// NewBlock assembles a Block from a header and body, copying the header so
// callers may freely mutate their own copy afterward.
func NewBlock(header *Header, body Body) *Block {
	return &Block{header: CopyHeader(header), body: body}
}

// NewBlockWithHeader returns a Block with an empty body around a copy of
// header, for callers that attach the body separately.
func NewBlockWithHeader(header *Header) *Block {
	return &Block{header: CopyHeader(header)}
}

// WithBody returns a shallow copy of b with its body replaced.
func (b *Block) WithBody(body Body) *Block {
	return &Block{header: b.header, body: body}
}

func (b *Block) Header() *Header                 { return CopyHeader(b.header) }
func (b *Block) Number() uint64                  { return b.header.Number.Uint64() }
func (b *Block) NumberU64() uint64               { return b.header.Number.Uint64() }
func (b *Block) Time() uint64                    { return b.header.Time }
func (b *Block) ParentHash() common.Hash         { return b.header.ParentHash }
func (b *Block) Root() common.Hash               { return b.header.Root }
func (b *Block) GasLimit() uint64                { return b.header.GasLimit }
func (b *Block) GasUsed() uint64                  { return b.header.GasUsed }
func (b *Block) BaseFee() *uint64 {
	if b.header.BaseFee == nil {
		return nil
	}
	v := b.header.BaseFee.Uint64()
	return &v
}
func (b *Block) Transactions() []*Transaction { return b.body.Transactions }
func (b *Block) Ommers() []*Header            { return b.body.Ommers }
func (b *Block) Withdrawals() Withdrawals     { return b.body.Withdrawals }
func (b *Block) Body() Body                   { return b.body }

// Hash returns the block's header hash, memoized.
func (b *Block) Hash() common.Hash {
	if b.cachedHash != nil {
		return *b.cachedHash
	}
	h := b.header.Hash()
	b.cachedHash = &h
	return h
}

// Transactions is a list of transactions. It has no trie-root helper of its
// own.
type Transactions []*Transaction

// Len, for sort.Interface-style use in callers that order by nonce.
func (s Transactions) Len() int { return len(s) }
