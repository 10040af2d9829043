// (c) 2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package types defines the wire-level block, transaction, and receipt
// types shared by every component of the execution core.
package types

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"
	"golang.org/x/crypto/sha3"
)

// Bloom is a 2048-bit logs bloom filter.
type Bloom [256]byte

// BlockNonce is the 64-bit PoW nonce field, carried for legacy header
// compatibility though this core never mines.
type BlockNonce [8]byte

// Header carries all fields of an Ethereum-canonical block header,
// including the post-Cancun/Prague optional fields. Hashing and RLP
// encoding follow the spec's field order exactly so two independent
// implementations of this module produce byte-identical block hashes.
type Header struct {
	ParentHash  common.Hash    `json:"parentHash"`
	UncleHash   common.Hash    `json:"sha3Uncles"`
	Coinbase    common.Address `json:"miner"`
	Root        common.Hash    `json:"stateRoot"`
	TxHash      common.Hash    `json:"transactionsRoot"`
	ReceiptHash common.Hash    `json:"receiptsRoot"`
	Bloom       Bloom          `json:"logsBloom"`
	Difficulty  *big.Int       `json:"difficulty"`
	Number      *big.Int       `json:"number"`
	GasLimit    uint64         `json:"gasLimit"`
	GasUsed     uint64         `json:"gasUsed"`
	Time        uint64         `json:"timestamp"`
	Extra       []byte         `json:"extraData"`
	MixDigest   common.Hash    `json:"mixHash"`
	Nonce       BlockNonce     `json:"nonce"`

	// BaseFee was added by EIP-1559; nil for pre-London headers.
	BaseFee *big.Int `json:"baseFeePerGas" rlp:"optional"`

	// WithdrawalsRoot was added by EIP-4895 (Shanghai).
	WithdrawalsRoot *common.Hash `json:"withdrawalsRoot" rlp:"optional"`

	// BlobGasUsed and ExcessBlobGas were added by EIP-4844 (Cancun).
	BlobGasUsed   *uint64 `json:"blobGasUsed" rlp:"optional"`
	ExcessBlobGas *uint64 `json:"excessBlobGas" rlp:"optional"`

	// ParentBeaconBlockRoot was added by EIP-4788 (Cancun).
	ParentBeaconBlockRoot *common.Hash `json:"parentBeaconBlockRoot" rlp:"optional"`

	// RequestsHash was added by EIP-7685 (Prague).
	RequestsHash *common.Hash `json:"requestsHash" rlp:"optional"`

	// PrevRandao mirrors MixDigest post-Merge; kept as a distinct named
	// accessor since callers reason about it as "prev randao", not PoW
	// mix digest, even though the wire encoding is the same field.
}

// PrevRandao returns the EIP-4399 randomness value, which reuses the
// MixDigest wire slot post-merge.
func (h *Header) PrevRandao() common.Hash { return h.MixDigest }

// encodingFields returns the exact field sequence hashed and RLP-encoded for a
// header. Optional fields are included only when non-nil, matching
// go-ethereum's established forward-compatible header encoding.
func (h *Header) encodingFields() []interface{} {
	fields := []interface{}{
		h.ParentHash, h.UncleHash, h.Coinbase, h.Root, h.TxHash, h.ReceiptHash,
		h.Bloom, h.Difficulty, h.Number, h.GasLimit, h.GasUsed, h.Time,
		h.Extra, h.MixDigest, h.Nonce,
	}
	if h.BaseFee != nil {
		fields = append(fields, h.BaseFee)
	}
	if h.WithdrawalsRoot != nil {
		fields = append(fields, *h.WithdrawalsRoot)
	}
	if h.BlobGasUsed != nil {
		fields = append(fields, *h.BlobGasUsed)
	}
	if h.ExcessBlobGas != nil {
		fields = append(fields, *h.ExcessBlobGas)
	}
	if h.ParentBeaconBlockRoot != nil {
		fields = append(fields, *h.ParentBeaconBlockRoot)
	}
	if h.RequestsHash != nil {
		fields = append(fields, *h.RequestsHash)
	}
	return fields
}

// Hash returns Keccak256(RLP(header fields in spec order)).
func (h *Header) Hash() common.Hash {
	hw := sha3.NewLegacyKeccak256()
	_ = rlp.Encode(hw, h.encodingFields())
	var out common.Hash
	hw.Sum(out[:0])
	return out
}

// CopyHeader returns a deep copy of h.
func CopyHeader(h *Header) *Header {
	cp := *h
	if h.Difficulty != nil {
		cp.Difficulty = new(big.Int).Set(h.Difficulty)
	}
	if h.Number != nil {
		cp.Number = new(big.Int).Set(h.Number)
	}
	if h.BaseFee != nil {
		cp.BaseFee = new(big.Int).Set(h.BaseFee)
	}
	if h.Extra != nil {
		cp.Extra = common.CopyBytes(h.Extra)
	}
	if h.WithdrawalsRoot != nil {
		r := *h.WithdrawalsRoot
		cp.WithdrawalsRoot = &r
	}
	if h.BlobGasUsed != nil {
		v := *h.BlobGasUsed
		cp.BlobGasUsed = &v
	}
	if h.ExcessBlobGas != nil {
		v := *h.ExcessBlobGas
		cp.ExcessBlobGas = &v
	}
	if h.ParentBeaconBlockRoot != nil {
		r := *h.ParentBeaconBlockRoot
		cp.ParentBeaconBlockRoot = &r
	}
	if h.RequestsHash != nil {
		r := *h.RequestsHash
		cp.RequestsHash = &r
	}
	return &cp
}
