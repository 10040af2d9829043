// (c) 2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package types

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"
	"golang.org/x/crypto/sha3"
)

// ReceiptStatus values, per EIP-658.
const (
	ReceiptStatusFailed     = uint64(0)
	ReceiptStatusSuccessful = uint64(1)
)

// Log is a single EVM log entry.
type Log struct {
	Address common.Address `json:"address"`
	Topics  []common.Hash  `json:"topics"`
	Data    []byte         `json:"data"`

	BlockNumber uint64      `json:"blockNumber"`
	TxHash      common.Hash `json:"transactionHash"`
	TxIndex     uint        `json:"transactionIndex"`
	BlockHash   common.Hash `json:"blockHash"`
	Index       uint        `json:"logIndex"`
	Removed     bool        `json:"removed"`
}

// Receipt records the post-execution outcome of one transaction. Typed
// receipts (Type != Legacy) are RLP-encoded with a leading type byte,
// mirroring the transaction envelope they report on.
type Receipt struct {
	Type              TxType
	PostState         []byte // pre-Byzantium only; empty once Status is used
	Status            uint64
	CumulativeGasUsed uint64
	Bloom             Bloom
	Logs              []*Log

	TxHash          common.Hash
	ContractAddress common.Address
	GasUsed         uint64

	BlobGasUsed  uint64
	BlobGasPrice *uint64 `rlp:"optional"`

	BlockHash        common.Hash
	BlockNumber      *uint64
	TransactionIndex uint
}

// receiptFields returns the consensus encoding: [status_or_post_state,
// cumulative_gas_used, bloom, logs], each log as [address, topics, data].
func (r *Receipt) receiptFields() []interface{} {
	var statusField interface{}
	if len(r.PostState) > 0 {
		statusField = r.PostState
	} else {
		statusField = r.Status
	}
	logs := make([]interface{}, len(r.Logs))
	for i, l := range r.Logs {
		logs[i] = []interface{}{l.Address, l.Topics, l.Data}
	}
	return []interface{}{statusField, r.CumulativeGasUsed, r.Bloom, logs}
}

// MarshalBinary encodes the receipt in its consensus (type-prefixed where
// applicable) form.
func (r *Receipt) MarshalBinary() ([]byte, error) {
	enc, err := rlp.EncodeToBytes(r.receiptFields())
	if err != nil {
		return nil, err
	}
	if r.Type == LegacyTxType {
		return enc, nil
	}
	return append([]byte{byte(r.Type)}, enc...), nil
}

// CreateBloom computes the logs bloom filter for a single receipt from its
// logs (address + each topic contributes three set bits via Keccak256).
func CreateBloom(logs []*Log) Bloom {
	var bloom Bloom
	for _, log := range logs {
		bloomAdd(&bloom, log.Address.Bytes())
		for _, topic := range log.Topics {
			bloomAdd(&bloom, topic.Bytes())
		}
	}
	return bloom
}

func bloomAdd(b *Bloom, data []byte) {
	hash := keccak256Sum(data)
	for i := 0; i < 3; i++ {
		bitIdx := (uint(hash[2*i])<<8 | uint(hash[2*i+1])) & 2047
		b[256-1-bitIdx/8] |= 1 << (bitIdx % 8)
	}
}

func keccak256Sum(data []byte) []byte {
	h := sha3.NewLegacyKeccak256()
	h.Write(data)
	return h.Sum(nil)
}

// MergeBloom ORs child into b in place, used when rolling up per-tx blooms
// into a block's aggregate header bloom.
func MergeBloom(b *Bloom, child Bloom) {
	for i := range b {
		b[i] |= child[i]
	}
}

// Receipts is a list of receipts in transaction-index order. Its trie root
// is computed by the caller, not by this type.
type Receipts []*Receipt
