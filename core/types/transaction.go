// (c) 2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package types

import (
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/holiman/uint256"
	"golang.org/x/crypto/sha3"
)

// TxType identifies a transaction's envelope. The typed envelopes 0x01-0x04
// match their EIP-2718 type-prefix byte exactly, Legacy (0x00) is written
// without a prefix byte, and PrivilegedL2 is an L2-only envelope
// that never appears on the L1 wire and carries no signature.
type TxType byte

const (
	LegacyTxType       TxType = 0x00
	AccessListTxType   TxType = 0x01
	DynamicFeeTxType   TxType = 0x02
	BlobTxType         TxType = 0x03
	SetCodeTxType      TxType = 0x04
	PrivilegedL2TxType TxType = 0x7e
)

var ErrTxTypeNotSupported = errors.New("transaction type not supported")

// AccessTuple is one entry of an EIP-2930 access list.
type AccessTuple struct {
	Address     common.Address `json:"address"`
	StorageKeys []common.Hash  `json:"storageKeys"`
}

// AccessList is an EIP-2930 access list.
type AccessList []AccessTuple

// StorageKeyCount returns the total number of storage keys across all
// entries, used for intrinsic gas accounting.
func (al AccessList) StorageKeyCount() int {
	n := 0
	for _, t := range al {
		n += len(t.StorageKeys)
	}
	return n
}

// SetCodeAuthorization is an EIP-7702 authorization tuple.
type SetCodeAuthorization struct {
	ChainID common.Hash
	Address common.Address
	Nonce   uint64
	V       uint8
	R, S    uint256.Int
}

// Transaction is the tagged union of all supported envelopes. Only the
// fields relevant to Type are populated; this flat representation (rather
// than one concrete Go type per envelope) keeps RLP/JSON (de)serialization
// centralized while still letting callers switch on Type for the
// type-specific rules the spec requires (blob accounting, 7702
// authorizations, privileged bypass).
type Transaction struct {
	Type TxType

	ChainID   *big.Int
	Nonce     uint64
	GasTipCap *big.Int // max_priority_fee_per_gas; also legacy gasPrice when GasFeeCap is nil
	GasFeeCap *big.Int // max_fee_per_gas
	Gas       uint64
	To        *common.Address // nil means contract creation
	Value     *big.Int
	Data      []byte

	AccessList AccessList

	// EIP-4844 (blob) fields.
	BlobFeeCap     *big.Int
	BlobHashes     []common.Hash
	BlobSidecarRef *common.Hash // hash key into the mempool's blob sidecar table

	// EIP-7702 fields.
	AuthList []SetCodeAuthorization

	// PrivilegedL2 fields: no signature, sender set directly from the
	// L1 bridge event that originated the transaction.
	PrivilegedFrom   common.Address
	PrivilegedL1Nonce uint64 // the L1 bridge message id, used as the L2 nonce

	// Signature, absent for PrivilegedL2.
	V, R, S *big.Int

	cachedHash   *common.Hash
	cachedSender *common.Address
}

// GasPrice returns the effective gas price field used for legacy-style
// cost accounting: GasTipCap (which aliases gasPrice) for legacy and
// access-list transactions, GasFeeCap for every other type.
func (tx *Transaction) GasPrice() *big.Int {
	if tx.Type == LegacyTxType || tx.Type == AccessListTxType {
		return tx.GasTipCap
	}
	return tx.GasFeeCap
}

// EffectiveGasTip returns min(GasTipCap, GasFeeCap-baseFee).
func (tx *Transaction) EffectiveGasTip(baseFee *big.Int) *big.Int {
	if baseFee == nil {
		return new(big.Int).Set(tx.GasTipCap)
	}
	headroom := new(big.Int).Sub(tx.effectiveFeeCap(), baseFee)
	if headroom.Sign() < 0 {
		return headroom
	}
	if tx.GasTipCap.Cmp(headroom) < 0 {
		return new(big.Int).Set(tx.GasTipCap)
	}
	return headroom
}

func (tx *Transaction) effectiveFeeCap() *big.Int {
	if tx.GasFeeCap != nil {
		return tx.GasFeeCap
	}
	return tx.GasTipCap
}

// Cost returns value + gas_limit*gas_price (+ blob_gas*blob_gas_price for
// blob transactions), the upper bound a sender's balance must cover.
func (tx *Transaction) Cost() *big.Int {
	total := new(big.Int).Mul(tx.effectiveFeeCap(), new(big.Int).SetUint64(tx.Gas))
	total.Add(total, tx.Value)
	if tx.Type == BlobTxType {
		blobGas := new(big.Int).SetUint64(GasPerBlob * uint64(len(tx.BlobHashes)))
		total.Add(total, new(big.Int).Mul(blobGas, tx.BlobFeeCap))
	}
	return total
}

// GasPerBlob is the EIP-4844 gas cost charged per blob.
const GasPerBlob = 1 << 17 // 131072

// IsContractCreation reports whether To is nil.
func (tx *Transaction) IsContractCreation() bool { return tx.To == nil }

// signingFields returns the RLP payload that is signed (sans signature)
// and hashed (with signature, envelope-prefixed) for non-privileged types.
func (tx *Transaction) signingFields(withSignature bool) []interface{} {
	var f []interface{}
	switch tx.Type {
	case LegacyTxType:
		f = []interface{}{tx.Nonce, tx.GasTipCap, tx.Gas, tx.To, tx.Value, tx.Data}
		if !withSignature {
			f = append(f, tx.ChainID, uint(0), uint(0))
		}
	case AccessListTxType:
		f = []interface{}{tx.ChainID, tx.Nonce, tx.GasTipCap, tx.Gas, tx.To, tx.Value, tx.Data, tx.AccessList}
	case DynamicFeeTxType:
		f = []interface{}{tx.ChainID, tx.Nonce, tx.GasTipCap, tx.GasFeeCap, tx.Gas, tx.To, tx.Value, tx.Data, tx.AccessList}
	case BlobTxType:
		f = []interface{}{tx.ChainID, tx.Nonce, tx.GasTipCap, tx.GasFeeCap, tx.Gas, tx.To, tx.Value, tx.Data, tx.AccessList, tx.BlobFeeCap, tx.BlobHashes}
	case SetCodeTxType:
		f = []interface{}{tx.ChainID, tx.Nonce, tx.GasTipCap, tx.GasFeeCap, tx.Gas, tx.To, tx.Value, tx.Data, tx.AccessList, tx.AuthList}
	case PrivilegedL2TxType:
		f = []interface{}{tx.ChainID, tx.PrivilegedL1Nonce, tx.PrivilegedFrom, tx.To, tx.Value, tx.Data, tx.Gas}
		return f
	}
	if withSignature {
		f = append(f, tx.V, tx.R, tx.S)
	}
	return f
}

// SigningHash returns the hash that must be signed (or, for a privileged
// transaction, the deterministic identity hash derived from its L1
// origin — privileged transactions carry no signature).
func (tx *Transaction) SigningHash() common.Hash {
	hw := sha3.NewLegacyKeccak256()
	if tx.Type != LegacyTxType {
		hw.Write([]byte{byte(tx.Type)})
	}
	_ = rlp.Encode(hw, tx.signingFields(false))
	var out common.Hash
	hw.Sum(out[:0])
	return out
}

// Hash returns the transaction's canonical hash (cached after first call).
func (tx *Transaction) Hash() common.Hash {
	if tx.cachedHash != nil {
		return *tx.cachedHash
	}
	hw := sha3.NewLegacyKeccak256()
	if tx.Type != LegacyTxType {
		hw.Write([]byte{byte(tx.Type)})
	}
	_ = rlp.Encode(hw, tx.signingFields(true))
	var out common.Hash
	hw.Sum(out[:0])
	tx.cachedHash = &out
	return out
}

// SenderRecoverer is the minimal signature-recovery capability the
// transaction type needs to derive its sender; satisfied by
// capability.Crypto without this package importing it back.
type SenderRecoverer interface {
	RecoverSender(sigHash common.Hash, v byte, r, s *big.Int) (common.Address, error)
}

// Sender recovers and caches the transaction's sender. PrivilegedL2
// transactions carry no signature; their sender is PrivilegedFrom as set by
// the L1 watcher that originated them.
func (tx *Transaction) Sender(c SenderRecoverer) (common.Address, error) {
	if tx.Type == PrivilegedL2TxType {
		return tx.PrivilegedFrom, nil
	}
	if tx.cachedSender != nil {
		return *tx.cachedSender, nil
	}
	v := normalizeRecoveryID(tx.Type, tx.V)
	addr, err := c.RecoverSender(tx.SigningHash(), v, tx.R, tx.S)
	if err != nil {
		return common.Address{}, err
	}
	tx.cachedSender = &addr
	return addr, nil
}

// normalizeRecoveryID converts a transaction's V field to the {0,1}
// recovery id ecrecover expects: legacy transactions may encode EIP-155
// chain-replay protection into V (v = 35 + 2*chainID + recoveryID, or the
// pre-EIP-155 27/28), while typed transactions encode the recovery id
// directly.
func normalizeRecoveryID(t TxType, v *big.Int) byte {
	if t == LegacyTxType {
		if v.BitLen() <= 8 && (v.Uint64() == 27 || v.Uint64() == 28) {
			return byte(v.Uint64() - 27)
		}
		// EIP-155: v = chainId*2 + 35 + recoveryId
		tmp := new(big.Int).Sub(v, big.NewInt(35))
		return byte(new(big.Int).Mod(tmp, big.NewInt(2)).Uint64())
	}
	return byte(v.Uint64())
}

// IntrinsicGas computes the 21000-base gas cost plus data, access-list,
// contract-creation, and 7702-authorization overheads.
func (tx *Transaction) IntrinsicGas(isShanghai, isContractCreation bool) (uint64, error) {
	const (
		txGas                = 21000
		txGasContractCreation = 53000
		txDataZeroGas        = 4
		txDataNonZeroGasEIP2028 = 16
		txAccessListAddressGas = 2400
		txAccessListStorageKeyGas = 1900
		perEmptyAccountCost  = 25000
	)
	var gas uint64
	if isContractCreation {
		gas = txGasContractCreation
	} else {
		gas = txGas
	}
	var zeroes, nonZeroes uint64
	for _, b := range tx.Data {
		if b == 0 {
			zeroes++
		} else {
			nonZeroes++
		}
	}
	gas += zeroes * txDataZeroGas
	gas += nonZeroes * txDataNonZeroGasEIP2028
	gas += uint64(len(tx.AccessList)) * txAccessListAddressGas
	gas += uint64(tx.AccessList.StorageKeyCount()) * txAccessListStorageKeyGas
	gas += uint64(len(tx.AuthList)) * perEmptyAccountCost
	return gas, nil
}
