// (c) 2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package consensus implements the header-validation rules a block must
// satisfy relative to its parent: gas-limit bounds, EIP-1559 base fee
// recomputation, monotonic timestamps, and fork-gated field presence.
package consensus

import (
	"fmt"
	"math/big"

	"github.com/luxfi/evmcore/core/types"
	"github.com/luxfi/evmcore/params"
)

// gasLimitBoundDivisor bounds how much the gas limit may change between
// consecutive blocks: strictly less than parent/1024 in either direction.
const gasLimitBoundDivisor = 1024

// MinGasLimit is the protocol floor below which a gas limit may never drop.
const MinGasLimit = 5000

// VerifyHeader checks header against its parent under the fork rules
// active at header's number/time. It does not check the header hash,
// signature, or anything requiring chain context beyond the immediate
// parent.
func VerifyHeader(config *params.ChainConfig, header, parent *types.Header) error {
	if header.Time <= parent.Time {
		return fmt.Errorf("timestamp %d not greater than parent timestamp %d", header.Time, parent.Time)
	}
	if header.Number.Cmp(new(big.Int).Add(parent.Number, big.NewInt(1))) != 0 {
		return fmt.Errorf("block number %d is not parent %d + 1", header.Number, parent.Number)
	}
	if err := VerifyGasLimit(parent.GasLimit, header.GasLimit); err != nil {
		return err
	}
	rules := config.RulesAt(header.Number, header.Time)
	if err := verifyForkFieldPresence(rules, header); err != nil {
		return err
	}
	if rules.IsLondon {
		expected := CalcBaseFee(config, parent)
		if header.BaseFee == nil {
			return fmt.Errorf("missing baseFee on London+ header")
		}
		if header.BaseFee.Cmp(expected) != 0 {
			return fmt.Errorf("invalid baseFee: have %s, want %s", header.BaseFee, expected)
		}
	}
	return nil
}

// VerifyGasLimit checks that child diverges from parent by less than
// parent/gasLimitBoundDivisor, and never drops below MinGasLimit.
func VerifyGasLimit(parentLimit, childLimit uint64) error {
	diff := int64(parentLimit) - int64(childLimit)
	if diff < 0 {
		diff = -diff
	}
	limit := parentLimit / gasLimitBoundDivisor
	if uint64(diff) >= limit {
		return fmt.Errorf("invalid gas limit: have %d, want %d +- %d", childLimit, parentLimit, limit)
	}
	if childLimit < MinGasLimit {
		return fmt.Errorf("invalid gas limit below %d", MinGasLimit)
	}
	return nil
}

// verifyForkFieldPresence enforces that each fork-introduced header field
// is present exactly when its fork is active, never before and never
// omitted after.
func verifyForkFieldPresence(rules params.Rules, header *types.Header) error {
	if rules.IsShanghai && header.WithdrawalsRoot == nil {
		return fmt.Errorf("missing withdrawalsRoot on Shanghai+ header")
	}
	if !rules.IsShanghai && header.WithdrawalsRoot != nil {
		return fmt.Errorf("unexpected withdrawalsRoot before Shanghai")
	}
	if rules.IsCancun {
		if header.BlobGasUsed == nil || header.ExcessBlobGas == nil {
			return fmt.Errorf("missing blob gas fields on Cancun+ header")
		}
		if header.ParentBeaconBlockRoot == nil {
			return fmt.Errorf("missing parentBeaconBlockRoot on Cancun+ header")
		}
	} else if header.BlobGasUsed != nil || header.ExcessBlobGas != nil {
		return fmt.Errorf("unexpected blob gas fields before Cancun")
	}
	if rules.IsPrague && header.RequestsHash == nil {
		return fmt.Errorf("missing requestsHash on Prague+ header")
	}
	if !rules.IsPrague && header.RequestsHash != nil {
		return fmt.Errorf("unexpected requestsHash before Prague")
	}
	return nil
}
