// (c) 2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package consensus

import (
	"math/big"

	"github.com/luxfi/evmcore/core/types"
	"github.com/luxfi/evmcore/params"
)

// initialBaseFee is the base fee assigned to the first London-era block,
// per EIP-1559.
var initialBaseFee = big.NewInt(1_000_000_000)

// CalcBaseFee computes the base fee for a block built on top of parent,
// per EIP-1559: the fee rises or falls relative to how far parent's gas
// usage sat from its elastic target, bounded by 1/denominator per block.
func CalcBaseFee(config *params.ChainConfig, parent *types.Header) *big.Int {
	if parent.BaseFee == nil {
		// Parent predates London: this is the fork's first block.
		return new(big.Int).Set(initialBaseFee)
	}

	elasticity := config.ElasticityMultiplierOrDefault()
	denom := config.BaseFeeChangeDenominatorOrDefault()
	parentGasTarget := parent.GasLimit / elasticity

	if parent.GasUsed == parentGasTarget {
		return new(big.Int).Set(parent.BaseFee)
	}

	if parent.GasUsed > parentGasTarget {
		gasUsedDelta := parent.GasUsed - parentGasTarget
		x := new(big.Int).Mul(parent.BaseFee, big.NewInt(int64(gasUsedDelta)))
		y := x.Div(x, big.NewInt(int64(parentGasTarget)))
		baseFeeDelta := bigMax(y.Div(y, big.NewInt(int64(denom))), big.NewInt(1))
		return x.Add(parent.BaseFee, baseFeeDelta)
	}

	gasUsedDelta := parentGasTarget - parent.GasUsed
	x := new(big.Int).Mul(parent.BaseFee, big.NewInt(int64(gasUsedDelta)))
	y := x.Div(x, big.NewInt(int64(parentGasTarget)))
	baseFeeDelta := y.Div(y, big.NewInt(int64(denom)))
	return bigMax(x.Sub(parent.BaseFee, baseFeeDelta), big.NewInt(0))
}

func bigMax(a, b *big.Int) *big.Int {
	if a.Cmp(b) >= 0 {
		return a
	}
	return b
}
