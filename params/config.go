// (c) 2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package params defines the chain configuration and fork-activation gating
// used by block validation and execution. Unlike a node that runs a single
// fixed ruleset forever, this core must decide per-block which EIP set
// applies, so every fork flag here is a genuine activation predicate rather
// than an always-on constant.
package params

import "math/big"

// ChainConfig describes a chain's identity and fork schedule. Block-gated
// forks activate at a block number; post-merge forks activate at a block
// timestamp, matching how Ethereum itself switched from block- to
// time-based activation at the Paris (merge) boundary.
type ChainConfig struct {
	ChainID *big.Int `json:"chainId"`

	HomesteadBlock *big.Int `json:"homesteadBlock,omitempty"`
	EIP150Block    *big.Int `json:"eip150Block,omitempty"`
	EIP155Block    *big.Int `json:"eip155Block,omitempty"`
	EIP158Block    *big.Int `json:"eip158Block,omitempty"`
	ByzantiumBlock *big.Int `json:"byzantiumBlock,omitempty"`
	BerlinBlock    *big.Int `json:"berlinBlock,omitempty"`
	LondonBlock    *big.Int `json:"londonBlock,omitempty"`

	ShanghaiTime *uint64 `json:"shanghaiTime,omitempty"`
	CancunTime   *uint64 `json:"cancunTime,omitempty"`
	PragueTime   *uint64 `json:"pragueTime,omitempty"`

	// L2-only: when non-nil this chain accepts PrivilegedL2 transactions
	// originating from the given L1 bridge contract.
	L1BridgeAddress *[20]byte `json:"l1BridgeAddress,omitempty"`

	// EIP-1559 elasticity/denominator; zero means use the Ethereum mainnet
	// defaults (BaseFeeChangeDenominator=8, ElasticityMultiplier=2).
	BaseFeeChangeDenominator uint64 `json:"baseFeeChangeDenominator,omitempty"`
	ElasticityMultiplier     uint64 `json:"elasticityMultiplier,omitempty"`
}

func isBlockActivated(fork *big.Int, num *big.Int) bool {
	return fork != nil && num != nil && fork.Cmp(num) <= 0
}

func isTimeActivated(fork *uint64, time uint64) bool {
	return fork != nil && *fork <= time
}

func (c *ChainConfig) IsHomestead(num *big.Int) bool { return isBlockActivated(c.HomesteadBlock, num) }
func (c *ChainConfig) IsEIP150(num *big.Int) bool     { return isBlockActivated(c.EIP150Block, num) }
func (c *ChainConfig) IsEIP155(num *big.Int) bool     { return isBlockActivated(c.EIP155Block, num) }
func (c *ChainConfig) IsEIP158(num *big.Int) bool     { return isBlockActivated(c.EIP158Block, num) }
func (c *ChainConfig) IsByzantium(num *big.Int) bool  { return isBlockActivated(c.ByzantiumBlock, num) }
func (c *ChainConfig) IsBerlin(num *big.Int) bool     { return isBlockActivated(c.BerlinBlock, num) }
func (c *ChainConfig) IsLondon(num *big.Int) bool     { return isBlockActivated(c.LondonBlock, num) }

func (c *ChainConfig) IsShanghai(time uint64) bool { return isTimeActivated(c.ShanghaiTime, time) }
func (c *ChainConfig) IsCancun(time uint64) bool   { return isTimeActivated(c.CancunTime, time) }
func (c *ChainConfig) IsPrague(time uint64) bool   { return isTimeActivated(c.PragueTime, time) }

// IsL2 reports whether this chain config accepts privileged L2 transactions
// and runs an L1 watcher.
func (c *ChainConfig) IsL2() bool { return c.L1BridgeAddress != nil }

// Rules is the resolved, block-specific view of ChainConfig used by
// validation and execution: a flat snapshot instead of repeated predicate
// calls against raw fork blocks/times.
type Rules struct {
	ChainID                              *big.Int
	IsHomestead, IsEIP150, IsEIP155, IsEIP158 bool
	IsByzantium, IsBerlin, IsLondon       bool
	IsShanghai, IsCancun, IsPrague        bool
	IsL2                                  bool
}

// RulesAt resolves the Rules in effect for a block with the given number
// and timestamp.
func (c *ChainConfig) RulesAt(num *big.Int, time uint64) Rules {
	return Rules{
		ChainID:     c.ChainID,
		IsHomestead: c.IsHomestead(num),
		IsEIP150:    c.IsEIP150(num),
		IsEIP155:    c.IsEIP155(num),
		IsEIP158:    c.IsEIP158(num),
		IsByzantium: c.IsByzantium(num),
		IsBerlin:    c.IsBerlin(num),
		IsLondon:    c.IsLondon(num),
		IsShanghai:  c.IsShanghai(time),
		IsCancun:    c.IsCancun(time),
		IsPrague:    c.IsPrague(time),
		IsL2:        c.IsL2(),
	}
}

// BaseFeeChangeDenominatorOrDefault returns the configured denominator or
// the Ethereum mainnet default of 8.
func (c *ChainConfig) BaseFeeChangeDenominatorOrDefault() uint64 {
	if c.BaseFeeChangeDenominator != 0 {
		return c.BaseFeeChangeDenominator
	}
	return 8
}

// ElasticityMultiplierOrDefault returns the configured multiplier or the
// Ethereum mainnet default of 2.
func (c *ChainConfig) ElasticityMultiplierOrDefault() uint64 {
	if c.ElasticityMultiplier != 0 {
		return c.ElasticityMultiplier
	}
	return 2
}
