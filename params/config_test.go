// (c) 2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package params

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

func shanghaiTime(t uint64) *uint64 { return &t }

func TestForkGatingByBlock(t *testing.T) {
	cfg := &ChainConfig{
		ChainID:        big.NewInt(1337),
		HomesteadBlock: big.NewInt(0),
		LondonBlock:    big.NewInt(100),
	}
	require.True(t, cfg.IsHomestead(big.NewInt(0)))
	require.False(t, cfg.IsLondon(big.NewInt(99)))
	require.True(t, cfg.IsLondon(big.NewInt(100)))
	require.True(t, cfg.IsLondon(big.NewInt(101)))
}

func TestForkGatingByTime(t *testing.T) {
	cfg := &ChainConfig{ChainID: big.NewInt(1), ShanghaiTime: shanghaiTime(1000)}
	require.False(t, cfg.IsShanghai(999))
	require.True(t, cfg.IsShanghai(1000))
}

func TestRulesAtSnapshotsAllForks(t *testing.T) {
	cfg := &ChainConfig{
		ChainID:      big.NewInt(1),
		LondonBlock:  big.NewInt(10),
		ShanghaiTime: shanghaiTime(500),
		CancunTime:   shanghaiTime(600),
	}
	r := cfg.RulesAt(big.NewInt(20), 550)
	require.True(t, r.IsLondon)
	require.True(t, r.IsShanghai)
	require.False(t, r.IsCancun)
}

func TestIsL2RequiresBridgeAddress(t *testing.T) {
	cfg := &ChainConfig{ChainID: big.NewInt(1)}
	require.False(t, cfg.IsL2())
	var addr [20]byte
	cfg.L1BridgeAddress = &addr
	require.True(t, cfg.IsL2())
}

func TestBaseFeeDefaults(t *testing.T) {
	cfg := &ChainConfig{ChainID: big.NewInt(1)}
	require.Equal(t, uint64(8), cfg.BaseFeeChangeDenominatorOrDefault())
	require.Equal(t, uint64(2), cfg.ElasticityMultiplierOrDefault())
}
