// (c) 2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package nativecrypto

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/evmcore/capability"
)

func TestKeccak256OfEmptyInput(t *testing.T) {
	c := &Crypto{}
	got := c.Keccak256()
	require.Equal(t, "c5d2460186f7233c927e7db2dcc703c0e500b653ca82273b7bfad8045d85a470", got.Hex()[2:])
}

func TestRipemd160OfEmptyInput(t *testing.T) {
	c := &Crypto{}
	got := c.Ripemd160(nil)
	require.Equal(t, "9c1185a5c5e9fc54612808977ee8f548b2258d31", hexString(got))
}

func hexString(b []byte) string {
	const hexdigits = "0123456789abcdef"
	out := make([]byte, len(b)*2)
	for i, v := range b {
		out[i*2] = hexdigits[v>>4]
		out[i*2+1] = hexdigits[v&0xf]
	}
	return string(out)
}

func TestBn256AddRejectsPointNotOnCurve(t *testing.T) {
	c := &Crypto{}
	_, _, err := c.Bn256Add(big.NewInt(1), big.NewInt(1), big.NewInt(1), big.NewInt(2))
	require.ErrorIs(t, err, ErrInvalidPoint)
}

func TestBn256AddAcceptsGeneratorPoint(t *testing.T) {
	// (1, 2) is the standard BN254/alt_bn128 G1 generator: 2^2 == 1^3 + 3.
	c := &Crypto{}
	x, y, err := c.Bn256Add(big.NewInt(1), big.NewInt(2), big.NewInt(1), big.NewInt(2))
	require.NoError(t, err)
	require.NotNil(t, x)
	require.NotNil(t, y)
}

func TestBn256PairingEmptyIsTriviallyTrue(t *testing.T) {
	c := &Crypto{}
	ok, err := c.Bn256Pairing(nil)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestBn256PairingRejectsG2PointNotOnCurve(t *testing.T) {
	// Before the fix, every pair's G2 operand was silently replaced with the
	// zero value and never validated; an out-of-curve G2 input must now be
	// rejected rather than silently accepted.
	c := &Crypto{}
	_, err := c.Bn256Pairing([]capability.Bn254Pair{{
		G1X: big.NewInt(1), G1Y: big.NewInt(2),
		G2XIm: big.NewInt(1), G2XRe: big.NewInt(1),
		G2YIm: big.NewInt(1), G2YRe: big.NewInt(1),
	}})
	require.ErrorIs(t, err, ErrInvalidPoint)
}
