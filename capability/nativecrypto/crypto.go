// (c) 2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package nativecrypto is the default capability.Crypto implementation,
// wiring real cryptography libraries for every precompile-grade primitive
// instead of hand-rolled math.
package nativecrypto

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"errors"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254"
	dcrsecp256k1 "github.com/decred/dcrd/dcrec/secp256k1/v4"
	dcrecdsa "github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	gokzg4844 "github.com/crate-crypto/go-eth-kzg"
	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/ripemd160" //nolint:staticcheck // retained for precompile parity with mainnet Ethereum
	"golang.org/x/crypto/sha3"

	"github.com/luxfi/evmcore/capability"
)

var (
	ErrInvalidSignature    = errors.New("nativecrypto: invalid signature")
	ErrInvalidRecoveryID   = errors.New("nativecrypto: invalid recovery id")
	ErrRecoveryFailed      = errors.New("nativecrypto: signature recovery failed")
	ErrInvalidPoint        = errors.New("nativecrypto: invalid curve point")
	ErrVerificationFailed  = errors.New("nativecrypto: verification failed")

	// secp256k1HalfN is half the curve order; Ethereum rejects malleable
	// signatures with s above this bound (EIP-2).
	secp256k1HalfN = new(big.Int).Rsh(dcrsecp256k1.S256().N, 1)
)

// Crypto is the concrete capability.Crypto backend. kzgCtx is expensive to
// construct (loads the trusted setup) and is safe for concurrent use, so it
// is built once and shared.
type Crypto struct {
	kzgCtx *gokzg4844.Context
}

// New builds a Crypto instance, loading the default KZG trusted setup used
// by EIP-4844 point-evaluation verification.
func New() (*Crypto, error) {
	ctx, err := gokzg4844.NewContext4096Secure()
	if err != nil {
		return nil, err
	}
	return &Crypto{kzgCtx: ctx}, nil
}

var _ capability.Crypto = (*Crypto)(nil)

func (c *Crypto) Keccak256(data ...[]byte) common.Hash {
	h := sha3.NewLegacyKeccak256()
	for _, d := range data {
		h.Write(d)
	}
	var out common.Hash
	h.Sum(out[:0])
	return out
}

func (c *Crypto) RecoverSender(sigHash common.Hash, v byte, r, s *big.Int) (common.Address, error) {
	if v > 1 {
		return common.Address{}, ErrInvalidRecoveryID
	}
	if s.Cmp(secp256k1HalfN) > 0 {
		return common.Address{}, ErrInvalidSignature
	}
	sig := make([]byte, 65)
	sig[0] = v + 27
	r.FillBytes(sig[1:33])
	s.FillBytes(sig[33:65])

	pub, _, err := dcrecdsa.RecoverCompact(sig, sigHash.Bytes())
	if err != nil {
		return common.Address{}, ErrRecoveryFailed
	}
	uncompressed := pub.SerializeUncompressed() // 0x04 || X || Y
	hash := c.Keccak256(uncompressed[1:])
	var addr common.Address
	copy(addr[:], hash[12:])
	return addr, nil
}

func (c *Crypto) VerifySecp256r1(hash []byte, r, s, x, y *big.Int) bool {
	pub := &ecdsa.PublicKey{Curve: elliptic.P256(), X: x, Y: y}
	return ecdsa.Verify(pub, hash, r, s)
}

func (c *Crypto) Ripemd160(data []byte) []byte {
	h := ripemd160.New()
	h.Write(data)
	return h.Sum(nil)
}

func (c *Crypto) Blake2F(rounds uint32, h [8]uint64, m [16]uint64, t [2]uint64, final bool) [8]uint64 {
	blake2b.F(&h, m, t, final, rounds)
	return h
}

func (c *Crypto) Bn256Add(x1, y1, x2, y2 *big.Int) (*big.Int, *big.Int, error) {
	p1, err := newG1Affine(x1, y1)
	if err != nil {
		return nil, nil, err
	}
	p2, err := newG1Affine(x2, y2)
	if err != nil {
		return nil, nil, err
	}
	var res bn254.G1Affine
	res.Add(p1, p2)
	return res.X.BigInt(new(big.Int)), res.Y.BigInt(new(big.Int)), nil
}

func (c *Crypto) Bn256ScalarMul(x1, y1 *big.Int, scalar *big.Int) (*big.Int, *big.Int, error) {
	p, err := newG1Affine(x1, y1)
	if err != nil {
		return nil, nil, err
	}
	var res bn254.G1Affine
	res.ScalarMultiplication(p, scalar)
	return res.X.BigInt(new(big.Int)), res.Y.BigInt(new(big.Int)), nil
}

// Bn256Pairing checks e(a1,b1)*e(a2,b2)*...== 1 for the given G1/G2 point
// pairs, per the alt_bn128_pairing precompile's wire layout.
func (c *Crypto) Bn256Pairing(pairs []capability.Bn254Pair) (bool, error) {
	if len(pairs) == 0 {
		return true, nil
	}
	g1s := make([]bn254.G1Affine, 0, len(pairs))
	g2s := make([]bn254.G2Affine, 0, len(pairs))
	for _, p := range pairs {
		g1, err := newG1Affine(p.G1X, p.G1Y)
		if err != nil {
			return false, err
		}
		g2, err := newG2Affine(p.G2XIm, p.G2XRe, p.G2YIm, p.G2YRe)
		if err != nil {
			return false, err
		}
		g1s = append(g1s, *g1)
		g2s = append(g2s, *g2)
	}
	ok, err := bn254.PairingCheck(g1s, g2s)
	if err != nil {
		return false, err
	}
	return ok, nil
}

func newG1Affine(x, y *big.Int) (*bn254.G1Affine, error) {
	var p bn254.G1Affine
	p.X.SetBigInt(x)
	p.Y.SetBigInt(y)
	if !p.IsOnCurve() {
		return nil, ErrInvalidPoint
	}
	return &p, nil
}

// newG2Affine builds a G2 point from the EVM's (x_im, x_re, y_im, y_re)
// encoding order; gnark-crypto's E2 field elements store the real part in
// A0 and the imaginary part in A1.
func newG2Affine(xIm, xRe, yIm, yRe *big.Int) (*bn254.G2Affine, error) {
	var p bn254.G2Affine
	p.X.A0.SetBigInt(xRe)
	p.X.A1.SetBigInt(xIm)
	p.Y.A0.SetBigInt(yRe)
	p.Y.A1.SetBigInt(yIm)
	if !p.IsOnCurve() {
		return nil, ErrInvalidPoint
	}
	return &p, nil
}

// KZGVerify backs the EIP-4844 point-evaluation precompile.
func (c *Crypto) KZGVerify(commitment, z, y [48]byte, proof [48]byte) error {
	var zBytes gokzg4844.Scalar
	copy(zBytes[:], z[:32])
	var yBytes gokzg4844.Scalar
	copy(yBytes[:], y[:32])
	err := c.kzgCtx.VerifyKZGProof(gokzg4844.KZGCommitment(commitment), zBytes, yBytes, gokzg4844.KZGProof(proof))
	if err != nil {
		return ErrVerificationFailed
	}
	return nil
}
