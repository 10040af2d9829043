// (c) 2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package trie

// expandSIMD and packSIMD exist as named seams for a vectorized
// implementation of nibble expansion/packing. The spec only requires that
// any such implementation agree with the scalar one; this module ships the
// scalar fallback as both, since byte-slice SIMD gains are not worth the
// portability cost for a systems-core library (see DESIGN.md). The split is
// kept so a future assembly/intrinsics backend can replace just these two
// functions without touching Nibbles' public API.

func expandSIMD(b []byte, out []byte) { expandScalar(b, out) }

func packSIMD(nibbles []byte, out []byte) { packScalar(nibbles, out) }
