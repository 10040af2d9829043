// (c) 2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package types

import (
	"crypto/sha256"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/crypto/sha3"
)

// CalcRequestsHash computes the Prague (EIP-7685) requests hash: the SHA256
// digest of the concatenated Keccak256 hashes of each type-prefixed request,
// in the order execution produced them. An empty request set hashes the
// empty concatenation, matching an empty-but-present requests list.
func CalcRequestsHash(requests [][]byte) common.Hash {
	h := sha256.New()
	for _, r := range requests {
		k := sha3.NewLegacyKeccak256()
		k.Write(r)
		h.Write(k.Sum(nil))
	}
	var out common.Hash
	h.Sum(out[:0])
	return out
}
