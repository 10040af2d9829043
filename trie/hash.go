// (c) 2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package trie

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"
	"golang.org/x/crypto/sha3"
)

// keccak256 is the sole hashing primitive used by the trie, per spec.
// core/types uses the same legacy Keccak-256 from golang.org/x/crypto/sha3
// through its own helper, so that two independent implementations of this
// module produce byte-identical hashes.
func keccak256(data ...[]byte) common.Hash {
	h := sha3.NewLegacyKeccak256()
	for _, d := range data {
		h.Write(d)
	}
	var out common.Hash
	h.Sum(out[:0])
	return out
}

// emptyRootRLP is RLP("") — the canonical empty-trie value node.
var emptyRootRLP = []byte{0x80}

// EmptyRootHash is the root hash of a trie containing no entries:
// Keccak256(RLP("")).
var EmptyRootHash = keccak256(emptyRootRLP)

// rlpNode builds the RLP-encodable shape of a node, recursing through
// embedded children. Hash references are represented as their raw hash bytes;
// embedded children are represented as their own nested list.
func rlpNode(n node) interface{} {
	switch v := n.(type) {
	case *leafNode:
		return []interface{}{v.Path.CompactEncode(), v.Value}
	case *extensionNode:
		return []interface{}{v.Path.CompactEncode(), rlpRef(v.Child)}
	case *branchNode:
		out := make([]interface{}, 17)
		for i, c := range v.Children {
			out[i] = rlpRef(c)
		}
		if v.Value != nil {
			out[16] = v.Value
		} else {
			out[16] = []byte{}
		}
		return out
	case nil:
		return []byte{}
	default:
		panic("trie: unknown node type")
	}
}

func rlpRef(r nodeRef) interface{} {
	if r.isEmpty() {
		return []byte{}
	}
	if r.isHash() {
		return r.hash.Bytes()
	}
	return rlpNode(r.embedded)
}

// encodeNode returns the canonical RLP encoding of n.
func encodeNode(n node) []byte {
	enc, err := rlp.EncodeToBytes(rlpNode(n))
	if err != nil {
		// Encoding a well-formed in-memory node tree never fails.
		panic(err)
	}
	return enc
}

// hashNodeRLP returns the 32-byte Keccak hash of a node's RLP encoding.
func hashNodeRLP(n node) common.Hash {
	return keccak256(encodeNode(n))
}

// HashOfEncodedNode returns the Keccak256 hash of an already-RLP-encoded
// node, the key under which a witness's raw node table is indexed.
func HashOfEncodedNode(enc []byte) common.Hash {
	return keccak256(enc)
}

// refFor decides, per the trie's embedding rule, whether n should be stored
// as an inline embedded reference (RLP < 32 bytes) or a hash reference.
func refFor(n node) nodeRef {
	if n == nil {
		return emptyRef()
	}
	enc := encodeNode(n)
	if len(enc) < 32 {
		return embeddedRef(n)
	}
	return dirtyHashRef(n, keccak256(enc))
}
