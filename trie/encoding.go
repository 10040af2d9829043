// (c) 2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package trie

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"
)

// decodeNode parses the canonical RLP encoding of a single node (leaf,
// extension, or branch) as produced by encodeNode.
func decodeNode(enc []byte) (node, error) {
	var elems []rlp.RawValue
	if err := rlp.DecodeBytes(enc, &elems); err != nil {
		return nil, &DecodingError{Cause: err}
	}
	switch len(elems) {
	case 2:
		return decodeShort(elems)
	case 17:
		return decodeBranch(elems)
	default:
		return nil, &DecodingError{Cause: fmt.Errorf("invalid node: %d elements", len(elems))}
	}
}

func decodeShort(elems []rlp.RawValue) (node, error) {
	var pathEnc []byte
	if err := rlp.DecodeBytes(elems[0], &pathEnc); err != nil {
		return nil, &DecodingError{Cause: err}
	}
	path := CompactDecode(pathEnc)
	if path.IsLeaf() {
		var value []byte
		if err := rlp.DecodeBytes(elems[1], &value); err != nil {
			return nil, &DecodingError{Cause: err}
		}
		return &leafNode{Path: path, Value: value}, nil
	}
	ref, err := decodeRef(elems[1])
	if err != nil {
		return nil, err
	}
	return &extensionNode{Path: path, Child: ref}, nil
}

func decodeBranch(elems []rlp.RawValue) (node, error) {
	b := &branchNode{}
	for i := 0; i < 16; i++ {
		ref, err := decodeRef(elems[i])
		if err != nil {
			return nil, err
		}
		b.Children[i] = ref
	}
	var value []byte
	if err := rlp.DecodeBytes(elems[16], &value); err != nil {
		return nil, &DecodingError{Cause: err}
	}
	if len(value) > 0 {
		b.Value = value
	}
	if b.Value == nil && b.countChildren() < 2 {
		return nil, &InconsistentTreeError{Reason: "branch with fewer than two children and no value"}
	}
	return b, nil
}

func decodeRef(raw rlp.RawValue) (nodeRef, error) {
	if len(raw) == 0 {
		return emptyRef(), &DecodingError{Cause: fmt.Errorf("empty node reference")}
	}
	if raw[0] >= 0xc0 {
		n, err := decodeNode(raw)
		if err != nil {
			return emptyRef(), err
		}
		return embeddedRef(n), nil
	}
	var b []byte
	if err := rlp.DecodeBytes(raw, &b); err != nil {
		return emptyRef(), &DecodingError{Cause: err}
	}
	switch len(b) {
	case 0:
		return emptyRef(), nil
	case 32:
		return hashRef(common.BytesToHash(b)), nil
	default:
		return emptyRef(), &DecodingError{Cause: fmt.Errorf("invalid reference length %d", len(b))}
	}
}
