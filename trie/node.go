// (c) 2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package trie

import (
	"github.com/ethereum/go-ethereum/common"
)

// node is the common interface implemented by the three trie node
// variants (leaf, extension, branch). A child known only by its hash, or
// embedded inline, is held in a nodeRef rather than as a node of its own.
type node interface {
	cacheHash() *common.Hash
	setCacheHash(*common.Hash)
}

type nodeBase struct {
	hash *common.Hash // memoized Keccak256(RLP(node)); nil until computed
}

func (b *nodeBase) cacheHash() *common.Hash        { return b.hash }
func (b *nodeBase) setCacheHash(h *common.Hash)     { b.hash = h }

// leafNode stores a terminal path/value pair.
type leafNode struct {
	nodeBase
	Path  Nibbles
	Value []byte
}

// extensionNode stores a shared path prefix leading to a single child.
type extensionNode struct {
	nodeBase
	Path  Nibbles
	Child nodeRef
}

// branchNode fans out on the next nibble; Value is non-nil only when some
// key terminates exactly at this branch.
type branchNode struct {
	nodeBase
	Children [16]nodeRef
	Value    []byte
}

func (b *branchNode) countChildren() int {
	n := 0
	for _, c := range b.Children {
		if !c.isEmpty() {
			n++
		}
	}
	return n
}

// nodeRef is a reference to a child node. Three states:
//   - empty: both fields zero.
//   - embedded: embedded holds the node and its RLP encoding is under 32
//     bytes, so it is always inlined into its parent and never separately
//     stored.
//   - hashed: hash is the node's Keccak identity. embedded may still be
//     non-nil if the node was constructed or modified in this process
//     (dirty, pending Commit); if embedded is nil the node is only known
//     by hash and must be resolved through the NodeStore.
type nodeRef struct {
	embedded node
	hash     common.Hash
}

func emptyRef() nodeRef { return nodeRef{} }

// embeddedRef wraps a node that is guaranteed to be under the 32-byte
// embedding threshold.
func embeddedRef(n node) nodeRef { return nodeRef{embedded: n} }

// hashRef wraps a node reference known only by hash (not yet resolved).
func hashRef(h common.Hash) nodeRef { return nodeRef{hash: h} }

// dirtyHashRef wraps a freshly built/modified node whose encoding is
// 32 bytes or larger: it carries both the live node (for traversal/commit)
// and its hash (for identity and storage key).
func dirtyHashRef(n node, h common.Hash) nodeRef { return nodeRef{embedded: n, hash: h} }

func (r nodeRef) isEmpty() bool {
	return r.embedded == nil && r.hash == (common.Hash{})
}

func (r nodeRef) isHash() bool {
	return r.hash != (common.Hash{})
}
