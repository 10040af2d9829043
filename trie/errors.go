// (c) 2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package trie

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// InconsistentTreeError marks a structural invariant violation discovered
// while walking the trie (e.g. a branch with fewer than two populated
// children and no value). It is always surfaced to the caller, never
// silently repaired in place.
type InconsistentTreeError struct {
	Reason string
}

func (e *InconsistentTreeError) Error() string {
	return fmt.Sprintf("trie: inconsistent tree: %s", e.Reason)
}

// MissingNodeError is returned when a hash reference cannot be resolved
// through the backing NodeStore.
type MissingNodeError struct {
	Hash common.Hash
}

func (e *MissingNodeError) Error() string {
	return fmt.Sprintf("trie: missing node %s", e.Hash.Hex())
}

// DecodingError wraps a failure to RLP-decode a node read from storage.
type DecodingError struct {
	Cause error
}

func (e *DecodingError) Error() string {
	return fmt.Sprintf("trie: decoding error: %v", e.Cause)
}

func (e *DecodingError) Unwrap() error { return e.Cause }
