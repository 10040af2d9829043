// (c) 2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package trie

import (
	"github.com/ethereum/go-ethereum/common"
)

// Trie is an ordered key/value map realized as a Keccak-rooted
// Merkle-Patricia tree. Reading from a committed trie is idempotent and
// read-only; mutation is copy-on-write at the node level (insert/remove
// always return fresh node values, never mutate a resolved node in place),
// so a Trie handle observed mid-mutation by another goroutine never sees a
// torn node.
type Trie struct {
	root  nodeRef
	store NodeStore // nil is legal for a trie that is only ever hashed, never committed
}

// New returns an empty trie backed by store. store may be nil if the trie
// will only ever be read via HashNoCommit and never committed.
func New(store NodeStore) *Trie {
	return &Trie{root: emptyRef(), store: store}
}

// NewFromRoot opens a trie whose root is already known by hash; nodes are
// resolved lazily from store as lookups require them.
func NewFromRoot(store NodeStore, root common.Hash) *Trie {
	if root == EmptyRootHash || root == (common.Hash{}) {
		return New(store)
	}
	return &Trie{root: hashRef(root), store: store}
}

// NewFromRootNodeRLP seeds a trie directly from the RLP encoding of its
// root node (as carried by an ExecutionWitness, which may ship either an
// embedded root or a hash root resolved through the witness's node table).
func NewFromRootNodeRLP(store NodeStore, rootNodeRLP []byte) (*Trie, error) {
	n, err := decodeNode(rootNodeRLP)
	if err != nil {
		return nil, err
	}
	return &Trie{root: refFor(n), store: store}, nil
}

func (t *Trie) resolve(ref nodeRef) (node, error) {
	if ref.embedded != nil {
		return ref.embedded, nil
	}
	if ref.isHash() {
		if t.store == nil {
			return nil, &MissingNodeError{Hash: ref.hash}
		}
		enc, ok := t.store.Get(ref.hash)
		if !ok {
			return nil, &MissingNodeError{Hash: ref.hash}
		}
		return decodeNode(enc)
	}
	return nil, nil
}

func isTerminalOnly(path Nibbles) bool {
	return len(path) == 1 && path[0] == terminator
}

// Get returns the value stored under key, or nil if absent.
func (t *Trie) Get(key []byte) ([]byte, error) {
	return t.get(t.root, FromBytes(key, true))
}

func (t *Trie) get(ref nodeRef, path Nibbles) ([]byte, error) {
	if ref.isEmpty() {
		return nil, nil
	}
	n, err := t.resolve(ref)
	if err != nil {
		return nil, err
	}
	switch cur := n.(type) {
	case *leafNode:
		if path.Equal(cur.Path) {
			return cur.Value, nil
		}
		return nil, nil
	case *extensionNode:
		rest, ok := path.SkipPrefix(cur.Path)
		if !ok {
			return nil, nil
		}
		return t.get(cur.Child, rest)
	case *branchNode:
		if isTerminalOnly(path) {
			return cur.Value, nil
		}
		return t.get(cur.Children[path.NextChoice()], path[1:])
	default:
		return nil, &InconsistentTreeError{Reason: "unresolved node kind in get"}
	}
}

// Insert writes value under key, returning the trie's new root hash.
// Passing an empty value is equivalent to Remove.
func (t *Trie) Insert(key, value []byte) (common.Hash, error) {
	if len(value) == 0 {
		return t.Remove(key)
	}
	newRoot, err := t.insert(t.root, FromBytes(key, true), value)
	if err != nil {
		return common.Hash{}, err
	}
	t.root = newRoot
	return t.HashNoCommit(), nil
}

func (t *Trie) insert(ref nodeRef, path Nibbles, value []byte) (nodeRef, error) {
	if ref.isEmpty() {
		return refFor(&leafNode{Path: path, Value: value}), nil
	}
	n, err := t.resolve(ref)
	if err != nil {
		return nodeRef{}, err
	}
	switch cur := n.(type) {
	case *leafNode:
		match := path.CommonPrefixLen(cur.Path)
		if match == len(cur.Path) && match == len(path) {
			return refFor(&leafNode{Path: cur.Path, Value: value}), nil
		}
		return splitLeaf(cur.Path, cur.Value, path, value, match)
	case *extensionNode:
		match := path.CommonPrefixLen(cur.Path)
		if match == len(cur.Path) {
			rest := path[match:]
			childRef, err := t.insert(cur.Child, rest, value)
			if err != nil {
				return nodeRef{}, err
			}
			return refFor(&extensionNode{Path: cur.Path, Child: childRef}), nil
		}
		return splitExtension(cur.Path, cur.Child, path, value, match)
	case *branchNode:
		nb := *cur
		if isTerminalOnly(path) {
			nb.Value = value
			return refFor(&nb), nil
		}
		idx := path.NextChoice()
		childRef, err := t.insert(cur.Children[idx], path[1:], value)
		if err != nil {
			return nodeRef{}, err
		}
		nb.Children[idx] = childRef
		return refFor(&nb), nil
	default:
		return nodeRef{}, &InconsistentTreeError{Reason: "unresolved node kind in insert"}
	}
}

// splitLeaf builds the branch (optionally wrapped in an extension) needed
// when inserting a new leaf that diverges from an existing one at `match`.
func splitLeaf(existingPath Nibbles, existingValue []byte, newPath Nibbles, newValue []byte, match int) (nodeRef, error) {
	branch := &branchNode{}
	placeLeafRemainder(branch, existingPath[match:], existingValue)
	placeLeafRemainder(branch, newPath[match:], newValue)
	branchRef := refFor(branch)
	if match == 0 {
		return branchRef, nil
	}
	return refFor(&extensionNode{Path: existingPath[:match], Child: branchRef}), nil
}

func placeLeafRemainder(branch *branchNode, remainder Nibbles, value []byte) {
	if len(remainder) == 1 { // remainder is solely the terminator
		branch.Value = value
		return
	}
	idx := remainder[0]
	branch.Children[idx] = refFor(&leafNode{Path: remainder[1:], Value: value})
}

// splitExtension builds the branch needed when inserting a value that
// diverges from an existing extension's path at `match`.
func splitExtension(existingPath Nibbles, existingChild nodeRef, newPath Nibbles, newValue []byte, match int) (nodeRef, error) {
	branch := &branchNode{}

	rem1 := existingPath[match:]
	if len(rem1) == 1 {
		branch.Children[rem1[0]] = existingChild
	} else {
		branch.Children[rem1[0]] = refFor(&extensionNode{Path: rem1[1:], Child: existingChild})
	}

	placeLeafRemainder(branch, newPath[match:], newValue)

	branchRef := refFor(branch)
	if match == 0 {
		return branchRef, nil
	}
	return refFor(&extensionNode{Path: existingPath[:match], Child: branchRef}), nil
}

// Remove deletes key from the trie, returning the trie's new root hash.
// Removing an absent key is a no-op.
func (t *Trie) Remove(key []byte) (common.Hash, error) {
	newRoot, err := t.remove(t.root, FromBytes(key, true))
	if err != nil {
		return common.Hash{}, err
	}
	t.root = newRoot
	return t.HashNoCommit(), nil
}

func (t *Trie) remove(ref nodeRef, path Nibbles) (nodeRef, error) {
	if ref.isEmpty() {
		return ref, nil
	}
	n, err := t.resolve(ref)
	if err != nil {
		return nodeRef{}, err
	}
	switch cur := n.(type) {
	case *leafNode:
		if path.Equal(cur.Path) {
			return emptyRef(), nil
		}
		return ref, nil
	case *extensionNode:
		rest, ok := path.SkipPrefix(cur.Path)
		if !ok {
			return ref, nil
		}
		childRef, err := t.remove(cur.Child, rest)
		if err != nil {
			return nodeRef{}, err
		}
		return t.mergeExtension(cur.Path, childRef)
	case *branchNode:
		nb := *cur
		if isTerminalOnly(path) {
			if cur.Value == nil {
				return ref, nil
			}
			nb.Value = nil
		} else {
			idx := path.NextChoice()
			childRef, err := t.remove(cur.Children[idx], path[1:])
			if err != nil {
				return nodeRef{}, err
			}
			nb.Children[idx] = childRef
		}
		return t.collapseBranch(&nb)
	default:
		return nodeRef{}, &InconsistentTreeError{Reason: "unresolved node kind in remove"}
	}
}

// mergeExtension re-establishes invariant (iv): an extension may never
// point directly at another extension.
func (t *Trie) mergeExtension(path Nibbles, childRef nodeRef) (nodeRef, error) {
	if childRef.isEmpty() {
		return emptyRef(), nil
	}
	child, err := t.resolve(childRef)
	if err != nil {
		return nodeRef{}, err
	}
	if ext, ok := child.(*extensionNode); ok {
		merged := append(append(Nibbles{}, path...), ext.Path...)
		return refFor(&extensionNode{Path: merged, Child: ext.Child}), nil
	}
	return refFor(&extensionNode{Path: path, Child: childRef}), nil
}

// collapseBranch enforces invariant (iii): a branch must keep at least two
// populated positions (16 children slots plus the value slot), otherwise it
// collapses into an Extension or Leaf.
func (t *Trie) collapseBranch(b *branchNode) (nodeRef, error) {
	count := b.countChildren()
	populated := count
	if b.Value != nil {
		populated++
	}
	switch {
	case populated == 0:
		return emptyRef(), nil
	case populated == 1 && b.Value != nil:
		return refFor(&leafNode{Path: Nibbles{terminator}, Value: b.Value}), nil
	case populated == 1:
		idx, childRef := b.singleChild()
		child, err := t.resolve(childRef)
		if err != nil {
			return nodeRef{}, err
		}
		switch cn := child.(type) {
		case *leafNode:
			merged := append(Nibbles{idx}, cn.Path...)
			return refFor(&leafNode{Path: merged, Value: cn.Value}), nil
		case *extensionNode:
			merged := append(Nibbles{idx}, cn.Path...)
			return refFor(&extensionNode{Path: merged, Child: cn.Child}), nil
		default:
			return refFor(&extensionNode{Path: Nibbles{idx}, Child: childRef}), nil
		}
	default:
		return refFor(b), nil
	}
}

func (b *branchNode) singleChild() (byte, nodeRef) {
	for i, c := range b.Children {
		if !c.isEmpty() {
			return byte(i), c
		}
	}
	panic("trie: singleChild called on branch with no children")
}

// HashNoCommit returns the 32-byte Keccak root of the current in-memory
// trie without persisting any nodes.
func (t *Trie) HashNoCommit() common.Hash {
	if t.root.isEmpty() {
		return EmptyRootHash
	}
	if t.root.isHash() {
		return t.root.hash
	}
	return hashNodeRLP(t.root.embedded)
}

// Commit persists all reachable dirty nodes (those constructed or modified
// in memory since the last commit) to the backing NodeStore, keyed by
// their Keccak hash. Subsequent Get calls may traverse through hashes that
// were not previously resolved in memory.
func (t *Trie) Commit() (common.Hash, error) {
	if t.root.isEmpty() {
		return EmptyRootHash, nil
	}
	if t.store == nil {
		return common.Hash{}, &InconsistentTreeError{Reason: "commit requires a NodeStore"}
	}
	batch := t.store.NewBatch()
	visited := make(map[common.Hash]bool)
	if err := t.commitRef(t.root, batch, visited); err != nil {
		return common.Hash{}, err
	}
	if err := batch.Commit(); err != nil {
		return common.Hash{}, err
	}
	return t.HashNoCommit(), nil
}

func (t *Trie) commitRef(ref nodeRef, batch NodeBatch, visited map[common.Hash]bool) error {
	if ref.isEmpty() {
		return nil
	}
	if ref.isHash() {
		if visited[ref.hash] {
			return nil
		}
		visited[ref.hash] = true
		if ref.embedded == nil {
			// Already resolved only by hash: it was loaded from a prior
			// commit and is unmodified, so its subtree is already stored.
			return nil
		}
		batch.Put(ref.hash, encodeNode(ref.embedded))
		return t.commitChildren(ref.embedded, batch, visited)
	}
	return t.commitChildren(ref.embedded, batch, visited)
}

func (t *Trie) commitChildren(n node, batch NodeBatch, visited map[common.Hash]bool) error {
	switch v := n.(type) {
	case *leafNode:
		return nil
	case *extensionNode:
		return t.commitRef(v.Child, batch, visited)
	case *branchNode:
		for _, c := range v.Children {
			if err := t.commitRef(c, batch, visited); err != nil {
				return err
			}
		}
		return nil
	}
	return nil
}

// Prove returns the RLP-encoded node path from root to the leaf (or to the
// deepest node reached) for key, suitable for Merkle proving.
func (t *Trie) Prove(key []byte) ([][]byte, error) {
	path := FromBytes(key, true)
	ref := t.root
	var proof [][]byte
	for {
		if ref.isEmpty() {
			return proof, nil
		}
		n, err := t.resolve(ref)
		if err != nil {
			return nil, err
		}
		proof = append(proof, encodeNode(n))
		switch cur := n.(type) {
		case *leafNode:
			return proof, nil
		case *extensionNode:
			rest, ok := path.SkipPrefix(cur.Path)
			if !ok {
				return proof, nil
			}
			path, ref = rest, cur.Child
		case *branchNode:
			if isTerminalOnly(path) {
				return proof, nil
			}
			ref, path = cur.Children[path.NextChoice()], path[1:]
		}
	}
}
