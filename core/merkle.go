package core

import (
	"bytes"
	"fmt"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/otter-sec/por-v2/circuit"
)

// Node is one Merkle tree node (spec §4.6). Children are owned by their
// parent; there are no parent back-pointers (spec §9 "Cyclic data") —
// siblings are reached by path arithmetic in Tree, not by walking up
// from a Node.
type Node struct {
	Hash     []byte
	Children []*Node
}

// Tree is the k-ary Merkle tree of spec §4.6: Levels[0] is the root
// level, Levels[len(Levels)-1] is the leaf level. Fan-out is BatchSize
// between the leaf level and its parents, RecursiveSize above that.
type Tree struct {
	Levels        [][]*Node
	BatchSize     int
	RecursiveSize int
}

// NewFromLeaves builds the tree skeleton from leaf digests, grouping
// bottom-up: first a BatchSize chunking to form batch parents, then
// RecursiveSize chunking repeatedly until a level has one node (spec
// §4.6 new_from_leaves). Padding nodes get nil hashes, filled in later
// by the pipeline driver from empty-proof root hashes.
func NewFromLeaves(leafHashes [][]byte, batchSize, recursiveSize int) *Tree {
	leaves := make([]*Node, len(leafHashes))
	for i, h := range leafHashes {
		leaves[i] = &Node{Hash: h}
	}

	levels := [][]*Node{leaves}
	current := leaves
	fanOut := batchSize
	for len(current) > 1 {
		current = groupInto(current, fanOut)
		levels = append(levels, current)
		fanOut = recursiveSize
	}

	// levels was built leaf-first; reverse so Levels[0] is the root.
	reversed := make([][]*Node, len(levels))
	for i, lvl := range levels {
		reversed[len(levels)-1-i] = lvl
	}
	return &Tree{Levels: reversed, BatchSize: batchSize, RecursiveSize: recursiveSize}
}

func groupInto(nodes []*Node, fanOut int) []*Node {
	parents := make([]*Node, 0, (len(nodes)+fanOut-1)/fanOut)
	for i := 0; i < len(nodes); i += fanOut {
		end := i + fanOut
		var children []*Node
		if end <= len(nodes) {
			children = nodes[i:end]
		} else {
			children = append(append([]*Node{}, nodes[i:]...), emptyNodes(end-len(nodes))...)
		}
		parents = append(parents, &Node{Children: children})
	}
	return parents
}

func emptyNodes(n int) []*Node {
	out := make([]*Node, n)
	for i := range out {
		out[i] = &Node{}
	}
	return out
}

// Depth is the number of levels, root to leaves inclusive.
func (t *Tree) Depth() int { return len(t.Levels) }

// Root is the tree's root node.
func (t *Tree) Root() *Node { return t.Levels[0][0] }

// NodesAtDepth returns the mutable level slice at depth d (0 = root),
// for the pipeline driver to fill in hashes level by level (spec §4.6
// nodes_at_depth).
func (t *Tree) NodesAtDepth(d int) []*Node { return t.Levels[d] }

// childrenCountAt returns the fan-out of the parent level that owns the
// nodes at the given level — BatchSize between the leaf level and its
// parents, RecursiveSize everywhere else.
func (t *Tree) childrenCountAt(level int) int {
	if level == t.Depth()-1 {
		return t.BatchSize
	}
	return t.RecursiveSize
}

// NthLeafPath returns, for leaf index i, the node index within each
// level from root to leaf (spec §4.6 nth_leaf_path), computed
// arithmetically from the level widths rather than by tree search.
func (t *Tree) NthLeafPath(i int) ([]int, bool) {
	leafLevel := t.Depth() - 1
	if i < 0 || i >= len(t.Levels[leafLevel]) {
		return nil, false
	}
	path := make([]int, t.Depth())
	path[leafLevel] = i
	idx := i
	for level := leafLevel; level > 0; level-- {
		idx = idx / t.childrenCountAt(level)
		path[level-1] = idx
	}
	return path, true
}

// ProveInclusion walks path (as returned by NthLeafPath) from the leaf
// level to the root, collecting at each internal level the sibling
// hashes split around the descent index (spec §4.6 prove_inclusion).
// The returned chain is ordered leaf-level-first; Parent points toward
// the root, terminating with Parent == nil at the split of the root's
// own children.
func (t *Tree) ProveInclusion(path []int) (*MerkleProof, error) {
	leafLevel := t.Depth() - 1
	if len(path) != t.Depth() {
		return nil, fmt.Errorf("path has %d entries, expected %d", len(path), t.Depth())
	}

	proofs := make([]*MerkleProof, leafLevel)
	idx := path[leafLevel]
	for level := leafLevel; level >= 1; level-- {
		count := t.childrenCountAt(level)
		groupStart := (idx / count) * count
		siblings := t.Levels[level][groupStart : groupStart+count]
		position := idx - groupStart

		left := make([][]byte, position)
		for k := 0; k < position; k++ {
			left[k] = siblings[k].Hash
		}
		right := make([][]byte, len(siblings)-position-1)
		for k := position + 1; k < len(siblings); k++ {
			right[k-position-1] = siblings[k].Hash
		}

		proofs[leafLevel-level] = &MerkleProof{Left: left, Right: right}
		idx = idx / count
	}
	for i := 0; i < len(proofs)-1; i++ {
		proofs[i].Parent = proofs[i+1]
	}
	return proofs[0], nil
}

// Verify checks every internal node's hash equals the MiMC digest of
// its children's hashes concatenated (spec §4.6 verify, §8 property 4).
// The leaf-to-batch-parent transition hashes with the batch circuit's
// field (BLS12-377, since that hash is the batch proof's own root_hash
// public input); every transition above that hashes with the recursive
// circuits' field (BW6-761) — see SPEC_FULL.md §0.
func (t *Tree) Verify() error {
	leafLevel := t.Depth() - 1
	for level := leafLevel - 1; level >= 0; level-- {
		curve := ecc.BW6_761
		if level == leafLevel-1 {
			curve = ecc.BLS12_377
		}
		hasher, err := circuit.NewGoMiMCHasher(curve)
		if err != nil {
			return err
		}
		for _, node := range t.Levels[level] {
			if len(node.Children) == 0 {
				continue
			}
			hasher.Reset()
			for _, child := range node.Children {
				if child.Hash == nil {
					return fmt.Errorf("%w: child of a populated internal node has no hash", ErrRootHashMismatch)
				}
				if _, err := hasher.Write(child.Hash); err != nil {
					return err
				}
			}
			expected := hasher.Sum(nil)
			if node.Hash == nil {
				return fmt.Errorf("%w: internal node has children but no hash", ErrRootHashMismatch)
			}
			if !bytes.Equal(expected, node.Hash) {
				return fmt.Errorf("%w: internal node hash does not match Poseidon(children)", ErrRootHashMismatch)
			}
		}
	}
	return nil
}
