package core

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/otter-sec/por-v2/errs"
)

// WriteDataToFile JSON-encodes data to filePath with indentation, the way
// the reference prover writes every artifact (spec §6 file formats).
func WriteDataToFile[D FinalProof | MerkleNode | []uint64 | InclusionProof](filePath string, data D) error {
	file, err := os.Create(filePath)
	if err != nil {
		return fmt.Errorf("%w: creating %s: %v", errs.ErrIOFailure, filePath, err)
	}
	defer file.Close()

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	if err := enc.Encode(data); err != nil {
		return fmt.Errorf("%w: encoding %s: %v", errs.ErrIOFailure, filePath, err)
	}
	return nil
}

// ReadDataFromFile is WriteDataToFile's inverse.
func ReadDataFromFile[D FinalProof | MerkleNode | []uint64 | InclusionProof](filePath string) (D, error) {
	var data D
	file, err := os.Open(filePath)
	if err != nil {
		return data, fmt.Errorf("%w: opening %s: %v", errs.ErrIOFailure, filePath, err)
	}
	defer file.Close()

	if err := json.NewDecoder(file).Decode(&data); err != nil {
		return data, fmt.Errorf("%w: decoding %s: %v", errs.ErrIOFailure, filePath, err)
	}
	return data, nil
}

// NodeToMerkleNode converts the pipeline's internal Node tree to the
// on-disk MerkleNode shape, recursively.
func NodeToMerkleNode(n *Node) *MerkleNode {
	if n == nil {
		return nil
	}
	out := &MerkleNode{Hash: n.Hash}
	if len(n.Children) > 0 {
		out.Children = make([]*MerkleNode, len(n.Children))
		for i, c := range n.Children {
			out.Children[i] = NodeToMerkleNode(c)
		}
	}
	return out
}

// MerkleNodeToNode is NodeToMerkleNode's inverse.
func MerkleNodeToNode(n *MerkleNode) *Node {
	if n == nil {
		return nil
	}
	out := &Node{Hash: n.Hash}
	if len(n.Children) > 0 {
		out.Children = make([]*Node, len(n.Children))
		for i, c := range n.Children {
			out.Children[i] = MerkleNodeToNode(c)
		}
	}
	return out
}

// TreeFromRoot reconstructs a Tree's level structure by breadth-first
// descent from a deserialised root node — the shape MerkleNode/file
// storage preserves (children nested under their parent) but Tree needs
// flattened into per-depth slices for NthLeafPath/ProveInclusion/Verify
// (spec §4.6).
func TreeFromRoot(root *MerkleNode, batchSize, recursiveSize int) *Tree {
	rootNode := MerkleNodeToNode(root)
	levels := [][]*Node{{rootNode}}
	for {
		current := levels[len(levels)-1]
		if len(current[0].Children) == 0 {
			break
		}
		var next []*Node
		for _, n := range current {
			next = append(next, n.Children...)
		}
		levels = append(levels, next)
	}
	return &Tree{Levels: levels, BatchSize: batchSize, RecursiveSize: recursiveSize}
}
