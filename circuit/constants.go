// Package circuit provides the zero-knowledge circuits at the core of the
// proof-of-reserves pipeline, and the Go-native mirrors of their arithmetic
// used to prepare witnesses outside the circuit.
package circuit

import "math/big"

const (
	// BatchSize is the number of accounts proven directly by the batch
	// circuit (BC). It is also the fan-out of the Merkle tree's leaf
	// level.
	BatchSize = 1024

	// RecursiveSize is the fan-out of every Merkle tree level above the
	// leaves, and the number of inner proofs folded by one recursive
	// circuit (RC) instance.
	RecursiveSize = 8

	// InvalidBalanceLengthMessage mirrors the teacher's panic message for
	// a structural (non-constraint) invariant violation.
	InvalidBalanceLengthMessage = "balance must have the same length as the asset list"

	// MerkleLeafLimitExceededMessage is raised when more accounts are
	// handed to a single batch than BatchSize allows.
	MerkleLeafLimitExceededMessage = "number of accounts exceeds the batch circuit's leaf limit"
)

// halfPlusOne returns half+1 for the given field modulus p, i.e.
// (p-1)/2 + 1. A field element x is declared negative (spec §4.1) iff
// its canonical representative is at least halfPlusOne.
func halfPlusOne(modulus *big.Int) *big.Int {
	half := new(big.Int).Rsh(new(big.Int).Sub(modulus, big.NewInt(1)), 1)
	return half.Add(half, big.NewInt(1))
}
