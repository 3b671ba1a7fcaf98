package circuit

import (
	"fmt"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/constraint"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/frontend/cs/r1cs"
	"github.com/consensys/gnark/backend/witness"
	"github.com/consensys/gnark/std/algebra/emulated/sw_bw6761"
	"github.com/consensys/gnark/std/algebra/native/sw_bls12377"
	stdgroth16 "github.com/consensys/gnark/std/recursion/groth16"
)

// CompileLevel1RecursiveCircuit compiles the RC that verifies BatchCircuit
// proofs natively (spec §4.4 over the BLS12-377-in-BW6-761 embedding, see
// SPEC_FULL.md §0). innerCCS is the already-compiled batch circuit.
func CompileLevel1RecursiveCircuit(assetCount int, innerCCS constraint.ConstraintSystem) (constraint.ConstraintSystem, error) {
	shape := newLevel1Shape(assetCount, innerCCS)
	return frontend.Compile(ecc.BW6_761.ScalarField(), r1cs.NewBuilder, shape)
}

// CompileFoldRecursiveCircuit compiles the RC that verifies a previous
// RecursiveCircuit's proofs via emulated self-recursion (spec §4.4 levels
// 2+, see SPEC_FULL.md §0). innerCCS is the already-compiled lower-level
// RC.
func CompileFoldRecursiveCircuit(assetCount int, innerCCS constraint.ConstraintSystem) (constraint.ConstraintSystem, error) {
	shape := newFoldShape(assetCount, innerCCS)
	return frontend.Compile(ecc.BW6_761.ScalarField(), r1cs.NewBuilder, shape)
}

func newLevel1Shape(assetCount int, innerCCS constraint.ConstraintSystem) *Level1RecursiveCircuit {
	c := &Level1RecursiveCircuit{}
	c.PublicInputs = emptyPublicInputs(assetCount)
	c.InnerProofs = make([]stdgroth16.Proof[sw_bls12377.G1Affine, sw_bls12377.G2Affine], RecursiveSize)
	c.InnerWitnesses = make([]stdgroth16.Witness[sw_bls12377.ScalarField], RecursiveSize)
	for i := range c.InnerProofs {
		c.InnerProofs[i] = stdgroth16.PlaceholderProof[sw_bls12377.G1Affine, sw_bls12377.G2Affine](innerCCS)
	}
	for i := range c.InnerWitnesses {
		c.InnerWitnesses[i] = stdgroth16.PlaceholderWitness[sw_bls12377.ScalarField](innerCCS)
	}
	c.InnerVK = stdgroth16.PlaceholderVerifyingKey[sw_bls12377.G1Affine, sw_bls12377.G2Affine, sw_bls12377.GT](innerCCS)
	return c
}

func newFoldShape(assetCount int, innerCCS constraint.ConstraintSystem) *FoldRecursiveCircuit {
	c := &FoldRecursiveCircuit{}
	c.PublicInputs = emptyPublicInputs(assetCount)
	c.InnerProofs = make([]stdgroth16.Proof[sw_bw6761.G1Affine, sw_bw6761.G2Affine], RecursiveSize)
	c.InnerWitnesses = make([]stdgroth16.Witness[sw_bw6761.ScalarField], RecursiveSize)
	for i := range c.InnerProofs {
		c.InnerProofs[i] = stdgroth16.PlaceholderProof[sw_bw6761.G1Affine, sw_bw6761.G2Affine](innerCCS)
	}
	for i := range c.InnerWitnesses {
		c.InnerWitnesses[i] = stdgroth16.PlaceholderWitness[sw_bw6761.ScalarField](innerCCS)
	}
	c.InnerVK = stdgroth16.PlaceholderVerifyingKey[sw_bw6761.G1Affine, sw_bw6761.G2Affine, sw_bw6761.GTEl](innerCCS)
	return c
}

// RootHashFold computes the MiMC fold of RecursiveSize children's 4-element
// root hashes, outside the circuit, mirroring RecursiveCircuit.Define's
// constraint 4. Exported for the pipeline driver, which needs the raw
// folded hash both to feed BuildLevel1Assignment/BuildFoldAssignment and
// to populate the Merkle tree's own node hashes.
func RootHashFold(hasher goMiMCHasher, modulus *big.Int, childRootHashes [][4]*big.Int) ([]byte, error) {
	if len(childRootHashes) != RecursiveSize {
		return nil, fmt.Errorf("folding %d root hashes, expected %d", len(childRootHashes), RecursiveSize)
	}
	hasher.Reset()
	for _, rh := range childRootHashes {
		for _, el := range rh {
			if _, err := hasher.Write(fieldBytes(el, modulus)); err != nil {
				return nil, err
			}
		}
	}
	return hasher.Sum(nil), nil
}

// SumGoBalances sums a set of per-asset balance vectors column-wise,
// used for every recursive circuit's PerAssetTotal fold (the batch
// circuit's totals come from SumGoAccountBalances).
func SumGoBalances(parts []GoBalance) GoBalance {
	if len(parts) == 0 {
		return nil
	}
	total := make(GoBalance, len(parts[0]))
	for a := range total {
		total[a] = big.NewInt(0)
	}
	for _, p := range parts {
		for a, v := range p {
			total[a] = new(big.Int).Add(total[a], v)
		}
	}
	return total
}

// foldPublicInputs computes this level's PerAssetTotal (the plain sum of
// the child totals; the overflow check exists only in-circuit),
// AssetPrice (the given prices), and folded RootHash, the values
// RecursiveCircuit.Define constrains, for witness construction.
func foldPublicInputs(assetCount int, modulus *big.Int, hasher goMiMCHasher, childTotals []GoBalance, prices GoBalance, childRootHashes [][4]*big.Int) (PublicInputs, error) {
	total := SumGoBalances(childTotals)
	root, err := RootHashFold(hasher, modulus, childRootHashes)
	if err != nil {
		return PublicInputs{}, err
	}
	return PublicInputs{
		PerAssetTotal: goBalanceToVariables(total, modulus),
		AssetPrice:    goBalanceToVariables(prices, modulus),
		RootHash:      [4]frontend.Variable{new(big.Int).SetBytes(root), big.NewInt(0), big.NewInt(0), big.NewInt(0)},
	}, nil
}

// BuildLevel1Assignment assembles a witness-ready Level1RecursiveCircuit
// from RecursiveSize batch proofs and their public witnesses.
func BuildLevel1Assignment(innerVK groth16.VerifyingKey, innerProofs []groth16.Proof, innerPublicWitnesses []witness.Witness, assetCount int, modulus *big.Int, hasher goMiMCHasher, childTotals []GoBalance, prices GoBalance, childRootHashes [][4]*big.Int) (*Level1RecursiveCircuit, error) {
	c := &Level1RecursiveCircuit{}
	pub, err := foldPublicInputs(assetCount, modulus, hasher, childTotals, prices, childRootHashes)
	if err != nil {
		return nil, err
	}
	c.PublicInputs = pub

	vk, err := stdgroth16.ValueOfVerifyingKey[sw_bls12377.G1Affine, sw_bls12377.G2Affine, sw_bls12377.GT](innerVK)
	if err != nil {
		return nil, fmt.Errorf("converting inner verifying key: %w", err)
	}
	c.InnerVK = vk

	c.InnerProofs = make([]stdgroth16.Proof[sw_bls12377.G1Affine, sw_bls12377.G2Affine], len(innerProofs))
	c.InnerWitnesses = make([]stdgroth16.Witness[sw_bls12377.ScalarField], len(innerPublicWitnesses))
	for i, p := range innerProofs {
		cp, err := stdgroth16.ValueOfProof[sw_bls12377.G1Affine, sw_bls12377.G2Affine](p)
		if err != nil {
			return nil, fmt.Errorf("converting inner proof %d: %w", i, err)
		}
		c.InnerProofs[i] = cp
	}
	for i, w := range innerPublicWitnesses {
		cw, err := stdgroth16.ValueOfWitness[sw_bls12377.ScalarField](w)
		if err != nil {
			return nil, fmt.Errorf("converting inner witness %d: %w", i, err)
		}
		c.InnerWitnesses[i] = cw
	}
	return c, nil
}

// BuildFoldAssignment is BuildLevel1Assignment's counterpart for levels 2+
// (emulated BW6-761 self-recursion).
func BuildFoldAssignment(innerVK groth16.VerifyingKey, innerProofs []groth16.Proof, innerPublicWitnesses []witness.Witness, assetCount int, modulus *big.Int, hasher goMiMCHasher, childTotals []GoBalance, prices GoBalance, childRootHashes [][4]*big.Int) (*FoldRecursiveCircuit, error) {
	c := &FoldRecursiveCircuit{}
	pub, err := foldPublicInputs(assetCount, modulus, hasher, childTotals, prices, childRootHashes)
	if err != nil {
		return nil, err
	}
	c.PublicInputs = pub

	vk, err := stdgroth16.ValueOfVerifyingKey[sw_bw6761.G1Affine, sw_bw6761.G2Affine, sw_bw6761.GTEl](innerVK)
	if err != nil {
		return nil, fmt.Errorf("converting inner verifying key: %w", err)
	}
	c.InnerVK = vk

	c.InnerProofs = make([]stdgroth16.Proof[sw_bw6761.G1Affine, sw_bw6761.G2Affine], len(innerProofs))
	c.InnerWitnesses = make([]stdgroth16.Witness[sw_bw6761.ScalarField], len(innerPublicWitnesses))
	for i, p := range innerProofs {
		cp, err := stdgroth16.ValueOfProof[sw_bw6761.G1Affine, sw_bw6761.G2Affine](p)
		if err != nil {
			return nil, fmt.Errorf("converting inner proof %d: %w", i, err)
		}
		c.InnerProofs[i] = cp
	}
	for i, w := range innerPublicWitnesses {
		cw, err := stdgroth16.ValueOfWitness[sw_bw6761.ScalarField](w)
		if err != nil {
			return nil, fmt.Errorf("converting inner witness %d: %w", i, err)
		}
		c.InnerWitnesses[i] = cw
	}
	return c, nil
}
