package circuit

import (
	"math/big"
	"testing"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/backend/witness"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/frontend/cs/r1cs"
)

// TestLevel1RecursiveCircuitFoldsBatchProofs drives the same sequence
// core/pipeline.go's first fold level does: compile and set up the
// batch circuit, prove RecursiveSize batches, then compile, set up,
// and prove the level-1 recursive circuit that verifies them — and
// checks the resulting proof verifies. Run outside the gnark test
// harness (direct backend/groth16 calls), mirroring
// core/registry.go's proveCircuit, since the level-1 shape's
// constructor is unexported.
func TestLevel1RecursiveCircuitFoldsBatchProofs(t *testing.T) {
	bls12377Mod := ecc.BLS12_377.ScalarField()
	bw6761Mod := ecc.BW6_761.ScalarField()

	batchShape := NewEmptyBatchCircuit(testAssetCount, testWordCount)
	batchCCS, err := frontend.Compile(bls12377Mod, r1cs.NewBuilder, batchShape)
	if err != nil {
		t.Fatalf("compiling batch circuit: %v", err)
	}
	batchPK, batchVK, err := groth16.Setup(batchCCS)
	if err != nil {
		t.Fatalf("setting up batch circuit: %v", err)
	}

	proofs := make([]groth16.Proof, RecursiveSize)
	pubWitnesses := make([]witness.Witness, RecursiveSize)
	totals := make([]GoBalance, RecursiveSize)
	rootHashes := make([][4]*big.Int, RecursiveSize)

	for i := 0; i < RecursiveSize; i++ {
		assignment := padBatchAssignment(t, testNumAccounts)
		fullWitness, err := frontend.NewWitness(assignment, bls12377Mod)
		if err != nil {
			t.Fatalf("batch %d: building witness: %v", i, err)
		}
		proof, err := groth16.Prove(batchCCS, batchPK, fullWitness)
		if err != nil {
			t.Fatalf("batch %d: proving: %v", i, err)
		}
		publicWitness, err := fullWitness.Public()
		if err != nil {
			t.Fatalf("batch %d: extracting public witness: %v", i, err)
		}
		if err := groth16.Verify(proof, batchVK, publicWitness); err != nil {
			t.Fatalf("batch %d: proof does not verify: %v", i, err)
		}

		proofs[i] = proof
		pubWitnesses[i] = publicWitness
		totals[i] = SumGoAccountBalances(testAccounts(testNumAccounts, positiveBalances), testAssetCount)
		rootHash := batchRootHash(t, testNumAccounts)
		rootHashes[i] = [4]*big.Int{new(big.Int).SetBytes(rootHash), big.NewInt(0), big.NewInt(0), big.NewInt(0)}
	}

	innerCCS, err := CompileLevel1RecursiveCircuit(testAssetCount, batchCCS)
	if err != nil {
		t.Fatalf("compiling level-1 recursive circuit: %v", err)
	}
	level1PK, level1VK, err := groth16.Setup(innerCCS)
	if err != nil {
		t.Fatalf("setting up level-1 recursive circuit: %v", err)
	}

	hasher, err := NewGoMiMCHasher(ecc.BW6_761)
	if err != nil {
		t.Fatalf("new hasher: %v", err)
	}
	assignment, err := BuildLevel1Assignment(batchVK, proofs, pubWitnesses, testAssetCount, bw6761Mod, hasher, totals, testPrices(), rootHashes)
	if err != nil {
		t.Fatalf("BuildLevel1Assignment: %v", err)
	}

	fullWitness, err := frontend.NewWitness(assignment, bw6761Mod)
	if err != nil {
		t.Fatalf("building level-1 witness: %v", err)
	}
	proof, err := groth16.Prove(innerCCS, level1PK, fullWitness)
	if err != nil {
		t.Fatalf("proving level-1 recursive circuit: %v", err)
	}
	publicWitness, err := fullWitness.Public()
	if err != nil {
		t.Fatalf("extracting level-1 public witness: %v", err)
	}
	if err := groth16.Verify(proof, level1VK, publicWitness); err != nil {
		t.Fatalf("level-1 proof does not verify: %v", err)
	}
}

// batchRootHash recomputes the same root hash padBatchAssignment(t, n)
// bakes into its public inputs, so the recursive-circuit test's root
// hash fold matches what the batch circuit itself proved.
func batchRootHash(t *testing.T, n int) []byte {
	t.Helper()
	hasher, err := NewGoMiMCHasher(ecc.BLS12_377)
	if err != nil {
		t.Fatalf("new hasher: %v", err)
	}
	bls12377Mod := ecc.BLS12_377.ScalarField()

	accounts := testAccounts(n, positiveBalances)
	padded := make([]GoAccount, BatchSize)
	copy(padded, accounts)
	for i := n; i < BatchSize; i++ {
		padded[i] = EmptyGoAccount(testAssetCount, testWordCount)
	}
	nonces := make([]uint64, BatchSize)
	for i := 0; i < n; i++ {
		nonces[i] = uint64(i + 1)
	}

	leafDigests := make([][]byte, len(padded))
	for i, account := range padded {
		digest, err := GoHashAccount(hasher, GoAccount{UserHash: account.UserHash, Balance: account.Balance, Nonce: nonces[i]}, bls12377Mod)
		if err != nil {
			t.Fatalf("GoHashAccount: %v", err)
		}
		leafDigests[i] = digest
	}
	root, err := HashLeaves(hasher, leafDigests)
	if err != nil {
		t.Fatalf("HashLeaves: %v", err)
	}
	return root
}
