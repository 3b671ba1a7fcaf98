package core

import (
	"bytes"
	"fmt"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/frontend"

	"github.com/otter-sec/por-v2/circuit"
)

// publicInputsOnly wraps circuit.PublicInputs with a no-op Define so a
// verifier that has never compiled the real circuit can still build a
// groth16 public witness for it via frontend.NewWitness(...,
// frontend.PublicOnly()) — spec §4.8 step 2.
type publicInputsOnly struct {
	circuit.PublicInputs
}

func (c *publicInputsOnly) Define(api frontend.API) error { return nil }

// VerifyRoot checks a FinalProof end to end (spec §4.8): it trusts the
// embedded verifying key as the circuit's public parameters (this
// implementation does not re-run trusted setup — see DESIGN.md), asserts
// the proof verifies against the public inputs FinalProof itself
// declares, checks the asset table's internal invariants, and checks the
// Merkle tree is internally consistent and rooted at the same hash.
func VerifyRoot(finalProof *FinalProof, tree *Tree, cfg Config) error {
	if err := checkAssetInvariants(finalProof); err != nil {
		return err
	}
	if err := assertConfig(finalProof, cfg); err != nil {
		return err
	}

	// A tree of depth 2 (leaves + root, spec §4.6/§8 S1) never folded
	// through any recursive circuit: the root proof is the batch proof
	// itself, over BLS12-377 rather than every RC level's BW6-761.
	curve := ecc.BW6_761
	if finalProof.TreeDepth == 2 {
		curve = ecc.BLS12_377
	}

	var vk groth16.VerifyingKey = groth16.NewVerifyingKey(curve)
	if _, err := vk.ReadFrom(bytes.NewReader(finalProof.RootCircuitVerifierData)); err != nil {
		return fmt.Errorf("%w: decoding root verifying key: %v", ErrProofInvalid, err)
	}

	var proof groth16.Proof = groth16.NewProof(curve)
	if _, err := proof.ReadFrom(bytes.NewReader(finalProof.Proof)); err != nil {
		return fmt.Errorf("%w: decoding root proof: %v", ErrProofInvalid, err)
	}

	if !bytes.Equal(finalProof.RootHash, tree.Root().Hash) {
		return fmt.Errorf("%w: final proof root hash does not match the supplied Merkle tree's root", ErrRootHashMismatch)
	}

	modulus := curve.ScalarField()
	pub := &publicInputsOnly{PublicInputs: circuit.PublicInputs{
		PerAssetTotal: toBalance(finalProof.TotalReserves, modulus),
		AssetPrice:    toBalance(finalProof.AssetPrices, modulus),
		RootHash:      [4]frontend.Variable{new(big.Int).SetBytes(finalProof.RootHash), big.NewInt(0), big.NewInt(0), big.NewInt(0)},
	}}
	publicWitness, err := frontend.NewWitness(pub, modulus, frontend.PublicOnly())
	if err != nil {
		return fmt.Errorf("building root public witness: %w", err)
	}

	if err := groth16.Verify(proof, vk, publicWitness); err != nil {
		return fmt.Errorf("%w: %v", ErrProofInvalid, err)
	}

	if err := tree.Verify(); err != nil {
		return err
	}
	return nil
}

// assertConfig checks a proof against the caller's expected Config (spec
// §9 Open Question ii). A prover-version mismatch is logged as a warning
// and otherwise ignored unless cfg.Strict opts into hard failure; a
// batch/recursive size mismatch is always fatal, since the verifier would
// otherwise build the wrong-shaped public witness.
func assertConfig(finalProof *FinalProof, cfg Config) error {
	if finalProof.ProverVersion != cfg.ProverVersion {
		if cfg.Strict {
			return fmt.Errorf("%w: proof was produced by %q, expected %q", ErrConfigMismatch, finalProof.ProverVersion, cfg.ProverVersion)
		}
		Log.Warn().Str("proof_version", finalProof.ProverVersion).Str("expected_version", cfg.ProverVersion).Msg("prover version mismatch")
	}
	if finalProof.BatchSize != cfg.BatchSize || finalProof.RecursiveSize != cfg.RecursiveSize {
		return fmt.Errorf("%w: proof uses batch/recursive size %d/%d, expected %d/%d", ErrConfigMismatch, finalProof.BatchSize, finalProof.RecursiveSize, cfg.BatchSize, cfg.RecursiveSize)
	}
	return nil
}

func checkAssetInvariants(finalProof *FinalProof) error {
	n := len(finalProof.AssetNames)
	if n == 0 {
		return fmt.Errorf("%w: final proof declares no assets", ErrLedgerMalformed)
	}
	if len(finalProof.AssetPrices) != n || len(finalProof.AssetDecimals) != n || len(finalProof.TotalReserves) != n {
		return fmt.Errorf("%w: asset table field lengths disagree", ErrLedgerMalformed)
	}
	decimalSum := finalProof.AssetDecimals[0].USDTDecimals + finalProof.AssetDecimals[0].BalanceDecimals
	for _, d := range finalProof.AssetDecimals[1:] {
		if d.USDTDecimals+d.BalanceDecimals != decimalSum {
			return fmt.Errorf("%w: asset %q has decimal sum %d, expected %d", ErrLedgerMalformed, d.Name, d.USDTDecimals+d.BalanceDecimals, decimalSum)
		}
	}
	return nil
}

func toBalance(balance circuit.GoBalance, modulus *big.Int) circuit.Balance {
	out := make(circuit.Balance, len(balance))
	for i, v := range balance {
		out[i] = frontend.Variable(circuit.NonCanonicalFieldElement(v, modulus))
	}
	return out
}

// VerifyUserInclusion checks that proof's leaf digest folds, through its
// Merkle proof chain, to the same root FinalProof declares (spec §4.8
// step 3 / §4.7.1). It does not re-verify the root groth16 proof itself
// — callers needing end-to-end assurance should also call VerifyRoot.
func VerifyUserInclusion(finalProof *FinalProof, proof *InclusionProof) error {
	if !bytes.Equal(finalProof.RootHash, proof.RootHash) {
		return fmt.Errorf("%w: inclusion proof's root hash does not match the final proof's", ErrRootHashMismatch)
	}

	bls12377Mod := ecc.BLS12_377.ScalarField()
	leafHasher, err := circuit.NewGoMiMCHasher(ecc.BLS12_377)
	if err != nil {
		return err
	}
	current, err := circuit.GoHashAccount(leafHasher, circuit.GoAccount{
		UserHash: proof.UserHash,
		Balance:  proof.UserBalances,
		Nonce:    proof.Nonce,
	}, bls12377Mod)
	if err != nil {
		return fmt.Errorf("hashing inclusion proof's account: %w", err)
	}

	innerHasher, err := circuit.NewGoMiMCHasher(ecc.BW6_761)
	if err != nil {
		return err
	}

	step := proof.MerkleProof
	for i := 0; step != nil; i++ {
		hasher := innerHasher
		if i == 0 {
			hasher = leafHasher
		}

		hasher.Reset()
		for _, sibling := range step.Left {
			if _, err := hasher.Write(sibling); err != nil {
				return err
			}
		}
		if _, err := hasher.Write(current); err != nil {
			return err
		}
		for _, sibling := range step.Right {
			if _, err := hasher.Write(sibling); err != nil {
				return err
			}
		}
		current = hasher.Sum(nil)
		step = step.Parent
	}

	if !bytes.Equal(current, finalProof.RootHash) {
		return fmt.Errorf("%w: recomputed root does not match final proof's root hash", ErrRootHashMismatch)
	}
	return nil
}
