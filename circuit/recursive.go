package circuit

import (
	"fmt"
	"math/big"

	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/std/algebra/emulated/sw_bw6761"
	"github.com/consensys/gnark/std/algebra/native/sw_bls12377"
	"github.com/consensys/gnark/std/hash/mimc"
	"github.com/consensys/gnark/std/math/emulated"
	stdgroth16 "github.com/consensys/gnark/std/recursion/groth16"
)

// RecursiveCircuit folds RecursiveSize inner proofs into one (spec §4.4):
// it verifies every inner proof, sums their per-asset totals with an
// overflow check, asserts every inner slot's asset prices agree, and
// folds the inner root hashes through MiMC.
//
// FR/G1El/G2El/GtEl parametrise the inner proof system's algebra so the
// same circuit shape serves every tree level — see SPEC_FULL.md §0 for
// why level 1 (inner = BatchCircuit, BLS12-377) and level 2+ (inner = a
// previous RecursiveCircuit, BW6-761) need different instantiations.
type RecursiveCircuit[FR emulated.FieldParams, G1El, G2El, GtEl any] struct {
	PublicInputs

	InnerProofs    []stdgroth16.Proof[G1El, G2El]
	InnerWitnesses []stdgroth16.Witness[FR]
	InnerVK        stdgroth16.VerifyingKey[G1El, G2El, GtEl]
}

// Level1RecursiveCircuit verifies BatchCircuit proofs (compiled over
// BLS12-377) inside a BW6-761 circuit via gnark's native 2-chain
// embedding — the cheap case, exactly the pattern used by the pack's
// prover-aggregator reference (other_examples).
type Level1RecursiveCircuit struct {
	RecursiveCircuit[sw_bls12377.ScalarField, sw_bls12377.G1Affine, sw_bls12377.G2Affine, sw_bls12377.GT]
}

// FoldRecursiveCircuit verifies a previous-level RecursiveCircuit's
// BW6-761 proofs inside another BW6-761 circuit via non-native (emulated)
// verification — gnark has no further native 2-chain beyond BW6-761, so
// every level above the first self-recurses.
type FoldRecursiveCircuit struct {
	RecursiveCircuit[sw_bw6761.ScalarField, sw_bw6761.G1Affine, sw_bw6761.G2Affine, sw_bw6761.GTEl]
}

// Define implements frontend.Circuit for every RecursiveCircuit
// instantiation.
func (c *RecursiveCircuit[FR, G1El, G2El, GtEl]) Define(api frontend.API) error {
	if len(c.InnerProofs) != RecursiveSize || len(c.InnerWitnesses) != RecursiveSize {
		panic(fmt.Sprintf("recursive circuit requires exactly %d inner proofs", RecursiveSize))
	}
	assetCount := len(c.PublicInputs.PerAssetTotal)

	sign := newSignGadget(api.Compiler().Field())
	hasher, err := mimc.NewMiMC(api)
	if err != nil {
		return err
	}
	verifier, err := stdgroth16.NewVerifier[FR, G1El, G2El, GtEl](api)
	if err != nil {
		return err
	}

	// 1. verify every inner slot.
	for s := 0; s < RecursiveSize; s++ {
		if err := verifier.AssertProof(c.InnerVK, c.InnerProofs[s], c.InnerWitnesses[s], stdgroth16.WithCompleteArithmetic()); err != nil {
			return fmt.Errorf("verifying inner proof %d: %w", s, err)
		}
	}

	// slotPublic[s][k] is the k-th public input of inner slot s, reduced
	// to a native frontend.Variable by recomposing the emulated element's
	// limbs (most significant limb first).
	var params FR
	limbBase := new(big.Int).Lsh(big.NewInt(1), params.BitsPerLimb())
	slotPublic := make([][]frontend.Variable, RecursiveSize)
	for s := 0; s < RecursiveSize; s++ {
		public := c.InnerWitnesses[s].Public
		if len(public) != 2*assetCount+4 {
			panic("inner witness public input width does not match the batch/recursive layout")
		}
		slotPublic[s] = make([]frontend.Variable, len(public))
		for k, el := range public {
			var value frontend.Variable = 0
			for l := len(el.Limbs) - 1; l >= 0; l-- {
				value = api.Add(api.Mul(value, limbBase), el.Limbs[l])
			}
			slotPublic[s][k] = value
		}
	}

	// 2. sum per-asset totals with overflow check (spec §4.4 constraint
	// 2): two positive addends can never legitimately sum to a negative
	// value, so that combination is forbidden at every step.
	for a := 0; a < assetCount; a++ {
		var running frontend.Variable = 0
		for s := 0; s < RecursiveSize; s++ {
			addend := slotPublic[s][a]
			p1 := sign.isPositive(api, running)
			p2 := sign.isPositive(api, addend)
			newSum := api.Add(running, addend)
			overflowed := sign.isNegative(api, newSum)
			forbidden := api.Mul(api.Mul(p1, p2), overflowed)
			api.AssertIsEqual(forbidden, 0)
			running = newSum
		}
		api.AssertIsEqual(running, c.PublicInputs.PerAssetTotal[a])
	}

	// 3. every slot's asset prices must agree with slot 0's.
	for s := 1; s < RecursiveSize; s++ {
		for a := 0; a < assetCount; a++ {
			api.AssertIsEqual(slotPublic[s][assetCount+a], slotPublic[0][assetCount+a])
		}
	}
	for a := 0; a < assetCount; a++ {
		api.AssertIsEqual(slotPublic[0][assetCount+a], c.PublicInputs.AssetPrice[a])
	}

	// 4. fold the inner root hashes.
	rootHashElements := make([]frontend.Variable, 0, RecursiveSize*4)
	for s := 0; s < RecursiveSize; s++ {
		rootHashElements = append(rootHashElements, slotPublic[s][2*assetCount:2*assetCount+4]...)
	}
	hasher.Reset()
	hasher.Write(rootHashElements...)
	root := hasher.Sum()
	api.AssertIsEqual(root, c.PublicInputs.RootHash[0])
	api.AssertIsEqual(c.PublicInputs.RootHash[1], 0)
	api.AssertIsEqual(c.PublicInputs.RootHash[2], 0)
	api.AssertIsEqual(c.PublicInputs.RootHash[3], 0)

	return nil
}
