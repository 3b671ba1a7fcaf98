package core

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"time"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/backend/witness"
	"github.com/consensys/gnark/constraint"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/frontend/cs/r1cs"

	"github.com/otter-sec/por-v2/circuit"
)

// CompiledCircuit bundles everything the registry needs to prove and
// verify with one circuit instance (spec §4.5 "circuit registry
// entries"): its constraint system, its proving/verifying keys, its
// content-addressed digest, and — except for the root level — a cached
// empty proof.
type CompiledCircuit struct {
	Depth              int
	Digest             []byte
	CCS                constraint.ConstraintSystem
	PK                 groth16.ProvingKey
	VK                 groth16.VerifyingKey
	EmptyProof         groth16.Proof
	EmptyPublicWitness witness.Witness // live object, used to pad the next fold level up
	EmptyWitness       []byte          // serialised form of EmptyPublicWitness
}

// Registry owns the batch circuit and one recursive circuit per tree
// level (spec §4.5). Mutated only from the pipeline driver's main
// thread (spec §5 "Shared-resource policy").
type Registry struct {
	AssetCount int
	WordCount  int
	Prices     circuit.GoBalance

	BC *CompiledCircuit

	byDepth  map[int]*CompiledCircuit
	byDigest map[string]*CompiledCircuit
}

// NewRegistry compiles the batch circuit, sets it up, and proves and
// caches its empty proof (spec §4.5 "new(bc, prices)").
func NewRegistry(assetCount, wordCount int, prices circuit.GoBalance) (*Registry, error) {
	setupStart := time.Now()
	bcShape := circuit.NewEmptyBatchCircuit(assetCount, wordCount)
	ccs, err := frontend.Compile(ecc.BLS12_377.ScalarField(), r1cs.NewBuilder, bcShape)
	if err != nil {
		return nil, fmt.Errorf("compiling batch circuit: %w", err)
	}
	pk, vk, err := groth16.Setup(ccs)
	if err != nil {
		return nil, fmt.Errorf("setting up batch circuit: %w", err)
	}
	digest, err := verifierDigest(vk)
	if err != nil {
		return nil, err
	}

	bc := &CompiledCircuit{Depth: -1, Digest: digest, CCS: ccs, PK: pk, VK: vk}

	r := &Registry{
		AssetCount: assetCount,
		WordCount:  wordCount,
		Prices:     prices,
		BC:         bc,
		byDepth:    make(map[int]*CompiledCircuit),
		byDigest:   make(map[string]*CompiledCircuit),
	}
	r.byDigest[string(digest)] = bc

	hasher, err := circuit.NewGoMiMCHasher(ecc.BLS12_377)
	if err != nil {
		return nil, err
	}
	emptyAccounts := make([]circuit.GoAccount, circuit.BatchSize)
	emptyNonces := make([]uint64, circuit.BatchSize)
	for i := range emptyAccounts {
		emptyAccounts[i] = circuit.EmptyGoAccount(assetCount, wordCount)
	}
	assignment, _, err := circuit.BuildBatchAssignment(emptyAccounts, emptyNonces, prices, ecc.BLS12_377.ScalarField(), hasher)
	if err != nil {
		return nil, fmt.Errorf("building batch circuit empty assignment: %w", err)
	}
	proof, pubWitness, err := proveCircuit(ccs, pk, assignment, ecc.BLS12_377)
	if err != nil {
		return nil, fmt.Errorf("proving batch circuit empty instance: %w", err)
	}
	witnessBytes, err := marshalWitness(pubWitness)
	if err != nil {
		return nil, err
	}
	bc.EmptyProof = proof
	bc.EmptyPublicWitness = pubWitness
	bc.EmptyWitness = witnessBytes

	Log.Debug().Int("depth", -1).Int64("duration_ms", time.Since(setupStart).Milliseconds()).Msg("batch circuit registered")
	return r, nil
}

// GetBatchCircuit returns the registry's single batch circuit.
func (r *Registry) GetBatchCircuit() *CompiledCircuit { return r.BC }

// GetRecursiveCircuit looks up an entry by its verifier digest (spec
// §4.5 get_recursive_circuit).
func (r *Registry) GetRecursiveCircuit(digest []byte) (*CompiledCircuit, bool) {
	e, ok := r.byDigest[string(digest)]
	return e, ok
}

// GetRecursiveCircuitByDepth looks up an entry by tree depth, used only
// at emission to fetch the root's verifier data (spec §4.5).
func (r *Registry) GetRecursiveCircuitByDepth(depth int) (*CompiledCircuit, bool) {
	e, ok := r.byDepth[depth]
	return e, ok
}

// GetEmptyProof returns the cached empty proof for digest: the batch
// circuit's when digest matches it, otherwise the matching RC entry's
// (spec §4.5 get_empty_proof).
func (r *Registry) GetEmptyProof(digest []byte) (groth16.Proof, bool) {
	if bytes.Equal(digest, r.BC.Digest) {
		return r.BC.EmptyProof, true
	}
	e, ok := r.byDigest[string(digest)]
	if !ok || e.EmptyProof == nil {
		return nil, false
	}
	return e.EmptyProof, true
}

// GetEmptyPublicWitness mirrors GetEmptyProof for the paired public
// witness object, needed to pad a fold group's InnerWitnesses slot.
func (r *Registry) GetEmptyPublicWitness(digest []byte) (witness.Witness, bool) {
	if bytes.Equal(digest, r.BC.Digest) {
		return r.BC.EmptyPublicWitness, r.BC.EmptyPublicWitness != nil
	}
	e, ok := r.byDigest[string(digest)]
	if !ok || e.EmptyPublicWitness == nil {
		return nil, false
	}
	return e.EmptyPublicWitness, true
}

// AddRecursiveCircuit registers a newly compiled RC at depth (1 = root).
// The empty proof is not materialised for the root level (spec §4.5
// "if depth == 1 the empty proof is not materialised").
func (r *Registry) AddRecursiveCircuit(entry *CompiledCircuit, depth int) {
	entry.Depth = depth
	r.byDepth[depth] = entry
	r.byDigest[string(entry.Digest)] = entry
}

func verifierDigest(vk groth16.VerifyingKey) ([]byte, error) {
	var buf bytes.Buffer
	if _, err := vk.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("serialising verifying key for digest: %w", err)
	}
	sum := sha256.Sum256(buf.Bytes())
	return sum[:], nil
}

func marshalWitness(w witness.Witness) ([]byte, error) {
	var buf bytes.Buffer
	if _, err := w.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("serialising public witness: %w", err)
	}
	return buf.Bytes(), nil
}

// proveCircuit proves assignment against ccs/pk and returns both the
// proof and its live public witness object, for immediate use when
// folding the next recursion level (spec §4.7 "prove_recursively").
func proveCircuit(ccs constraint.ConstraintSystem, pk groth16.ProvingKey, assignment frontend.Circuit, curve ecc.ID) (groth16.Proof, witness.Witness, error) {
	fullWitness, err := frontend.NewWitness(assignment, curve.ScalarField())
	if err != nil {
		return nil, nil, fmt.Errorf("building witness: %w", err)
	}
	proof, err := groth16.Prove(ccs, pk, fullWitness)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrConstraintViolation, err)
	}
	publicWitness, err := fullWitness.Public()
	if err != nil {
		return nil, nil, fmt.Errorf("extracting public witness: %w", err)
	}
	return proof, publicWitness, nil
}
