package core

import (
	"bytes"
	"fmt"
	"math/big"
	"sync/atomic"
	"time"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/backend/witness"
	"github.com/consensys/gnark/constraint"
	"github.com/consensys/gnark/frontend"

	"github.com/otter-sec/por-v2/circuit"
	"github.com/otter-sec/por-v2/ledger"
)

// nodeProof is what one level of folding needs to remember about a
// single child proof: the proof itself plus its public witness (fed to
// the parent's in-circuit verifier), and the plain-Go values (total,
// folded root hash) the parent's own public inputs are built from.
type nodeProof struct {
	proof     groth16.Proof
	witness   witness.Witness
	total     circuit.GoBalance
	rootHash4 [4]*big.Int
}

// PipelineResult is everything ProveGlobal produces: the root proof, the
// populated Merkle tree, and the nonces drawn for every (padded) account,
// in ledger order (spec §4.7 step 8).
type PipelineResult struct {
	FinalProof FinalProof
	Tree       *Tree
	Nonces     []uint64
	Registry   *Registry
}

// ProveGlobal runs the full proving pipeline of spec §4.7: pad, batch-
// prove, build the Merkle tree's leaf and batch-parent levels from the
// batch proofs' own root hashes, then fold recursive circuit levels
// bottom-up until a single root proof remains.
func ProveGlobal(l *ledger.Ledger, cfg Config, progress ProgressFunc) (*PipelineResult, error) {
	l.Pad(cfg.BatchSize)
	if len(l.Accounts) == 0 {
		return nil, fmt.Errorf("%w: ledger has no accounts", ErrLedgerMalformed)
	}
	wordCount := len(l.Accounts[0].UserHash) / circuit.UserHashWordChars
	assetCount := len(l.Assets)
	prices := l.Prices()

	registry, err := NewRegistry(assetCount, wordCount, prices)
	if err != nil {
		return nil, fmt.Errorf("building circuit registry: %w", err)
	}

	// Nonces are drawn strictly in ledger order before any proving fans
	// out (spec §4.2/§5): a parallel proving phase must never be allowed
	// to reorder which nonce lands on which account.
	nonces, err := circuit.GenerateNonces(len(l.Accounts))
	if err != nil {
		return nil, fmt.Errorf("generating nonces: %w", err)
	}

	bls12377Mod := ecc.BLS12_377.ScalarField()
	bw6761Mod := ecc.BW6_761.ScalarField()

	numBatches := len(l.Accounts) / cfg.BatchSize
	leafDigestsByBatch := make([][][]byte, numBatches)
	batchNodes := make([]nodeProof, numBatches)

	var batchesDone int64
	batchTasks := make([]ProofTask, numBatches)
	for b := 0; b < numBatches; b++ {
		b := b
		batchTasks[b] = ProofTask{Index: b, Execute: func() error {
			proveStart := time.Now()
			hasher, err := circuit.NewGoMiMCHasher(ecc.BLS12_377)
			if err != nil {
				return err
			}
			chunkAccounts := l.Accounts[b*cfg.BatchSize : (b+1)*cfg.BatchSize]
			chunkNonces := nonces[b*cfg.BatchSize : (b+1)*cfg.BatchSize]

			assignment, chunkLeafDigests, err := circuit.BuildBatchAssignment(chunkAccounts, chunkNonces, prices, bls12377Mod, hasher)
			if err != nil {
				return fmt.Errorf("building batch %d assignment: %w", b, err)
			}
			leafDigestsByBatch[b] = chunkLeafDigests

			root, err := circuit.HashLeaves(hasher, chunkLeafDigests)
			if err != nil {
				return err
			}

			proof, pubWitness, err := proveCircuit(registry.BC.CCS, registry.BC.PK, assignment, ecc.BLS12_377)
			if err != nil {
				return fmt.Errorf("proving batch %d: %w", b, err)
			}

			batchNodes[b] = nodeProof{
				proof:     proof,
				witness:   pubWitness,
				total:     circuit.SumGoAccountBalances(chunkAccounts, assetCount),
				rootHash4: [4]*big.Int{new(big.Int).SetBytes(root), big.NewInt(0), big.NewInt(0), big.NewInt(0)},
			}
			done := atomic.AddInt64(&batchesDone, 1)
			progress.emit("batch-proving", int(done), numBatches)
			Log.Debug().Int("batch_index", b).Int64("duration_ms", time.Since(proveStart).Milliseconds()).Msg("batch proved")
			return nil
		}}
	}
	// Batches are proved independently of one another (spec §5): the
	// work-stealing pool fans them out across goroutines, with nonce
	// assignment already fixed by the sequential draw above so proving
	// order has no effect on which nonce backs which account.
	if err := NewWorkStealingPool(0).RunTasks(batchTasks); err != nil {
		return nil, err
	}

	leafDigests := make([][]byte, 0, len(l.Accounts))
	for _, chunk := range leafDigestsByBatch {
		leafDigests = append(leafDigests, chunk...)
	}

	tree := NewFromLeaves(leafDigests, cfg.BatchSize, cfg.RecursiveSize)
	batchParentLevel := tree.Depth() - 2
	for i, n := range tree.NodesAtDepth(batchParentLevel) {
		n.Hash = batchNodes[i].rootHash4[0].FillBytes(make([]byte, (bls12377Mod.BitLen()+7)/8))
	}

	// Fold upward, one recursive circuit level per tree level, until the
	// level above the current one holds a single node: the root (spec
	// §4.7 prove_recursively).
	level := batchParentLevel
	currentNodes := batchNodes
	innerCCS := registry.BC.CCS
	innerVK := registry.BC.VK
	innerDigest := registry.BC.Digest

	for level > 0 {
		levelStart := time.Now()
		parentLevel := level - 1
		isFirstFold := level == batchParentLevel
		progress.emit("folding", tree.Depth()-1-level, tree.Depth()-1)

		var compiledCCS constraint.ConstraintSystem
		if isFirstFold {
			compiledCCS, err = circuit.CompileLevel1RecursiveCircuit(assetCount, innerCCS)
		} else {
			compiledCCS, err = circuit.CompileFoldRecursiveCircuit(assetCount, innerCCS)
		}
		if err != nil {
			return nil, fmt.Errorf("compiling level %d recursive circuit: %w", parentLevel, err)
		}
		pk, vk, err := groth16.Setup(compiledCCS)
		if err != nil {
			return nil, fmt.Errorf("setting up level %d recursive circuit: %w", parentLevel, err)
		}
		digest, err := verifierDigest(vk)
		if err != nil {
			return nil, err
		}
		registryDepth := parentLevel + 1
		entry := &CompiledCircuit{CCS: compiledCCS, PK: pk, VK: vk, Digest: digest}
		registry.AddRecursiveCircuit(entry, registryDepth)

		// Every level but the root caches an empty-instance proof, so
		// that the level above it can pad a short fold group (spec §4.5
		// "if depth == 1 the empty proof is not materialised").
		if registryDepth != 1 {
			emptyProof, emptyWitness, err := buildEmptyFoldProof(isFirstFold, assetCount, bw6761Mod, innerVK, innerDigest, registry, compiledCCS, pk, prices, ecc.BW6_761)
			if err != nil {
				return nil, fmt.Errorf("caching empty proof for level %d: %w", parentLevel, err)
			}
			emptyWitnessBytes, err := marshalWitness(emptyWitness)
			if err != nil {
				return nil, err
			}
			entry.EmptyProof = emptyProof
			entry.EmptyPublicWitness = emptyWitness
			entry.EmptyWitness = emptyWitnessBytes
		}

		childEmptyProof, _ := registry.GetEmptyProof(innerDigest)
		childEmptyWitness, hasEmpty := registry.GetEmptyPublicWitness(innerDigest)
		treeParent := tree.NodesAtDepth(parentLevel)
		groupCount := len(treeParent)
		nextNodes := make([]nodeProof, groupCount)

		groupTasks := make([]ProofTask, groupCount)
		for g := 0; g < groupCount; g++ {
			g := g
			groupTasks[g] = ProofTask{Index: g, Execute: func() error {
				start := g * cfg.RecursiveSize
				children, err := padGroup(currentNodes, start, cfg.RecursiveSize, childEmptyProof, childEmptyWitness, hasEmpty)
				if err != nil {
					return fmt.Errorf("level %d group %d: %w", parentLevel, g, err)
				}

				proofs := make([]groth16.Proof, len(children))
				witnesses := make([]witness.Witness, len(children))
				totals := make([]circuit.GoBalance, len(children))
				rootHashes := make([][4]*big.Int, len(children))
				for i, c := range children {
					proofs[i] = c.proof
					witnesses[i] = c.witness
					totals[i] = c.total
					rootHashes[i] = c.rootHash4
				}

				hasher, err := circuit.NewGoMiMCHasher(ecc.BW6_761)
				if err != nil {
					return err
				}

				var assignment frontend.Circuit
				if isFirstFold {
					assignment, err = circuit.BuildLevel1Assignment(innerVK, proofs, witnesses, assetCount, bw6761Mod, hasher, totals, prices, rootHashes)
				} else {
					assignment, err = circuit.BuildFoldAssignment(innerVK, proofs, witnesses, assetCount, bw6761Mod, hasher, totals, prices, rootHashes)
				}
				if err != nil {
					return fmt.Errorf("building level %d group %d assignment: %w", parentLevel, g, err)
				}

				proof, pubWitness, err := proveCircuit(compiledCCS, pk, assignment, ecc.BW6_761)
				if err != nil {
					return fmt.Errorf("proving level %d group %d: %w", parentLevel, g, err)
				}

				total := circuit.SumGoBalances(totals)
				root, err := circuit.RootHashFold(hasher, bw6761Mod, rootHashes)
				if err != nil {
					return err
				}
				treeParent[g].Hash = root
				nextNodes[g] = nodeProof{
					proof:     proof,
					witness:   pubWitness,
					total:     total,
					rootHash4: [4]*big.Int{new(big.Int).SetBytes(root), big.NewInt(0), big.NewInt(0), big.NewInt(0)},
				}
				return nil
			}}
		}
		// Every group at this level folds a disjoint slice of currentNodes
		// into a disjoint slot of nextNodes/treeParent, so the pool can run
		// them concurrently with no cross-group coordination (spec §5).
		if err := NewWorkStealingPool(0).RunTasks(groupTasks); err != nil {
			return nil, err
		}

		currentNodes = nextNodes
		innerCCS = compiledCCS
		innerVK = vk
		innerDigest = digest
		level = parentLevel
		Log.Debug().Int("depth", registryDepth).Int64("duration_ms", time.Since(levelStart).Milliseconds()).Msg("recursive level folded")
	}
	progress.emit("folding", tree.Depth()-1, tree.Depth()-1)

	if len(currentNodes) != 1 {
		return nil, fmt.Errorf("%w: folding left %d root proofs, expected 1", ErrConstraintViolation, len(currentNodes))
	}

	// A ledger that fits in a single batch collapses the RC levels
	// entirely (spec §4.6/§8 S1): the tree is just leaves + the batch's
	// own root, and the root proof is the batch proof itself, verified
	// with the batch circuit's (BLS12-377) verifying key rather than any
	// recursive circuit's.
	var rootVK groth16.VerifyingKey
	if tree.Depth() == 2 {
		rootVK = registry.BC.VK
	} else {
		rootEntry, ok := registry.GetRecursiveCircuitByDepth(1)
		if !ok {
			return nil, fmt.Errorf("%w: root recursive circuit missing from registry", ErrConstraintViolation)
		}
		rootVK = rootEntry.VK
	}

	var proofBuf bytes.Buffer
	if _, err := currentNodes[0].proof.WriteTo(&proofBuf); err != nil {
		return nil, fmt.Errorf("serialising root proof: %w", err)
	}
	var vkBuf bytes.Buffer
	if _, err := rootVK.WriteTo(&vkBuf); err != nil {
		return nil, fmt.Errorf("serialising root verifying key: %w", err)
	}

	assetNames := make([]string, assetCount)
	assetDecimals := make([]AssetDecimals, assetCount)
	for i, a := range l.Assets {
		assetNames[i] = a.Name
		assetDecimals[i] = AssetDecimals{Name: a.Name, USDTDecimals: a.USDTDecimals, BalanceDecimals: a.BalanceDecimals}
	}

	finalProof := FinalProof{
		Proof:                   proofBuf.Bytes(),
		BatchSize:               cfg.BatchSize,
		RecursiveSize:           cfg.RecursiveSize,
		AssetNames:              assetNames,
		AssetPrices:             prices,
		AssetDecimals:           assetDecimals,
		TotalReserves:           currentNodes[0].total,
		RootHash:                tree.Root().Hash,
		TreeDepth:               tree.Depth(),
		Timestamp:               l.Timestamp,
		ProverVersion:           cfg.ProverVersion,
		RootCircuitVerifierData: vkBuf.Bytes(),
	}

	return &PipelineResult{FinalProof: finalProof, Tree: tree, Nonces: nonces, Registry: registry}, nil
}

// padGroup slices out RecursiveSize children starting at start, padding
// a short final group with the registry's cached empty proof for the
// inner circuit (spec §4.7 "padding with empty proofs"). A short group
// with no empty proof available (the batch circuit always has one; see
// NewRegistry) is a configuration error.
func padGroup(nodes []nodeProof, start, size int, emptyProof groth16.Proof, emptyWitness witness.Witness, hasEmpty bool) ([]nodeProof, error) {
	end := start + size
	if end <= len(nodes) {
		return nodes[start:end], nil
	}
	if !hasEmpty {
		return nil, fmt.Errorf("%w: short fold group has no cached empty proof to pad with", ErrConstraintViolation)
	}
	out := append([]nodeProof{}, nodes[start:]...)
	for len(out) < size {
		var zeroTotal circuit.GoBalance
		if len(nodes) > 0 {
			zeroTotal = make(circuit.GoBalance, len(nodes[0].total))
			for i := range zeroTotal {
				zeroTotal[i] = big.NewInt(0)
			}
		}
		out = append(out, nodeProof{
			proof:     emptyProof,
			witness:   emptyWitness,
			total:     zeroTotal,
			rootHash4: [4]*big.Int{big.NewInt(0), big.NewInt(0), big.NewInt(0), big.NewInt(0)},
		})
	}
	return out, nil
}

// buildEmptyFoldProof materialises the empty-instance proof for a freshly
// compiled recursive circuit level, by folding RecursiveSize copies of
// the (already-cached) empty proof one level below — mirroring
// NewRegistry's batch-circuit empty proof, one level up (spec §4.5).
func buildEmptyFoldProof(isFirstFold bool, assetCount int, modulus *big.Int, innerVK groth16.VerifyingKey, innerDigest []byte, registry *Registry, compiledCCS constraint.ConstraintSystem, pk groth16.ProvingKey, prices circuit.GoBalance, curve ecc.ID) (groth16.Proof, witness.Witness, error) {
	childProof, ok := registry.GetEmptyProof(innerDigest)
	if !ok {
		return nil, nil, fmt.Errorf("%w: no empty proof cached for inner circuit", ErrConstraintViolation)
	}
	childWitness, ok := registry.GetEmptyPublicWitness(innerDigest)
	if !ok {
		return nil, nil, fmt.Errorf("%w: no empty public witness cached for inner circuit", ErrConstraintViolation)
	}

	zeroTotal := make(circuit.GoBalance, assetCount)
	for i := range zeroTotal {
		zeroTotal[i] = big.NewInt(0)
	}
	proofs := make([]groth16.Proof, circuit.RecursiveSize)
	witnesses := make([]witness.Witness, circuit.RecursiveSize)
	totals := make([]circuit.GoBalance, circuit.RecursiveSize)
	rootHashes := make([][4]*big.Int, circuit.RecursiveSize)
	for i := 0; i < circuit.RecursiveSize; i++ {
		proofs[i] = childProof
		witnesses[i] = childWitness
		totals[i] = zeroTotal
		rootHashes[i] = [4]*big.Int{big.NewInt(0), big.NewInt(0), big.NewInt(0), big.NewInt(0)}
	}

	hasher, err := circuit.NewGoMiMCHasher(curve)
	if err != nil {
		return nil, nil, err
	}
	var assignment frontend.Circuit
	if isFirstFold {
		assignment, err = circuit.BuildLevel1Assignment(innerVK, proofs, witnesses, assetCount, modulus, hasher, totals, prices, rootHashes)
	} else {
		assignment, err = circuit.BuildFoldAssignment(innerVK, proofs, witnesses, assetCount, modulus, hasher, totals, prices, rootHashes)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("building empty fold assignment: %w", err)
	}
	return proveCircuit(compiledCCS, pk, assignment, curve)
}
