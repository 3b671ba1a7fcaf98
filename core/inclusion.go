package core

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"

	"github.com/otter-sec/por-v2/errs"
	"github.com/otter-sec/por-v2/ledger"
)

// ProveUserInclusion builds one user's inclusion proof from the already-
// populated tree and the nonces drawn during ProveGlobal (spec §4.7.1).
func ProveUserInclusion(index int, l *ledger.Ledger, tree *Tree, nonces []uint64) (*InclusionProof, error) {
	if index < 0 || index >= len(l.Accounts) || index >= len(nonces) {
		return nil, fmt.Errorf("%w: account index %d out of range", ErrUserNotFound, index)
	}
	path, ok := tree.NthLeafPath(index)
	if !ok {
		return nil, fmt.Errorf("%w: account index %d has no leaf in the tree", ErrUserNotFound, index)
	}
	merkleProof, err := tree.ProveInclusion(path)
	if err != nil {
		return nil, err
	}
	account := l.Accounts[index]
	return &InclusionProof{
		UserBalances: account.Balance,
		UserHash:     account.UserHash,
		Nonce:        nonces[index],
		MerkleProof:  merkleProof,
		RootHash:     tree.Root().Hash,
	}, nil
}

// ProveUserInclusionByHash looks a userhash up in the ledger before
// delegating to ProveUserInclusion (spec §4.7.1, §6 prove-inclusion
// --userhash).
func ProveUserInclusionByHash(userHash string, l *ledger.Ledger, tree *Tree, nonces []uint64) (*InclusionProof, error) {
	idx := l.IndexOf(userHash)
	if idx < 0 {
		return nil, fmt.Errorf("%w: userhash %q not found in ledger", ErrUserNotFound, userHash)
	}
	return ProveUserInclusion(idx, l, tree, nonces)
}

// ProveAllUserInclusions writes one InclusionProof file per account to
// outDir (spec §6 prove-inclusion --all), fanning the (cheap, proving-
// free) per-account work out across the pipeline's work-stealing pool
// (spec §5) — every inclusion proof here is independent of every other,
// so this is the one place in the pipeline where that pool pays for
// itself without the padding/ordering concerns proving has.
func ProveAllUserInclusions(l *ledger.Ledger, tree *Tree, nonces []uint64, outDir string) error {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("%w: creating %s: %v", errs.ErrIOFailure, outDir, err)
	}

	tasks := make([]ProofTask, len(l.Accounts))
	for i := range l.Accounts {
		i := i
		tasks[i] = ProofTask{Index: i, Execute: func() error {
			proof, err := ProveUserInclusion(i, l, tree, nonces)
			if err != nil {
				return err
			}
			path := filepath.Join(outDir, fmt.Sprintf("%s.json", proof.UserHash))
			return WriteDataToFile(path, *proof)
		}}
	}
	return NewWorkStealingPool(0).RunTasks(tasks)
}

// userHashPrefix groups inclusion proofs into batches by the first 3 hex
// characters of the userhash (spec §4.7.1 --all-batched).
func userHashPrefix(userHash string) string {
	if len(userHash) < 3 {
		return userHash
	}
	return userHash[:3]
}

// ProveAllUserInclusionsBatched writes one zstd-compressed JSON bundle
// per userhash prefix group to outDir, named
// inclusion_proofs_<prefix>.json.zst (spec §4.7.1 --all-batched).
func ProveAllUserInclusionsBatched(l *ledger.Ledger, tree *Tree, nonces []uint64, outDir string) error {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("%w: creating %s: %v", errs.ErrIOFailure, outDir, err)
	}

	proofs := make([]*InclusionProof, len(l.Accounts))
	tasks := make([]ProofTask, len(l.Accounts))
	for i := range l.Accounts {
		i := i
		tasks[i] = ProofTask{Index: i, Execute: func() error {
			proof, err := ProveUserInclusion(i, l, tree, nonces)
			if err != nil {
				return err
			}
			proofs[i] = proof
			return nil
		}}
	}
	if err := NewWorkStealingPool(0).RunTasks(tasks); err != nil {
		return err
	}

	groups := make(map[string][]*InclusionProof)
	for _, proof := range proofs {
		prefix := userHashPrefix(proof.UserHash)
		groups[prefix] = append(groups[prefix], proof)
	}

	for prefix, proofs := range groups {
		path := filepath.Join(outDir, fmt.Sprintf("inclusion_proofs_%s.json.zst", prefix))
		if err := writeZstJSON(path, proofs); err != nil {
			return err
		}
	}
	return nil
}

// ReadInclusionProofBundle reads one --all-batched bundle back.
func ReadInclusionProofBundle(path string) ([]*InclusionProof, error) {
	var proofs []*InclusionProof
	if err := readZstJSON(path, &proofs); err != nil {
		return nil, err
	}
	return proofs, nil
}

// writeZstJSON marshals data to indented JSON and compresses it with
// zstd at the encoder's default level (level 3, spec §4.7.1).
func writeZstJSON(path string, data interface{}) error {
	raw, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: marshalling %s: %v", errs.ErrIOFailure, path, err)
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("%w: creating %s: %v", errs.ErrIOFailure, path, err)
	}
	defer file.Close()

	enc, err := zstd.NewWriter(file, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return fmt.Errorf("%w: opening zstd writer for %s: %v", errs.ErrIOFailure, path, err)
	}
	if _, err := enc.Write(raw); err != nil {
		enc.Close()
		return fmt.Errorf("%w: compressing %s: %v", errs.ErrIOFailure, path, err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("%w: finalising %s: %v", errs.ErrIOFailure, path, err)
	}
	return nil
}

func readZstJSON(path string, out interface{}) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("%w: opening %s: %v", errs.ErrIOFailure, path, err)
	}
	defer file.Close()

	dec, err := zstd.NewReader(file)
	if err != nil {
		return fmt.Errorf("%w: opening zstd reader for %s: %v", errs.ErrIOFailure, path, err)
	}
	defer dec.Close()

	raw, err := io.ReadAll(dec)
	if err != nil {
		return fmt.Errorf("%w: decompressing %s: %v", errs.ErrIOFailure, path, err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: decoding %s: %v", errs.ErrIOFailure, path, err)
	}
	return nil
}
