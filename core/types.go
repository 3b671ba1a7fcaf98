package core

import (
	"github.com/otter-sec/por-v2/circuit"
)

// Config carries the compile-time constants and runtime policy a caller
// needs to reproduce or check a proof run (spec §6 "Config constants",
// §9 Open Question ii).
type Config struct {
	BatchSize      int
	RecursiveSize  int
	ProverVersion  string
	// Strict, when true, turns a prover-version mismatch into a fatal
	// ConfigMismatch instead of the reference's log-and-continue
	// behaviour. A batch/recursive size mismatch is fatal either way.
	Strict bool
}

// DefaultConfig mirrors circuit.BatchSize/circuit.RecursiveSize.
func DefaultConfig() Config {
	return Config{
		BatchSize:     circuit.BatchSize,
		RecursiveSize: circuit.RecursiveSize,
		ProverVersion: ProverVersion,
	}
}

// ProverVersion is embedded in every FinalProof and checked (non-fatally,
// by default) by the verifier.
const ProverVersion = "por-v2/1"

// FinalProof is the root artifact of a pipeline run (spec §4.7 step 8,
// §6 "FinalProof file").
type FinalProof struct {
	Proof         []byte `json:"proof"`
	BatchSize     int    `json:"batch_size"`
	RecursiveSize int    `json:"recursive_size"`

	AssetNames    []string           `json:"asset_names"`
	AssetPrices   circuit.GoBalance  `json:"asset_prices"`
	AssetDecimals []AssetDecimals    `json:"asset_decimals"`

	// TotalReserves is the root circuit's own PerAssetTotal public input:
	// the sum, across every account in the padded ledger, of each
	// asset's balance (spec §4.3/§4.4 constraint 2). Published so a
	// verifier can check solvency without the ledger.
	TotalReserves circuit.GoBalance `json:"total_reserves"`
	// RootHash is the root circuit's own folded RootHash[0] public
	// input, i.e. the Merkle tree's root digest (spec §4.6).
	RootHash []byte `json:"root_hash"`

	TreeDepth     int    `json:"tree_depth"`
	Timestamp     uint64 `json:"timestamp"`
	ProverVersion string `json:"prover_version"`

	// RootCircuitVerifierData is the serialised groth16.VerifyingKey of
	// the root circuit (the batch circuit's when TreeDepth is 2, otherwise
	// the top recursive circuit's). VerifyRoot decodes it and checks the
	// root proof against it; it does not re-derive the circuit or compare
	// digests.
	RootCircuitVerifierData []byte `json:"root_circuit_verifier_data"`
}

// AssetDecimals is the decimal descriptor for one asset (spec §3).
type AssetDecimals struct {
	Name            string `json:"name"`
	USDTDecimals    int64  `json:"usdt_decimals"`
	BalanceDecimals int64  `json:"balance_decimals"`
}

// MerkleNode is the on-disk shape of one Merkle tree node (spec §6
// "MerkleTree file"): a recursive tree with optional hash and children.
// Never carries parent pointers (spec §9 "Cyclic data").
type MerkleNode struct {
	Hash     []byte        `json:"hash,omitempty"`
	Children []*MerkleNode `json:"children,omitempty"`
}

// MerkleProof is a linked chain of sibling-hash lists from leaf level
// upward, produced by Tree.ProveInclusion (spec §4.6 prove_inclusion,
// §9 "inclusion proofs chain parent-pointers-free").
type MerkleProof struct {
	Left   [][]byte     `json:"left"`
	Right  [][]byte     `json:"right"`
	Parent *MerkleProof `json:"parent,omitempty"`
}

// InclusionProof is the per-user artifact of spec §4.7.1 / §6.
type InclusionProof struct {
	UserBalances circuit.GoBalance `json:"user_balances"`
	UserHash     string            `json:"user_hash"`
	Nonce        uint64            `json:"nonce"`
	MerkleProof  *MerkleProof      `json:"merkle_proof"`
	RootHash     []byte            `json:"root_hash"`
}

// ProgressEvent is emitted by the pipeline driver so a caller (the CLI,
// the daemon) can report progress without the core depending on any UI
// library (SPEC_FULL.md §4 "Progress reporting").
type ProgressEvent struct {
	Stage string
	Done  int
	Total int
}

// ProgressFunc receives ProgressEvent callbacks. A nil ProgressFunc is
// valid and means "no reporting".
type ProgressFunc func(ProgressEvent)

func (f ProgressFunc) emit(stage string, done, total int) {
	if f != nil {
		f(ProgressEvent{Stage: stage, Done: done, Total: total})
	}
}
