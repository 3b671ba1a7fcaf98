package core

import (
	"errors"
	"math/big"
	"testing"

	"github.com/consensys/gnark-crypto/ecc"

	"github.com/otter-sec/por-v2/circuit"
)

func sampleFinalProof() *FinalProof {
	return &FinalProof{
		BatchSize:     circuit.BatchSize,
		RecursiveSize: circuit.RecursiveSize,
		AssetNames:    []string{"btc", "eth"},
		AssetPrices:   circuit.GoBalance{big.NewInt(1), big.NewInt(2)},
		AssetDecimals: []AssetDecimals{
			{Name: "btc", USDTDecimals: 2, BalanceDecimals: 6},
			{Name: "eth", USDTDecimals: 2, BalanceDecimals: 6},
		},
		TotalReserves: circuit.GoBalance{big.NewInt(100), big.NewInt(200)},
		ProverVersion: ProverVersion,
	}
}

func TestCheckAssetInvariantsAcceptsConsistentTable(t *testing.T) {
	if err := checkAssetInvariants(sampleFinalProof()); err != nil {
		t.Fatalf("checkAssetInvariants: %v", err)
	}
}

func TestCheckAssetInvariantsRejectsNoAssets(t *testing.T) {
	fp := sampleFinalProof()
	fp.AssetNames = nil
	if err := checkAssetInvariants(fp); !errors.Is(err, ErrLedgerMalformed) {
		t.Fatalf("err = %v, want ErrLedgerMalformed", err)
	}
}

func TestCheckAssetInvariantsRejectsLengthMismatch(t *testing.T) {
	fp := sampleFinalProof()
	fp.AssetPrices = circuit.GoBalance{big.NewInt(1)}
	if err := checkAssetInvariants(fp); !errors.Is(err, ErrLedgerMalformed) {
		t.Fatalf("err = %v, want ErrLedgerMalformed", err)
	}
}

func TestCheckAssetInvariantsRejectsInconsistentDecimalSum(t *testing.T) {
	fp := sampleFinalProof()
	fp.AssetDecimals[1].USDTDecimals = 99
	if err := checkAssetInvariants(fp); !errors.Is(err, ErrLedgerMalformed) {
		t.Fatalf("err = %v, want ErrLedgerMalformed", err)
	}
}

func TestAssertConfigAcceptsMatchingConfig(t *testing.T) {
	fp := sampleFinalProof()
	cfg := DefaultConfig()
	if err := assertConfig(fp, cfg); err != nil {
		t.Fatalf("assertConfig: %v", err)
	}
}

func TestAssertConfigWarnsButPassesOnVersionMismatchWhenNotStrict(t *testing.T) {
	fp := sampleFinalProof()
	fp.ProverVersion = "por-v2/0"
	cfg := DefaultConfig()
	cfg.Strict = false
	if err := assertConfig(fp, cfg); err != nil {
		t.Fatalf("assertConfig (non-strict) = %v, want nil", err)
	}
}

func TestAssertConfigFailsOnVersionMismatchWhenStrict(t *testing.T) {
	fp := sampleFinalProof()
	fp.ProverVersion = "por-v2/0"
	cfg := DefaultConfig()
	cfg.Strict = true
	if err := assertConfig(fp, cfg); !errors.Is(err, ErrConfigMismatch) {
		t.Fatalf("err = %v, want ErrConfigMismatch", err)
	}
}

func TestAssertConfigAlwaysFailsOnSizeMismatch(t *testing.T) {
	fp := sampleFinalProof()
	fp.BatchSize = circuit.BatchSize + 1
	cfg := DefaultConfig()
	if err := assertConfig(fp, cfg); !errors.Is(err, ErrConfigMismatch) {
		t.Fatalf("err = %v, want ErrConfigMismatch", err)
	}
}

// buildInclusionFixture builds one leaf, folds it once through a
// BLS12-377 parent (mirroring the leaf-to-batch-parent transition's
// curve per Tree.Verify), and returns a FinalProof/InclusionProof pair
// consistent with that root, for VerifyUserInclusion to check.
func buildInclusionFixture(t *testing.T) (*FinalProof, *InclusionProof) {
	t.Helper()
	account := circuit.GoAccount{
		UserHash: "1111111111111111",
		Balance:  circuit.GoBalance{big.NewInt(10), big.NewInt(20)},
		Nonce:    7,
	}
	bls12377Mod := ecc.BLS12_377.ScalarField()
	leafHasher, err := circuit.NewGoMiMCHasher(ecc.BLS12_377)
	if err != nil {
		t.Fatalf("leaf hasher: %v", err)
	}
	leafDigest, err := circuit.GoHashAccount(leafHasher, account, bls12377Mod)
	if err != nil {
		t.Fatalf("GoHashAccount: %v", err)
	}

	// VerifyUserInclusion hashes the first (leaf-to-batch-parent) step
	// with the BLS12-377 hasher, matching Tree.Verify's curve choice for
	// that transition; build the expected root the same way.
	sibling := []byte("sibling-leaf-digest-sibling-lea")
	leafHasher.Reset()
	if _, err := leafHasher.Write(leafDigest); err != nil {
		t.Fatalf("write leaf: %v", err)
	}
	if _, err := leafHasher.Write(sibling); err != nil {
		t.Fatalf("write sibling: %v", err)
	}
	root := leafHasher.Sum(nil)

	finalProof := sampleFinalProof()
	finalProof.RootHash = root

	inclusionProof := &InclusionProof{
		UserBalances: account.Balance,
		UserHash:     account.UserHash,
		Nonce:        account.Nonce,
		RootHash:     root,
		MerkleProof:  &MerkleProof{Left: nil, Right: [][]byte{sibling}},
	}
	return finalProof, inclusionProof
}

func TestVerifyUserInclusionAcceptsValidProof(t *testing.T) {
	finalProof, inclusionProof := buildInclusionFixture(t)
	if err := VerifyUserInclusion(finalProof, inclusionProof); err != nil {
		t.Fatalf("VerifyUserInclusion: %v", err)
	}
}

func TestVerifyUserInclusionRejectsRootHashMismatch(t *testing.T) {
	finalProof, inclusionProof := buildInclusionFixture(t)
	inclusionProof.RootHash = append([]byte{}, finalProof.RootHash...)
	finalProof.RootHash = []byte("a completely different root hash")
	if err := VerifyUserInclusion(finalProof, inclusionProof); !errors.Is(err, ErrRootHashMismatch) {
		t.Fatalf("err = %v, want ErrRootHashMismatch", err)
	}
}

func TestVerifyUserInclusionRejectsTamperedBalance(t *testing.T) {
	finalProof, inclusionProof := buildInclusionFixture(t)
	inclusionProof.UserBalances[0] = big.NewInt(999)
	if err := VerifyUserInclusion(finalProof, inclusionProof); !errors.Is(err, ErrRootHashMismatch) {
		t.Fatalf("err = %v, want ErrRootHashMismatch", err)
	}
}

func TestVerifyUserInclusionRejectsTamperedSibling(t *testing.T) {
	finalProof, inclusionProof := buildInclusionFixture(t)
	inclusionProof.MerkleProof.Right[0] = []byte("a tampered sibling digest!!!!!!")
	if err := VerifyUserInclusion(finalProof, inclusionProof); !errors.Is(err, ErrRootHashMismatch) {
		t.Fatalf("err = %v, want ErrRootHashMismatch", err)
	}
}
