package circuit

import (
	"fmt"
	"math/big"
	"testing"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/test"
)

const testAssetCount = 2
const testWordCount = 2
const testNumAccounts = 4

func testAccounts(n int, balances func(i int) GoBalance) []GoAccount {
	zero := ZeroUserHash(testWordCount)
	accounts := make([]GoAccount, n)
	for i := range accounts {
		// stamp a unique hex suffix into the zero userhash so no two
		// accounts in a batch collide at the leaf level.
		suffix := fmt.Sprintf("%08x", i)
		userHash := zero[:len(zero)-len(suffix)] + suffix
		accounts[i] = GoAccount{
			UserHash: userHash,
			Balance:  balances(i),
		}
	}
	return accounts
}

func positiveBalances(i int) GoBalance {
	return GoBalance{big.NewInt(int64(100 + i)), big.NewInt(int64(200 + i))}
}

func testPrices() GoBalance {
	return GoBalance{big.NewInt(1), big.NewInt(2)}
}

func TestBatchCircuitAcceptsValidBatch(t *testing.T) {
	assert := test.NewAssert(t)
	shape := NewEmptyBatchCircuit(testAssetCount, testWordCount)
	if len(shape.Accounts) != BatchSize {
		t.Fatalf("shape has %d account slots, expected BatchSize=%d", len(shape.Accounts), BatchSize)
	}

	paddedAssignment := padBatchAssignment(t, testNumAccounts)
	assert.ProverSucceeded(shape, paddedAssignment, test.WithCurves(ecc.BLS12_377), test.WithBackends(backend.GROTH16))
}

// padBatchAssignment builds a short test batch's account list and pads
// it out to BatchSize with empty accounts, mirroring what ledger.Pad
// does for a real ledger before core.ProveGlobal ever builds a batch
// assignment.
func padBatchAssignment(t *testing.T, n int) *BatchCircuit {
	t.Helper()
	modulus := ecc.BLS12_377.ScalarField()
	hasher, err := NewGoMiMCHasher(ecc.BLS12_377)
	if err != nil {
		t.Fatalf("new hasher: %v", err)
	}

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

	full, _, err := BuildBatchAssignment(padded, nonces, testPrices(), modulus, hasher)
	if err != nil {
		t.Fatalf("BuildBatchAssignment (padded): %v", err)
	}
	return full
}

// TestBatchCircuitAcceptsNegativeBalancesWithNonNegativeEquity exercises
// spec scenario S2: individual per-asset balances may be negative as
// long as the account's total equity at current prices is not. Balances
// are embedded non-canonically (ConvertGoAccountToAccount), so this only
// passes if the circuit never range-checks a raw balance value.
func TestBatchCircuitAcceptsNegativeBalancesWithNonNegativeEquity(t *testing.T) {
	assert := test.NewAssert(t)
	modulus := ecc.BLS12_377.ScalarField()
	hasher, err := NewGoMiMCHasher(ecc.BLS12_377)
	if err != nil {
		t.Fatalf("new hasher: %v", err)
	}

	accounts := testAccounts(2, func(i int) GoBalance {
		if i == 0 {
			return GoBalance{big.NewInt(10), big.NewInt(-3)}
		}
		return GoBalance{big.NewInt(-2), big.NewInt(5)}
	})
	padded := make([]GoAccount, BatchSize)
	copy(padded, accounts)
	for i := len(accounts); i < BatchSize; i++ {
		padded[i] = EmptyGoAccount(testAssetCount, testWordCount)
	}
	nonces := make([]uint64, BatchSize)
	for i := range accounts {
		nonces[i] = uint64(i + 1)
	}

	assignment, _, err := BuildBatchAssignment(padded, nonces, testPrices(), modulus, hasher)
	if err != nil {
		t.Fatalf("BuildBatchAssignment: %v", err)
	}

	shape := NewEmptyBatchCircuit(testAssetCount, testWordCount)
	assert.ProverSucceeded(shape, assignment, test.WithCurves(ecc.BLS12_377), test.WithBackends(backend.GROTH16))
}

func TestBatchCircuitRejectsNegativeEquity(t *testing.T) {
	assert := test.NewAssert(t)
	modulus := ecc.BLS12_377.ScalarField()
	hasher, err := NewGoMiMCHasher(ecc.BLS12_377)
	if err != nil {
		t.Fatalf("new hasher: %v", err)
	}

	accounts := testAccounts(BatchSize, func(i int) GoBalance {
		if i == 0 {
			return GoBalance{big.NewInt(-5), big.NewInt(0)}
		}
		return GoBalance{big.NewInt(0), big.NewInt(0)}
	})
	nonces := make([]uint64, BatchSize)
	assignment, _, err := BuildBatchAssignment(accounts, nonces, testPrices(), modulus, hasher)
	if err != nil {
		t.Fatalf("BuildBatchAssignment: %v", err)
	}

	shape := NewEmptyBatchCircuit(testAssetCount, testWordCount)
	assert.ProverFailed(shape, assignment, test.WithCurves(ecc.BLS12_377), test.WithBackends(backend.GROTH16))
}

func TestBatchCircuitRejectsWrongRootHash(t *testing.T) {
	assert := test.NewAssert(t)
	assignment := padBatchAssignment(t, testNumAccounts)

	// corrupt the declared root hash so it no longer matches the
	// MiMC fold of the batch's own leaves.
	assignment.RootHash[0] = frontend.Variable(big.NewInt(1))

	shape := NewEmptyBatchCircuit(testAssetCount, testWordCount)
	assert.ProverFailed(shape, assignment, test.WithCurves(ecc.BLS12_377), test.WithBackends(backend.GROTH16))
}
