package circuit

import (
	"fmt"
	"math/big"

	"github.com/consensys/gnark/frontend"
)

// SumGoAccountBalances sums balances across accounts, column-wise.
func SumGoAccountBalances(accounts []GoAccount, assetCount int) GoBalance {
	sum := make(GoBalance, assetCount)
	for i := range sum {
		sum[i] = big.NewInt(0)
	}
	for _, account := range accounts {
		for a, b := range account.Balance {
			sum[a] = new(big.Int).Add(sum[a], b)
		}
	}
	return sum
}

// ConvertGoAccountToAccount embeds a GoAccount (plus its private nonce)
// as a witness Account, performing the non-canonical signed embedding
// on every balance and splitting the userhash into words (spec §3).
func ConvertGoAccountToAccount(account GoAccount, nonce uint64, modulus *big.Int) (Account, error) {
	words, err := SplitUserHashWords(account.UserHash)
	if err != nil {
		return Account{}, fmt.Errorf("account %q: %w", account.UserHash, err)
	}

	balance := make(Balance, len(account.Balance))
	for i, b := range account.Balance {
		balance[i] = frontend.Variable(NonCanonicalFieldElement(b, modulus))
	}
	wireWords := make([]frontend.Variable, len(words))
	for i, w := range words {
		wireWords[i] = frontend.Variable(w)
	}

	return Account{
		Balance:      balance,
		UserHashWord: wireWords,
		Nonce:        frontend.Variable(new(big.Int).SetUint64(nonce)),
	}, nil
}

// EmptyGoAccount is the zero account used for padding and for empty-proof
// generation (spec §3 "Padded ledger", §4.2 edge cases).
func EmptyGoAccount(assetCount, wordCount int) GoAccount {
	balance := make(GoBalance, assetCount)
	for i := range balance {
		balance[i] = big.NewInt(0)
	}
	return GoAccount{UserHash: ZeroUserHash(wordCount), Balance: balance, Nonce: 0}
}

// BuildBatchAssignment converts a full batch of accounts and their
// (already-generated, positionally-ordered) nonces into a witness-ready
// BatchCircuit, computing the per-asset totals and the batch's root hash
// along the way (spec §4.3 constraints 3-4). hasher must be the
// gnark-crypto MiMC hasher for modulus's curve (see NewGoMiMCHasher).
// BuildBatchAssignment's second return value is the per-account leaf
// digests, in account order, for the caller to hand to the Merkle tree
// builder (core.NewFromLeaves) — the batch root hash alone only gives
// the tree's batch-parent level.
func BuildBatchAssignment(accounts []GoAccount, nonces []uint64, prices GoBalance, modulus *big.Int, hasher goMiMCHasher) (*BatchCircuit, [][]byte, error) {
	if len(accounts) != len(nonces) {
		return nil, nil, fmt.Errorf("batch has %d accounts but %d nonces", len(accounts), len(nonces))
	}
	assetCount := len(prices)

	wireAccounts := make([]Account, len(accounts))
	leafDigests := make([][]byte, len(accounts))
	for i, account := range accounts {
		wa, err := ConvertGoAccountToAccount(account, nonces[i], modulus)
		if err != nil {
			return nil, nil, err
		}
		wireAccounts[i] = wa

		digest, err := GoHashAccount(hasher, GoAccount{UserHash: account.UserHash, Balance: account.Balance, Nonce: nonces[i]}, modulus)
		if err != nil {
			return nil, nil, err
		}
		leafDigests[i] = digest
	}

	root, err := HashLeaves(hasher, leafDigests)
	if err != nil {
		return nil, nil, err
	}

	perAssetTotal := SumGoAccountBalances(accounts, assetCount)
	publicInputs := PublicInputs{
		PerAssetTotal: goBalanceToVariables(perAssetTotal, modulus),
		AssetPrice:    goBalanceToVariables(prices, modulus),
		RootHash:      [4]frontend.Variable{new(big.Int).SetBytes(root), big.NewInt(0), big.NewInt(0), big.NewInt(0)},
	}

	return &BatchCircuit{PublicInputs: publicInputs, Accounts: wireAccounts}, leafDigests, nil
}

// HashLeaves folds a batch's leaf digests into its root hash with a
// single MiMC sponge call, mirroring BatchCircuit.Define's in-circuit
// fold. Exposed so the pipeline driver can recompute the same root
// bytes for the Merkle tree's batch-parent level.
func HashLeaves(hasher goMiMCHasher, leafDigests [][]byte) ([]byte, error) {
	hasher.Reset()
	for _, d := range leafDigests {
		if _, err := hasher.Write(d); err != nil {
			return nil, err
		}
	}
	return hasher.Sum(nil), nil
}

func goBalanceToVariables(balance GoBalance, modulus *big.Int) Balance {
	out := make(Balance, len(balance))
	for i, b := range balance {
		out[i] = frontend.Variable(NonCanonicalFieldElement(b, modulus))
	}
	return out
}
