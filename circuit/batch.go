package circuit

import (
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/std/hash/mimc"
)

// PublicInputs is the normative public-input layout shared by the batch
// circuit and every recursive circuit (spec §4.9): per-asset totals,
// asset prices, then a 4-element root hash. AssetCount is fixed for a
// given ledger, so the slices are sized once at circuit construction.
type PublicInputs struct {
	PerAssetTotal Balance           `gnark:",public"`
	AssetPrice    Balance           `gnark:",public"`
	RootHash      [4]frontend.Variable `gnark:",public"`
}

// BatchCircuit proves BatchSize accounts at once (spec §4.3): every
// account's equity (balances times current prices) is non-negative, the
// per-asset totals sum correctly, and the root hash is the MiMC digest of
// the batch's leaf digests. Individual balances are not range-checked —
// only their priced sum per account is constrained — so a balance may be
// negative as long as the account's total equity is not (spec §8 S2).
type BatchCircuit struct {
	PublicInputs

	Accounts []Account `gnark:""`
}

// NewEmptyBatchCircuit allocates a BatchCircuit shaped for compilation:
// assetCount assets, wordCount-word userhashes, BatchSize accounts, all
// slices zero-valued. wordCount must match the ledger's userhash length
// in UserHashWordChars-wide words for every circuit built against it.
func NewEmptyBatchCircuit(assetCount, wordCount int) *BatchCircuit {
	accounts := make([]Account, BatchSize)
	for i := range accounts {
		accounts[i] = emptyAccount(assetCount, wordCount)
	}
	return &BatchCircuit{
		PublicInputs: emptyPublicInputs(assetCount),
		Accounts:     accounts,
	}
}

func emptyAccount(assetCount, wordCount int) Account {
	words, _ := SplitUserHashWords(ZeroUserHash(wordCount))
	wireWords := make([]frontend.Variable, len(words))
	for i, w := range words {
		wireWords[i] = w
	}
	return Account{
		Balance:      ConstructBalance(assetCount),
		UserHashWord: wireWords,
		Nonce:        frontend.Variable(0),
	}
}

func emptyPublicInputs(assetCount int) PublicInputs {
	return PublicInputs{
		PerAssetTotal: ConstructBalance(assetCount),
		AssetPrice:    ConstructBalance(assetCount),
		RootHash:      [4]frontend.Variable{0, 0, 0, 0},
	}
}

// Define implements frontend.Circuit for BatchCircuit.
func (c *BatchCircuit) Define(api frontend.API) error {
	if len(c.Accounts) > BatchSize {
		panic(MerkleLeafLimitExceededMessage)
	}
	assetCount := len(c.PublicInputs.PerAssetTotal)

	sign := newSignGadget(api.Compiler().Field())
	hasher, err := mimc.NewMiMC(api)
	if err != nil {
		return err
	}

	runningTotal := ConstructBalance(assetCount)
	leafDigests := make([]frontend.Variable, len(c.Accounts))

	for i, account := range c.Accounts {
		assertSameLength(account.Balance, c.PublicInputs.PerAssetTotal)

		var equity frontend.Variable = 0
		for a := range account.Balance {
			equity = api.Add(equity, api.Mul(account.Balance[a], c.PublicInputs.AssetPrice[a]))
			runningTotal[a] = api.Add(runningTotal[a], account.Balance[a])
		}
		sign.assertNonNegative(api, equity)

		leafDigests[i] = HashAccount(api, hasher, account)
	}

	for a := range runningTotal {
		api.AssertIsEqual(runningTotal[a], c.PublicInputs.PerAssetTotal[a])
	}

	hasher.Reset()
	hasher.Write(leafDigests...)
	root := hasher.Sum()
	// The root hash public input reserves 4 field elements to keep the
	// layout identical to every recursive circuit's folded root hash
	// (spec §4.9); the batch circuit's own MiMC digest is a single field
	// element, so it occupies the first slot and the remaining three are
	// pinned to zero.
	api.AssertIsEqual(root, c.PublicInputs.RootHash[0])
	api.AssertIsEqual(c.PublicInputs.RootHash[1], 0)
	api.AssertIsEqual(c.PublicInputs.RootHash[2], 0)
	api.AssertIsEqual(c.PublicInputs.RootHash[3], 0)

	return nil
}
