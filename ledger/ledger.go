// Package ledger loads the private ledger file (spec §6) and checks the
// entry invariants of spec §3 before anything downstream touches it.
package ledger

import (
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"sort"

	"github.com/otter-sec/por-v2/circuit"
	"github.com/otter-sec/por-v2/errs"
)

// Asset is one entry of the ledger's asset table.
type Asset struct {
	Name            string
	Price           uint64
	USDTDecimals    int64
	BalanceDecimals int64
}

// Ledger is the decoded, invariant-checked private ledger (spec §3).
// Assets and Accounts are both held in a fixed order: Assets sorted by
// name (the raw JSON object key order is not preserved by
// encoding/json, and the spec only requires the order be *stable*
// across prove/verify runs, not that it match the source file), and
// Accounts in the order userhashes sort.
type Ledger struct {
	Timestamp uint64
	Assets    []Asset
	Accounts  []circuit.GoAccount
}

type rawAsset struct {
	Price           uint64 `json:"price"`
	USDTDecimals    int64  `json:"usdt_decimals"`
	BalanceDecimals int64  `json:"balance_decimals"`
}

type rawLedger struct {
	Timestamp uint64                      `json:"timestamp"`
	Assets    map[string]rawAsset         `json:"assets"`
	Accounts  map[string]map[string]int64 `json:"accounts"`
}

// Load reads and validates a ledger file at path.
func Load(path string) (*Ledger, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: reading ledger %s: %v", errs.ErrIOFailure, path, err)
	}
	var raw rawLedger
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: decoding ledger %s: %v", errs.ErrLedgerMalformed, path, err)
	}
	return fromRaw(raw)
}

func fromRaw(raw rawLedger) (*Ledger, error) {
	if len(raw.Assets) == 0 {
		return nil, fmt.Errorf("%w: ledger has no assets", errs.ErrLedgerMalformed)
	}

	assetNames := make([]string, 0, len(raw.Assets))
	for name := range raw.Assets {
		assetNames = append(assetNames, name)
	}
	sort.Strings(assetNames)

	assets := make([]Asset, len(assetNames))
	var decimalSum int64
	for i, name := range assetNames {
		a := raw.Assets[name]
		assets[i] = Asset{Name: name, Price: a.Price, USDTDecimals: a.USDTDecimals, BalanceDecimals: a.BalanceDecimals}
		sum := a.USDTDecimals + a.BalanceDecimals
		if i == 0 {
			decimalSum = sum
		} else if sum != decimalSum {
			return nil, fmt.Errorf("%w: asset %q has decimal sum %d, expected %d (price×balance normalisation invariant)", errs.ErrLedgerMalformed, name, sum, decimalSum)
		}
	}

	userHashes := make([]string, 0, len(raw.Accounts))
	for hash := range raw.Accounts {
		userHashes = append(userHashes, hash)
	}
	sort.Strings(userHashes)

	accounts := make([]circuit.GoAccount, len(userHashes))
	hashLen := -1
	for i, hash := range userHashes {
		if hashLen == -1 {
			hashLen = len(hash)
		} else if len(hash) != hashLen {
			return nil, fmt.Errorf("%w: userhash %q has length %d, expected %d", errs.ErrLedgerMalformed, hash, len(hash), hashLen)
		}
		if hash == circuit.ZeroUserHash(len(hash)/circuit.UserHashWordChars) {
			return nil, fmt.Errorf("%w: userhash %q collides with the padding sentinel", errs.ErrLedgerMalformed, hash)
		}

		balances := raw.Accounts[hash]
		if len(balances) != len(assets) {
			return nil, fmt.Errorf("%w: account %q has %d balances, expected %d", errs.ErrLedgerMalformed, hash, len(balances), len(assets))
		}
		balance := make(circuit.GoBalance, len(assets))
		for a, asset := range assets {
			v, ok := balances[asset.Name]
			if !ok {
				return nil, fmt.Errorf("%w: account %q is missing balance for asset %q", errs.ErrLedgerMalformed, hash, asset.Name)
			}
			balance[a] = bigFromInt64(v)
		}
		accounts[i] = circuit.GoAccount{UserHash: hash, Balance: balance}
	}

	if hashLen != -1 && hashLen%circuit.UserHashWordChars != 0 {
		return nil, fmt.Errorf("%w: userhash length %d is not a multiple of %d", errs.ErrLedgerMalformed, hashLen, circuit.UserHashWordChars)
	}

	return &Ledger{Timestamp: raw.Timestamp, Assets: assets, Accounts: accounts}, nil
}

// Pad extends l's accounts to a multiple of batchSize with all-zero
// balances and the all-zero userhash sentinel (spec §3 "Padded ledger").
func (l *Ledger) Pad(batchSize int) {
	remainder := len(l.Accounts) % batchSize
	if remainder == 0 {
		return
	}
	hashLen := 0
	if len(l.Accounts) > 0 {
		hashLen = len(l.Accounts[0].UserHash)
	}
	zeroHash := circuit.ZeroUserHash(hashLen / circuit.UserHashWordChars)
	toAdd := batchSize - remainder
	for i := 0; i < toAdd; i++ {
		balance := make(circuit.GoBalance, len(l.Assets))
		for a := range balance {
			balance[a] = bigFromInt64(0)
		}
		l.Accounts = append(l.Accounts, circuit.GoAccount{UserHash: zeroHash, Balance: balance})
	}
}

// Prices returns the asset prices in ledger column order.
func (l *Ledger) Prices() circuit.GoBalance {
	prices := make(circuit.GoBalance, len(l.Assets))
	for i, a := range l.Assets {
		prices[i] = bigFromInt64(int64(a.Price))
	}
	return prices
}

// IndexOf returns the position of userhash in l.Accounts, or -1.
func (l *Ledger) IndexOf(userHash string) int {
	for i, a := range l.Accounts {
		if a.UserHash == userHash {
			return i
		}
	}
	return -1
}

func bigFromInt64(v int64) *big.Int {
	return big.NewInt(v)
}
