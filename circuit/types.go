package circuit

import (
	"math/big"

	"github.com/consensys/gnark/frontend"
)

// Hash is a fixed-size digest as produced by MiMC, kept as a byte slice for
// JSON/base64 transport outside the circuit.
type Hash = []byte

// Balance is the in-circuit representation of one account's per-asset
// balances, embedded via non-canonical signed-to-field conversion (spec
// §3). Balance is only used inside circuit.Define methods; GoBalance is
// the witness-preparation equivalent.
type Balance []frontend.Variable

// Account is the in-circuit witness for a single ledger entry: its
// balances, its userhash split into field-sized words, and its private
// nonce.
type Account struct {
	Balance      Balance
	UserHashWord []frontend.Variable
	Nonce        frontend.Variable
}

// GoBalance mirrors Balance outside the circuit. Entries may be negative;
// NonCanonicalFieldElement performs the signed embedding used inside the
// circuit.
type GoBalance []*big.Int

// GoAccount mirrors Account outside the circuit, as read from (or padded
// into) a Ledger.
type GoAccount struct {
	UserHash string // hex, length a multiple of 16
	Balance  GoBalance
	Nonce    uint64
}

// ConstructBalance returns a Balance of length assetCount, with the first
// len(initial) entries set from initial and the rest zeroed. Mirrors the
// teacher's circuit.ConstructBalance.
func ConstructBalance(assetCount int, initial ...frontend.Variable) Balance {
	balance := make(Balance, assetCount)
	for i := range balance {
		if i < len(initial) {
			balance[i] = initial[i]
		} else {
			balance[i] = frontend.Variable(0)
		}
	}
	return balance
}

// assertSameLength panics on a structural mismatch — not a circuit
// constraint, since a malformed batch can only ever inflate, never hide,
// liabilities (see teacher circuit.addBalance for the identical argument).
func assertSameLength(a, b Balance) {
	if len(a) != len(b) {
		panic(InvalidBalanceLengthMessage)
	}
}
