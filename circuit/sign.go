package circuit

import (
	"math/big"

	"github.com/consensys/gnark/frontend"
)

// signGadget constrains the sign of field elements relative to the
// compiled field's half-modulus (spec §4.1). A value x is declared
// negative iff x lies in (half, p-1], equivalently iff the integer
// quotient x / (half+1) of its canonical representative is 1.
//
// The gadget is instantiated once per circuit with that circuit's field
// modulus, so the same code serves the batch circuit (BLS12-377) and every
// recursive circuit (BW6-761) without hard-coding a curve.
type signGadget struct {
	half *big.Int
}

// newSignGadget derives the gadget's constant from the field modulus of
// the circuit being defined.
func newSignGadget(modulus *big.Int) signGadget {
	if modulus.Bit(0) == 0 {
		// The sign trick in spec §4.1 requires an odd-order field; refuse
		// to produce a gadget whose half-modulus split is not defined.
		panic("sign gadget requires an odd field modulus")
	}
	half := new(big.Int).Sub(halfPlusOne(modulus), big.NewInt(1))
	return signGadget{half: half}
}

// isNegative returns a boolean wire: 1 if x is negative, 0 otherwise.
func (g signGadget) isNegative(api frontend.API, x frontend.Variable) frontend.Variable {
	// api.Cmp compares canonical representatives as integers, so it
	// returns 1 exactly when x > half, i.e. when x is in the negative range.
	return api.IsZero(api.Sub(api.Cmp(x, g.half), 1))
}

// isPositive is the complement of isNegative — spec §4.1 treats zero as
// positive (it is never in the negative half).
func (g signGadget) isPositive(api frontend.API, x frontend.Variable) frontend.Variable {
	return api.Sub(1, g.isNegative(api, x))
}

// assertNonNegative constrains x to be positive or zero.
func (g signGadget) assertNonNegative(api frontend.API, x frontend.Variable) {
	api.AssertIsEqual(g.isNegative(api, x), 0)
}
