package circuit

import (
	"testing"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/test"
)

// signCheckCircuit exercises the sign gadget directly against a single
// input, asserting it matches the expected (Negative) flag.
type signCheckCircuit struct {
	X        frontend.Variable
	Negative frontend.Variable `gnark:",public"`
}

func (c *signCheckCircuit) Define(api frontend.API) error {
	g := newSignGadget(api.Compiler().Field())
	api.AssertIsEqual(g.isNegative(api, c.X), c.Negative)
	return nil
}

func TestSignGadgetClassifiesValues(t *testing.T) {
	assert := test.NewAssert(t)
	circ := &signCheckCircuit{}

	cases := []struct {
		name     string
		x        int64
		negative int64
	}{
		{"zero is non-negative", 0, 0},
		{"small positive is non-negative", 7, 0},
		{"small negative is negative", -7, 1},
		{"large negative is negative", -1_000_000, 1},
	}
	for _, c := range cases {
		c := c
		t.Run(c.name, func(t *testing.T) {
			assignment := &signCheckCircuit{X: c.x, Negative: c.negative}
			assert.ProverSucceeded(circ, assignment, test.WithCurves(ecc.BLS12_377), test.WithBackends(backend.GROTH16))
		})
	}
}

func TestSignGadgetRejectsMisclassification(t *testing.T) {
	assert := test.NewAssert(t)
	circ := &signCheckCircuit{}
	// claim a negative value is non-negative
	assignment := &signCheckCircuit{X: -3, Negative: 0}
	assert.ProverFailed(circ, assignment, test.WithCurves(ecc.BLS12_377), test.WithBackends(backend.GROTH16))
}
