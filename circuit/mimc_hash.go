package circuit

import (
	"fmt"

	"github.com/consensys/gnark-crypto/ecc"
	mimcBLS12377 "github.com/consensys/gnark-crypto/ecc/bls12-377/fr/mimc"
	mimcBW6761 "github.com/consensys/gnark-crypto/ecc/bw6-761/fr/mimc"
)

// NewGoMiMCHasher returns the gnark-crypto MiMC hash matching the given
// curve's scalar field, mirroring the teacher's
// mimcCrypto.NewMiMC() usage (there specialised to BN254; here
// parametrised because the batch circuit and the recursive circuits run
// over different curves, see SPEC_FULL.md §0).
func NewGoMiMCHasher(curveID ecc.ID) (goMiMCHasher, error) {
	switch curveID {
	case ecc.BLS12_377:
		return mimcBLS12377.NewMiMC(), nil
	case ecc.BW6_761:
		return mimcBW6761.NewMiMC(), nil
	default:
		return nil, fmt.Errorf("no MiMC hasher wired for curve %s", curveID)
	}
}
