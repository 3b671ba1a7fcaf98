package circuit

import (
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math/big"

	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/std/hash/mimc"
)

// UserHashWordChars is the width, in hex characters, of one userhash word
// (64 bits per spec §3).
const UserHashWordChars = 16

// HashAccount computes the leaf digest L_i = Poseidon-like(balances,
// userhash words, nonce) inside the circuit (spec §3, §4.2).
func HashAccount(api frontend.API, hasher mimc.MiMC, account Account) frontend.Variable {
	hasher.Reset()
	hasher.Write(account.Balance...)
	hasher.Write(account.UserHashWord...)
	hasher.Write(account.Nonce)
	return hasher.Sum()
}

// NonCanonicalFieldElement embeds a signed balance into the field as its
// two's-complement analogue: non-negative values map to themselves,
// negative values map to modulus+value (spec §3).
func NonCanonicalFieldElement(value *big.Int, modulus *big.Int) *big.Int {
	if value.Sign() >= 0 {
		return new(big.Int).Set(value)
	}
	return new(big.Int).Add(modulus, value)
}

// SplitUserHashWords splits a hex userhash into UserHashWordChars-wide
// words, each embedded canonically as a field element, in order (spec
// §3). The hash's length must be a positive multiple of UserHashWordChars.
func SplitUserHashWords(userHashHex string) ([]*big.Int, error) {
	if len(userHashHex) == 0 || len(userHashHex)%UserHashWordChars != 0 {
		return nil, fmt.Errorf("userhash length %d is not a positive multiple of %d", len(userHashHex), UserHashWordChars)
	}
	words := make([]*big.Int, len(userHashHex)/UserHashWordChars)
	for i := range words {
		chunk := userHashHex[i*UserHashWordChars : (i+1)*UserHashWordChars]
		raw, err := hex.DecodeString(chunk)
		if err != nil {
			return nil, fmt.Errorf("userhash word %d is not valid hex: %w", i, err)
		}
		words[i] = new(big.Int).SetUint64(binary.BigEndian.Uint64(raw))
	}
	return words, nil
}

// ZeroUserHash returns the padded userhash sentinel used for padding
// accounts: UserHashWordChars*wordCount zero characters (spec §3, §9 Open
// Question iii). Real accounts must never carry this exact string — the
// ledger loader enforces that.
func ZeroUserHash(wordCount int) string {
	buf := make([]byte, wordCount*UserHashWordChars)
	for i := range buf {
		buf[i] = '0'
	}
	return string(buf)
}

// GenerateNonces draws count uniformly random 64-bit nonces from a CSPRNG,
// strictly in order. Spec §4.2/§5: this must run sequentially relative to
// the returned slice's indices — callers must not parallelise this call
// with respect to the account vector it will be zipped with.
func GenerateNonces(count int) ([]uint64, error) {
	nonces := make([]uint64, count)
	buf := make([]byte, 8)
	for i := 0; i < count; i++ {
		if _, err := rand.Read(buf); err != nil {
			return nil, fmt.Errorf("generating nonce %d: %w", i, err)
		}
		nonces[i] = binary.BigEndian.Uint64(buf)
	}
	return nonces, nil
}

// GoHashAccount computes the same digest as HashAccount, outside the
// circuit, for witness preparation and for the Go-side Merkle tree mirror
// used by the pipeline driver and verifier. hasher is a fresh
// gnark-crypto MiMC hash.Hash for the circuit's curve (see
// NewGoMiMCHasher).
func GoHashAccount(hasher goMiMCHasher, account GoAccount, modulus *big.Int) ([]byte, error) {
	words, err := SplitUserHashWords(account.UserHash)
	if err != nil {
		return nil, err
	}
	hasher.Reset()
	for _, b := range account.Balance {
		if _, err := hasher.Write(fieldBytes(NonCanonicalFieldElement(b, modulus), modulus)); err != nil {
			return nil, err
		}
	}
	for _, w := range words {
		if _, err := hasher.Write(fieldBytes(w, modulus)); err != nil {
			return nil, err
		}
	}
	if _, err := hasher.Write(fieldBytes(new(big.Int).SetUint64(account.Nonce), modulus)); err != nil {
		return nil, err
	}
	return hasher.Sum(nil), nil
}

// goMiMCHasher is the subset of gnark-crypto's MiMC hash.Hash interface
// GoHashAccount needs.
type goMiMCHasher interface {
	Reset()
	Write(data []byte) (int, error)
	Sum(b []byte) []byte
}

// fieldBytes pads a big.Int to the byte width of modulus, matching the
// in-circuit canonical representation MiMC.Write expects.
func fieldBytes(v *big.Int, modulus *big.Int) []byte {
	width := (modulus.BitLen() + 7) / 8
	out := make([]byte, width)
	v.FillBytes(out)
	return out
}
