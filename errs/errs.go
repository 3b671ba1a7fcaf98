// Package errs holds the sentinel errors shared across ledger, core, and
// daemon (SPEC_FULL.md §3 / spec §7's error table). It has no internal
// dependencies so every other package can depend on it without creating
// an import cycle.
package errs

import "errors"

var (
	ErrLedgerMalformed       = errors.New("ledger malformed")
	ErrConstraintViolation   = errors.New("constraint violation")
	ErrCircuitDigestMismatch = errors.New("circuit digest mismatch")
	ErrProofInvalid          = errors.New("proof invalid")
	ErrRootHashMismatch      = errors.New("root hash mismatch")
	ErrUserNotFound          = errors.New("user not found")
	ErrConfigMismatch        = errors.New("config mismatch")
	ErrIOFailure             = errors.New("io failure")
)
