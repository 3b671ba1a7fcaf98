package core

import "github.com/otter-sec/por-v2/errs"

// Re-exported so call sites elsewhere in core read core.Err*; errs exists
// only to let ledger share these sentinels without importing core (which
// itself depends on ledger for Ledger-shaped inputs).
var (
	ErrLedgerMalformed       = errs.ErrLedgerMalformed
	ErrConstraintViolation   = errs.ErrConstraintViolation
	ErrCircuitDigestMismatch = errs.ErrCircuitDigestMismatch
	ErrProofInvalid          = errs.ErrProofInvalid
	ErrRootHashMismatch      = errs.ErrRootHashMismatch
	ErrUserNotFound          = errs.ErrUserNotFound
	ErrConfigMismatch        = errs.ErrConfigMismatch
	ErrIOFailure             = errs.ErrIOFailure
)
