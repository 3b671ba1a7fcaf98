package core

import (
	"os"

	"github.com/rs/zerolog"
)

// Log is the package-level structured logger the pipeline driver, the
// registry, and VerifyRoot's assert_config check write to (SPEC_FULL.md
// §1 "Logging"). It defaults to a quiet stderr logger so library callers
// that never touch the CLI still get diagnostics; the CLI overwrites it
// in cli/root.go's PersistentPreRun with its own console/JSON writer.
var Log zerolog.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
