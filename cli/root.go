// Package cli wires the por binary's cobra subcommands to the core
// pipeline, following the teacher's one-file-per-subcommand layout.
package cli

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/otter-sec/por-v2/core"
)

var (
	jsonLogs bool
	log      zerolog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "por",
	Short: "Proof of Reserves prover and verifier",
	Long: "por generates and checks zero-knowledge proof-of-reserves artifacts:\n" +
		"a batch-and-recursive-fold SNARK over a private ledger, plus per-user\n" +
		"inclusion proofs that a given account was counted in the total.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if jsonLogs {
			log = zerolog.New(os.Stderr).With().Timestamp().Logger()
		} else {
			writer := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
			log = zerolog.New(writer).With().Timestamp().Logger()
		}
		core.Log = log
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&jsonLogs, "json", false, "emit structured JSON logs instead of a human-readable console")
}

// Execute runs the root command; cmd/por/main.go is its only caller.
func Execute() error {
	return rootCmd.Execute()
}
