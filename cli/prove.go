package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/otter-sec/por-v2/core"
	"github.com/otter-sec/por-v2/ledger"
)

var (
	proveLedgerPath string
	proveProofPath  string
	proveTreePath   string
	proveNoncePath  string
)

var proveCmd = &cobra.Command{
	Use:   "prove",
	Short: "Run the full proving pipeline over a private ledger",
	Long: "Loads a private ledger, pads it, proves every batch and folds the\n" +
		"recursive circuit levels bottom-up, then writes the final proof, the\n" +
		"Merkle tree, and the per-account nonces drawn during proving.",
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		l, err := ledger.Load(proveLedgerPath)
		if err != nil {
			return err
		}
		cfg := core.DefaultConfig()

		result, err := core.ProveGlobal(l, cfg, func(e core.ProgressEvent) {
			log.Info().Str("stage", e.Stage).Int("done", e.Done).Int("total", e.Total).Msg("progress")
		})
		if err != nil {
			return err
		}

		if err := core.WriteDataToFile(proveProofPath, result.FinalProof); err != nil {
			return err
		}
		if err := core.WriteDataToFile(proveTreePath, *core.NodeToMerkleNode(result.Tree.Root())); err != nil {
			return err
		}
		if err := core.WriteDataToFile(proveNoncePath, result.Nonces); err != nil {
			return err
		}

		fmt.Println("Proving succeeded!")
		return nil
	},
}

func init() {
	proveCmd.Flags().StringVar(&proveLedgerPath, "ledger", "private_ledger.json", "path to the private ledger file")
	proveCmd.Flags().StringVar(&proveProofPath, "proof-out", "final_proof.json", "path to write the final proof to")
	proveCmd.Flags().StringVar(&proveTreePath, "tree-out", "merkle_tree.json", "path to write the Merkle tree to")
	proveCmd.Flags().StringVar(&proveNoncePath, "nonces-out", "private_nonces.json", "path to write the drawn account nonces to")
	rootCmd.AddCommand(proveCmd)
}
