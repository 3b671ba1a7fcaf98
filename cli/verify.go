package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/otter-sec/por-v2/core"
)

var (
	verifyProofPath string
	verifyTreePath  string
	verifyStrict    bool
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check a final proof's root SNARK, asset table, and Merkle tree",
	Long: "Verifies a final proof end to end: the root groth16 proof against its\n" +
		"own embedded verifying key and declared public inputs, the asset\n" +
		"table's internal decimal invariant, and that the supplied Merkle tree\n" +
		"is internally consistent and rooted at the proof's own root hash.",
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		finalProof, err := core.ReadDataFromFile[core.FinalProof](verifyProofPath)
		if err != nil {
			return err
		}
		root, err := core.ReadDataFromFile[core.MerkleNode](verifyTreePath)
		if err != nil {
			return err
		}
		cfg := core.DefaultConfig()
		cfg.Strict = verifyStrict
		tree := core.TreeFromRoot(&root, finalProof.BatchSize, finalProof.RecursiveSize)

		if err := core.VerifyRoot(&finalProof, tree, cfg); err != nil {
			return err
		}
		fmt.Println("Verification succeeded!")
		return nil
	},
}

func init() {
	verifyCmd.Flags().StringVar(&verifyProofPath, "proof", "final_proof.json", "path to the final proof file")
	verifyCmd.Flags().StringVar(&verifyTreePath, "tree", "merkle_tree.json", "path to the Merkle tree file")
	verifyCmd.Flags().BoolVar(&verifyStrict, "strict", false, "fail on prover-version mismatch instead of only logging a warning")
	rootCmd.AddCommand(verifyCmd)
}
