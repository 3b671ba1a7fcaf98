package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/otter-sec/por-v2/core"
)

var (
	verifyInclusionProofPath     string
	verifyInclusionInclusionPath string
)

var verifyInclusionCmd = &cobra.Command{
	Use:   "verify-inclusion",
	Short: "Check a single account's inclusion proof against a final proof",
	Long: "Recomputes the inclusion proof's leaf digest and folds it, through\n" +
		"its Merkle proof chain, to the root; fails unless that root matches\n" +
		"the final proof's own root hash.",
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		finalProof, err := core.ReadDataFromFile[core.FinalProof](verifyInclusionProofPath)
		if err != nil {
			return err
		}
		inclusionProof, err := core.ReadDataFromFile[core.InclusionProof](verifyInclusionInclusionPath)
		if err != nil {
			return err
		}
		if err := core.VerifyUserInclusion(&finalProof, &inclusionProof); err != nil {
			return err
		}
		fmt.Println("User inclusion verification succeeded!")
		return nil
	},
}

func init() {
	verifyInclusionCmd.Flags().StringVar(&verifyInclusionProofPath, "proof", "final_proof.json", "path to the final proof file")
	verifyInclusionCmd.Flags().StringVar(&verifyInclusionInclusionPath, "inclusion-proof", "", "path to the inclusion proof file to verify")
	verifyInclusionCmd.MarkFlagRequired("inclusion-proof")
	rootCmd.AddCommand(verifyInclusionCmd)
}
