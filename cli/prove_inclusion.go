package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/otter-sec/por-v2/core"
	"github.com/otter-sec/por-v2/daemon"
	"github.com/otter-sec/por-v2/ledger"
)

var (
	inclusionLedgerPath string
	inclusionTreePath   string
	inclusionNoncePath  string
	inclusionOutDir     string
	inclusionUserHash   string
	inclusionAll        bool
	inclusionAllBatched bool
	inclusionDaemon     bool
	inclusionSocketPath string
)

var proveInclusionCmd = &cobra.Command{
	Use:   "prove-inclusion",
	Short: "Build per-account inclusion proofs against an already-proved tree",
	Long: "Reads the Merkle tree and nonces written by prove, and builds one or\n" +
		"more inclusion proofs: a single account (--userhash), every account as\n" +
		"one file each (--all), every account bundled by userhash prefix into\n" +
		"zstd-compressed files (--all-batched), or a long-running Unix-socket\n" +
		"server answering requests on demand (--daemon).",
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		selected := 0
		for _, v := range []bool{inclusionUserHash != "", inclusionAll, inclusionAllBatched, inclusionDaemon} {
			if v {
				selected++
			}
		}
		if selected != 1 {
			return fmt.Errorf("exactly one of --userhash, --all, --all-batched, --daemon must be given")
		}

		l, err := ledger.Load(inclusionLedgerPath)
		if err != nil {
			return err
		}
		l.Pad(core.DefaultConfig().BatchSize)

		root, err := core.ReadDataFromFile[core.MerkleNode](inclusionTreePath)
		if err != nil {
			return err
		}
		cfg := core.DefaultConfig()
		tree := core.TreeFromRoot(&root, cfg.BatchSize, cfg.RecursiveSize)

		nonces, err := core.ReadDataFromFile[[]uint64](inclusionNoncePath)
		if err != nil {
			return err
		}

		switch {
		case inclusionUserHash != "":
			proof, err := core.ProveUserInclusionByHash(inclusionUserHash, l, tree, nonces)
			if err != nil {
				return err
			}
			if err := os.MkdirAll(inclusionOutDir, 0o755); err != nil {
				return fmt.Errorf("%w: creating %s: %v", core.ErrIOFailure, inclusionOutDir, err)
			}
			path := filepath.Join(inclusionOutDir, fmt.Sprintf("%s.json", inclusionUserHash))
			if err := core.WriteDataToFile(path, *proof); err != nil {
				return err
			}
			fmt.Println(path)
		case inclusionAll:
			if err := core.ProveAllUserInclusions(l, tree, nonces, inclusionOutDir); err != nil {
				return err
			}
			fmt.Println("Inclusion proofs written to", inclusionOutDir)
		case inclusionAllBatched:
			if err := core.ProveAllUserInclusionsBatched(l, tree, nonces, inclusionOutDir); err != nil {
				return err
			}
			fmt.Println("Batched inclusion proofs written to", inclusionOutDir)
		case inclusionDaemon:
			server := &daemon.Server{
				SocketPath: inclusionSocketPath,
				OutDir:     inclusionOutDir,
				Ledger:     l,
				Tree:       tree,
				Nonces:     nonces,
				Log:        log,
			}
			return server.ListenAndServe()
		}
		return nil
	},
}

func init() {
	proveInclusionCmd.Flags().StringVar(&inclusionLedgerPath, "ledger", "private_ledger.json", "path to the private ledger file")
	proveInclusionCmd.Flags().StringVar(&inclusionTreePath, "tree", "merkle_tree.json", "path to the Merkle tree written by prove")
	proveInclusionCmd.Flags().StringVar(&inclusionNoncePath, "nonces", "private_nonces.json", "path to the nonces written by prove")
	proveInclusionCmd.Flags().StringVar(&inclusionOutDir, "out", "inclusion_proofs", "directory to write inclusion proof(s) to")
	proveInclusionCmd.Flags().StringVar(&inclusionUserHash, "userhash", "", "build an inclusion proof for a single userhash")
	proveInclusionCmd.Flags().BoolVar(&inclusionAll, "all", false, "build one inclusion proof file per account")
	proveInclusionCmd.Flags().BoolVar(&inclusionAllBatched, "all-batched", false, "build zstd-compressed inclusion proof bundles grouped by userhash prefix")
	proveInclusionCmd.Flags().BoolVar(&inclusionDaemon, "daemon", false, "serve inclusion proof requests over a Unix socket")
	proveInclusionCmd.Flags().StringVar(&inclusionSocketPath, "socket", daemon.DefaultSocketPath, "Unix socket path for --daemon")
	rootCmd.AddCommand(proveInclusionCmd)
}
