// Command por is the proof-of-reserves prover and verifier CLI.
package main

import (
	"fmt"
	"os"

	"github.com/otter-sec/por-v2/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
