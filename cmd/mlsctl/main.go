// Command mlsctl is a manual, local exercise harness over the mlsengine
// protocol library: a thin Cobra CLI that drives an mls.Group persisted
// under .mlsctl/ for one group per working directory (the peek command
// goes through internal/hostapi). Grounded on
// _examples/germtb-mlsgit's cmd-less cobra CLI (internal/cli/root.go +
// its per-verb command files), adapted into a single cmd/mlsctl package
// since this harness has no filter-hook split to justify a separate
// internal/cli package.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "mlsctl:", err)
		os.Exit(1)
	}
}
