// memoir - local semantic memory engine
// Human-editable chunk files, an ANN index, and an append-only audit log.
package main

import (
	"fmt"
	"os"

	"github.com/canopyhq/memoir/cmd"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	cmd.SetVersion(version, commit, date)
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
