// Command stratum is the CLI for the stratum versioned infrastructure
// graph.
package main

import (
	"os"

	"github.com/basetier/stratum/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		os.Exit(cli.GetExitCode(err))
	}
}
