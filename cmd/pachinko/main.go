// Command pachinko runs condition/action rule systems from the command line.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/pachinko/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
