// Command waveguide compiles and runs array programs written in CUE.
package main

import (
	"os"

	"github.com/roach88/waveguide/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		os.Exit(cli.GetExitCode(err))
	}
}
