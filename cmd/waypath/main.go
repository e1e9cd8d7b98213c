// Command waypath serves definitions, aliases and content-addressed results.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/waypath/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
