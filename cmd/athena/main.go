// Command athena is an in-memory set database served over a line protocol.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/athena/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
