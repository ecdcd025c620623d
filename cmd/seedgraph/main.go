// Command seedgraph applies nested seed documents to a relational database.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/seedgraph/internal/cli"
)

func main() {
	err := cli.NewRootCommand().Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, "seedgraph:", err)
	}
	os.Exit(cli.GetExitCode(err))
}
