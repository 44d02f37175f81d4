// Command explorerverify verifies deployed contracts on block explorers.
package main

import (
	"fmt"
	"os"

	"github.com/pendergraft/explorerverify/internal/cli"
)

var version = "dev"

func main() {
	if err := cli.Execute(version); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
