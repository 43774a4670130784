// CLI entry point for PlotAtlas.
package main

import (
	"os"

	"github.com/turtacn/PlotAtlas/internal/interfaces/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}

//Personal.AI order the ending
