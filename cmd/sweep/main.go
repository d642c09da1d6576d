// Command sweep runs the SaaS connector service.
package main

import (
	"os"

	"github.com/custodia-labs/sweep/internal/adapters/driving/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
