// Command d2armory indexes a Destiny 2 manifest and serves item searches
// and perk lookups.
package main

import (
	"os"

	"github.com/JackyBoizy/D2Armory/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
