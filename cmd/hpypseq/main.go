// Command hpypseq builds and queries hierarchical Pitman-Yor context
// trees over symbol corpora, replacing bayselm's flag-based main with a
// cobra.Command subcommand tree (train, gibbs, loss, predict).
package main

import (
	"os"

	"github.com/tomoris/hpypseq/cmd/hpypseq/cmd"
)

func main() {
	if err := cmd.RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
