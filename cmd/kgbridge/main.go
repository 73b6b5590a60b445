// Command kgbridge converts the SPARQL queries of question-answering
// datasets from Freebase to Wikidata.
package main

import (
	"os"

	"github.com/roach88/kgbridge/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		cli.ReportError(os.Stderr, err)
		os.Exit(cli.GetExitCode(err))
	}
}
