// Command newsarchive acquires, OCRs, segments, indexes, and promotes
// historical newspaper pages from archives such as the Library of
// Congress Chronicling America service.
package main

import (
	"fmt"
	"os"

	"newsarchive/cli"
	"newsarchive/kinderr"
)

func main() {
	if err := cli.RootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(kinderr.ExitCode(err))
	}
}
