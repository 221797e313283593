// Command promptdoc is the entry point for the document QA assistant. It
// provides a terminal chat (via Cobra) and an HTTP server exposing the same
// session over a REST/SSE API.
package main

import (
	"fmt"
	"os"

	"github.com/54b3r/promptdoc-go/cmd/promptdoc/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
