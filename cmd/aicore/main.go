// Command aicore is the entry point for the banking-assistant RAG service.
// It provides a CLI interface (via Cobra) and an HTTP server exposing the
// answer and vector-database APIs.
package main

import (
	"fmt"
	"os"

	"github.com/bankbot/aicore/cmd/aicore/commands"
)

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
