// Package main provides the entry point for the msggate CLI.
package main

import (
	"fmt"
	"os"

	"github.com/msggate/msggate/cmd/msggate/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
