// Package main provides the entry point for the searchmcp CLI.
package main

import (
	"fmt"
	"os"

	"github.com/nodebench/searchmcp/cmd/searchmcp/cmd"
	"github.com/nodebench/searchmcp/internal/errors"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errors.FormatForCLI(err))
		os.Exit(1)
	}
}
