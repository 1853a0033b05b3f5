// Package main provides the entry point for the chunkdex CLI.
package main

import (
	"os"

	"github.com/Aman-CERP/chunkdex/cmd/chunkdex/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
