// Package main is the entry point for necoctl.
// The CLI is the developer terminal tool for interacting with the neco API.
package main

import (
	"os"

	"neco/cmd/cli/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
