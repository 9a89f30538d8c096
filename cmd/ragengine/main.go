// Package main is the entry point for the ragengine CLI.
package main

import (
	"os"

	"github.com/katanaquant/ragengine/cmd/ragengine/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
