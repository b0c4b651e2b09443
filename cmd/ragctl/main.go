// Package main is the entry point for the ragctl CLI.
package main

import (
	"os"

	"esg-rag/cmd/ragctl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Stderr.WriteString("Error: " + err.Error() + "\n")
		os.Exit(1)
	}
}
