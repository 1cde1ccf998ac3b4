// Package main is the entry point for the mvndc CLI.
package main

import (
	"os"

	"github.com/mvnd-go/mvndc/internal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
