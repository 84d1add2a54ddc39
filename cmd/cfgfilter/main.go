// Package main provides the entry point for the cfgfilter CLI.
package main

import (
	"os"

	"github.com/goliatone/go-cfgfilter/cmd/cfgfilter/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
