// Package main provides the leaplineage CLI.
package main

import (
	"os"

	"github.com/leapstack-labs/leaplineage/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
