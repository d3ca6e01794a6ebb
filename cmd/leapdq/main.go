// Package main provides the LeapDQ command line interface.
package main

import (
	"os"

	"github.com/leapstack-labs/leapdq/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
