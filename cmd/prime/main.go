// This package contains a command line application to search for random
// probable primes, test values for primality, and serve the prime REST API.
package main

import (
	"os"

	"github.com/go-logr/logr"
)

// The default logr sink; this will be changed as command options are processed.
var logger = logr.Discard()

func main() {
	rootCmd, err := NewRootCmd()
	if err != nil {
		logger.Error(err, "Error building commands")
		os.Exit(1)
	}
	if err := rootCmd.Execute(); err != nil {
		logger.Error(err, "Error executing command")
		os.Exit(1)
	}
}
