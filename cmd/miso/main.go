package main

import (
	"os"

	"github.com/dajeong/miso/internal/cli"
)

func main() {
	// Cobra reports the failing command and error itself.
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
