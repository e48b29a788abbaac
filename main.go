package main

import (
	"os"

	"github.com/right-flow/docguard/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
