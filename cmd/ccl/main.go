package main

import (
	"os"

	"github.com/msto63/cclbridge/cmd/ccl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
