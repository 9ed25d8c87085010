package main

import (
	"os"

	"github.com/nextpie/sessiond/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
