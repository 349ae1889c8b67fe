package main

import (
	"os"

	"github.com/spigell/candidate-console/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
