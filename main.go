package main

import (
	"os"

	"github.com/capaplan/capaplan/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
