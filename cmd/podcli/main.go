package main

import (
	"os"

	"github.com/slidecaster/slidecaster/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
