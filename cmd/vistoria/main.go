package main

import (
	"os"

	"github.com/vistoria/vistoria/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
