package main

import (
	"os"

	"github.com/r9s-ai/jsonlog/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
