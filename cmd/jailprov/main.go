package main

import (
	"os"

	"jailprov/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		cli.PrintErrorChain(os.Stderr, err)
		os.Exit(1)
	}
}
