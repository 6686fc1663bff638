package main

import (
	"os"

	"github.com/tv7/C-Claw/internal/cli"
)

func main() {
	if err := cli.RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
