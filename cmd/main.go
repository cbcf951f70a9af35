package main

import (
	"os"

	"gauntlet-service/internal/cli"
	_ "go.uber.org/automaxprocs"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
