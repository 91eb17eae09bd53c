package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	_ "go.uber.org/automaxprocs"

	"github.com/promptlab/promptlab/internal/cli"
)

func main() {
	// A missing .env is fine; the environment itself is the source of
	// truth in deployed setups.
	_ = godotenv.Load()

	if err := cli.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
