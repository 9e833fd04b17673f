package main

import (
	"os"

	"github.com/joho/godotenv"

	"github.com/driftline/driftline/internal/cli"
)

func main() {
	// Missing .env is the normal case outside local development.
	_ = godotenv.Load()

	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		os.Exit(cli.GetExitCode(err))
	}
}
