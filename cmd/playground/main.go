package main

import (
	"os"

	"github.com/ferplaru/ai-playground/internal/adapters/in/cli"
)

// Version information (set at build time via ldflags).
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	cli.SetVersionInfo(version, commit, buildDate)
	if err := cli.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
