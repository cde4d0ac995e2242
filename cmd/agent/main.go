package main

import (
	"fmt"
	"os"

	"github.com/NksEBP/gc-agent/internal/cli"
	"github.com/NksEBP/gc-agent/internal/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: unable to load configuration: %v\n", err)
		os.Exit(1)
	}
	cli.Execute(cfg)
}
