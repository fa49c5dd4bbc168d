package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/c360/alusync/internal/cli"
)

// CLIConfig holds command-line configuration
type CLIConfig struct {
	cli.Common
	HubURL string
}

func parseFlags(args []string) (*CLIConfig, error) {
	cfg := &CLIConfig{}
	fs := flag.NewFlagSet(appName, flag.ContinueOnError)
	cfg.Register(fs)
	fs.StringVar(&cfg.HubURL, "hub", "", "Hub WebSocket URL, overrides client.hub_url")
	fs.Usage = func() {
		_, _ = fmt.Fprintf(os.Stderr, "%s - line-oriented ALU front panel\n\nUsage: %s [options]\n\nOptions:\n", appName, appName)
		fs.PrintDefaults()
		_, _ = fmt.Fprint(os.Stderr, "\nCommands on stdin:\n"+commandHelp)
	}

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if err := cfg.Check(); err != nil {
		return nil, err
	}
	return cfg, nil
}
