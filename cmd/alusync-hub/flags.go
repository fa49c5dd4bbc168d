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
	Listen string
}

func parseFlags(args []string) (*CLIConfig, error) {
	cfg := &CLIConfig{}
	fs := flag.NewFlagSet(appName, flag.ContinueOnError)
	cfg.Register(fs)
	fs.StringVar(&cfg.Listen, "listen", "", "Listen address, overrides hub.listen")
	fs.Usage = func() { printHelp(fs) }

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if err := cfg.Check(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func printHelp(fs *flag.FlagSet) {
	_, _ = fmt.Fprintf(os.Stderr, `%s - ALU state hub

Serves the alusync WebSocket protocol on hub.path, plus /api/state,
/api/outputs, /api/events and /health.

Usage: %s [options]

Options:
`, appName, appName)
	fs.PrintDefaults()
	_, _ = fmt.Fprintf(os.Stderr, `
Examples:
  %s --config=/etc/alusync/alusync.yaml
  ALUSYNC_HUB_LISTEN=:8080 %s --log-format=text

Version: %s
`, appName, appName, Version)
}
