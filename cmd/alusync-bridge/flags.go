package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/c360/alusync/internal/cli"
)

// CLIConfig holds command-line configuration
type CLIConfig struct {
	cli.Common
	HubURL         string
	Backend        string
	ReportInterval time.Duration
}

func parseFlags(args []string) (*CLIConfig, error) {
	cfg := &CLIConfig{}
	fs := flag.NewFlagSet(appName, flag.ContinueOnError)
	cfg.Register(fs)
	fs.StringVar(&cfg.HubURL, "hub", "", "Hub WebSocket URL, overrides client.hub_url")
	fs.StringVar(&cfg.Backend, "backend", "", "Bridge backend (emulator, gpio), overrides bridge.backend")
	fs.DurationVar(&cfg.ReportInterval, "report-interval", 5*time.Second, "Interval between periodic output reports, 0 disables")
	fs.Usage = func() {
		_, _ = fmt.Fprintf(os.Stderr, "%s - connects a 74181 ALU to the hub\n\nUsage: %s [options]\n\nOptions:\n", appName, appName)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if err := cfg.Check(); err != nil {
		return nil, err
	}
	if cfg.ReportInterval < 0 {
		return nil, fmt.Errorf("report-interval cannot be negative")
	}
	return cfg, nil
}
