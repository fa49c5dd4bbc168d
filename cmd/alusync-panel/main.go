// Package main runs a headless front panel that reads commands from stdin.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/c360/alusync/agent"
	"github.com/c360/alusync/health"
	"github.com/c360/alusync/internal/cli"
	"github.com/c360/alusync/metric"
	"github.com/c360/alusync/panel"
	"github.com/c360/alusync/pins"
)

// Build information constants
const (
	Version = "0.1.0"
	appName = "alusync-panel"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := run(os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		slog.Error("Panel failed", "error", err, "exit_code", 1)
		os.Exit(1)
	}
}

func run(args []string) error {
	cliCfg, err := parseFlags(args)
	if err != nil {
		return err
	}
	if cliCfg.ShowVersion {
		fmt.Printf("%s version %s\n", appName, Version)
		return nil
	}

	// stdout carries the panel; logs go to stderr.
	logger := cli.SetupLogger(os.Stderr, cliCfg.LogLevel, cliCfg.LogFormat, appName, Version)
	slog.SetDefault(logger)

	cfg, err := cli.LoadConfig(cliCfg.ConfigPath)
	if err != nil {
		return err
	}
	if cliCfg.HubURL != "" {
		cfg.Client.HubURL = cliCfg.HubURL
	}
	if cliCfg.Validate {
		logger.Info("Configuration is valid")
		return nil
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	registry := metric.NewMetricsRegistry()
	monitor := health.NewMonitor(appName, health.WithMetrics(registry))
	monitor.UpdateDegraded("hub", "not connected")

	p := panel.New(panel.WithLogger(logger))
	p.OnOutputs(func(o pins.OutputsSnapshot) {
		fmt.Printf("outputs %s F=%d\n", o, o.F())
	})

	a, err := agent.New(agent.ConfigFrom(cfg.Client), p.Handlers(),
		agent.WithLogger(logger),
		agent.WithMetrics(registry, "panel"),
		agent.WithStateCallback(func(s agent.ConnectionState) {
			if s == agent.Connected {
				monitor.UpdateHealthy("hub", "connected")
			} else {
				monitor.UpdateDegraded("hub", s.String())
			}
		}),
	)
	if err != nil {
		return fmt.Errorf("create agent: %w", err)
	}
	defer func() { _ = a.Close() }()
	p.Attach(a)

	metricsSrv, err := cli.StartMetrics(cfg.Metrics, registry, logger)
	if err != nil {
		return err
	}
	healthSrv, err := cli.ServeHealth(cliCfg.HealthPort, monitor, logger)
	if err != nil {
		return err
	}

	if err := a.EnsureConnected(ctx); err != nil {
		fmt.Printf("hub not reachable yet: %v\n", err)
	}

	c := &console{panel: p, ping: a.TestClientEvent, out: os.Stdout}
	runErr := c.run(ctx, os.Stdin)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cliCfg.ShutdownTimeout)
	defer shutdownCancel()
	_ = cli.Shutdown(shutdownCtx, logger, metricsSrv, healthSrv)
	return runErr
}
