// Package main runs the hardware bridge: it applies hub pin changes to a
// 74181, real or emulated, and reports the outputs back.
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
	"github.com/c360/alusync/bridge"
	"github.com/c360/alusync/health"
	"github.com/c360/alusync/internal/cli"
	"github.com/c360/alusync/metric"
	"github.com/c360/alusync/pkg/retry"
)

// Build information constants
const (
	Version = "0.1.0"
	appName = "alusync-bridge"
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
		slog.Error("Bridge failed", "error", err, "exit_code", 1)
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

	logger := cli.SetupLogger(os.Stdout, cliCfg.LogLevel, cliCfg.LogFormat, appName, Version)
	slog.SetDefault(logger)

	cfg, err := cli.LoadConfig(cliCfg.ConfigPath)
	if err != nil {
		return err
	}
	if cliCfg.HubURL != "" {
		cfg.Client.HubURL = cliCfg.HubURL
	}
	if cliCfg.Backend != "" {
		cfg.Bridge.Backend = cliCfg.Backend
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if cliCfg.Validate {
		logger.Info("Configuration is valid")
		return nil
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	hw, closeHW, err := bridge.Open(cfg.Bridge, logger)
	if err != nil {
		return fmt.Errorf("open %s backend: %w", cfg.Bridge.Backend, err)
	}
	defer func() {
		if err := closeHW(); err != nil {
			logger.Warn("Hardware release failed", "error", err)
		}
	}()
	logger.Info("Bridge backend ready", "backend", cfg.Bridge.Backend)

	registry := metric.NewMetricsRegistry()
	monitor := health.NewMonitor(appName, health.WithMetrics(registry))
	monitor.UpdateDegraded("hub", "not connected")

	ctrl := bridge.NewController(hw,
		bridge.WithControllerLogger(logger),
		bridge.WithCallTimeout(cfg.Client.RequestTimeout.Duration()),
	)
	a, err := agent.New(agent.ConfigFrom(cfg.Client), ctrl.Handlers(),
		agent.WithLogger(logger),
		agent.WithMetrics(registry, "bridge"),
		agent.WithStateCallback(reportState(monitor)),
	)
	if err != nil {
		return fmt.Errorf("create agent: %w", err)
	}
	ctrl.Attach(a)

	metricsSrv, err := cli.StartMetrics(cfg.Metrics, registry, logger)
	if err != nil {
		_ = a.Close()
		return err
	}
	healthSrv, err := cli.ServeHealth(cliCfg.HealthPort, monitor, logger)
	if err != nil {
		_ = a.Close()
		return err
	}

	// The first connect waits for the hub; later drops are handled by the
	// agent's own reconnect loop.
	connect := retry.Fixed(cfg.Client.ReconnectDelay.Duration(), cfg.Client.MaxReconnectAttempts)
	if err := retry.Do(ctx, connect, func() error { return a.EnsureConnected(ctx) }); err != nil {
		logger.Warn("Hub not reached at start-up, continuing", "error", err)
	} else if err := ctrl.ReportOutputs(ctx); err != nil {
		logger.Warn("Initial outputs not reported", "error", err)
	}

	go ctrl.ReportEvery(ctx, cliCfg.ReportInterval)

	<-ctx.Done()
	logger.Info("Received shutdown signal")

	_ = a.Close()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cliCfg.ShutdownTimeout)
	defer shutdownCancel()
	_ = cli.Shutdown(shutdownCtx, logger, metricsSrv, healthSrv)

	logger.Info("Bridge shutdown complete")
	return nil
}

func reportState(monitor *health.Monitor) func(agent.ConnectionState) {
	return func(s agent.ConnectionState) {
		switch s {
		case agent.Connected:
			monitor.UpdateHealthy("hub", "connected")
		case agent.Closed:
			monitor.UpdateUnhealthy("hub", "closed")
		default:
			monitor.UpdateDegraded("hub", s.String())
		}
	}
}
