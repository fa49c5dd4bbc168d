// Package main runs the alusync hub: the single authority for the shared
// ALU pin state, its output cache and the audit log.
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

	"github.com/c360/alusync/config"
	"github.com/c360/alusync/health"
	"github.com/c360/alusync/hub"
	"github.com/c360/alusync/internal/cli"
	"github.com/c360/alusync/metric"
	"github.com/c360/alusync/mirror"
	"github.com/c360/alusync/natsclient"
)

// Build information constants
const (
	Version = "0.1.0"
	appName = "alusync-hub"
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
		slog.Error("Hub failed", "error", err, "exit_code", 1)
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
	if cliCfg.Listen != "" {
		cfg.Hub.Listen = cliCfg.Listen
	}
	if cliCfg.Validate {
		logger.Info("Configuration is valid")
		return nil
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	registry := metric.NewMetricsRegistry()
	monitor := health.NewMonitor(appName, health.WithMetrics(registry))

	opts := []hub.Option{
		hub.WithLogger(logger),
		hub.WithMetrics(registry),
		hub.WithHealth(monitor),
	}

	m, nc := startMirror(ctx, cfg, registry, monitor, logger)
	if m != nil {
		opts = append(opts, hub.WithEventSink(m.Sink()))
	}

	h, err := hub.New(hub.ConfigFrom(cfg.Hub), opts...)
	if err != nil {
		return fmt.Errorf("create hub: %w", err)
	}
	if err := h.Start(ctx); err != nil {
		return fmt.Errorf("start hub: %w", err)
	}

	metricsSrv, err := cli.StartMetrics(cfg.Metrics, registry, logger)
	if err != nil {
		return err
	}

	<-ctx.Done()
	logger.Info("Received shutdown signal")

	if err := h.Stop(cliCfg.ShutdownTimeout); err != nil {
		logger.Warn("Hub shutdown incomplete", "error", err)
	}
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cliCfg.ShutdownTimeout)
	defer shutdownCancel()
	if m != nil {
		if err := m.Stop(cliCfg.ShutdownTimeout); err != nil {
			logger.Warn("Mirror did not drain", "error", err)
		}
		_ = nc.Close(shutdownCtx)
	}
	_ = cli.Shutdown(shutdownCtx, logger, metricsSrv, nil)

	logger.Info("Hub shutdown complete")
	return nil
}

// startMirror connects the optional NATS mirror. A mirror that cannot
// connect is reported unhealthy and skipped; the hub runs without it.
func startMirror(ctx context.Context, cfg *config.Config, registry *metric.MetricsRegistry,
	monitor *health.Monitor, logger *slog.Logger,
) (*mirror.Mirror, *natsclient.Client) {
	if !cfg.Mirror.Enabled {
		return nil, nil
	}

	nc, err := natsclient.NewClient(cfg.Mirror.NATSURL,
		natsclient.WithLogger(logger),
		natsclient.WithMetrics(registry),
		natsclient.WithName(appName),
		natsclient.WithToken(cfg.Mirror.Token),
		natsclient.WithStatusCallback(func(s natsclient.ConnectionStatus) {
			if s == natsclient.StatusReconnecting {
				monitor.UpdateDegraded("mirror", "nats reconnecting")
			} else if s == natsclient.StatusConnected {
				monitor.UpdateHealthy("mirror", "publishing to "+cfg.Mirror.Subject)
			}
		}),
	)
	if err != nil {
		logger.Warn("Event mirror disabled", "error", err)
		monitor.Update("mirror", health.FromError("mirror", err))
		return nil, nil
	}
	if err := nc.Connect(ctx); err != nil {
		logger.Warn("Event mirror disabled, NATS unreachable", "url", cfg.Mirror.NATSURL, "error", err)
		monitor.Update("mirror", health.FromError("mirror", err))
		return nil, nil
	}

	m, err := mirror.New(nc, mirror.ConfigFrom(cfg.Mirror), mirror.WithLogger(logger), mirror.WithMetrics(registry))
	if err == nil {
		err = m.Start(ctx)
	}
	if err != nil {
		logger.Warn("Event mirror disabled", "error", err)
		monitor.Update("mirror", health.FromError("mirror", err))
		_ = nc.Close(ctx)
		return nil, nil
	}

	logger.Info("Event mirror started", "url", cfg.Mirror.NATSURL, "subject", cfg.Mirror.Subject)
	return m, nc
}
