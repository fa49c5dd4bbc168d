// Package cli holds the start-up plumbing shared by the alusync binaries:
// common flags, logger construction, configuration loading and the metrics
// and health endpoints.
package cli

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/c360/alusync/config"
	"github.com/c360/alusync/health"
	"github.com/c360/alusync/metric"
)

// Common holds the flags every binary accepts.
type Common struct {
	ConfigPath      string
	LogLevel        string
	LogFormat       string
	Debug           bool
	HealthPort      int
	ShutdownTimeout time.Duration
	ShowVersion     bool
	Validate        bool
}

// Register defines the common flags on fs.
func (c *Common) Register(fs *flag.FlagSet) {
	fs.StringVar(&c.ConfigPath, "config",
		GetEnv("ALUSYNC_CONFIG", ""),
		"Path to a JSON or YAML configuration file (env: ALUSYNC_CONFIG)")
	fs.StringVar(&c.LogLevel, "log-level",
		GetEnv("ALUSYNC_LOG_LEVEL", "info"),
		"Log level: debug, info, warn, error (env: ALUSYNC_LOG_LEVEL)")
	fs.StringVar(&c.LogFormat, "log-format",
		GetEnv("ALUSYNC_LOG_FORMAT", "json"),
		"Log format: json, text (env: ALUSYNC_LOG_FORMAT)")
	fs.BoolVar(&c.Debug, "debug",
		GetEnvBool("ALUSYNC_DEBUG", false),
		"Shorthand for --log-level=debug (env: ALUSYNC_DEBUG)")
	fs.IntVar(&c.HealthPort, "health-port",
		GetEnvInt("ALUSYNC_HEALTH_PORT", 0),
		"Health endpoint port, 0 to disable (env: ALUSYNC_HEALTH_PORT)")
	fs.DurationVar(&c.ShutdownTimeout, "shutdown-timeout",
		GetEnvDuration("ALUSYNC_SHUTDOWN_TIMEOUT", 10*time.Second),
		"Graceful shutdown timeout (env: ALUSYNC_SHUTDOWN_TIMEOUT)")
	fs.BoolVar(&c.ShowVersion, "version", false, "Show version information")
	fs.BoolVar(&c.Validate, "validate", false, "Validate configuration and exit")
}

// Check validates the common flags after parsing.
func (c *Common) Check() error {
	if c.Debug {
		c.LogLevel = "debug"
	}
	if !slices.Contains([]string{"debug", "info", "warn", "error"}, c.LogLevel) {
		return fmt.Errorf("invalid log level: %s", c.LogLevel)
	}
	if !slices.Contains([]string{"json", "text"}, c.LogFormat) {
		return fmt.Errorf("invalid log format: %s", c.LogFormat)
	}
	if c.HealthPort < 0 || c.HealthPort > 65535 {
		return fmt.Errorf("invalid health port: %d", c.HealthPort)
	}
	if c.ConfigPath != "" {
		if _, err := os.Stat(c.ConfigPath); err != nil {
			return fmt.Errorf("config file not found: %s", c.ConfigPath)
		}
	}
	return nil
}

// SetupLogger builds the process logger writing to w. Debug level adds
// source locations.
func SetupLogger(w io.Writer, level, format, service, version string) *slog.Logger {
	var logLevel slog.Level
	switch strings.ToLower(level) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level:     logLevel,
		AddSource: logLevel == slog.LevelDebug,
	}

	var handler slog.Handler
	if strings.ToLower(format) == "text" {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}

	return slog.New(handler).With(
		"service", service,
		"version", version,
		"pid", os.Getpid(),
	)
}

// LoadConfig loads defaults, the optional file and ALUSYNC_* overrides, and
// validates the result.
func LoadConfig(path string) (*config.Config, error) {
	cfg, err := config.LoadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// StartMetrics serves the registry when metrics are enabled. The returned
// server is nil when they are not.
func StartMetrics(cfg config.MetricsConfig, registry *metric.MetricsRegistry, logger *slog.Logger) (*metric.Server, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	srv := metric.NewServer(cfg.Port, cfg.Path, registry)
	if err := srv.Start(); err != nil {
		return nil, fmt.Errorf("start metrics server: %w", err)
	}
	logger.Info("Metrics server started", "address", srv.Address())
	return srv, nil
}

// ServeHealth serves the monitor on /health when port is not 0.
func ServeHealth(port int, monitor *health.Monitor, logger *slog.Logger) (*http.Server, error) {
	if port == 0 {
		return nil, nil
	}
	ln, err := net.Listen("tcp", ":"+strconv.Itoa(port))
	if err != nil {
		return nil, fmt.Errorf("listen for health: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/health", monitor)
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			logger.Error("Health server failed", "error", err)
		}
	}()
	logger.Info("Health endpoint started", "address", ln.Addr().String())
	return srv, nil
}

// Shutdown stops the optional servers concurrently within ctx. Failures are
// logged and the first one is returned.
func Shutdown(ctx context.Context, logger *slog.Logger, metrics *metric.Server, healthSrv *http.Server) error {
	var g errgroup.Group
	if metrics != nil {
		g.Go(func() error {
			if err := metrics.Stop(ctx); err != nil {
				logger.Warn("Metrics server shutdown failed", "error", err)
				return err
			}
			return nil
		})
	}
	if healthSrv != nil {
		g.Go(func() error {
			if err := healthSrv.Shutdown(ctx); err != nil {
				logger.Warn("Health server shutdown failed", "error", err)
				return err
			}
			return nil
		})
	}
	return g.Wait()
}

// GetEnv returns the environment value for key or defaultValue.
func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func GetEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func GetEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func GetEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
