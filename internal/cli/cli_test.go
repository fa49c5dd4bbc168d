package cli

import (
	"context"
	"flag"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/alusync/health"
)

func parse(t *testing.T, args ...string) *Common {
	t.Helper()
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	c := &Common{}
	c.Register(fs)
	require.NoError(t, fs.Parse(args))
	return c
}

func TestCommon_Defaults(t *testing.T) {
	c := parse(t)
	require.NoError(t, c.Check())
	assert.Equal(t, "info", c.LogLevel)
	assert.Equal(t, "json", c.LogFormat)
	assert.Equal(t, 10*time.Second, c.ShutdownTimeout)
	assert.Empty(t, c.ConfigPath)
}

func TestCommon_Check(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr bool
	}{
		{"debug shorthand", []string{"--debug"}, false},
		{"bad level", []string{"--log-level=loud"}, true},
		{"bad format", []string{"--log-format=xml"}, true},
		{"bad health port", []string{"--health-port=70000"}, true},
		{"missing config", []string{"--config=/nonexistent/alusync.yaml"}, true},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			err := parse(t, test.args...).Check()
			if test.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}

	c := parse(t, "--debug")
	require.NoError(t, c.Check())
	assert.Equal(t, "debug", c.LogLevel)
}

func TestEnvFallback(t *testing.T) {
	t.Setenv("ALUSYNC_LOG_FORMAT", "text")
	t.Setenv("ALUSYNC_HEALTH_PORT", "not-a-number")
	c := parse(t)
	assert.Equal(t, "text", c.LogFormat)
	assert.Equal(t, 0, c.HealthPort)
}

func TestLoadConfig(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, ":5080", cfg.Hub.Listen)

	path := filepath.Join(t.TempDir(), "alusync.yaml")
	require.NoError(t, os.WriteFile(path, []byte("hub:\n  listen: \":7000\"\n"), 0o600))
	cfg, err = LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, ":7000", cfg.Hub.Listen)
	assert.Equal(t, "/ws", cfg.Hub.Path)

	require.NoError(t, os.WriteFile(path, []byte("hub:\n  event_log_capacity: 0\n"), 0o600))
	_, err = LoadConfig(path)
	assert.Error(t, err)
}

func TestSetupLogger(t *testing.T) {
	assert.NotNil(t, SetupLogger(io.Discard, "debug", "text", "alusync-test", "0.0.0"))
	assert.NotNil(t, SetupLogger(io.Discard, "bogus", "bogus", "alusync-test", "0.0.0"))
}

func TestServeHealthAndShutdown(t *testing.T) {
	logger := SetupLogger(io.Discard, "error", "text", "test", "dev")
	monitor := health.NewMonitor("test")
	monitor.UpdateHealthy("hub", "connected")

	srv, err := ServeHealth(0, monitor, logger)
	require.NoError(t, err)
	assert.Nil(t, srv, "port 0 disables the endpoint")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, Shutdown(ctx, logger, nil, nil))

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())

	srv, err = ServeHealth(port, monitor, logger)
	require.NoError(t, err)
	require.NotNil(t, srv)

	var resp *http.Response
	require.Eventually(t, func() bool {
		resp, err = http.Get("http://127.0.0.1:" + strconv.Itoa(port) + "/health")
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	assert.NoError(t, Shutdown(ctx, logger, nil, srv))
}
