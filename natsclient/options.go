package natsclient

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/c360/alusync/metric"
)

// ClientOption configures a Client. Options that reject their argument make
// NewClient fail with an invalid-class error.
type ClientOption func(*Client) error

// WithLogger replaces slog.Default(). A nil logger is ignored.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) error {
		if logger != nil {
			c.logger = logger
		}
		return nil
	}
}

// WithName is the connection name shown by the server's monitoring.
func WithName(name string) ClientOption {
	return func(c *Client) error {
		c.clientName = name
		return nil
	}
}

// WithToken authenticates with a bearer token.
func WithToken(token string) ClientOption {
	return func(c *Client) error {
		c.token = token
		return nil
	}
}

// WithMaxReconnects bounds automatic reconnection; -1 never gives up.
func WithMaxReconnects(n int) ClientOption {
	return func(c *Client) error {
		if n < -1 {
			return fmt.Errorf("max reconnects must be -1 or more, got %d", n)
		}
		c.maxReconnects = n
		return nil
	}
}

// WithReconnectWait is the pause between reconnection attempts.
func WithReconnectWait(d time.Duration) ClientOption {
	return func(c *Client) error {
		if d < 0 {
			return fmt.Errorf("reconnect wait cannot be negative: %v", d)
		}
		c.reconnectWait = d
		return nil
	}
}

// WithTimeout bounds the initial dial.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) error {
		if d <= 0 {
			return fmt.Errorf("timeout must be positive: %v", d)
		}
		c.timeout = d
		return nil
	}
}

// WithMetrics exports connection state through the registry's process
// collectors.
func WithMetrics(registry *metric.MetricsRegistry) ClientOption {
	return func(c *Client) error {
		if registry != nil {
			c.metrics = registry.Process()
		}
		return nil
	}
}

// WithStatusCallback observes status transitions. fn runs on the goroutine
// that caused the transition, which may be a NATS callback goroutine.
func WithStatusCallback(fn func(ConnectionStatus)) ClientOption {
	return func(c *Client) error {
		c.onStatusChange = fn
		return nil
	}
}
