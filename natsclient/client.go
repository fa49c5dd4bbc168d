// Package natsclient manages a single NATS connection for publishing alusync
// events to external observers.
package natsclient

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/c360/alusync/errors"
	"github.com/c360/alusync/metric"
)

// ConnectionStatus represents the state of the NATS connection
type ConnectionStatus int32

// Possible connection statuses
const (
	StatusDisconnected ConnectionStatus = iota
	StatusConnecting
	StatusConnected
	StatusReconnecting
	StatusClosed
)

// String returns the string representation of ConnectionStatus
func (s ConnectionStatus) String() string {
	switch s {
	case StatusDisconnected:
		return "disconnected"
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	case StatusReconnecting:
		return "reconnecting"
	case StatusClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Client wraps a nats.Conn with status tracking and structured logging.
type Client struct {
	url    string
	status atomic.Int32
	logger *slog.Logger

	mu   sync.RWMutex
	conn *nats.Conn

	failures   atomic.Int32
	reconnects atomic.Int32

	maxReconnects int
	reconnectWait time.Duration
	pingInterval  time.Duration
	timeout       time.Duration
	drainTimeout  time.Duration
	clientName    string
	token         string

	metrics *metric.Process

	onStatusChange func(ConnectionStatus)

	closeOnce sync.Once
}

// NewClient creates a new NATS client with optional configuration
func NewClient(url string, opts ...ClientOption) (*Client, error) {
	if url == "" {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "Client", "NewClient", "validate url")
	}

	c := &Client{
		url:           url,
		logger:        slog.Default(),
		maxReconnects: -1,
		reconnectWait: 2 * time.Second,
		pingInterval:  30 * time.Second,
		timeout:       5 * time.Second,
		drainTimeout:  5 * time.Second,
	}

	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, errors.WrapInvalid(err, "Client", "NewClient", "apply option")
		}
	}
	c.logger = c.logger.With("component", "natsclient")

	return c, nil
}

// URL returns the NATS server URL
func (c *Client) URL() string {
	return c.url
}

// Status returns the current connection status
func (c *Client) Status() ConnectionStatus {
	return ConnectionStatus(c.status.Load())
}

// IsHealthy returns true if the connection is usable
func (c *Client) IsHealthy() bool {
	return c.Status() == StatusConnected
}

// Failures returns the number of failed connection attempts
func (c *Client) Failures() int32 {
	return c.failures.Load()
}

func (c *Client) setStatus(s ConnectionStatus) {
	prev := ConnectionStatus(c.status.Swap(int32(s)))
	if prev == s {
		return
	}
	if c.metrics != nil {
		c.metrics.SetNATSConnected(s == StatusConnected)
	}
	if c.onStatusChange != nil {
		c.onStatusChange(s)
	}
}

func (c *Client) connectionOptions() []nats.Option {
	opts := []nats.Option{
		nats.MaxReconnects(c.maxReconnects),
		nats.ReconnectWait(c.reconnectWait),
		nats.PingInterval(c.pingInterval),
		nats.Timeout(c.timeout),
		nats.DrainTimeout(c.drainTimeout),
		nats.DisconnectErrHandler(c.handleDisconnect),
		nats.ReconnectHandler(c.handleReconnect),
		nats.ClosedHandler(c.handleClosed),
		nats.ErrorHandler(c.handleError),
	}
	if c.token != "" {
		opts = append(opts, nats.Token(c.token))
	}
	if c.clientName != "" {
		opts = append(opts, nats.Name(c.clientName))
	}
	return opts
}

// Connect establishes the connection. It returns a transient error when the
// server cannot be reached before ctx is done or the dial timeout elapses.
func (c *Client) Connect(ctx context.Context) error {
	if c.Status() == StatusClosed {
		return errors.WrapInvalid(errors.ErrClosed, "Client", "Connect", "connect closed client")
	}

	c.setStatus(StatusConnecting)
	c.logger.Info("Connecting to NATS", "url", c.url)

	type result struct {
		conn *nats.Conn
		err  error
	}
	done := make(chan result, 1)
	go func() {
		conn, err := nats.Connect(c.url, c.connectionOptions()...)
		done <- result{conn, err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			c.failures.Add(1)
			c.setStatus(StatusDisconnected)
			return errors.WrapTransient(r.err, "Client", "Connect", "establish connection")
		}
		c.mu.Lock()
		c.conn = r.conn
		c.mu.Unlock()
	case <-ctx.Done():
		c.failures.Add(1)
		c.setStatus(StatusDisconnected)
		// the dial goroutine may still succeed; close whatever it produces
		go func() {
			if r := <-done; r.conn != nil {
				r.conn.Close()
			}
		}()
		return errors.WrapTransient(ctx.Err(), "Client", "Connect", "connection cancelled")
	}

	c.setStatus(StatusConnected)
	c.logger.Info("Connected to NATS", "url", c.url)
	return nil
}

// Publish sends data on subject. The call does not wait for the server.
func (c *Client) Publish(_ context.Context, subject string, data []byte) error {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()

	if conn == nil || !conn.IsConnected() {
		return errors.WrapTransient(errors.ErrNoConnection, "Client", "Publish", "publish to "+subject)
	}
	if err := conn.Publish(subject, data); err != nil {
		return errors.WrapTransient(err, "Client", "Publish", "publish to "+subject)
	}
	return nil
}

// Close drains and closes the connection. Safe to call more than once.
func (c *Client) Close(ctx context.Context) error {
	var err error
	c.closeOnce.Do(func() {
		c.mu.Lock()
		conn := c.conn
		c.conn = nil
		c.mu.Unlock()

		c.setStatus(StatusClosed)
		if conn == nil {
			return
		}

		drained := make(chan error, 1)
		go func() { drained <- conn.Drain() }()

		select {
		case derr := <-drained:
			if derr != nil {
				conn.Close()
				err = errors.WrapTransient(derr, "Client", "Close", "drain connection")
			}
		case <-ctx.Done():
			conn.Close()
			err = errors.WrapTransient(ctx.Err(), "Client", "Close", "drain connection")
		}
	})
	return err
}

func (c *Client) handleDisconnect(_ *nats.Conn, err error) {
	if c.Status() == StatusClosed {
		return
	}
	c.logger.Warn("NATS disconnected", "error", err)
	c.setStatus(StatusReconnecting)
}

func (c *Client) handleReconnect(_ *nats.Conn) {
	c.reconnects.Add(1)
	if c.metrics != nil {
		c.metrics.CountNATSReconnect()
	}
	c.logger.Info("NATS reconnected", "reconnects", c.reconnects.Load())
	c.setStatus(StatusConnected)
}

func (c *Client) handleClosed(_ *nats.Conn) {
	c.logger.Debug("NATS connection closed")
	if c.Status() != StatusClosed {
		c.setStatus(StatusDisconnected)
	}
}

func (c *Client) handleError(_ *nats.Conn, _ *nats.Subscription, err error) {
	c.logger.Error("NATS async error", "error", err)
}
