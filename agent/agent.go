package agent

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/c360/alusync/config"
	"github.com/c360/alusync/errors"
	"github.com/c360/alusync/metric"
	"github.com/c360/alusync/pins"
	"github.com/c360/alusync/protocol"
)

// ConnectionState is the agent's view of its transport.
type ConnectionState int32

const (
	Disconnected ConnectionState = iota
	Connecting
	Connected
	Reconnecting
	Closed
)

func (s ConnectionState) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Reconnecting:
		return "reconnecting"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}

// Handlers are the consumer callbacks for hub pushes. They run one at a
// time on the agent's dispatch goroutine, in the order the hub sent the
// messages, and may call back into the agent. Nil handlers are skipped.
type Handlers struct {
	OnPinToggled         func(pin string, state bool)
	OnAluOutputsChanged  func(outputs pins.OutputsSnapshot)
	OnSnapshotPins       func(pins map[string]bool)
	OnSnapshotOutputsRaw func(raw *uint8)
}

// Config holds agent settings
type Config struct {
	URL                  string
	ReconnectDelay       time.Duration
	MaxReconnectAttempts int // 0 retries until Close
	RequestTimeout       time.Duration
	HandshakeTimeout     time.Duration
	Header               http.Header
}

// DefaultConfig returns the client defaults
func DefaultConfig() Config {
	return ConfigFrom(config.Default().Client)
}

// ConfigFrom builds an agent Config from the file configuration section.
func ConfigFrom(c config.ClientConfig) Config {
	return Config{
		URL:                  c.HubURL,
		ReconnectDelay:       c.ReconnectDelay.Duration(),
		MaxReconnectAttempts: c.MaxReconnectAttempts,
		RequestTimeout:       c.RequestTimeout.Duration(),
		HandshakeTimeout:     10 * time.Second,
	}
}

func (c *Config) applyDefaults() {
	if c.ReconnectDelay <= 0 {
		c.ReconnectDelay = 5 * time.Second
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 5 * time.Second
	}
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = 10 * time.Second
	}
}

// Option configures an Agent.
type Option func(*Agent)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(a *Agent) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithMetrics registers the agent's metrics under name.
func WithMetrics(registry *metric.MetricsRegistry, name string) Option {
	return func(a *Agent) {
		a.registry = registry
		a.name = name
	}
}

// WithStateCallback is called on every connection state change.
func WithStateCallback(fn func(ConnectionState)) Option {
	return func(a *Agent) { a.onState = fn }
}

// session is one physical connection. gen increases with every successful
// dial and identifies the connection for the handshake marker.
type session struct {
	gen       uint64
	conn      *websocket.Conn
	writeMu   sync.Mutex
	done      chan struct{}
	closeOnce sync.Once
}

func (s *session) write(data []byte, timeout time.Duration) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(timeout))
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

func (s *session) close() {
	s.closeOnce.Do(func() {
		close(s.done)
		_ = s.conn.Close()
	})
}

// Agent owns one logical connection to the hub.
type Agent struct {
	cfg      Config
	logger   *slog.Logger
	registry *metric.MetricsRegistry
	name     string
	metrics  *Metrics
	onState  func(ConnectionState)
	dialer   *websocket.Dialer
	token    string

	// gate collapses concurrent connects into one dial
	gate chan struct{}

	mu      sync.Mutex
	current *session
	lastGen uint64
	closed  bool

	state atomic.Int32

	// claimedGen is the newest generation whose handshake has been claimed;
	// readyGen the newest whose handshake completed.
	claimedGen atomic.Uint64
	readyGen   atomic.Uint64

	reconnecting atomic.Bool

	pendingMu sync.Mutex
	pending   map[string]chan protocol.Envelope

	dispatch protocol.Table[func(protocol.Envelope) error]
	inbox    *queue

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// New creates an agent and starts its dispatch goroutine. It does not
// connect until EnsureConnected or the first outbound call.
func New(cfg Config, handlers Handlers, opts ...Option) (*Agent, error) {
	if cfg.URL == "" {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "agent", "New", "hub url")
	}
	cfg.applyDefaults()

	ctx, cancel := context.WithCancel(context.Background())
	a := &Agent{
		cfg:     cfg,
		logger:  slog.Default(),
		name:    "client",
		token:   uuid.NewString(),
		gate:    make(chan struct{}, 1),
		pending: make(map[string]chan protocol.Envelope),
		inbox:   newQueue(),
		ctx:     ctx,
		cancel:  cancel,
		dialer: &websocket.Dialer{
			HandshakeTimeout: cfg.HandshakeTimeout,
			Proxy:            http.ProxyFromEnvironment,
		},
	}
	for _, opt := range opts {
		opt(a)
	}
	a.logger = a.logger.With("component", "agent", "hub", cfg.URL)

	metrics, err := newMetrics(a.registry, a.name)
	if err != nil {
		cancel()
		return nil, errors.Wrap(err, "agent", "New", "register metrics")
	}
	a.metrics = metrics
	a.dispatch = dispatchTable(handlers)

	a.wg.Add(1)
	go a.dispatchLoop()
	return a, nil
}

// Token returns the readiness token sent with every ClientReady.
func (a *Agent) Token() string { return a.token }

// State returns the current connection state.
func (a *Agent) State() ConnectionState {
	return ConnectionState(a.state.Load())
}

// Ready reports whether the handshake has completed on the current
// connection.
func (a *Agent) Ready() bool {
	s := a.session()
	return s != nil && a.readyGen.Load() == s.gen
}

func (a *Agent) setState(s ConnectionState) {
	if ConnectionState(a.state.Swap(int32(s))) == s {
		return
	}
	a.metrics.setState(s)
	a.logger.Debug("Connection state changed", "state", s.String())
	if a.onState != nil {
		a.onState(s)
	}
}

func (a *Agent) session() *session {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.current
}

func (a *Agent) isClosed() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.closed
}

// Close shuts the connection and stops reconnecting and dispatching. It
// waits for the agent's goroutines to exit, so it must not be called from a
// Handlers callback.
func (a *Agent) Close() error {
	a.closeOnce.Do(func() {
		a.mu.Lock()
		a.closed = true
		s := a.current
		a.current = nil
		a.mu.Unlock()

		a.cancel()
		if s != nil {
			_ = s.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			s.close()
		}
		a.inbox.close()
		a.wg.Wait()
		a.setState(Closed)
	})
	return nil
}
