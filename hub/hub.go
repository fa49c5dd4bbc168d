package hub

import (
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/c360/alusync/config"
	"github.com/c360/alusync/errors"
	"github.com/c360/alusync/eventlog"
	"github.com/c360/alusync/health"
	"github.com/c360/alusync/metric"
	"github.com/c360/alusync/pins"
	"github.com/c360/alusync/protocol"
	"github.com/c360/alusync/state"
)

const (
	// Time allowed to write a message to the peer.
	defaultWriteWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	defaultPongWait = 60 * time.Second

	// Maximum inbound frame size. Requests are small JSON objects.
	defaultMaxMessageSize = 64 * 1024
)

// Config holds the hub's runtime settings
type Config struct {
	Listen           string
	Path             string
	EventLogCapacity int
	SendQueueSize    int
	InboundRate      float64 // frames per second per connection, 0 is unlimited
	InboundBurst     int
	WriteWait        time.Duration
	PongWait         time.Duration
	MaxMessageSize   int64
}

// DefaultConfig returns the hub defaults
func DefaultConfig() Config {
	return ConfigFrom(config.Default().Hub)
}

// ConfigFrom builds a hub Config from the file configuration section.
func ConfigFrom(c config.HubConfig) Config {
	return Config{
		Listen:           c.Listen,
		Path:             c.Path,
		EventLogCapacity: c.EventLogCapacity,
		SendQueueSize:    c.SendQueueSize,
		InboundRate:      c.InboundRate,
		InboundBurst:     c.InboundBurst,
		WriteWait:        defaultWriteWait,
		PongWait:         defaultPongWait,
		MaxMessageSize:   defaultMaxMessageSize,
	}
}

func (c *Config) applyDefaults() {
	if c.Path == "" {
		c.Path = "/ws"
	}
	if c.EventLogCapacity < 1 {
		c.EventLogCapacity = eventlog.DefaultCapacity
	}
	if c.SendQueueSize < 1 {
		c.SendQueueSize = 64
	}
	if c.InboundRate > 0 && c.InboundBurst < 1 {
		c.InboundBurst = 1
	}
	if c.WriteWait <= 0 {
		c.WriteWait = defaultWriteWait
	}
	if c.PongWait <= 0 {
		c.PongWait = defaultPongWait
	}
	if c.MaxMessageSize <= 0 {
		c.MaxMessageSize = defaultMaxMessageSize
	}
}

// Peer is one connected client as seen by the hub. Send must not block; a
// peer that cannot accept a message returns an error and closes itself.
type Peer interface {
	ID() string
	Send(env protocol.Envelope) error
}

// Option configures a Hub.
type Option func(*Hub)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(h *Hub) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// WithMetrics registers hub and event log metrics with registry.
func WithMetrics(registry *metric.MetricsRegistry) Option {
	return func(h *Hub) { h.registry = registry }
}

// WithEventSink forwards every recorded SyncEvent to sink.
func WithEventSink(sink eventlog.Sink) Option {
	return func(h *Hub) { h.sinks = append(h.sinks, sink) }
}

// WithHealth reports hub health into an existing monitor instead of a
// private one.
func WithHealth(m *health.Monitor) Option {
	return func(h *Hub) {
		if m != nil {
			h.health = m
		}
	}
}

// Hub is the single authoritative owner of pin state and the event log. It
// serves every connected client and mediates all broadcast traffic.
type Hub struct {
	cfg      Config
	logger   *slog.Logger
	registry *metric.MetricsRegistry
	metrics  *Metrics
	sinks    []eventlog.Sink
	health   *health.Monitor

	store    *state.Store
	events   *eventlog.Log
	handlers protocol.Table[handlerFunc]

	peersMu sync.RWMutex
	peers   map[string]Peer

	// WebSocket server
	upgrader    websocket.Upgrader
	lifecycleMu sync.Mutex
	server      *http.Server
	listener    net.Listener
	shutdown    chan struct{}
	wg          sync.WaitGroup
	running     bool
}

// New creates a hub. It does not listen until Start.
func New(cfg Config, opts ...Option) (*Hub, error) {
	cfg.applyDefaults()

	h := &Hub{
		cfg:    cfg,
		logger: slog.Default(),
		store:  state.NewStore(),
		peers:  make(map[string]Peer),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
	for _, opt := range opts {
		opt(h)
	}
	h.logger = h.logger.With("component", "hub")
	if h.health == nil {
		h.health = health.NewMonitor("alusync-hub")
	}

	metrics, err := newMetrics(h.registry)
	if err != nil {
		return nil, errors.Wrap(err, "hub", "New", "register metrics")
	}
	h.metrics = metrics

	logOpts := []eventlog.Option{eventlog.WithMetrics(h.registry)}
	for _, s := range h.sinks {
		logOpts = append(logOpts, eventlog.WithSink(s))
	}
	events, err := eventlog.New(cfg.EventLogCapacity, logOpts...)
	if err != nil {
		return nil, errors.Wrap(err, "hub", "New", "create event log")
	}
	h.events = events
	h.handlers = h.dispatchTable()
	h.health.UpdateDegraded(serviceName, "not started")

	return h, nil
}

// Events returns the hub's event log.
func (h *Hub) Events() *eventlog.Log { return h.events }

// Health returns the monitor the hub reports into.
func (h *Hub) Health() *health.Monitor { return h.health }

// Connect registers a peer and records OnConnected. Snapshots are not pushed
// here; a client receives them after it sends ClientReady.
func (h *Hub) Connect(p Peer) {
	h.peersMu.Lock()
	h.peers[p.ID()] = p
	n := len(h.peers)
	h.peersMu.Unlock()

	h.events.Record(p.ID(), eventlog.LabelConnected, true)
	h.metrics.connected(n)
	h.logger.Info("Client connected", "conn", p.ID(), "connections", n)
}

// Disconnect unregisters a peer and records OnDisconnected. Unknown IDs are
// ignored.
func (h *Hub) Disconnect(id string) {
	h.peersMu.Lock()
	_, ok := h.peers[id]
	delete(h.peers, id)
	n := len(h.peers)
	h.peersMu.Unlock()
	if !ok {
		return
	}

	h.events.Record(id, eventlog.LabelDisconnected, false)
	h.metrics.disconnected(n)
	h.logger.Info("Client disconnected", "conn", id, "connections", n)
}

// Connections returns the number of registered peers.
func (h *Hub) Connections() int {
	h.peersMu.RLock()
	defer h.peersMu.RUnlock()
	return len(h.peers)
}

// PinToggled records the toggle, stores it when pin is an input pin, and
// notifies every other connection. Unrecognized pins are broadcast but never
// stored.
func (h *Hub) PinToggled(callerID, pin string, value bool) error {
	h.events.Record(callerID, pin, value)

	if _, ok := h.store.SetPin(pin, value); !ok {
		h.logger.Debug("Unrecognized pin not stored", "conn", callerID, "pin", pin)
	}

	env, err := protocol.NewPush(protocol.TypePinToggled, protocol.PinToggledPayload{Pin: pin, State: value})
	if err != nil {
		return err
	}
	h.broadcast(env, callerID)
	return nil
}

// ReportAluOutputs replaces the cached outputs and notifies every
// connection, the sender included. Binary and hex are always derived from
// raw.
func (h *Hub) ReportAluOutputs(callerID string, p protocol.AluOutputsPayload) error {
	snap := p.Snapshot()
	if p.Binary != snap.Binary || p.Hex != snap.Hex {
		h.logger.Warn("Reported outputs inconsistent with raw byte, recomputed",
			"conn", callerID, "raw", p.Raw, "binary", p.Binary, "hex", p.Hex)
	}
	h.store.SetOutputs(snap)

	env, err := protocol.NewPush(protocol.TypeAluOutputsChanged, protocol.OutputsPayload(snap))
	if err != nil {
		return err
	}
	h.broadcast(env, "")
	return nil
}

// GetState returns a copy of the input pin map. It never fails.
func (h *Hub) GetState() (s state.SyncState) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Warn("GetState recovered, returning empty state", "panic", r)
			s = state.SyncState{Pins: map[string]bool{}}
		}
	}()
	return h.store.State()
}

// GetLastOutputsState returns the cached outputs, or nil before the first
// report. It never fails.
func (h *Hub) GetLastOutputsState() (o *pins.OutputsSnapshot) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Warn("GetLastOutputsState recovered, returning nil", "panic", r)
			o = nil
		}
	}()
	snap, ok := h.store.Outputs()
	if !ok {
		return nil
	}
	return &snap
}

// ClientReady records the handshake and pushes both snapshots to the caller.
func (h *Hub) ClientReady(callerID, token string) error {
	h.events.Record(callerID, eventlog.LabelClientReady, true)
	h.metrics.handshake()
	h.logger.Debug("Client ready", "conn", callerID, "token", token)
	return h.pushSnapshots(callerID)
}

// RequestSnapshot pushes both snapshots to the caller again.
func (h *Hub) RequestSnapshot(callerID string) error {
	h.events.Record(callerID, eventlog.LabelRequestSnapshot, true)
	return h.pushSnapshots(callerID)
}

// TestClientEvent is the liveness probe.
func (h *Hub) TestClientEvent() string {
	return protocol.TestClientEventResult
}

func (h *Hub) pushSnapshots(callerID string) error {
	pinsEnv, err := protocol.NewPush(protocol.TypeSnapshotPins, protocol.SnapshotPinsPayload(h.GetState().Pins))
	if err != nil {
		return err
	}

	var raw protocol.SnapshotOutputsRawPayload
	if o := h.GetLastOutputsState(); o != nil {
		v := o.Raw
		raw = &v
	}
	rawEnv, err := protocol.NewPush(protocol.TypeSnapshotOutputsRaw, raw)
	if err != nil {
		return err
	}

	if err := h.sendTo(callerID, pinsEnv); err != nil {
		return err
	}
	return h.sendTo(callerID, rawEnv)
}

func (h *Hub) peer(id string) (Peer, bool) {
	h.peersMu.RLock()
	defer h.peersMu.RUnlock()
	p, ok := h.peers[id]
	return p, ok
}

func (h *Hub) sendTo(id string, env protocol.Envelope) error {
	p, ok := h.peer(id)
	if !ok {
		return errors.WrapTransient(errors.ErrNoConnection, "hub", "sendTo", "push "+env.Type.String())
	}
	if err := p.Send(env); err != nil {
		h.metrics.dropped()
		return errors.WrapTransient(err, "hub", "sendTo", "push "+env.Type.String())
	}
	h.metrics.pushed(env.Type.String(), 1)
	return nil
}

// broadcast sends env to every peer except exclude. The peer set is copied
// so no lock is held while sending.
func (h *Hub) broadcast(env protocol.Envelope, exclude string) {
	h.peersMu.RLock()
	targets := make([]Peer, 0, len(h.peers))
	for id, p := range h.peers {
		if id != exclude {
			targets = append(targets, p)
		}
	}
	h.peersMu.RUnlock()

	sent := 0
	for _, p := range targets {
		if err := p.Send(env); err != nil {
			h.metrics.dropped()
			h.logger.Warn("Broadcast to client failed", "conn", p.ID(), "type", env.Type.String(), "error", err)
			continue
		}
		sent++
	}
	h.metrics.pushed(env.Type.String(), sent)
}
