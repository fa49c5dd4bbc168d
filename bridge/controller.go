package bridge

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/c360/alusync/agent"
	"github.com/c360/alusync/echoguard"
	"github.com/c360/alusync/pins"
)

// Client is the part of the agent the controller talks to.
type Client interface {
	SendPinToggled(ctx context.Context, pin string, state bool) error
	ReportAluOutputs(ctx context.Context, outputs pins.OutputsSnapshot) error
}

// Controller keeps a Bridge in step with the hub.
type Controller struct {
	bridge  Bridge
	guard   *echoguard.Guard
	logger  *slog.Logger
	timeout time.Duration

	mu     sync.RWMutex
	client Client
}

// ControllerOption configures a Controller.
type ControllerOption func(*Controller)

// WithGuard shares a guard with other consumers in the same process.
func WithGuard(g *echoguard.Guard) ControllerOption {
	return func(c *Controller) { c.guard = g }
}

// WithControllerLogger sets the logger.
func WithControllerLogger(logger *slog.Logger) ControllerOption {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithCallTimeout bounds each call made to the hub. Default 5s.
func WithCallTimeout(d time.Duration) ControllerOption {
	return func(c *Controller) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// NewController subscribes to local input changes when the bridge supports
// them. Call Attach before the agent connects.
func NewController(b Bridge, opts ...ControllerOption) *Controller {
	c := &Controller{
		bridge:  b,
		logger:  slog.Default(),
		timeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.guard == nil {
		c.guard = echoguard.New()
	}
	c.logger = c.logger.With("component", "bridge-controller")

	if n, ok := b.(InputNotifier); ok {
		n.OnInputChange(c.localInputChanged)
	}
	return c
}

// Attach sets the hub client.
func (c *Controller) Attach(client Client) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.client = client
}

func (c *Controller) hub() Client {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.client
}

// Guard returns the controller's echo guard.
func (c *Controller) Guard() *echoguard.Guard { return c.guard }

// Handlers returns the agent callbacks. Output pushes are ignored: the
// bridge is the source of truth for outputs.
func (c *Controller) Handlers() agent.Handlers {
	return agent.Handlers{
		OnPinToggled:   c.RemotePinToggled,
		OnSnapshotPins: c.RemoteSnapshot,
	}
}

// RemotePinToggled applies a pin change from another client and reports
// the new outputs.
func (c *Controller) RemotePinToggled(pin string, state bool) {
	var err error
	c.guard.Apply(pin, func() { err = c.bridge.ApplyPin(pin, state) })
	if err != nil {
		c.logger.Warn("Remote pin not applied", "pin", pin, "state", state, "error", err)
		return
	}
	c.reportOutputs()
}

// RemoteSnapshot applies every pin of a hub snapshot, then reports once.
func (c *Controller) RemoteSnapshot(values map[string]bool) {
	c.guard.ApplyAll(func() {
		for _, name := range pins.InputPins {
			v, ok := values[name]
			if !ok {
				continue
			}
			if err := c.bridge.ApplyPin(name, v); err != nil {
				c.logger.Warn("Snapshot pin not applied", "pin", name, "error", err)
			}
		}
	})
	c.reportOutputs()
}

// localInputChanged runs for every bridge input change. Changes made while
// the pin is suppressed came from the hub and are not sent back.
func (c *Controller) localInputChanged(pin string, state bool) {
	if c.guard.Suppressed(pin) {
		return
	}
	client := c.hub()
	if client == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()
	if err := client.SendPinToggled(ctx, pin, state); err != nil {
		c.logger.Warn("Local pin change not forwarded", "pin", pin, "error", err)
	}
	c.reportOutputs()
}

// ReportOutputs reads the bridge and sends the outputs to the hub.
func (c *Controller) ReportOutputs(ctx context.Context) error {
	client := c.hub()
	if client == nil {
		return nil
	}
	out, err := c.bridge.ReadOutputs()
	if err != nil {
		return err
	}
	return client.ReportAluOutputs(ctx, out)
}

// ReportEvery reports the outputs each interval until ctx is done, so the hub
// catches output changes that no pin toggle announced.
func (c *Controller) ReportEvery(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.reportOutputs()
		}
	}
}

func (c *Controller) reportOutputs() {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()
	if err := c.ReportOutputs(ctx); err != nil {
		c.logger.Warn("Outputs not reported", "error", err)
	}
}
