// Package panel is a headless front panel: the input switches and output
// lamps of a UI client, synchronised through the hub.
//
// Every input change, local or remote, runs the OnChange hooks the way a
// widget binding would. Local changes are forwarded to the hub; changes
// applied from hub pushes run under the echo guard and are not.
package panel

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"strings"
	"sync"
	"time"

	"github.com/c360/alusync/agent"
	"github.com/c360/alusync/echoguard"
	"github.com/c360/alusync/errors"
	"github.com/c360/alusync/pins"
)

// Client is the part of the agent the panel uses.
type Client interface {
	SendPinToggled(ctx context.Context, pin string, state bool) error
	RequestSnapshot(ctx context.Context) error
}

// Panel holds the displayed pin values.
type Panel struct {
	guard   *echoguard.Guard
	logger  *slog.Logger
	timeout time.Duration

	mu      sync.Mutex
	client  Client
	inputs  map[string]bool
	outputs *pins.OutputsSnapshot
	onInput []func(pin string, state bool)
	onOut   []func(pins.OutputsSnapshot)
}

// Option configures a Panel.
type Option func(*Panel)

// WithGuard shares a guard with other consumers in the same process.
func WithGuard(g *echoguard.Guard) Option {
	return func(p *Panel) { p.guard = g }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Panel) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// New returns a panel with every input off and no outputs shown.
func New(opts ...Option) *Panel {
	p := &Panel{
		logger:  slog.Default(),
		timeout: 5 * time.Second,
		inputs:  make(map[string]bool, len(pins.InputPins)),
	}
	for _, name := range pins.InputPins {
		p.inputs[name] = false
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.guard == nil {
		p.guard = echoguard.New()
	}
	p.logger = p.logger.With("component", "panel")
	return p
}

// Attach sets the hub client.
func (p *Panel) Attach(c Client) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.client = c
}

// Guard returns the panel's echo guard.
func (p *Panel) Guard() *echoguard.Guard { return p.guard }

// OnChange registers a hook run after an input changes.
func (p *Panel) OnChange(fn func(pin string, state bool)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onInput = append(p.onInput, fn)
}

// OnOutputs registers a hook run when new outputs arrive.
func (p *Panel) OnOutputs(fn func(pins.OutputsSnapshot)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onOut = append(p.onOut, fn)
}

// Set changes an input and, unless the pin is suppressed, forwards the
// change. Setting a pin to its current value does nothing.
func (p *Panel) Set(ctx context.Context, pin string, state bool) error {
	name, ok := pins.Normalize(pin)
	if !ok {
		return errors.WrapInvalid(errors.ErrUnrecognizedPin, "Panel", "Set", "resolve "+pin)
	}

	p.mu.Lock()
	if p.inputs[name] == state {
		p.mu.Unlock()
		return nil
	}
	p.inputs[name] = state
	hooks := append([]func(string, bool){}, p.onInput...)
	client := p.client
	p.mu.Unlock()

	for _, fn := range hooks {
		fn(name, state)
	}

	if p.guard.Suppressed(name) || client == nil {
		return nil
	}
	return client.SendPinToggled(ctx, name, state)
}

// Toggle flips an input.
func (p *Panel) Toggle(ctx context.Context, pin string) error {
	name, ok := pins.Normalize(pin)
	if !ok {
		return errors.WrapInvalid(errors.ErrUnrecognizedPin, "Panel", "Toggle", "resolve "+pin)
	}
	p.mu.Lock()
	next := !p.inputs[name]
	p.mu.Unlock()
	return p.Set(ctx, name, next)
}

// Sync asks the hub to push its state again.
func (p *Panel) Sync(ctx context.Context) error {
	p.mu.Lock()
	client := p.client
	p.mu.Unlock()
	if client == nil {
		return errors.WrapTransient(errors.ErrNoConnection, "Panel", "Sync", "request snapshot")
	}
	return client.RequestSnapshot(ctx)
}

// Input returns one input value.
func (p *Panel) Input(pin string) (bool, bool) {
	name, ok := pins.Normalize(pin)
	if !ok {
		return false, false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.inputs[name], true
}

// Inputs returns a copy of all input values.
func (p *Panel) Inputs() map[string]bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return maps.Clone(p.inputs)
}

// Outputs returns the last outputs shown, if any.
func (p *Panel) Outputs() (pins.OutputsSnapshot, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.outputs == nil {
		return pins.OutputsSnapshot{}, false
	}
	return *p.outputs, true
}

// Handlers returns the agent callbacks that keep the panel in step.
func (p *Panel) Handlers() agent.Handlers {
	return agent.Handlers{
		OnPinToggled:         p.remotePin,
		OnAluOutputsChanged:  p.showOutputs,
		OnSnapshotPins:       p.remoteSnapshot,
		OnSnapshotOutputsRaw: p.remoteOutputsRaw,
	}
}

func (p *Panel) remotePin(pin string, state bool) {
	p.guard.Apply(pin, func() { p.applyRemote(pin, state) })
}

func (p *Panel) remoteSnapshot(values map[string]bool) {
	p.guard.ApplyAll(func() {
		for _, name := range pins.InputPins {
			if v, ok := values[name]; ok {
				p.applyRemote(name, v)
			}
		}
	})
}

func (p *Panel) applyRemote(pin string, state bool) {
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()
	if err := p.Set(ctx, pin, state); err != nil {
		p.logger.Debug("Remote pin change ignored", "pin", pin, "error", err)
	}
}

func (p *Panel) remoteOutputsRaw(raw *uint8) {
	if raw == nil {
		return
	}
	p.showOutputs(pins.NewOutputsSnapshot(*raw))
}

func (p *Panel) showOutputs(o pins.OutputsSnapshot) {
	p.mu.Lock()
	p.outputs = &o
	hooks := append([]func(pins.OutputsSnapshot){}, p.onOut...)
	p.mu.Unlock()

	for _, fn := range hooks {
		fn(o)
	}
}

// Render draws the panel as text.
func (p *Panel) Render() string {
	in := p.Inputs()
	out, ok := p.Outputs()

	var b strings.Builder
	row := func(label string, names []string, value func(string) bool) {
		fmt.Fprintf(&b, "%-8s", label)
		for _, n := range names {
			mark := "0"
			if value(n) {
				mark = "1"
			}
			fmt.Fprintf(&b, " %s=%s", n, mark)
		}
		b.WriteByte('\n')
	}
	row("A", pins.InputPins[0:4], func(n string) bool { return in[n] })
	row("B", pins.InputPins[4:8], func(n string) bool { return in[n] })
	row("S", pins.InputPins[8:12], func(n string) bool { return in[n] })
	row("control", pins.InputPins[12:], func(n string) bool { return in[n] })
	if ok {
		row("outputs", pins.OutputPins, out.Bit)
		fmt.Fprintf(&b, "%-8s %s\n", "raw", out)
	} else {
		fmt.Fprintf(&b, "%-8s (none yet)\n", "outputs")
	}
	return b.String()
}
