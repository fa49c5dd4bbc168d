package bridge

import (
	"maps"
	"sync"

	"github.com/c360/alusync/errors"
	"github.com/c360/alusync/pins"
)

// Emulator is a software 74181. Its inputs behave like bound switches:
// every change, whether from ApplyPin or a local Toggle, runs the input hooks.
type Emulator struct {
	mu     sync.Mutex
	inputs map[string]bool
	hooks  []func(pin string, state bool)
}

// NewEmulator returns an emulator with every input low.
func NewEmulator() *Emulator {
	inputs := make(map[string]bool, len(pins.InputPins))
	for _, p := range pins.InputPins {
		inputs[p] = false
	}
	return &Emulator{inputs: inputs}
}

// OnInputChange registers a hook run after an input changes value.
func (e *Emulator) OnInputChange(fn func(pin string, state bool)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.hooks = append(e.hooks, fn)
}

// ApplyPin sets an input. Setting a pin to its current value is a no-op and
// runs no hooks.
func (e *Emulator) ApplyPin(pin string, state bool) error {
	name, ok := pins.Normalize(pin)
	if !ok {
		return errors.WrapInvalid(errors.ErrUnrecognizedPin, "Emulator", "ApplyPin", "resolve "+pin)
	}

	e.mu.Lock()
	if e.inputs[name] == state {
		e.mu.Unlock()
		return nil
	}
	e.inputs[name] = state
	hooks := append([]func(string, bool){}, e.hooks...)
	e.mu.Unlock()

	for _, fn := range hooks {
		fn(name, state)
	}
	return nil
}

// Toggle flips an input as a switch on the board would and returns its new
// value.
func (e *Emulator) Toggle(pin string) (bool, error) {
	name, ok := pins.Normalize(pin)
	if !ok {
		return false, errors.WrapInvalid(errors.ErrUnrecognizedPin, "Emulator", "Toggle", "resolve "+pin)
	}
	e.mu.Lock()
	next := !e.inputs[name]
	e.mu.Unlock()
	return next, e.ApplyPin(name, next)
}

// ReadOutputs evaluates the current inputs.
func (e *Emulator) ReadOutputs() (pins.OutputsSnapshot, error) {
	e.mu.Lock()
	in := InputsFrom(e.inputs)
	e.mu.Unlock()
	return Evaluate(in), nil
}

// Inputs returns a copy of the input pin values.
func (e *Emulator) Inputs() map[string]bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return maps.Clone(e.inputs)
}
