package bridge

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/c360/alusync/config"
	"github.com/c360/alusync/errors"
	"github.com/c360/alusync/pins"
)

// GPIOBridge drives a physical 74181: ALU inputs are wired to driven lines
// and ALU outputs to sensed lines.
type GPIOBridge struct {
	lines   LineIO
	inputs  map[string]int
	outputs map[string]int
	logger  *slog.Logger
}

// NewGPIOBridge validates the wiring and claims the lines.
func NewGPIOBridge(wiring config.GPIOConfig, lines LineIO, logger *slog.Logger) (*GPIOBridge, error) {
	if logger == nil {
		logger = slog.Default()
	}

	cfg := config.Default()
	cfg.Bridge = config.BridgeConfig{Backend: config.BackendGPIO, GPIO: wiring}
	if err := cfg.Validate(); err != nil {
		return nil, errors.WrapInvalid(err, "GPIOBridge", "New", "validate wiring")
	}

	b := &GPIOBridge{
		lines:   lines,
		inputs:  wiring.Inputs,
		outputs: wiring.Outputs,
		logger:  logger.With("component", "gpio-bridge"),
	}
	if err := lines.Setup(sortedLines(wiring.Inputs), sortedLines(wiring.Outputs)); err != nil {
		return nil, err
	}
	b.logger.Info("GPIO lines claimed", "inputs", len(wiring.Inputs), "outputs", len(wiring.Outputs))
	return b, nil
}

func sortedLines(m map[string]int) []int {
	out := make([]int, 0, len(m))
	for _, line := range m {
		out = append(out, line)
	}
	sort.Ints(out)
	return out
}

func (b *GPIOBridge) ApplyPin(pin string, state bool) error {
	name, ok := pins.Normalize(pin)
	if !ok {
		return errors.WrapInvalid(errors.ErrUnrecognizedPin, "GPIOBridge", "ApplyPin", "resolve "+pin)
	}
	line := b.inputs[name]
	if err := b.lines.Write(line, state); err != nil {
		return errors.Wrap(err, "GPIOBridge", "ApplyPin", fmt.Sprintf("write %s (line %d)", name, line))
	}
	return nil
}

func (b *GPIOBridge) ReadOutputs() (pins.OutputsSnapshot, error) {
	values := make(map[string]bool, len(pins.OutputPins))
	for _, name := range pins.OutputPins {
		line := b.outputs[name]
		v, err := b.lines.Read(line)
		if err != nil {
			return pins.OutputsSnapshot{}, errors.Wrap(err, "GPIOBridge", "ReadOutputs", fmt.Sprintf("read %s (line %d)", name, line))
		}
		values[name] = v
	}
	return pins.NewOutputsSnapshot(pins.PackOutputs(values)), nil
}

// Close releases the lines.
func (b *GPIOBridge) Close() error {
	return b.lines.Close()
}
