// Package bridge connects a 74181 ALU, real or emulated, to the hub.
//
// A Bridge drives the ALU input pins and reads back the output byte. The
// Controller applies remote pin changes to the Bridge under an echo guard,
// reports the resulting outputs, and forwards input changes that originate
// at the bridge itself.
package bridge

import (
	"github.com/c360/alusync/pins"
)

// Bridge is the hardware contract.
type Bridge interface {
	// ApplyPin drives one input pin. Names are matched case-insensitively;
	// anything outside pins.InputPins is an invalid error.
	ApplyPin(pin string, state bool) error
	// ReadOutputs samples all eight output pins.
	ReadOutputs() (pins.OutputsSnapshot, error)
}

// InputNotifier is implemented by bridges whose inputs can change locally,
// for example a front panel switch. Hooks run synchronously on the goroutine
// that changed the input, including ApplyPin callers.
type InputNotifier interface {
	OnInputChange(fn func(pin string, state bool))
}
