package protocol

import (
	"github.com/c360/alusync/pins"
)

// PinToggledPayload is both the PinToggled request and its broadcast.
type PinToggledPayload struct {
	Pin   string `json:"pin"`
	State bool   `json:"state"`
}

// AluOutputsPayload is the ReportAluOutputs request, the AluOutputsChanged
// broadcast and the GetLastOutputsState result.
type AluOutputsPayload struct {
	Raw    uint8  `json:"raw"`
	Binary string `json:"binary"`
	Hex    string `json:"hex"`
}

// OutputsPayload converts a snapshot into its wire form.
func OutputsPayload(s pins.OutputsSnapshot) AluOutputsPayload {
	return AluOutputsPayload{Raw: s.Raw, Binary: s.Binary, Hex: s.Hex}
}

// Snapshot rebuilds a consistent snapshot from Raw.
func (p AluOutputsPayload) Snapshot() pins.OutputsSnapshot {
	return pins.NewOutputsSnapshot(p.Raw)
}

// ClientReadyPayload carries the agent's readiness token.
type ClientReadyPayload struct {
	Token string `json:"token"`
}

// StatePayload is the GetState result.
type StatePayload struct {
	Pins map[string]bool `json:"pins"`
}

// SnapshotPinsPayload is the full input pin map pushed after a handshake.
type SnapshotPinsPayload map[string]bool

// SnapshotOutputsRawPayload is the last output byte, or null before the first
// report.
type SnapshotOutputsRawPayload *uint8

// TestClientEventResult is the liveness probe answer.
const TestClientEventResult = "ok"
