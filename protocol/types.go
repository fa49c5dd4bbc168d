package protocol

import (
	"fmt"
)

// MessageType identifies every message on the wire. The set is closed: a
// name that does not map to a known type decodes as TypeUnknown.
type MessageType int

const (
	TypeUnknown MessageType = iota
	TypePinToggled
	TypeReportAluOutputs
	TypeAluOutputsChanged
	TypeGetState
	TypeGetLastOutputsState
	TypeClientReady
	TypeRequestSnapshot
	TypeSnapshotPins
	TypeSnapshotOutputsRaw
	TypeTestClientEvent
	TypeCompletion
)

var typeNames = [...]string{
	TypeUnknown:             "Unknown",
	TypePinToggled:          "PinToggled",
	TypeReportAluOutputs:    "ReportAluOutputs",
	TypeAluOutputsChanged:   "AluOutputsChanged",
	TypeGetState:            "GetState",
	TypeGetLastOutputsState: "GetLastOutputsState",
	TypeClientReady:         "ClientReady",
	TypeRequestSnapshot:     "RequestSnapshot",
	TypeSnapshotPins:        "SnapshotPins",
	TypeSnapshotOutputsRaw:  "SnapshotOutputsRaw",
	TypeTestClientEvent:     "TestClientEvent",
	TypeCompletion:          "Completion",
}

var typesByName = func() map[string]MessageType {
	m := make(map[string]MessageType, len(typeNames))
	for i, n := range typeNames {
		m[n] = MessageType(i)
	}
	return m
}()

// Requests are the invocations a client sends to the hub. Each is answered
// with exactly one Completion carrying the request ID.
var Requests = []MessageType{
	TypePinToggled,
	TypeReportAluOutputs,
	TypeGetState,
	TypeGetLastOutputsState,
	TypeClientReady,
	TypeRequestSnapshot,
	TypeTestClientEvent,
}

// Pushes are the messages the hub sends to clients outside of a completion.
var Pushes = []MessageType{
	TypePinToggled,
	TypeAluOutputsChanged,
	TypeSnapshotPins,
	TypeSnapshotOutputsRaw,
}

func (t MessageType) String() string {
	if t < 0 || int(t) >= len(typeNames) {
		return fmt.Sprintf("MessageType(%d)", int(t))
	}
	return typeNames[t]
}

// ParseMessageType maps a wire name to its type.
func ParseMessageType(name string) (MessageType, bool) {
	t, ok := typesByName[name]
	if !ok || t == TypeUnknown {
		return TypeUnknown, false
	}
	return t, true
}

// MarshalText implements encoding.TextMarshaler
func (t MessageType) MarshalText() ([]byte, error) {
	if t <= TypeUnknown || int(t) >= len(typeNames) {
		return nil, fmt.Errorf("cannot encode message type %d", int(t))
	}
	return []byte(typeNames[t]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. Unknown names are not an
// error so the receiver can still answer the request with a fault.
func (t *MessageType) UnmarshalText(text []byte) error {
	*t, _ = ParseMessageType(string(text))
	return nil
}

// IsRequest reports whether t is valid as a client invocation.
func (t MessageType) IsRequest() bool {
	for _, r := range Requests {
		if r == t {
			return true
		}
	}
	return false
}

// IsPush reports whether t is valid as a hub push.
func (t MessageType) IsPush() bool {
	for _, p := range Pushes {
		if p == t {
			return true
		}
	}
	return false
}

// Table is a dispatch table keyed by message type.
type Table[H any] map[MessageType]H

// Missing returns the types in want that have no entry in the table.
func (tbl Table[H]) Missing(want []MessageType) []MessageType {
	var missing []MessageType
	for _, t := range want {
		if _, ok := tbl[t]; !ok {
			missing = append(missing, t)
		}
	}
	return missing
}
