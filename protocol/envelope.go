package protocol

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/c360/alusync/errors"
)

// Envelope is one WebSocket text frame.
//
// Requests carry an ID; the hub answers each with a Completion carrying the
// same ID and either Payload (the result) or Error. Pushes carry no ID.
type Envelope struct {
	Type      MessageType     `json:"type"`
	ID        string          `json:"id,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Error     *Fault          `json:"error,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

// Fault is a failed invocation as seen by the caller.
type Fault struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func (f *Fault) Error() string {
	return fmt.Sprintf("%s: %s", f.Kind, f.Message)
}

// FaultFrom converts an operation error into its wire form.
func FaultFrom(err error) *Fault {
	if err == nil {
		return nil
	}
	return &Fault{Kind: errors.KindName(err), Message: err.Error()}
}

func now() int64 { return time.Now().UnixMilli() }

func marshalPayload(v any) (json.RawMessage, error) {
	if v == nil {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, errors.WrapInvalid(err, "protocol", "marshalPayload", "encode payload")
	}
	return data, nil
}

// NewRequest builds a request envelope with a fresh correlation ID.
func NewRequest(t MessageType, payload any) (Envelope, error) {
	if !t.IsRequest() {
		return Envelope{}, errors.WrapInvalid(errors.ErrUnknownMessage, "protocol", "NewRequest", t.String())
	}
	data, err := marshalPayload(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Type: t, ID: uuid.NewString(), Payload: data, Timestamp: now()}, nil
}

// NewPush builds a hub push envelope.
func NewPush(t MessageType, payload any) (Envelope, error) {
	if !t.IsPush() {
		return Envelope{}, errors.WrapInvalid(errors.ErrUnknownMessage, "protocol", "NewPush", t.String())
	}
	data, err := marshalPayload(payload)
	if err != nil {
		return Envelope{}, err
	}
	if data == nil {
		data = json.RawMessage("null")
	}
	return Envelope{Type: t, Payload: data, Timestamp: now()}, nil
}

// NewCompletion answers the request with the given ID. A non-nil opErr
// becomes the Fault and result is ignored.
func NewCompletion(id string, result any, opErr error) (Envelope, error) {
	env := Envelope{Type: TypeCompletion, ID: id, Timestamp: now()}
	if opErr != nil {
		env.Error = FaultFrom(opErr)
		return env, nil
	}
	data, err := marshalPayload(result)
	if err != nil {
		return Envelope{}, err
	}
	env.Payload = data
	return env, nil
}

// Encode renders the envelope as JSON.
func Encode(env Envelope) ([]byte, error) {
	data, err := json.Marshal(env)
	if err != nil {
		return nil, errors.WrapInvalid(err, "protocol", "Encode", "encode envelope")
	}
	return data, nil
}

// Decode parses one frame.
func Decode(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, errors.WrapInvalid(fmt.Errorf("%w: %v", errors.ErrParsingFailed, err),
			"protocol", "Decode", "decode envelope")
	}
	return env, nil
}

// DecodePayload unmarshals the envelope payload into T. A missing payload
// yields the zero value.
func DecodePayload[T any](env Envelope) (T, error) {
	var v T
	if len(env.Payload) == 0 {
		return v, nil
	}
	if err := json.Unmarshal(env.Payload, &v); err != nil {
		return v, errors.WrapInvalid(fmt.Errorf("%w: %v", errors.ErrInvalidData, err),
			"protocol", "DecodePayload", "decode "+env.Type.String()+" payload")
	}
	return v, nil
}
