package hub

import (
	"fmt"

	"github.com/c360/alusync/errors"
	"github.com/c360/alusync/eventlog"
	"github.com/c360/alusync/protocol"
)

// handlerFunc runs one request for the caller and returns its result.
type handlerFunc func(callerID string, env protocol.Envelope) (any, error)

func (h *Hub) dispatchTable() protocol.Table[handlerFunc] {
	return protocol.Table[handlerFunc]{
		protocol.TypePinToggled: func(callerID string, env protocol.Envelope) (any, error) {
			p, err := protocol.DecodePayload[protocol.PinToggledPayload](env)
			if err != nil {
				return nil, err
			}
			return nil, h.PinToggled(callerID, p.Pin, p.State)
		},
		protocol.TypeReportAluOutputs: func(callerID string, env protocol.Envelope) (any, error) {
			p, err := protocol.DecodePayload[protocol.AluOutputsPayload](env)
			if err != nil {
				return nil, err
			}
			return nil, h.ReportAluOutputs(callerID, p)
		},
		protocol.TypeGetState: func(string, protocol.Envelope) (any, error) {
			return protocol.StatePayload{Pins: h.GetState().Pins}, nil
		},
		protocol.TypeGetLastOutputsState: func(string, protocol.Envelope) (any, error) {
			o := h.GetLastOutputsState()
			if o == nil {
				return nil, nil
			}
			p := protocol.OutputsPayload(*o)
			return &p, nil
		},
		protocol.TypeClientReady: func(callerID string, env protocol.Envelope) (any, error) {
			p, err := protocol.DecodePayload[protocol.ClientReadyPayload](env)
			if err != nil {
				return nil, err
			}
			return nil, h.ClientReady(callerID, p.Token)
		},
		protocol.TypeRequestSnapshot: func(callerID string, _ protocol.Envelope) (any, error) {
			return nil, h.RequestSnapshot(callerID)
		},
		protocol.TypeTestClientEvent: func(string, protocol.Envelope) (any, error) {
			return h.TestClientEvent(), nil
		},
	}
}

// Invoke runs one inbound request through the invocation-logging decorator
// and returns the completion for it. Success records Invoke:<method>; any
// failure, including a panic, records InvokeFail:<method>:<kind> and is
// returned to the caller as a fault.
func (h *Hub) Invoke(callerID string, env protocol.Envelope) protocol.Envelope {
	method := env.Type.String()
	h.metrics.received(method)

	result, err := h.call(callerID, env)
	if err != nil {
		kind := errors.KindName(err)
		h.events.Record(callerID, eventlog.InvokeFailLabel(method, kind), false)
		h.metrics.failed(method, kind)
		h.logger.Warn("Invocation failed", "conn", callerID, "method", method, "kind", kind, "error", err)
	} else {
		h.events.Record(callerID, eventlog.InvokeLabel(method), true)
	}

	completion, encErr := protocol.NewCompletion(env.ID, result, err)
	if encErr != nil {
		h.logger.Error("Encode completion failed", "conn", callerID, "method", method, "error", encErr)
		completion, _ = protocol.NewCompletion(env.ID, nil, encErr)
	}
	return completion
}

func (h *Hub) call(callerID string, env protocol.Envelope) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = &errors.PanicError{Value: r}
		}
	}()

	fn, ok := h.handlers[env.Type]
	if !ok {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: %s", errors.ErrUnknownMessage, env.Type),
			"hub", "Invoke", "dispatch")
	}
	return fn(callerID, env)
}
