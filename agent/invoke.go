package agent

import (
	"context"
	"time"

	"github.com/c360/alusync/errors"
	"github.com/c360/alusync/pins"
	"github.com/c360/alusync/protocol"
)

// SendPinToggled tells the hub a pin changed locally. Echo suppression is
// the caller's concern; this always sends.
func (a *Agent) SendPinToggled(ctx context.Context, pin string, state bool) error {
	_, err := a.invoke(ctx, protocol.TypePinToggled, protocol.PinToggledPayload{Pin: pin, State: state})
	return err
}

// ReportAluOutputs sends a fresh output reading to the hub.
func (a *Agent) ReportAluOutputs(ctx context.Context, outputs pins.OutputsSnapshot) error {
	_, err := a.invoke(ctx, protocol.TypeReportAluOutputs, protocol.OutputsPayload(outputs))
	return err
}

// GetState fetches the hub's input pin map.
func (a *Agent) GetState(ctx context.Context) (map[string]bool, error) {
	env, err := a.invoke(ctx, protocol.TypeGetState, nil)
	if err != nil {
		return nil, err
	}
	st, err := protocol.DecodePayload[protocol.StatePayload](env)
	if err != nil {
		return nil, err
	}
	if st.Pins == nil {
		st.Pins = map[string]bool{}
	}
	return st.Pins, nil
}

// GetLastOutputsState fetches the hub's cached outputs, nil if none yet.
func (a *Agent) GetLastOutputsState(ctx context.Context) (*pins.OutputsSnapshot, error) {
	env, err := a.invoke(ctx, protocol.TypeGetLastOutputsState, nil)
	if err != nil {
		return nil, err
	}
	p, err := protocol.DecodePayload[*protocol.AluOutputsPayload](env)
	if err != nil || p == nil {
		return nil, err
	}
	snap := p.Snapshot()
	return &snap, nil
}

// RequestSnapshot asks the hub to push SnapshotPins and SnapshotOutputsRaw
// again without reconnecting.
func (a *Agent) RequestSnapshot(ctx context.Context) error {
	_, err := a.invoke(ctx, protocol.TypeRequestSnapshot, nil)
	return err
}

// TestClientEvent is a liveness probe; a healthy hub answers "ok".
func (a *Agent) TestClientEvent(ctx context.Context) (string, error) {
	env, err := a.invoke(ctx, protocol.TypeTestClientEvent, nil)
	if err != nil {
		return "", err
	}
	return protocol.DecodePayload[string](env)
}

// invoke connects if needed, sends the request and waits for its
// completion. Failures are logged here and returned.
func (a *Agent) invoke(ctx context.Context, typ protocol.MessageType, payload any) (protocol.Envelope, error) {
	if err := a.EnsureConnected(ctx); err != nil {
		a.metrics.invocationFailed(typ.String())
		return protocol.Envelope{}, err
	}

	s := a.session()
	if s == nil {
		a.metrics.invocationFailed(typ.String())
		err := errors.WrapTransient(errors.ErrNoConnection, "agent", typ.String(), "send request")
		a.logger.Warn("Invocation failed", "method", typ.String(), "error", err)
		return protocol.Envelope{}, err
	}

	env, err := a.callOn(ctx, s, typ, payload)
	if err != nil {
		a.metrics.invocationFailed(typ.String())
		a.logger.Warn("Invocation failed", "method", typ.String(), "error", err)
	}
	return env, err
}

// callOn sends one request on s and waits for the matching completion. A
// hub fault is returned as *protocol.Fault.
func (a *Agent) callOn(ctx context.Context, s *session, typ protocol.MessageType, payload any) (protocol.Envelope, error) {
	method := typ.String()

	req, err := protocol.NewRequest(typ, payload)
	if err != nil {
		return protocol.Envelope{}, err
	}
	data, err := protocol.Encode(req)
	if err != nil {
		return protocol.Envelope{}, err
	}

	reply := make(chan protocol.Envelope, 1)
	a.pendingMu.Lock()
	a.pending[req.ID] = reply
	a.pendingMu.Unlock()
	defer func() {
		a.pendingMu.Lock()
		delete(a.pending, req.ID)
		a.pendingMu.Unlock()
	}()

	start := time.Now()
	if err := s.write(data, a.cfg.RequestTimeout); err != nil {
		s.close()
		return protocol.Envelope{}, errors.WrapTransient(err, "agent", method, "write request")
	}

	timer := time.NewTimer(a.cfg.RequestTimeout)
	defer timer.Stop()

	select {
	case env := <-reply:
		a.metrics.observeRequest(method, time.Since(start))
		if env.Error != nil {
			return env, env.Error
		}
		return env, nil
	case <-s.done:
		return protocol.Envelope{}, errors.WrapTransient(errors.ErrConnectionLost, "agent", method, "await completion")
	case <-timer.C:
		return protocol.Envelope{}, errors.WrapTransient(errors.ErrRequestTimeout, "agent", method, "await completion")
	case <-ctx.Done():
		return protocol.Envelope{}, errors.WrapTransient(ctx.Err(), "agent", method, "await completion")
	case <-a.ctx.Done():
		return protocol.Envelope{}, errors.WrapInvalid(errors.ErrClosed, "agent", method, "await completion")
	}
}

// complete hands a completion to its waiting caller. Late completions for
// abandoned requests are dropped.
func (a *Agent) complete(env protocol.Envelope) {
	a.pendingMu.Lock()
	reply, ok := a.pending[env.ID]
	a.pendingMu.Unlock()
	if !ok {
		a.logger.Debug("Completion without pending request", "id", env.ID)
		return
	}
	select {
	case reply <- env:
	default:
	}
}
