package agent

import (
	"context"
	"time"

	"github.com/c360/alusync/errors"
	"github.com/c360/alusync/pkg/retry"
	"github.com/c360/alusync/protocol"
)

// EnsureConnected makes sure the agent has a connection whose handshake has
// run. Concurrent callers share a single dial. It is cheap when already
// connected and safe to call before every outbound action.
func (a *Agent) EnsureConnected(ctx context.Context) error {
	if a.isClosed() {
		return errors.WrapInvalid(errors.ErrClosed, "agent", "EnsureConnected", "check agent")
	}
	if a.session() != nil {
		a.TryRunInitialSync(ctx)
		return nil
	}

	if err := a.acquireGate(ctx); err != nil {
		return err
	}
	defer a.releaseGate()

	// Another caller may have connected while we waited.
	if a.session() != nil {
		a.TryRunInitialSync(ctx)
		return nil
	}

	if err := a.dial(ctx, Connecting); err != nil {
		a.setState(Disconnected)
		a.metrics.connectFailed()
		a.logger.Warn("Connect to hub failed", "error", err)
		return err
	}
	a.TryRunInitialSync(ctx)
	return nil
}

func (a *Agent) acquireGate(ctx context.Context) error {
	select {
	case a.gate <- struct{}{}:
		return nil
	case <-ctx.Done():
		return errors.WrapTransient(ctx.Err(), "agent", "EnsureConnected", "wait for connect gate")
	case <-a.ctx.Done():
		return errors.WrapInvalid(errors.ErrClosed, "agent", "EnsureConnected", "wait for connect gate")
	}
}

func (a *Agent) releaseGate() { <-a.gate }

// TryRunInitialSync sends ClientReady on the current connection unless its
// handshake has already been claimed. At most one caller per connection
// wins; a failed handshake releases the claim so a later call retries.
// It reports whether this call completed the handshake.
func (a *Agent) TryRunInitialSync(ctx context.Context) bool {
	s := a.session()
	if s == nil {
		return false
	}

	for {
		claimed := a.claimedGen.Load()
		if claimed >= s.gen {
			return false
		}
		if a.claimedGen.CompareAndSwap(claimed, s.gen) {
			break
		}
	}

	_, err := a.callOn(ctx, s, protocol.TypeClientReady, protocol.ClientReadyPayload{Token: a.token})
	if err != nil {
		a.claimedGen.CompareAndSwap(s.gen, s.gen-1)
		a.logger.Warn("Readiness handshake failed", "error", err)
		return false
	}

	a.metrics.handshake()
	a.readyGen.Store(s.gen)
	a.logger.Debug("Readiness handshake complete")
	return true
}

// dial opens a connection and installs it as the current session. state is
// reported while the dial is in progress. Caller holds the gate.
func (a *Agent) dial(ctx context.Context, state ConnectionState) error {
	a.setState(state)

	conn, resp, err := a.dialer.DialContext(ctx, a.cfg.URL, a.cfg.Header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return errors.WrapTransient(err, "agent", "dial", "connect to "+a.cfg.URL)
	}

	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		_ = conn.Close()
		return errors.WrapInvalid(errors.ErrClosed, "agent", "dial", "install connection")
	}
	a.lastGen++
	s := &session{gen: a.lastGen, conn: conn, done: make(chan struct{})}
	a.current = s
	a.wg.Add(1)
	a.mu.Unlock()

	a.metrics.connected()
	a.setState(Connected)
	a.logger.Info("Connected to hub", "generation", s.gen)

	go a.readLoop(s)
	return nil
}

// lost is called by the read loop when its connection ends. When s is
// still current, the agent drops it and starts reconnecting.
func (a *Agent) lost(s *session, cause error) {
	s.close()

	a.mu.Lock()
	if a.current != s {
		a.mu.Unlock()
		return
	}
	a.current = nil
	closed := a.closed
	a.mu.Unlock()

	if closed {
		return
	}

	a.logger.Warn("Connection to hub lost", "generation", s.gen, "error", cause)
	a.setState(Reconnecting)
	a.startReconnect()
}

func (a *Agent) startReconnect() {
	if !a.reconnecting.CompareAndSwap(false, true) {
		return
	}

	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		a.reconnecting.Store(false)
		return
	}
	a.wg.Add(1)
	a.mu.Unlock()

	go a.reconnectLoop()
}

// reconnectLoop waits the back-off delay and redials until it succeeds, the
// attempt limit is reached or the agent is closed. On success the new
// connection runs its own handshake.
//
// The reconnecting flag is cleared before the handshake, so a connection
// lost while ClientReady is in flight starts a fresh loop.
func (a *Agent) reconnectLoop() {
	defer a.wg.Done()

	connected := a.redial()
	a.reconnecting.Store(false)
	if !connected {
		return
	}

	if a.session() == nil {
		// Lost again before the flag cleared.
		a.startReconnect()
		return
	}
	a.TryRunInitialSync(a.ctx)
}

// redial reports whether a connection is installed when it returns.
func (a *Agent) redial() bool {
	timer := time.NewTimer(a.cfg.ReconnectDelay)
	select {
	case <-a.ctx.Done():
		timer.Stop()
		return false
	case <-timer.C:
	}

	cfg := retry.Fixed(a.cfg.ReconnectDelay, a.cfg.MaxReconnectAttempts)
	cfg.OnRetry = func(attempt int, err error, delay time.Duration) {
		a.logger.Info("Reconnect attempt failed", "attempt", attempt, "retry_in", delay, "error", err)
	}

	err := retry.Do(a.ctx, cfg, func() error {
		if err := a.acquireGate(a.ctx); err != nil {
			return retry.NonRetryable(err)
		}
		defer a.releaseGate()

		if a.session() != nil {
			return nil
		}
		a.metrics.reconnectAttempt()
		return a.dial(a.ctx, Reconnecting)
	})
	if err != nil {
		if a.ctx.Err() == nil {
			a.setState(Disconnected)
			a.logger.Warn("Reconnect abandoned, next outbound call will retry", "error", err)
		}
		return false
	}
	return true
}
