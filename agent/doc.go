// Package agent is the client side of the alusync protocol.
//
// An Agent owns one logical connection to the hub. Every outbound call
// first runs EnsureConnected, which dials on demand behind a single-slot
// gate so that concurrent callers share one connect attempt. Each physical
// connection then runs the ClientReady handshake exactly once; the hub
// answers it by pushing SnapshotPins and SnapshotOutputsRaw, which is how a
// late joiner learns the current state.
//
// When the connection drops the agent waits a fixed delay and redials,
// looping until it succeeds or Close is called. MaxReconnectAttempts caps
// the loop; a value of 1 gives the historical single retry. A new
// connection gets a fresh handshake.
//
// Pushes from the hub are dispatched to Handlers on one goroutine in
// arrival order. Handlers may call the agent, for example to report
// outputs after applying a pin:
//
//	a, err := agent.New(agent.ConfigFrom(cfg.Client), agent.Handlers{
//		OnPinToggled: func(pin string, on bool) {
//			guard.Apply(pin, func() { bridge.ApplyPin(pin, on) })
//		},
//	}, agent.WithLogger(logger))
//
// Transport failures are logged and returned as transient errors; nothing in
// this package panics or exits on a lost connection.
package agent
