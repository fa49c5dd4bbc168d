// Package hub implements the authoritative alusync server.
//
// A Hub owns the input pin state, the last reported ALU outputs and the
// bounded event log. Clients connect over WebSocket and send requests as
// protocol envelopes; each request runs through Invoke, which dispatches on
// the message type, records Invoke:<method> or InvokeFail:<method>:<kind>
// in the event log, and produces the Completion sent back to the caller.
//
// Broadcast rules:
//
//   - PinToggled goes to every connection except the one that sent it.
//   - AluOutputsChanged goes to every connection, the reporter included.
//   - SnapshotPins and SnapshotOutputsRaw go only to the caller of
//     ClientReady or RequestSnapshot. Connecting alone never pushes state.
//
// Each connection has its own read and write goroutine. Requests from one
// connection are handled in arrival order on its read goroutine; outbound
// messages are queued without blocking, and a connection whose queue
// overflows is closed so that a slow client cannot stall the others.
//
// Besides the WebSocket endpoint, Handler serves /api/state, /api/outputs,
// /api/events?limit=N and /health for inspection.
package hub
