// Package protocol is the wire contract between the alusync hub and its
// clients: JSON envelopes over WebSocket text frames.
//
//	{"type":"PinToggled","id":"5d0c…","payload":{"pin":"A0","state":true},"timestamp":1718000000000}
//	{"type":"Completion","id":"5d0c…","timestamp":1718000000002}
//	{"type":"Completion","id":"77e1…","error":{"kind":"Invalid","message":"…"},"timestamp":…}
//	{"type":"SnapshotOutputsRaw","payload":null,"timestamp":…}
//
// Message types form a closed enum. Requests lists what a client may invoke
// and Pushes what the hub may send unprompted; dispatch tables built with
// Table can be checked against either list with Missing.
package protocol
