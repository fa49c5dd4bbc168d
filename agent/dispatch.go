package agent

import (
	"sync"

	"github.com/gorilla/websocket"

	"github.com/c360/alusync/errors"
	"github.com/c360/alusync/protocol"
)

// queue is an unbounded FIFO of inbound pushes. The read loop never blocks
// on it, so completions keep flowing while a handler is busy calling back
// into the agent.
type queue struct {
	mu     sync.Mutex
	items  []protocol.Envelope
	notify chan struct{}
	closed bool
}

func newQueue() *queue {
	return &queue{notify: make(chan struct{}, 1)}
}

func (q *queue) push(env protocol.Envelope) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.items = append(q.items, env)
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// drain removes and returns every queued item. ok is false once the queue
// is closed and empty.
func (q *queue) drain() (items []protocol.Envelope, ok bool) {
	for {
		q.mu.Lock()
		items, q.items = q.items, nil
		closed := q.closed
		q.mu.Unlock()

		if len(items) > 0 {
			return items, true
		}
		if closed {
			return nil, false
		}
		<-q.notify
	}
}

func (q *queue) close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// dispatchTable routes every hub push to its consumer callback.
func dispatchTable(h Handlers) protocol.Table[func(protocol.Envelope) error] {
	return protocol.Table[func(protocol.Envelope) error]{
		protocol.TypePinToggled: func(env protocol.Envelope) error {
			p, err := protocol.DecodePayload[protocol.PinToggledPayload](env)
			if err != nil {
				return err
			}
			if h.OnPinToggled != nil {
				h.OnPinToggled(p.Pin, p.State)
			}
			return nil
		},
		protocol.TypeAluOutputsChanged: func(env protocol.Envelope) error {
			p, err := protocol.DecodePayload[protocol.AluOutputsPayload](env)
			if err != nil {
				return err
			}
			if h.OnAluOutputsChanged != nil {
				h.OnAluOutputsChanged(p.Snapshot())
			}
			return nil
		},
		protocol.TypeSnapshotPins: func(env protocol.Envelope) error {
			p, err := protocol.DecodePayload[protocol.SnapshotPinsPayload](env)
			if err != nil {
				return err
			}
			if h.OnSnapshotPins != nil {
				if p == nil {
					p = protocol.SnapshotPinsPayload{}
				}
				h.OnSnapshotPins(p)
			}
			return nil
		},
		protocol.TypeSnapshotOutputsRaw: func(env protocol.Envelope) error {
			p, err := protocol.DecodePayload[protocol.SnapshotOutputsRawPayload](env)
			if err != nil {
				return err
			}
			if h.OnSnapshotOutputsRaw != nil {
				h.OnSnapshotOutputsRaw(p)
			}
			return nil
		},
	}
}

// readLoop reads frames from s until it fails. Completions go straight to
// their callers; pushes are queued for the dispatch loop in arrival order.
func (a *Agent) readLoop(s *session) {
	defer a.wg.Done()

	var cause error
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			cause = err
			break
		}

		env, err := protocol.Decode(data)
		if err != nil {
			a.logger.Warn("Dropping undecodable frame", "error", err)
			continue
		}

		switch {
		case env.Type == protocol.TypeCompletion:
			a.complete(env)
		case env.Type.IsPush():
			a.metrics.received(env.Type.String())
			a.inbox.push(env)
		default:
			a.logger.Warn("Unexpected message from hub", "type", env.Type.String())
		}
	}

	if websocket.IsCloseError(cause, websocket.CloseNormalClosure) {
		cause = errors.ErrConnectionLost
	}
	a.lost(s, cause)
}

func (a *Agent) dispatchLoop() {
	defer a.wg.Done()
	for {
		items, ok := a.inbox.drain()
		if !ok {
			return
		}
		for _, env := range items {
			a.handle(env)
		}
	}
}

func (a *Agent) handle(env protocol.Envelope) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("Push handler panicked", "type", env.Type.String(), "panic", r)
		}
	}()

	fn, ok := a.dispatch[env.Type]
	if !ok {
		return
	}
	if err := fn(env); err != nil {
		a.logger.Warn("Push handling failed", "type", env.Type.String(), "error", err)
	}
}
