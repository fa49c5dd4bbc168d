package hub

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/c360/alusync/errors"
	"github.com/c360/alusync/protocol"
)

// wsPeer is a WebSocket client connection. Reads and request handling run on
// readPump; all writes go through the send queue to writePump.
type wsPeer struct {
	id          string
	hub         *Hub
	conn        *websocket.Conn
	send        chan []byte
	done        chan struct{}
	closeOnce   sync.Once
	connectedAt time.Time
	logger      *slog.Logger
}

var _ Peer = (*wsPeer)(nil)

func newWSPeer(h *Hub, conn *websocket.Conn) *wsPeer {
	id := uuid.NewString()
	return &wsPeer{
		id:          id,
		hub:         h,
		conn:        conn,
		send:        make(chan []byte, h.cfg.SendQueueSize),
		done:        make(chan struct{}),
		connectedAt: time.Now(),
		logger:      h.logger.With("conn", id, "remote", conn.RemoteAddr().String()),
	}
}

func (p *wsPeer) ID() string { return p.id }

// Send queues env without blocking. A full queue closes the connection; the
// client recovers by reconnecting and handshaking again.
func (p *wsPeer) Send(env protocol.Envelope) error {
	data, err := protocol.Encode(env)
	if err != nil {
		return err
	}

	select {
	case <-p.done:
		return errors.ErrConnectionLost
	default:
	}

	select {
	case p.send <- data:
		return nil
	case <-p.done:
		return errors.ErrConnectionLost
	default:
		p.logger.Warn("Send queue full, closing connection", "queue", cap(p.send))
		p.close()
		return errors.ErrSendQueueFull
	}
}

func (p *wsPeer) close() {
	p.closeOnce.Do(func() {
		close(p.done)
		_ = p.conn.Close()
	})
}

func (p *wsPeer) readPump() {
	defer p.hub.wg.Done()
	defer func() {
		p.close()
		p.hub.Disconnect(p.id)
	}()

	cfg := p.hub.cfg
	p.conn.SetReadLimit(cfg.MaxMessageSize)
	_ = p.conn.SetReadDeadline(time.Now().Add(cfg.PongWait))
	p.conn.SetPongHandler(func(string) error {
		return p.conn.SetReadDeadline(time.Now().Add(cfg.PongWait))
	})

	var limiter *rate.Limiter
	if cfg.InboundRate > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.InboundRate), cfg.InboundBurst)
	}

	for {
		msgType, data, err := p.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				p.logger.Debug("Read failed", "error", err)
			}
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}

		env, err := protocol.Decode(data)
		if err != nil {
			p.logger.Warn("Dropping undecodable frame", "error", err, "size", len(data))
			continue
		}

		if limiter != nil && !limiter.Allow() {
			if err := p.reject(env); err != nil {
				return
			}
			continue
		}

		completion := p.hub.Invoke(p.id, env)
		if env.ID == "" {
			continue
		}
		if err := p.Send(completion); err != nil {
			return
		}
	}
}

// reject answers a frame over the rate limit without running it. Requests get
// a transient fault so the caller may retry; notifications are dropped.
func (p *wsPeer) reject(env protocol.Envelope) error {
	p.hub.metrics.limited()
	p.logger.Debug("Rate limited", "type", env.Type.String())
	if env.ID == "" {
		return nil
	}
	fault := errors.WrapTransient(errors.ErrRateLimited, "hub", env.Type.String(), "admit request")
	completion, err := protocol.NewCompletion(env.ID, nil, fault)
	if err != nil {
		return nil
	}
	return p.Send(completion)
}

func (p *wsPeer) writePump() {
	defer p.hub.wg.Done()

	cfg := p.hub.cfg
	ticker := time.NewTicker(cfg.PongWait * 9 / 10)
	defer ticker.Stop()

	for {
		select {
		case data := <-p.send:
			_ = p.conn.SetWriteDeadline(time.Now().Add(cfg.WriteWait))
			if err := p.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				p.logger.Debug("Write failed", "error", err)
				p.close()
				return
			}
		case <-ticker.C:
			_ = p.conn.SetWriteDeadline(time.Now().Add(cfg.WriteWait))
			if err := p.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				p.close()
				return
			}
		case <-p.done:
			_ = p.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			return
		}
	}
}
