package hub

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/c360/alusync/errors"
	"github.com/c360/alusync/protocol"
)

const defaultEventLimit = 100

// Handler returns the hub's HTTP surface: the WebSocket endpoint at the
// configured path plus read-only inspection endpoints.
func (h *Hub) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(h.cfg.Path, h.handleWebSocket)
	mux.HandleFunc("/api/state", h.handleState)
	mux.HandleFunc("/api/outputs", h.handleOutputs)
	mux.HandleFunc("/api/events", h.handleEvents)
	mux.Handle("/health", h.health)
	return mux
}

// Start listens on the configured address and serves until Stop.
func (h *Hub) Start(ctx context.Context) error {
	h.lifecycleMu.Lock()
	defer h.lifecycleMu.Unlock()

	if h.running {
		return errors.WrapInvalid(errors.ErrAlreadyStarted, "hub", "Start", "check running state")
	}
	if err := ctx.Err(); err != nil {
		return errors.Wrap(err, "hub", "Start", "context check")
	}

	ln, err := net.Listen("tcp", h.cfg.Listen)
	if err != nil {
		return errors.WrapFatal(err, "hub", "Start", "listen on "+h.cfg.Listen)
	}

	h.listener = ln
	h.shutdown = make(chan struct{})
	h.server = &http.Server{
		Handler:           h.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	h.running = true

	server := h.server
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		if err := server.Serve(ln); err != nil && err != http.ErrServerClosed {
			h.logger.Error("Hub server failed", "error", err)
			h.health.UpdateUnhealthy(serviceName, "server failed")
		}
	}()

	h.health.UpdateHealthy(serviceName, "listening")
	h.logger.Info("Hub listening", "addr", ln.Addr().String(), "path", h.cfg.Path)
	return nil
}

// Addr returns the bound listen address, or "" when not running.
func (h *Hub) Addr() string {
	h.lifecycleMu.Lock()
	defer h.lifecycleMu.Unlock()
	if h.listener == nil {
		return ""
	}
	return h.listener.Addr().String()
}

// Stop closes the listener and every client connection, then waits up to
// timeout for connection goroutines to exit.
func (h *Hub) Stop(timeout time.Duration) error {
	h.lifecycleMu.Lock()
	defer h.lifecycleMu.Unlock()

	if !h.running {
		return nil
	}
	h.running = false
	close(h.shutdown)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := h.server.Shutdown(ctx); err != nil {
		h.logger.Warn("HTTP server shutdown error", "error", err)
	}

	h.CloseConnections()

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	var err error
	select {
	case <-done:
	case <-time.After(timeout):
		err = errors.WrapTransient(errors.ErrConnectionTimeout, "hub", "Stop", "wait for connections")
	}

	h.server = nil
	h.listener = nil
	h.health.UpdateUnhealthy(serviceName, "stopped")
	h.logger.Info("Hub stopped")
	return err
}

func (h *Hub) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		h.logger.Debug("WebSocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	select {
	case <-h.shutdown:
		_ = conn.Close()
		return
	default:
	}

	p := newWSPeer(h, conn)
	h.Connect(p)

	h.wg.Add(2)
	go p.writePump()
	go p.readPump()
}

// CloseConnections closes every WebSocket connection. Clients see a closed
// transport and reconnect.
func (h *Hub) CloseConnections() {
	h.peersMu.RLock()
	defer h.peersMu.RUnlock()
	for _, p := range h.peers {
		if wp, ok := p.(*wsPeer); ok {
			wp.close()
		}
	}
}

func (h *Hub) handleState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	h.writeJSON(w, h.GetState())
}

func (h *Hub) handleOutputs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var body *protocol.AluOutputsPayload
	if o := h.GetLastOutputsState(); o != nil {
		p := protocol.OutputsPayload(*o)
		body = &p
	}
	h.writeJSON(w, body)
}

func (h *Hub) handleEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	limit := defaultEventLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = n
	}

	h.writeJSON(w, map[string]any{
		"count":    h.events.Count(),
		"capacity": h.events.Capacity(),
		"evicted":  h.events.Evicted(),
		"events":   h.events.Recent(limit),
	})
}

func (h *Hub) writeJSON(w http.ResponseWriter, v any) {
	// Buffer JSON encoding to catch errors before writing response
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		h.logger.Error("Failed to encode response", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if _, err := w.Write(buf.Bytes()); err != nil {
		h.logger.Debug("Failed to write response", "error", err)
	}
}
