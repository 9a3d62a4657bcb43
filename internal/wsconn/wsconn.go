// Package wsconn is the WebSocket ClientConn transport (SPEC_FULL
// §14). An http.Server upgrades each incoming connection to a
// WebSocket and wraps it in a clientconn.Base; a read-pump goroutine
// decodes inbound JSON text frames through the Router/MessageCodec
// and a write-pump goroutine drains the Base's bounded outbound
// channel onto the wire.
//
// Adapted from the teacher's tunnel.Manager message loop (reader
// goroutine feeding a buffered channel the select loop drains) but
// reshaped from client-initiated (dialing out to a Rails ActionCable
// endpoint) to server-accepting: this package is the terminal's
// server, so it upgrades and listens rather than dials.
package wsconn

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/trybotster/termcore/internal/clientconn"
	"github.com/trybotster/termcore/internal/protocol"
	"github.com/trybotster/termcore/internal/router"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// Conn is a WebSocket-backed clientconn.Conn.
type Conn struct {
	*clientconn.Base
	ws *websocket.Conn
}

// Dispatcher routes a decoded frame and its raw bytes to the
// subsystem its Router classification names.
type Dispatcher interface {
	DispatchTerminal(conn clientconn.Conn, in *protocol.Inbound)
	DispatchRaw(conn clientconn.Conn, class router.Class, raw []byte)
}

// Handler is an http.Handler that upgrades each request to a
// WebSocket and runs its read-pump/write-pump pair until the
// connection closes.
type Handler struct {
	dispatch Dispatcher
	logger   *slog.Logger
}

// NewHandler constructs a Handler that routes decoded frames to d.
func NewHandler(d Dispatcher, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{dispatch: d, logger: logger}
}

// ServeHTTP upgrades the request and blocks until the connection
// closes, running the read-pump on the calling goroutine and the
// write-pump on a second goroutine.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	id := r.RemoteAddr
	conn := &Conn{Base: clientconn.NewBase(id, 256), ws: ws}

	done := make(chan struct{})
	go h.writePump(conn, done)
	h.readPump(conn, done)
}

func (h *Handler) readPump(conn *Conn, done chan struct{}) {
	defer func() {
		conn.Close()
		conn.ws.Close()
		close(done)
	}()

	conn.ws.SetReadDeadline(time.Now().Add(pongWait))
	conn.ws.SetPongHandler(func(string) error {
		conn.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := conn.ws.ReadMessage()
		if err != nil {
			return
		}

		class := router.Classify(raw)
		switch class {
		case router.ClassTerminal:
			in, err := protocol.Decode(raw)
			if err != nil {
				h.logger.Debug("malformed terminal frame", "error", err)
				continue
			}
			h.dispatch.DispatchTerminal(conn, in)
		case router.ClassPing:
			// no-op: the pump's own ping/pong keeps the connection alive
		default:
			h.dispatch.DispatchRaw(conn, class, raw)
		}
	}
}

func (h *Handler) writePump(conn *Conn, done chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	out := conn.Outbound()
	for {
		select {
		case frame, ok := <-out:
			conn.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				conn.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			var data []byte
			if frame.Type == clientconn.RawType {
				data = []byte(frame.Data)
			} else {
				var err error
				data, err = protocol.Encode(frame)
				if err != nil {
					continue
				}
			}
			if err := conn.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			conn.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}
