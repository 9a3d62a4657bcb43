// Package terminal is the TerminalProtocol component: it maps each
// decoded inbound terminal frame to exactly one Session operation and
// supplies the ReplayBuffer capacity for the sessions it spawns. The
// shell allow-list and the default dimensions are applied below it,
// by session.New and ptyproc.Spawn.
package terminal

import (
	"log/slog"

	"github.com/trybotster/termcore/internal/clientconn"
	"github.com/trybotster/termcore/internal/muxerr"
	"github.com/trybotster/termcore/internal/notification"
	"github.com/trybotster/termcore/internal/protocol"
	"github.com/trybotster/termcore/internal/registry"
	"github.com/trybotster/termcore/internal/session"
)

// Handler dispatches classified terminal frames to Session
// operations via a shared Registry.
type Handler struct {
	registry    *registry.Registry
	bufCapacity int
	logger      *slog.Logger
	notify      session.NotifyFunc
}

// New constructs a Handler bound to reg. bufCapacity is the default
// ReplayBuffer capacity for sessions this handler spawns.
func New(reg *registry.Registry, bufCapacity int, logger *slog.Logger, notify session.NotifyFunc) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{registry: reg, bufCapacity: bufCapacity, logger: logger, notify: notify}
}

// Handle dispatches a decoded inbound terminal frame from conn,
// sending any resulting outbound frame(s) back to conn and/or
// broadcasting to a session's attached set. It never panics on a
// malformed or out-of-sequence frame; errors become outbound
// terminal:error frames per SPEC_FULL §7.
func (h *Handler) Handle(conn clientconn.Conn, in *protocol.Inbound) {
	switch in.Type {
	case protocol.TypeSpawn:
		h.handleSpawn(conn, in)
	case protocol.TypeInput:
		h.withSession(conn, in.SessionID, func(s *session.Session) {
			s.Input([]byte(in.Data))
		})
	case protocol.TypeResize:
		h.withSession(conn, in.SessionID, func(s *session.Session) {
			if err := s.Resize(in.Cols, in.Rows); err != nil {
				conn.Send(protocol.Error(in.SessionID, err.Error()))
			}
		})
	case protocol.TypeKill:
		h.withSession(conn, in.SessionID, func(s *session.Session) {
			if err := s.Kill(in.Signal); err == muxerr.ErrPermittedSignalViolation {
				conn.Send(protocol.Error(in.SessionID, err.Error()))
			}
		})
	case protocol.TypeReplay:
		h.withSession(conn, in.SessionID, func(s *session.Session) {
			data := s.Replay(conn)
			if len(data) > 0 {
				conn.Send(protocol.ReplayData(in.SessionID, string(data)))
			}
		})
	}
}

// withSession looks up sessionID and invokes fn, or emits
// muxerr.ErrUnknownSession as an outbound terminal:error frame.
func (h *Handler) withSession(conn clientconn.Conn, sessionID string, fn func(*session.Session)) {
	s, ok := h.registry.Get(sessionID)
	if !ok {
		conn.Send(protocol.Error(sessionID, muxerr.ErrUnknownSession.Error()))
		return
	}
	fn(s)
}

func (h *Handler) handleSpawn(conn clientconn.Conn, in *protocol.Inbound) {
	if _, exists := h.registry.Get(in.SessionID); exists {
		conn.Send(protocol.Error(in.SessionID, muxerr.NewDuplicateSession(in.SessionID).Error()))
		return
	}

	cfg := session.Config{Mode: in.Mode}
	if in.Config != nil {
		cfg.Shell = in.Config.Shell
		cfg.Cwd = in.Config.Cwd
		cfg.Cols = in.Config.Cols
		cfg.Rows = in.Config.Rows
		cfg.Env = in.Config.Env
	}

	notifyFn := func(id string, n notification.Notification) {
		if h.notify != nil {
			h.notify(id, n)
		}
	}

	s, err := session.New(in.SessionID, cfg, h.bufCapacity, h.logger, h.registry.Remove, notifyFn)
	if err != nil {
		conn.Send(protocol.Error(in.SessionID, err.Error()))
		return
	}

	if putErr := h.registry.Put(s); putErr != nil {
		// Lost a race against a concurrent spawn of the same id; tear
		// down the PTY we just started rather than leaking it.
		_ = s.Kill("SIGKILL")
		conn.Send(protocol.Error(in.SessionID, putErr.Error()))
		return
	}

	s.Attach(conn)
	conn.Send(protocol.Spawned(in.SessionID, s.Pid()))
}
