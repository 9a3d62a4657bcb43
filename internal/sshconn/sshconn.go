// Package sshconn is the SSH ClientConn transport (SPEC_FULL §14): a
// raw PTY-stream-only attach path rather than the JSON wire protocol
// the WebSocket transport speaks. An SSH client connects as user
// "session-<id>", attaches directly to that session's byte stream,
// and its terminal window-size changes map straight onto
// Session.Resize.
//
// Adapted from the teacher's sshserver.Server (gliderlabs/ssh Accept
// loop + PtyCallback + window-size channel + bidirectional io.Copy);
// reshaped from the teacher's agent-session-by-ID lookup against its
// own AgentSession/SessionProvider interfaces to this module's
// clientconn.Conn/Session types, and from io.Copy against a
// Read()/Write() pair to the frame-draining pump Session.Attach
// already expects of a ClientConn.
package sshconn

import (
	"fmt"
	"log/slog"
	"net"
	"strings"
	"sync"

	gliderssh "github.com/gliderlabs/ssh"

	"github.com/trybotster/termcore/internal/clientconn"
	"github.com/trybotster/termcore/internal/protocol"
	"github.com/trybotster/termcore/internal/registry"
)

// userPrefix is stripped from the SSH username to get a session id:
// `ssh session-<id>@host`.
const userPrefix = "session-"

// Server accepts SSH connections and attaches each one to an
// existing multiplexer session's raw byte stream.
type Server struct {
	listener net.Listener
	registry *registry.Registry
	logger   *slog.Logger
}

// New constructs a Server that looks up sessions in reg.
func New(listener net.Listener, reg *registry.Registry, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{listener: listener, registry: reg, logger: logger}
}

// Serve accepts SSH connections until the listener closes.
func (s *Server) Serve() error {
	server := &gliderssh.Server{
		Handler: s.handleSession,
		PtyCallback: func(ctx gliderssh.Context, pty gliderssh.Pty) bool {
			return true
		},
	}
	return server.Serve(s.listener)
}

// Close shuts down the SSH listener.
func (s *Server) Close() error {
	return s.listener.Close()
}

func (s *Server) handleSession(sess gliderssh.Session) {
	user := sess.User()
	sessionID := user
	if strings.HasPrefix(user, userPrefix) {
		sessionID = user[len(userPrefix):]
	}

	session, ok := s.registry.Get(sessionID)
	if !ok {
		fmt.Fprintf(sess, "session %q not found\n", sessionID)
		sess.Exit(1)
		return
	}

	conn := &streamConn{Base: clientconn.NewBase("ssh-"+sessionID+"-"+sess.RemoteAddr().String(), 256), out: sess}
	snapshot := session.Replay(conn)
	if len(snapshot) > 0 {
		sess.Write(snapshot)
	}
	defer session.Detach(conn)

	_, winCh, isPty := sess.Pty()
	if isPty {
		go func() {
			for win := range winCh {
				session.Resize(win.Width, win.Height)
			}
		}()
	}

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		conn.pump()
	}()

	go func() {
		defer wg.Done()
		buf := make([]byte, 4096)
		for {
			n, err := sess.Read(buf)
			if n > 0 {
				session.Input(append([]byte(nil), buf[:n]...))
			}
			if err != nil {
				conn.Close()
				return
			}
		}
	}()

	wg.Wait()
}

// streamConn adapts a clientconn.Base to a raw byte sink: instead of
// forwarding wire-protocol frames, it unwraps terminal:output and
// terminal:replay-data frames to their raw Data bytes and writes
// those directly to the SSH session.
type streamConn struct {
	*clientconn.Base
	out interface{ Write([]byte) (int, error) }
}

func (c *streamConn) pump() {
	for frame := range c.Outbound() {
		switch frame.Type {
		case protocol.TypeOutput, protocol.TypeReplayData:
			if frame.Data != "" {
				c.out.Write([]byte(frame.Data))
			}
		case protocol.TypeExit:
			return
		}
	}
}
