// Package session implements the Session component: one PtyHandle,
// one ReplayBuffer, and a set of attached client connections, with
// the _initializing -> _running -> _exiting -> _destroyed lifecycle.
//
// The attached-conn set and state machine are modeled on this
// lineage's mutex-guarded state container (map + ordered slice +
// RWMutex, read/write accessors); unlike that container Session adds
// the PTY-event pump that is this package's sole ReplayBuffer writer,
// per the single-logical-producer invariant.
package session

import (
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/trybotster/termcore/internal/clientconn"
	"github.com/trybotster/termcore/internal/muxerr"
	"github.com/trybotster/termcore/internal/notification"
	"github.com/trybotster/termcore/internal/protocol"
	"github.com/trybotster/termcore/internal/ptyproc"
	"github.com/trybotster/termcore/internal/replay"
	"github.com/trybotster/termcore/internal/sanitize"
)

// State is a Session's lifecycle state.
type State int

const (
	StateInitializing State = iota
	StateRunning
	StateExiting
	StateDestroyed
)

// DefaultGracePeriod is how long a session lingers in _exiting after
// broadcasting its exit frame before the registry removes it, so
// in-flight deliveries to every transport's write-pump complete. It
// is a semantic requirement (see SPEC_FULL §15), not merely a
// transport-latency nicety. SetGracePeriod overrides it for one
// session.
const DefaultGracePeriod = 100 * time.Millisecond

// Config is the spawn configuration for a new session.
type Config struct {
	Mode  string // "shell" | "agent-tool"
	Shell string
	Cwd   string
	Cols  int
	Rows  int
	Env   map[string]string
}

// RemoveFunc is invoked once, after the grace period elapses
// following PTY exit, so the owning registry can drop the session.
type RemoveFunc func(sessionID string)

// NotifyFunc receives notifications detected in sanitized PTY output
// (SPEC_FULL §11's notification tap). May be nil.
type NotifyFunc func(sessionID string, n notification.Notification)

// Session is one PtyHandle + one ReplayBuffer + a set of attached
// client connections.
type Session struct {
	id        string
	config    Config
	createdAt time.Time
	gracePeriod time.Duration

	logger *slog.Logger
	notify NotifyFunc
	remove RemoveFunc

	pty *ptyproc.Handle
	buf *replay.Buffer

	mu           sync.Mutex
	state        State
	conns        map[string]clientconn.Conn
	order        []string
	lastActivity time.Time
}

// New constructs a session in _initializing state and spawns its
// PtyHandle. On spawn failure it returns a SpawnFailureError and no
// Session; no partial session is ever registered.
func New(id string, cfg Config, bufCapacity int, logger *slog.Logger, remove RemoveFunc, notify NotifyFunc) (*Session, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Cols == 0 {
		cfg.Cols = protocol.DefaultCols
	}
	if cfg.Rows == 0 {
		cfg.Rows = protocol.DefaultRows
	}
	if !validDims(cfg.Cols, cfg.Rows) {
		return nil, muxerr.ErrInvalidDimensions
	}

	now := time.Now()
	s := &Session{
		id:           id,
		config:       cfg,
		createdAt:    now,
		gracePeriod:  DefaultGracePeriod,
		logger:       logger.With("sessionId", id),
		notify:       notify,
		remove:       remove,
		buf:          replay.New(bufCapacity),
		state:        StateInitializing,
		conns:        make(map[string]clientconn.Conn),
		lastActivity: now,
	}

	handle, err := ptyproc.Spawn(ptyproc.Config{
		Shell: cfg.Shell,
		Cwd:   cfg.Cwd,
		Cols:  uint16(cfg.Cols),
		Rows:  uint16(cfg.Rows),
		Env:   cfg.Env,
	})
	if err != nil {
		return nil, muxerr.NewSpawnFailure("pty spawn", err)
	}

	s.pty = handle
	s.setState(StateRunning)

	go s.pump()

	return s, nil
}

// ID returns the session's identifier.
func (s *Session) ID() string { return s.id }

// Pid returns the spawned child's process id.
func (s *Session) Pid() int { return s.pty.Pid() }

// State reports the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// pump is the sole consumer of the PtyHandle's event stream and the
// sole writer of the ReplayBuffer, satisfying SPEC_FULL's
// single-logical-producer invariant.
func (s *Session) pump() {
	for chunk := range s.pty.Data() {
		sanitized := sanitize.Sanitize(chunk)
		s.buf.Append(sanitized)
		s.touch()

		if s.notify != nil {
			for _, n := range notification.Detect(sanitized) {
				s.notify(s.id, n)
			}
		}

		frame := protocol.Output(s.id, string(sanitized))
		s.broadcast(frame)
	}

	ev := <-s.pty.Exit()
	s.setState(StateExiting)
	s.broadcast(protocol.Exit(s.id, ev.Code, ev.Signal))

	s.mu.Lock()
	grace := s.gracePeriod
	s.mu.Unlock()

	if grace <= 0 {
		s.destroy()
		return
	}
	time.AfterFunc(grace, s.destroy)
}

func (s *Session) destroy() {
	s.setState(StateDestroyed)
	s.buf.Clear()
	if s.remove != nil {
		s.remove(s.id)
	}
}

func (s *Session) broadcast(frame protocol.Outbound) {
	s.mu.Lock()
	conns := make([]clientconn.Conn, 0, len(s.order))
	for _, id := range s.order {
		if c, ok := s.conns[id]; ok {
			conns = append(conns, c)
		}
	}
	s.mu.Unlock()

	for _, c := range conns {
		if c.State() == clientconn.StateOpen {
			c.Send(frame)
		}
	}
}

// Attach adds conn to the attached set. Idempotent.
func (s *Session) Attach(conn clientconn.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.conns[conn.ID()]; ok {
		return
	}
	s.conns[conn.ID()] = conn
	s.order = append(s.order, conn.ID())
}

// Detach removes conn from the attached set. Idempotent.
func (s *Session) Detach(conn clientconn.Conn) {
	s.detachByID(conn.ID())
}

func (s *Session) detachByID(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.conns[id]; !ok {
		return
	}
	delete(s.conns, id)
	for i, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// Input forwards bytes to the PtyHandle. A no-op while not _running.
func (s *Session) Input(data []byte) {
	if s.State() != StateRunning {
		return
	}
	s.touch()
	_ = s.pty.Write(data)
}

func (s *Session) touch() {
	s.mu.Lock()
	s.lastActivity = time.Now()
	s.mu.Unlock()
}

// IdleFor reports how long the session has gone without PTY output or
// client input (SPEC_FULL §11's idle-timeout reaper input).
func (s *Session) IdleFor() time.Duration {
	s.mu.Lock()
	last := s.lastActivity
	s.mu.Unlock()
	return time.Since(last)
}

// Resize forwards to the PtyHandle and persists the new dimensions.
// Returns muxerr.ErrInvalidDimensions if cols/rows fall outside
// [ptyproc.MinDim, ptyproc.MaxDim]; otherwise a no-op while not
// _running.
func (s *Session) Resize(cols, rows int) error {
	if !validDims(cols, rows) {
		return muxerr.ErrInvalidDimensions
	}
	if s.State() != StateRunning {
		return nil
	}
	s.mu.Lock()
	s.config.Cols, s.config.Rows = cols, rows
	s.mu.Unlock()
	return s.pty.Resize(uint16(cols), uint16(rows))
}

// validDims reports whether cols and rows both fall within
// SPEC_FULL §3's [1, 1000] permitted range.
func validDims(cols, rows int) bool {
	return cols >= ptyproc.MinDim && cols <= ptyproc.MaxDim && rows >= ptyproc.MinDim && rows <= ptyproc.MaxDim
}

// Kill delivers a permitted signal. Returns
// muxerr.ErrPermittedSignalViolation if name is not on the permitted
// set; otherwise a no-op while not _running.
func (s *Session) Kill(signalName string) error {
	if signalName == "" {
		signalName = "SIGTERM"
	}
	if !ptyproc.IsPermittedSignal(signalName) {
		return muxerr.ErrPermittedSignalViolation
	}
	if s.State() != StateRunning {
		return nil
	}
	return s.pty.Signal(signalName)
}

// ReplaySnapshot returns the current buffered output. Valid until
// _destroyed.
func (s *Session) ReplaySnapshot() []byte {
	return s.buf.Snapshot()
}

// Replay attaches conn (even if not previously attached) and returns
// the current snapshot, per TerminalProtocol's replay handler
// contract (SPEC_FULL §4.7).
func (s *Session) Replay(conn clientconn.Conn) []byte {
	s.Attach(conn)
	return s.ReplaySnapshot()
}

// CreatedAt returns the session's creation timestamp.
func (s *Session) CreatedAt() time.Time { return s.createdAt }

// SetGracePeriod overrides this session's destroy grace period. Must
// be called before the session reaches _exiting to take effect.
func (s *Session) SetGracePeriod(d time.Duration) {
	s.mu.Lock()
	s.gracePeriod = d
	s.mu.Unlock()
}

// AttachedCount returns the number of currently attached connections.
func (s *Session) AttachedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.order)
}

// Dims returns the session's current terminal dimensions.
func (s *Session) Dims() (cols, rows int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.config.Cols, s.config.Rows
}

func (st State) String() string {
	switch st {
	case StateInitializing:
		return "initializing"
	case StateRunning:
		return "running"
	case StateExiting:
		return "exiting"
	case StateDestroyed:
		return "destroyed"
	default:
		return "unknown(" + strconv.Itoa(int(st)) + ")"
	}
}
