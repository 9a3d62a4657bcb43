// Package registry implements the SessionRegistry: the single
// piece of process-wide mutable state the core exposes, keyed by
// session id.
//
// Map + ordered-id-slice + RWMutex, with WithRead/WithWrite-style
// locked access, is carried over directly from this lineage's
// SafeHubState; Session construction/signal-on-shutdown is new, the
// locking discipline and O(1)-lookup/O(n)-sweep shape is not.
package registry

import (
	"sync"
	"time"

	"github.com/trybotster/termcore/internal/clientconn"
	"github.com/trybotster/termcore/internal/muxerr"
	"github.com/trybotster/termcore/internal/session"
)

// Registry is the process-wide table of live sessions.
type Registry struct {
	mu          sync.RWMutex
	sessions    map[string]*session.Session
	order       []string
	maxSessions int // 0 means unlimited
}

// New returns an empty Registry with no session cap. Use
// SetMaxSessions to apply SPEC_FULL §11's configured limit.
func New() *Registry {
	return &Registry{sessions: make(map[string]*session.Session)}
}

// SetMaxSessions caps the number of concurrent sessions Put will
// accept. n <= 0 means unlimited.
func (r *Registry) SetMaxSessions(n int) {
	r.mu.Lock()
	r.maxSessions = n
	r.mu.Unlock()
}

// Get returns the session for id, if any.
func (r *Registry) Get(id string) (*session.Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	return s, ok
}

// Put registers s under its own id. Rejects a duplicate id with
// muxerr.DuplicateSessionError, and rejects once the registry already
// holds maxSessions live sessions with muxerr.ErrSessionLimitReached;
// either way the registry is left unchanged.
func (r *Registry) Put(s *session.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.sessions[s.ID()]; exists {
		return muxerr.NewDuplicateSession(s.ID())
	}
	if r.maxSessions > 0 && len(r.order) >= r.maxSessions {
		return muxerr.ErrSessionLimitReached
	}
	r.sessions[s.ID()] = s
	r.order = append(r.order, s.ID())
	return nil
}

// Remove drops id from the registry. Called by a session itself once
// its destroy grace period elapses; it does not tear down anything
// that isn't already torn down.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removeLocked(id)
}

func (r *Registry) removeLocked(id string) {
	if _, ok := r.sessions[id]; !ok {
		return
	}
	delete(r.sessions, id)
	for i, oid := range r.order {
		if oid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

// RemoveClient detaches conn from every session without destroying
// any of them. It iterates sessions (O(sessions)) rather than
// maintaining a separate conn->sessions index that would need its own
// invalidation. Neither transport in this module calls it on
// disconnect: the WebSocket transport only closes its conn, which then
// stays in each session's attached set and is skipped by broadcast
// because it is no longer open; the SSH transport detaches its conn
// from the one session it attached to.
func (r *Registry) RemoveClient(conn clientconn.Conn) {
	r.mu.RLock()
	snapshot := make([]*session.Session, 0, len(r.order))
	for _, id := range r.order {
		snapshot = append(snapshot, r.sessions[id])
	}
	r.mu.RUnlock()

	for _, s := range snapshot {
		s.Detach(conn)
	}
}

// Shutdown sends SIGTERM to every live session's PtyHandle and clears
// the registry. No replay is expected across process restarts.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	sessions := make([]*session.Session, 0, len(r.order))
	for _, id := range r.order {
		sessions = append(sessions, r.sessions[id])
	}
	r.sessions = make(map[string]*session.Session)
	r.order = nil
	r.mu.Unlock()

	for _, s := range sessions {
		_ = s.Kill("SIGTERM")
	}
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// ReapIdle sends SIGTERM to every running session whose IdleFor
// exceeds timeout (SPEC_FULL §11's configurable idle reaper). A
// session already exiting/destroyed is left alone; its own grace
// period and removal handle it.
func (r *Registry) ReapIdle(timeout time.Duration) {
	r.mu.RLock()
	snapshot := make([]*session.Session, 0, len(r.order))
	for _, id := range r.order {
		snapshot = append(snapshot, r.sessions[id])
	}
	r.mu.RUnlock()

	for _, s := range snapshot {
		if s.State() == session.StateRunning && s.IdleFor() >= timeout {
			_ = s.Kill("SIGTERM")
		}
	}
}
