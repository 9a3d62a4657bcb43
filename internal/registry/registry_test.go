package registry

import (
	"testing"
	"time"

	"github.com/trybotster/termcore/internal/clientconn"
	"github.com/trybotster/termcore/internal/muxerr"
	"github.com/trybotster/termcore/internal/session"
)

func newSession(t *testing.T, id string, r *Registry) *session.Session {
	t.Helper()
	s, err := session.New(id, session.Config{Mode: "shell", Shell: "/bin/sh"}, 65536, nil, r.Remove, nil)
	if err != nil {
		t.Fatalf("session.New: %v", err)
	}
	return s
}

func TestPutGetRemove(t *testing.T) {
	r := New()
	s := newSession(t, "a", r)
	if err := r.Put(s); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if got, ok := r.Get("a"); !ok || got != s {
		t.Fatalf("Get did not return the registered session")
	}
	if r.Len() != 1 {
		t.Fatalf("Len = %d, want 1", r.Len())
	}

	s.Kill("SIGKILL")
}

func TestPutDuplicateRejected(t *testing.T) {
	r := New()
	s1 := newSession(t, "a", r)
	s2 := newSession(t, "a", r)
	defer s1.Kill("SIGKILL")
	defer s2.Kill("SIGKILL")

	if err := r.Put(s1); err != nil {
		t.Fatalf("first Put: %v", err)
	}
	if err := r.Put(s2); err == nil {
		t.Fatal("expected duplicate session id to be rejected")
	}
	if r.Len() != 1 {
		t.Fatalf("Len = %d, want 1 after rejected duplicate", r.Len())
	}
}

func TestRemoveClientDetachesFromAllSessions(t *testing.T) {
	r := New()
	s1 := newSession(t, "a", r)
	s2 := newSession(t, "b", r)
	r.Put(s1)
	r.Put(s2)
	defer s1.Kill("SIGKILL")
	defer s2.Kill("SIGKILL")

	conn := clientconn.NewBase("c1", 4)
	s1.Attach(conn)
	s2.Attach(conn)

	r.RemoveClient(conn)

	if n1, n2 := s1.AttachedCount(), s2.AttachedCount(); n1 != 0 || n2 != 0 {
		t.Fatalf("expected conn detached from both sessions, got %d/%d", n1, n2)
	}
}

func TestPutRejectsOverMaxSessions(t *testing.T) {
	r := New()
	r.SetMaxSessions(1)
	s1 := newSession(t, "a", r)
	s2 := newSession(t, "b", r)
	defer s1.Kill("SIGKILL")
	defer s2.Kill("SIGKILL")

	if err := r.Put(s1); err != nil {
		t.Fatalf("first Put: %v", err)
	}
	if err := r.Put(s2); err != muxerr.ErrSessionLimitReached {
		t.Fatalf("second Put = %v, want ErrSessionLimitReached", err)
	}
	if r.Len() != 1 {
		t.Fatalf("Len = %d, want 1 after rejected over-limit spawn", r.Len())
	}
}

func TestReapIdleKillsSessionsPastTimeout(t *testing.T) {
	r := New()
	s := newSession(t, "a", r)
	r.Put(s)
	defer s.Kill("SIGKILL")

	r.ReapIdle(0) // any idle duration exceeds a zero timeout

	deadline := time.After(5 * time.Second)
	for {
		select {
		case <-deadline:
			t.Fatal("timed out waiting for idle-reaped session to exit")
		default:
		}
		if s.State() != session.StateRunning {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestSessionSelfRemovesAfterGrace(t *testing.T) {
	r := New()
	s := newSession(t, "a", r)
	s.SetGracePeriod(10 * time.Millisecond)
	r.Put(s)

	s.Kill("SIGKILL")

	deadline := time.After(2 * time.Second)
	for r.Len() != 0 {
		select {
		case <-deadline:
			t.Fatal("session was not removed from registry after grace period")
		case <-time.After(5 * time.Millisecond):
		}
	}
}
