package daemon

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/trybotster/termcore/internal/clientconn"
	"github.com/trybotster/termcore/internal/commandexec"
	"github.com/trybotster/termcore/internal/filewatch"
	"github.com/trybotster/termcore/internal/protocol"
	"github.com/trybotster/termcore/internal/registry"
	"github.com/trybotster/termcore/internal/router"
	"github.com/trybotster/termcore/internal/terminal"
)

type fakeRawConn struct {
	*clientconn.Base
}

func newFakeRawConn() *fakeRawConn {
	return &fakeRawConn{Base: clientconn.NewBase("c", 64)}
}

func drainRaw(t *testing.T, conn *fakeRawConn, contains string, timeout time.Duration) string {
	t.Helper()
	deadline := time.After(timeout)
	for {
		select {
		case f := <-conn.Outbound():
			if f.Type == clientconn.RawType && strings.Contains(f.Data, contains) {
				return f.Data
			}
		case <-deadline:
			t.Fatalf("timed out waiting for raw frame containing %q", contains)
		}
	}
}

func TestDispatchCommandRunsAndStreamsOutput(t *testing.T) {
	reg := registry.New()
	th := terminal.New(reg, 65536, nil, nil)
	d := New(th, commandexec.NewRunner(), filewatch.NewManager(), nil)

	conn := newFakeRawConn()
	raw, _ := json.Marshal(commandexec.Request{Type: commandexec.TypeCommand, ID: "1", Argv: []string{"/bin/echo", "from-daemon"}})
	d.DispatchRaw(conn, router.ClassCommand, raw)

	out := drainRaw(t, conn, "from-daemon", 5*time.Second)
	if !strings.Contains(out, "command:output") {
		t.Fatalf("expected a command:output frame, got %q", out)
	}
	drainRaw(t, conn, "command:exit", 5*time.Second)
}

func TestDispatchTerminalReachesHandler(t *testing.T) {
	reg := registry.New()
	th := terminal.New(reg, 65536, nil, nil)
	d := New(th, commandexec.NewRunner(), filewatch.NewManager(), nil)

	conn := newFakeRawConn()
	d.DispatchTerminal(conn, &protocol.Inbound{
		Type: protocol.TypeSpawn, SessionID: "s1", Mode: "shell",
		Config: &protocol.SpawnConfig{Shell: "/bin/sh", Cols: 80, Rows: 24},
	})

	deadline := time.After(5 * time.Second)
	for {
		select {
		case f := <-conn.Outbound():
			if f.Type == protocol.TypeSpawned {
				if f.Pid == 0 {
					t.Fatal("expected nonzero pid")
				}
				s, _ := reg.Get("s1")
				s.Kill("SIGKILL")
				return
			}
		case <-deadline:
			t.Fatal("timed out waiting for spawned frame")
		}
	}
}
