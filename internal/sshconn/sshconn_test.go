package sshconn

import (
	"net"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/trybotster/termcore/internal/registry"
	"github.com/trybotster/termcore/internal/session"
)

func startTestServer(t *testing.T, reg *registry.Registry) (addr string, closeFn func()) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen failed: %v", err)
	}
	srv := New(ln, reg, nil)
	go srv.Serve()
	return ln.Addr().String(), func() { srv.Close() }
}

func dial(t *testing.T, addr, user string) *ssh.Client {
	t.Helper()
	config := &ssh.ClientConfig{
		User:            user,
		Auth:            []ssh.AuthMethod{ssh.Password("")},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         3 * time.Second,
	}
	client, err := ssh.Dial("tcp", addr, config)
	if err != nil {
		t.Fatalf("ssh dial failed: %v", err)
	}
	return client
}

func TestAttachToUnknownSessionPrintsMessage(t *testing.T) {
	reg := registry.New()
	addr, closeFn := startTestServer(t, reg)
	defer closeFn()

	client := dial(t, addr, "session-missing")
	defer client.Close()

	sess, err := client.NewSession()
	if err != nil {
		t.Fatalf("NewSession failed: %v", err)
	}
	out, _ := sess.Output("")
	if !strings.Contains(string(out), "not found") {
		t.Fatalf("output = %q, want a not-found message", out)
	}
}

func TestAttachStreamsPTYOutput(t *testing.T) {
	reg := registry.New()
	s, err := session.New("echoer", session.Config{Shell: "/bin/sh"}, 65536, nil, reg.Remove, nil)
	if err != nil {
		t.Fatalf("session.New failed: %v", err)
	}
	reg.Put(s)
	defer s.Kill("SIGKILL")

	addr, closeFn := startTestServer(t, reg)
	defer closeFn()

	client := dial(t, addr, "session-echoer")
	defer client.Close()

	sess, err := client.NewSession()
	if err != nil {
		t.Fatalf("NewSession failed: %v", err)
	}
	if err := sess.RequestPty("xterm", 24, 80, ssh.TerminalModes{}); err != nil {
		t.Fatalf("RequestPty failed: %v", err)
	}

	stdin, err := sess.StdinPipe()
	if err != nil {
		t.Fatalf("StdinPipe failed: %v", err)
	}
	stdout, err := sess.StdoutPipe()
	if err != nil {
		t.Fatalf("StdoutPipe failed: %v", err)
	}
	if err := sess.Shell(); err != nil {
		t.Fatalf("Shell failed: %v", err)
	}

	stdin.Write([]byte("echo marker-text\n"))

	deadline := time.Now().Add(5 * time.Second)
	buf := make([]byte, 4096)
	var collected strings.Builder
	for time.Now().Before(deadline) {
		n, _ := stdout.Read(buf)
		collected.Write(buf[:n])
		if strings.Contains(collected.String(), "marker-text") {
			return
		}
	}
	t.Fatalf("never saw echoed output, got %q", collected.String())
}
