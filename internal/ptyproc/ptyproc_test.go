package ptyproc

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func TestResolveShellAllowsListed(t *testing.T) {
	for _, s := range []string{"/bin/zsh", "/bin/bash", "/bin/sh"} {
		if got := ResolveShell(s); got != s {
			t.Fatalf("ResolveShell(%q) = %q, want unchanged", s, got)
		}
	}
}

func TestResolveShellRejectsUnlisted(t *testing.T) {
	if got := ResolveShell("/usr/bin/python3"); got != DefaultShell {
		t.Fatalf("ResolveShell(python3) = %q, want %q", got, DefaultShell)
	}
}

func TestIsPermittedSignal(t *testing.T) {
	for _, name := range []string{"SIGTERM", "SIGKILL", "SIGINT", "SIGHUP"} {
		if !IsPermittedSignal(name) {
			t.Fatalf("expected %s to be permitted", name)
		}
	}
	if IsPermittedSignal("SIGUSR1") {
		t.Fatal("SIGUSR1 should not be permitted")
	}
}

func TestSpawnRejectsOutOfRangeDims(t *testing.T) {
	if _, err := Spawn(Config{Shell: "/bin/sh", Cols: 1001, Rows: 24}); err == nil {
		t.Fatal("expected an error for cols beyond MaxDim")
	}
	if _, err := Spawn(Config{Shell: "/bin/sh", Cols: 80, Rows: 1001}); err == nil {
		t.Fatal("expected an error for rows beyond MaxDim")
	}
}

func TestSetAllowedShellsReplacesAllowlist(t *testing.T) {
	original := AllowedShells
	defer func() { AllowedShells = original }()

	SetAllowedShells([]string{"/usr/bin/fish"})
	if got := ResolveShell("/usr/bin/fish"); got != "/usr/bin/fish" {
		t.Fatalf("ResolveShell(fish) = %q, want unchanged", got)
	}
	if got := ResolveShell("/bin/zsh"); got != DefaultShell {
		t.Fatalf("ResolveShell(zsh) = %q, want %q (zsh no longer on the replaced allow-list)", got, DefaultShell)
	}
}

func TestSpawnEchoAndExit(t *testing.T) {
	h, err := Spawn(Config{Shell: "/bin/sh", Cols: 80, Rows: 24})
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	if h.Pid() == 0 {
		t.Fatal("expected nonzero pid")
	}

	if err := h.Write([]byte("echo hello; exit\n")); err != nil {
		t.Fatalf("Write: %v", err)
	}

	var out bytes.Buffer
	timeout := time.After(5 * time.Second)

loop:
	for {
		select {
		case chunk, ok := <-h.Data():
			if !ok {
				break loop
			}
			out.Write(chunk)
		case <-timeout:
			t.Fatal("timed out waiting for PTY output")
		}
	}

	select {
	case ev := <-h.Exit():
		_ = ev
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for exit event")
	}

	if !strings.Contains(out.String(), "hello") {
		t.Fatalf("output %q does not contain hello", out.String())
	}

	h.Close()
}

func TestEnforcedEnvironment(t *testing.T) {
	h, err := Spawn(Config{
		Shell: "/bin/sh",
		Cols:  80,
		Rows:  24,
		Env:   map[string]string{"TERM": "dumb", "COLORTERM": "no"},
	})
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	defer h.Close()

	if err := h.Write([]byte("echo $TERM-$COLORTERM; exit\n")); err != nil {
		t.Fatalf("Write: %v", err)
	}

	var out bytes.Buffer
	timeout := time.After(5 * time.Second)
loop:
	for {
		select {
		case chunk, ok := <-h.Data():
			if !ok {
				break loop
			}
			out.Write(chunk)
		case <-timeout:
			t.Fatal("timed out")
		}
	}
	<-h.Exit()

	if !strings.Contains(out.String(), "xterm-256color-truecolor") {
		t.Fatalf("expected enforced TERM/COLORTERM in output, got %q", out.String())
	}
}

func TestWriteResizeSignalAfterExitAreNoOps(t *testing.T) {
	h, err := Spawn(Config{Shell: "/bin/sh", Cols: 80, Rows: 24})
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}

	if err := h.Write([]byte("exit\n")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	for range h.Data() {
	}
	<-h.Exit()

	if err := h.Write([]byte("x")); err != nil {
		t.Fatalf("Write after exit should be a no-op error-free call: %v", err)
	}
	if err := h.Resize(100, 30); err != nil {
		t.Fatalf("Resize after exit should be a no-op error-free call: %v", err)
	}
	if err := h.Signal("SIGTERM"); err != nil {
		t.Fatalf("Signal after exit should be a no-op error-free call: %v", err)
	}

	h.Close()
}
