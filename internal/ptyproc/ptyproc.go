// Package ptyproc is a thin abstraction over an OS pseudo-terminal:
// spawn a vetted shell, write input, resize the window, deliver
// signals, and observe output chunks and exit as an event stream.
//
// Adapted from the single-process PTY session wrapper this lineage
// already carries (creack/pty spawn + reader-goroutine pattern);
// reshaped to the terminal-multiplexer contract: an explicit
// allow-listed shell, an enforced TERM/COLORTERM environment, a
// permitted-signal set, and a channel-based data/exit event stream a
// session goroutine selects on instead of a callback or a
// directly-shared buffer.
package ptyproc

import (
	"fmt"
	"os"
	"os/exec"
	"sync"
	"syscall"

	"github.com/creack/pty"
)

// AllowedShells is the hard security boundary on spawnable shells. A
// caller-supplied shell not in this list is silently replaced by
// DefaultShell.
var AllowedShells = map[string]bool{
	"/bin/zsh":  true,
	"/bin/bash": true,
	"/bin/sh":   true,
}

// DefaultShell is substituted for any shell path not on AllowedShells.
const DefaultShell = "/bin/zsh"

// MinDim and MaxDim bound any cols/rows value this package will pass
// to the OS pty ioctl. Untyped so callers can compare against either
// the wire's int fields or this package's own uint16 Config fields.
const (
	MinDim = 1
	MaxDim = 1000
)

// validDims reports whether cols and rows both fall within
// [MinDim, MaxDim].
func validDims(cols, rows uint16) bool {
	return cols >= MinDim && cols <= MaxDim && rows >= MinDim && rows <= MaxDim
}

// Permitted signals, by name as they appear on the wire.
var permittedSignals = map[string]syscall.Signal{
	"SIGTERM": syscall.SIGTERM,
	"SIGKILL": syscall.SIGKILL,
	"SIGINT":  syscall.SIGINT,
	"SIGHUP":  syscall.SIGHUP,
}

// IsPermittedSignal reports whether name is on the permitted signal
// allow-list {TERM, KILL, INT, HUP}.
func IsPermittedSignal(name string) bool {
	_, ok := permittedSignals[name]
	return ok
}

// ResolveShell returns shell if it is allow-listed, otherwise
// DefaultShell.
func ResolveShell(shell string) string {
	if AllowedShells[shell] {
		return shell
	}
	return DefaultShell
}

// SetAllowedShells replaces AllowedShells wholesale with shells
// (SPEC_FULL §11's configurable shell allow-list). Callers should
// call this once at startup, before any Spawn; it is not
// synchronized against concurrent ResolveShell/Spawn calls.
func SetAllowedShells(shells []string) {
	m := make(map[string]bool, len(shells))
	for _, s := range shells {
		m[s] = true
	}
	AllowedShells = m
}

// Config describes how to spawn a PTY-backed child process.
type Config struct {
	Shell string
	Cwd   string
	Cols  uint16
	Rows  uint16
	Env   map[string]string
}

// ExitEvent is the single terminal event a Handle ever emits on Exit.
type ExitEvent struct {
	Code   int
	Signal *int
}

// Handle owns one PTY master/child-process pair.
type Handle struct {
	cmd  *exec.Cmd
	ptmx *os.File

	dataCh chan []byte
	exitCh chan ExitEvent

	mu     sync.Mutex
	exited bool

	readerDone chan struct{}
}

// Spawn creates a PTY, starts the child process described by cfg, and
// begins delivering output on Data() until the process exits, at
// which point exactly one ExitEvent is delivered on Exit().
//
// Spawn failure returns a non-nil error and leaves no partially
// constructed Handle behind.
func Spawn(cfg Config) (*Handle, error) {
	shell := ResolveShell(cfg.Shell)

	cols, rows := cfg.Cols, cfg.Rows
	if cols == 0 {
		cols = 80
	}
	if rows == 0 {
		rows = 24
	}
	if !validDims(cols, rows) {
		return nil, fmt.Errorf("cols/rows out of range [%d,%d]: got %dx%d", MinDim, MaxDim, cols, rows)
	}

	cmd := exec.Command(shell)
	cmd.Dir = cfg.Cwd
	cmd.Env = buildEnv(cfg.Env)

	ptmx, err := pty.StartWithSize(cmd, &pty.Winsize{Rows: rows, Cols: cols})
	if err != nil {
		return nil, fmt.Errorf("pty spawn failed: %w", err)
	}

	h := &Handle{
		cmd:        cmd,
		ptmx:       ptmx,
		dataCh:     make(chan []byte, 64),
		exitCh:     make(chan ExitEvent, 1),
		readerDone: make(chan struct{}),
	}

	go h.readerLoop()

	return h, nil
}

// buildEnv merges the parent environment with the caller overlay,
// then unconditionally sets TERM and COLORTERM, regardless of
// anything the overlay requested for those two names.
func buildEnv(overlay map[string]string) []string {
	merged := map[string]string{}
	for _, kv := range os.Environ() {
		for i := 0; i < len(kv); i++ {
			if kv[i] == '=' {
				merged[kv[:i]] = kv[i+1:]
				break
			}
		}
	}
	for k, v := range overlay {
		merged[k] = v
	}
	merged["TERM"] = "xterm-256color"
	merged["COLORTERM"] = "truecolor"

	out := make([]string, 0, len(merged))
	for k, v := range merged {
		out = append(out, k+"="+v)
	}
	return out
}

func (h *Handle) readerLoop() {
	defer close(h.readerDone)
	defer close(h.dataCh)

	buf := make([]byte, 4096)
	for {
		n, err := h.ptmx.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			h.dataCh <- chunk
		}
		if err != nil {
			break
		}
	}

	h.mu.Lock()
	h.exited = true
	h.mu.Unlock()

	code, sig := waitExitInfo(h.cmd)
	h.exitCh <- ExitEvent{Code: code, Signal: sig}
	close(h.exitCh)
}

// waitExitInfo waits for the child and extracts its exit code and,
// if it died by signal, the signal number.
func waitExitInfo(cmd *exec.Cmd) (code int, signal *int) {
	err := cmd.Wait()
	if err == nil {
		return 0, nil
	}
	if exitErr, ok := err.(*exec.ExitError); ok {
		if status, ok := exitErr.Sys().(syscall.WaitStatus); ok {
			if status.Signaled() {
				s := int(status.Signal())
				return -1, &s
			}
			return status.ExitStatus(), nil
		}
		return exitErr.ExitCode(), nil
	}
	return -1, nil
}

// Data returns the channel of output chunks. It is closed once the
// PTY has been fully drained; no Data value is ever delivered after
// the Exit event.
func (h *Handle) Data() <-chan []byte {
	return h.dataCh
}

// Exit returns the channel carrying exactly one ExitEvent.
func (h *Handle) Exit() <-chan ExitEvent {
	return h.exitCh
}

// Pid returns the child process id.
func (h *Handle) Pid() int {
	if h.cmd.Process == nil {
		return 0
	}
	return h.cmd.Process.Pid
}

// Write sends raw input to the PTY master. A no-op after exit.
func (h *Handle) Write(p []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.exited {
		return nil
	}
	_, err := h.ptmx.Write(p)
	return err
}

// Resize changes the PTY window size. A no-op after exit. Rejects
// cols/rows outside [MinDim, MaxDim] without touching the pty.
func (h *Handle) Resize(cols, rows uint16) error {
	if !validDims(cols, rows) {
		return fmt.Errorf("cols/rows out of range [%d,%d]: got %dx%d", MinDim, MaxDim, cols, rows)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.exited {
		return nil
	}
	return pty.Setsize(h.ptmx, &pty.Winsize{Rows: rows, Cols: cols})
}

// Signal delivers a POSIX signal by name. name must be one of the
// permitted signals; callers are expected to have checked
// IsPermittedSignal before calling. A no-op after exit.
func (h *Handle) Signal(name string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.exited {
		return nil
	}
	sig, ok := permittedSignals[name]
	if !ok {
		return fmt.Errorf("signal %q not permitted", name)
	}
	if h.cmd.Process == nil {
		return nil
	}
	return h.cmd.Process.Signal(sig)
}

// Close releases the PTY master file descriptor. Callers should wait
// for Exit() to fire (or call Signal("SIGKILL") then wait) before
// Close to avoid losing buffered output.
func (h *Handle) Close() error {
	<-h.readerDone
	return h.ptmx.Close()
}
