// Package clientconn defines the transport-agnostic ClientConn
// contract that Session and TerminalProtocol depend on, plus a
// channel-backed base implementation shared by every concrete
// transport (WebSocket, SSH).
//
// The mutex-guarded closed flag plus non-blocking channel send is
// adapted from this lineage's own TerminalOutputSender: a full
// outbound channel silently drops the frame rather than blocking the
// PTY data path, exactly the backpressure policy the multiplexer
// requires.
package clientconn

import (
	"sync"

	"github.com/trybotster/termcore/internal/protocol"
)

// State is a ClientConn's lifecycle state.
type State int

const (
	StateOpen State = iota
	StateClosing
	StateClosed
)

// Conn is the contract Session and TerminalProtocol depend on. A
// concrete transport (WebSocket, SSH) implements Conn and owns the
// actual socket; Session never touches transport details directly.
type Conn interface {
	// ID uniquely identifies this connection for logging.
	ID() string

	// Send enqueues an outbound frame. It never blocks the caller: on
	// a closed conn, or a saturated outbound queue, Send silently
	// drops the frame.
	Send(frame protocol.Outbound)

	// State reports the conn's current lifecycle state.
	State() State

	// Close transitions the conn to closed and releases its
	// outbound queue. Idempotent.
	Close()
}

// Base is a channel-backed Conn a concrete transport embeds. The
// transport's own write-pump goroutine drains Outbound() and performs
// the actual wire write; Base only owns the queue and the state.
type Base struct {
	id    string
	ch    chan protocol.Outbound
	mu    sync.RWMutex
	state State
}

// NewBase constructs a Base with the given id and outbound queue
// depth.
func NewBase(id string, queueDepth int) *Base {
	if queueDepth <= 0 {
		queueDepth = 64
	}
	return &Base{id: id, ch: make(chan protocol.Outbound, queueDepth)}
}

func (b *Base) ID() string { return b.id }

// Send enqueues frame for delivery. A closed conn or a full queue
// silently drops the frame; the caller is never blocked.
func (b *Base) Send(frame protocol.Outbound) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.state != StateOpen {
		return
	}

	select {
	case b.ch <- frame:
	default:
		// Outbound queue saturated: drop rather than block the
		// producer. The client will reconverge via replay on
		// reconnect.
	}
}

// State reports the current lifecycle state.
func (b *Base) State() State {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.state
}

// Close transitions to closed. Idempotent.
func (b *Base) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == StateClosed {
		return
	}
	b.state = StateClosed
	close(b.ch)
}

// Outbound returns the channel a transport's write-pump drains.
func (b *Base) Outbound() <-chan protocol.Outbound {
	return b.ch
}

// RawType marks an Outbound frame carrying a pre-marshalled
// command/file-watch frame rather than a terminal wire frame: its
// Data field is the literal bytes to write, not something for
// protocol.Encode to re-wrap.
const RawType = "__raw__"

// SendRaw enqueues an already-JSON-encoded command or file-watch
// frame for delivery, reusing the same bounded queue and drop-on-full
// backpressure policy as Send.
func (b *Base) SendRaw(data []byte) {
	b.Send(protocol.Outbound{Type: RawType, Data: string(data)})
}
