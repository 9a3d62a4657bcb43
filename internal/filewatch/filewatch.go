// Package filewatch is the file-monitoring subsystem Router's
// "file-watch" tag dispatches to (SPEC_FULL §13). Each monitoring id
// owns one fsnotify.Watcher; Start/Stop are idempotent per id so a
// client that loses and regains its connection can safely repeat
// either call.
package filewatch

import (
	"encoding/json"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Inbound frame type tags this subsystem owns.
const (
	TypeStart = "start_file_monitoring"
	TypeStop  = "stop_file_monitoring"
)

// TypeEvent is the outbound frame tag for a single filesystem event.
const TypeEvent = "file_event"

// StartRequest is the decoded start_file_monitoring frame payload.
type StartRequest struct {
	Type string `json:"type"`
	ID   string `json:"id"`
	Path string `json:"path"`
}

// StopRequest is the decoded stop_file_monitoring frame payload.
type StopRequest struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

// EventFrame is an outbound file_event frame.
type EventFrame struct {
	Type string `json:"type"`
	ID   string `json:"id"`
	Path string `json:"path"`
	Op   string `json:"op"`
}

// Sink receives outbound frames produced by an active watch.
type Sink interface {
	SendEvent(f EventFrame)
}

// Manager owns one fsnotify.Watcher per monitoring id.
type Manager struct {
	mu       sync.Mutex
	watchers map[string]*fsnotify.Watcher
}

// NewManager returns an empty Manager.
func NewManager() *Manager {
	return &Manager{watchers: make(map[string]*fsnotify.Watcher)}
}

// Start begins watching req.Path under req.ID, forwarding every
// event to sink until Stop(req.ID) is called. Calling Start again
// with an id already being watched stops the prior watch first.
func (m *Manager) Start(req StartRequest, sink Sink) error {
	m.Stop(req.ID)

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := w.Add(req.Path); err != nil {
		w.Close()
		return err
	}

	m.mu.Lock()
	m.watchers[req.ID] = w
	m.mu.Unlock()

	go m.pump(req.ID, w, sink)
	return nil
}

func (m *Manager) pump(id string, w *fsnotify.Watcher, sink Sink) {
	for {
		select {
		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			sink.SendEvent(EventFrame{Type: TypeEvent, ID: id, Path: ev.Name, Op: ev.Op.String()})
		case _, ok := <-w.Errors:
			if !ok {
				return
			}
		}
	}
}

// Stop ends the watch for id, if any. Stop is a no-op on an unknown
// or already-stopped id.
func (m *Manager) Stop(id string) {
	m.mu.Lock()
	w, ok := m.watchers[id]
	if ok {
		delete(m.watchers, id)
	}
	m.mu.Unlock()

	if ok {
		w.Close()
	}
}

// Shutdown stops every active watch.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	ids := make([]string, 0, len(m.watchers))
	for id := range m.watchers {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	for _, id := range ids {
		m.Stop(id)
	}
}

// DecodeStart parses an inbound start_file_monitoring frame.
func DecodeStart(raw []byte) (*StartRequest, error) {
	var req StartRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return nil, err
	}
	return &req, nil
}

// DecodeStop parses an inbound stop_file_monitoring frame.
func DecodeStop(raw []byte) (*StopRequest, error) {
	var req StopRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return nil, err
	}
	return &req, nil
}
