// Package protocol defines the terminal multiplexer's JSON wire frames
// and the codec that (de)serializes them.
//
// Frame shape and the constructor-per-outbound-message style are
// adapted from this lineage's TerminalMessage/BrowserCommand types;
// the field set itself is drawn from the multiplexer's own frame
// schema rather than the GitHub-bot domain those types originally
// served.
package protocol

import "encoding/json"

// Inbound frame type discriminators.
const (
	TypeSpawn  = "terminal:spawn"
	TypeInput  = "terminal:input"
	TypeResize = "terminal:resize"
	TypeKill   = "terminal:kill"
	TypeReplay = "terminal:replay"
)

// Outbound frame type discriminators.
const (
	TypeSpawned    = "terminal:spawned"
	TypeOutput     = "terminal:output"
	TypeExit       = "terminal:exit"
	TypeError      = "terminal:error"
	TypeReplayData = "terminal:replay-data"
)

// Default terminal dimensions when a spawn config omits them.
const (
	DefaultCols = 80
	DefaultRows = 24
)

// SpawnConfig is the inbound spawn request's config payload.
type SpawnConfig struct {
	Shell string            `json:"shell"`
	Cwd   string            `json:"cwd"`
	Cols  int               `json:"cols"`
	Rows  int               `json:"rows"`
	Env   map[string]string `json:"env,omitempty"`
}

// Inbound is the decoded shape of any inbound terminal frame. Fields
// unused by a given Type are left zero.
type Inbound struct {
	Type      string       `json:"type"`
	SessionID string       `json:"sessionId"`
	Mode      string       `json:"mode,omitempty"`
	Config    *SpawnConfig `json:"config,omitempty"`
	Data      string       `json:"data,omitempty"`
	Cols      int          `json:"cols,omitempty"`
	Rows      int          `json:"rows,omitempty"`
	Signal    string       `json:"signal,omitempty"`
}

// Outbound is the encoded shape of any outbound terminal frame. Built
// via the constructor functions below rather than populated directly,
// so every outbound variant carries exactly the fields its type needs.
type Outbound struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId"`
	Pid       int    `json:"pid,omitempty"`
	Data      string `json:"data,omitempty"`
	ExitCode  *int   `json:"exitCode,omitempty"`
	Signal    *int   `json:"signal,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Spawned builds a terminal:spawned frame.
func Spawned(sessionID string, pid int) Outbound {
	return Outbound{Type: TypeSpawned, SessionID: sessionID, Pid: pid}
}

// Output builds a terminal:output frame.
func Output(sessionID, data string) Outbound {
	return Outbound{Type: TypeOutput, SessionID: sessionID, Data: data}
}

// Exit builds a terminal:exit frame.
func Exit(sessionID string, exitCode int, signal *int) Outbound {
	return Outbound{Type: TypeExit, SessionID: sessionID, ExitCode: &exitCode, Signal: signal}
}

// Error builds a terminal:error frame.
func Error(sessionID, message string) Outbound {
	return Outbound{Type: TypeError, SessionID: sessionID, Error: message}
}

// ReplayData builds a terminal:replay-data frame.
func ReplayData(sessionID, data string) Outbound {
	return Outbound{Type: TypeReplayData, SessionID: sessionID, Data: data}
}

// Decode parses a raw inbound JSON frame. Malformed JSON is the
// caller's TransportDecodeFailure to handle (logged, connection kept
// alive); Decode itself just reports the error.
func Decode(raw []byte) (*Inbound, error) {
	var in Inbound
	if err := json.Unmarshal(raw, &in); err != nil {
		return nil, err
	}
	if in.Config != nil {
		if in.Config.Cols == 0 {
			in.Config.Cols = DefaultCols
		}
		if in.Config.Rows == 0 {
			in.Config.Rows = DefaultRows
		}
	}
	return &in, nil
}

// Encode serializes an outbound frame to wire JSON.
func Encode(out Outbound) ([]byte, error) {
	return json.Marshal(out)
}
