// Package router classifies inbound client frames into the subsystem
// responsible for handling them, purely by inspecting the frame's
// type tag — the same switch-on-type-string shape this lineage
// already uses to convert a raw decoded command into a typed internal
// event, generalized from a single flat event enum into a dispatch
// across independent subsystems (terminal, command, file-watch,
// ping, unknown).
package router

import "encoding/json"

// Class identifies which subsystem an inbound frame belongs to.
type Class int

const (
	// ClassUnknown is the catch-all for anything that fails to
	// classify; such frames are dropped with a debug log entry and
	// never reach a subsystem handler.
	ClassUnknown Class = iota
	ClassTerminal
	ClassCommand
	ClassFileWatch
	ClassPing
)

func (c Class) String() string {
	switch c {
	case ClassTerminal:
		return "terminal"
	case ClassCommand:
		return "command"
	case ClassFileWatch:
		return "file-watch"
	case ClassPing:
		return "ping"
	default:
		return "unknown"
	}
}

var commandTags = map[string]bool{
	"command": true,
	"cancel":  true,
	"input":   true,
}

var fileWatchTags = map[string]bool{
	"start_file_monitoring": true,
	"stop_file_monitoring":  true,
}

// taggedFrame is the minimal shape Classify needs to inspect; it does
// not consult session state or decode the rest of the frame.
type taggedFrame struct {
	Type string `json:"type"`
}

// Classify inspects raw's type tag and returns the subsystem it
// belongs to. Terminal frames are recognized by their "terminal:"
// wire prefix (see protocol.Type* constants); this is what
// disambiguates the terminal "input" operation from the command
// subsystem's unprefixed "input" tag on the same wire.
func Classify(raw []byte) Class {
	var f taggedFrame
	if err := json.Unmarshal(raw, &f); err != nil {
		return ClassUnknown
	}
	return ClassifyTag(f.Type)
}

// ClassifyTag classifies an already-extracted type tag.
func ClassifyTag(tag string) Class {
	if len(tag) > len("terminal:") && tag[:len("terminal:")] == "terminal:" {
		return ClassTerminal
	}
	if tag == "ping" {
		return ClassPing
	}
	if fileWatchTags[tag] {
		return ClassFileWatch
	}
	if commandTags[tag] {
		return ClassCommand
	}
	return ClassUnknown
}
