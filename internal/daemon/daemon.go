// Package daemon wires the TerminalProtocol handler, the command
// subsystem, and the file-watch subsystem behind the single
// wsconn.Dispatcher interface a ClientConn transport needs: it is the
// Router's downstream, turning a classified inbound frame into a call
// against whichever subsystem owns that classification.
package daemon

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/trybotster/termcore/internal/clientconn"
	"github.com/trybotster/termcore/internal/commandexec"
	"github.com/trybotster/termcore/internal/filewatch"
	"github.com/trybotster/termcore/internal/protocol"
	"github.com/trybotster/termcore/internal/router"
	"github.com/trybotster/termcore/internal/terminal"
)

// rawSender is satisfied by clientconn.Conn implementations (wsconn.Conn)
// that can carry a pre-marshalled command/file-watch frame.
type rawSender interface {
	SendRaw(data []byte)
}

// Daemon implements wsconn.Dispatcher across all three subsystems a
// ClientConn frame can classify into.
type Daemon struct {
	terminal  *terminal.Handler
	commands  *commandexec.Runner
	fileWatch *filewatch.Manager
	logger    *slog.Logger
}

// New constructs a Daemon from its three subsystem handlers.
func New(terminalHandler *terminal.Handler, commands *commandexec.Runner, fileWatch *filewatch.Manager, logger *slog.Logger) *Daemon {
	if logger == nil {
		logger = slog.Default()
	}
	return &Daemon{terminal: terminalHandler, commands: commands, fileWatch: fileWatch, logger: logger}
}

// DispatchTerminal forwards an already-decoded terminal frame.
func (d *Daemon) DispatchTerminal(conn clientconn.Conn, in *protocol.Inbound) {
	d.terminal.Handle(conn, in)
}

// DispatchRaw decodes and routes a non-terminal frame by its Router
// classification.
func (d *Daemon) DispatchRaw(conn clientconn.Conn, class router.Class, raw []byte) {
	sender, ok := conn.(rawSender)
	if !ok {
		d.logger.Warn("conn cannot carry raw frames", "class", class.String())
		return
	}

	switch class {
	case router.ClassCommand:
		d.dispatchCommand(sender, raw)
	case router.ClassFileWatch:
		d.dispatchFileWatch(sender, raw)
	default:
		d.logger.Debug("dropping unclassified frame", "class", class.String())
	}
}

func (d *Daemon) dispatchCommand(sender rawSender, raw []byte) {
	var tag struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &tag); err != nil {
		return
	}

	switch tag.Type {
	case commandexec.TypeCommand:
		req, err := commandexec.DecodeRequest(raw)
		if err != nil {
			return
		}
		go d.commands.Run(context.Background(), *req, &commandSink{sender: sender})
	case commandexec.TypeCancel:
		cancel, err := commandexec.DecodeCancel(raw)
		if err != nil {
			return
		}
		d.commands.Cancel(cancel.ID)
	}
}

func (d *Daemon) dispatchFileWatch(sender rawSender, raw []byte) {
	var tag struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &tag); err != nil {
		return
	}

	switch tag.Type {
	case filewatch.TypeStart:
		req, err := filewatch.DecodeStart(raw)
		if err != nil {
			return
		}
		if err := d.fileWatch.Start(*req, &fileWatchSink{sender: sender}); err != nil {
			d.logger.Warn("file watch start failed", "id", req.ID, "error", err)
		}
	case filewatch.TypeStop:
		req, err := filewatch.DecodeStop(raw)
		if err != nil {
			return
		}
		d.fileWatch.Stop(req.ID)
	}
}

type commandSink struct {
	sender rawSender
}

func (s *commandSink) SendOutput(f commandexec.OutputFrame) {
	if data, err := json.Marshal(f); err == nil {
		s.sender.SendRaw(data)
	}
}

func (s *commandSink) SendExit(f commandexec.ExitFrame) {
	if data, err := json.Marshal(f); err == nil {
		s.sender.SendRaw(data)
	}
}

type fileWatchSink struct {
	sender rawSender
}

func (s *fileWatchSink) SendEvent(f filewatch.EventFrame) {
	if data, err := json.Marshal(f); err == nil {
		s.sender.SendRaw(data)
	}
}
