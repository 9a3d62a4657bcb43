// Package tailnet provides Tailscale mesh networking via tsnet for
// the "serve --transport tsnet" listener mode: the multiplexer's
// WebSocket transport is exposed over an embedded Tailscale node
// instead of a raw TCP listener, so operators can reach the daemon
// over their tailnet without a public port.
//
// Key features:
//   - Zero external dependencies (no tailscale binary needed)
//   - Userspace networking (no root/admin required)
//   - Direct integration with Headscale via ControlURL
package tailnet

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"

	"tailscale.com/tsnet"
)

// Client wraps a tsnet.Server for Headscale connectivity.
type Client struct {
	server *tsnet.Server
	nodeID string
	logger *slog.Logger
}

// Config holds configuration for the Tailnet client.
type Config struct {
	// NodeID is the unique identifier for this daemon instance,
	// used to derive the tsnet hostname and state directory.
	NodeID string

	// HeadscaleURL is the control server URL (e.g., "https://headscale.example.com").
	HeadscaleURL string

	// AuthKey is the pre-auth key for joining the tailnet.
	AuthKey string

	// StateDir is the directory for storing Tailscale state.
	// Defaults to ~/.config/termcore/tsnet/<nodeID>
	StateDir string

	// Ephemeral indicates whether this node should be ephemeral.
	Ephemeral bool
}

// New creates a new Tailnet client.
func New(cfg *Config, logger *slog.Logger) (*Client, error) {
	if cfg.NodeID == "" {
		return nil, fmt.Errorf("NodeID is required")
	}
	if cfg.HeadscaleURL == "" {
		return nil, fmt.Errorf("HeadscaleURL is required")
	}

	stateDir := cfg.StateDir
	if stateDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("could not determine home directory: %w", err)
		}
		stateDir = filepath.Join(homeDir, ".config", "termcore", "tsnet", cfg.NodeID)
	}

	if err := os.MkdirAll(stateDir, 0700); err != nil {
		return nil, fmt.Errorf("could not create state directory: %w", err)
	}

	idLen := 8
	if len(cfg.NodeID) < idLen {
		idLen = len(cfg.NodeID)
	}
	hostname := fmt.Sprintf("termcore-%s", cfg.NodeID[:idLen])

	server := &tsnet.Server{
		Hostname:   hostname,
		Dir:        stateDir,
		ControlURL: cfg.HeadscaleURL,
		AuthKey:    cfg.AuthKey,
		Ephemeral:  cfg.Ephemeral,
		Logf:       func(format string, args ...any) { logger.Debug(fmt.Sprintf(format, args...)) },
	}

	return &Client{
		server: server,
		nodeID: cfg.NodeID,
		logger: logger,
	}, nil
}

// Start connects to the Tailscale network.
func (c *Client) Start(ctx context.Context) error {
	c.logger.Info("Connecting to Tailscale network",
		"hostname", c.server.Hostname,
		"control_url", c.server.ControlURL,
	)

	status, err := c.server.Up(ctx)
	if err != nil {
		return fmt.Errorf("failed to connect to tailnet: %w", err)
	}

	c.logger.Info("Connected to Tailscale network",
		"tailscale_ips", status.TailscaleIPs,
		"backend_state", status.BackendState,
	)

	return nil
}

// Close shuts down the Tailscale connection.
func (c *Client) Close() error {
	c.logger.Info("Disconnecting from Tailscale network")
	return c.server.Close()
}

// Listen creates a TCP listener on the tailnet.
func (c *Client) Listen(network, addr string) (net.Listener, error) {
	return c.server.Listen(network, addr)
}

// Dial connects to an address on the tailnet.
func (c *Client) Dial(ctx context.Context, network, addr string) (net.Conn, error) {
	return c.server.Dial(ctx, network, addr)
}

// TailscaleIPs returns the Tailscale IP addresses for this node.
// Returns IPv4 and IPv6 addresses as strings.
func (c *Client) TailscaleIPs() []string {
	ip4, ip6 := c.server.TailscaleIPs()
	var result []string
	if ip4.IsValid() {
		result = append(result, ip4.String())
	}
	if ip6.IsValid() {
		result = append(result, ip6.String())
	}
	return result
}

// Hostname returns the tailnet hostname.
func (c *Client) Hostname() string {
	return c.server.Hostname
}
