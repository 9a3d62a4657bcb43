// termcore is a multi-client terminal multiplexer core: it spawns PTY
// sessions and attaches any number of WebSocket or SSH clients to the
// same session, replaying buffered scrollback to each newly attached
// client and keeping sessions alive across client disconnects.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/trybotster/termcore/internal/commandexec"
	"github.com/trybotster/termcore/internal/commands"
	"github.com/trybotster/termcore/internal/config"
	"github.com/trybotster/termcore/internal/daemon"
	"github.com/trybotster/termcore/internal/filewatch"
	"github.com/trybotster/termcore/internal/logging"
	"github.com/trybotster/termcore/internal/ptyproc"
	"github.com/trybotster/termcore/internal/registry"
	"github.com/trybotster/termcore/internal/sshconn"
	"github.com/trybotster/termcore/internal/tailnet"
	"github.com/trybotster/termcore/internal/terminal"
	"github.com/trybotster/termcore/internal/wsconn"
)

// Version is set at build time via ldflags.
var Version = "dev"

func main() {
	defer func() {
		if r := recover(); r != nil {
			// A daemon started from an interactive shell can leave the
			// operator's terminal in a broken alt-screen/hidden-cursor
			// state on crash if a client session left it there.
			fmt.Print("\033[?1049l") // exit alt screen
			fmt.Print("\033[?25h")   // show cursor
			fmt.Print("\033[0m")     // reset colors

			fmt.Fprintf(os.Stderr, "\n\nPANIC: %v\n", r)
			os.Exit(1)
		}
	}()

	rootCmd := &cobra.Command{
		Use:     "termcore",
		Short:   "Multi-client terminal multiplexer core",
		Version: Version,
	}

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the multiplexer daemon",
		RunE:  runServe,
	}
	serveCmd.Flags().String("listen", "", "override the configured listen address")
	serveCmd.Flags().String("transport", "", "override the configured transport (websocket|ssh|tsnet)")
	serveCmd.Flags().String("log-file", "", "path to a file to additionally log to")
	rootCmd.AddCommand(serveCmd)

	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or edit ~/.config/termcore/config.json",
	}
	rootCmd.AddCommand(configCmd)

	configGetCmd := &cobra.Command{
		Use:   "get <key>",
		Short: "Get a configuration value by dot notation path (e.g. 'listen_addr')",
		Args:  cobra.ExactArgs(1),
		RunE:  runConfigGet,
	}
	configCmd.AddCommand(configGetCmd)

	configSetCmd := &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value by dot notation path",
		Args:  cobra.ExactArgs(2),
		RunE:  runConfigSet,
	}
	configCmd.AddCommand(configSetCmd)

	configDeleteCmd := &cobra.Command{
		Use:   "delete <key>",
		Short: "Delete a configuration key",
		Args:  cobra.ExactArgs(1),
		RunE:  runConfigDelete,
	}
	configCmd.AddCommand(configDeleteCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if listen, _ := cmd.Flags().GetString("listen"); listen != "" {
		cfg.ListenAddr = listen
	}
	if transport, _ := cmd.Flags().GetString("transport"); transport != "" {
		cfg.Transport = transport
	}
	logFile, _ := cmd.Flags().GetString("log-file")

	logger, closer, err := logging.Setup(logging.Options{LogFilePath: logFile})
	if err != nil {
		return fmt.Errorf("setting up logging: %w", err)
	}
	defer closer()

	if len(cfg.Shells) > 0 {
		ptyproc.SetAllowedShells(cfg.Shells)
	}

	reg := registry.New()
	reg.SetMaxSessions(cfg.MaxSessions)
	termHandler := terminal.New(reg, cfg.BufferCapacity, logger, nil)
	cmdRunner := commandexec.NewRunner()
	fwManager := filewatch.NewManager()
	d := daemon.New(termHandler, cmdRunner, fwManager, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.IdleTimeoutSeconds > 0 {
		go runIdleReaper(ctx, reg, time.Duration(cfg.IdleTimeoutSeconds)*time.Second)
	}

	logger.Info("starting termcore", "transport", cfg.Transport, "listen", cfg.ListenAddr, "shells", cfg.Shells, "max_sessions", cfg.MaxSessions)

	switch cfg.Transport {
	case "ssh":
		return serveSSH(ctx, cfg, reg, logger)
	case "tsnet":
		return serveTsnet(ctx, cfg, d, logger)
	default:
		return serveWebsocket(ctx, cfg, d, logger)
	}
}

// runIdleReaper periodically kills sessions that have gone longer
// than timeout without PTY output or client input, until ctx is
// canceled. The poll interval is a tenth of timeout (floored at one
// second) so the reaper neither busy-loops on a short timeout nor
// leaves a long one undetected for too long.
func runIdleReaper(ctx context.Context, reg *registry.Registry, timeout time.Duration) {
	interval := timeout / 10
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			reg.ReapIdle(timeout)
		}
	}
}

func serveWebsocket(ctx context.Context, cfg *config.Config, d *daemon.Daemon, logger *slog.Logger) error {
	h := wsconn.NewHandler(d, logger)
	mux := http.NewServeMux()
	mux.Handle("/", h)

	srv := &http.Server{Addr: cfg.ListenAddr, Handler: mux}
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		return srv.Shutdown(context.Background())
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	}
}

func serveSSH(ctx context.Context, cfg *config.Config, reg *registry.Registry, logger *slog.Logger) error {
	ln, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", cfg.ListenAddr, err)
	}

	srv := sshconn.New(ln, reg, logger)
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve()
	}()

	select {
	case <-ctx.Done():
		return srv.Close()
	case err := <-errCh:
		return err
	}
}

func serveTsnet(ctx context.Context, cfg *config.Config, d *daemon.Daemon, logger *slog.Logger) error {
	headscaleURL := os.Getenv("TERMCORE_HEADSCALE_URL")
	if headscaleURL == "" {
		return fmt.Errorf("TERMCORE_HEADSCALE_URL must be set for --transport tsnet")
	}

	client, err := tailnet.New(&tailnet.Config{
		NodeID:       uuid.NewString(),
		HeadscaleURL: headscaleURL,
		AuthKey:      os.Getenv("TERMCORE_TAILSCALE_AUTHKEY"),
	}, logger)
	if err != nil {
		return fmt.Errorf("creating tailnet client: %w", err)
	}
	defer client.Close()

	if err := client.Start(ctx); err != nil {
		return fmt.Errorf("starting tailnet client: %w", err)
	}

	ln, err := client.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("listening on tailnet: %w", err)
	}

	h := wsconn.NewHandler(d, logger)
	mux := http.NewServeMux()
	mux.Handle("/", h)
	srv := &http.Server{Handler: mux}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	select {
	case <-ctx.Done():
		return srv.Shutdown(context.Background())
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	}
}

func runConfigGet(cmd *cobra.Command, args []string) error {
	path, err := ensureConfigFile()
	if err != nil {
		return err
	}
	value, err := commands.JSONGet(path, args[0])
	if err != nil {
		return err
	}
	fmt.Println(value)
	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	path, err := ensureConfigFile()
	if err != nil {
		return err
	}
	return commands.JSONSet(path, args[0], args[1])
}

func runConfigDelete(cmd *cobra.Command, args []string) error {
	path, err := ensureConfigFile()
	if err != nil {
		return err
	}
	return commands.JSONDelete(path, args[0])
}

// ensureConfigFile returns the config file path, writing out the
// default configuration first if no file exists yet so config get/set/
// delete always have something to operate on.
func ensureConfigFile() (string, error) {
	path, err := config.ConfigPath()
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := config.DefaultConfig().Save(); err != nil {
			return "", err
		}
	}
	return path, nil
}
