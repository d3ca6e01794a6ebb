package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapdq/internal/server"
)

// ServeOptions holds options for the serve command.
type ServeOptions struct {
	Port  int
	Watch bool
}

// NewServeCommand creates the serve command.
func NewServeCommand() *cobra.Command {
	opts := &ServeOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the LeapDQ API server",
		Long: `Start a local HTTP server exposing the pipeline as a JSON API.

The API provides:
- Source registration and dataset uploads
- Run triggers and run history
- Check results and medallion lineage
- Rule listings and alert configuration
- Dashboard aggregates`,
		Example: `  # Start on the default port
  leapdq serve

  # Start on a custom port
  leapdq serve --port 3000

  # Disable rule-pack hot reload
  leapdq serve --watch=false`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, opts)
		},
	}

	cmd.Flags().IntVar(&opts.Port, "port", 0, "port to serve on (default: 8765)")
	cmd.Flags().BoolVar(&opts.Watch, "watch", true, "reload rule packs when their files change")

	return cmd
}

func runServe(cmd *cobra.Command, opts *ServeOptions) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	cfg := cmdCtx.Cfg

	// CLI flags override the config file.
	port := cfg.Server.Port
	if opts.Port != 0 {
		port = opts.Port
	}

	watch := cfg.Server.Watch
	if cmd.Flags().Changed("watch") {
		watch = opts.Watch
	}

	srv, err := server.New(server.Config{
		Store:           cmdCtx.Store,
		Engine:          cmdCtx.Engine,
		Registry:        cmdCtx.Registry,
		Alerts:          cmdCtx.Alerts,
		Port:            port,
		MaxConns:        cfg.Server.MaxConns,
		Watch:           watch,
		RulesDir:        cfg.RulesDir,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		Logger:          cmdCtx.Logger,
	})
	if err != nil {
		return err
	}

	r := cmdCtx.Renderer
	r.Printf("Starting API server on http://localhost:%d\n", port)
	r.Muted("Press Ctrl+C to stop")

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := srv.Serve(ctx); err != nil {
		return fmt.Errorf("server exited: %w", err)
	}
	return nil
}
