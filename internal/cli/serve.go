package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/athena/internal/command"
	"github.com/roach88/athena/internal/config"
	"github.com/roach88/athena/internal/journal"
	"github.com/roach88/athena/internal/metrics"
	"github.com/roach88/athena/internal/server"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Config         string
	Listen         string
	MetricsAddr    string
	MaxSessions    int
	Journal        string
	StatusInterval time.Duration

	// Sessions overrides the session token generator (for testing).
	// If nil, defaults to server.UUIDv7Generator.
	Sessions server.SessionGenerator
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the line protocol over TCP",
		Long: `Start the athena server.

Each TCP connection is a session sending one command per line. The store
starts empty and lives until the server stops (Ctrl-C, SIGTERM or a
SHUTDOWN command). Flags override values from the configuration file.

Example:
  athena serve
  athena serve --config ./athena.cue --listen :7379 --metrics-addr :9090
  athena serve --journal ./journal.db --verbose`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Config, "config", "c", "", "path to CUE configuration file")
	cmd.Flags().StringVar(&opts.Listen, "listen", "", "address to listen on")
	cmd.Flags().StringVar(&opts.MetricsAddr, "metrics-addr", "", "address for the Prometheus /metrics endpoint")
	cmd.Flags().IntVar(&opts.MaxSessions, "max-sessions", 0, "maximum concurrent sessions")
	cmd.Flags().StringVar(&opts.Journal, "journal", "", "path to SQLite command journal")
	cmd.Flags().DurationVar(&opts.StatusInterval, "status-interval", 0, "period of the status log line")

	return cmd
}

// applyOverrides copies explicitly set flags over the file configuration.
func (o *ServeOptions) applyOverrides(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	if flags.Changed("listen") {
		cfg.Listen = o.Listen
	}
	if flags.Changed("metrics-addr") {
		cfg.MetricsAddr = o.MetricsAddr
	}
	if flags.Changed("max-sessions") {
		if o.MaxSessions <= 0 {
			return NewExitError(ExitCommandError, "--max-sessions must be positive")
		}
		cfg.MaxSessions = o.MaxSessions
	}
	if flags.Changed("journal") {
		cfg.Journal.Path = o.Journal
	}
	if flags.Changed("status-interval") {
		if o.StatusInterval <= 0 {
			return NewExitError(ExitCommandError, "--status-interval must be positive")
		}
		cfg.SetInterval(o.StatusInterval)
	}
	return nil
}

func runServe(opts *ServeOptions, cmd *cobra.Command) error {
	cfg, err := loadConfig(opts.Config)
	if err != nil {
		return err
	}
	if err := opts.applyOverrides(cmd, cfg); err != nil {
		return err
	}

	logger := newLogger(cmd.ErrOrStderr(), opts.RootOptions, cfg.Level())

	m := metrics.New()
	dopts := []command.Option{command.WithObserver(m)}
	if cfg.Journal.Path != "" {
		logger.Info("opening journal", "path", cfg.Journal.Path)
		j, err := journal.Open(cfg.Journal.Path)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open journal", err)
		}
		defer func() {
			if closeErr := j.Close(); closeErr != nil {
				logger.Error("error closing journal", "error", closeErr)
			}
		}()
		dopts = append(dopts, command.WithJournal(j))
	}
	d := newDispatcher(cfg, logger, dopts...)

	sopts := []server.Option{
		server.WithMaxSessions(cfg.MaxSessions),
		server.WithStatusInterval(cfg.Interval()),
		server.WithMetrics(m),
		server.WithLogger(logger),
	}
	if opts.Sessions != nil {
		sopts = append(sopts, server.WithSessionGenerator(opts.Sessions))
	}
	srv := server.New(d, sopts...)

	ln, err := net.Listen("tcp", cfg.Listen)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to listen", err)
	}

	// Use command's context if available (for testing), otherwise create one
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		// SHUTDOWN ends Serve without an error; stop the metrics server too.
		defer cancel()
		return srv.Serve(gctx, ln)
	})
	if cfg.MetricsAddr != "" {
		serveMetrics(gctx, g, cfg.MetricsAddr, m, logger)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "athena listening on %s\n", ln.Addr())

	if err := g.Wait(); err != nil {
		return WrapExitError(ExitFailure, "server error", err)
	}
	logger.Info("server stopped gracefully")
	return nil
}

// serveMetrics runs the /metrics endpoint in g until ctx is done.
func serveMetrics(ctx context.Context, g *errgroup.Group, addr string, m *metrics.Metrics, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	hs := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	g.Go(func() error {
		logger.Info("metrics listening", "addr", addr)
		if err := hs.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return hs.Shutdown(shutdownCtx)
	})
}
