// Package server serves the athena line protocol over a net.Listener.
//
// Each connection is one session. Requests are single lines terminated
// by LF or CRLF; every reply line is terminated by CRLF. A reply may span
// several lines (RANDSET, INDEX, SETS).
package server

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/roach88/athena/internal/command"
	"github.com/roach88/athena/internal/metrics"
)

const (
	// DefaultMaxSessions bounds concurrently served connections.
	DefaultMaxSessions = 64

	// MaxLineLength is the longest request line accepted.
	MaxLineLength = 1 << 20
)

// Server accepts sessions and dispatches their commands.
type Server struct {
	d        *command.Dispatcher
	sessions SessionGenerator
	metrics  *metrics.Metrics
	logger   *slog.Logger

	maxSessions int
	interval    time.Duration

	active atomic.Int64
}

// Option configures a Server.
type Option func(*Server)

// WithMaxSessions bounds concurrent sessions. Further connections wait
// until a session ends.
func WithMaxSessions(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxSessions = n
		}
	}
}

// WithStatusInterval enables the periodic status report. Zero disables
// it.
func WithStatusInterval(d time.Duration) Option {
	return func(s *Server) {
		s.interval = d
	}
}

// WithSessionGenerator overrides the session token generator (for
// testing). Defaults to UUIDv7Generator.
func WithSessionGenerator(g SessionGenerator) Option {
	return func(s *Server) {
		s.sessions = g
	}
}

// WithMetrics updates session and store gauges in m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		s.logger = l
	}
}

// New creates a Server dispatching to d.
func New(d *command.Dispatcher, opts ...Option) *Server {
	s := &Server{
		d:           d,
		sessions:    UUIDv7Generator{},
		logger:      slog.Default(),
		maxSessions: DefaultMaxSessions,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Sessions returns the number of open sessions.
func (s *Server) Sessions() int { return int(s.active.Load()) }

// Serve accepts connections on ln until ctx is cancelled, a client sends
// SHUTDOWN, or accepting fails. It closes ln and waits for every session
// to end before returning. Cancellation and SHUTDOWN are not errors.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	ctx, shutdown := context.WithCancel(ctx)
	defer shutdown()

	g, ctx := errgroup.WithContext(ctx)
	sem := semaphore.NewWeighted(int64(s.maxSessions))

	g.Go(func() error {
		<-ctx.Done()
		if err := ln.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			s.logger.Warn("closing listener", "error", err)
		}
		return nil
	})

	if s.interval > 0 {
		g.Go(func() error {
			s.report(ctx)
			return nil
		})
	}

	g.Go(func() error {
		for {
			if err := sem.Acquire(ctx, 1); err != nil {
				return nil
			}
			conn, err := ln.Accept()
			if err != nil {
				sem.Release(1)
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("accept: %w", err)
			}
			g.Go(func() error {
				defer sem.Release(1)
				s.handle(ctx, conn, shutdown)
				return nil
			})
		}
	})

	s.logger.Info("server listening", "addr", ln.Addr().String(), "max_sessions", s.maxSessions)
	err := g.Wait()
	s.logger.Info("server stopped")
	return err
}

// handle runs one session until the client quits, disconnects, or the
// server stops.
func (s *Server) handle(ctx context.Context, conn net.Conn, shutdown context.CancelFunc) {
	sess := command.NewSession(s.sessions.Generate())
	logger := s.logger.With("session", sess.ID, "remote", conn.RemoteAddr().String())

	s.active.Add(1)
	if s.metrics != nil {
		s.metrics.Sessions.Inc()
	}
	logger.Info("session started")

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer func() {
		stop()
		conn.Close()
		released := s.d.CloseSession(sess)
		s.active.Add(-1)
		if s.metrics != nil {
			s.metrics.Sessions.Dec()
		}
		logger.Info("session ended", "locks_released", released)
	}()

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 4096), MaxLineLength)
	w := bufio.NewWriter(conn)

	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		reply := s.d.Execute(ctx, sess, line)
		if err := writeReply(w, reply.Text); err != nil {
			logger.Debug("writing reply", "error", err)
			return
		}

		switch reply.Status {
		case command.StatusQuit:
			return
		case command.StatusShutdown:
			logger.Info("shutdown requested")
			shutdown()
			return
		}
	}
	if err := scanner.Err(); err != nil && ctx.Err() == nil && !errors.Is(err, net.ErrClosed) {
		logger.Warn("reading request", "error", err)
	}
}

// writeReply writes text with every line CRLF-terminated.
func writeReply(w *bufio.Writer, text string) error {
	for line := range strings.SplitSeq(text, "\n") {
		if _, err := w.WriteString(line); err != nil {
			return err
		}
		if _, err := w.WriteString("\r\n"); err != nil {
			return err
		}
	}
	return w.Flush()
}

// report logs store and session counts every interval.
func (s *Server) report(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			st := s.d.DB().Stats()
			s.logger.Info("status",
				"sets", st.Sets,
				"objects", st.Objects,
				"pinned", st.Pinned,
				"sessions", s.active.Load(),
			)
			if s.metrics != nil {
				s.metrics.ObserveStore(st)
			}
		}
	}
}
