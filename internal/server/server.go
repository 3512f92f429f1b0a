// Copyright (c) 2026 Mohanned Ahmed
// SPDX-License-Identifier: MIT

// Package server implements the connection handler (spec.md §4.4) and
// server supervisor (spec.md §4.5) components: accepting plaintext or TLS
// sockets, framing one query per connection, routing it through a
// dispatch.Pool onto the configured searcher, and orchestrating startup and
// graceful shutdown.
//
// The Server struct's shape (logger field, Serve() error,
// Shutdown(ctx) error) and the accept-loop-spawns-a-goroutine-per-connection
// idiom are grounded on the teacher's cmd/snellerd/server.go and
// run_daemon.go; SO_REUSEADDR is set explicitly via golang.org/x/sys/unix
// the way the teacher reaches for raw syscalls elsewhere (cgroup,
// tenant/evict_linux.go) rather than relying on a platform-default.
package server

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"github.com/MohannedAhmed67/fast-string-search-server/internal/config"
	"github.com/MohannedAhmed67/fast-string-search-server/internal/dispatch"
	"github.com/MohannedAhmed67/fast-string-search-server/internal/index"
	"github.com/MohannedAhmed67/fast-string-search-server/internal/querylog"
)

// State is one of the five states in the spec.md §4.5 state machine.
type State int

const (
	Init State = iota
	Binding
	Serving
	Draining
	Stopped
)

func (s State) String() string {
	return [...]string{"Init", "Binding", "Serving", "Draining", "Stopped"}[s]
}

const (
	// readWriteTimeout is the per-connection inactivity timeout from
	// spec.md §4.4/§5.
	readWriteTimeout = 10 * time.Second
	// defaultDrainGrace is the default grace window from spec.md §4.5.
	defaultDrainGrace = 5 * time.Second
	listenBacklog     = 128
)

// Server is the C5 supervisor: it owns the listener, the worker pool, the
// index (or reread state), and the logger.
type Server struct {
	cfg    *config.Config
	logger *querylog.Logger
	pool   *dispatch.Pool
	search searcher
	tlsCfg *tls.Config

	mu       sync.Mutex
	state    State
	listener net.Listener

	connWG sync.WaitGroup

	drainGrace time.Duration
}

// Option configures a Server at construction time.
type Option func(*Server)

// WithDrainGrace overrides the default 5-second drain grace window.
func WithDrainGrace(d time.Duration) Option {
	return func(s *Server) { s.drainGrace = d }
}

// New builds a Server in state Init. idx is non-nil in preloaded mode; when
// nil, the server operates in reread mode using scan/algorithmName against
// cfg.LinuxPath instead, per spec.md §3's "exactly one of {index present,
// reread mode}" invariant.
func New(cfg *config.Config, logger *querylog.Logger, pool *dispatch.Pool, idx index.Index, variantName string, scan index.Scanner, algorithmName string, tlsCfg *tls.Config, opts ...Option) *Server {
	var sr searcher
	if idx != nil {
		sr = &preloadedSearcher{idx: idx, name: variantName}
	} else {
		sr = &rereadSearcher{path: cfg.LinuxPath, scan: scan, name: algorithmName}
	}
	s := &Server{
		cfg:        cfg,
		logger:     logger,
		pool:       pool,
		search:     sr,
		tlsCfg:     tlsCfg,
		state:      Init,
		drainGrace: defaultDrainGrace,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// mode reports "preloaded" or "reread" for the QueryRecord's mode field.
func (s *Server) mode() querylog.Mode {
	if _, ok := s.search.(*preloadedSearcher); ok {
		return querylog.Preloaded
	}
	return querylog.Reread
}

// listenConfig sets SO_REUSEADDR explicitly (spec.md §4.5: "SO_REUSEADDR
// set") rather than relying on whatever a bare net.Listen defaults to.
func listenConfig() net.ListenConfig {
	return net.ListenConfig{
		Control: func(network, address string, c syscall.RawConn) error {
			return c.Control(func(fd uintptr) {
				unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
			})
		},
	}
}

// Bind transitions Init → Binding → Serving by opening the listening socket
// (wrapped in TLS if cfg.UseSSL) on the given address.
func (s *Server) Bind(ctx context.Context, addr string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Init {
		return fmt.Errorf("server: Bind called in state %s, want Init", s.state)
	}
	s.state = Binding

	lc := listenConfig()
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("server: bind: %w", err)
	}
	// listenBacklog documents the spec.md §4.5 "≥ 128" backlog requirement;
	// Go's net package has no portable backlog knob beyond the kernel's
	// net.core.somaxconn, so there is nothing further to set here.
	_ = listenBacklog
	if s.tlsCfg != nil {
		ln = tls.NewListener(ln, s.tlsCfg)
	}
	s.listener = ln
	s.state = Serving
	return nil
}

// Serve runs the accept loop until the listener is closed (by Shutdown or a
// fatal error). It never returns nil; callers distinguish an orderly
// shutdown by checking for net.ErrClosed (via the Shutdown caller already
// knowing it initiated the close).
func (s *Server) Serve() error {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return err
		}
		s.connWG.Add(1)
		go func() {
			defer s.connWG.Done()
			s.handleConn(conn)
		}()
	}
}

// Shutdown transitions Serving → Draining → Stopped: stop accepting, give
// in-flight handlers drainGrace to finish, then join the worker pool.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.state = Draining
	ln := s.listener
	s.mu.Unlock()

	if ln != nil {
		ln.Close()
	}

	drained := make(chan struct{})
	go func() {
		s.connWG.Wait()
		close(drained)
	}()

	drainCtx, cancel := context.WithTimeout(ctx, s.drainGrace)
	defer cancel()
	select {
	case <-drained:
	case <-drainCtx.Done():
		s.logger.Errorf("shutdown: drain grace window elapsed with handlers still active")
	}

	poolCtx, poolCancel := context.WithTimeout(ctx, s.drainGrace)
	defer poolCancel()
	err := s.pool.Close(poolCtx)

	s.mu.Lock()
	s.state = Stopped
	s.mu.Unlock()
	return err
}

// State reports the current supervisor state.
func (s *Server) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Addr reports the bound listener address; valid once Bind has returned.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}
