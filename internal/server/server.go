package server

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/synacktiv/lumina-server/internal/logger"
	"github.com/synacktiv/lumina-server/internal/metrics"
	"github.com/synacktiv/lumina-server/internal/store"
)

// Config is everything a Server needs beyond the listen address.
type Config struct {
	Addr           string
	TLSConfig      *tls.Config // nil disables TLS (plaintext mode)
	Store          *store.Store
	CheckClient    CheckClientFunc // nil defaults to AcceptAll
	SessionTimeout time.Duration
	Metrics        *metrics.Metrics // nil disables metric recording
}

// Server owns the TCP listener and dispatches every accepted
// connection to a per-session handler goroutine. Sessions share the
// Store; there is otherwise no cross-session state.
type Server struct {
	cfg      Config
	listener net.Listener
	wg       sync.WaitGroup
}

// New fills in cfg's defaults (AcceptAll for a nil CheckClient, 30s
// for a non-positive SessionTimeout) and returns a Server ready to
// Serve. It performs no other validation.
func New(cfg Config) *Server {
	if cfg.CheckClient == nil {
		cfg.CheckClient = AcceptAll
	}
	if cfg.SessionTimeout <= 0 {
		cfg.SessionTimeout = 30 * time.Second
	}
	return &Server{cfg: cfg}
}

// Serve binds the listener and accepts connections until ctx is
// canceled. It returns once the accept loop has stopped and every
// in-flight session has finished (or been cut short by its own
// deadline) — the bounded grace period spec.md §5 asks for.
func (s *Server) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.cfg.Addr, err)
	}
	s.listener = ln

	mode := "plaintext"
	if s.cfg.TLSConfig != nil {
		mode = "TLS"
	}
	logger.Info("server started", "addr", s.cfg.Addr, "mode", mode)

	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				s.wg.Wait()
				logger.Info("server stopped")
				return nil
			default:
				return fmt.Errorf("accept: %w", err)
			}
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConnection(conn)
		}()
	}
}
