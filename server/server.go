package server

import (
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"shelfdb/config"
	"shelfdb/executor"
)

// Server accepts TCP connections and spawns a goroutine per client.
type Server struct {
	cfg      *config.Config
	exec     *executor.Executor
	log      *zap.Logger
	mu       sync.Mutex // protects listener and conns
	listener net.Listener
	conns    map[net.Conn]struct{}
	wg       sync.WaitGroup
	quit     chan struct{}
	stopOnce sync.Once
	nextID   atomic.Uint64
	active   atomic.Int64
}

// New creates a server with the given configuration and executor. A nil
// logger disables logging.
func New(cfg *config.Config, exec *executor.Executor, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{
		cfg:  cfg,
		exec: exec,
		log:   log.Named("server"),
		quit:  make(chan struct{}),
		conns: make(map[net.Conn]struct{}),
	}
}

// Listen binds the configured port. Port 0 picks a free port; Addr reports
// the one chosen.
func (s *Server) Listen() error {
	addr := fmt.Sprintf(":%d", s.cfg.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.Wrap(err, "listen")
	}
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()
	s.log.Info("listening", zap.Stringer("addr", ln.Addr()))
	return nil
}

// ListenAndServe binds the port and serves until Shutdown is called.
func (s *Server) ListenAndServe() error {
	if err := s.Listen(); err != nil {
		return err
	}
	return s.Serve()
}

// Serve accepts connections on the bound listener. It blocks until
// Shutdown is called or an unrecoverable error occurs.
func (s *Server) Serve() error {
	s.mu.Lock()
	ln := s.listener
	s.mu.Unlock()
	if ln == nil {
		return errors.New("serve called before listen")
	}

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-s.quit:
				return nil
			default:
				if errors.Is(err, net.ErrClosed) {
					return nil
				}
				s.log.Warn("accept failed", zap.Error(err))
				continue
			}
		}

		if !s.track(conn) {
			conn.Close()
			return nil
		}

		id := s.nextID.Add(1)
		go func() {
			defer s.wg.Done()
			defer s.untrack(conn)
			s.active.Add(1)
			defer s.active.Add(-1)
			c := newConnection(conn, s.cfg, s.exec, s.log.With(
				zap.Uint64("conn", id),
				zap.Stringer("remote", conn.RemoteAddr()),
			))
			c.Handle()
		}()
	}
}

// track registers conn so Shutdown can reach it and adds it to the wait
// group. It reports false once shutdown has begun.
func (s *Server) track(conn net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	select {
	case <-s.quit:
		return false
	default:
	}
	s.conns[conn] = struct{}{}
	s.wg.Add(1)
	return true
}

func (s *Server) untrack(conn net.Conn) {
	s.mu.Lock()
	delete(s.conns, conn)
	s.mu.Unlock()
}

// Addr returns the listener's network address, or nil if not yet listening.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	ln := s.listener
	s.mu.Unlock()
	if ln != nil {
		return ln.Addr()
	}
	return nil
}

// ActiveConnections returns the number of connections being served.
func (s *Server) ActiveConnections() int64 {
	return s.active.Load()
}

// Shutdown stops accepting new connections and ends the open ones, then
// waits for their goroutines to finish, respecting the context deadline.
// A command already executing completes and its response is sent; the
// connection closes at its next read.
func (s *Server) Shutdown(ctx context.Context) error {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		close(s.quit)
		s.log.Info("shutting down", zap.Int("open", len(s.conns)))
		if s.listener != nil {
			s.listener.Close()
		}
		for conn := range s.conns {
			conn.SetReadDeadline(time.Now())
		}
		s.mu.Unlock()
	})

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.log.Info("shutdown complete")
		return nil
	case <-ctx.Done():
		s.log.Warn("shutdown timed out", zap.Int64("active", s.ActiveConnections()))
		return ctx.Err()
	}
}
