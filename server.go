package framesocket

import (
	"context"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// Handler is the interface for handling incoming TCP connections.
type Handler interface {
	// Handle is called in its own goroutine for each new connection and owns it
	// until it returns. ctx is canceled when the server stops waiting for
	// connections to finish.
	Handle(ctx context.Context, conn net.Conn)
}

// HandlerFunc adapts an ordinary function to the Handler interface.
type HandlerFunc func(ctx context.Context, conn net.Conn)

// Handle calls f(ctx, conn).
func (f HandlerFunc) Handle(ctx context.Context, conn net.Conn) {
	f(ctx, conn)
}

// Server represents a TCP server that listens for incoming connections.
type Server struct {
	listener        *net.TCPListener
	logger          Logger
	shutdownTimeout time.Duration

	mu       sync.Mutex
	shutdown bool

	closeOnce   sync.Once
	shutdownNow chan struct{} // closed by Close, bypasses the drain timeout

	handlers sync.WaitGroup
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// ServerLoggerOption sets the logger for the server.
func ServerLoggerOption(logger Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

// ServerShutdownTimeoutOption sets the graceful shutdown timeout.
// When the serve context is canceled the listener stops accepting at once and
// active connections get up to timeout to finish before their contexts are
// canceled. Default is 0 (cancel connections immediately).
func ServerShutdownTimeoutOption(timeout time.Duration) ServerOption {
	return func(s *Server) {
		s.shutdownTimeout = timeout
	}
}

// New creates a new TCP server bound to the specified address.
// Returns an error if the address cannot be bound.
func New(addr *net.TCPAddr, opts ...ServerOption) (*Server, error) {
	listener, err := net.ListenTCP(addr.Network(), addr)
	if err != nil {
		return nil, errors.Wrapf(err, "listen %s", addr)
	}

	s := &Server{
		listener:    listener,
		logger:      slog.Default(),
		shutdownNow: make(chan struct{}),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// Listen resolves address and creates a server bound to it.
func Listen(address string, opts ...ServerOption) (*Server, error) {
	addr, err := net.ResolveTCPAddr("tcp", address)
	if err != nil {
		return nil, errors.Wrapf(err, "resolve %s", address)
	}
	return New(addr, opts...)
}

// Serve accepts connections and runs handler for each in its own goroutine.
// It blocks until the context is canceled, Close is called, or accepting fails.
//
// On cancellation the listener stops accepting immediately, then Serve waits
// up to the shutdown timeout for handlers to return before canceling their
// context, and finally waits for all of them. It returns ctx.Err() after a
// canceled context and nil after Close.
func (s *Server) Serve(ctx context.Context, handler Handler) error {
	s.logger.Info("server started", "addr", s.listener.Addr())

	connCtx, cancelConns := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelConns()

	stopped := make(chan struct{})
	defer close(stopped)

	go func() {
		select {
		case <-ctx.Done():
		case <-s.shutdownNow:
		case <-stopped:
			return
		}

		s.mu.Lock()
		s.shutdown = true
		s.mu.Unlock()
		// Set a deadline to unblock Accept
		_ = s.listener.SetDeadline(time.Now())
	}()

	var serveErr error
	for {
		conn, err := s.listener.AcceptTCP()
		if err != nil {
			if s.isShutdown() {
				serveErr = ctx.Err()
				break
			}

			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			s.logger.Error("accept error", "error", err)
			serveErr = err
			break
		}

		s.logger.Debug("accepted connection", "remote_addr", conn.RemoteAddr())
		_ = conn.SetNoDelay(true)

		s.handlers.Add(1)
		go func() {
			defer s.handlers.Done()
			handler.Handle(connCtx, conn)
		}()
	}

	_ = s.listener.Close()
	s.drain(cancelConns)
	s.logger.Info("server stopped", "addr", s.listener.Addr())
	return serveErr
}

// drain waits for handlers to return, canceling them once the shutdown
// timeout expires or Close is called.
func (s *Server) drain(cancelConns context.CancelFunc) {
	done := make(chan struct{})
	go func() {
		s.handlers.Wait()
		close(done)
	}()

	if s.shutdownTimeout > 0 {
		s.logger.Info("graceful shutdown initiated", "timeout", s.shutdownTimeout)
		select {
		case <-done:
			return
		case <-time.After(s.shutdownTimeout):
			s.logger.Warn("shutdown timeout expired, canceling connections")
		case <-s.shutdownNow:
			s.logger.Debug("shutdown timeout bypassed via Close()")
		}
	}

	cancelConns()
	<-done
}

func (s *Server) isShutdown() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.shutdown
}

// Close stops the server by closing the underlying listener.
// If a shutdown timeout is configured, Close() bypasses the remaining timeout.
// Any blocked Accept calls will return with an error.
func (s *Server) Close() error {
	s.mu.Lock()
	s.shutdown = true
	s.mu.Unlock()

	s.closeOnce.Do(func() {
		close(s.shutdownNow)
	})

	err := s.listener.Close()
	if errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}

// Addr returns the listener's network address.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}
