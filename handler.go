package framesocket

import (
	"context"
	"net"
	"sync"
	"sync/atomic"
)

// EchoHandler is the Handler that runs a Conn for every accepted connection.
// Each connection is independent: an error on one never reaches another.
type EchoHandler struct {
	opts   []Option
	logger Logger

	active atomic.Int64
	total  atomic.Uint64
	failed atomic.Uint64

	mu     sync.Mutex
	closed Stats
}

// NewEchoHandler returns a handler that applies opts to every connection.
// opts must carry TagOption or CustomCodecOption.
func NewEchoHandler(opts ...Option) *EchoHandler {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	logger := o.logger
	if logger == nil {
		logger = defaultLogger()
	}
	return &EchoHandler{opts: opts, logger: logger}
}

// Handle implements Handler.
func (h *EchoHandler) Handle(ctx context.Context, conn net.Conn) {
	c, err := NewConn(conn, h.opts...)
	if err != nil {
		h.logger.Error("rejecting connection", "addr", conn.RemoteAddr(), "error", err)
		_ = conn.Close()
		return
	}

	h.active.Add(1)
	h.total.Add(1)
	defer h.active.Add(-1)

	if err = c.Run(ctx); err != nil && ctx.Err() == nil {
		h.failed.Add(1)
	}

	h.mu.Lock()
	h.closed = h.closed.Add(c.Stats())
	h.mu.Unlock()
}

// Active returns the number of connections currently running.
func (h *EchoHandler) Active() int64 {
	return h.active.Load()
}

// Accepted returns the number of connections handled so far.
func (h *EchoHandler) Accepted() uint64 {
	return h.total.Load()
}

// Failed returns the number of connections that ended with a protocol or I/O error.
func (h *EchoHandler) Failed() uint64 {
	return h.failed.Load()
}

// Stats returns the traffic of all connections that have finished.
func (h *EchoHandler) Stats() Stats {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closed
}
