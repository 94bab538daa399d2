// Package framesocket implements a tag + length prefixed framing protocol and
// a TCP echo server built on it.
//
// Every frame is a 2-byte tag, a big-endian uint16 payload length and the
// payload itself. A Conn reads one frame at a time and writes the same frame
// back before reading the next.
package framesocket

import (
	"bufio"
	"context"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// Errors returned by connection setup.
var (
	// ErrInvalidCodec is returned when neither a codec nor a tag is provided.
	ErrInvalidCodec = errors.New("invalid codec: no codec or tag configured")
	// ErrConnectionClosed is returned when running a closed connection.
	ErrConnectionClosed = errors.New("connection closed")
)

// Default configuration values.
const (
	// defaultBufferSize is the default size of the read buffer.
	defaultBufferSize = 4096
)

// State is a position in the connection's read/echo cycle.
type State int32

const (
	// AwaitingHeader is the initial state: waiting for the next frame.
	AwaitingHeader State = iota
	// Echoing means a frame was decoded and its echo is being written.
	Echoing
	// Closed is terminal.
	Closed
)

func (s State) String() string {
	switch s {
	case AwaitingHeader:
		return "awaiting-header"
	case Echoing:
		return "echoing"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}

// Stats counts the traffic of one connection, or of many when aggregated.
type Stats struct {
	FramesIn  uint64
	FramesOut uint64
	BytesIn   uint64
	BytesOut  uint64
}

// Add returns the element-wise sum of s and o.
func (s Stats) Add(o Stats) Stats {
	return Stats{
		FramesIn:  s.FramesIn + o.FramesIn,
		FramesOut: s.FramesOut + o.FramesOut,
		BytesIn:   s.BytesIn + o.BytesIn,
		BytesOut:  s.BytesOut + o.BytesOut,
	}
}

type counters struct {
	framesIn, framesOut atomic.Uint64
	bytesIn, bytesOut   atomic.Uint64
}

func (c *counters) snapshot() Stats {
	return Stats{
		FramesIn:  c.framesIn.Load(),
		FramesOut: c.framesOut.Load(),
		BytesIn:   c.bytesIn.Load(),
		BytesOut:  c.bytesOut.Load(),
	}
}

// Conn drives one connection through repeated decode/echo cycles.
// Frames are handled strictly in order: each echo is written in full before the
// next header is read.
type Conn struct {
	rawConn net.Conn
	reader  *bufio.Reader
	logger  Logger

	opts options

	state  atomic.Int32
	closed atomic.Bool
	stats  counters

	mu     sync.Mutex
	cancel context.CancelFunc
}

// NewConn creates a new connection wrapper around the given stream.
// It applies the provided options and validates them before returning.
// Returns ErrInvalidCodec if neither TagOption nor CustomCodecOption is given.
func NewConn(conn net.Conn, opt ...Option) (*Conn, error) {
	var opts options
	for _, o := range opt {
		o(&opts)
	}

	err := checkOptions(&opts)
	if err != nil {
		return nil, err
	}

	return newConnWithOptions(conn, opts), nil
}

// checkOptions validates and sets default values for connection options.
func checkOptions(opts *options) error {
	if opts.bufferSize <= 0 {
		opts.bufferSize = defaultBufferSize
	}

	if opts.idleTimeout < 0 {
		opts.idleTimeout = 0
	}

	if opts.codec == nil {
		if !opts.hasTag {
			return ErrInvalidCodec
		}
		opts.codec = NewCodec(opts.tag, WithMaxPayload(opts.maxPayload))
	}

	if opts.onError == nil {
		opts.onError = func(error) {}
	}

	if opts.logger == nil {
		opts.logger = defaultLogger()
	}

	return nil
}

func newConnWithOptions(c net.Conn, opts options) *Conn {
	return &Conn{
		rawConn: c,
		reader:  bufio.NewReaderSize(c, opts.bufferSize),
		logger:  opts.logger,
		opts:    opts,
	}
}

// Run echoes frames until the peer closes the stream, a frame is malformed,
// an I/O operation fails or ctx is canceled. The connection is always closed
// when Run returns.
//
// Run returns nil when the peer closed the stream between frames and
// context.Canceled when ctx ended. Any other return aborted the connection and
// matches one of ErrTransport, ErrUnexpectedEOF, ErrInvalidTag or
// ErrLengthExceeded, or is the error returned by the frame observer.
func (c *Conn) Run(ctx context.Context) error {
	if c.closed.Load() {
		return ErrConnectionClosed
	}

	c.logger.Info("connection established", "addr", c.Addr())
	c.logger.Debug("connection options", "addr", c.Addr(),
		"buffer_size", c.opts.bufferSize,
		"idle_timeout", c.opts.idleTimeout)

	ctx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	c.cancel = cancel
	c.mu.Unlock()

	group, child := errgroup.WithContext(ctx)

	group.Go(func() error {
		defer cancel()
		return c.echoLoop(child)
	})

	// Closing the stream is what unblocks a pending read or write.
	group.Go(func() error {
		<-child.Done()
		_ = c.closeConn()
		return nil
	})

	err := group.Wait()
	cancel()
	c.setState(Closed)

	st := c.Stats()
	switch {
	case err == nil:
		c.logger.Info("connection closed", "addr", c.Addr(),
			"frames", st.FramesIn, "bytes_in", st.BytesIn, "bytes_out", st.BytesOut)
	case errors.Is(err, context.Canceled):
		c.logger.Info("connection canceled", "addr", c.Addr(), "frames", st.FramesIn)
	default:
		c.logger.Info("connection closed with error", "addr", c.Addr(),
			"frames", st.FramesIn, "error", err)
		c.opts.onError(err)
	}

	return err
}

// echoLoop reads a frame, hands it to the observer and writes it back, until
// something ends the connection.
func (c *Conn) echoLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		c.setState(AwaitingHeader)
		frame, err := c.read()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if IsGracefulClose(err) {
				c.logger.Debug("peer closed connection", "addr", c.Addr())
				return nil
			}
			c.logger.Debug("read error", "addr", c.Addr(), "error", err)
			return err
		}

		if c.opts.onFrame != nil {
			if err = c.opts.onFrame(frame); err != nil {
				return errors.WithMessage(err, "frame observer")
			}
		}

		c.setState(Echoing)
		if err = c.write(frame); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.logger.Debug("write error", "addr", c.Addr(), "error", err)
			return err
		}
	}
}

// read decodes the next frame under the idle deadline.
func (c *Conn) read() (Frame, error) {
	if d := c.opts.idleTimeout; d > 0 {
		_ = c.rawConn.SetReadDeadline(time.Now().Add(d))
	}

	frame, err := c.opts.codec.Decode(c.reader)
	if err != nil {
		return Frame{}, err
	}

	c.stats.framesIn.Add(1)
	c.stats.bytesIn.Add(uint64(frame.Size()))
	return frame, nil
}

// write encodes frame and writes all of it under the idle deadline.
func (c *Conn) write(frame Frame) error {
	data, err := c.opts.codec.Encode(frame)
	if err != nil {
		return err
	}

	if d := c.opts.idleTimeout; d > 0 {
		_ = c.rawConn.SetWriteDeadline(time.Now().Add(d))
	}

	if _, err = c.rawConn.Write(data); err != nil {
		return &TransportError{Op: "write", Err: err}
	}

	c.stats.framesOut.Add(1)
	c.stats.bytesOut.Add(uint64(len(data)))
	return nil
}

// Close closes the connection and stops Run. Safe to call multiple times.
func (c *Conn) Close() error {
	c.mu.Lock()
	cancel := c.cancel
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	return c.closeConn()
}

// IsClosed returns true if the connection has been closed.
func (c *Conn) IsClosed() bool {
	return c.closed.Load()
}

// State returns the current position in the read/echo cycle.
func (c *Conn) State() State {
	return State(c.state.Load())
}

// Stats returns the traffic counted so far.
func (c *Conn) Stats() Stats {
	return c.stats.snapshot()
}

// Addr returns the remote address of the connection.
func (c *Conn) Addr() net.Addr {
	return c.rawConn.RemoteAddr()
}

func (c *Conn) setState(s State) {
	if c.closed.Load() && s != Closed {
		return
	}
	c.state.Store(int32(s))
}

// closeConn marks the connection as closed and closes the underlying stream once.
func (c *Conn) closeConn() error {
	if c.closed.Swap(true) {
		return nil
	}
	c.state.Store(int32(Closed))
	return c.rawConn.Close()
}
