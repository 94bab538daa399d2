package framesocket

import (
	"bufio"
	"context"
	"net"
	"time"

	"github.com/pkg/errors"
)

// Client sends frames over one connection and reads the frames that come back.
// It is not safe for concurrent use.
type Client struct {
	conn   net.Conn
	reader *bufio.Reader
	codec  *TagCodec
}

// Dial connects to address and returns a client for frames tagged tag.
func Dial(ctx context.Context, address string, tag Tag) (*Client, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, errors.Wrapf(err, "dial %s", address)
	}
	return NewClient(conn, tag), nil
}

// NewClient wraps an established stream.
func NewClient(conn net.Conn, tag Tag) *Client {
	return &Client{
		conn:   conn,
		reader: bufio.NewReaderSize(conn, defaultBufferSize),
		codec:  NewCodec(tag),
	}
}

// Send writes one frame carrying payload.
func (c *Client) Send(payload []byte) error {
	data, err := Encode(c.codec.Tag(), payload)
	if err != nil {
		return err
	}
	if _, err = c.conn.Write(data); err != nil {
		return &TransportError{Op: "write", Err: err}
	}
	return nil
}

// Receive reads one frame.
func (c *Client) Receive() (Frame, error) {
	return c.codec.Decode(c.reader)
}

// Roundtrip sends payload and waits for the frame that answers it.
// Ending ctx interrupts both directions.
func (c *Client) Roundtrip(ctx context.Context, payload []byte) (Frame, error) {
	if err := ctx.Err(); err != nil {
		return Frame{}, err
	}
	defer c.conn.SetDeadline(time.Time{})

	stop := context.AfterFunc(ctx, func() {
		_ = c.conn.SetDeadline(time.Now())
	})
	defer stop()

	if err := c.Send(payload); err != nil {
		return Frame{}, c.ctxErr(ctx, err)
	}
	f, err := c.Receive()
	if err != nil {
		return Frame{}, c.ctxErr(ctx, err)
	}
	return f, nil
}

func (c *Client) ctxErr(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return errors.Wrap(ctxErr, err.Error())
	}
	return err
}

// LocalAddr returns the local address of the connection.
func (c *Client) LocalAddr() net.Addr {
	return c.conn.LocalAddr()
}

// Close closes the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}
