package framesocket

import (
	"io"

	"github.com/pkg/errors"
)

// Encode serializes tag and payload into HeaderSize+len(payload) bytes:
// the tag, the payload length as a big-endian uint16, then the payload verbatim.
func Encode(tag Tag, payload []byte) ([]byte, error) {
	f, err := NewFrame(tag, payload)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, f.Size())
	f.Header.put(buf)
	copy(buf[HeaderSize:], f.Payload)
	return buf, nil
}

// Decode reads one frame from r and checks its tag against expected.
//
// A stream that ends before the first header byte yields an *EOFError matching
// io.EOF. A stream that ends anywhere inside the frame yields an *EOFError
// matching io.ErrUnexpectedEOF. On a tag mismatch Decode returns a *TagError
// after consuming only the header.
func Decode(r io.Reader, expected Tag) (Frame, error) {
	return decode(r, expected, MaxPayloadSize)
}

func decode(r io.Reader, expected Tag, maxPayload int) (Frame, error) {
	var raw [HeaderSize]byte
	if n, err := io.ReadFull(r, raw[:]); err != nil {
		return Frame{}, readError(err, fieldHeader, n, HeaderSize)
	}

	h := parseHeader(raw)
	if h.Tag != expected {
		return Frame{}, &TagError{Got: h.Tag, Want: expected}
	}
	if int(h.Length) > maxPayload {
		return Frame{}, errors.Wrapf(ErrLengthExceeded, "header declares %d bytes, limit %d", h.Length, maxPayload)
	}

	payload := make([]byte, h.Length)
	if n, err := io.ReadFull(r, payload); err != nil {
		return Frame{}, readError(err, fieldPayload, n, len(payload))
	}

	return Frame{Header: h, Payload: payload}, nil
}

// TagCodec is the Codec for a protocol instance bound to one expected tag.
type TagCodec struct {
	tag        Tag
	maxPayload int
}

// CodecOption configures a TagCodec.
type CodecOption func(*TagCodec)

// WithMaxPayload lowers the largest payload the codec accepts on decode.
// Values outside (0, MaxPayloadSize] leave the wire maximum in place.
func WithMaxPayload(n int) CodecOption {
	return func(c *TagCodec) {
		if n > 0 && n <= MaxPayloadSize {
			c.maxPayload = n
		}
	}
}

// NewCodec returns a codec that accepts only frames carrying tag.
func NewCodec(tag Tag, opts ...CodecOption) *TagCodec {
	c := &TagCodec{tag: tag, maxPayload: MaxPayloadSize}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Tag returns the tag the codec expects.
func (c *TagCodec) Tag() Tag {
	return c.tag
}

// MaxPayload returns the largest payload the codec accepts on decode.
func (c *TagCodec) MaxPayload() int {
	return c.maxPayload
}

// Decode implements Codec.
func (c *TagCodec) Decode(r io.Reader) (Frame, error) {
	return decode(r, c.tag, c.maxPayload)
}

// Encode implements Codec. The frame's own tag is written; the echo path relies
// on this to send back exactly what it received.
func (c *TagCodec) Encode(f Frame) ([]byte, error) {
	return Encode(f.Tag, f.Payload)
}
