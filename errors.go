package framesocket

import (
	"fmt"
	"io"

	"github.com/pkg/errors"
)

// Errors returned by the codec and the connection.
var (
	// ErrPayloadTooLarge is returned by Encode when the payload exceeds MaxPayloadSize.
	ErrPayloadTooLarge = errors.New("payload too large")
	// ErrLengthExceeded is returned by Decode when a header declares more payload
	// bytes than the codec accepts.
	ErrLengthExceeded = errors.New("declared length exceeds limit")
	// ErrInvalidTag matches every *TagError.
	ErrInvalidTag = errors.New("invalid tag")
	// ErrUnexpectedEOF matches every *EOFError, including a close at a frame boundary.
	ErrUnexpectedEOF = errors.New("unexpected EOF")
	// ErrTransport matches every *TransportError.
	ErrTransport = errors.New("transport error")
)

// TagError reports a frame whose tag differs from the expected one.
type TagError struct {
	Got  Tag
	Want Tag
}

func (e *TagError) Error() string {
	return fmt.Sprintf("invalid tag %s, want %s", e.Got, e.Want)
}

// Is makes errors.Is(err, ErrInvalidTag) hold.
func (e *TagError) Is(target error) bool {
	return target == ErrInvalidTag
}

// EOFError reports a stream that ended before a complete frame was read.
// Field is "header" or "payload"; Got and Want count bytes of that field.
type EOFError struct {
	Field string
	Got   int
	Want  int
}

// AtBoundary reports whether the stream ended cleanly between two frames.
func (e *EOFError) AtBoundary() bool {
	return e.Field == fieldHeader && e.Got == 0
}

func (e *EOFError) Error() string {
	if e.AtBoundary() {
		return "unexpected EOF at frame boundary"
	}
	return fmt.Sprintf("unexpected EOF in %s: read %d of %d bytes", e.Field, e.Got, e.Want)
}

// Is makes errors.Is(err, ErrUnexpectedEOF) hold.
func (e *EOFError) Is(target error) bool {
	return target == ErrUnexpectedEOF
}

// Unwrap yields io.EOF for a close at a frame boundary and io.ErrUnexpectedEOF
// for a frame cut short.
func (e *EOFError) Unwrap() error {
	if e.AtBoundary() {
		return io.EOF
	}
	return io.ErrUnexpectedEOF
}

// TransportError wraps an I/O failure of the underlying stream.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *TransportError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrTransport) hold.
func (e *TransportError) Is(target error) bool {
	return target == ErrTransport
}

// IsGracefulClose reports whether err means the peer closed the stream between frames.
func IsGracefulClose(err error) bool {
	return errors.Is(err, io.EOF)
}

const (
	fieldHeader  = "header"
	fieldPayload = "payload"
)

// readError classifies a failed io.ReadFull of n out of want bytes of field.
func readError(err error, field string, n, want int) error {
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return &EOFError{Field: field, Got: n, Want: want}
	}
	return &TransportError{Op: "read " + field, Err: err}
}
