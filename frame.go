package framesocket

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/pkg/errors"
)

// Wire layout constants.
const (
	// TagSize is the width of the tag field.
	TagSize = 2
	// HeaderSize is the width of the tag and length fields together.
	HeaderSize = TagSize + 2
	// MaxPayloadSize is the largest payload the 2-byte length field can describe.
	MaxPayloadSize = math.MaxUint16
)

// Tag identifies the message family of a frame. It is compared byte for byte.
type Tag [TagSize]byte

// ParseTag converts a two byte string into a Tag.
func ParseTag(s string) (Tag, error) {
	var t Tag
	if len(s) != TagSize {
		return t, errors.Errorf("tag must be exactly %d bytes, got %d", TagSize, len(s))
	}
	copy(t[:], s)
	return t, nil
}

// MustParseTag is like ParseTag but panics on a malformed tag.
// It is intended for package level variables.
func MustParseTag(s string) Tag {
	t, err := ParseTag(s)
	if err != nil {
		panic(err)
	}
	return t
}

// String returns the tag as text when printable, otherwise as hex.
func (t Tag) String() string {
	for _, b := range t {
		if b < 0x20 || b > 0x7e {
			return fmt.Sprintf("0x%02x%02x", t[0], t[1])
		}
	}
	return string(t[:])
}

// Header is the fixed 4-byte prefix of every frame.
type Header struct {
	Tag    Tag
	Length uint16
}

// parseHeader splits the raw header bytes into named fields.
func parseHeader(b [HeaderSize]byte) Header {
	return Header{
		Tag:    Tag{b[0], b[1]},
		Length: binary.BigEndian.Uint16(b[TagSize:HeaderSize]),
	}
}

// put writes the header into b, which must hold at least HeaderSize bytes.
func (h Header) put(b []byte) {
	copy(b[:TagSize], h.Tag[:])
	binary.BigEndian.PutUint16(b[TagSize:HeaderSize], h.Length)
}

// Frame is one complete unit of exchange. Length always equals len(Payload).
type Frame struct {
	Header
	Payload []byte
}

// NewFrame builds a frame for the given tag and payload.
// Returns ErrPayloadTooLarge if the payload does not fit the length field.
func NewFrame(tag Tag, payload []byte) (Frame, error) {
	if len(payload) > MaxPayloadSize {
		return Frame{}, errors.Wrapf(ErrPayloadTooLarge, "payload of %d bytes", len(payload))
	}
	return Frame{
		Header:  Header{Tag: tag, Length: uint16(len(payload))},
		Payload: payload,
	}, nil
}

// Size returns the number of bytes the frame occupies on the wire.
func (f Frame) Size() int {
	return HeaderSize + len(f.Payload)
}

// Codec is the interface for frame encoding and decoding.
//
// Decode reads from an io.Reader so the codec can reassemble a frame from a
// stream that delivers data in arbitrary chunks. Implementations must return an
// error matching io.EOF only when the stream ended cleanly before the first byte
// of a frame; the connection treats that as a graceful close.
type Codec interface {
	// Decode reads exactly one frame from the reader.
	Decode(r io.Reader) (Frame, error)
	// Encode serializes a frame for transmission.
	Encode(Frame) ([]byte, error)
}
