package framesocket

import (
	"bytes"
	"errors"
	"io"
	"math/rand"
	"testing"
	"testing/iotest"
)

var testTag = MustParseTag("TS")

// errReader fails every read with err.
type errReader struct {
	err error
}

func (r errReader) Read([]byte) (int, error) {
	return 0, r.err
}

func randomPayload(t *testing.T, n int) []byte {
	t.Helper()
	buf := make([]byte, n)
	rand.New(rand.NewSource(int64(n))).Read(buf)
	return buf
}

func TestEncode_ConcreteScenario(t *testing.T) {
	got, err := Encode(testTag, []byte("abc"))
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	want := []byte{0x54, 0x53, 0x00, 0x03, 0x61, 0x62, 0x63}
	if !bytes.Equal(got, want) {
		t.Fatalf("Encode = % x, want % x", got, want)
	}

	frame, err := Decode(bytes.NewReader(want), testTag)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if frame.Tag != testTag {
		t.Errorf("Tag = %s, want TS", frame.Tag)
	}
	if frame.Length != 3 {
		t.Errorf("Length = %d, want 3", frame.Length)
	}
	if string(frame.Payload) != "abc" {
		t.Errorf("Payload = %q, want %q", frame.Payload, "abc")
	}
}

func TestEncodeDecode_RoundTrip(t *testing.T) {
	tags := []Tag{testTag, {0x00, 0x00}, {0xff, 0x01}}
	sizes := []int{0, 1, 2, 255, 256, 4096, 65534, MaxPayloadSize}

	for _, tag := range tags {
		for _, size := range sizes {
			payload := randomPayload(t, size)

			data, err := Encode(tag, payload)
			if err != nil {
				t.Fatalf("Encode(%s, %d bytes) failed: %v", tag, size, err)
			}
			if len(data) != HeaderSize+size {
				t.Fatalf("encoded length = %d, want %d", len(data), HeaderSize+size)
			}

			frame, err := Decode(bytes.NewReader(data), tag)
			if err != nil {
				t.Fatalf("Decode(%s, %d bytes) failed: %v", tag, size, err)
			}
			if frame.Tag != tag || int(frame.Length) != size || !bytes.Equal(frame.Payload, payload) {
				t.Fatalf("round trip mismatch for tag %s size %d", tag, size)
			}
		}
	}
}

func TestEncode_EmptyPayload(t *testing.T) {
	data, err := Encode(testTag, nil)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if !bytes.Equal(data, []byte{'T', 'S', 0, 0}) {
		t.Fatalf("Encode = % x, want header only", data)
	}

	frame, err := Decode(bytes.NewReader(data), testTag)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if frame.Length != 0 || len(frame.Payload) != 0 {
		t.Errorf("frame = %+v, want empty payload", frame)
	}
}

func TestEncode_PayloadTooLarge(t *testing.T) {
	_, err := Encode(testTag, make([]byte, MaxPayloadSize+1))
	if !errors.Is(err, ErrPayloadTooLarge) {
		t.Fatalf("expected ErrPayloadTooLarge, got %v", err)
	}

	_, err = NewFrame(testTag, make([]byte, MaxPayloadSize+1))
	if !errors.Is(err, ErrPayloadTooLarge) {
		t.Fatalf("NewFrame: expected ErrPayloadTooLarge, got %v", err)
	}
}

func TestDecode_InvalidTag(t *testing.T) {
	data := []byte{'X', 'Y', 0x00, 0x05, 1, 2, 3, 4, 5}
	r := bytes.NewReader(data)

	_, err := Decode(r, testTag)
	if !errors.Is(err, ErrInvalidTag) {
		t.Fatalf("expected ErrInvalidTag, got %v", err)
	}

	var tagErr *TagError
	if !errors.As(err, &tagErr) {
		t.Fatalf("expected *TagError, got %T", err)
	}
	if tagErr.Got != (Tag{'X', 'Y'}) || tagErr.Want != testTag {
		t.Errorf("TagError = %+v", tagErr)
	}

	if consumed := len(data) - r.Len(); consumed != HeaderSize {
		t.Errorf("consumed %d bytes, want %d", consumed, HeaderSize)
	}
}

func TestDecode_TruncatedPayload(t *testing.T) {
	data := append([]byte{'T', 'S', 0x00, 0x0a}, 1, 2, 3, 4, 5)

	_, err := Decode(bytes.NewReader(data), testTag)
	if !errors.Is(err, ErrUnexpectedEOF) {
		t.Fatalf("expected ErrUnexpectedEOF, got %v", err)
	}
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Errorf("expected io.ErrUnexpectedEOF, got %v", err)
	}
	if IsGracefulClose(err) {
		t.Error("truncated payload reported as graceful close")
	}

	var eofErr *EOFError
	if !errors.As(err, &eofErr) {
		t.Fatalf("expected *EOFError, got %T", err)
	}
	if eofErr.Field != "payload" || eofErr.Got != 5 || eofErr.Want != 10 {
		t.Errorf("EOFError = %+v", eofErr)
	}
}

func TestDecode_TruncatedPayloadNoBytes(t *testing.T) {
	_, err := Decode(bytes.NewReader([]byte{'T', 'S', 0x00, 0x01}), testTag)
	if !errors.Is(err, ErrUnexpectedEOF) {
		t.Fatalf("expected ErrUnexpectedEOF, got %v", err)
	}
	if IsGracefulClose(err) {
		t.Error("missing payload reported as graceful close")
	}
}

func TestDecode_EOFAtBoundary(t *testing.T) {
	_, err := Decode(bytes.NewReader(nil), testTag)
	if !errors.Is(err, ErrUnexpectedEOF) {
		t.Fatalf("expected ErrUnexpectedEOF, got %v", err)
	}
	if !IsGracefulClose(err) {
		t.Errorf("EOF at frame boundary should be graceful, got %v", err)
	}

	var eofErr *EOFError
	if !errors.As(err, &eofErr) || !eofErr.AtBoundary() {
		t.Errorf("expected boundary *EOFError, got %v", err)
	}
}

func TestDecode_EOFMidHeader(t *testing.T) {
	_, err := Decode(bytes.NewReader([]byte{'T', 'S', 0x00}), testTag)
	if !errors.Is(err, ErrUnexpectedEOF) {
		t.Fatalf("expected ErrUnexpectedEOF, got %v", err)
	}
	if IsGracefulClose(err) {
		t.Error("EOF mid-header reported as graceful close")
	}
}

func TestDecode_TransportError(t *testing.T) {
	ioErr := errors.New("connection reset")

	_, err := Decode(errReader{err: ioErr}, testTag)
	if !errors.Is(err, ErrTransport) {
		t.Fatalf("expected ErrTransport, got %v", err)
	}
	if !errors.Is(err, ioErr) {
		t.Errorf("transport error does not wrap cause: %v", err)
	}
	if errors.Is(err, ErrUnexpectedEOF) {
		t.Error("transport error matched ErrUnexpectedEOF")
	}
}

func TestDecode_OneByteReads(t *testing.T) {
	first, _ := Encode(testTag, []byte("hello"))
	second, _ := Encode(testTag, randomPayload(t, 300))
	stream := iotest.OneByteReader(bytes.NewReader(append(first, second...)))

	f1, err := Decode(stream, testTag)
	if err != nil {
		t.Fatalf("first Decode failed: %v", err)
	}
	if string(f1.Payload) != "hello" {
		t.Errorf("first payload = %q", f1.Payload)
	}

	f2, err := Decode(stream, testTag)
	if err != nil {
		t.Fatalf("second Decode failed: %v", err)
	}
	if f2.Length != 300 {
		t.Errorf("second length = %d, want 300", f2.Length)
	}

	if _, err = Decode(stream, testTag); !IsGracefulClose(err) {
		t.Errorf("expected graceful close after last frame, got %v", err)
	}
}

func TestDecode_LengthIsBigEndian(t *testing.T) {
	data := append([]byte{'T', 'S', 0x01, 0x00}, make([]byte, 256)...)

	frame, err := Decode(bytes.NewReader(data), testTag)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if frame.Length != 256 {
		t.Errorf("Length = %d, want 256", frame.Length)
	}
}

func TestTagCodec(t *testing.T) {
	codec := NewCodec(testTag)
	if codec.Tag() != testTag {
		t.Errorf("Tag = %s, want TS", codec.Tag())
	}
	if codec.MaxPayload() != MaxPayloadSize {
		t.Errorf("MaxPayload = %d, want %d", codec.MaxPayload(), MaxPayloadSize)
	}

	frame, _ := NewFrame(testTag, []byte{0x00, 0xff, 0x10})
	data, err := codec.Encode(frame)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	got, err := codec.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if !bytes.Equal(got.Payload, frame.Payload) || got.Header != frame.Header {
		t.Errorf("Decode = %+v, want %+v", got, frame)
	}
}

func TestTagCodec_MaxPayload(t *testing.T) {
	codec := NewCodec(testTag, WithMaxPayload(8))

	ok, _ := Encode(testTag, make([]byte, 8))
	if _, err := codec.Decode(bytes.NewReader(ok)); err != nil {
		t.Fatalf("Decode at limit failed: %v", err)
	}

	tooLong, _ := Encode(testTag, make([]byte, 9))
	r := bytes.NewReader(tooLong)
	_, err := codec.Decode(r)
	if !errors.Is(err, ErrLengthExceeded) {
		t.Fatalf("expected ErrLengthExceeded, got %v", err)
	}
	if consumed := len(tooLong) - r.Len(); consumed != HeaderSize {
		t.Errorf("consumed %d bytes, want %d", consumed, HeaderSize)
	}
}

func TestWithMaxPayload_OutOfRange(t *testing.T) {
	for _, n := range []int{0, -1, MaxPayloadSize + 1} {
		if got := NewCodec(testTag, WithMaxPayload(n)).MaxPayload(); got != MaxPayloadSize {
			t.Errorf("WithMaxPayload(%d): MaxPayload = %d, want %d", n, got, MaxPayloadSize)
		}
	}
}

func TestParseTag(t *testing.T) {
	tag, err := ParseTag("TS")
	if err != nil {
		t.Fatalf("ParseTag failed: %v", err)
	}
	if tag != (Tag{'T', 'S'}) {
		t.Errorf("tag = %v", tag)
	}

	for _, bad := range []string{"", "T", "TSX"} {
		if _, err := ParseTag(bad); err == nil {
			t.Errorf("ParseTag(%q) should fail", bad)
		}
	}
}

func TestTag_String(t *testing.T) {
	if s := testTag.String(); s != "TS" {
		t.Errorf("String = %q, want TS", s)
	}
	if s := (Tag{0x00, 0xab}).String(); s != "0x00ab" {
		t.Errorf("String = %q, want 0x00ab", s)
	}
}

func FuzzDecode(f *testing.F) {
	valid, _ := Encode(testTag, []byte("abc"))
	f.Add(valid)
	f.Add([]byte{})
	f.Add([]byte{'T', 'S', 0xff, 0xff})
	f.Add([]byte{'X', 'Y', 0x00, 0x01, 0x00})

	f.Fuzz(func(t *testing.T, data []byte) {
		frame, err := Decode(bytes.NewReader(data), testTag)
		if err != nil {
			return
		}
		if int(frame.Length) != len(frame.Payload) {
			t.Fatalf("length %d does not match payload %d", frame.Length, len(frame.Payload))
		}

		out, err := Encode(frame.Tag, frame.Payload)
		if err != nil {
			t.Fatalf("re-encode failed: %v", err)
		}
		if !bytes.Equal(out, data[:frame.Size()]) {
			t.Errorf("re-encoded frame differs:\n  in:  %x\n  out: %x", data[:frame.Size()], out)
		}
	})
}
