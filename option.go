package framesocket

import (
	"time"
)

// options holds the configuration for a connection.
type options struct {
	codec  Codec
	logger Logger

	tag        Tag
	hasTag     bool
	maxPayload int

	// onFrame observes each decoded frame before it is echoed.
	// A non-nil return aborts the connection.
	onFrame func(Frame) error
	// onError is notified of the error that aborted the connection.
	onError func(error)

	bufferSize  int           // size of the read buffer
	idleTimeout time.Duration // read/write deadline, zero disables
}

// Option is a function that configures connection options.
type Option func(*options)

// TagOption returns an Option that sets the tag every incoming frame must carry.
// Either TagOption or CustomCodecOption is required.
func TagOption(tag Tag) Option {
	return func(o *options) {
		o.tag = tag
		o.hasTag = true
	}
}

// CustomCodecOption returns an Option that replaces the default TagCodec.
func CustomCodecOption(codec Codec) Option {
	return func(o *options) {
		o.codec = codec
	}
}

// MaxPayloadOption returns an Option that lowers the largest payload accepted
// by the default codec. Ignored when CustomCodecOption is set.
func MaxPayloadOption(size int) Option {
	return func(o *options) {
		o.maxPayload = size
	}
}

// BufferSizeOption returns an Option that sets the size of the read buffer.
func BufferSizeOption(size int) Option {
	return func(o *options) {
		o.bufferSize = size
	}
}

// IdleTimeoutOption returns an Option that bounds each read and each write.
// A connection idle for longer than timeout is aborted. Zero means no timeout.
func IdleTimeoutOption(timeout time.Duration) Option {
	return func(o *options) {
		o.idleTimeout = timeout
	}
}

// OnFrameOption returns an Option that sets the frame observer.
// The callback runs after a frame is decoded and before it is echoed.
// Returning an error closes the connection without echoing the frame.
func OnFrameOption(cb func(Frame) error) Option {
	return func(o *options) {
		o.onFrame = cb
	}
}

// OnErrorOption returns an Option that sets the error callback.
// It is called once with the error that closed the connection.
// Graceful closes and cancellation are not reported.
func OnErrorOption(cb func(error)) Option {
	return func(o *options) {
		o.onError = cb
	}
}

// LoggerOption returns an Option that sets the logger.
// If not set, the default slog logger will be used.
func LoggerOption(logger Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}
