package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Zereker/framesocket"
)

// command is an application message carried as a frame payload.
// The framing layer never looks inside it.
type command struct {
	APDU []byte `json:"apdu_command"`
}

var tag = framesocket.MustParseTag("TS")

func main() {
	server, err := framesocket.Listen("127.0.0.1:12345",
		framesocket.ServerShutdownTimeoutOption(3*time.Second))
	if err != nil {
		slog.Error("failed to create server", "error", err)
		return
	}

	// Log the decoded command before each echo.
	observer := framesocket.OnFrameOption(func(f framesocket.Frame) error {
		var cmd command
		if err := json.Unmarshal(f.Payload, &cmd); err != nil {
			slog.Warn("payload is not a command", "len", f.Length)
			return nil
		}
		slog.Info("command", "apdu", cmd.APDU)
		return nil
	})

	handler := framesocket.NewEchoHandler(framesocket.TagOption(tag), observer)

	// Handle graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go sendCommands(ctx, server.Addr().String())

	slog.Info("server start", "addr", server.Addr())
	if err := server.Serve(ctx, handler); err != nil && ctx.Err() == nil {
		slog.Error("server error", "error", err)
	}
}

func sendCommands(ctx context.Context, addr string) {
	client, err := framesocket.Dial(ctx, addr, tag)
	if err != nil {
		slog.Error("dial failed", "error", err)
		return
	}
	defer client.Close()

	apdus := [][]byte{
		{0x00, 0xA4, 0x04, 0x00, 0x0A, 0xA0, 0x00, 0x00, 0x00, 0x62, 0x03, 0x01, 0x0C, 0x06, 0x01},
		{0x00, 0x20, 0x00, 0x80, 0x08, 0x31, 0x32, 0x33, 0x34, 0x35, 0x36, 0x37, 0x38},
		{0x00, 0xC0, 0x00, 0x00, 0x08},
	}
	for _, apdu := range apdus {
		payload, _ := json.Marshal(command{APDU: apdu})

		rctx, cancel := context.WithTimeout(ctx, time.Second)
		frame, err := client.Roundtrip(rctx, payload)
		cancel()
		if err != nil {
			slog.Error("roundtrip failed", "error", err)
			return
		}
		slog.Info("echo received", "tag", frame.Tag, "len", frame.Length)
	}
}
