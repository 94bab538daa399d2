package main

import (
	"context"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/Zereker/framesocket"
)

func newServeCmd(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Echo every frame back to its sender",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := g.resolve(cmd)
			if err != nil {
				return err
			}
			intFlag(cmd, "max-payload", &cfg.MaxPayload)
			intFlag(cmd, "read-buffer", &cfg.ReadBuffer)
			durationFlag(cmd, "idle-timeout", &cfg.IdleTimeout)
			durationFlag(cmd, "shutdown-timeout", &cfg.ShutdownTimeout)

			logger, err := newLogger(cfg.LogLevel, cfg.LogFormat, cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return runServe(ctx, cfg, logger, nil)
		},
	}

	f := cmd.Flags()
	f.Int("max-payload", framesocket.MaxPayloadSize, "largest payload accepted")
	f.Int("read-buffer", 4096, "per-connection read buffer size")
	f.Duration("idle-timeout", 0, "abort connections idle this long (0 disables)")
	f.Duration("shutdown-timeout", 5*time.Second, "how long to drain connections on shutdown")
	return cmd
}

// runServe serves until ctx ends. ready, when non-nil, receives the bound address.
func runServe(ctx context.Context, cfg Config, logger framesocket.Logger, ready chan<- net.Addr) error {
	if err := cfg.validate(); err != nil {
		return err
	}
	tag, _ := framesocket.ParseTag(cfg.Tag)

	server, err := framesocket.Listen(cfg.Addr,
		framesocket.ServerLoggerOption(logger),
		framesocket.ServerShutdownTimeoutOption(cfg.ShutdownTimeout),
	)
	if err != nil {
		return err
	}
	defer server.Close()

	handler := framesocket.NewEchoHandler(
		framesocket.TagOption(tag),
		framesocket.MaxPayloadOption(cfg.MaxPayload),
		framesocket.BufferSizeOption(cfg.ReadBuffer),
		framesocket.IdleTimeoutOption(cfg.IdleTimeout),
		framesocket.LoggerOption(logger),
	)

	if ready != nil {
		ready <- server.Addr()
	}

	err = server.Serve(ctx, handler)

	st := handler.Stats()
	logger.Info("echo totals",
		"connections", handler.Accepted(),
		"failed", handler.Failed(),
		"frames", st.FramesIn,
		"bytes_in", st.BytesIn,
		"bytes_out", st.BytesOut)

	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
