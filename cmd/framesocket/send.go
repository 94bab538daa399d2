package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/Zereker/framesocket"
)

type sendFlags struct {
	hex     bool
	timeout time.Duration
}

func newSendCmd(g *globalFlags) *cobra.Command {
	s := &sendFlags{}

	cmd := &cobra.Command{
		Use:   "send PAYLOAD...",
		Short: "Send each payload as one frame and print the echo",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.resolve(cmd)
			if err != nil {
				return err
			}
			if err = cfg.validate(); err != nil {
				return err
			}

			payloads, err := s.payloads(args)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), s.timeout)
			defer cancel()
			return runSend(ctx, cfg, payloads, s.hex, cmd.OutOrStdout())
		},
	}

	cmd.Flags().BoolVar(&s.hex, "hex", false, "payloads are hex encoded; echoes are printed as hex")
	cmd.Flags().DurationVar(&s.timeout, "timeout", 5*time.Second, "overall deadline")
	return cmd
}

func (s *sendFlags) payloads(args []string) ([][]byte, error) {
	out := make([][]byte, 0, len(args))
	for _, a := range args {
		if !s.hex {
			out = append(out, []byte(a))
			continue
		}
		b, err := hex.DecodeString(a)
		if err != nil {
			return nil, errors.Wrapf(err, "decode payload %q", a)
		}
		out = append(out, b)
	}
	return out, nil
}

// runSend sends the payloads in order over one connection and prints each echo.
func runSend(ctx context.Context, cfg Config, payloads [][]byte, asHex bool, w io.Writer) error {
	tag, err := framesocket.ParseTag(cfg.Tag)
	if err != nil {
		return err
	}

	client, err := framesocket.Dial(ctx, cfg.Addr, tag)
	if err != nil {
		return err
	}
	defer client.Close()

	for _, p := range payloads {
		frame, err := client.Roundtrip(ctx, p)
		if err != nil {
			return err
		}
		body := string(frame.Payload)
		if asHex {
			body = hex.EncodeToString(frame.Payload)
		}
		fmt.Fprintf(w, "%s %d %s\n", frame.Tag, frame.Length, body)
	}
	return nil
}
