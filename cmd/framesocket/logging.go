package main

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/Zereker/framesocket"
)

// newLogger builds the logger for format "text", "json" or "console".
func newLogger(level, format string, w io.Writer) (framesocket.Logger, error) {
	format = strings.ToLower(format)
	switch format {
	case "text", "json":
		var lvl slog.Level
		if err := lvl.UnmarshalText([]byte(level)); err != nil {
			return nil, errors.Wrapf(err, "log level %q", level)
		}
		opts := &slog.HandlerOptions{Level: lvl}
		if format == "json" {
			return slog.New(slog.NewJSONHandler(w, opts)), nil
		}
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "console":
		lvl, err := zerolog.ParseLevel(strings.ToLower(level))
		if err != nil {
			return nil, errors.Wrapf(err, "log level %q", level)
		}
		output := zerolog.ConsoleWriter{
			Out:        w,
			TimeFormat: time.RFC3339,
			NoColor:    true,
		}
		l := zerolog.New(output).Level(lvl).With().Timestamp().Str("app", "framesocket").Logger()
		return zerologLogger{l: l}, nil
	default:
		return nil, errors.Errorf("unknown log format %q", format)
	}
}

// zerologLogger adapts zerolog to framesocket.Logger.
type zerologLogger struct {
	l zerolog.Logger
}

func (z zerologLogger) Debug(msg string, args ...any) { z.l.Debug().Fields(fields(args)).Msg(msg) }
func (z zerologLogger) Info(msg string, args ...any)  { z.l.Info().Fields(fields(args)).Msg(msg) }
func (z zerologLogger) Warn(msg string, args ...any)  { z.l.Warn().Fields(fields(args)).Msg(msg) }
func (z zerologLogger) Error(msg string, args ...any) { z.l.Error().Fields(fields(args)).Msg(msg) }

// fields turns slog style key-value args into a zerolog field list.
// Stringers are rendered as text rather than marshaled as structs.
func fields(args []any) []any {
	out := make([]any, 0, len(args)+1)
	for i := 0; i < len(args); i += 2 {
		key, ok := args[i].(string)
		if !ok || i+1 >= len(args) {
			out = append(out, "!BADKEY", fmt.Sprint(args[i]))
			i--
			continue
		}
		val := args[i+1]
		switch v := val.(type) {
		case error:
			val = v.Error()
		case fmt.Stringer:
			val = v.String()
		}
		out = append(out, key, val)
	}
	return out
}
