package main

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/Zereker/framesocket"
)

// Config is the resolved configuration of the CLI.
type Config struct {
	Addr            string
	Tag             string
	MaxPayload      int
	ReadBuffer      int
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	LogLevel        string
	LogFormat       string
}

func defaultConfig() Config {
	return Config{
		Addr:            "127.0.0.1:12345",
		Tag:             "TS",
		MaxPayload:      framesocket.MaxPayloadSize,
		ReadBuffer:      4096,
		ShutdownTimeout: 5 * time.Second,
		LogLevel:        "info",
		LogFormat:       "text",
	}
}

// fileConfig mirrors the config file. Nil fields were not set in the file.
type fileConfig struct {
	Addr            *string `toml:"addr" yaml:"addr"`
	Tag             *string `toml:"tag" yaml:"tag"`
	MaxPayload      *int    `toml:"max_payload" yaml:"max_payload"`
	ReadBuffer      *int    `toml:"read_buffer" yaml:"read_buffer"`
	IdleTimeout     *string `toml:"idle_timeout" yaml:"idle_timeout"`
	ShutdownTimeout *string `toml:"shutdown_timeout" yaml:"shutdown_timeout"`
	LogLevel        *string `toml:"log_level" yaml:"log_level"`
	LogFormat       *string `toml:"log_format" yaml:"log_format"`
}

// loadConfig reads path over the defaults. The format follows the extension:
// .toml, or .yaml / .yml.
func loadConfig(path string) (Config, error) {
	cfg := defaultConfig()

	var raw fileConfig
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		meta, err := toml.DecodeFile(path, &raw)
		if err != nil {
			return Config{}, errors.Wrap(err, "load config")
		}
		if undecoded := meta.Undecoded(); len(undecoded) > 0 {
			return Config{}, errors.Errorf("load config: unknown key %q", undecoded[0].String())
		}
	case ".yaml", ".yml":
		f, err := os.Open(path)
		if err != nil {
			return Config{}, errors.Wrap(err, "load config")
		}
		defer f.Close()

		dec := yaml.NewDecoder(f)
		dec.KnownFields(true)
		if err = dec.Decode(&raw); err != nil && !errors.Is(err, io.EOF) {
			return Config{}, errors.Wrap(err, "load config")
		}
	default:
		return Config{}, errors.Errorf("load config: unsupported format %q", filepath.Ext(path))
	}

	if err := raw.apply(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (raw fileConfig) apply(cfg *Config) error {
	if raw.Addr != nil {
		cfg.Addr = strings.TrimSpace(*raw.Addr)
	}
	if raw.Tag != nil {
		cfg.Tag = *raw.Tag
	}
	if raw.MaxPayload != nil {
		cfg.MaxPayload = *raw.MaxPayload
	}
	if raw.ReadBuffer != nil {
		cfg.ReadBuffer = *raw.ReadBuffer
	}
	if raw.IdleTimeout != nil {
		d, err := time.ParseDuration(strings.TrimSpace(*raw.IdleTimeout))
		if err != nil {
			return errors.Wrap(err, "parse idle_timeout")
		}
		cfg.IdleTimeout = d
	}
	if raw.ShutdownTimeout != nil {
		d, err := time.ParseDuration(strings.TrimSpace(*raw.ShutdownTimeout))
		if err != nil {
			return errors.Wrap(err, "parse shutdown_timeout")
		}
		cfg.ShutdownTimeout = d
	}
	if raw.LogLevel != nil {
		cfg.LogLevel = strings.TrimSpace(*raw.LogLevel)
	}
	if raw.LogFormat != nil {
		cfg.LogFormat = strings.TrimSpace(*raw.LogFormat)
	}
	return nil
}

// validate checks the values a server or client cannot start without.
func (c Config) validate() error {
	if c.Addr == "" {
		return errors.New("addr must not be empty")
	}
	if _, err := framesocket.ParseTag(c.Tag); err != nil {
		return err
	}
	if c.MaxPayload <= 0 || c.MaxPayload > framesocket.MaxPayloadSize {
		return errors.Errorf("max_payload must be in 1..%d, got %d", framesocket.MaxPayloadSize, c.MaxPayload)
	}
	if c.ReadBuffer < framesocket.HeaderSize {
		return errors.Errorf("read_buffer must be at least %d, got %d", framesocket.HeaderSize, c.ReadBuffer)
	}
	if c.IdleTimeout < 0 || c.ShutdownTimeout < 0 {
		return errors.New("timeouts must not be negative")
	}
	return nil
}
