// Command framesocket runs and exercises a tag + length framed echo server.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var version = "dev"

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configFile string
	addr       string
	tag        string
	logLevel   string
	logFormat  string
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}

	root := &cobra.Command{
		Use:           "framesocket",
		Short:         "Tag + length framed TCP echo server and client",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&g.configFile, "config", "c", "", "config file (.toml, .yaml or .yml)")
	pf.StringVar(&g.addr, "addr", "", "server address")
	pf.StringVar(&g.tag, "tag", "", "2-byte frame tag")
	pf.StringVar(&g.logLevel, "log-level", "", "log level: debug, info, warn, error")
	pf.StringVar(&g.logFormat, "log-format", "", "log format: text, json, console")

	root.AddCommand(newServeCmd(g), newSendCmd(g), newVersionCmd())
	return root
}

// resolve loads the config file, if any, and applies flags set on cmd.
func (g *globalFlags) resolve(cmd *cobra.Command) (Config, error) {
	cfg := defaultConfig()
	if g.configFile != "" {
		var err error
		if cfg, err = loadConfig(g.configFile); err != nil {
			return Config{}, err
		}
	}

	flags := cmd.Flags()
	if flags.Changed("addr") {
		cfg.Addr = g.addr
	}
	if flags.Changed("tag") {
		cfg.Tag = g.tag
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = g.logLevel
	}
	if flags.Changed("log-format") {
		cfg.LogFormat = g.logFormat
	}
	return cfg, nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "framesocket", version)
		},
	}
}

func durationFlag(cmd *cobra.Command, name string, dst *time.Duration) {
	if cmd.Flags().Changed(name) {
		*dst, _ = cmd.Flags().GetDuration(name)
	}
}

func intFlag(cmd *cobra.Command, name string, dst *int) {
	if cmd.Flags().Changed(name) {
		*dst, _ = cmd.Flags().GetInt(name)
	}
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "framesocket:", err)
		os.Exit(1)
	}
}
