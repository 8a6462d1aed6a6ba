// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/Thermoquad/roombactl/internal/config"
	"github.com/pion/logging"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var (
	// Serial connection flags
	portName string
	baudRate int

	// WebSocket connection flags
	wsURL         string
	wsUsername    string
	wsNoSSLVerify bool

	// Session flags
	envelopeName          string
	wordModeName          string
	reconnectDelay        time.Duration
	reconnectOnDisconnect bool

	// Logging flags
	logLevel string
	logFile  string

	configPath string

	// Loaded in PersistentPreRunE
	cfg *config.Config

	// logWriter is the open --log-file, if any
	logWriter io.WriteCloser
)

var rootCmd = &cobra.Command{
	Use:   "roombactl",
	Short: "Roomba Open Interface controller",
	Long: `roombactl - drive and monitor a Roomba over the Open Interface.

Talks to the robot directly over a serial port or through the WebSocket-to-UART
bridge, decodes sensor frames, and provides an interactive control panel.

Connection modes:
  Serial:    --port /dev/ttyUSB0 [--baud 115200]
  WebSocket: --url ws://host/ws [--username user]

For WebSocket authentication, the password is read from the ROOMBA_PASSWORD
environment variable, or prompted interactively if not set. The --password
flag is intentionally not provided to avoid leaking credentials in shell history.

Defaults for every flag can be set in the config file
(` + "`~/.config/roombactl/config.yaml`" + `); explicit flags win.`,
	Version:           "1.0.0",
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logWriter != nil {
			logWriter.Close()
		}
	},
}

func init() {
	defaults := config.Default()
	flags := rootCmd.PersistentFlags()

	// Serial connection flags
	flags.StringVarP(&portName, "port", "p", "", "Serial port device")
	flags.IntVarP(&baudRate, "baud", "b", defaults.Baud, "Baud rate (serial only)")

	// WebSocket connection flags
	flags.StringVarP(&wsURL, "url", "u", "", "WebSocket URL (ws:// or wss://)")
	flags.StringVar(&wsUsername, "username", "", "Username for HTTP Basic auth")
	flags.BoolVar(&wsNoSSLVerify, "no-ssl-verify", false, "Skip TLS certificate verification (wss:// only)")

	// Session flags
	flags.StringVar(&envelopeName, "envelope", defaults.Envelope, "Command envelope: json or binary (serial always sends binary)")
	flags.StringVar(&wordModeName, "word-mode", defaults.WordMode, "Sensor word decoding: truncated or bigendian")
	flags.DurationVar(&reconnectDelay, "reconnect-delay", defaults.ReconnectDelay, "Delay before reconnecting after the link drops")
	flags.BoolVar(&reconnectOnDisconnect, "reconnect-on-disconnect", false, "Reconnect even after a manual disconnect")

	// Logging flags
	flags.StringVar(&logLevel, "log-level", defaults.LogLevel, "Log level: off, error, warn, info, debug, trace")
	flags.StringVar(&logFile, "log-file", "", "Write logs to this file instead of stderr")

	flags.StringVar(&configPath, "config", config.DefaultPath(), "Config file")
}

// loadConfig reads the config file and fills every flag the user did not set
func loadConfig(cmd *cobra.Command, args []string) error {
	loaded, err := config.Load(configPath)
	if err != nil {
		return err
	}
	cfg = loaded

	return applyConfig(cmd.Flags(), cfg)
}

// applyConfig copies config values into flags that were not set explicitly
func applyConfig(flags *pflag.FlagSet, c *config.Config) error {
	values := map[string]string{
		"port":                    c.Port,
		"baud":                    strconv.Itoa(c.Baud),
		"url":                     c.URL,
		"username":                c.Username,
		"no-ssl-verify":           strconv.FormatBool(c.NoSSLVerify),
		"envelope":                c.Envelope,
		"word-mode":               c.WordMode,
		"reconnect-delay":         c.ReconnectDelay.String(),
		"reconnect-on-disconnect": strconv.FormatBool(c.ReconnectOnDisconnect),
		"log-level":               c.LogLevel,
		"log-file":                c.LogFile,
	}

	// The endpoint is one choice: an explicit --port or --url replaces both
	// config entries
	if changed(flags, "port") || changed(flags, "url") {
		delete(values, "port")
		delete(values, "url")
	}

	for name, value := range values {
		flag := flags.Lookup(name)
		if flag == nil || flag.Changed {
			continue
		}
		if err := flag.Value.Set(value); err != nil {
			return fmt.Errorf("config %s: %w", name, err)
		}
	}
	return nil
}

func changed(flags *pflag.FlagSet, name string) bool {
	flag := flags.Lookup(name)
	return flag != nil && flag.Changed
}

// newLoggerFactory builds the pion logger factory from --log-level and
// --log-file. With quiet set and no log file, logging is disabled so the
// terminal UI is not disturbed.
func newLoggerFactory(quiet bool) (logging.LoggerFactory, error) {
	level, err := config.ParseLogLevel(logLevel)
	if err != nil {
		return nil, err
	}

	factory := logging.NewDefaultLoggerFactory()
	factory.ScopeLevels = map[string]logging.LogLevel{}
	factory.DefaultLogLevel = level
	factory.Writer = os.Stderr

	switch {
	case logFile != "":
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		logWriter = f
		factory.Writer = f
	case quiet:
		factory.DefaultLogLevel = logging.LogLevelDisabled
	}

	return factory, nil
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}
