// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package config loads roombactl defaults from a YAML file. Command-line
// flags that are set explicitly always win over the file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Thermoquad/roombactl/pkg/link"
	"github.com/Thermoquad/roombactl/pkg/oi"
	"github.com/pion/logging"
	"gopkg.in/yaml.v3"
)

// Config holds the roombactl configuration
type Config struct {
	// Connection
	Port        string `yaml:"port"`
	Baud        int    `yaml:"baud"`
	URL         string `yaml:"url"`
	Username    string `yaml:"username"`
	NoSSLVerify bool   `yaml:"no_ssl_verify"`

	// Session
	Envelope              string        `yaml:"envelope"`
	WordMode              string        `yaml:"word_mode"`
	ReconnectDelay        time.Duration `yaml:"reconnect_delay"`
	ReconnectOnDisconnect bool          `yaml:"reconnect_on_disconnect"`

	// Logging
	LogLevel string `yaml:"log_level"`
	LogFile  string `yaml:"log_file"`

	Bridge Bridge `yaml:"bridge"`
}

// Bridge holds the bridge command settings
type Bridge struct {
	Addr         string        `yaml:"addr"`
	InitSequence bool          `yaml:"init_sequence"`
	InitDelay    time.Duration `yaml:"init_delay"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Baud:           link.DefaultBaudRate,
		Envelope:       link.EnvelopeJSON.String(),
		WordMode:       oi.WordTruncated.String(),
		ReconnectDelay: link.DefaultReconnectDelay,
		LogLevel:       "warn",
		Bridge: Bridge{
			Addr:      ":8080",
			InitDelay: 500 * time.Millisecond,
		},
	}
}

// DefaultPath returns the default config file path: ~/.config/roombactl/config.yaml
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return filepath.Join(".", "roombactl.yaml")
	}
	return filepath.Join(dir, "roombactl", "config.yaml")
}

// Load reads the configuration from the given YAML file path.
// If the file does not exist, it returns the defaults with no error.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return cfg, nil
}

// Validate checks the enumerated settings
func (c *Config) Validate() error {
	var errs []error
	if _, err := link.ParseEnvelope(c.Envelope); err != nil {
		errs = append(errs, err)
	}
	if _, err := oi.ParseWordMode(c.WordMode); err != nil {
		errs = append(errs, err)
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if c.Baud <= 0 {
		errs = append(errs, fmt.Errorf("baud must be positive, got %d", c.Baud))
	}
	if c.ReconnectDelay < 0 {
		errs = append(errs, fmt.Errorf("reconnect_delay must not be negative, got %s", c.ReconnectDelay))
	}
	return errors.Join(errs...)
}

// ParseLogLevel parses a pion/logging level name
func ParseLogLevel(s string) (logging.LogLevel, error) {
	switch strings.ToLower(s) {
	case "disabled", "off", "none":
		return logging.LogLevelDisabled, nil
	case "error":
		return logging.LogLevelError, nil
	case "warn", "warning", "":
		return logging.LogLevelWarn, nil
	case "info":
		return logging.LogLevelInfo, nil
	case "debug":
		return logging.LogLevelDebug, nil
	case "trace":
		return logging.LogLevelTrace, nil
	default:
		return logging.LogLevelDisabled, fmt.Errorf("unknown log level %q", s)
	}
}
