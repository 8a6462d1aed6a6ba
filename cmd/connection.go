// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/Thermoquad/roombactl/pkg/link"
	"github.com/Thermoquad/roombactl/pkg/oi"
	"golang.org/x/term"
)

// passwordEnv holds the WebSocket Basic auth password
const passwordEnv = "ROOMBA_PASSWORD"

// errNoEndpoint is returned when neither --port nor --url is given
var errNoEndpoint = errors.New("either --port or --url must be specified")

// GetPassword retrieves password from environment or prompts user
func GetPassword() (string, error) {
	// First check environment variable
	if pw := os.Getenv(passwordEnv); pw != "" {
		return pw, nil
	}

	// Prompt user for password (hide input)
	fmt.Fprint(os.Stderr, "Password: ")

	// Read password without echo
	passwordBytes, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		// Fallback to regular input if terminal functions fail
		reader := bufio.NewReader(os.Stdin)
		password, err := reader.ReadString('\n')
		if err != nil {
			return "", fmt.Errorf("failed to read password: %v", err)
		}
		fmt.Fprintln(os.Stderr) // newline after password
		return strings.TrimSpace(password), nil
	}

	fmt.Fprintln(os.Stderr) // newline after password
	return string(passwordBytes), nil
}

// newDialer builds the dialer and envelope from the connection flags.
// A direct serial link always sends raw binary commands.
func newDialer() (link.Dialer, link.Envelope, error) {
	if wsURL != "" {
		envelope, err := link.ParseEnvelope(envelopeName)
		if err != nil {
			return nil, 0, err
		}

		password := ""
		if wsUsername != "" {
			password, err = GetPassword()
			if err != nil {
				return nil, 0, err
			}
		}

		dialer, err := link.NewWebSocketDialer(wsURL, wsUsername, password, wsNoSSLVerify)
		if err != nil {
			return nil, 0, err
		}
		return dialer, envelope, nil
	}

	if portName != "" {
		return &link.SerialDialer{Port: portName, BaudRate: baudRate}, link.EnvelopeBinary, nil
	}

	return nil, 0, errNoEndpoint
}

// sessionConfig builds the session configuration from the flags
func sessionConfig(quiet bool) (link.Config, error) {
	dialer, envelope, err := newDialer()
	if err != nil {
		return link.Config{}, err
	}

	wordMode, err := oi.ParseWordMode(wordModeName)
	if err != nil {
		return link.Config{}, err
	}

	factory, err := newLoggerFactory(quiet)
	if err != nil {
		return link.Config{}, err
	}

	return link.Config{
		Dialer:         dialer,
		Envelope:       envelope,
		WordMode:       wordMode,
		ReconnectDelay: reconnectDelay,
		Policy: link.Policy{
			ReconnectAfterDisconnect: reconnectOnDisconnect,
		},
		LoggerFactory: factory,
	}, nil
}

// OpenSession creates a session from the flags. The session starts
// disconnected; call Connect.
func OpenSession(quiet bool) (*link.Session, error) {
	cfg, err := sessionConfig(quiet)
	if err != nil {
		return nil, err
	}
	return link.NewSession(cfg)
}

// connectAndWait connects and blocks until the session is connected, the
// first attempt fails or the timeout expires
func connectAndWait(s *link.Session, timeout time.Duration) error {
	states := make(chan link.State, 8)
	errs := make(chan error, 1)
	s.Subscribe(link.ObserverFuncs{
		State: func(st link.State) {
			select {
			case states <- st:
			default:
			}
		},
		Error: func(err error) {
			select {
			case errs <- err:
			default:
			}
		},
	})

	s.Connect()

	deadline := time.After(timeout)
	for {
		select {
		case st := <-states:
			if st == link.Connected {
				return nil
			}
		case err := <-errs:
			return err
		case <-deadline:
			return fmt.Errorf("timed out connecting to %s", s.Endpoint())
		}
	}
}
