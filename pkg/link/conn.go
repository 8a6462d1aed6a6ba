// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package link

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Thermoquad/roombactl/pkg/oi"
)

// MessageKind distinguishes text and binary messages on a connection
type MessageKind int

const (
	BinaryMessage MessageKind = iota + 1
	TextMessage
)

// String returns the message kind name
func (k MessageKind) String() string {
	switch k {
	case BinaryMessage:
		return "binary"
	case TextMessage:
		return "text"
	default:
		return "unknown"
	}
}

// Conn is a message-oriented connection to the robot or its bridge.
// ReadMessage is only called from one goroutine; WriteMessage calls are
// serialised by the session.
type Conn interface {
	ReadMessage() (MessageKind, []byte, error)
	WriteMessage(kind MessageKind, data []byte) error
	Close() error
}

// Dialer opens connections for a session
type Dialer interface {
	Dial(ctx context.Context) (Conn, error)
	String() string
}

// Envelope selects how outbound commands are wrapped
type Envelope int

const (
	// EnvelopeJSON sends {"commands":[...]} as a text message, the form the
	// WebSocket-to-UART bridge expects
	EnvelopeJSON Envelope = iota
	// EnvelopeBinary sends the raw command bytes as a binary message
	EnvelopeBinary
)

// String returns the flag spelling of the envelope
func (e Envelope) String() string {
	switch e {
	case EnvelopeJSON:
		return "json"
	case EnvelopeBinary:
		return "binary"
	default:
		return "unknown"
	}
}

// ParseEnvelope parses "json" or "binary"
func ParseEnvelope(s string) (Envelope, error) {
	switch s {
	case "json", "":
		return EnvelopeJSON, nil
	case "binary", "raw":
		return EnvelopeBinary, nil
	default:
		return EnvelopeJSON, fmt.Errorf("unknown envelope %q (use json or binary): %w", s, oi.ErrInvalidArgument)
	}
}

// CommandEnvelope is the JSON body of a text command message
type CommandEnvelope struct {
	Commands []int `json:"commands"`
}

// Encode wraps a command for the wire
func (e Envelope) Encode(cmd oi.Command) (MessageKind, []byte, error) {
	if cmd.IsZero() {
		return 0, nil, fmt.Errorf("empty command: %w", oi.ErrInvalidArgument)
	}
	if e == EnvelopeBinary {
		return BinaryMessage, cmd.Bytes(), nil
	}
	data, err := json.Marshal(CommandEnvelope{Commands: cmd.Ints()})
	if err != nil {
		return 0, nil, fmt.Errorf("failed to encode command envelope: %w", err)
	}
	return TextMessage, data, nil
}

// DecodeEnvelope parses a JSON command envelope into wire bytes. Every value
// must be in 0..255 and at least one must be present.
func DecodeEnvelope(data []byte) ([]byte, error) {
	var env CommandEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("invalid command envelope: %v: %w", err, oi.ErrInvalidArgument)
	}
	if len(env.Commands) == 0 {
		return nil, fmt.Errorf("command envelope has no bytes: %w", oi.ErrInvalidArgument)
	}

	out := make([]byte, len(env.Commands))
	for i, v := range env.Commands {
		if v < 0 || v > 255 {
			return nil, fmt.Errorf("command byte %d = %d out of range 0-255: %w", i, v, oi.ErrInvalidArgument)
		}
		out[i] = byte(v)
	}
	return out, nil
}
