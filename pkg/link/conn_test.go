// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package link

import (
	"bytes"
	"errors"
	"testing"

	"github.com/Thermoquad/roombactl/pkg/oi"
)

func TestEnvelope_Encode(t *testing.T) {
	pwm, _ := oi.DrivePWM(-1, 0)

	tests := []struct {
		name     string
		envelope Envelope
		cmd      oi.Command
		wantKind MessageKind
		want     string
	}{
		{"json sensors", EnvelopeJSON, oi.SensorsRequest(0), TextMessage, `{"commands":[142,0]}`},
		{"json pwm", EnvelopeJSON, pwm, TextMessage, `{"commands":[146,255,255,0,0]}`},
		{"json honk", EnvelopeJSON, oi.Honk(), TextMessage, `{"commands":[141,1]}`},
		{"binary sensors", EnvelopeBinary, oi.SensorsRequest(0), BinaryMessage, "\x8e\x00"},
		{"binary pwm", EnvelopeBinary, pwm, BinaryMessage, "\x92\xff\xff\x00\x00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kind, data, err := tt.envelope.Encode(tt.cmd)
			if err != nil {
				t.Fatalf("Encode error: %v", err)
			}
			if kind != tt.wantKind {
				t.Errorf("kind = %s, want %s", kind, tt.wantKind)
			}
			if !bytes.Equal(data, []byte(tt.want)) {
				t.Errorf("data = %q, want %q", data, tt.want)
			}
		})
	}

	if _, _, err := EnvelopeJSON.Encode(oi.Command{}); !errors.Is(err, oi.ErrInvalidArgument) {
		t.Errorf("empty command: expected ErrInvalidArgument, got %v", err)
	}
}

func TestDecodeEnvelope(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    []byte
		wantErr bool
	}{
		{"sensors", `{"commands":[142,0]}`, []byte{142, 0}, false},
		{"init song", `{"commands":[140,1,2,60,16,60,16]}`, []byte{140, 1, 2, 60, 16, 60, 16}, false},
		{"extra fields ignored", `{"commands":[128],"id":7}`, []byte{128}, false},
		{"not json", `128,132`, nil, true},
		{"missing commands", `{}`, nil, true},
		{"empty commands", `{"commands":[]}`, nil, true},
		{"value too large", `{"commands":[256]}`, nil, true},
		{"negative value", `{"commands":[-1]}`, nil, true},
		{"fractional value", `{"commands":[1.5]}`, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeEnvelope([]byte(tt.in))
			if tt.wantErr {
				if !errors.Is(err, oi.ErrInvalidArgument) {
					t.Errorf("expected ErrInvalidArgument, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !bytes.Equal(got, tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseEnvelope(t *testing.T) {
	tests := []struct {
		in      string
		want    Envelope
		wantErr bool
	}{
		{"", EnvelopeJSON, false},
		{"json", EnvelopeJSON, false},
		{"binary", EnvelopeBinary, false},
		{"raw", EnvelopeBinary, false},
		{"cbor", EnvelopeJSON, true},
	}
	for _, tt := range tests {
		got, err := ParseEnvelope(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseEnvelope(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParseEnvelope(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestValidateWebSocketURL(t *testing.T) {
	tests := []struct {
		url     string
		wantErr bool
	}{
		{"ws://192.168.4.1/ws", false},
		{"wss://roomba.local/ws", false},
		{"http://roomba.local/ws", true},
		{"/dev/ttyUSB0", true},
		{"://bad", true},
	}
	for _, tt := range tests {
		err := ValidateWebSocketURL(tt.url)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidateWebSocketURL(%q) error = %v, wantErr %v", tt.url, err, tt.wantErr)
		}
	}
}
