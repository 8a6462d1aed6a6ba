// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package oi

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestOpcodeName(t *testing.T) {
	tests := []struct {
		op   byte
		want string
	}{
		{OpStart, "START"},
		{OpReboot, "REBOOT"},
		{OpDrivePWM, "DRIVE_PWM"},
		{OpSensors, "SENSORS"},
		{OpStop, "STOP"},
		{0, "UNKNOWN"},
	}
	for _, tt := range tests {
		if got := OpcodeName(tt.op); got != tt.want {
			t.Errorf("OpcodeName(%d) = %q, want %q", tt.op, got, tt.want)
		}
	}
}

func TestFormatCommand(t *testing.T) {
	pwm, _ := DrivePWM(-100, 200)
	drive, _ := DriveVelocityRadius(300, -1)

	tests := []struct {
		name string
		cmd  Command
		want string
	}{
		{"start", Start(), "START [128]"},
		{"pwm", pwm, "DRIVE_PWM [146 255 156 0 200] right=-100 left=200"},
		{"drive", drive, "DRIVE [137 1 44 255 255] velocity=300 radius=-1"},
		{"motors", Motors(MotorState{SideBrush: true, Vacuum: true}), "MOTORS [138 3] SIDE|VAC"},
		{"motors off", Motors(MotorState{}), "MOTORS [138 0] off"},
		{"empty", Command{}, "EMPTY []"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cmd.String(); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFormatFrame(t *testing.T) {
	f, err := DecodeSensors(frameWith(map[int]byte{0: 0x02, offButtons: 0x01, offChargingState: 1}))
	if err != nil {
		t.Fatal(err)
	}
	out := FormatFrame(f, time.Date(2025, 1, 1, 12, 30, 0, 0, time.UTC))

	for _, want := range []string{"[12:30:00.000]", "Bump: left=ON right=off", "Buttons: MAX", "RECONDITIONING (1)"} {
		if !strings.Contains(out, want) {
			t.Errorf("FormatFrame missing %q:\n%s", want, out)
		}
	}
}

func TestFormatHex(t *testing.T) {
	if got := FormatHex([]byte{0x8E, 0x00}); got != "8E 00" {
		t.Errorf("got %q", got)
	}
	lines := strings.Split(FormatHex(make([]byte, 20)), "\n")
	if len(lines) != 2 {
		t.Errorf("expected 2 lines for 20 bytes, got %d", len(lines))
	}
}

func TestFrameRecord_CBOR(t *testing.T) {
	raw := frameWith(map[int]byte{0: 0x03, offWall: 2, offChargingState: 4, offTemperature: 0xF0})
	f, _ := DecodeSensors(raw)
	ts := time.Date(2025, 6, 1, 8, 0, 0, 123456789, time.UTC)
	rec := NewFrameRecord(ts, f, raw, ValidateFrame(raw))

	if len(rec.Warnings) != 1 {
		t.Fatalf("expected 1 warning, got %v", rec.Warnings)
	}

	data, err := MarshalFrameCBOR(rec)
	if err != nil {
		t.Fatalf("MarshalFrameCBOR error: %v", err)
	}
	got, err := UnmarshalFrameCBOR(data)
	if err != nil {
		t.Fatalf("UnmarshalFrameCBOR error: %v", err)
	}

	if !got.Time.Equal(ts) {
		t.Errorf("Time = %v, want %v", got.Time, ts)
	}
	if got.Frame != f {
		t.Errorf("Frame = %+v, want %+v", got.Frame, f)
	}
	if !bytes.Equal(got.Raw, raw) {
		t.Errorf("Raw = %v, want %v", got.Raw, raw)
	}
	if len(got.Warnings) != 1 || got.Warnings[0] != rec.Warnings[0] {
		t.Errorf("Warnings = %v", got.Warnings)
	}
}

func TestFrameRecord_JSON(t *testing.T) {
	raw := frameWith(map[int]byte{0: 0x01})
	f, _ := DecodeSensors(raw)
	data, err := MarshalFrameJSON(NewFrameRecord(time.Unix(0, 0).UTC(), f, raw, nil))
	if err != nil {
		t.Fatalf("MarshalFrameJSON error: %v", err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if _, ok := decoded["warnings"]; ok {
		t.Error("warnings should be omitted for a clean frame")
	}
	frame := decoded["frame"].(map[string]interface{})
	bump := frame["bump"].(map[string]interface{})
	if bump["right"] != true || bump["left"] != false {
		t.Errorf("bump = %v", bump)
	}
	// Every flag is present even when false
	wheeldrop := frame["wheeldrop"].(map[string]interface{})
	if _, ok := wheeldrop["caster"]; !ok {
		t.Error("false flags must still be present")
	}
}
