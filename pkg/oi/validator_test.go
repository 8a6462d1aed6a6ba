// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package oi

import (
	"fmt"
	"strings"
	"testing"
)

func TestValidateFrame(t *testing.T) {
	tests := []struct {
		name      string
		raw       []byte
		wantTypes []AnomalyType
	}{
		{"clean zero frame", frameWith(nil), nil},
		{"clean busy frame", frameWith(map[int]byte{0: 0x1F, offWall: 1, offButtons: 0x0F, offChargingState: 5}), nil},
		{"short frame", make([]byte, 10), []AnomalyType{AnomalyLengthMismatch}},
		{"reserved bump bits", frameWith(map[int]byte{0: 0x20}), []AnomalyType{AnomalyReservedBits}},
		{"reserved overcurrent bits", frameWith(map[int]byte{offOvercurrent: 0x80}), []AnomalyType{AnomalyReservedBits}},
		{"reserved button bits", frameWith(map[int]byte{offButtons: 0x10}), []AnomalyType{AnomalyReservedBits}},
		{"wall not boolean", frameWith(map[int]byte{offWall: 2}), []AnomalyType{AnomalyInvalidBoolean}},
		{"two cliffs not boolean", frameWith(map[int]byte{offCliff: 7, offCliff + 3: 0xFF}), []AnomalyType{AnomalyInvalidBoolean, AnomalyInvalidBoolean}},
		{"virtual wall not boolean", frameWith(map[int]byte{offVirtualWall: 9}), []AnomalyType{AnomalyInvalidBoolean}},
		{"charging state out of range", frameWith(map[int]byte{offChargingState: 6}), []AnomalyType{AnomalyInvalidChargingState}},
		{"multiple anomalies", frameWith(map[int]byte{0: 0xFF, offChargingState: 200}), []AnomalyType{AnomalyReservedBits, AnomalyInvalidChargingState}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := ValidateFrame(tt.raw)
			if len(errs) != len(tt.wantTypes) {
				t.Fatalf("got %d errors (%v), want %d", len(errs), errs, len(tt.wantTypes))
			}
			for i, e := range errs {
				if e.Type != tt.wantTypes[i] {
					t.Errorf("error %d type = %s, want %s", i, e.Type, tt.wantTypes[i])
				}
				if e.Message == "" {
					t.Errorf("error %d has empty message", i)
				}
			}
		})
	}
}

func TestValidateFrame_Offsets(t *testing.T) {
	errs := ValidateFrame(frameWith(map[int]byte{offCliff + 2: 3}))
	if len(errs) != 1 {
		t.Fatalf("expected 1 error, got %d", len(errs))
	}
	if errs[0].Offset != offCliff+2 {
		t.Errorf("Offset = %d, want %d", errs[0].Offset, offCliff+2)
	}
	if !strings.Contains(errs[0].Error(), "cliff[2]") {
		t.Errorf("message should name the field, got %q", errs[0].Error())
	}
}

func TestAnomalyType_String(t *testing.T) {
	tests := []struct {
		a    AnomalyType
		want string
	}{
		{AnomalyLengthMismatch, "LENGTH_MISMATCH"},
		{AnomalyReservedBits, "RESERVED_BITS"},
		{AnomalyInvalidBoolean, "INVALID_BOOLEAN"},
		{AnomalyInvalidChargingState, "INVALID_CHARGING_STATE"},
		{AnomalyType(42), "UNKNOWN"},
	}
	for _, tt := range tests {
		if got := tt.a.String(); got != tt.want {
			t.Errorf("AnomalyType(%d).String() = %q, want %q", tt.a, got, tt.want)
		}
	}
}

func TestStatistics(t *testing.T) {
	s := NewStatistics()

	s.UpdateFrame(nil)
	s.UpdateFrame(nil)
	s.UpdateFrame(ValidateFrame(frameWith(map[int]byte{0: 0x80, offWall: 5})))
	s.UpdateError(fmt.Errorf("chunk pushed buffer to 30 bytes: %w", ErrFramingDesync))
	s.UpdateError(fmt.Errorf("wrapped: %w", ErrLengthMismatch))
	s.UpdateError(fmt.Errorf("connection reset"))

	if s.TotalFrames != 3 || s.ValidFrames != 2 || s.AnomalousFrames != 1 {
		t.Errorf("frames total=%d valid=%d anomalous=%d", s.TotalFrames, s.ValidFrames, s.AnomalousFrames)
	}
	if s.ReservedBits != 1 || s.InvalidBooleans != 1 {
		t.Errorf("reserved=%d booleans=%d", s.ReservedBits, s.InvalidBooleans)
	}
	if s.FramingDesyncs != 1 || s.LengthMismatches != 1 || s.TransportErrors != 1 {
		t.Errorf("desyncs=%d mismatches=%d transport=%d", s.FramingDesyncs, s.LengthMismatches, s.TransportErrors)
	}
	if s.Errors() != 4 {
		t.Errorf("Errors() = %d, want 4", s.Errors())
	}

	out := s.String()
	for _, want := range []string{"Total Frames:", "Anomalous:", "Framing Desyncs:", "Transport Errors:"} {
		if !strings.Contains(out, want) {
			t.Errorf("String() missing %q:\n%s", want, out)
		}
	}

	s.Reset()
	if s.TotalFrames != 0 || s.Errors() != 0 {
		t.Error("Reset() did not clear counters")
	}
}
