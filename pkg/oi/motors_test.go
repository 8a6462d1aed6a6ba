// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package oi

import "testing"

func TestMotorState_Byte(t *testing.T) {
	tests := []struct {
		name  string
		state MotorState
		want  byte
	}{
		{"all off", MotorState{}, 0x00},
		{"side brush", MotorState{SideBrush: true}, 0x01},
		{"vacuum", MotorState{Vacuum: true}, 0x02},
		{"main brush", MotorState{MainBrush: true}, 0x04},
		{"side brush clockwise", MotorState{SideBrushClockwise: true}, 0x08},
		{"main brush outward", MotorState{MainBrushOutward: true}, 0x10},
		{"cleaning", MotorState{SideBrush: true, Vacuum: true, MainBrush: true}, 0x07},
		{"all on", MotorState{true, true, true, true, true}, 0x1F},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.state.Byte(); got != tt.want {
				t.Errorf("Byte() = 0x%02X, want 0x%02X", got, tt.want)
			}
		})
	}
}

func TestMotorState_AllCombinations(t *testing.T) {
	for b := 0; b < 32; b++ {
		state := MotorStateFromByte(byte(b))
		if got := state.Byte(); got != byte(b) {
			t.Errorf("MotorStateFromByte(0x%02X).Byte() = 0x%02X", b, got)
		}
		for f := FlagSideBrush; f <= FlagMainBrushOutward; f++ {
			want := b&(1<<uint(f)) != 0
			if state.Get(f) != want {
				t.Errorf("byte 0x%02X flag %s = %v, want %v", b, f, state.Get(f), want)
			}
		}
	}
}

func TestMotorStateFromByte_IgnoresHighBits(t *testing.T) {
	if got := MotorStateFromByte(0xE0); got != (MotorState{}) {
		t.Errorf("expected all flags off, got %+v", got)
	}
}

func TestMotorState_Toggle(t *testing.T) {
	var m MotorState

	m2 := m.Toggle(FlagVacuum)
	if m.Vacuum {
		t.Error("Toggle must not modify the receiver")
	}
	if !m2.Vacuum || m2.Byte() != 0x02 {
		t.Errorf("after toggle: %+v (0x%02X)", m2, m2.Byte())
	}

	m3 := m2.Toggle(FlagMainBrushOutward).Toggle(FlagVacuum)
	if m3.Byte() != 0x10 {
		t.Errorf("Byte() = 0x%02X, want 0x10", m3.Byte())
	}

	// Toggling one flag twice restores the byte
	for f := FlagSideBrush; f <= FlagMainBrushOutward; f++ {
		if got := m3.Toggle(f).Toggle(f).Byte(); got != m3.Byte() {
			t.Errorf("double toggle of %s changed byte to 0x%02X", f, got)
		}
	}
}

func TestMotorFlag_String(t *testing.T) {
	want := []string{"SIDE", "VAC", "MAIN", "SIDE_DIR", "MAIN_DIR"}
	for i, w := range want {
		if got := MotorFlag(i).String(); got != w {
			t.Errorf("MotorFlag(%d).String() = %q, want %q", i, got, w)
		}
	}
	if MotorFlag(7).String() != "UNKNOWN" {
		t.Error("out of range flag should be UNKNOWN")
	}
}
