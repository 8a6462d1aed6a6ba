// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package oi

// MotorState holds the five cleaning motor flags. The caller owns the state; the
// MOTORS byte is always derived from all five flags at once.
type MotorState struct {
	SideBrush          bool
	Vacuum             bool
	MainBrush          bool
	SideBrushClockwise bool
	MainBrushOutward   bool
}

// MotorFlag names one of the five MotorState flags by its bit position
type MotorFlag int

// Motor flags in bit order
const (
	FlagSideBrush MotorFlag = iota
	FlagVacuum
	FlagMainBrush
	FlagSideBrushClockwise
	FlagMainBrushOutward
)

var motorFlagNames = []string{"SIDE", "VAC", "MAIN", "SIDE_DIR", "MAIN_DIR"}

// String returns the short label used by the control panel
func (f MotorFlag) String() string {
	if f >= 0 && int(f) < len(motorFlagNames) {
		return motorFlagNames[f]
	}
	return "UNKNOWN"
}

// Byte packs the flags: bit0 side brush, bit1 vacuum, bit2 main brush,
// bit3 side brush direction, bit4 main brush direction.
func (m MotorState) Byte() byte {
	var b byte
	if m.SideBrush {
		b |= motorSideBrush
	}
	if m.Vacuum {
		b |= motorVacuum
	}
	if m.MainBrush {
		b |= motorMainBrush
	}
	if m.SideBrushClockwise {
		b |= motorSideBrushClockwise
	}
	if m.MainBrushOutward {
		b |= motorMainBrushOutward
	}
	return b
}

// MotorStateFromByte recovers the flags from a packed MOTORS byte. Bits 5-7 are ignored.
func MotorStateFromByte(b byte) MotorState {
	return MotorState{
		SideBrush:          b&motorSideBrush != 0,
		Vacuum:             b&motorVacuum != 0,
		MainBrush:          b&motorMainBrush != 0,
		SideBrushClockwise: b&motorSideBrushClockwise != 0,
		MainBrushOutward:   b&motorMainBrushOutward != 0,
	}
}

// Get returns the value of a single flag
func (m MotorState) Get(f MotorFlag) bool {
	switch f {
	case FlagSideBrush:
		return m.SideBrush
	case FlagVacuum:
		return m.Vacuum
	case FlagMainBrush:
		return m.MainBrush
	case FlagSideBrushClockwise:
		return m.SideBrushClockwise
	case FlagMainBrushOutward:
		return m.MainBrushOutward
	}
	return false
}

// With returns a copy of the state with one flag set to v
func (m MotorState) With(f MotorFlag, v bool) MotorState {
	switch f {
	case FlagSideBrush:
		m.SideBrush = v
	case FlagVacuum:
		m.Vacuum = v
	case FlagMainBrush:
		m.MainBrush = v
	case FlagSideBrushClockwise:
		m.SideBrushClockwise = v
	case FlagMainBrushOutward:
		m.MainBrushOutward = v
	}
	return m
}

// Toggle returns a copy of the state with one flag flipped
func (m MotorState) Toggle(f MotorFlag) MotorState {
	return m.With(f, !m.Get(f))
}
