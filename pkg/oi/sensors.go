// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package oi

import "fmt"

// Every flag in a SensorFrame is always present: a cleared bit decodes to false.
// Nothing is omitted to mean "false".

// Bump holds the bumper switches
type Bump struct {
	Left  bool `json:"left"`
	Right bool `json:"right"`
}

// WheelDrop holds the wheel drop switches
type WheelDrop struct {
	Left   bool `json:"left"`
	Right  bool `json:"right"`
	Caster bool `json:"caster"`
}

// Overcurrent holds the motor overcurrent flags
type Overcurrent struct {
	SideBrush  bool `json:"side_brush"`
	Vacuum     bool `json:"vacuum"`
	MainBrush  bool `json:"main_brush"`
	DriveRight bool `json:"drive_right"`
	DriveLeft  bool `json:"drive_left"`
}

// Dirt holds the raw dirt detector levels
type Dirt struct {
	Left  uint8 `json:"left"`
	Right uint8 `json:"right"`
}

// Buttons holds the panel buttons
type Buttons struct {
	Max   bool `json:"max"`
	Clean bool `json:"clean"`
	Spot  bool `json:"spot"`
	Power bool `json:"power"`
}

// Battery holds the battery readings
type Battery struct {
	ChargingState ChargingState `json:"charging_state"`
	Voltage       uint16        `json:"voltage"`
	Current       int16         `json:"current"`
	Temp          int8          `json:"temp"`
	Level         uint16        `json:"level"`
	Capacity      uint16        `json:"capacity"`
}

// SensorFrame is one decoded 25-byte telemetry frame
type SensorFrame struct {
	Bump        Bump        `json:"bump"`
	WheelDrop   WheelDrop   `json:"wheeldrop"`
	Wall        bool        `json:"wall"`
	Cliff       [4]bool     `json:"cliff"`
	VirtualWall bool        `json:"virtual_wall"`
	Overcurrent Overcurrent `json:"overcurrent"`
	Dirt        Dirt        `json:"dirt"`
	Remote      uint8       `json:"remote"`
	Buttons     Buttons     `json:"buttons"`
	Distance    int16       `json:"distance"`
	Angle       int16       `json:"angle"`
	Battery     Battery     `json:"battery"`
}

// WordMode selects how the six two-byte fields of the frame are read
type WordMode int

const (
	// WordTruncated reads only the first byte of each pair and skips the second.
	// This is what the deployed controller does and what existing streams are
	// compared against.
	WordTruncated WordMode = iota

	// WordBigEndian combines each pair as a big-endian 16-bit value. Capacity has
	// only byte 24 inside the frame and is read from it alone.
	WordBigEndian
)

// String returns the flag spelling of the mode
func (w WordMode) String() string {
	switch w {
	case WordTruncated:
		return "truncated"
	case WordBigEndian:
		return "bigendian"
	default:
		return "unknown"
	}
}

// ParseWordMode parses "truncated" or "bigendian"
func ParseWordMode(s string) (WordMode, error) {
	switch s {
	case "truncated", "":
		return WordTruncated, nil
	case "bigendian", "big-endian":
		return WordBigEndian, nil
	default:
		return WordTruncated, fmt.Errorf("unknown word mode %q (use truncated or bigendian): %w", s, ErrInvalidArgument)
	}
}

// DecodeSensors decodes a sensor frame using WordTruncated
func DecodeSensors(buf []byte) (SensorFrame, error) {
	return DecodeSensorsMode(buf, WordTruncated)
}

// DecodeSensorsMode decodes a sensor frame. The buffer must be exactly
// SensorPacketLength bytes; otherwise no frame is produced.
func DecodeSensorsMode(buf []byte, mode WordMode) (SensorFrame, error) {
	if len(buf) != SensorPacketLength {
		return SensorFrame{}, fmt.Errorf("sensor packet must be %d bytes (got %d): %w", SensorPacketLength, len(buf), ErrLengthMismatch)
	}

	var f SensorFrame

	b := buf[offBumpWheeldrop]
	f.Bump.Right = b&maskBumpRight != 0
	f.Bump.Left = b&maskBumpLeft != 0
	f.WheelDrop.Right = b&maskWheeldropRight != 0
	f.WheelDrop.Left = b&maskWheeldropLeft != 0
	f.WheelDrop.Caster = b&maskWheeldropCaster != 0

	f.Wall = buf[offWall] == 1
	for i := range f.Cliff {
		f.Cliff[i] = buf[offCliff+i] == 1
	}
	f.VirtualWall = buf[offVirtualWall] == 1

	b = buf[offOvercurrent]
	f.Overcurrent.SideBrush = b&maskOvercurrentSideBrush != 0
	f.Overcurrent.Vacuum = b&maskOvercurrentVacuum != 0
	f.Overcurrent.MainBrush = b&maskOvercurrentMainBrush != 0
	f.Overcurrent.DriveRight = b&maskOvercurrentDriveRight != 0
	f.Overcurrent.DriveLeft = b&maskOvercurrentDriveLeft != 0

	f.Dirt.Left = buf[offDirtLeft]
	f.Dirt.Right = buf[offDirtRight]
	f.Remote = buf[offRemote]

	b = buf[offButtons]
	f.Buttons.Max = b&maskButtonMax != 0
	f.Buttons.Clean = b&maskButtonClean != 0
	f.Buttons.Spot = b&maskButtonSpot != 0
	f.Buttons.Power = b&maskButtonPower != 0

	f.Distance = int16(word(buf, offDistance, mode))
	f.Angle = int16(word(buf, offAngle, mode))
	f.Battery.ChargingState = ChargingState(buf[offChargingState])
	f.Battery.Voltage = word(buf, offVoltage, mode)
	f.Battery.Current = int16(word(buf, offCurrent, mode))
	f.Battery.Temp = int8(buf[offTemperature])
	f.Battery.Level = word(buf, offLevel, mode)
	f.Battery.Capacity = uint16(buf[offCapacity])

	return f, nil
}

// word reads the two-byte field at off
func word(buf []byte, off int, mode WordMode) uint16 {
	if mode == WordBigEndian {
		return uint16(buf[off])<<8 | uint16(buf[off+1])
	}
	return uint16(buf[off])
}
