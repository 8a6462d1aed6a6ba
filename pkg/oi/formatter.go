// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package oi

import (
	"fmt"
	"strings"
	"time"
)

// OpcodeName returns the human-readable name for an opcode
func OpcodeName(op byte) string {
	switch op {
	case OpReboot:
		return "REBOOT"
	case OpStart:
		return "START"
	case OpBaud:
		return "BAUD"
	case OpSafe:
		return "SAFE"
	case OpFull:
		return "FULL"
	case OpDrive:
		return "DRIVE"
	case OpMotors:
		return "MOTORS"
	case OpLED:
		return "LED"
	case OpSong:
		return "SONG"
	case OpPlay:
		return "PLAY"
	case OpSensors:
		return "SENSORS"
	case OpDrivePWM:
		return "DRIVE_PWM"
	case OpStop:
		return "STOP"
	default:
		return "UNKNOWN"
	}
}

// FormatCommand formats a command as its opcode name, decoded arguments where
// known, and the raw bytes.
func FormatCommand(c Command) string {
	if c.IsZero() {
		return "EMPTY []"
	}

	raw := make([]string, len(c.data))
	for i, b := range c.data {
		raw[i] = fmt.Sprintf("%d", b)
	}
	result := fmt.Sprintf("%s [%s]", OpcodeName(c.Opcode()), strings.Join(raw, " "))

	args := c.data[1:]
	switch c.Opcode() {
	case OpDrivePWM:
		if len(args) == 4 {
			result += fmt.Sprintf(" right=%d left=%d", int16(uint16(args[0])<<8|uint16(args[1])), int16(uint16(args[2])<<8|uint16(args[3])))
		}
	case OpDrive:
		if len(args) == 4 {
			result += fmt.Sprintf(" velocity=%d radius=%d", int16(uint16(args[0])<<8|uint16(args[1])), int16(uint16(args[2])<<8|uint16(args[3])))
		}
	case OpMotors:
		if len(args) == 1 {
			result += " " + formatMotorState(MotorStateFromByte(args[0]))
		}
	}
	return result
}

func formatMotorState(m MotorState) string {
	parts := []string{}
	for f := FlagSideBrush; f <= FlagMainBrushOutward; f++ {
		if m.Get(f) {
			parts = append(parts, f.String())
		}
	}
	if len(parts) == 0 {
		return "off"
	}
	return strings.Join(parts, "|")
}

// FormatFrame formats a sensor frame into a human-readable block
func FormatFrame(f SensorFrame, ts time.Time) string {
	var b strings.Builder

	fmt.Fprintf(&b, "[%s] SENSORS (%d bytes)\n", ts.Format("15:04:05.000"), SensorPacketLength)
	fmt.Fprintf(&b, "  Bump: left=%s right=%s  Wheeldrop: left=%s right=%s caster=%s\n",
		onOff(f.Bump.Left), onOff(f.Bump.Right),
		onOff(f.WheelDrop.Left), onOff(f.WheelDrop.Right), onOff(f.WheelDrop.Caster))
	fmt.Fprintf(&b, "  Wall: %s  Virtual Wall: %s  Cliff: [%s %s %s %s]\n",
		onOff(f.Wall), onOff(f.VirtualWall),
		onOff(f.Cliff[0]), onOff(f.Cliff[1]), onOff(f.Cliff[2]), onOff(f.Cliff[3]))
	fmt.Fprintf(&b, "  Overcurrent: side=%s vac=%s main=%s drive_r=%s drive_l=%s\n",
		onOff(f.Overcurrent.SideBrush), onOff(f.Overcurrent.Vacuum), onOff(f.Overcurrent.MainBrush),
		onOff(f.Overcurrent.DriveRight), onOff(f.Overcurrent.DriveLeft))
	fmt.Fprintf(&b, "  Dirt: left=%d right=%d  Remote: 0x%02X  Buttons: %s\n",
		f.Dirt.Left, f.Dirt.Right, f.Remote, formatButtons(f.Buttons))
	fmt.Fprintf(&b, "  Distance: %d mm  Angle: %d\n", f.Distance, f.Angle)
	fmt.Fprintf(&b, "  Battery: %s (%d), %d mV, %d mA, %d°C, %d/%d mAh\n",
		f.Battery.ChargingState, uint8(f.Battery.ChargingState),
		f.Battery.Voltage, f.Battery.Current, f.Battery.Temp,
		f.Battery.Level, f.Battery.Capacity)

	return b.String()
}

func formatButtons(btn Buttons) string {
	parts := []string{}
	if btn.Max {
		parts = append(parts, "MAX")
	}
	if btn.Clean {
		parts = append(parts, "CLEAN")
	}
	if btn.Spot {
		parts = append(parts, "SPOT")
	}
	if btn.Power {
		parts = append(parts, "POWER")
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, ",")
}

func onOff(v bool) string {
	if v {
		return "ON"
	}
	return "off"
}

// FormatHex formats raw bytes as a hex dump, 16 bytes per line
func FormatHex(data []byte) string {
	result := ""
	for i, b := range data {
		if i > 0 && i%16 == 0 {
			result += "\n"
		}
		result += fmt.Sprintf("%02X ", b)
	}
	return strings.TrimRight(result, " ")
}
