// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package oi

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Command is an encoded Open Interface command: an opcode followed by its data bytes.
// Commands are immutable; Bytes returns a copy.
type Command struct {
	data []byte
}

func newCommand(opcode byte, args ...byte) Command {
	data := make([]byte, 0, 1+len(args))
	data = append(data, opcode)
	data = append(data, args...)
	return Command{data: data}
}

// Opcode returns the first byte of the command (0 for the zero Command)
func (c Command) Opcode() byte {
	if len(c.data) == 0 {
		return 0
	}
	return c.data[0]
}

// Bytes returns a copy of the wire bytes
func (c Command) Bytes() []byte {
	out := make([]byte, len(c.data))
	copy(out, c.data)
	return out
}

// Len returns the number of wire bytes
func (c Command) Len() int {
	return len(c.data)
}

// IsZero reports whether the command is empty
func (c Command) IsZero() bool {
	return len(c.data) == 0
}

// Ints returns the wire bytes as ints, the shape the JSON bridge envelope uses
func (c Command) Ints() []int {
	out := make([]int, len(c.data))
	for i, b := range c.data {
		out[i] = int(b)
	}
	return out
}

// String formats the command as "NAME [b0 b1 ...]"
func (c Command) String() string {
	return FormatCommand(c)
}

// splitInt16 returns the big-endian two's complement bytes of v.
// Values outside int16 are rejected instead of wrapping.
func splitInt16(name string, v int) (byte, byte, error) {
	if v < math.MinInt16 || v > math.MaxInt16 {
		return 0, 0, fmt.Errorf("%s %d out of int16 range: %w", name, v, ErrInvalidArgument)
	}
	return byte((v >> 8) & 0xFF), byte(v & 0xFF), nil
}

// DrivePWM builds a DRIVE_PWM (146) command. Right wheel first, then left.
func DrivePWM(right, left int) (Command, error) {
	rh, rl, err := splitInt16("right pwm", right)
	if err != nil {
		return Command{}, err
	}
	lh, ll, err := splitInt16("left pwm", left)
	if err != nil {
		return Command{}, err
	}
	return newCommand(OpDrivePWM, rh, rl, lh, ll), nil
}

// DriveVelocityRadius builds a DRIVE (137) command from a velocity in mm/s and a
// turn radius in mm.
func DriveVelocityRadius(velocity, radius int) (Command, error) {
	vh, vl, err := splitInt16("velocity", velocity)
	if err != nil {
		return Command{}, err
	}
	rh, rl, err := splitInt16("radius", radius)
	if err != nil {
		return Command{}, err
	}
	return newCommand(OpDrive, vh, vl, rh, rl), nil
}

// Motors builds a MOTORS (138) command from the complete motor state
func Motors(state MotorState) Command {
	return newCommand(OpMotors, state.Byte())
}

// simpleArgs lists the argument count for each opcode accepted by Simple
var simpleArgs = map[int]int{
	OpStart:   0,
	OpSafe:    0,
	OpFull:    0,
	OpReboot:  0,
	OpStop:    0,
	OpSensors: 1,
	OpLED:     3,
	OpPlay:    1,
}

// Simple builds one of the fixed system commands (START, SAFE, FULL, REBOOT, STOP,
// SENSORS, LED, PLAY) with its arguments copied verbatim.
func Simple(opcode int, args ...int) (Command, error) {
	want, ok := simpleArgs[opcode]
	if !ok {
		return Command{}, fmt.Errorf("opcode %d is not a simple command: %w", opcode, ErrInvalidArgument)
	}
	if len(args) != want {
		return Command{}, fmt.Errorf("%s takes %d argument(s), got %d: %w", OpcodeName(byte(opcode)), want, len(args), ErrInvalidArgument)
	}

	data := make([]byte, len(args))
	for i, a := range args {
		if a < 0 || a > 255 {
			return Command{}, fmt.Errorf("%s argument %d = %d out of byte range: %w", OpcodeName(byte(opcode)), i, a, ErrInvalidArgument)
		}
		data[i] = byte(a)
	}
	return newCommand(byte(opcode), data...), nil
}

// Start returns START (128)
func Start() Command { return newCommand(OpStart) }

// Safe returns SAFE (131)
func Safe() Command { return newCommand(OpSafe) }

// Full returns FULL (132)
func Full() Command { return newCommand(OpFull) }

// Reboot returns REBOOT (7)
func Reboot() Command { return newCommand(OpReboot) }

// Stop returns STOP (173)
func Stop() Command { return newCommand(OpStop) }

// SensorsRequest returns SENSORS (142) for the given packet ID
func SensorsRequest(packetID uint8) Command {
	return newCommand(OpSensors, packetID)
}

// LED returns the LED (139) command the control panel toggles: all indicator bits
// set, green power colour, and full or zero power intensity.
func LED(on bool) Command {
	var intensity byte
	if on {
		intensity = 255
	}
	return newCommand(OpLED, 255, 0, intensity)
}

// PlaySong returns PLAY (141) for a stored song
func PlaySong(song uint8) (Command, error) {
	if song < 1 || song > MaxSongNumber {
		return Command{}, fmt.Errorf("song %d out of range 1-%d: %w", song, MaxSongNumber, ErrInvalidArgument)
	}
	return newCommand(OpPlay, song), nil
}

// Honk plays the horn stored in song slot 1
func Honk() Command {
	return newCommand(OpPlay, HonkSong)
}

// Note is a single song note: a MIDI note number and a duration in 1/64 s
type Note struct {
	Pitch    uint8
	Duration uint8
}

// StoreSong returns SONG (140) storing notes in the given slot
func StoreSong(song uint8, notes []Note) (Command, error) {
	if song < 1 || song > MaxSongNumber {
		return Command{}, fmt.Errorf("song %d out of range 1-%d: %w", song, MaxSongNumber, ErrInvalidArgument)
	}
	if len(notes) == 0 || len(notes) > MaxSongNotes {
		return Command{}, fmt.Errorf("song needs 1-%d notes, got %d: %w", MaxSongNotes, len(notes), ErrInvalidArgument)
	}

	args := make([]byte, 0, 2+2*len(notes))
	args = append(args, song, byte(len(notes)))
	for _, n := range notes {
		args = append(args, n.Pitch, n.Duration)
	}
	return newCommand(OpSong, args...), nil
}

// ParseCommand parses a comma or whitespace separated list of decimal bytes,
// e.g. "140, 1, 2, 60, 16, 60, 16".
func ParseCommand(text string) (Command, error) {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n' || r == '\r'
	})
	if len(fields) == 0 {
		return Command{}, fmt.Errorf("empty command: %w", ErrInvalidArgument)
	}

	data := make([]byte, len(fields))
	for i, f := range fields {
		v, err := strconv.Atoi(f)
		if err != nil {
			return Command{}, fmt.Errorf("byte %d %q is not a number: %w", i, f, ErrInvalidArgument)
		}
		if v < 0 || v > 255 {
			return Command{}, fmt.Errorf("byte %d = %d out of range 0-255: %w", i, v, ErrInvalidArgument)
		}
		data[i] = byte(v)
	}
	return Command{data: data}, nil
}
