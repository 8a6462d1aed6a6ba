// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package drive maps two-dimensional pointer input onto differential drive wheel
// powers for the DRIVE_PWM command.
package drive

import (
	"fmt"
	"math"

	"github.com/Thermoquad/roombactl/pkg/oi"
)

// MaxPower is the largest wheel power magnitude produced by Map
const MaxPower = 255

// Wheels holds the signed power for each wheel, each in [-MaxPower, MaxPower]
type Wheels struct {
	Right int
	Left  int
}

// Command builds the DRIVE_PWM command for the wheel powers (right first)
func (w Wheels) Command() oi.Command {
	cmd, err := oi.DrivePWM(w.Right, w.Left)
	if err != nil {
		// Map and Release never produce values outside int16
		panic(fmt.Sprintf("drive: wheels out of range: %v", err))
	}
	return cmd
}

// IsStopped reports whether both wheels are at zero power
func (w Wheels) IsStopped() bool {
	return w.Right == 0 && w.Left == 0
}

// Map converts a pointer offset from the joystick centre into wheel powers.
//
// x grows to the right and y grows downward, as in screen coordinates. Points
// outside the circle of the given radius are pulled onto its edge. Both axes are
// scaled to ±255 and rounded half-up, then mixed: left = forward + turn,
// right = forward - turn, each clamped to ±255.
func Map(x, y, radius float64) (Wheels, error) {
	if math.IsNaN(radius) || math.IsInf(radius, 0) || radius <= 0 {
		return Wheels{}, fmt.Errorf("radius must be positive and finite (got %v): %w", radius, oi.ErrInvalidArgument)
	}
	if math.IsNaN(x) || math.IsInf(x, 0) || math.IsNaN(y) || math.IsInf(y, 0) {
		return Wheels{}, fmt.Errorf("pointer offset (%v, %v) is not finite: %w", x, y, oi.ErrInvalidArgument)
	}

	distance := math.Hypot(x, y)
	if distance > radius {
		x = x / distance * radius
		y = y / distance * radius
	}

	nx := roundHalfUp(x / radius * MaxPower)
	ny := roundHalfUp(-y / radius * MaxPower)

	return Wheels{
		Right: clamp(ny - nx),
		Left:  clamp(ny + nx),
	}, nil
}

// Release returns the wheel powers for a released joystick
func Release() Wheels {
	return Wheels{}
}

// roundHalfUp rounds to the nearest integer with halves going toward +inf
func roundHalfUp(v float64) int {
	return int(math.Floor(v + 0.5))
}

func clamp(v int) int {
	if v > MaxPower {
		return MaxPower
	}
	if v < -MaxPower {
		return -MaxPower
	}
	return v
}

// Direction names the dominant direction of a pointer offset, used to tint the
// joystick in the control panel.
type Direction int

const (
	Centre Direction = iota
	Right
	Down
	Left
	Up
)

// String returns the direction name
func (d Direction) String() string {
	switch d {
	case Right:
		return "right"
	case Down:
		return "down"
	case Left:
		return "left"
	case Up:
		return "up"
	default:
		return "centre"
	}
}

// DirectionOf returns the 90° sector the offset (screen coordinates) falls in
func DirectionOf(x, y float64) Direction {
	if x == 0 && y == 0 {
		return Centre
	}
	angle := math.Atan2(y, x) * 180 / math.Pi
	switch {
	case angle >= -45 && angle < 45:
		return Right
	case angle >= 45 && angle < 135:
		return Down
	case angle >= 135 || angle < -135:
		return Left
	default:
		return Up
	}
}
