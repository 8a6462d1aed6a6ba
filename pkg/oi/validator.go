// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package oi

import "fmt"

// AnomalyType represents different types of frame anomalies
type AnomalyType int

const (
	AnomalyLengthMismatch AnomalyType = iota
	AnomalyReservedBits
	AnomalyInvalidBoolean
	AnomalyInvalidChargingState
)

// String returns a short name for the anomaly
func (a AnomalyType) String() string {
	switch a {
	case AnomalyLengthMismatch:
		return "LENGTH_MISMATCH"
	case AnomalyReservedBits:
		return "RESERVED_BITS"
	case AnomalyInvalidBoolean:
		return "INVALID_BOOLEAN"
	case AnomalyInvalidChargingState:
		return "INVALID_CHARGING_STATE"
	default:
		return "UNKNOWN"
	}
}

// ValidationError represents a frame validation failure. The frame still decodes;
// these only flag values the robot should never send.
type ValidationError struct {
	Type    AnomalyType
	Offset  int
	Message string
	Details map[string]interface{}
}

// Error implements the error interface
func (v *ValidationError) Error() string {
	return v.Message
}

// ValidateFrame checks a raw sensor frame for anomalies.
// Returns a slice of validation errors (empty if the frame is clean).
func ValidateFrame(raw []byte) []ValidationError {
	if len(raw) != SensorPacketLength {
		return []ValidationError{{
			Type:    AnomalyLengthMismatch,
			Offset:  -1,
			Message: fmt.Sprintf("sensor frame length mismatch (got %d, expected %d)", len(raw), SensorPacketLength),
			Details: map[string]interface{}{"length": len(raw), "expected": SensorPacketLength},
		}}
	}

	errors := []ValidationError{}

	errors = append(errors, checkReserved(raw, offBumpWheeldrop, "bump/wheeldrop", 0xE0)...)
	errors = append(errors, checkReserved(raw, offOvercurrent, "overcurrent", 0xE0)...)
	errors = append(errors, checkReserved(raw, offButtons, "buttons", 0xF0)...)

	errors = append(errors, checkBoolean(raw, offWall, "wall")...)
	for i := 0; i < 4; i++ {
		errors = append(errors, checkBoolean(raw, offCliff+i, fmt.Sprintf("cliff[%d]", i))...)
	}
	errors = append(errors, checkBoolean(raw, offVirtualWall, "virtual_wall")...)

	state := ChargingState(raw[offChargingState])
	if !state.Valid() {
		errors = append(errors, ValidationError{
			Type:    AnomalyInvalidChargingState,
			Offset:  offChargingState,
			Message: fmt.Sprintf("Invalid charging_state=%d (valid 0-%d)", state, ChargingFault),
			Details: map[string]interface{}{"value": uint8(state), "max": uint8(ChargingFault)},
		})
	}

	return errors
}

// checkReserved flags bits outside the defined mask
func checkReserved(raw []byte, off int, name string, reserved byte) []ValidationError {
	if raw[off]&reserved == 0 {
		return nil
	}
	return []ValidationError{{
		Type:    AnomalyReservedBits,
		Offset:  off,
		Message: fmt.Sprintf("Reserved bits set in %s (0x%02X)", name, raw[off]),
		Details: map[string]interface{}{"value": raw[off], "reserved_mask": reserved},
	}}
}

// checkBoolean flags a boolean byte that is neither 0 nor 1.
// The decoder treats such bytes as false.
func checkBoolean(raw []byte, off int, name string) []ValidationError {
	if raw[off] <= 1 {
		return nil
	}
	return []ValidationError{{
		Type:    AnomalyInvalidBoolean,
		Offset:  off,
		Message: fmt.Sprintf("Invalid %s=%d (expected 0 or 1)", name, raw[off]),
		Details: map[string]interface{}{"value": raw[off]},
	}}
}
