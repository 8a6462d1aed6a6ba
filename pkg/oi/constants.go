// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package oi implements the subset of the Roomba Open Interface used by roombactl.
//
// It encodes operator intents into opcode-prefixed byte sequences and decodes the
// fixed 25-byte sensor frame the robot streams back. Everything in this package is
// pure and safe for concurrent use.
package oi

// Opcodes
const (
	OpReboot   = 7
	OpStart    = 128
	OpBaud     = 129
	OpSafe     = 131
	OpFull     = 132
	OpDrive    = 137
	OpMotors   = 138
	OpLED      = 139
	OpSong     = 140
	OpPlay     = 141
	OpSensors  = 142
	OpDrivePWM = 146
	OpStop     = 173
)

// SensorPacketLength is the size of the only telemetry frame the link understands.
const SensorPacketLength = 25

// SensorPacketAll is the packet ID requested by SensorsRequest by default.
const SensorPacketAll = 0

// HonkSong is the song slot the bridge stores the horn in.
const HonkSong = 1

// Song limits
const (
	MaxSongNumber = 4
	MaxSongNotes  = 16
)

// Bump and wheel drop bits (byte 0)
const (
	maskBumpRight       = 0x01
	maskBumpLeft        = 0x02
	maskWheeldropRight  = 0x04
	maskWheeldropLeft   = 0x08
	maskWheeldropCaster = 0x10
)

// Motor overcurrent bits (byte 7)
const (
	maskOvercurrentSideBrush  = 0x01
	maskOvercurrentVacuum     = 0x02
	maskOvercurrentMainBrush  = 0x04
	maskOvercurrentDriveRight = 0x08
	maskOvercurrentDriveLeft  = 0x10
)

// Button bits (byte 11)
const (
	maskButtonMax   = 0x01
	maskButtonClean = 0x02
	maskButtonSpot  = 0x04
	maskButtonPower = 0x08
)

// Motor bits (MOTORS argument)
const (
	motorSideBrush          = 0x01
	motorVacuum             = 0x02
	motorMainBrush          = 0x04
	motorSideBrushClockwise = 0x08
	motorMainBrushOutward   = 0x10
)

// Sensor frame byte offsets
const (
	offBumpWheeldrop = 0
	offWall          = 1
	offCliff         = 2
	offVirtualWall   = 6
	offOvercurrent   = 7
	offDirtLeft      = 8
	offDirtRight     = 9
	offRemote        = 10
	offButtons       = 11
	offDistance      = 12
	offAngle         = 14
	offChargingState = 16
	offVoltage       = 17
	offCurrent       = 19
	offTemperature   = 21
	offLevel         = 22
	offCapacity      = 24
)

// ChargingState is the battery charging state reported at byte 16
type ChargingState uint8

// Charging state values
const (
	ChargingNone ChargingState = iota
	ChargingReconditioning
	ChargingFull
	ChargingTrickle
	ChargingWaiting
	ChargingFault
)

var chargingStateNames = []string{
	"NOT_CHARGING",
	"RECONDITIONING",
	"FULL_CHARGING",
	"TRICKLE_CHARGING",
	"WAITING",
	"CHARGING_FAULT",
}

// String returns the charging state name, or UNKNOWN for values above 5
func (c ChargingState) String() string {
	if int(c) < len(chargingStateNames) {
		return chargingStateNames[c]
	}
	return "UNKNOWN"
}

// Valid reports whether the state is one of the six defined values
func (c ChargingState) Valid() bool {
	return c <= ChargingFault
}
