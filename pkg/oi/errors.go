// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package oi

import "errors"

var (
	// ErrInvalidArgument is returned when an encoder is given a value outside its domain
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrLengthMismatch is returned when a sensor buffer is not exactly SensorPacketLength bytes
	ErrLengthMismatch = errors.New("sensor packet length mismatch")

	// ErrFramingDesync is reported when the receive buffer grows past one frame
	ErrFramingDesync = errors.New("sensor framing desync")
)
