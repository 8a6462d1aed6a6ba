// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad
//
// roombactl - Roomba Open Interface controller
//
// Drives a Roomba over a serial port or through a WebSocket-to-UART bridge,
// decodes its sensor telemetry and serves the bridge itself.

package main

import (
	"os"

	"github.com/Thermoquad/roombactl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
