// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/Thermoquad/roombactl/pkg/link"
	"github.com/Thermoquad/roombactl/pkg/oi"
	"github.com/spf13/cobra"
)

var (
	sensorTestTimeout int
)

var sensorTestCmd = &cobra.Command{
	Use:   "sensor_test",
	Short: "Test the link by waiting for a sensor frame",
	Long: `Connect, request sensors and wait for one complete sensor frame.

The frame is printed together with any validation warnings. Framing errors
before the first frame are counted but do not fail the test.

Exit codes:
  0 - Frame received before timeout
  1 - Timeout reached without receiving a frame
  2 - Connection error

Useful for testing connectivity to the robot or the WebSocket bridge.`,
	RunE: runSensorTest,
}

func init() {
	rootCmd.AddCommand(sensorTestCmd)
	sensorTestCmd.Flags().IntVar(&sensorTestTimeout, "timeout", 10, "Timeout in seconds to wait for a frame")
}

func runSensorTest(cmd *cobra.Command, args []string) error {
	session, err := OpenSession(false)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}

	fmt.Printf("roombactl - Sensor Test\n")
	fmt.Printf("Connection: %s\n", session.Endpoint())
	fmt.Printf("Timeout: %d seconds\n", sensorTestTimeout)
	fmt.Printf("Waiting for sensor frame...\n\n")

	frames := make(chan link.FrameEvent, 1)
	desyncs := make(chan struct{}, 64)
	session.Subscribe(link.ObserverFuncs{
		Frame: func(f link.FrameEvent) {
			select {
			case frames <- f:
			default:
			}
		},
		Error: func(err error) {
			select {
			case desyncs <- struct{}{}:
			default:
			}
		},
	})

	timeout := time.Duration(sensorTestTimeout) * time.Second
	deadline := time.Now().Add(timeout)

	if err := connectAndWait(session, timeout); err != nil {
		session.Close()
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}

	select {
	case ev := <-frames:
		session.Close()
		if n := len(desyncs); n > 0 {
			fmt.Printf("(%d framing errors before the first frame)\n", n)
		}
		warnings := oi.ValidateFrame(ev.Raw)
		fmt.Printf("SUCCESS: Received sensor frame\n")
		fmt.Printf("  Raw: %s\n", oi.FormatHex(ev.Raw))
		fmt.Print(oi.FormatFrame(ev.Frame, ev.Received))
		for _, w := range warnings {
			fmt.Printf("  WARNING: %s\n", w.Message)
		}
		os.Exit(0)

	case <-time.After(time.Until(deadline)):
		session.Close()
		fmt.Fprintf(os.Stderr, "TIMEOUT: No sensor frame received within %d seconds\n", sensorTestTimeout)
		os.Exit(1)
	}

	return nil
}
