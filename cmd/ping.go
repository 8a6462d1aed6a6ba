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
	pingTimeout int
	pingCount   int
)

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Measure sensor round-trip time",
	Long: `Send SENSORS requests and time how long each sensor frame takes to arrive.

This tests bidirectional communication with the robot, directly or through the
WebSocket bridge:
  - the connection is established (and HTTP Basic auth works)
  - commands reach the robot
  - the robot's replies come back and frame correctly

Exit codes:
  0 - All pings answered
  1 - One or more pings timed out
  2 - Connection error`,
	RunE: runPing,
}

func init() {
	rootCmd.AddCommand(pingCmd)
	pingCmd.Flags().IntVar(&pingTimeout, "timeout", 5, "Timeout in seconds for each ping")
	pingCmd.Flags().IntVar(&pingCount, "count", 3, "Number of pings to send")
}

func runPing(cmd *cobra.Command, args []string) error {
	session, err := OpenSession(false)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer session.Close()

	frames := make(chan link.FrameEvent, 8)
	session.Subscribe(link.ObserverFuncs{
		Frame: func(f link.FrameEvent) {
			select {
			case frames <- f:
			default:
			}
		},
	})

	timeout := time.Duration(pingTimeout) * time.Second
	if err := connectAndWait(session, timeout); err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}

	fmt.Printf("roombactl - Sensor Ping\n")
	fmt.Printf("Connection: %s\n", session.Endpoint())
	fmt.Printf("Timeout: %d seconds per ping\n", pingTimeout)
	fmt.Printf("Count: %d pings\n\n", pingCount)

	// The frame answering the connect-time request is not a ping reply
	select {
	case <-frames:
	case <-time.After(timeout):
	}

	successCount := 0
	failCount := 0

	for i := 1; i <= pingCount; i++ {
		fmt.Printf("Ping %d/%d: ", i, pingCount)

		// Drop anything that arrived in between
	drain:
		for {
			select {
			case <-frames:
			default:
				break drain
			}
		}

		startTime := time.Now()
		if !session.Send(oi.SensorsRequest(oi.SensorPacketAll)) {
			fmt.Printf("SEND FAILED: %s\n", session.State())
			failCount++
			continue
		}

		select {
		case ev := <-frames:
			rtt := time.Since(startTime)
			b := ev.Frame.Battery
			fmt.Printf("frame, charging=%s voltage=%dmV, rtt=%v\n", b.ChargingState, b.Voltage, rtt.Round(time.Millisecond))
			successCount++

		case <-time.After(timeout):
			fmt.Printf("TIMEOUT (no frame in %ds)\n", pingTimeout)
			failCount++
		}

		// Small delay between pings
		if i < pingCount {
			time.Sleep(100 * time.Millisecond)
		}
	}

	// Summary
	fmt.Printf("\n--- Ping statistics ---\n")
	fmt.Printf("%d requests sent, %d frames received, %.0f%% loss\n",
		pingCount, successCount, float64(failCount)/float64(pingCount)*100)

	if failCount > 0 {
		os.Exit(1)
	}
	return nil
}
