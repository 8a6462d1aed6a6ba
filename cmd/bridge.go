// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Thermoquad/roombactl/pkg/bridge"
	"github.com/Thermoquad/roombactl/pkg/link"
	"github.com/spf13/cobra"
)

var (
	bridgeAddr      string
	bridgeInit      bool
	bridgeInitDelay time.Duration
)

var bridgeCmd = &cobra.Command{
	Use:   "bridge",
	Short: "Serve the robot's serial port over WebSocket",
	Long: `Run a WebSocket-to-UART bridge on this machine.

Clients connect to ws://<addr>/ws. Text messages must be {"commands":[...]}
with every value in 0-255 and are written to the serial port as raw bytes;
binary messages are written verbatim. Everything read from the serial port
is sent to every client as binary messages. GET /status returns counters.

With --init the robot is woken on start: START, FULL, store the horn and siren
songs, then sound the horn.

When --username is set, clients must authenticate with HTTP Basic auth; the
password is read from ROOMBA_PASSWORD or prompted.

Requires --port.`,
	RunE: runBridge,
}

func init() {
	rootCmd.AddCommand(bridgeCmd)
	bridgeCmd.Flags().StringVar(&bridgeAddr, "listen", bridge.DefaultAddr, "Listen address")
	bridgeCmd.Flags().BoolVar(&bridgeInit, "init", false, "Send the robot init sequence on start")
	bridgeCmd.Flags().DurationVar(&bridgeInitDelay, "init-delay", bridge.DefaultInitDelay, "Pause before each init step")
}

func runBridge(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()
	if cfg != nil {
		if !flags.Changed("listen") && cfg.Bridge.Addr != "" {
			bridgeAddr = cfg.Bridge.Addr
		}
		if !flags.Changed("init") {
			bridgeInit = cfg.Bridge.InitSequence
		}
		if !flags.Changed("init-delay") && cfg.Bridge.InitDelay > 0 {
			bridgeInitDelay = cfg.Bridge.InitDelay
		}
	}

	if portName == "" {
		return fmt.Errorf("bridge requires --port")
	}

	password := ""
	if wsUsername != "" {
		var err error
		password, err = GetPassword()
		if err != nil {
			return err
		}
	}

	factory, err := newLoggerFactory(false)
	if err != nil {
		return err
	}

	port, err := link.OpenSerialPort(portName, baudRate)
	if err != nil {
		return err
	}

	server, err := bridge.NewServer(bridge.Config{
		Addr:          bridgeAddr,
		UART:          port,
		Username:      wsUsername,
		Password:      password,
		InitSequence:  bridgeInit,
		InitDelay:     bridgeInitDelay,
		LoggerFactory: factory,
	})
	if err != nil {
		port.Close()
		return err
	}

	fmt.Printf("roombactl - WebSocket Bridge\n")
	fmt.Printf("Serial: %s @ %d baud\n", portName, baudRate)
	fmt.Printf("Listening: ws://%s/ws\n", bridgeAddr)
	fmt.Printf("Press Ctrl+C to exit\n\n")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := server.Run(ctx); err != nil {
		return err
	}

	stats := server.Stats()
	fmt.Printf("\nServed %d bytes to the robot, %d bytes from it (%d chunks dropped)\n",
		stats.BytesToUART, stats.BytesFromUART, stats.ChunksDropped)
	return nil
}
