// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Thermoquad/roombactl/pkg/link"
	"github.com/Thermoquad/roombactl/pkg/oi"
	"github.com/spf13/cobra"
)

var (
	monitorFormat        string
	monitorPoll          time.Duration
	monitorStatsInterval int
	monitorAnomalies     bool
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Display decoded sensor frames as they arrive",
	Long: `Continuously decode and display sensor frames.

Each frame is validated; reserved bits, out-of-range booleans and unknown
charging states are reported as warnings without dropping the frame.

Output formats:
  text - human-readable frame summary (default)
  json - one JSON object per line
  cbor - a stream of CBOR data items, one per frame

With --poll the monitor sends a SENSORS request at the given interval; otherwise
only the request sent on connect is made. Statistics are printed to stderr every
--stats-interval seconds (0 disables them).

Supports both serial and WebSocket connections.`,
	RunE: runMonitor,
}

func init() {
	rootCmd.AddCommand(monitorCmd)
	monitorCmd.Flags().StringVarP(&monitorFormat, "format", "f", "text", "Output format: text, json or cbor")
	monitorCmd.Flags().DurationVar(&monitorPoll, "poll", 0, "Request sensors at this interval (e.g. 100ms)")
	monitorCmd.Flags().IntVar(&monitorStatsInterval, "stats-interval", 10, "Statistics interval in seconds (0 disables)")
	monitorCmd.Flags().BoolVar(&monitorAnomalies, "anomalies-only", false, "Only print frames that fail validation (text format)")
}

// frameWriter renders one frame record
type frameWriter func(w io.Writer, rec oi.FrameRecord) error

func newFrameWriter(format string) (frameWriter, error) {
	switch format {
	case "text":
		return writeFrameText, nil
	case "json":
		return func(w io.Writer, rec oi.FrameRecord) error {
			data, err := oi.MarshalFrameJSON(rec)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(w, "%s\n", data)
			return err
		}, nil
	case "cbor":
		return func(w io.Writer, rec oi.FrameRecord) error {
			data, err := oi.MarshalFrameCBOR(rec)
			if err != nil {
				return err
			}
			_, err = w.Write(data)
			return err
		}, nil
	default:
		return nil, fmt.Errorf("unknown format %q (use text, json or cbor)", format)
	}
}

func writeFrameText(w io.Writer, rec oi.FrameRecord) error {
	if _, err := fmt.Fprint(w, oi.FormatFrame(rec.Frame, rec.Time)); err != nil {
		return err
	}
	for _, warning := range rec.Warnings {
		if _, err := fmt.Fprintf(w, "  \033[1;33mWARNING:\033[0m %s\n", warning); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(w)
	return err
}

// monitorEvent is one session notification, in delivery order
type monitorEvent struct {
	state link.State
	frame *link.FrameEvent
	log   string
	isLog bool
	err   error
}

func runMonitor(cmd *cobra.Command, args []string) error {
	write, err := newFrameWriter(monitorFormat)
	if err != nil {
		return err
	}

	session, err := OpenSession(false)
	if err != nil {
		return err
	}
	defer session.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	events := make(chan monitorEvent, 64)
	forward := func(ev monitorEvent) {
		select {
		case events <- ev:
		case <-ctx.Done():
		}
	}
	session.Subscribe(link.ObserverFuncs{
		State: func(st link.State) { forward(monitorEvent{state: st}) },
		Frame: func(f link.FrameEvent) { forward(monitorEvent{frame: &f}) },
		Log:   func(line string) { forward(monitorEvent{log: line, isLog: true}) },
		Error: func(err error) { forward(monitorEvent{err: err}) },
	})

	// Status lines go to stderr so json and cbor output stay clean
	status := os.Stderr
	fmt.Fprintf(status, "roombactl - Sensor Monitor\n")
	fmt.Fprintf(status, "Connection: %s\n", session.Endpoint())
	fmt.Fprintf(status, "Format: %s\n", monitorFormat)
	fmt.Fprintf(status, "Press Ctrl+C to exit\n\n")

	session.Connect()

	stats := oi.NewStatistics()

	var statsTick <-chan time.Time
	if monitorStatsInterval > 0 {
		ticker := time.NewTicker(time.Duration(monitorStatsInterval) * time.Second)
		defer ticker.Stop()
		statsTick = ticker.C
	}

	var pollTick <-chan time.Time
	if monitorPoll > 0 {
		ticker := time.NewTicker(monitorPoll)
		defer ticker.Stop()
		pollTick = ticker.C
	}

	connectedOnce := false
	for {
		select {
		case <-ctx.Done():
			fmt.Fprintln(status)
			fmt.Fprint(status, stats.String())
			return nil

		case <-pollTick:
			if session.Send(oi.SensorsRequest(oi.SensorPacketAll)) {
				stats.CommandsSent++
			} else {
				stats.CommandsDropped++
			}

		case <-statsTick:
			fmt.Fprintln(status)
			fmt.Fprint(status, stats.String())
			fmt.Fprintln(status)

		case ev := <-events:
			switch {
			case ev.frame != nil:
				warnings := oi.ValidateFrame(ev.frame.Raw)
				stats.UpdateFrame(warnings)
				if monitorAnomalies && monitorFormat == "text" && len(warnings) == 0 {
					continue
				}
				rec := oi.NewFrameRecord(ev.frame.Received, ev.frame.Frame, ev.frame.Raw, warnings)
				if err := write(os.Stdout, rec); err != nil {
					return err
				}

			case ev.err != nil:
				stats.UpdateError(ev.err)
				fmt.Fprintf(status, "[%s] \033[1;31mERROR:\033[0m %v\n", time.Now().Format("15:04:05.000"), ev.err)

			case ev.isLog:
				stats.LogLines++
				fmt.Fprintf(status, "[%s] LOG: %s\n", time.Now().Format("15:04:05.000"), ev.log)

			default:
				if ev.state == link.Connected {
					if connectedOnce {
						stats.Reconnects++
					}
					connectedOnce = true
				}
				fmt.Fprintf(status, "[%s] %s\n", time.Now().Format("15:04:05.000"), ev.state)
			}
		}
	}
}
