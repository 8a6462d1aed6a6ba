// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/Thermoquad/roombactl/pkg/link"
	"github.com/Thermoquad/roombactl/pkg/oi"
	"github.com/spf13/cobra"
)

var (
	decodeChunkSize int
	decodeFormat    string
)

var decodeCmd = &cobra.Command{
	Use:   "decode <capture|->",
	Short: "Decode a captured serial byte stream",
	Long: `Decode sensor frames from a file of raw bytes read from the robot's serial port
(or "-" for stdin).

The capture is fed through the same receive buffer the live link uses, in chunks
of --chunk bytes, so framing errors show up exactly as they would on the wire.
A trailing partial frame is reported at the end.

Output formats are the same as monitor: text, json or cbor.`,
	Args: cobra.ExactArgs(1),
	RunE: runDecode,
}

func init() {
	rootCmd.AddCommand(decodeCmd)
	decodeCmd.Flags().IntVar(&decodeChunkSize, "chunk", oi.SensorPacketLength, "Bytes per simulated read")
	decodeCmd.Flags().StringVarP(&decodeFormat, "format", "f", "text", "Output format: text, json or cbor")
}

func runDecode(cmd *cobra.Command, args []string) error {
	write, err := newFrameWriter(decodeFormat)
	if err != nil {
		return err
	}
	mode, err := oi.ParseWordMode(wordModeName)
	if err != nil {
		return err
	}
	if decodeChunkSize < 1 {
		return fmt.Errorf("--chunk must be at least 1")
	}

	var in io.Reader = os.Stdin
	if args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}

	out := bufio.NewWriter(os.Stdout)
	defer out.Flush()

	stats, err := decodeStream(in, out, write, mode, decodeChunkSize)
	if err != nil {
		return err
	}

	fmt.Fprint(os.Stderr, stats.String())
	return nil
}

// decodeStream frames r in chunks of chunkSize and writes every frame to w
func decodeStream(r io.Reader, w io.Writer, write frameWriter, mode oi.WordMode, chunkSize int) (*oi.Statistics, error) {
	stats := oi.NewStatistics()
	rb := link.NewReceiveBuffer()
	buf := make([]byte, chunkSize)
	ts := time.Now()

	for {
		n, err := io.ReadFull(r, buf)
		if n > 0 {
			raw, perr := rb.Push(buf[:n])
			switch {
			case perr != nil:
				stats.UpdateError(perr)
				fmt.Fprintf(os.Stderr, "[ERROR] %v\n", perr)
			case raw != nil:
				frame, derr := oi.DecodeSensorsMode(raw, mode)
				if derr != nil {
					stats.UpdateError(derr)
					continue
				}
				warnings := oi.ValidateFrame(raw)
				stats.UpdateFrame(warnings)
				if werr := write(w, oi.NewFrameRecord(ts, frame, raw, warnings)); werr != nil {
					return stats, werr
				}
			}
		}
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			break
		}
		if err != nil {
			return stats, err
		}
	}

	if rb.Len() > 0 {
		fmt.Fprintf(os.Stderr, "[WARN] %d trailing bytes do not form a frame\n", rb.Len())
	}
	return stats, nil
}
