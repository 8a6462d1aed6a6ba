// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package link

import (
	"bytes"
	"errors"
	"testing"

	"github.com/Thermoquad/roombactl/pkg/oi"
)

func seq(start, n int) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = byte(start + i)
	}
	return out
}

func TestReceiveBuffer(t *testing.T) {
	tests := []struct {
		name       string
		chunks     [][]byte
		wantFrames int
		wantDesync int
		wantLen    int
	}{
		{"one whole frame", [][]byte{seq(0, 25)}, 1, 0, 0},
		{"split 10 + 15", [][]byte{seq(0, 10), seq(10, 15)}, 1, 0, 0},
		{"byte at a time", splitBytes(seq(0, 25)), 1, 0, 0},
		{"partial frame waits", [][]byte{seq(0, 24)}, 0, 0, 24},
		{"overflow in one chunk", [][]byte{seq(0, 30)}, 0, 1, 0},
		{"two frames in one chunk desync", [][]byte{seq(0, 50)}, 0, 1, 0},
		{"overflow across chunks", [][]byte{seq(0, 20), seq(20, 10)}, 0, 1, 0},
		{"recovers after desync", [][]byte{seq(0, 30), seq(0, 25)}, 1, 1, 0},
		{"two frames back to back", [][]byte{seq(0, 25), seq(100, 25)}, 2, 0, 0},
		{"empty chunk", [][]byte{{}}, 0, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rb := NewReceiveBuffer()
			frames, desyncs := 0, 0
			for _, c := range tt.chunks {
				frame, err := rb.Push(c)
				if err != nil {
					if !errors.Is(err, oi.ErrFramingDesync) {
						t.Fatalf("unexpected error: %v", err)
					}
					if frame != nil {
						t.Error("desync must not return a frame")
					}
					desyncs++
					continue
				}
				if frame != nil {
					if len(frame) != oi.SensorPacketLength {
						t.Errorf("frame length %d", len(frame))
					}
					frames++
				}
			}
			if frames != tt.wantFrames {
				t.Errorf("frames = %d, want %d", frames, tt.wantFrames)
			}
			if desyncs != tt.wantDesync {
				t.Errorf("desyncs = %d, want %d", desyncs, tt.wantDesync)
			}
			if rb.Len() != tt.wantLen {
				t.Errorf("Len() = %d, want %d", rb.Len(), tt.wantLen)
			}
		})
	}
}

func splitBytes(b []byte) [][]byte {
	out := make([][]byte, len(b))
	for i := range b {
		out[i] = b[i : i+1]
	}
	return out
}

func TestReceiveBuffer_FrameContent(t *testing.T) {
	rb := NewReceiveBuffer()
	rb.Push(seq(0, 10))
	frame, err := rb.Push(seq(10, 15))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(frame, seq(0, 25)) {
		t.Errorf("frame = %v", frame)
	}

	// The returned frame must not alias the internal buffer
	rb.Push(seq(200, 10))
	if !bytes.Equal(frame, seq(0, 25)) {
		t.Error("frame changed after the next push")
	}
}

func TestReceiveBuffer_Reset(t *testing.T) {
	rb := NewReceiveBuffer()
	rb.Push(seq(0, 12))
	rb.Reset()
	if rb.Len() != 0 {
		t.Errorf("Len() after Reset = %d", rb.Len())
	}
	frame, err := rb.Push(seq(0, 25))
	if err != nil || frame == nil {
		t.Errorf("expected a clean frame after Reset, got %v, %v", frame, err)
	}
}
