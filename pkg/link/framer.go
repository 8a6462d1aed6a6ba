// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package link

import (
	"fmt"

	"github.com/Thermoquad/roombactl/pkg/oi"
)

// ReceiveBuffer accumulates binary chunks into 25-byte sensor frames.
//
// The stream carries no delimiters or checksums, so frames are recovered by
// length alone. A chunk that pushes the buffer past one frame means the stream
// is out of step; the buffer is discarded rather than guessing a boundary.
type ReceiveBuffer struct {
	buf []byte
}

// NewReceiveBuffer creates an empty receive buffer
func NewReceiveBuffer() *ReceiveBuffer {
	return &ReceiveBuffer{buf: make([]byte, 0, oi.SensorPacketLength)}
}

// Push appends a chunk. It returns a copy of the frame when the buffer holds
// exactly one frame, ErrFramingDesync when it overflows, and nil otherwise.
// The buffer is empty after a frame or an error.
func (r *ReceiveBuffer) Push(chunk []byte) ([]byte, error) {
	r.buf = append(r.buf, chunk...)

	switch {
	case len(r.buf) == oi.SensorPacketLength:
		frame := make([]byte, oi.SensorPacketLength)
		copy(frame, r.buf)
		r.buf = r.buf[:0]
		return frame, nil

	case len(r.buf) > oi.SensorPacketLength:
		n := len(r.buf)
		r.buf = r.buf[:0]
		return nil, fmt.Errorf("receive buffer reached %d bytes (frame is %d): %w", n, oi.SensorPacketLength, oi.ErrFramingDesync)
	}

	return nil, nil
}

// Len returns the number of buffered bytes
func (r *ReceiveBuffer) Len() int {
	return len(r.buf)
}

// Reset discards any buffered bytes
func (r *ReceiveBuffer) Reset() {
	r.buf = r.buf[:0]
}
