// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package link

import (
	"context"
	"fmt"
	"io"

	"go.bug.st/serial"
)

// DefaultBaudRate is the Open Interface default serial speed
const DefaultBaudRate = 115200

// SerialDialer opens a direct UART connection to the robot (8N1)
type SerialDialer struct {
	Port     string
	BaudRate int
}

// String describes the endpoint
func (d *SerialDialer) String() string {
	return fmt.Sprintf("Serial: %s @ %d baud", d.Port, d.baud())
}

func (d *SerialDialer) baud() int {
	if d.BaudRate <= 0 {
		return DefaultBaudRate
	}
	return d.BaudRate
}

// Dial opens the serial port
func (d *SerialDialer) Dial(ctx context.Context) (Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	port, err := OpenSerialPort(d.Port, d.baud())
	if err != nil {
		return nil, err
	}
	return NewStreamConn(port), nil
}

// OpenSerialPort opens a serial port as 8N1 at the given speed
func OpenSerialPort(portName string, baudRate int) (serial.Port, error) {
	mode := &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %v", portName, err)
	}
	return port, nil
}

// ListSerialPorts returns the serial ports present on the system
func ListSerialPorts() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to list serial ports: %v", err)
	}
	return ports, nil
}

// StreamConn adapts a byte stream such as a serial port to Conn. Every read
// is reported as one binary message. Writes send the payload bytes as they are,
// whatever the message kind.
type StreamConn struct {
	rwc io.ReadWriteCloser
	buf []byte
}

// streamChunkSize is the read buffer for one chunk
const streamChunkSize = 128

// NewStreamConn wraps a byte stream
func NewStreamConn(rwc io.ReadWriteCloser) *StreamConn {
	return &StreamConn{rwc: rwc, buf: make([]byte, streamChunkSize)}
}

// ReadMessage blocks until bytes arrive and returns them as a binary message
func (s *StreamConn) ReadMessage() (MessageKind, []byte, error) {
	for {
		n, err := s.rwc.Read(s.buf)
		if n > 0 {
			data := make([]byte, n)
			copy(data, s.buf[:n])
			return BinaryMessage, data, nil
		}
		if err != nil {
			return 0, nil, err
		}
	}
}

// WriteMessage writes the payload to the stream
func (s *StreamConn) WriteMessage(_ MessageKind, data []byte) error {
	_, err := s.rwc.Write(data)
	return err
}

// Close closes the stream
func (s *StreamConn) Close() error {
	return s.rwc.Close()
}
