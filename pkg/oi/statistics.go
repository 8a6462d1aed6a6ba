// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package oi

import (
	"errors"
	"fmt"
	"time"
)

// Statistics tracks link statistics and error rates. It is not safe for concurrent
// use; each consumer keeps its own.
type Statistics struct {
	StartTime      time.Time
	LastUpdateTime time.Time

	// Counters
	TotalFrames      uint64
	ValidFrames      uint64
	AnomalousFrames  uint64
	ReservedBits     uint64
	InvalidBooleans  uint64
	InvalidCharging  uint64
	FramingDesyncs   uint64
	LengthMismatches uint64
	TransportErrors  uint64
	Reconnects       uint64
	CommandsSent     uint64
	CommandsDropped  uint64
	LogLines         uint64

	// Rates (calculated)
	FrameRate float64 // frames/sec
	ErrorRate float64 // errors/sec
}

// NewStatistics creates a new statistics tracker
func NewStatistics() *Statistics {
	now := time.Now()
	return &Statistics{
		StartTime:      now,
		LastUpdateTime: now,
	}
}

// UpdateFrame records a decoded frame and its validation errors
func (s *Statistics) UpdateFrame(validationErrors []ValidationError) {
	s.TotalFrames++

	if len(validationErrors) == 0 {
		s.ValidFrames++
	} else {
		s.AnomalousFrames++
		for _, err := range validationErrors {
			switch err.Type {
			case AnomalyReservedBits:
				s.ReservedBits++
			case AnomalyInvalidBoolean:
				s.InvalidBooleans++
			case AnomalyInvalidChargingState:
				s.InvalidCharging++
			case AnomalyLengthMismatch:
				s.LengthMismatches++
			}
		}
	}

	s.LastUpdateTime = time.Now()
}

// UpdateError records a link error. Framing errors are counted by kind; anything
// else counts as a transport error.
func (s *Statistics) UpdateError(err error) {
	switch {
	case errors.Is(err, ErrFramingDesync):
		s.FramingDesyncs++
	case errors.Is(err, ErrLengthMismatch):
		s.LengthMismatches++
	default:
		s.TransportErrors++
	}
	s.LastUpdateTime = time.Now()
}

// Errors returns the total number of errors and anomalies
func (s *Statistics) Errors() uint64 {
	return s.AnomalousFrames + s.FramingDesyncs + s.LengthMismatches + s.TransportErrors
}

// CalculateRates calculates frame and error rates
func (s *Statistics) CalculateRates() {
	elapsed := time.Since(s.StartTime).Seconds()
	if elapsed > 0 {
		s.FrameRate = float64(s.TotalFrames) / elapsed
		s.ErrorRate = float64(s.Errors()) / elapsed
	}
}

// String returns a formatted statistics summary
func (s *Statistics) String() string {
	s.CalculateRates()

	var validPercent, anomalousPercent float64
	if s.TotalFrames > 0 {
		validPercent = float64(s.ValidFrames) * 100.0 / float64(s.TotalFrames)
		anomalousPercent = float64(s.AnomalousFrames) * 100.0 / float64(s.TotalFrames)
	}

	elapsed := time.Since(s.StartTime)

	result := fmt.Sprintf("=== Statistics (%.0f seconds) ===\n", elapsed.Seconds())
	result += fmt.Sprintf("Total Frames:    %8d\n", s.TotalFrames)
	result += fmt.Sprintf("Valid Frames:    %8d (%.1f%%)\n", s.ValidFrames, validPercent)

	if s.AnomalousFrames > 0 {
		result += fmt.Sprintf("Anomalous:       %8d (%.1f%%)\n", s.AnomalousFrames, anomalousPercent)
		if s.ReservedBits > 0 {
			result += fmt.Sprintf("  Reserved Bits:    %5d\n", s.ReservedBits)
		}
		if s.InvalidBooleans > 0 {
			result += fmt.Sprintf("  Invalid Boolean:  %5d\n", s.InvalidBooleans)
		}
		if s.InvalidCharging > 0 {
			result += fmt.Sprintf("  Invalid Charging: %5d\n", s.InvalidCharging)
		}
	}
	if s.FramingDesyncs > 0 {
		result += fmt.Sprintf("Framing Desyncs: %8d\n", s.FramingDesyncs)
	}
	if s.LengthMismatches > 0 {
		result += fmt.Sprintf("Length Mismatch: %8d\n", s.LengthMismatches)
	}
	if s.TransportErrors > 0 {
		result += fmt.Sprintf("Transport Errors:%8d\n", s.TransportErrors)
	}
	if s.Reconnects > 0 {
		result += fmt.Sprintf("Reconnects:      %8d\n", s.Reconnects)
	}
	if s.CommandsSent > 0 || s.CommandsDropped > 0 {
		result += fmt.Sprintf("Commands:        %8d sent, %d dropped\n", s.CommandsSent, s.CommandsDropped)
	}

	result += fmt.Sprintf("Frame Rate:      %8.1f frames/sec\n", s.FrameRate)
	result += fmt.Sprintf("Error Rate:      %8.1f errors/sec\n", s.ErrorRate)
	result += "================================\n"

	return result
}

// Reset resets all statistics counters
func (s *Statistics) Reset() {
	*s = *NewStatistics()
}
