// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package oi

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// FrameRecord is the machine-readable form of a received frame
type FrameRecord struct {
	Time     time.Time   `json:"time"`
	Frame    SensorFrame `json:"frame"`
	Raw      []byte      `json:"raw"`
	Warnings []string    `json:"warnings,omitempty"`
}

// NewFrameRecord builds a record, attaching validation messages as warnings
func NewFrameRecord(ts time.Time, f SensorFrame, raw []byte, validationErrors []ValidationError) FrameRecord {
	rec := FrameRecord{Time: ts, Frame: f, Raw: append([]byte(nil), raw...)}
	for _, v := range validationErrors {
		rec.Warnings = append(rec.Warnings, v.Message)
	}
	return rec
}

var cborEncMode = func() cbor.EncMode {
	em, err := cbor.EncOptions{Time: cbor.TimeRFC3339Nano}.EncMode()
	if err != nil {
		panic(fmt.Sprintf("oi: cbor enc mode: %v", err))
	}
	return em
}()

// MarshalFrameCBOR encodes a record as one CBOR data item
func MarshalFrameCBOR(rec FrameRecord) ([]byte, error) {
	data, err := cborEncMode.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("failed to encode frame as CBOR: %w", err)
	}
	return data, nil
}

// UnmarshalFrameCBOR decodes a record produced by MarshalFrameCBOR
func UnmarshalFrameCBOR(data []byte) (FrameRecord, error) {
	var rec FrameRecord
	if err := cbor.Unmarshal(data, &rec); err != nil {
		return FrameRecord{}, fmt.Errorf("failed to decode CBOR frame: %w", err)
	}
	return rec, nil
}

// MarshalFrameJSON encodes a record as a single JSON line (no trailing newline)
func MarshalFrameJSON(rec FrameRecord) ([]byte, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("failed to encode frame as JSON: %w", err)
	}
	return data, nil
}
