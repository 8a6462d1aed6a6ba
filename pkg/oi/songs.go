// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package oi

// SirenSong is the song slot holding the siren
const SirenSong = 2

// HonkNotes is the two-note horn stored in HonkSong
var HonkNotes = []Note{
	{Pitch: 60, Duration: 16},
	{Pitch: 60, Duration: 16},
}

// SirenNotes is the alternating siren stored in SirenSong
var SirenNotes = []Note{
	{Pitch: 60, Duration: 100},
	{Pitch: 80, Duration: 100},
	{Pitch: 60, Duration: 100},
	{Pitch: 80, Duration: 100},
	{Pitch: 60, Duration: 100},
	{Pitch: 80, Duration: 100},
}
