// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package posestate turns a continuous head orientation into the discrete
// yaw/pitch states used by the calibration wizard.
package posestate

import (
	"fmt"
	"strings"
)

// YawState is the discrete left/right state of the head.
type YawState int

const (
	// YawNone means no yaw action is expected (script exhausted).
	YawNone YawState = iota
	YawCenter
	YawLeft
	YawRight
)

func (y YawState) String() string {
	switch y {
	case YawNone:
		return "none"
	case YawCenter:
		return "center"
	case YawLeft:
		return "left"
	case YawRight:
		return "right"
	}
	return fmt.Sprintf("yaw(%d)", int(y))
}

// PitchState is the discrete up/down state of the head.
type PitchState int

const (
	// PitchNone means no pitch action is expected (script exhausted).
	PitchNone PitchState = iota
	PitchCenter
	PitchUp
	PitchDown
)

func (p PitchState) String() string {
	switch p {
	case PitchNone:
		return "none"
	case PitchCenter:
		return "center"
	case PitchUp:
		return "up"
	case PitchDown:
		return "down"
	}
	return fmt.Sprintf("pitch(%d)", int(p))
}

// State is a (yaw, pitch) pair. It is used both for script targets and for
// classified poses.
type State struct {
	Yaw   YawState
	Pitch PitchState
}

// None is the "nothing expected" state.
var None = State{YawNone, PitchNone}

// IsNone reports whether both axes carry the sentinel.
func (s State) IsNone() bool {
	return s == None
}

func (s State) String() string {
	return s.Yaw.String() + "/" + s.Pitch.String()
}

// MarshalText lets State render as "left/center" in JSON payloads.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses the form produced by MarshalText.
func (s *State) UnmarshalText(b []byte) error {
	v, err := ParseState(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// ParseState parses "yaw/pitch", e.g. "left/up" or "none/none".
func ParseState(text string) (State, error) {
	yaw, pitch, ok := strings.Cut(text, "/")
	if !ok {
		return None, fmt.Errorf("pose state %q: want yaw/pitch", text)
	}

	var s State
	switch yaw {
	case "none":
		s.Yaw = YawNone
	case "center":
		s.Yaw = YawCenter
	case "left":
		s.Yaw = YawLeft
	case "right":
		s.Yaw = YawRight
	default:
		return None, fmt.Errorf("pose state %q: unknown yaw %q", text, yaw)
	}
	switch pitch {
	case "none":
		s.Pitch = PitchNone
	case "center":
		s.Pitch = PitchCenter
	case "up":
		s.Pitch = PitchUp
	case "down":
		s.Pitch = PitchDown
	default:
		return None, fmt.Errorf("pose state %q: unknown pitch %q", text, pitch)
	}
	return s, nil
}

// Prompt returns a short operator instruction for reaching s.
func (s State) Prompt() string {
	if s.IsNone() {
		return "done"
	}

	var yaw, pitch string
	switch s.Yaw {
	case YawLeft:
		yaw = "turn left"
	case YawRight:
		yaw = "turn right"
	}
	switch s.Pitch {
	case PitchUp:
		pitch = "look up"
	case PitchDown:
		pitch = "look down"
	}

	switch {
	case yaw != "" && pitch != "":
		return pitch + " and " + yaw
	case yaw != "":
		return yaw
	case pitch != "":
		return pitch
	}
	return "look straight ahead"
}

// Reached records, per axis, whether the start threshold of the current
// target was already crossed during the current step.
type Reached struct {
	Yaw   bool `json:"yaw"`
	Pitch bool `json:"pitch"`
}
