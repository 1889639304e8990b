// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package posestate

import (
	"fmt"
)

// Thresholds holds the hysteresis limits in degrees.
//
// `Start` is how far the head has to move before a mode triggers.
// `Sustain` is the minimum that keeps the mode while it is reached.
// Once sustain is lost, start is needed again.
type Thresholds struct {
	PitchUpStart     float64
	PitchUpSustain   float64
	PitchDownStart   float64
	PitchDownSustain float64
	YawSideStart     float64
	YawSideSustain   float64
}

// DefaultThresholds are the limits used by the calibration wizard.
var DefaultThresholds = Thresholds{
	PitchUpStart:     20,
	PitchUpSustain:   8,
	PitchDownStart:   -15,
	PitchDownSustain: -6,
	YawSideStart:     18,
	YawSideSustain:   10,
}

// Validate checks signs and that every sustain limit is milder than its
// start limit.
func (t Thresholds) Validate() error {
	if t.PitchUpSustain < 0 || t.PitchUpStart < t.PitchUpSustain {
		return fmt.Errorf("pitch up thresholds must satisfy 0 <= sustain (%g) <= start (%g)",
			t.PitchUpSustain, t.PitchUpStart)
	}
	if t.PitchDownSustain > 0 || t.PitchDownStart > t.PitchDownSustain {
		return fmt.Errorf("pitch down thresholds must satisfy start (%g) <= sustain (%g) <= 0",
			t.PitchDownStart, t.PitchDownSustain)
	}
	if t.YawSideSustain < 0 || t.YawSideStart < t.YawSideSustain {
		return fmt.Errorf("yaw thresholds must satisfy 0 <= sustain (%g) <= start (%g)",
			t.YawSideSustain, t.YawSideStart)
	}
	return nil
}

// Classify maps yaw/pitch (degrees, right and up positive) to a discrete
// state using t. The result never contains YawNone or PitchNone.
func (t Thresholds) Classify(yaw, pitch float64, reached Reached) State {
	ret := State{Yaw: YawCenter, Pitch: PitchCenter}

	pitchUp, pitchDown := t.PitchUpStart, t.PitchDownStart
	if reached.Pitch {
		pitchUp, pitchDown = t.PitchUpSustain, t.PitchDownSustain
	}

	yawSide := t.YawSideStart
	if reached.Yaw {
		yawSide = t.YawSideSustain
	}

	// left is minus, right is plus
	if yaw > yawSide {
		ret.Yaw = YawRight
	} else if yaw < -yawSide {
		ret.Yaw = YawLeft
	}

	// up is plus, down is minus
	if pitch > pitchUp {
		ret.Pitch = PitchUp
	} else if pitch < pitchDown {
		ret.Pitch = PitchDown
	}

	return ret
}

// Classify uses DefaultThresholds.
func Classify(yaw, pitch float64, reached Reached) State {
	return DefaultThresholds.Classify(yaw, pitch, reached)
}
