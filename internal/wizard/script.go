package wizard

import (
	ps "github.com/relabs-tech/calibration_wizard/internal/posestate"
)

// script is the calibration choreography. Never mutated.
var script = [...]ps.State{
	// centered, yaw left/right
	{Yaw: ps.YawLeft, Pitch: ps.PitchCenter},
	{Yaw: ps.YawCenter, Pitch: ps.PitchCenter},
	{Yaw: ps.YawRight, Pitch: ps.PitchCenter},

	// upward, yaw left/right
	{Yaw: ps.YawCenter, Pitch: ps.PitchCenter},
	{Yaw: ps.YawCenter, Pitch: ps.PitchUp},
	{Yaw: ps.YawLeft, Pitch: ps.PitchUp},
	{Yaw: ps.YawCenter, Pitch: ps.PitchUp},
	{Yaw: ps.YawRight, Pitch: ps.PitchUp},

	// downward, yaw left/right
	{Yaw: ps.YawCenter, Pitch: ps.PitchCenter},
	{Yaw: ps.YawCenter, Pitch: ps.PitchDown},
	{Yaw: ps.YawLeft, Pitch: ps.PitchDown},
	{Yaw: ps.YawCenter, Pitch: ps.PitchDown},
	{Yaw: ps.YawRight, Pitch: ps.PitchDown},

	// done
	{Yaw: ps.YawCenter, Pitch: ps.PitchCenter},
}

// Script returns a copy of the target sequence.
func Script() []ps.State {
	out := make([]ps.State, len(script))
	copy(out, script[:])
	return out
}
