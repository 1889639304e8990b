// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package orientation

import (
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"
)

// Pose is the canonical representation of head orientation, in degrees.
// Yaw is positive to the right, pitch is positive up.
type Pose struct {
	Roll  float64 `json:"roll"`
	Pitch float64 `json:"pitch"`
	Yaw   float64 `json:"yaw"`
}

// Source is anything that can provide poses over time.
type Source interface {
	Next() (Pose, error)
}

// Sample is one tracker reading: the Euler pose used for classification plus
// the rotation and translation forwarded to the calibration accumulator.
type Sample struct {
	Pose
	Rotation    *mat.Dense
	Translation r3.Vector
}

// NewSample builds a Sample whose rotation is derived from p.
func NewSample(p Pose, translation r3.Vector) Sample {
	return Sample{
		Pose:        p,
		Rotation:    RotationMatrix(p),
		Translation: translation,
	}
}

const d2r = math.Pi / 180

// RotationMatrix converts p to a 3x3 rotation matrix using the ZYX order:
//
//	R = Rz(yaw) · Ry(pitch) · Rx(roll)
func RotationMatrix(p Pose) *mat.Dense {
	y, pt, r := p.Yaw*d2r, p.Pitch*d2r, p.Roll*d2r

	cy, sy := math.Cos(y), math.Sin(y)
	cp, sp := math.Cos(pt), math.Sin(pt)
	cr, sr := math.Cos(r), math.Sin(r)

	rz := mat.NewDense(3, 3, []float64{
		cy, -sy, 0,
		sy, cy, 0,
		0, 0, 1,
	})
	ry := mat.NewDense(3, 3, []float64{
		cp, 0, sp,
		0, 1, 0,
		-sp, 0, cp,
	})
	rx := mat.NewDense(3, 3, []float64{
		1, 0, 0,
		0, cr, -sr,
		0, sr, cr,
	})

	var zy, out mat.Dense
	zy.Mul(rz, ry)
	out.Mul(&zy, rx)
	return &out
}
